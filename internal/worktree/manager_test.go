package worktree

import (
	"context"
	"log/slog"
	"os"
	"os/exec"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelDebug}))
}

func initBareRepo(t *testing.T) string {
	t.Helper()
	dir := t.TempDir()

	run(t, dir, "git", "init", "-b", "master")
	run(t, dir, "git", "config", "user.email", "test@test.com")
	run(t, dir, "git", "config", "user.name", "Test")
	require.NoError(t, os.WriteFile(filepath.Join(dir, "README.md"), []byte("init"), 0o644))
	run(t, dir, "git", "add", ".")
	run(t, dir, "git", "commit", "-m", "init")

	return dir
}

func run(t *testing.T, dir, name string, args ...string) {
	t.Helper()
	cmd := exec.Command(name, args...)
	cmd.Dir = dir
	out, err := cmd.CombinedOutput()
	require.NoError(t, err, "command %s %v failed: %s", name, args, out)
}

func defaultManager(repoDir string) *Manager {
	return New(
		"git worktree add -b {{.Branch}} {{.Path}} {{.Base}}",
		"git worktree remove --force {{.Path}}",
		repoDir,
		testLogger(),
	)
}

func TestCreate_WithGitWorktreeAdd(t *testing.T) {
	repoDir := initBareRepo(t)
	m := defaultManager(repoDir)

	path := m.DefaultPath("test-branch")
	err := m.Create(context.Background(), path, "test-branch", "master")
	require.NoError(t, err)

	info, err := os.Stat(path)
	require.NoError(t, err)
	assert.True(t, info.IsDir())
}

func TestCreate_FailsIfPathExists(t *testing.T) {
	repoDir := initBareRepo(t)
	m := defaultManager(repoDir)

	path := m.DefaultPath("dup-branch")
	require.NoError(t, os.MkdirAll(path, 0o755))

	err := m.Create(context.Background(), path, "dup-branch", "master")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "already exists")
}

func TestCreate_FailsIfBranchExists(t *testing.T) {
	repoDir := initBareRepo(t)
	m := defaultManager(repoDir)

	run(t, repoDir, "git", "branch", "existing-branch")

	path := m.DefaultPath("existing-branch")
	err := m.Create(context.Background(), path, "existing-branch", "master")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "branch already exists")
}

func TestRemove_RealWorktree(t *testing.T) {
	repoDir := initBareRepo(t)
	m := defaultManager(repoDir)

	wtPath := m.DefaultPath("rm-branch")
	run(t, repoDir, "git", "worktree", "add", "-b", "rm-branch", wtPath, "master")

	require.NoError(t, m.Remove(context.Background(), wtPath))

	_, err := os.Stat(wtPath)
	assert.True(t, os.IsNotExist(err))
}

func TestRemove_AbsentPath_NoOp(t *testing.T) {
	repoDir := initBareRepo(t)
	m := defaultManager(repoDir)

	err := m.Remove(context.Background(), filepath.Join(repoDir, ".worktrees", "never-existed"))
	assert.NoError(t, err)
}

func TestList_ReportsBranches(t *testing.T) {
	repoDir := initBareRepo(t)
	m := defaultManager(repoDir)

	wtPath := m.DefaultPath("list-branch")
	run(t, repoDir, "git", "worktree", "add", "-b", "list-branch", wtPath, "master")

	infos, err := m.List(context.Background())
	require.NoError(t, err)

	found := false
	for _, info := range infos {
		if info.Branch == "list-branch" {
			found = true
			assert.Equal(t, wtPath, info.Path)
		}
	}
	assert.True(t, found, "expected list-branch in %+v", infos)
}

func TestDiffStatAndChangedFiles(t *testing.T) {
	repoDir := initBareRepo(t)
	m := defaultManager(repoDir)

	wtPath := m.DefaultPath("diff-branch")
	require.NoError(t, m.Create(context.Background(), wtPath, "diff-branch", "master"))

	require.NoError(t, os.WriteFile(filepath.Join(wtPath, "feature.go"), []byte("package x\n\nfunc Y() {}\n"), 0o644))
	run(t, wtPath, "git", "add", ".")
	run(t, wtPath, "git", "commit", "-m", "add feature")

	stat, err := m.DiffStat(context.Background(), "diff-branch", "master")
	require.NoError(t, err)
	assert.Equal(t, 1, stat.FilesChanged)
	assert.Contains(t, stat.Files, "feature.go")
	assert.Greater(t, stat.LinesChanged, 0)

	files, err := m.GetChangedFiles(context.Background(), "diff-branch", "master")
	require.NoError(t, err)
	assert.Equal(t, []string{"feature.go"}, files)

	isNew, err := m.IsNewOrModified(context.Background(), "feature.go", "diff-branch", "master")
	require.NoError(t, err)
	assert.True(t, isNew)

	isNew, err = m.IsNewOrModified(context.Background(), "README.md", "diff-branch", "master")
	require.NoError(t, err)
	assert.False(t, isNew)
}

func TestCreate_Failure(t *testing.T) {
	repoDir := initBareRepo(t)
	m := New("false", "echo ok", repoDir, testLogger())

	err := m.Create(context.Background(), m.DefaultPath("fail-branch"), "fail-branch", "master")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "worktree create")
}

func TestRenderTemplate_ExpandsTilde(t *testing.T) {
	home, err := os.UserHomeDir()
	require.NoError(t, err)

	fields, err := renderTemplate("~/bin/my-script {{.Branch}} {{.Path}}", templateData{
		Branch: "feat-1",
		Path:   "/tmp/wt",
	})
	require.NoError(t, err)

	assert.Equal(t, filepath.Join(home, "bin/my-script"), fields[0])
	assert.Equal(t, "feat-1", fields[1])
	assert.Equal(t, "/tmp/wt", fields[2])
}

func TestCreate_ContextCancelled(t *testing.T) {
	repoDir := initBareRepo(t)
	m := New("sleep 60", "echo ok", repoDir, testLogger())

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	err := m.Create(ctx, m.DefaultPath("cancelled-branch"), "cancelled-branch", "master")
	require.Error(t, err)
}
