package scanner

import (
	"encoding/json"
	"os"
	"path/filepath"
	"runtime"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestScanRepos_DiscoversNestedRepoSprints(t *testing.T) {
	root := t.TempDir()

	repoA := filepath.Join(root, "repo-a")
	repoB := filepath.Join(root, "nested", "repo-b")

	createSprintStateFile(t, repoA, "checkout-1")
	createSprintStateFile(t, repoB, "billing-1")

	repos, err := ScanRepos([]string{root})
	require.NoError(t, err)
	require.Len(t, repos, 2)

	repoAResolved := mustResolvePath(t, repoA)
	repoBResolved := mustResolvePath(t, repoB)

	byPath := make(map[string]RepoSprints)
	for _, repo := range repos {
		byPath[repo.RepoPath] = repo
	}

	repoASprints, ok := byPath[repoAResolved]
	require.True(t, ok)
	assert.Equal(t, "repo-a", repoASprints.RepoName)
	require.Len(t, repoASprints.Sprints, 1)
	assert.Equal(t, "checkout", repoASprints.Sprints[0].Slug)

	repoBSprints, ok := byPath[repoBResolved]
	require.True(t, ok)
	assert.Equal(t, "repo-b", repoBSprints.RepoName)
	require.Len(t, repoBSprints.Sprints, 1)
	assert.Equal(t, "billing", repoBSprints.Sprints[0].Slug)
}

func TestScanRepos_EmptySprintsAndHiddenDirectories(t *testing.T) {
	root := t.TempDir()

	emptyRepo := filepath.Join(root, "repo-empty")
	require.NoError(t, os.MkdirAll(filepath.Join(emptyRepo, "docs", "sprints"), 0o755))

	hiddenRepo := filepath.Join(root, ".hidden", "repo-hidden")
	createSprintStateFile(t, hiddenRepo, "hidden-1")

	repos, err := ScanRepos([]string{root})
	require.NoError(t, err)
	require.Len(t, repos, 1)

	assert.Equal(t, mustResolvePath(t, emptyRepo), repos[0].RepoPath)
	assert.Equal(t, "repo-empty", repos[0].RepoName)
	assert.Empty(t, repos[0].Sprints)
}

func TestScanRepos_SkipsSymlinkedDirectories(t *testing.T) {
	if runtime.GOOS == "windows" {
		t.Skip("symlink test is platform-specific")
	}

	root := t.TempDir()
	actualRepo := filepath.Join(root, "actual-repo")
	createSprintStateFile(t, actualRepo, "checkout-1")

	linkPath := filepath.Join(root, "repo-link")
	require.NoError(t, os.Symlink(actualRepo, linkPath))

	repos, err := ScanRepos([]string{root})
	require.NoError(t, err)
	require.Len(t, repos, 1)
	assert.Equal(t, mustResolvePath(t, actualRepo), repos[0].RepoPath)
}

func TestScanRepos_SkipsUnreadableDirectories(t *testing.T) {
	if runtime.GOOS == "windows" {
		t.Skip("chmod permission semantics differ on windows")
	}

	root := t.TempDir()
	goodRepo := filepath.Join(root, "good-repo")
	createSprintStateFile(t, goodRepo, "good-1")

	blockedDir := filepath.Join(root, "blocked")
	require.NoError(t, os.MkdirAll(filepath.Join(blockedDir, "child"), 0o755))
	require.NoError(t, os.Chmod(blockedDir, 0o000))
	defer func() {
		_ = os.Chmod(blockedDir, 0o755)
	}()

	repos, err := ScanRepos([]string{root})
	require.NoError(t, err)
	require.Len(t, repos, 1)
	assert.Equal(t, mustResolvePath(t, goodRepo), repos[0].RepoPath)
	require.Len(t, repos[0].Sprints, 1)
	assert.Equal(t, "good", repos[0].Sprints[0].Slug)
}

// createSprintStateFile writes a minimal docs/sprints/<stateName>-state.json
// under repoPath without importing sprintrunner; the JSON carries only the
// slug, taken from stateName ("<slug>-<n>").
func createSprintStateFile(t *testing.T, repoPath, stateName string) {
	t.Helper()

	sprintsDir := filepath.Join(repoPath, "docs", "sprints")
	require.NoError(t, os.MkdirAll(sprintsDir, 0o755))

	idx := len(stateName) - 1
	for idx >= 0 && stateName[idx] != '-' {
		idx--
	}
	require.True(t, idx > 0, "stateName must be <slug>-<n>")
	slug := stateName[:idx]

	data, err := json.Marshal(map[string]any{
		"slug": slug,
	})
	require.NoError(t, err)

	path := filepath.Join(sprintsDir, stateName+"-state.json")
	require.NoError(t, os.WriteFile(path, data, 0o644))
}

func mustResolvePath(t *testing.T, path string) string {
	t.Helper()
	resolved, err := filepath.EvalSymlinks(path)
	if err == nil {
		return resolved
	}
	abs, absErr := filepath.Abs(path)
	require.NoError(t, absErr)
	return abs
}
