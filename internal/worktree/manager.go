// Package worktree manages isolated git working copies, one per in-flight
// issue, plus the diff utilities the quality gate and executor need.
// Adapted from the teacher's internal/provider/worktree/git.go: same
// text/template-rendered create/remove command pair and overridable
// commandContext, extended per spec §4.4 with diffStat/getChangedFiles/
// isNewOrModified and existence checks on create.
package worktree

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
)

// Manager creates and tears down worktrees via configurable shell command
// templates, rooted at RepoRoot.
type Manager struct {
	CreateCmd string
	RemoveCmd string
	RepoRoot  string
	Logger    *slog.Logger

	commandContext func(ctx context.Context, name string, args ...string) *exec.Cmd
}

// New creates a Manager. createCmd/removeCmd are text/template strings with
// access to .Branch, .Base, .Path.
func New(createCmd, removeCmd, repoRoot string, logger *slog.Logger) *Manager {
	return &Manager{
		CreateCmd:      createCmd,
		RemoveCmd:      removeCmd,
		RepoRoot:       repoRoot,
		Logger:         logger,
		commandContext: exec.CommandContext,
	}
}

// Create makes an isolated working copy at path on a new branch from base.
// Fails if branch already exists or path is already occupied (spec §4.4).
func (m *Manager) Create(ctx context.Context, path, branch, base string) error {
	if _, err := os.Stat(path); err == nil {
		return fmt.Errorf("worktree create: path already exists: %s", path)
	}
	if m.branchExists(ctx, branch) {
		return fmt.Errorf("worktree create: branch already exists: %s", branch)
	}

	args, err := renderTemplate(m.CreateCmd, templateData{Branch: branch, Base: base, Path: path})
	if err != nil {
		return fmt.Errorf("worktree create: rendering template: %w", err)
	}

	m.Logger.Info("creating worktree", "cmd", args, "path", path, "branch", branch)
	cmd := m.commandContext(ctx, args[0], args[1:]...)
	cmd.Dir = m.RepoRoot
	out, err := cmd.CombinedOutput()
	if err != nil {
		return fmt.Errorf("worktree create: %w: %s", err, strings.TrimSpace(string(out)))
	}

	m.Logger.Info("worktree created", "path", path)
	return nil
}

func (m *Manager) branchExists(ctx context.Context, branch string) bool {
	cmd := m.commandContext(ctx, "git", "rev-parse", "--verify", "--quiet", branch)
	cmd.Dir = m.RepoRoot
	return cmd.Run() == nil
}

// Remove deletes the working copy at path, keeping the branch. Removal of
// an absent path is a no-op (spec §4.4's idempotent-on-absence invariant);
// callers treat a returned error as a warning, not fatal.
func (m *Manager) Remove(ctx context.Context, path string) error {
	if _, err := os.Stat(path); os.IsNotExist(err) {
		m.Logger.Info("worktree already absent, skipping remove", "path", path)
		return nil
	}

	args, err := renderTemplate(m.RemoveCmd, templateData{Path: path})
	if err != nil {
		return fmt.Errorf("worktree remove: rendering template: %w", err)
	}

	m.Logger.Info("removing worktree", "cmd", args)
	cmd := m.commandContext(ctx, args[0], args[1:]...)
	cmd.Dir = m.RepoRoot
	out, err := cmd.CombinedOutput()
	if err != nil {
		return fmt.Errorf("worktree remove: %w: %s", err, strings.TrimSpace(string(out)))
	}

	m.Logger.Info("worktree removed", "path", path)
	return nil
}

// Info is one entry from List.
type Info struct {
	Path   string
	Branch string
}

// List enumerates active working copies with their branch names via
// `git worktree list --porcelain`.
func (m *Manager) List(ctx context.Context) ([]Info, error) {
	cmd := m.commandContext(ctx, "git", "worktree", "list", "--porcelain")
	cmd.Dir = m.RepoRoot
	out, err := cmd.Output()
	if err != nil {
		return nil, fmt.Errorf("worktree list: %w", err)
	}
	return parsePorcelainList(string(out)), nil
}

func parsePorcelainList(out string) []Info {
	var infos []Info
	var cur Info
	for _, line := range strings.Split(out, "\n") {
		switch {
		case strings.HasPrefix(line, "worktree "):
			if cur.Path != "" {
				infos = append(infos, cur)
			}
			cur = Info{Path: strings.TrimPrefix(line, "worktree ")}
		case strings.HasPrefix(line, "branch "):
			ref := strings.TrimPrefix(line, "branch ")
			cur.Branch = strings.TrimPrefix(ref, "refs/heads/")
		case line == "":
			if cur.Path != "" {
				infos = append(infos, cur)
				cur = Info{}
			}
		}
	}
	if cur.Path != "" {
		infos = append(infos, cur)
	}
	return infos
}

func (m *Manager) worktreeDir(branch string) string {
	return filepath.Join(m.RepoRoot, ".worktrees", branch)
}

// DefaultPath is the conventional worktree location for a branch, matching
// the teacher's `<repoRoot>/.worktrees/<branch>` layout.
func (m *Manager) DefaultPath(branch string) string {
	return m.worktreeDir(branch)
}
