package worktree

import (
	"context"
	"fmt"
	"os"
	"strings"
)

// CanRebase reports whether branch would rebase onto base cleanly, by
// attempting the rebase against a disposable scratch worktree and aborting
// regardless of outcome. Never touches the caller's working copy or the
// issue's own worktree (spec §5: "never the user's main checkout").
func (m *Manager) CanRebase(ctx context.Context, branch, base string) (bool, error) {
	scratch, cleanup, err := m.scratchWorktree(ctx, branch)
	if err != nil {
		return false, err
	}
	defer cleanup()

	cmd := m.commandContext(ctx, "git", "rebase", base)
	cmd.Dir = scratch
	out, err := cmd.CombinedOutput()
	if err != nil {
		abort := m.commandContext(ctx, "git", "rebase", "--abort")
		abort.Dir = scratch
		_ = abort.Run()
		m.Logger.Info("pre-merge rebase check failed", "branch", branch, "base", base, "detail", strings.TrimSpace(string(out)))
		return false, nil
	}
	return true, nil
}

// HasConflicts reports whether merging branch into base would conflict, via
// `git merge-tree`'s three-way preview (no working copy mutation at all).
func (m *Manager) HasConflicts(ctx context.Context, branch, base string) (bool, error) {
	mergeBase := m.commandContext(ctx, "git", "merge-base", base, branch)
	mergeBase.Dir = m.RepoRoot
	baseSHA, err := mergeBase.Output()
	if err != nil {
		return false, fmt.Errorf("worktree conflict check: merge-base: %w", err)
	}

	cmd := m.commandContext(ctx, "git", "merge-tree", strings.TrimSpace(string(baseSHA)), base, branch)
	cmd.Dir = m.RepoRoot
	out, err := cmd.Output()
	if err != nil {
		return false, fmt.Errorf("worktree conflict check: merge-tree: %w", err)
	}
	return strings.Contains(string(out), "<<<<<<<"), nil
}

// SpotCheckMerge performs the pre-merge local verification spec §4.9 step 3
// requires: merge branch into base inside a disposable scratch worktree and
// run the given commands there. An empty cmd is skipped; the first
// command to fail aborts the check and its combined output is returned as
// the error detail.
func (m *Manager) SpotCheckMerge(ctx context.Context, branch, base string, cmds ...string) error {
	scratch, cleanup, err := m.scratchWorktree(ctx, base)
	if err != nil {
		return err
	}
	defer cleanup()

	merge := m.commandContext(ctx, "git", "merge", "--no-edit", branch)
	merge.Dir = scratch
	if out, err := merge.CombinedOutput(); err != nil {
		return fmt.Errorf("pre-merge spot check: merging %s into %s: %w: %s", branch, base, err, strings.TrimSpace(string(out)))
	}

	for _, c := range cmds {
		if c == "" {
			continue
		}
		cmd := m.commandContext(ctx, "sh", "-c", c)
		cmd.Dir = scratch
		if out, err := cmd.CombinedOutput(); err != nil {
			return fmt.Errorf("pre-merge spot check: %q: %w: %s", c, err, strings.TrimSpace(string(out)))
		}
	}
	return nil
}

// scratchWorktree creates a throwaway worktree checked out at checkout,
// returning its path and a cleanup func that removes it unconditionally.
func (m *Manager) scratchWorktree(ctx context.Context, checkout string) (string, func(), error) {
	dir, err := os.MkdirTemp("", "sprintforge-premerge-*")
	if err != nil {
		return "", nil, fmt.Errorf("pre-merge: creating scratch dir: %w", err)
	}
	_ = os.Remove(dir) // git worktree add requires the target not exist

	cmd := m.commandContext(ctx, "git", "worktree", "add", "--detach", dir, checkout)
	cmd.Dir = m.RepoRoot
	if out, err := cmd.CombinedOutput(); err != nil {
		return "", nil, fmt.Errorf("pre-merge: creating scratch worktree: %w: %s", err, strings.TrimSpace(string(out)))
	}

	cleanup := func() {
		rm := m.commandContext(context.Background(), "git", "worktree", "remove", "--force", dir)
		rm.Dir = m.RepoRoot
		if err := rm.Run(); err != nil {
			m.Logger.Warn("pre-merge: scratch worktree cleanup failed", "path", dir, "error", err)
		}
	}
	return dir, cleanup, nil
}
