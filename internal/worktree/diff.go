package worktree

import (
	"context"
	"fmt"
	"strconv"
	"strings"
)

// DiffStat summarises the line and file churn of a branch against its base.
type DiffStat struct {
	LinesChanged int
	FilesChanged int
	Files        []string
}

// DiffStat computes additions+deletions and the touched file list for
// branch relative to base, via `git diff --numstat base...branch`.
func (m *Manager) DiffStat(ctx context.Context, branch, base string) (DiffStat, error) {
	cmd := m.commandContext(ctx, "git", "diff", "--numstat", rangeSpec(base, branch))
	cmd.Dir = m.RepoRoot
	out, err := cmd.Output()
	if err != nil {
		return DiffStat{}, fmt.Errorf("worktree diffstat: %w", err)
	}

	stat := DiffStat{}
	for _, line := range strings.Split(strings.TrimRight(string(out), "\n"), "\n") {
		if line == "" {
			continue
		}
		fields := strings.SplitN(line, "\t", 3)
		if len(fields) != 3 {
			continue
		}
		added, _ := strconv.Atoi(fields[0])
		deleted, _ := strconv.Atoi(fields[1])
		stat.LinesChanged += added + deleted
		stat.Files = append(stat.Files, fields[2])
	}
	stat.FilesChanged = len(stat.Files)
	return stat, nil
}

// GetChangedFiles lists paths touched by branch relative to base. With an
// empty base it lists paths that differ between RepoRoot's working tree and
// branch.
func (m *Manager) GetChangedFiles(ctx context.Context, branch, base string) ([]string, error) {
	cmd := m.commandContext(ctx, "git", "diff", "--name-only", rangeSpec(base, branch))
	cmd.Dir = m.RepoRoot
	out, err := cmd.Output()
	if err != nil {
		return nil, fmt.Errorf("worktree changed files: %w", err)
	}
	var files []string
	for _, line := range strings.Split(strings.TrimRight(string(out), "\n"), "\n") {
		if line != "" {
			files = append(files, line)
		}
	}
	return files, nil
}

// IsNewOrModified reports whether path appears among branch's changes
// against base.
func (m *Manager) IsNewOrModified(ctx context.Context, path, branch, base string) (bool, error) {
	files, err := m.GetChangedFiles(ctx, branch, base)
	if err != nil {
		return false, err
	}
	for _, f := range files {
		if f == path {
			return true, nil
		}
	}
	return false, nil
}

func rangeSpec(base, branch string) string {
	if base == "" {
		return branch
	}
	return base + "..." + branch
}
