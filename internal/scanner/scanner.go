// Package scanner walks a set of filesystem roots looking for sprintforge
// project directories (those with a docs/sprints directory), for
// the CLI's "discover all my repos" and the dashboard's multi-repo view.
// Adapted from the teacher's internal/scanner/scanner.go: same
// filepath.WalkDir traversal skipping hidden dirs and symlinks, same
// resolveRoot tilde-expansion/symlink-resolution. Retargeted from the
// teacher's ".forge/runs" marker directory to sprintforge's "docs/sprints"
// directory and JSON sprint states instead of YAML runs.
package scanner

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/sprintforge/sprintforge/internal/sprintrunner"
)

// RepoSprints contains all sprint states discovered for a repository.
type RepoSprints struct {
	RepoPath string
	RepoName string
	Sprints  []sprintrunner.State
}

// ScanRepos walks root directories and returns sprint states for each
// discovered sprintforge project.
func ScanRepos(roots []string) ([]RepoSprints, error) {
	repos := make(map[string]RepoSprints)

	for _, root := range roots {
		if strings.TrimSpace(root) == "" {
			continue
		}

		resolvedRoot, err := resolveRoot(root)
		if err != nil {
			if errors.Is(err, fs.ErrNotExist) || errors.Is(err, fs.ErrPermission) {
				continue
			}
			return nil, fmt.Errorf("resolve root %q: %w", root, err)
		}

		err = filepath.WalkDir(resolvedRoot, func(path string, d fs.DirEntry, walkErr error) error {
			if walkErr != nil {
				if errors.Is(walkErr, fs.ErrPermission) {
					return filepath.SkipDir
				}
				return nil
			}

			if d.Type()&os.ModeSymlink != 0 {
				if d.IsDir() {
					return filepath.SkipDir
				}
				return nil
			}

			if !d.IsDir() {
				return nil
			}

			if path != resolvedRoot && isHiddenDir(d.Name()) {
				return filepath.SkipDir
			}

			if d.Name() == "sprints" && filepath.Base(filepath.Dir(path)) == "docs" {
				repoPath := filepath.Clean(filepath.Dir(filepath.Dir(path)))
				if _, exists := repos[repoPath]; exists {
					return filepath.SkipDir
				}

				sprints, err := loadSprints(path)
				if err != nil {
					if errors.Is(err, fs.ErrPermission) {
						return filepath.SkipDir
					}
					return nil
				}

				repos[repoPath] = RepoSprints{
					RepoPath: repoPath,
					RepoName: filepath.Base(repoPath),
					Sprints:  sprints,
				}
				return filepath.SkipDir
			}

			return nil
		})
		if err != nil {
			if errors.Is(err, fs.ErrPermission) {
				continue
			}
			return nil, fmt.Errorf("walk root %q: %w", resolvedRoot, err)
		}
	}

	out := make([]RepoSprints, 0, len(repos))
	for _, repo := range repos {
		out = append(out, repo)
	}
	sortRepoSprints(out)
	return out, nil
}

func sortRepoSprints(repos []RepoSprints) {
	sort.Slice(repos, func(i, j int) bool {
		return repos[i].RepoPath < repos[j].RepoPath
	})
}

func loadSprints(sprintsDir string) ([]sprintrunner.State, error) {
	entries, err := os.ReadDir(sprintsDir)
	if err != nil {
		return nil, err
	}

	sort.Slice(entries, func(i, j int) bool {
		return entries[i].Name() < entries[j].Name()
	})

	states := make([]sprintrunner.State, 0)
	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}

		name := entry.Name()
		if !strings.HasSuffix(name, "-state.json") {
			continue
		}

		s, err := sprintrunner.LoadStateFile(filepath.Join(sprintsDir, name))
		if err != nil {
			continue
		}
		states = append(states, *s)
	}

	return states, nil
}

func resolveRoot(root string) (string, error) {
	path := root
	if strings.HasPrefix(path, "~/") || path == "~" {
		home, err := os.UserHomeDir()
		if err != nil {
			return "", err
		}
		if path == "~" {
			path = home
		} else {
			path = filepath.Join(home, strings.TrimPrefix(path, "~/"))
		}
	}

	abs, err := filepath.Abs(path)
	if err != nil {
		return "", err
	}

	resolved, err := filepath.EvalSymlinks(abs)
	if err == nil {
		abs = resolved
	} else if !errors.Is(err, fs.ErrNotExist) && !errors.Is(err, fs.ErrPermission) {
		return "", err
	}

	info, err := os.Stat(abs)
	if err != nil {
		return "", err
	}
	if !info.IsDir() {
		return "", fmt.Errorf("not a directory: %s", abs)
	}
	return abs, nil
}

func isHiddenDir(name string) bool {
	return strings.HasPrefix(name, ".")
}
