// Package qualitygate runs the configured local check commands against a
// branch and reports per-check pass/fail plus synthesized diff checks.
// Adapted from the teacher's internal/pipeline/hooks.go runHook/
// runHookWithRetry pair, generalized from a single pre-commit shell hook
// into a fixed bundle of named checks (spec §4.5).
package qualitygate

import (
	"context"
	"fmt"
	"log/slog"
	"os/exec"
	"strings"

	"github.com/sprintforge/sprintforge/internal/planmodel"
	"github.com/sprintforge/sprintforge/internal/worktree"
)

// DiffProvider is the subset of worktree.Manager the gate needs, kept as
// an exported interface so tests (and the executor, which depends on
// qualitygate.Gate directly rather than its own interface) can stub it
// without a real repository.
type DiffProvider interface {
	DiffStat(ctx context.Context, branch, base string) (worktree.DiffStat, error)
	GetChangedFiles(ctx context.Context, branch, base string) ([]string, error)
}

// Gate runs a quality-gate config's enabled checks in a working copy.
type Gate struct {
	Logger *slog.Logger

	commandContext func(ctx context.Context, name string, args ...string) *exec.Cmd
}

// New creates a Gate.
func New(logger *slog.Logger) *Gate {
	return &Gate{Logger: logger, commandContext: exec.CommandContext}
}

// Run executes every enabled check in dir against the config, plus the
// diff-derived checks (diff-size, scope_drift, files-changed), and returns
// a QualityResult whose Passed is the conjunction of every check. All
// checks always run — no early exit — so the report is complete (spec
// §4.5).
func (g *Gate) Run(ctx context.Context, cfg planmodel.QualityGateConfig, diffs DiffProvider, dir, branch, baseBranch string, expectedFiles []string) planmodel.QualityResult {
	var checks []planmodel.QualityCheck

	if cfg.RequireTests {
		checks = append(checks, g.runCommandCheck(ctx, "tests", planmodel.CategoryTest, cfg.TestCmd, dir))
	}
	if cfg.RequireLint {
		checks = append(checks, g.runCommandCheck(ctx, "lint", planmodel.CategoryLint, cfg.LintCmd, dir))
	}
	if cfg.RequireTypes {
		checks = append(checks, g.runCommandCheck(ctx, "types", planmodel.CategoryTypes, cfg.TypesCmd, dir))
	}
	if cfg.RequireBuild {
		checks = append(checks, g.runCommandCheck(ctx, "build", planmodel.CategoryBuild, cfg.BuildCmd, dir))
	}

	changed, err := diffs.GetChangedFiles(ctx, branch, baseBranch)
	if err != nil {
		changed = nil
		g.Logger.Warn("quality gate: could not compute changed files", "error", err)
	}

	if cfg.MaxDiffLines > 0 {
		checks = append(checks, g.diffSizeCheck(ctx, diffs, branch, baseBranch, cfg.MaxDiffLines))
	}
	if len(expectedFiles) > 0 {
		checks = append(checks, scopeDriftCheck(changed, expectedFiles))
	}
	checks = append(checks, filesChangedCheck(changed))

	result := planmodel.QualityResult{Checks: checks}
	result.Recompute()
	return result
}

func (g *Gate) runCommandCheck(ctx context.Context, name string, category planmodel.CheckCategory, command, dir string) planmodel.QualityCheck {
	if strings.TrimSpace(command) == "" {
		return planmodel.QualityCheck{Name: name, Category: category, Passed: false, Detail: "no command configured"}
	}

	g.Logger.Info("running quality check", "check", name, "cmd", command)
	cmd := g.commandContext(ctx, "sh", "-c", command)
	cmd.Dir = dir
	out, err := cmd.CombinedOutput()
	if err != nil {
		return planmodel.QualityCheck{
			Name:     name,
			Category: category,
			Passed:   false,
			Detail:   fmt.Sprintf("%s: %s", err, strings.TrimSpace(string(out))),
		}
	}
	return planmodel.QualityCheck{Name: name, Category: category, Passed: true}
}

func (g *Gate) diffSizeCheck(ctx context.Context, diffs DiffProvider, branch, baseBranch string, maxDiffLines int) planmodel.QualityCheck {
	stat, err := diffs.DiffStat(ctx, branch, baseBranch)
	if err != nil {
		return planmodel.QualityCheck{Name: "diff-size", Category: planmodel.CategoryDiff, Passed: false, Detail: err.Error()}
	}
	if stat.LinesChanged > maxDiffLines {
		return planmodel.QualityCheck{
			Name:     "diff-size",
			Category: planmodel.CategoryDiff,
			Passed:   false,
			Detail:   fmt.Sprintf("%d lines changed exceeds cap of %d", stat.LinesChanged, maxDiffLines),
		}
	}
	return planmodel.QualityCheck{Name: "diff-size", Category: planmodel.CategoryDiff, Passed: true}
}

func scopeDriftCheck(changed, expectedFiles []string) planmodel.QualityCheck {
	expected := make(map[string]bool, len(expectedFiles))
	for _, f := range expectedFiles {
		expected[f] = true
	}
	var outside []string
	for _, f := range changed {
		if !expected[f] {
			outside = append(outside, f)
		}
	}
	if len(outside) > 0 {
		return planmodel.QualityCheck{
			Name:     "scope_drift",
			Category: planmodel.CategoryDiff,
			Passed:   false,
			Detail:   fmt.Sprintf("changed files outside expected scope: %s", strings.Join(outside, ", ")),
		}
	}
	return planmodel.QualityCheck{Name: "scope_drift", Category: planmodel.CategoryDiff, Passed: true}
}

func filesChangedCheck(changed []string) planmodel.QualityCheck {
	if len(changed) == 0 {
		return planmodel.QualityCheck{Name: "files-changed", Category: planmodel.CategoryDiff, Passed: false, Detail: "no files changed"}
	}
	return planmodel.QualityCheck{Name: "files-changed", Category: planmodel.CategoryDiff, Passed: true}
}
