package qualitygate

import (
	"context"
	"io"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/sprintforge/sprintforge/internal/planmodel"
	"github.com/sprintforge/sprintforge/internal/worktree"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

type stubDiffs struct {
	stat    worktree.DiffStat
	changed []string
	err     error
}

func (s stubDiffs) DiffStat(ctx context.Context, branch, base string) (worktree.DiffStat, error) {
	return s.stat, s.err
}

func (s stubDiffs) GetChangedFiles(ctx context.Context, branch, base string) ([]string, error) {
	return s.changed, s.err
}

func TestRun_AllChecksPass(t *testing.T) {
	g := New(testLogger())
	cfg := planmodel.QualityGateConfig{
		RequireTests: true,
		TestCmd:      "true",
		MaxDiffLines: 1000,
	}
	diffs := stubDiffs{
		stat:    worktree.DiffStat{LinesChanged: 10, Files: []string{"src/x.go"}, FilesChanged: 1},
		changed: []string{"src/x.go"},
	}

	result := g.Run(context.Background(), cfg, diffs, t.TempDir(), "branch", "main", nil)
	assert.True(t, result.Passed)
	for _, c := range result.Checks {
		assert.True(t, c.Passed, "check %s should pass", c.Name)
	}
}

func TestRun_FailingTestCommand(t *testing.T) {
	g := New(testLogger())
	cfg := planmodel.QualityGateConfig{RequireTests: true, TestCmd: "false"}
	diffs := stubDiffs{changed: []string{"src/x.go"}}

	result := g.Run(context.Background(), cfg, diffs, t.TempDir(), "branch", "main", nil)
	assert.False(t, result.Passed)
}

func TestRun_DiffSizeExceeded(t *testing.T) {
	g := New(testLogger())
	cfg := planmodel.QualityGateConfig{MaxDiffLines: 5}
	diffs := stubDiffs{
		stat:    worktree.DiffStat{LinesChanged: 500},
		changed: []string{"a.go"},
	}

	result := g.Run(context.Background(), cfg, diffs, t.TempDir(), "branch", "main", nil)
	assert.False(t, result.Passed)
	found := false
	for _, c := range result.Checks {
		if c.Name == "diff-size" {
			found = true
			assert.False(t, c.Passed)
		}
	}
	assert.True(t, found)
}

func TestRun_ScopeDrift(t *testing.T) {
	g := New(testLogger())
	cfg := planmodel.QualityGateConfig{}
	diffs := stubDiffs{changed: []string{"a.go", "unexpected.go"}}

	result := g.Run(context.Background(), cfg, diffs, t.TempDir(), "branch", "main", []string{"a.go"})
	assert.False(t, result.Passed)
	found := false
	for _, c := range result.Checks {
		if c.Name == "scope_drift" {
			found = true
			assert.Contains(t, c.Detail, "unexpected.go")
		}
	}
	assert.True(t, found)
}

func TestRun_ZeroFilesChanged(t *testing.T) {
	g := New(testLogger())
	cfg := planmodel.QualityGateConfig{}
	diffs := stubDiffs{changed: nil}

	result := g.Run(context.Background(), cfg, diffs, t.TempDir(), "branch", "main", nil)
	assert.False(t, result.Passed)
	found := false
	for _, c := range result.Checks {
		if c.Name == "files-changed" {
			found = true
		}
	}
	assert.True(t, found)
}

func TestRun_NoCommandConfigured_Fails(t *testing.T) {
	g := New(testLogger())
	cfg := planmodel.QualityGateConfig{RequireLint: true}
	diffs := stubDiffs{changed: []string{"a.go"}}

	result := g.Run(context.Background(), cfg, diffs, t.TempDir(), "branch", "main", nil)
	assert.False(t, result.Passed)
}

func TestBuildFeedbackPrompt_EnumeratesFailingChecksOnly(t *testing.T) {
	result := planmodel.QualityResult{
		Checks: []planmodel.QualityCheck{
			{Name: "tests", Category: planmodel.CategoryTest, Passed: true},
			{Name: "lint", Category: planmodel.CategoryLint, Passed: false, Detail: "golangci-lint: unused import"},
		},
	}
	prompt := BuildFeedbackPrompt(result)
	assert.Contains(t, prompt, "lint")
	assert.Contains(t, prompt, "unused import")
	assert.NotContains(t, prompt, "- tests (")
}
