package promptbench

import (
	"context"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sprintforge/sprintforge/internal/planmodel"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

type scriptedAgent struct {
	responses map[string]string // keyed by example prompt
	createErr error
}

func (a *scriptedAgent) CreateSession(ctx context.Context, role planmodel.Role, issueNumber *int, cwd string, mcpServers []string) (string, error) {
	if a.createErr != nil {
		return "", a.createErr
	}
	return "sess", nil
}

func (a *scriptedAgent) EndSession(ctx context.Context, sessionID string) error { return nil }

func (a *scriptedAgent) SetModel(ctx context.Context, sessionID, modelID string) error { return nil }

func (a *scriptedAgent) SendPrompt(ctx context.Context, sessionID, text string, timeout time.Duration) (string, string, error) {
	return a.responses[text], "end_turn", nil
}

func writeExample(t *testing.T, dir, name, content string) {
	t.Helper()
	require.NoError(t, os.WriteFile(filepath.Join(dir, name), []byte(content), 0o644))
}

func TestRun_ScoresVerdictAndSubstringExpectations(t *testing.T) {
	dir := t.TempDir()
	writeExample(t, dir, "bug.yaml", `
name: has-a-bug
prompt: "review this diff"
expected:
  verdict: false
  mustContain:
    - "off-by-one"
`)
	writeExample(t, dir, "clean.yaml", `
name: looks-fine
prompt: "review this other diff"
expected:
  verdict: true
`)

	agent := &scriptedAgent{responses: map[string]string{
		"review this diff":       `{"approved": false, "issues": ["off-by-one in the loop bound"]}`,
		"review this other diff": `{"approved": true, "issues": []}`,
	}}

	h := New(agent, testLogger())
	report, err := h.Run(context.Background(), Config{Role: planmodel.RoleQualityReviewer, ExamplesDir: dir})
	require.NoError(t, err)

	assert.Equal(t, 2, report.Total)
	assert.Equal(t, 2, report.Passed)
	assert.Equal(t, 1.0, report.Accuracy)
	assert.Equal(t, 0, report.FalsePositives)
	assert.Equal(t, 0, report.FalseNegatives)
}

func TestRun_FalsePositiveWhenVerdictApprovesAnExpectedRejection(t *testing.T) {
	dir := t.TempDir()
	writeExample(t, dir, "missed.yaml", `
name: missed-bug
prompt: "review"
expected:
  verdict: false
`)

	agent := &scriptedAgent{responses: map[string]string{
		"review": `{"approved": true, "issues": []}`,
	}}

	h := New(agent, testLogger())
	report, err := h.Run(context.Background(), Config{Role: planmodel.RoleQualityReviewer, ExamplesDir: dir})
	require.NoError(t, err)

	require.Len(t, report.Results, 1)
	assert.False(t, report.Results[0].Passed)
	assert.True(t, report.Results[0].FalsePositive)
	assert.Equal(t, 0.0, report.Accuracy)
}

func TestRun_GjsonFallbackForNonStandardFieldNames(t *testing.T) {
	dir := t.TempDir()
	writeExample(t, dir, "variant.yaml", `
name: variant-shape
prompt: "classify"
expected:
  verdict: true
`)

	agent := &scriptedAgent{responses: map[string]string{
		"classify": `{"pass": true, "findings": []}`,
	}}

	h := New(agent, testLogger())
	report, err := h.Run(context.Background(), Config{Role: planmodel.RoleChallenger, ExamplesDir: dir})
	require.NoError(t, err)
	assert.Equal(t, 1, report.Passed)
}

func TestRun_UnparseableResponseFailsTheExample(t *testing.T) {
	dir := t.TempDir()
	writeExample(t, dir, "junk.yaml", `
name: junk
prompt: "go"
expected:
  verdict: true
`)

	agent := &scriptedAgent{responses: map[string]string{"go": "not json at all"}}

	h := New(agent, testLogger())
	report, err := h.Run(context.Background(), Config{Role: planmodel.RoleGeneral, ExamplesDir: dir})
	require.NoError(t, err)
	require.Len(t, report.Results, 1)
	assert.False(t, report.Results[0].Passed)
	assert.NotEmpty(t, report.Results[0].Error)
}

func TestRun_NoExamplesErrors(t *testing.T) {
	dir := t.TempDir()
	h := New(&scriptedAgent{}, testLogger())
	_, err := h.Run(context.Background(), Config{Role: planmodel.RoleGeneral, ExamplesDir: dir})
	assert.Error(t, err)
}
