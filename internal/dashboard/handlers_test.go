package dashboard

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strconv"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sprintforge/sprintforge/internal/forge"
)

type fakeForgeAdapter struct {
	issues []forge.Issue
}

func (f *fakeForgeAdapter) GetIssue(ctx context.Context, number int) (forge.Issue, error) {
	return forge.Issue{}, nil
}
func (f *fakeForgeAdapter) ListIssues(ctx context.Context, opts forge.ListIssuesOptions) ([]forge.Issue, error) {
	var out []forge.Issue
	for _, iss := range f.issues {
		if len(opts.Labels) == 0 {
			out = append(out, iss)
			continue
		}
		for _, want := range opts.Labels {
			if hasLabel(iss.Labels, want) {
				out = append(out, iss)
				break
			}
		}
	}
	return out, nil
}
func (f *fakeForgeAdapter) AddComment(ctx context.Context, number int, body string) error { return nil }
func (f *fakeForgeAdapter) SetLabel(ctx context.Context, number int, label string) error   { return nil }
func (f *fakeForgeAdapter) CreateIssue(ctx context.Context, title, body string, labels []string) (forge.Issue, error) {
	return forge.Issue{}, nil
}
func (f *fakeForgeAdapter) ListSprintMilestones(ctx context.Context, prefix string) ([]forge.Milestone, error) {
	return nil, nil
}
func (f *fakeForgeAdapter) GetNextOpenMilestone(ctx context.Context, prefix string) (forge.Milestone, bool, error) {
	return forge.Milestone{}, false, nil
}
func (f *fakeForgeAdapter) GetPRStats(ctx context.Context, branch string) (*forge.PRStats, error) {
	return nil, nil
}
func (f *fakeForgeAdapter) MergeIssuePR(ctx context.Context, branch string, opts forge.MergeOptions) (forge.MergeResult, error) {
	return forge.MergeResult{}, nil
}

func writeSprintStateJSONForHandlers(t *testing.T, projectPath, slug string, n int) {
	t.Helper()
	dir := filepath.Join(projectPath, "docs", "sprints")
	require.NoError(t, os.MkdirAll(dir, 0o755))
	data := []byte(`{"slug":"` + slug + `","sprint_number":` + strconv.Itoa(n) + `,"phase":"execute"}`)
	require.NoError(t, os.WriteFile(filepath.Join(dir, slug+"-state.json"), data, 0o644))
}

func TestHandleListSprints_ReturnsLocalSprints(t *testing.T) {
	dir := t.TempDir()
	writeSprintStateJSONForHandlers(t, dir, "checkout", 1)
	writeSprintStateJSONForHandlers(t, dir, "billing", 2)

	h := &Handlers{ProjectPath: dir}
	req := httptest.NewRequest(http.MethodGet, "/api/sprints", nil)
	rec := httptest.NewRecorder()
	h.HandleListSprints(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	var summaries []SprintSummary
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &summaries))
	require.Len(t, summaries, 2)
	assert.Equal(t, 1, summaries[0].Number)
	assert.Equal(t, 2, summaries[1].Number)
}

func TestHandleSprintState_NotFoundReturns404(t *testing.T) {
	dir := t.TempDir()
	h := &Handlers{ProjectPath: dir, Slug: "checkout"}

	req := httptest.NewRequest(http.MethodGet, "/api/sprints/9/state", nil)
	req.SetPathValue("n", "9")
	rec := httptest.NewRecorder()
	h.HandleSprintState(rec, req)

	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestHandleSprintState_FoundReturnsFullState(t *testing.T) {
	dir := t.TempDir()
	writeSprintStateJSONForHandlers(t, dir, "checkout", 1)
	h := &Handlers{ProjectPath: dir, Slug: "checkout"}

	req := httptest.NewRequest(http.MethodGet, "/api/sprints/1/state", nil)
	req.SetPathValue("n", "1")
	rec := httptest.NewRecorder()
	h.HandleSprintState(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	var state SprintState
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &state))
	assert.Equal(t, "checkout", state.Slug)
	assert.Equal(t, 1, state.Number)
}

func TestHandleBacklog_FiltersRefinedAndDedupesLabels(t *testing.T) {
	adapter := &fakeForgeAdapter{issues: []forge.Issue{
		{Number: 1, Title: "idea one", Labels: []string{"type:idea"}, State: "open"},
		{Number: 2, Title: "improved thing", Labels: []string{"type:improvement"}, State: "open"},
		{Number: 3, Title: "already refined", Labels: []string{"type:idea", "status:refined"}, State: "open"},
	}}
	h := &Handlers{Forge: adapter}

	req := httptest.NewRequest(http.MethodGet, "/api/backlog", nil)
	rec := httptest.NewRecorder()
	h.HandleBacklog(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	var out []IdeaSummary
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &out))
	require.Len(t, out, 2)
	assert.Equal(t, 1, out[0].Number)
	assert.Equal(t, 2, out[1].Number)
}

func TestHandleIdeas_OnlyIdeaLabel(t *testing.T) {
	adapter := &fakeForgeAdapter{issues: []forge.Issue{
		{Number: 1, Title: "idea one", Labels: []string{"type:idea"}, State: "open"},
	}}
	h := &Handlers{Forge: adapter}

	req := httptest.NewRequest(http.MethodGet, "/api/ideas", nil)
	rec := httptest.NewRecorder()
	h.HandleIdeas(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	var out []IdeaSummary
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &out))
	require.Len(t, out, 1)
	assert.Equal(t, "idea one", out[0].Title)
}

func TestHandleSessions_ReturnsRegistrySnapshot(t *testing.T) {
	h := &Handlers{Sessions: &SessionRegistry{sessions: map[string]*trackedSession{}}}

	req := httptest.NewRequest(http.MethodGet, "/api/sessions", nil)
	rec := httptest.NewRecorder()
	h.HandleSessions(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	var out []SessionSummary
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &out))
	assert.Empty(t, out)
}
