package sprintrunner

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sprintforge/sprintforge/internal/forge"
	"github.com/sprintforge/sprintforge/internal/planmodel"
)

type fakeAgentClient struct {
	response string
}

func (f *fakeAgentClient) CreateSession(ctx context.Context, role planmodel.Role, issueNumber *int, cwd string, mcpServers []string) (string, error) {
	return "session-1", nil
}
func (f *fakeAgentClient) EndSession(ctx context.Context, sessionID string) error { return nil }
func (f *fakeAgentClient) SetModel(ctx context.Context, sessionID, modelID string) error {
	return nil
}
func (f *fakeAgentClient) SendPrompt(ctx context.Context, sessionID, text string, timeout time.Duration) (string, string, error) {
	return f.response, "end_turn", nil
}

type fakeForge struct {
	forge.Adapter
	issues   []forge.Issue
	labels   map[int][]string
	comments map[int][]string
}

func newFakeForge(issues []forge.Issue) *fakeForge {
	return &fakeForge{issues: issues, labels: map[int][]string{}, comments: map[int][]string{}}
}

func (f *fakeForge) ListIssues(ctx context.Context, opts forge.ListIssuesOptions) ([]forge.Issue, error) {
	return f.issues, nil
}

func (f *fakeForge) AddComment(ctx context.Context, number int, body string) error {
	f.comments[number] = append(f.comments[number], body)
	return nil
}

func (f *fakeForge) SetLabel(ctx context.Context, number int, label string) error {
	f.labels[number] = append(f.labels[number], label)
	return nil
}

func TestRefine_AppliesRefinedLabelAlongsideComment(t *testing.T) {
	fg := newFakeForge([]forge.Issue{{Number: 1, Title: "fix bug"}, {Number: 2, Title: "add feature"}})
	agent := &fakeAgentClient{response: `{"issues":[{"number":1,"ice_score":8.5,"notes":"quick win"},{"number":2,"ice_score":3.0}]}`}

	c := NewAgentCeremonies(agent, fg, "proj", "acme", "widgets", "/tmp/proj", time.Minute, Templates{}, testLogger())

	err := c.Refine(context.Background(), planmodel.SprintConfig{SprintNumber: 1})
	require.NoError(t, err)

	assert.Equal(t, []string{"status:refined"}, fg.labels[1])
	assert.Equal(t, []string{"status:refined"}, fg.labels[2])
	assert.Len(t, fg.comments[1], 1)
	assert.Contains(t, fg.comments[1][0], "ICE score: 8.5")
}

func TestRefine_EmptyBacklogSkipsAgentAndLabels(t *testing.T) {
	fg := newFakeForge(nil)
	agent := &fakeAgentClient{}

	c := NewAgentCeremonies(agent, fg, "proj", "acme", "widgets", "/tmp/proj", time.Minute, Templates{}, testLogger())

	err := c.Refine(context.Background(), planmodel.SprintConfig{SprintNumber: 1})
	require.NoError(t, err)
	assert.Empty(t, fg.labels)
}
