package planmodel

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewSprintState_InitialPhase(t *testing.T) {
	st := NewSprintState(3)
	assert.Equal(t, CurrentStateVersion, st.Version)
	assert.Equal(t, 3, st.SprintNumber)
	assert.Equal(t, PhaseInit, st.Phase)
	assert.False(t, st.StartedAt.IsZero())
}

func TestSprintState_SaveAndLoad_RoundTrip(t *testing.T) {
	dir := t.TempDir()
	st := NewSprintState(7)
	st.Phase = PhaseExecute
	st.Plan = &SprintPlan{
		SprintNumber: 7,
		Issues: []SprintIssue{{Number: 42, Title: "feat: X", StoryPoints: 3}},
	}

	require.NoError(t, st.Save(dir, "acme"))

	loaded, err := LoadSprintState(dir, "acme", 7)
	require.NoError(t, err)
	assert.Equal(t, st.Phase, loaded.Phase)
	assert.Equal(t, st.SprintNumber, loaded.SprintNumber)
	require.NotNil(t, loaded.Plan)
	assert.Equal(t, 42, loaded.Plan.Issues[0].Number)
}

func TestSprintState_ResultForIssue(t *testing.T) {
	st := NewSprintState(1)
	st.SprintResult = &SprintResult{
		IssueResults: []IssueResult{
			{IssueNumber: 1, Status: IssueCompleted},
			{IssueNumber: 2, Status: IssueFailed},
		},
	}

	r, ok := st.ResultForIssue(1)
	require.True(t, ok)
	assert.Equal(t, IssueCompleted, r.Status)

	_, ok = st.ResultForIssue(99)
	assert.False(t, ok)
}

func TestQualityResult_Recompute(t *testing.T) {
	q := QualityResult{Checks: []QualityCheck{
		{Name: "tests", Passed: true},
		{Name: "lint", Passed: true},
	}}
	q.Recompute()
	assert.True(t, q.Passed)

	q.Checks = append(q.Checks, QualityCheck{Name: "build", Passed: false})
	q.Recompute()
	assert.False(t, q.Passed)
}

func TestTrackedSession_OutputRingBuffer(t *testing.T) {
	ts := &TrackedSession{SessionID: "s1"}
	for i := 0; i < 600; i++ {
		ts.AppendOutput("chunk")
	}
	assert.Len(t, ts.Output(0), maxSessionOutputChunks)
	assert.Len(t, ts.Output(10), 10)
}

func TestSprintConfig_BranchName(t *testing.T) {
	cfg := SprintConfig{Prefix: "sprint", SprintNumber: 3, BranchPattern: "{prefix}/{sprint}/issue-{issue}"}
	assert.Equal(t, "sprint/3/issue-42", cfg.BranchName(42))
}
