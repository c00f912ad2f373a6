package forge

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeAdapter implements Adapter, recording CreateIssue calls. Embedding the
// nil interface means any unexercised method panics rather than silently
// succeeding, which is fine here since Escalate only ever calls CreateIssue.
type fakeAdapter struct {
	Adapter
	created []Issue
	err     error
}

func (f *fakeAdapter) CreateIssue(ctx context.Context, title, body string, labels []string) (Issue, error) {
	if f.err != nil {
		return Issue{}, f.err
	}
	issue := Issue{Number: len(f.created) + 1, Title: title, Body: body, Labels: labels}
	f.created = append(f.created, issue)
	return issue, nil
}

func TestEscalate_MustLevelCreatesHumanDecisionNeededIssue(t *testing.T) {
	fa := &fakeAdapter{}
	e := &Escalator{Forge: fa, Logger: testLogger()}

	err := e.Escalate(context.Background(), EscalationMust, "sprint group 2 blocked", "every issue in group 2 failed")
	require.NoError(t, err)

	require.Len(t, fa.created, 1)
	assert.Equal(t, "sprint group 2 blocked", fa.created[0].Title)
	assert.Equal(t, []string{"human-decision-needed"}, fa.created[0].Labels)
}

func TestEscalate_ShouldLevelDoesNotCreateForgeIssue(t *testing.T) {
	fa := &fakeAdapter{}
	e := &Escalator{Forge: fa, Logger: testLogger()}

	err := e.Escalate(context.Background(), EscalationShould, "heads up", "quality gate flaky")
	require.NoError(t, err)
	assert.Empty(t, fa.created)
}

func TestEscalate_NilForgeSkipsIssueCreation(t *testing.T) {
	e := &Escalator{Logger: testLogger()}

	err := e.Escalate(context.Background(), EscalationMust, "title", "message")
	require.NoError(t, err)
}
