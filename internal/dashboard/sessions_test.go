package dashboard

import (
	"io"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sprintforge/sprintforge/internal/eventbus"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func TestSessionRegistry_TracksStartEndAndOutput(t *testing.T) {
	bus := eventbus.New(testLogger())
	reg := NewSessionRegistry(bus)

	issueNumber := 42
	bus.Emit(eventbus.SessionStart, eventbus.SessionStartPayload{
		SessionID:   "s1",
		Role:        "implementer",
		IssueNumber: &issueNumber,
		Model:       "sonnet",
	})

	list := reg.List()
	require.Len(t, list, 1)
	assert.Equal(t, "s1", list[0].SessionID)
	assert.Equal(t, "implementer", list[0].Role)
	require.NotNil(t, list[0].IssueNumber)
	assert.Equal(t, 42, *list[0].IssueNumber)
	assert.Nil(t, list[0].EndedAt)

	bus.Emit(eventbus.WorkerOutput, eventbus.WorkerOutputPayload{SessionID: "s1", Text: "line one"})
	bus.Emit(eventbus.WorkerOutput, eventbus.WorkerOutputPayload{SessionID: "s1", Text: "line two"})

	out := reg.Output("s1", 0)
	assert.Equal(t, []string{"line one", "line two"}, out)

	bus.Emit(eventbus.SessionEnd, eventbus.SessionEndPayload{SessionID: "s1"})

	list = reg.List()
	require.Len(t, list, 1)
	assert.NotNil(t, list[0].EndedAt)
}

func TestSessionRegistry_OutputBoundedAt500Chunks(t *testing.T) {
	bus := eventbus.New(testLogger())
	reg := NewSessionRegistry(bus)

	bus.Emit(eventbus.SessionStart, eventbus.SessionStartPayload{SessionID: "s1", Role: "implementer"})
	for i := 0; i < 600; i++ {
		bus.Emit(eventbus.WorkerOutput, eventbus.WorkerOutputPayload{SessionID: "s1", Text: "chunk"})
	}

	out := reg.Output("s1", 0)
	assert.Len(t, out, maxTrackedOutputChunks)
}

func TestSessionRegistry_OutputUnknownSessionReturnsNil(t *testing.T) {
	bus := eventbus.New(testLogger())
	reg := NewSessionRegistry(bus)
	assert.Nil(t, reg.Output("missing", 10))
}

func TestSessionRegistry_ListMostRecentFirst(t *testing.T) {
	bus := eventbus.New(testLogger())
	reg := NewSessionRegistry(bus)

	bus.Emit(eventbus.SessionStart, eventbus.SessionStartPayload{SessionID: "s1", Role: "implementer"})
	bus.Emit(eventbus.SessionStart, eventbus.SessionStartPayload{SessionID: "s2", Role: "reviewer"})

	list := reg.List()
	require.Len(t, list, 2)
	// s2 started after s1, so it should sort first.
	assert.Equal(t, "s2", list[0].SessionID)
}
