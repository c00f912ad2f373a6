package chatsvc

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sprintforge/sprintforge/internal/eventbus"
	"github.com/sprintforge/sprintforge/internal/planmodel"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

type fakeAgent struct {
	sessionID string
	createErr error
	sendErr   error
	sendResp  string
	sendStop  string
	ended     []string
}

func (f *fakeAgent) CreateSession(ctx context.Context, role planmodel.Role, issueNumber *int, cwd string, mcpServers []string) (string, error) {
	if f.createErr != nil {
		return "", f.createErr
	}
	return f.sessionID, nil
}

func (f *fakeAgent) EndSession(ctx context.Context, sessionID string) error {
	f.ended = append(f.ended, sessionID)
	return nil
}

func (f *fakeAgent) SetModel(ctx context.Context, sessionID, modelID string) error {
	return nil
}

func (f *fakeAgent) SendPrompt(ctx context.Context, sessionID, text string, timeout time.Duration) (string, string, error) {
	if f.sendErr != nil {
		return "", "", f.sendErr
	}
	return f.sendResp, f.sendStop, nil
}

func TestCreate_EmitsChatCreatedAndForwardsWorkerOutputAsChunks(t *testing.T) {
	bus := eventbus.New(nil)
	agent := &fakeAgent{sessionID: "sess-1"}
	svc := New(agent, bus, time.Second, testLogger())

	var created eventbus.ChatCreatedPayload
	var chunks []string
	bus.On(eventbus.ChatCreated, func(ev eventbus.Event) { created = ev.Payload.(eventbus.ChatCreatedPayload) })
	bus.On(eventbus.ChatChunk, func(ev eventbus.Event) {
		chunks = append(chunks, ev.Payload.(eventbus.ChatChunkPayload).Text)
	})

	chatID, err := svc.Create(context.Background(), planmodel.RoleGeneral, "/tmp/proj", nil)
	require.NoError(t, err)
	assert.Equal(t, "chat-1", chatID)
	assert.Equal(t, "chat-1", created.ChatID)

	bus.Emit(eventbus.WorkerOutput, eventbus.WorkerOutputPayload{SessionID: "sess-1", Text: "hello"})
	bus.Emit(eventbus.WorkerOutput, eventbus.WorkerOutputPayload{SessionID: "other-session", Text: "ignored"})

	require.Len(t, chunks, 1)
	assert.Equal(t, "hello", chunks[0])
}

func TestSend_EmitsChatDoneOnSuccessAndChatErrorOnFailure(t *testing.T) {
	bus := eventbus.New(nil)
	agent := &fakeAgent{sessionID: "sess-2", sendResp: "ok", sendStop: "end_turn"}
	svc := New(agent, bus, time.Second, testLogger())

	chatID, err := svc.Create(context.Background(), planmodel.RoleGeneral, "/tmp/proj", nil)
	require.NoError(t, err)

	var done eventbus.ChatDonePayload
	bus.On(eventbus.ChatDone, func(ev eventbus.Event) { done = ev.Payload.(eventbus.ChatDonePayload) })

	require.NoError(t, svc.Send(context.Background(), chatID, "hi"))
	assert.Equal(t, "end_turn", done.StopReason)

	agent.sendErr = errors.New("boom")
	var chatErr eventbus.ChatErrorPayload
	bus.On(eventbus.ChatError, func(ev eventbus.Event) { chatErr = ev.Payload.(eventbus.ChatErrorPayload) })

	err = svc.Send(context.Background(), chatID, "hi again")
	require.Error(t, err)
	assert.Equal(t, "boom", chatErr.Error)
}

func TestSend_UnknownChatID(t *testing.T) {
	svc := New(&fakeAgent{}, eventbus.New(nil), time.Second, testLogger())
	err := svc.Send(context.Background(), "nope", "hi")
	assert.Error(t, err)
}

func TestClose_EndsSessionAndRemovesListener(t *testing.T) {
	bus := eventbus.New(nil)
	agent := &fakeAgent{sessionID: "sess-3"}
	svc := New(agent, bus, time.Second, testLogger())

	chatID, err := svc.Create(context.Background(), planmodel.RoleGeneral, "/tmp/proj", nil)
	require.NoError(t, err)

	require.NoError(t, svc.Close(context.Background(), chatID))
	assert.Equal(t, []string{"sess-3"}, agent.ended)

	var chunks int
	bus.On(eventbus.ChatChunk, func(ev eventbus.Event) { chunks++ })
	bus.Emit(eventbus.WorkerOutput, eventbus.WorkerOutputPayload{SessionID: "sess-3", Text: "late"})
	assert.Equal(t, 0, chunks, "closed chat must no longer receive worker output")

	err = svc.Send(context.Background(), chatID, "hi")
	assert.Error(t, err, "sending to a closed chat must fail")
}
