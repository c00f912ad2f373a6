package agentclient

import (
	"context"
	"io"
	"log/slog"
	"os/exec"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// fakeAgentScript is a tiny shell peer that speaks the framed newline-JSON
// protocol well enough to exercise Client: it echoes a canned response
// frame for each request method, preserving the request's id.
const fakeAgentScript = `
while IFS= read -r line; do
  id=$(printf '%s' "$line" | grep -o '"id":"[^"]*"' | head -1 | cut -d'"' -f4)
  case "$line" in
    *'"method":"initialize"'*)
      printf '{"type":"response","id":"%s","result":{}}\n' "$id" ;;
    *'"method":"session/create"'*)
      printf '{"type":"response","id":"%s","result":{"session_id":"sess-1","available_modes":[],"current_model":"m1"}}\n' "$id" ;;
    *'"method":"session/prompt"'*)
      printf '{"type":"response","id":"%s","result":{"response":"ok","stop_reason":"end_turn"}}\n' "$id"
      printf '{"type":"notification","method":"session/output","params":{"session_id":"sess-1","text":"working..."}}\n' ;;
    *'"method":"session/end"'*)
      printf '{"type":"response","id":"%s","result":{}}\n' "$id" ;;
    *'"method":"session/set_mode"'*)
      printf '{"type":"response","id":"%s","result":{}}\n' "$id" ;;
    *'"method":"session/set_model"'*)
      printf '{"type":"response","id":"%s","result":{}}\n' "$id" ;;
  esac
done
`

func stubScript(script string) func(ctx context.Context, name string, args ...string) *exec.Cmd {
	return func(ctx context.Context, name string, args ...string) *exec.Cmd {
		return exec.CommandContext(ctx, "sh", "-c", script)
	}
}

func newTestClient(t *testing.T, script string) *Client {
	t.Helper()
	c := New(AgentProfile{Name: "fake", Command: "fake"}, testLogger(), PermissionPolicy{}, nil)
	c.commandContext = stubScript(script)
	return c
}

func TestClient_ConnectAndHandshake(t *testing.T) {
	c := newTestClient(t, fakeAgentScript)
	defer c.Close()

	err := c.Connect(context.Background())
	require.NoError(t, err)
	assert.True(t, c.Connected())
}

func TestClient_Connect_Idempotent(t *testing.T) {
	c := newTestClient(t, fakeAgentScript)
	defer c.Close()

	require.NoError(t, c.Connect(context.Background()))
	require.NoError(t, c.Connect(context.Background())) // no second spawn
	assert.True(t, c.Connected())
}

func TestClient_Connect_ConcurrentDeduplicates(t *testing.T) {
	c := newTestClient(t, fakeAgentScript)
	defer c.Close()

	var wg sync.WaitGroup
	errs := make([]error, 10)
	for i := 0; i < 10; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			errs[i] = c.Connect(context.Background())
		}(i)
	}
	wg.Wait()
	for _, err := range errs {
		assert.NoError(t, err)
	}
}

func TestClient_SessionLifecycle(t *testing.T) {
	c := newTestClient(t, fakeAgentScript)
	defer c.Close()
	require.NoError(t, c.Connect(context.Background()))

	id, err := c.CreateSession(context.Background(), "developer", nil, t.TempDir(), nil)
	require.NoError(t, err)
	assert.Equal(t, "sess-1", id)

	resp, stopReason, err := c.SendPrompt(context.Background(), id, "implement the thing", 5*time.Second)
	require.NoError(t, err)
	assert.Equal(t, "ok", resp)
	assert.Equal(t, "end_turn", stopReason)

	require.NoError(t, c.SetMode(context.Background(), id, "act"))
	require.NoError(t, c.SetModel(context.Background(), id, "m2"))

	require.NoError(t, c.EndSession(context.Background(), id))
}

func TestClient_SessionOutput_StreamsNotifications(t *testing.T) {
	c := newTestClient(t, fakeAgentScript)
	defer c.Close()
	require.NoError(t, c.Connect(context.Background()))

	id, err := c.CreateSession(context.Background(), "developer", nil, t.TempDir(), nil)
	require.NoError(t, err)

	_, _, err = c.SendPrompt(context.Background(), id, "go", 5*time.Second)
	require.NoError(t, err)

	require.Eventually(t, func() bool {
		chunks, ok := c.SessionOutput(id, 0)
		return ok && len(chunks) > 0
	}, time.Second, 10*time.Millisecond)

	chunks, ok := c.SessionOutput(id, 0)
	require.True(t, ok)
	assert.Contains(t, chunks, "working...")
}

func TestClient_SessionOperations_RequireConnection(t *testing.T) {
	c := newTestClient(t, fakeAgentScript)
	defer c.Close()

	_, err := c.CreateSession(context.Background(), "developer", nil, t.TempDir(), nil)
	assert.ErrorIs(t, err, ErrNotConnected)
}

func TestClient_SendPrompt_Timeout(t *testing.T) {
	// initialize succeeds, session/create succeeds, but session/prompt never
	// gets a response.
	script := `
while IFS= read -r line; do
  id=$(printf '%s' "$line" | grep -o '"id":"[^"]*"' | head -1 | cut -d'"' -f4)
  case "$line" in
    *'"method":"initialize"'*)
      printf '{"type":"response","id":"%s","result":{}}\n' "$id" ;;
    *'"method":"session/create"'*)
      printf '{"type":"response","id":"%s","result":{"session_id":"sess-1","available_modes":[],"current_model":"m1"}}\n' "$id" ;;
  esac
done
`
	c := newTestClient(t, script)
	defer c.Close()
	require.NoError(t, c.Connect(context.Background()))

	id, err := c.CreateSession(context.Background(), "developer", nil, t.TempDir(), nil)
	require.NoError(t, err)

	_, _, err = c.SendPrompt(context.Background(), id, "go", 100*time.Millisecond)
	assert.ErrorIs(t, err, ErrTimeout)
}

func TestClient_ProcessExit_RejectsInFlightPrompt(t *testing.T) {
	// session/create responds, but the process exits before answering the
	// prompt (stdin is fully drained then the peer quits).
	script := `
while IFS= read -r line; do
  id=$(printf '%s' "$line" | grep -o '"id":"[^"]*"' | head -1 | cut -d'"' -f4)
  case "$line" in
    *'"method":"initialize"'*)
      printf '{"type":"response","id":"%s","result":{}}\n' "$id" ;;
    *'"method":"session/create"'*)
      printf '{"type":"response","id":"%s","result":{"session_id":"sess-1","available_modes":[],"current_model":"m1"}}\n' "$id"
      exit 0 ;;
  esac
done
`
	c := newTestClient(t, script)
	defer c.Close()
	require.NoError(t, c.Connect(context.Background()))

	id, err := c.CreateSession(context.Background(), "developer", nil, t.TempDir(), nil)
	require.NoError(t, err)

	_, _, err = c.SendPrompt(context.Background(), id, "go", 5*time.Second)
	assert.ErrorIs(t, err, ErrProcessExited)
	assert.Eventually(t, func() bool { return !c.Connected() }, time.Second, 10*time.Millisecond)
}

func TestClient_Connect_SpawnFailure(t *testing.T) {
	c := New(AgentProfile{Name: "fake", Command: "fake"}, testLogger(), PermissionPolicy{}, nil)
	c.commandContext = func(ctx context.Context, name string, args ...string) *exec.Cmd {
		return exec.CommandContext(ctx, "/nonexistent/binary-does-not-exist")
	}
	defer c.Close()

	err := c.Connect(context.Background())
	require.Error(t, err)
	assert.False(t, c.Connected())
}

func TestClient_Disconnect_WaitsForPendingConnect(t *testing.T) {
	c := newTestClient(t, fakeAgentScript)
	defer c.Close()

	connectDone := make(chan error, 1)
	go func() { connectDone <- c.Connect(context.Background()) }()

	require.NoError(t, c.Disconnect(context.Background()))
	require.NoError(t, <-connectDone)
}

func TestClient_Disconnect_NotConnected_NoOp(t *testing.T) {
	c := newTestClient(t, fakeAgentScript)
	defer c.Close()
	assert.NoError(t, c.Disconnect(context.Background()))
}

func TestClient_EndSession_PropagatesError(t *testing.T) {
	script := `
while IFS= read -r line; do
  id=$(printf '%s' "$line" | grep -o '"id":"[^"]*"' | head -1 | cut -d'"' -f4)
  case "$line" in
    *'"method":"initialize"'*)
      printf '{"type":"response","id":"%s","result":{}}\n' "$id" ;;
    *'"method":"session/end"'*)
      printf '{"type":"response","id":"%s","error":{"message":"no such session"}}\n' "$id" ;;
  esac
done
`
	c := newTestClient(t, script)
	defer c.Close()
	require.NoError(t, c.Connect(context.Background()))

	err := c.EndSession(context.Background(), "missing")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "no such session")
}
