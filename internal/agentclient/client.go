// Package agentclient fronts a long-lived coding-assistant child process.
// It owns the subprocess connection, multiplexes concurrently open
// sessions, streams output to both a per-session ring buffer and the
// event bus, enforces per-prompt timeouts, and rejects every in-flight
// prompt when the child exits. Grounded on the teacher's
// internal/provider/agent/claude.go subprocess mechanics (commandContext
// override, stdout/stderr piping, context-deadline timeout detection),
// generalized from one-shot exec to a persistent peer per the streaming
// EventKind/Event model of the muxd agent service (other_examples) and
// spec.md §4.3/§9.
package agentclient

import (
	"bufio"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os/exec"
	"strconv"
	"sync"
	"sync/atomic"
	"syscall"
	"time"

	"github.com/sprintforge/sprintforge/internal/eventbus"
	"github.com/sprintforge/sprintforge/internal/planmodel"
)

const (
	handshakeTimeout     = 30 * time.Second
	createSessionTimeout = 30 * time.Second
	defaultOpTimeout     = 30 * time.Second
	disconnectTimeout    = 10 * time.Second
)

// Client fronts one child process. The zero value is not usable; use New.
type Client struct {
	profile    AgentProfile
	logger     *slog.Logger
	permission PermissionPolicy
	bus        *eventbus.Bus

	// commandContext is overridable for testing, matching the teacher's idiom.
	commandContext func(ctx context.Context, name string, args ...string) *exec.Cmd

	ctx    context.Context
	cancel context.CancelFunc

	mu         sync.Mutex
	cmd        *exec.Cmd
	stdin      io.WriteCloser
	connected  bool
	connecting chan struct{}
	connectErr error
	exited     chan struct{}
	exitedOnce sync.Once

	writeMu sync.Mutex

	pendingMu sync.Mutex
	pending   map[string]chan frame
	seq       int64

	sessMu   sync.Mutex
	sessions map[string]*planmodel.TrackedSession
}

// New creates a Client for the given agent profile. No process is spawned
// until Connect is called.
func New(profile AgentProfile, logger *slog.Logger, policy PermissionPolicy, bus *eventbus.Bus) *Client {
	ctx, cancel := context.WithCancel(context.Background())
	return &Client{
		profile:        profile,
		logger:         logger,
		permission:     policy,
		bus:            bus,
		commandContext: exec.CommandContext,
		ctx:            ctx,
		cancel:         cancel,
		pending:        make(map[string]chan frame),
		sessions:       make(map[string]*planmodel.TrackedSession),
	}
}

// Connected reports whether the client currently has a live child process.
func (c *Client) Connected() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.connected
}

// Connect spawns the child process (if not already connected) and performs
// the initialize handshake. A connect already in flight is awaited rather
// than spawning a second process (spec §4.3).
func (c *Client) Connect(ctx context.Context) error {
	c.mu.Lock()
	if c.connected {
		c.mu.Unlock()
		return nil
	}
	if c.connecting != nil {
		ch := c.connecting
		c.mu.Unlock()
		<-ch
		c.mu.Lock()
		err := c.connectErr
		c.mu.Unlock()
		return err
	}
	c.connecting = make(chan struct{})
	c.mu.Unlock()

	err := c.doConnect(ctx)

	c.mu.Lock()
	c.connectErr = err
	c.connected = err == nil
	close(c.connecting)
	c.connecting = nil
	c.mu.Unlock()

	return err
}

func (c *Client) doConnect(ctx context.Context) error {
	cmd := c.commandContext(c.ctx, c.profile.Command, c.profile.Args...)

	stdin, err := cmd.StdinPipe()
	if err != nil {
		return fmt.Errorf("agentclient: stdin pipe: %w", err)
	}
	stdout, err := cmd.StdoutPipe()
	if err != nil {
		return fmt.Errorf("agentclient: stdout pipe: %w", err)
	}

	if err := cmd.Start(); err != nil {
		return fmt.Errorf("agentclient: spawn %s: %w", c.profile.Command, err)
	}

	c.mu.Lock()
	c.cmd = cmd
	c.stdin = stdin
	c.exited = make(chan struct{})
	c.exitedOnce = sync.Once{}
	c.mu.Unlock()

	go c.readLoop(stdout)
	go c.waitLoop(cmd)

	params := initializeParams{ProtocolVersion: "1", Capabilities: []string{"streaming", "tool-permissions"}}
	if _, err := c.call(ctx, methodInitialize, params, handshakeTimeout); err != nil {
		return fmt.Errorf("agentclient: handshake: %w", err)
	}
	return nil
}

// Disconnect sends SIGTERM and waits (bounded) for the child to exit. A
// Disconnect racing a pending Connect waits for that connect to finish
// first (spec §4.3).
func (c *Client) Disconnect(ctx context.Context) error {
	c.mu.Lock()
	connecting := c.connecting
	c.mu.Unlock()
	if connecting != nil {
		<-connecting
	}

	c.mu.Lock()
	if !c.connected {
		c.mu.Unlock()
		return nil
	}
	cmd := c.cmd
	exited := c.exited
	c.mu.Unlock()

	if cmd != nil && cmd.Process != nil {
		_ = cmd.Process.Signal(syscall.SIGTERM)
	}

	select {
	case <-exited:
	case <-time.After(disconnectTimeout):
		if cmd != nil && cmd.Process != nil {
			_ = cmd.Process.Kill()
		}
		<-exited
	case <-ctx.Done():
	}

	c.mu.Lock()
	c.connected = false
	c.mu.Unlock()
	return nil
}

func (c *Client) waitLoop(cmd *exec.Cmd) {
	_ = cmd.Wait()
	c.mu.Lock()
	c.connected = false
	exited := c.exited
	c.mu.Unlock()
	c.exitedOnce.Do(func() { close(exited) })
}

func (c *Client) readLoop(stdout io.Reader) {
	scanner := bufio.NewScanner(stdout)
	scanner.Buffer(make([]byte, 0, 64*1024), 8*1024*1024)
	for scanner.Scan() {
		line := scanner.Bytes()
		if len(line) == 0 {
			continue
		}
		var f frame
		if err := json.Unmarshal(line, &f); err != nil {
			if c.logger != nil {
				c.logger.Warn("agentclient: malformed frame", "error", err)
			}
			continue
		}
		c.dispatch(f)
	}
}

func (c *Client) dispatch(f frame) {
	switch f.Type {
	case frameResponse:
		c.pendingMu.Lock()
		ch, ok := c.pending[f.ID]
		c.pendingMu.Unlock()
		if ok {
			ch <- f
		}
	case frameNotification:
		switch f.Method {
		case notifyOutput:
			var p outputNotification
			if err := json.Unmarshal(f.Params, &p); err == nil {
				c.handleOutput(p)
			}
		case notifyPermissionAsk:
			var p permissionRequestNotification
			if err := json.Unmarshal(f.Params, &p); err == nil {
				c.handlePermission(p)
			}
		}
	}
}

func (c *Client) handleOutput(p outputNotification) {
	c.sessMu.Lock()
	ts, ok := c.sessions[p.SessionID]
	c.sessMu.Unlock()
	if ok {
		ts.AppendOutput(p.Text)
	}
	if c.bus != nil {
		c.bus.Emit(eventbus.WorkerOutput, eventbus.WorkerOutputPayload{SessionID: p.SessionID, Text: p.Text})
	}
}

func (c *Client) handlePermission(p permissionRequestNotification) {
	choice := c.permission.Resolve(p.ToolName, p.Options)
	params, _ := json.Marshal(permissionResponseParams{RequestID: p.RequestID, Choice: choice})
	_ = c.sendFrame(frame{Type: frameNotification, Method: methodPermissionRespond, Params: params})
}

func (c *Client) newID() string {
	return strconv.FormatInt(atomic.AddInt64(&c.seq, 1), 10)
}

func (c *Client) sendFrame(f frame) error {
	data, err := json.Marshal(f)
	if err != nil {
		return err
	}
	data = append(data, '\n')

	c.mu.Lock()
	stdin := c.stdin
	c.mu.Unlock()
	if stdin == nil {
		return ErrNotConnected
	}

	c.writeMu.Lock()
	defer c.writeMu.Unlock()
	_, err = stdin.Write(data)
	return err
}

// call sends a request frame and waits for its matching response, a
// timeout, a context cancellation, or the child process exiting —
// whichever comes first.
func (c *Client) call(ctx context.Context, method string, params any, timeout time.Duration) (json.RawMessage, error) {
	paramsBytes, err := json.Marshal(params)
	if err != nil {
		return nil, err
	}

	id := c.newID()
	ch := make(chan frame, 1)
	c.pendingMu.Lock()
	c.pending[id] = ch
	c.pendingMu.Unlock()
	defer func() {
		c.pendingMu.Lock()
		delete(c.pending, id)
		c.pendingMu.Unlock()
	}()

	if err := c.sendFrame(frame{Type: frameRequest, ID: id, Method: method, Params: paramsBytes}); err != nil {
		return nil, fmt.Errorf("agentclient: send %s: %w", method, err)
	}

	var timeoutCh <-chan time.Time
	if timeout > 0 {
		timer := time.NewTimer(timeout)
		defer timer.Stop()
		timeoutCh = timer.C
	}

	c.mu.Lock()
	exited := c.exited
	c.mu.Unlock()

	select {
	case resp := <-ch:
		if resp.Error != nil {
			return nil, errors.New(resp.Error.Message)
		}
		return resp.Result, nil
	case <-timeoutCh:
		return nil, ErrTimeout
	case <-exited:
		return nil, ErrProcessExited
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

// Close releases the client's root context, forcibly terminating the
// child process if one is still running. Call after Disconnect to free
// resources; safe to call without a prior Disconnect.
func (c *Client) Close() {
	c.cancel()
}

func (c *Client) requireConnected() error {
	if !c.Connected() {
		return ErrNotConnected
	}
	return nil
}
