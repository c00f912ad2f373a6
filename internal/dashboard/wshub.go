package dashboard

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/sprintforge/sprintforge/internal/chatsvc"
	"github.com/sprintforge/sprintforge/internal/eventbus"
	"github.com/sprintforge/sprintforge/internal/planmodel"
	"github.com/sprintforge/sprintforge/internal/session"
	"github.com/sprintforge/sprintforge/internal/sprintrunner"
)

// wireMessage is the envelope for every client<->server websocket frame
// (spec §6): {"type": "sprint:switch", "payload": {...}}.
type wireMessage struct {
	Type    string          `json:"type"`
	Payload json.RawMessage `json:"payload,omitempty"`
}

// WSHub serves the dashboard's richer real-time protocol over
// gorilla/websocket, kept alongside the SSEHub fallback feed per the design
// that favours additive dependency use over replacement.
type WSHub struct {
	upgrader websocket.Upgrader
	logger   *slog.Logger

	runner   *sprintrunner.Runner
	sessions *SessionRegistry
	chat     *chatsvc.Service
	hitl     *session.Controller
	handlers *Handlers

	mu      sync.Mutex
	clients map[*wsClient]struct{}
}

type wsClient struct {
	conn *websocket.Conn
	send chan wireMessage
	mu   sync.Mutex
}

// NewWSHub wires a hub against the running sprint, its session registry,
// chat service, and HITL controller.
func NewWSHub(runner *sprintrunner.Runner, sessions *SessionRegistry, chat *chatsvc.Service, hitl *session.Controller, handlers *Handlers, logger *slog.Logger) *WSHub {
	return &WSHub{
		upgrader: websocket.Upgrader{ReadBufferSize: 4096, WriteBufferSize: 4096, CheckOrigin: func(*http.Request) bool { return true }},
		logger:   logger,
		runner:   runner,
		sessions: sessions,
		chat:     chat,
		hitl:     hitl,
		handlers: handlers,
		clients:  make(map[*wsClient]struct{}),
	}
}

// Subscribe registers bus listeners that fan sprint, phase and issue events
// out to connected clients as sprint:event frames, session start/end as a
// session:list snapshot, worker output as session:output, and chat events
// under their own chat:* types. Listeners
// must be non-blocking, so broadcasting only enqueues onto each client's
// buffered send channel.
func (h *WSHub) Subscribe(bus *eventbus.Bus) {
	forward := func(msgType string) eventbus.Listener {
		return func(ev eventbus.Event) {
			h.broadcast(wireMessage{Type: msgType, Payload: marshalOrNull(ev.Payload)})
		}
	}
	bus.On(eventbus.SprintStart, forward("sprint:event"))
	bus.On(eventbus.SprintPlanned, forward("sprint:event"))
	bus.On(eventbus.SprintComplete, forward("sprint:event"))
	bus.On(eventbus.SprintError, forward("sprint:event"))
	bus.On(eventbus.SprintPaused, forward("sprint:event"))
	bus.On(eventbus.SprintResumed, forward("sprint:event"))
	bus.On(eventbus.PhaseChange, forward("sprint:event"))
	bus.On(eventbus.IssueStart, forward("sprint:event"))
	bus.On(eventbus.IssueProgress, forward("sprint:event"))
	bus.On(eventbus.IssueDone, forward("sprint:event"))
	bus.On(eventbus.IssueFail, forward("sprint:event"))
	bus.On(eventbus.SessionStart, func(eventbus.Event) { h.broadcast(wireMessage{Type: "session:list", Payload: marshalOrNull(h.sessions.List())}) })
	bus.On(eventbus.SessionEnd, func(eventbus.Event) { h.broadcast(wireMessage{Type: "session:list", Payload: marshalOrNull(h.sessions.List())}) })
	bus.On(eventbus.WorkerOutput, func(ev eventbus.Event) {
		if p, ok := ev.Payload.(eventbus.WorkerOutputPayload); ok {
			h.broadcast(wireMessage{Type: "session:output", Payload: marshalOrNull(p)})
		}
	})
	bus.On(eventbus.ChatCreated, forward("chat:created"))
	bus.On(eventbus.ChatChunk, forward("chat:chunk"))
	bus.On(eventbus.ChatDone, forward("chat:done"))
	bus.On(eventbus.ChatError, forward("chat:error"))
}

func marshalOrNull(v any) json.RawMessage {
	data, err := json.Marshal(v)
	if err != nil {
		return json.RawMessage("null")
	}
	return data
}

func (h *WSHub) broadcast(msg wireMessage) {
	h.mu.Lock()
	defer h.mu.Unlock()
	for c := range h.clients {
		select {
		case c.send <- msg:
		default:
			h.logger.Warn("wshub: dropping message for slow client", "type", msg.Type)
		}
	}
}

func (h *WSHub) addClient(c *wsClient) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.clients[c] = struct{}{}
}

func (h *WSHub) removeClient(c *wsClient) {
	h.mu.Lock()
	defer h.mu.Unlock()
	delete(h.clients, c)
	close(c.send)
}

// ServeHTTP upgrades the connection and runs its read/write pumps until
// the client disconnects.
func (h *WSHub) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.logger.Error("wshub: upgrade failed", "err", err)
		return
	}

	c := &wsClient{conn: conn, send: make(chan wireMessage, 64)}
	h.addClient(c)
	defer h.removeClient(c)

	go h.writePump(c)
	h.readPump(r.Context(), c)
}

func (h *WSHub) writePump(c *wsClient) {
	ping := time.NewTicker(30 * time.Second)
	defer ping.Stop()
	for {
		select {
		case msg, ok := <-c.send:
			if !ok {
				return
			}
			c.mu.Lock()
			err := c.conn.WriteJSON(msg)
			c.mu.Unlock()
			if err != nil {
				return
			}
		case <-ping.C:
			c.mu.Lock()
			err := c.conn.WriteJSON(wireMessage{Type: "pong"})
			c.mu.Unlock()
			if err != nil {
				return
			}
		}
	}
}

func (h *WSHub) readPump(ctx context.Context, c *wsClient) {
	for {
		var msg wireMessage
		if err := c.conn.ReadJSON(&msg); err != nil {
			return
		}
		h.dispatch(ctx, msg)
	}
}

// dispatch handles one client->server frame. Each handler is expected to
// return promptly; long-running work (a sprint phase, an agent prompt) is
// already delegated to the runner's/chat service's own goroutines.
func (h *WSHub) dispatch(ctx context.Context, msg wireMessage) {
	switch msg.Type {
	case "ping":
		h.broadcast(wireMessage{Type: "pong"})

	case "sprint:start":
		var p struct {
			SprintNumber int                   `json:"sprintNumber"`
			Config       planmodel.SprintConfig `json:"config"`
		}
		if err := json.Unmarshal(msg.Payload, &p); err != nil {
			return
		}
		go func() {
			if err := h.runner.FullCycle(ctx, p.Config); err != nil {
				h.logger.Error("wshub: sprint:start failed", "err", err)
			}
		}()

	case "sprint:pause":
		go func() { _ = h.runner.Pause(ctx) }()

	case "sprint:resume":
		go func() { _ = h.runner.Resume(ctx) }()

	case "sprint:stop":
		go func() { _ = h.runner.Stop(ctx, "dashboard request") }()

	case "sprint:switch":
		var p struct {
			SprintNumber int `json:"sprintNumber"`
		}
		if err := json.Unmarshal(msg.Payload, &p); err != nil {
			return
		}
		if s, err := h.handlers.findSprint(p.SprintNumber); err == nil {
			h.broadcast(wireMessage{Type: "sprint:switched", Payload: marshalOrNull(toState(s))})
		}

	case "session:subscribe", "session:unsubscribe":
		// Per-session filtering is left to the client; the hub always
		// broadcasts session:output to every connection.

	case "session:send-message":
		var p struct {
			SessionID string `json:"sessionId"`
			Text      string `json:"text"`
		}
		if err := json.Unmarshal(msg.Payload, &p); err != nil {
			return
		}
		h.hitl.Enqueue(p.SessionID, session.Message{Kind: session.MessageUser, Content: p.Text, Timestamp: time.Now()})

	case "session:stop":
		var p struct {
			SessionID string `json:"sessionId"`
		}
		if err := json.Unmarshal(msg.Payload, &p); err != nil {
			return
		}
		h.hitl.RequestStop(p.SessionID)

	case "chat:create":
		var p struct {
			Role       planmodel.Role `json:"role"`
			Cwd        string         `json:"cwd"`
			MCPServers []string       `json:"mcpServers"`
		}
		if err := json.Unmarshal(msg.Payload, &p); err != nil {
			return
		}
		go func() { _, _ = h.chat.Create(ctx, p.Role, p.Cwd, p.MCPServers) }()

	case "chat:send":
		var p struct {
			ChatID string `json:"chatId"`
			Text   string `json:"text"`
		}
		if err := json.Unmarshal(msg.Payload, &p); err != nil {
			return
		}
		go func() { _ = h.chat.Send(ctx, p.ChatID, p.Text) }()

	case "chat:close":
		var p struct {
			ChatID string `json:"chatId"`
		}
		if err := json.Unmarshal(msg.Payload, &p); err != nil {
			return
		}
		go func() { _ = h.chat.Close(ctx, p.ChatID) }()

	case "mode:set":
		// Autonomous/HITL toggling is read by the executor via the session
		// controller's pending-message queue; no state to flip here beyond
		// what session:send-message already drives.
	}
}
