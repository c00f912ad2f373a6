// Package chatsvc is the chat/session-viewer service (spec §4.11): a
// long-running collaborator of the dashboard that opens one ad-hoc agent
// session per role on demand, streams its output chunks over the event
// bus, forwards operator text into the session, and tears it down on
// close. Grounded on muxd's (other_examples) Service/EventFunc shape for
// driving an agent loop independent of any one UI, adapted here so the
// event sink is the project's own eventbus.Bus rather than a callback
// wired per adapter, and on the agent client's own session lifecycle
// (internal/agentclient) which chatsvc drives through a separate
// "chat-" session-id namespace from the sprint runner and executor.
package chatsvc

import (
	"context"
	"fmt"
	"log/slog"
	"strconv"
	"sync"
	"sync/atomic"
	"time"

	"github.com/sprintforge/sprintforge/internal/eventbus"
	"github.com/sprintforge/sprintforge/internal/planmodel"
)

// AgentClient is the subset of *agentclient.Client a chat session drives.
type AgentClient interface {
	CreateSession(ctx context.Context, role planmodel.Role, issueNumber *int, cwd string, mcpServers []string) (string, error)
	EndSession(ctx context.Context, sessionID string) error
	SetModel(ctx context.Context, sessionID, modelID string) error
	SendPrompt(ctx context.Context, sessionID, text string, timeout time.Duration) (response, stopReason string, err error)
}

type chat struct {
	chatID    string
	sessionID string
	role      planmodel.Role
	listener  eventbus.Listener
}

// Service owns the live chat-to-agent-session mapping. The zero value is
// not usable; use New.
type Service struct {
	Agent          AgentClient
	Bus            *eventbus.Bus
	SessionTimeout time.Duration
	Logger         *slog.Logger

	seq int64

	mu    sync.Mutex
	chats map[string]*chat
}

// New constructs a Service.
func New(agent AgentClient, bus *eventbus.Bus, sessionTimeout time.Duration, logger *slog.Logger) *Service {
	return &Service{
		Agent:          agent,
		Bus:            bus,
		SessionTimeout: sessionTimeout,
		Logger:         logger,
		chats:          make(map[string]*chat),
	}
}

func (s *Service) nextChatID() string {
	n := atomic.AddInt64(&s.seq, 1)
	return "chat-" + strconv.FormatInt(n, 10)
}

// Create opens an ad-hoc agent session for role in cwd and returns a chat
// id in a namespace distinct from the sprint runner's session ids
// (spec §4.11: "a separate session-id namespace"). From this point, any
// worker:output the underlying agent session emits is re-published as
// chat:chunk under this chat id.
func (s *Service) Create(ctx context.Context, role planmodel.Role, cwd string, mcpServers []string) (string, error) {
	sessionID, err := s.Agent.CreateSession(ctx, role, nil, cwd, mcpServers)
	if err != nil {
		return "", fmt.Errorf("chatsvc: creating session: %w", err)
	}

	chatID := s.nextChatID()
	c := &chat{chatID: chatID, sessionID: sessionID, role: role}
	c.listener = func(ev eventbus.Event) {
		p, ok := ev.Payload.(eventbus.WorkerOutputPayload)
		if !ok || p.SessionID != sessionID {
			return
		}
		if s.Bus != nil {
			s.Bus.Emit(eventbus.ChatChunk, eventbus.ChatChunkPayload{ChatID: chatID, Text: p.Text})
		}
	}

	s.mu.Lock()
	s.chats[chatID] = c
	s.mu.Unlock()

	if s.Bus != nil {
		s.Bus.On(eventbus.WorkerOutput, c.listener)
		s.Bus.Emit(eventbus.ChatCreated, eventbus.ChatCreatedPayload{ChatID: chatID, Role: string(role)})
	}
	return chatID, nil
}

// SetModel switches the chat's underlying session model.
func (s *Service) SetModel(ctx context.Context, chatID, modelID string) error {
	c, ok := s.lookup(chatID)
	if !ok {
		return fmt.Errorf("chatsvc: unknown chat %q", chatID)
	}
	return s.Agent.SetModel(ctx, c.sessionID, modelID)
}

// Send forwards operator text into the chat's session and emits
// chat:done on completion or chat:error on failure (spec §4.11 "chat:send").
func (s *Service) Send(ctx context.Context, chatID, text string) error {
	c, ok := s.lookup(chatID)
	if !ok {
		return fmt.Errorf("chatsvc: unknown chat %q", chatID)
	}

	timeout := s.SessionTimeout
	_, stopReason, err := s.Agent.SendPrompt(ctx, c.sessionID, text, timeout)
	if err != nil {
		if s.Bus != nil {
			s.Bus.Emit(eventbus.ChatError, eventbus.ChatErrorPayload{ChatID: chatID, Error: err.Error()})
		}
		return fmt.Errorf("chatsvc: send: %w", err)
	}
	if s.Bus != nil {
		s.Bus.Emit(eventbus.ChatDone, eventbus.ChatDonePayload{ChatID: chatID, StopReason: stopReason})
	}
	return nil
}

// Close tears down the chat's session and unregisters its output listener
// (spec §4.11 "chat:close").
func (s *Service) Close(ctx context.Context, chatID string) error {
	s.mu.Lock()
	c, ok := s.chats[chatID]
	if ok {
		delete(s.chats, chatID)
	}
	s.mu.Unlock()
	if !ok {
		return nil
	}
	if s.Bus != nil && c.listener != nil {
		s.Bus.Off(eventbus.WorkerOutput, c.listener)
	}
	return s.Agent.EndSession(ctx, c.sessionID)
}

func (s *Service) lookup(chatID string) (*chat, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	c, ok := s.chats[chatID]
	return c, ok
}
