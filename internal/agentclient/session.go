package agentclient

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/sprintforge/sprintforge/internal/eventbus"
	"github.com/sprintforge/sprintforge/internal/planmodel"
)

// CreateSession opens a new session rooted at cwd and returns its ID. The
// child may attach MCP servers named in mcpServers.
func (c *Client) CreateSession(ctx context.Context, role planmodel.Role, issueNumber *int, cwd string, mcpServers []string) (string, error) {
	if err := c.requireConnected(); err != nil {
		return "", err
	}

	res, err := c.call(ctx, methodCreateSession, createSessionParams{Cwd: cwd, MCPServers: mcpServers}, createSessionTimeout)
	if err != nil {
		return "", fmt.Errorf("agentclient: create session: %w", err)
	}
	var result createSessionResult
	if err := json.Unmarshal(res, &result); err != nil {
		return "", fmt.Errorf("agentclient: decode create session result: %w", err)
	}

	ts := &planmodel.TrackedSession{
		SessionID:   result.SessionID,
		Role:        role,
		IssueNumber: issueNumber,
		ModelID:     result.CurrentModel,
		StartedAt:   time.Now(),
	}
	c.sessMu.Lock()
	c.sessions[result.SessionID] = ts
	c.sessMu.Unlock()

	if c.bus != nil {
		c.bus.Emit(eventbus.SessionStart, eventbus.SessionStartPayload{
			SessionID:   result.SessionID,
			Role:        string(role),
			IssueNumber: issueNumber,
			Model:       result.CurrentModel,
		})
	}
	return result.SessionID, nil
}

// EndSession closes a session and marks its tracked record ended.
func (c *Client) EndSession(ctx context.Context, sessionID string) error {
	if err := c.requireConnected(); err != nil {
		return err
	}
	_, err := c.call(ctx, methodEndSession, endSessionParams{SessionID: sessionID}, defaultOpTimeout)

	c.sessMu.Lock()
	ts, ok := c.sessions[sessionID]
	c.sessMu.Unlock()
	if ok {
		ts.End()
	}
	if c.bus != nil {
		c.bus.Emit(eventbus.SessionEnd, eventbus.SessionEndPayload{SessionID: sessionID})
	}
	if err != nil {
		return fmt.Errorf("agentclient: end session %s: %w", sessionID, err)
	}
	return nil
}

// SetMode switches a session's operating mode (e.g. plan vs. act).
func (c *Client) SetMode(ctx context.Context, sessionID, mode string) error {
	if err := c.requireConnected(); err != nil {
		return err
	}
	if _, err := c.call(ctx, methodSetMode, setModeParams{SessionID: sessionID, Mode: mode}, defaultOpTimeout); err != nil {
		return fmt.Errorf("agentclient: set mode: %w", err)
	}
	return nil
}

// SetModel switches a session's underlying model.
func (c *Client) SetModel(ctx context.Context, sessionID, modelID string) error {
	if err := c.requireConnected(); err != nil {
		return err
	}
	if _, err := c.call(ctx, methodSetModel, setModelParams{SessionID: sessionID, ModelID: modelID}, defaultOpTimeout); err != nil {
		return fmt.Errorf("agentclient: set model: %w", err)
	}
	c.sessMu.Lock()
	if ts, ok := c.sessions[sessionID]; ok {
		ts.ModelID = modelID
	}
	c.sessMu.Unlock()
	return nil
}

// SendPrompt sends a prompt to an open session and blocks for its final
// response, up to timeout. The profile's PromptSuffix, if any, is appended
// (e.g. ralph's completion-marker instructions).
func (c *Client) SendPrompt(ctx context.Context, sessionID, text string, timeout time.Duration) (response, stopReason string, err error) {
	if err := c.requireConnected(); err != nil {
		return "", "", err
	}
	if c.profile.PromptSuffix != "" {
		text += c.profile.PromptSuffix
	}
	if timeout <= 0 {
		timeout = defaultOpTimeout
	}

	res, err := c.call(ctx, methodSendPrompt, sendPromptParams{SessionID: sessionID, Text: text}, timeout)
	if err != nil {
		return "", "", fmt.Errorf("agentclient: send prompt: %w", err)
	}
	var result sendPromptResult
	if err := json.Unmarshal(res, &result); err != nil {
		return "", "", fmt.Errorf("agentclient: decode prompt result: %w", err)
	}
	return result.Response, result.StopReason, nil
}

// SessionOutput returns a snapshot of the last n streamed output chunks for
// a session (n<=0 returns all retained chunks). Ok is false for an unknown
// session ID.
func (c *Client) SessionOutput(sessionID string, n int) (chunks []string, ok bool) {
	c.sessMu.Lock()
	ts, found := c.sessions[sessionID]
	c.sessMu.Unlock()
	if !found {
		return nil, false
	}
	return ts.Output(n), true
}
