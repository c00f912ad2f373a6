package executor

import (
	"context"
	"fmt"

	"github.com/sprintforge/sprintforge/internal/eventbus"
	"github.com/sprintforge/sprintforge/internal/planmodel"
	"github.com/sprintforge/sprintforge/internal/prompttemplate"
)

const implementLogSnapshotLines = 50

// implementPhase opens the developer session and sends the worker prompt
// (spec §4.8 step 5). After the first response, it drains the session
// controller's operator message queue in a loop, forwarding each queued
// message into the same session as a follow-up prompt, until the queue is
// empty or the operator's stop flag is observed. The session is left open
// — its ID is reused by the quality-retry and code-review phases.
func (e *Executor) implementPhase(ctx context.Context, rs *runState) error {
	agentCfg := e.phaseAgentConfig(rs, planmodel.RoleDeveloper)
	issueNum := rs.issue.Number

	sessionID, err := e.Agent.CreateSession(ctx, planmodel.RoleDeveloper, &issueNum, rs.path, agentCfg.MCPServers)
	if err != nil {
		return fmt.Errorf("create developer session: %w", err)
	}
	rs.devSessionID = sessionID

	if agentCfg.ModelID != "" {
		if err := e.Agent.SetModel(ctx, sessionID, agentCfg.ModelID); err != nil {
			e.Logger.Warn("implement phase: set model failed", "issue", issueNum, "error", err)
		}
	}

	vars := e.baseVars(rs)
	worker := prompttemplate.Render(e.Templates.Worker, vars)
	if rs.planSummary != "" {
		worker += "\n\n## Implementation Plan (follow this)\n\n" + rs.planSummary
	}
	prompt := prependInstructions(agentCfg.InstructionFiles, worker)

	output, _, err := e.Agent.SendPrompt(ctx, sessionID, prompt, e.sessionTimeout(rs))
	if err != nil {
		rs.timedOut = isTimeoutErr(err)
		return fmt.Errorf("send worker prompt: %w", err)
	}
	rs.lastOutput = lastLines(output, implementLogSnapshotLines)

	e.drainOperatorMessages(ctx, rs)
	rs.lastOutput = snapshotSessionOutput(e.Agent, sessionID, implementLogSnapshotLines, rs.lastOutput)
	return nil
}

// drainOperatorMessages loops until the session controller's queue for the
// developer session is empty or a stop has been requested.
func (e *Executor) drainOperatorMessages(ctx context.Context, rs *runState) {
	if e.Sessions == nil {
		return
	}
	for {
		if e.Sessions.ShouldStop(rs.devSessionID) {
			e.emitWorkerOutput(rs.devSessionID, "Session stopped by user")
			return
		}
		msgs := e.Sessions.Drain(rs.devSessionID)
		if len(msgs) == 0 {
			return
		}
		for _, msg := range msgs {
			e.emitWorkerOutput(rs.devSessionID, "--- operator message ---")
			output, _, err := e.Agent.SendPrompt(ctx, rs.devSessionID, msg.Content, e.sessionTimeout(rs))
			if err != nil {
				e.Logger.Warn("implement phase: operator message prompt failed", "issue", rs.issue.Number, "error", err)
				rs.timedOut = rs.timedOut || isTimeoutErr(err)
				continue
			}
			rs.lastOutput = lastLines(output, implementLogSnapshotLines)
		}
	}
}

func (e *Executor) emitWorkerOutput(sessionID, text string) {
	if e.Bus == nil {
		return
	}
	e.Bus.Emit(eventbus.WorkerOutput, eventbus.WorkerOutputPayload{SessionID: sessionID, Text: text})
}

func snapshotSessionOutput(agent interface {
	SessionOutput(sessionID string, n int) ([]string, bool)
}, sessionID string, n int, fallback []string) []string {
	if chunks, ok := agent.SessionOutput(sessionID, n); ok && len(chunks) > 0 {
		return chunks
	}
	return fallback
}

func lastLines(text string, n int) []string {
	lines := splitLines(text)
	if len(lines) <= n {
		return lines
	}
	return lines[len(lines)-n:]
}

func splitLines(text string) []string {
	var lines []string
	start := 0
	for i, r := range text {
		if r == '\n' {
			lines = append(lines, text[start:i])
			start = i + 1
		}
	}
	lines = append(lines, text[start:])
	return lines
}
