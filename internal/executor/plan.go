package executor

import (
	"context"

	"github.com/sprintforge/sprintforge/internal/planmodel"
	"github.com/sprintforge/sprintforge/internal/prompttemplate"
)

// planPhase opens a planner session, sends the rendered planner template,
// and tries to parse a structured {summary, steps} response (spec §4.8
// step 3). Any failure here is logged and swallowed — execution continues
// with an empty plan, per the spec's explicit carve-out for this one phase.
func (e *Executor) planPhase(ctx context.Context, rs *runState) {
	agentCfg := e.phaseAgentConfig(rs, planmodel.RolePlanner)
	issueNum := rs.issue.Number

	sessionID, err := e.Agent.CreateSession(ctx, planmodel.RolePlanner, &issueNum, rs.path, agentCfg.MCPServers)
	if err != nil {
		e.Logger.Warn("plan phase: create session failed", "issue", issueNum, "error", err)
		return
	}
	defer func() { _ = e.Agent.EndSession(ctx, sessionID) }()

	if err := e.Agent.SetMode(ctx, sessionID, "plan"); err != nil {
		e.Logger.Warn("plan phase: set mode failed", "issue", issueNum, "error", err)
	}
	if agentCfg.ModelID != "" {
		if err := e.Agent.SetModel(ctx, sessionID, agentCfg.ModelID); err != nil {
			e.Logger.Warn("plan phase: set model failed", "issue", issueNum, "error", err)
		}
	}

	prompt := prependInstructions(agentCfg.InstructionFiles, prompttemplate.Render(e.Templates.Planner, e.baseVars(rs)))
	output, _, err := e.Agent.SendPrompt(ctx, sessionID, prompt, e.sessionTimeout(rs))
	if err != nil {
		e.Logger.Warn("plan phase: send prompt failed", "issue", issueNum, "error", err)
		return
	}

	plan, ok := prompttemplate.ParsePlanResponse(output)
	if !ok {
		rs.planSummary = prompttemplate.ResultText(output)
	} else {
		rs.planSummary = plan.Summary
		rs.expectedFiles = mergeUnique(rs.expectedFiles, plan.ExpectedFiles())
	}

	if rs.planSummary != "" {
		if err := e.Forge.AddComment(ctx, issueNum, "## Plan\n\n"+rs.planSummary); err != nil {
			e.Logger.Warn("plan phase: posting plan comment failed", "issue", issueNum, "error", err)
		}
	}
}

// tddPhase opens a test-engineer session and has it write failing tests
// for the plan before implementation begins (spec §4.8 step 4, optional).
func (e *Executor) tddPhase(ctx context.Context, rs *runState) {
	agentCfg := e.phaseAgentConfig(rs, planmodel.RoleTestEngineer)
	issueNum := rs.issue.Number

	sessionID, err := e.Agent.CreateSession(ctx, planmodel.RoleTestEngineer, &issueNum, rs.path, agentCfg.MCPServers)
	if err != nil {
		e.Logger.Warn("tdd phase: create session failed", "issue", issueNum, "error", err)
		return
	}
	defer func() { _ = e.Agent.EndSession(ctx, sessionID) }()

	if agentCfg.ModelID != "" {
		if err := e.Agent.SetModel(ctx, sessionID, agentCfg.ModelID); err != nil {
			e.Logger.Warn("tdd phase: set model failed", "issue", issueNum, "error", err)
		}
	}

	vars := e.baseVars(rs)
	vars["IMPLEMENTATION_PLAN"] = rs.planSummary
	prompt := prependInstructions(agentCfg.InstructionFiles, prompttemplate.Render(e.Templates.TDD, vars))

	output, _, err := e.Agent.SendPrompt(ctx, sessionID, prompt, e.sessionTimeout(rs))
	if err != nil {
		e.Logger.Warn("tdd phase: send prompt failed", "issue", issueNum, "error", err)
		return
	}
	summary := prompttemplate.ResultText(output)
	if len(summary) > 500 {
		summary = summary[:500] + "..."
	}
	if err := e.Forge.AddComment(ctx, issueNum, "## Tests written before implementation\n\n"+summary); err != nil {
		e.Logger.Warn("tdd phase: posting comment failed", "issue", issueNum, "error", err)
	}
}

// prependInstructions is a placeholder join point for phase instruction
// files (spec §4.8 step 3: "prepend any phase instructions"); instruction
// file contents are loaded by the caller's config layer and passed through
// PhaseAgentConfig.InstructionFiles as already-read text, not paths, so
// this simply joins them ahead of the rendered template.
func prependInstructions(instructions []string, body string) string {
	for i := len(instructions) - 1; i >= 0; i-- {
		if instructions[i] == "" {
			continue
		}
		body = instructions[i] + "\n\n" + body
	}
	return body
}

func mergeUnique(existing, extra []string) []string {
	seen := make(map[string]bool, len(existing))
	out := append([]string{}, existing...)
	for _, f := range existing {
		seen[f] = true
	}
	for _, f := range extra {
		if f == "" || seen[f] {
			continue
		}
		seen[f] = true
		out = append(out, f)
	}
	return out
}
