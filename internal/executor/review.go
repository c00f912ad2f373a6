package executor

import (
	"context"
	"fmt"
	"strings"

	"github.com/sprintforge/sprintforge/internal/planmodel"
	"github.com/sprintforge/sprintforge/internal/prompttemplate"
)

// codeReview runs the reviewer sub-routine (spec §4.8 step 8): a fresh
// reviewer session renders the review template against the diff and
// returns a structured verdict. If not approved, the developer session
// (still open, context preserved) is sent the feedback once and the gate
// re-runs; the review itself is re-run exactly once after that fix.
func (e *Executor) codeReview(ctx context.Context, rs *runState) {
	verdict, ok := e.runReviewSession(ctx, rs, planmodel.RoleQualityReviewer, e.Templates.Review, nil)
	if !ok {
		return
	}
	rs.review = &planmodel.CodeReviewResult{Approved: verdict.Approved, Issues: verdict.Issues}
	e.postVerdictComment(ctx, rs.issue.Number, "Code review", verdict)

	if verdict.Approved || rs.devSessionID == "" {
		return
	}

	feedback := "## Code review feedback\n\n" + strings.Join(verdict.Issues, "\n- ")
	if _, _, err := e.Agent.SendPrompt(ctx, rs.devSessionID, feedback, e.sessionTimeout(rs)); err != nil {
		e.Logger.Warn("code review: fix prompt failed", "issue", rs.issue.Number, "error", err)
		rs.timedOut = rs.timedOut || isTimeoutErr(err)
		return
	}
	rs.quality = e.Gate.Run(ctx, rs.cfg.QualityGate, e.Worktree, rs.path, rs.branch, rs.cfg.BaseBranch, rs.expectedFiles)
	if !rs.quality.Passed {
		return
	}

	reverdict, ok := e.runReviewSession(ctx, rs, planmodel.RoleQualityReviewer, e.Templates.Review, nil)
	if ok {
		rs.review = &planmodel.CodeReviewResult{Approved: reverdict.Approved, Issues: reverdict.Issues}
		e.postVerdictComment(ctx, rs.issue.Number, "Code review (after fix)", reverdict)
	}
}

// acceptanceCriteriaReview runs the quality-reviewer's acceptance-criteria
// pass (spec §4.8 step 9). Unlike code review, a failed AC review gets one
// fix sent to the developer session and the gate re-run, but the AC review
// itself is never repeated — this is an explicit spec decision, not an
// oversight.
func (e *Executor) acceptanceCriteriaReview(ctx context.Context, rs *runState) {
	vars := map[string]string{"ACCEPTANCE_CRITERIA": rs.issue.AcceptanceCriteria}
	verdict, ok := e.runReviewSession(ctx, rs, planmodel.RoleQualityReviewer, e.Templates.AcceptanceCriteria, vars)
	if !ok {
		return
	}
	e.postVerdictComment(ctx, rs.issue.Number, "Acceptance criteria review", verdict)

	if verdict.Approved || rs.devSessionID == "" {
		return
	}

	feedback := "## Acceptance criteria not met\n\n- " + strings.Join(verdict.Issues, "\n- ")
	if _, _, err := e.Agent.SendPrompt(ctx, rs.devSessionID, feedback, e.sessionTimeout(rs)); err != nil {
		e.Logger.Warn("acceptance criteria review: fix prompt failed", "issue", rs.issue.Number, "error", err)
		rs.timedOut = rs.timedOut || isTimeoutErr(err)
		return
	}
	rs.quality = e.Gate.Run(ctx, rs.cfg.QualityGate, e.Worktree, rs.path, rs.branch, rs.cfg.BaseBranch, rs.expectedFiles)
}

// challengerReview runs the advisory-only second review (spec §4.8 step
// 10). Its verdict is posted but never changes rs.quality or blocks
// completion.
func (e *Executor) challengerReview(ctx context.Context, rs *runState) {
	verdict, ok := e.runReviewSession(ctx, rs, planmodel.RoleChallenger, e.Templates.Challenger, nil)
	if !ok {
		return
	}
	e.postVerdictComment(ctx, rs.issue.Number, "Challenger review (advisory)", verdict)
}

// runReviewSession opens a fresh read-only review session, renders tmpl
// with the base template variables plus any extras, sends it, and parses
// the structured verdict. ok is false if any step fails, in which case the
// caller should treat the review as skipped rather than failed.
func (e *Executor) runReviewSession(ctx context.Context, rs *runState, role planmodel.Role, tmpl string, extraVars map[string]string) (prompttemplate.Verdict, bool) {
	agentCfg := e.phaseAgentConfig(rs, role)
	issueNum := rs.issue.Number

	sessionID, err := e.Agent.CreateSession(ctx, role, &issueNum, rs.path, agentCfg.MCPServers)
	if err != nil {
		e.Logger.Warn("review session: create session failed", "issue", issueNum, "role", role, "error", err)
		return prompttemplate.Verdict{}, false
	}
	defer func() { _ = e.Agent.EndSession(ctx, sessionID) }()

	if agentCfg.ModelID != "" {
		if err := e.Agent.SetModel(ctx, sessionID, agentCfg.ModelID); err != nil {
			e.Logger.Warn("review session: set model failed", "issue", issueNum, "role", role, "error", err)
		}
	}

	vars := e.baseVars(rs)
	for k, v := range extraVars {
		vars[k] = v
	}
	prompt := prependInstructions(agentCfg.InstructionFiles, prompttemplate.Render(tmpl, vars))

	output, _, err := e.Agent.SendPrompt(ctx, sessionID, prompt, e.sessionTimeout(rs))
	if err != nil {
		e.Logger.Warn("review session: send prompt failed", "issue", issueNum, "role", role, "error", err)
		return prompttemplate.Verdict{}, false
	}

	verdict, ok := prompttemplate.ParseVerdict(output)
	if !ok {
		e.Logger.Warn("review session: could not parse verdict", "issue", issueNum, "role", role)
		return prompttemplate.Verdict{}, false
	}
	return verdict, true
}

func (e *Executor) postVerdictComment(ctx context.Context, issueNumber int, heading string, verdict prompttemplate.Verdict) {
	body := fmt.Sprintf("## %s\n\napproved: %t\n", heading, verdict.Approved)
	if len(verdict.Issues) > 0 {
		body += "\n- " + strings.Join(verdict.Issues, "\n- ")
	}
	if err := e.Forge.AddComment(ctx, issueNumber, body); err != nil {
		e.Logger.Warn("posting review comment failed", "issue", issueNumber, "error", err)
	}
}
