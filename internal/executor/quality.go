package executor

import (
	"context"
	"fmt"
	"strings"

	"github.com/sprintforge/sprintforge/internal/planmodel"
	"github.com/sprintforge/sprintforge/internal/qualitygate"
)

// runQualityGate runs the gate once (spec §4.8 step 6), using the issue's
// (possibly plan-augmented) expected files for the scope-drift check.
func (e *Executor) runQualityGate(ctx context.Context, rs *runState) {
	rs.quality = e.Gate.Run(ctx, rs.cfg.QualityGate, e.Worktree, rs.path, rs.branch, rs.cfg.BaseBranch, rs.expectedFiles)
}

func qualitySummaryComment(q planmodel.QualityResult) string {
	var b strings.Builder
	if q.Passed {
		b.WriteString("Quality gate passed.\n")
	} else {
		b.WriteString("Quality gate failed.\n")
	}
	for _, c := range q.Checks {
		status := "pass"
		if !c.Passed {
			status = "fail"
		}
		fmt.Fprintf(&b, "- %s (%s): %s\n", c.Name, c.Category, status)
	}
	return b.String()
}

// qualityRetryLoop implements spec §4.8 step 7: up to cfg.RetryCap times,
// send a feedback prompt built from the failing checks to the same
// developer session (preserving its context) and re-run the gate.
// retryCount follows the documented convention (spec §9 design note): 0 if
// the gate is passing (whether immediately or after a successful retry),
// cfg.RetryCap if it is still failing once retries are exhausted.
func (e *Executor) qualityRetryLoop(ctx context.Context, rs *runState) {
	if rs.quality.Passed || rs.devSessionID == "" || rs.cfg.RetryCap <= 0 {
		return
	}

	for attempt := 1; attempt <= rs.cfg.RetryCap; attempt++ {
		if e.Sessions != nil && e.Sessions.ShouldStop(rs.devSessionID) {
			break
		}

		feedback := qualitygate.BuildFeedbackPrompt(rs.quality)
		_, _, err := e.Agent.SendPrompt(ctx, rs.devSessionID, feedback, e.sessionTimeout(rs))
		if err != nil {
			e.Logger.Warn("quality feedback prompt failed", "issue", rs.issue.Number, "attempt", attempt, "error", err)
			rs.timedOut = rs.timedOut || isTimeoutErr(err)
			continue
		}

		rs.quality = e.Gate.Run(ctx, rs.cfg.QualityGate, e.Worktree, rs.path, rs.branch, rs.cfg.BaseBranch, rs.expectedFiles)
		if rs.quality.Passed {
			rs.retryCount = 0
			return
		}
	}
	rs.retryCount = rs.cfg.RetryCap
}
