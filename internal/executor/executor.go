// Package executor runs the per-issue state machine: worktree creation,
// plan/TDD/implement agent sessions, the quality gate and its retry loop,
// code review, acceptance-criteria review, an optional challenger pass,
// and cleanup with huddle-entry construction. Adapted from the teacher's
// internal/pipeline/run.go, whose Run()/runStep() 11-step sequential
// pipeline is the closest existing analogue: both run a fixed sequence of
// named phases against one unit of work and log after each. The cleanup
// phase here removes the worktree whatever the outcome. Where the teacher runs
// one plan file through one pipeline, this package runs one forge issue
// through the richer multi-agent phase sequence of spec §4.8.
package executor

import (
	"context"
	"fmt"
	"log/slog"
	"path/filepath"
	"strings"
	"time"

	"github.com/sprintforge/sprintforge/internal/eventbus"
	"github.com/sprintforge/sprintforge/internal/forge"
	"github.com/sprintforge/sprintforge/internal/planmodel"
	"github.com/sprintforge/sprintforge/internal/prompttemplate"
)

// HuddleAppender appends one issue's post-mortem to the sprint log. Left as
// a narrow interface here rather than a direct dependency on the huddlelog
// package, mirroring the teacher's habit of depending on
// `provider.Notifier`-shaped interfaces rather than concrete types.
type HuddleAppender interface {
	Append(entry planmodel.HuddleEntry) error
}

// Templates holds the phase prompt templates. Zero-value fields fall back
// to prompttemplate's defaults, so callers only need to override what the
// project customizes.
type Templates struct {
	Planner            string
	TDD                string
	Worker             string
	Review             string
	AcceptanceCriteria string
	Challenger         string
}

func (t Templates) withDefaults() Templates {
	if t.Planner == "" {
		t.Planner = prompttemplate.DefaultPlannerTemplate
	}
	if t.TDD == "" {
		t.TDD = prompttemplate.DefaultTDDTemplate
	}
	if t.Worker == "" {
		t.Worker = prompttemplate.DefaultWorkerTemplate
	}
	if t.Review == "" {
		t.Review = prompttemplate.DefaultReviewTemplate
	}
	if t.AcceptanceCriteria == "" {
		t.AcceptanceCriteria = prompttemplate.DefaultAcceptanceCriteriaTemplate
	}
	if t.Challenger == "" {
		t.Challenger = prompttemplate.DefaultChallengerTemplate
	}
	return t
}

// Executor runs the issue state machine. Construct with New.
type Executor struct {
	Agent     AgentClient
	Worktree  WorktreeManager
	Gate      QualityGate
	Forge     forge.Adapter
	Sessions  SessionController
	Bus       *eventbus.Bus
	Logger    *slog.Logger
	HuddleLog HuddleAppender // nil disables sprint-log appends
	Templates Templates

	// now is overridable in tests.
	now func() time.Time
}

// New constructs an Executor from its collaborators. huddleLog and sessions
// may be nil (a nil SessionController disables operator message draining).
func New(agent AgentClient, wt WorktreeManager, gate QualityGate, fg forge.Adapter, sessions SessionController, bus *eventbus.Bus, huddleLog HuddleAppender, templates Templates, logger *slog.Logger) *Executor {
	return &Executor{
		Agent:     agent,
		Worktree:  wt,
		Gate:      gate,
		Forge:     fg,
		Sessions:  sessions,
		Bus:       bus,
		HuddleLog: huddleLog,
		Templates: templates.withDefaults(),
		Logger:    logger,
		now:       time.Now,
	}
}

// errorMarkers are substrings that, if present in an issue's last streamed
// output lines, classify a zero-change outcome as a worker error rather
// than a not-applicable task (spec §4.8 step 12).
var errorMarkers = []string{"error", "panic", "exception", "failed to", "traceback"}

func containsErrorMarker(lines []string) bool {
	joined := strings.ToLower(strings.Join(lines, "\n"))
	for _, m := range errorMarkers {
		if strings.Contains(joined, m) {
			return true
		}
	}
	return false
}

// runState threads the working data a single Execute call accumulates
// across phases, avoiding a long parameter list on every phase method.
type runState struct {
	cfg    planmodel.SprintConfig
	issue  planmodel.SprintIssue
	branch string
	path   string

	expectedFiles []string
	issueBody     string
	planSummary   string

	devSessionID string
	lastOutput   []string
	timedOut     bool

	quality    planmodel.QualityResult
	retryCount int
	review     *planmodel.CodeReviewResult

	startedAt time.Time
}

// Execute runs the full state machine for one issue and returns its result.
// It never returns a Go error: any internal failure is captured as
// result.ErrorMessage/Status per spec §4.8's try/finally failure model, so
// a dispatcher running many of these concurrently can treat every call as
// "settled" rather than "rejected".
func (e *Executor) Execute(ctx context.Context, cfg planmodel.SprintConfig, issue planmodel.SprintIssue) (planmodel.IssueResult, planmodel.HuddleEntry) {
	rs := &runState{
		cfg:           cfg,
		issue:         issue,
		expectedFiles: append([]string{}, issue.ExpectedFiles...),
		startedAt:     e.now(),
		branch:        cfg.BranchName(issue.Number),
	}

	result := planmodel.IssueResult{
		IssueNumber: issue.Number,
		Branch:      rs.branch,
		Points:      issue.StoryPoints,
	}

	err := e.run(ctx, rs, &result)

	result.DurationMS = e.now().Sub(rs.startedAt).Milliseconds()
	if err != nil {
		result.Status = planmodel.IssueFailed
		result.ErrorMessage = err.Error()
		result.TimedOut = rs.timedOut
	} else if result.Status == "" {
		result.Status = planmodel.IssueCompleted
	}
	result.QualityGatePassed = rs.quality.Passed
	result.QualityDetails = rs.quality
	result.FilesChanged = rs.expectedFiles
	result.RetryCount = rs.retryCount
	if rs.review != nil {
		result.CodeReview = rs.review
	}

	huddle := e.cleanup(ctx, rs, &result)
	return result, huddle
}

// run drives phases 1-11. Phase 12 (cleanup) always runs via Execute's
// call to e.cleanup, regardless of how run returns.
func (e *Executor) run(ctx context.Context, rs *runState, result *planmodel.IssueResult) error {
	e.emitProgress(rs.issue.Number, "labeling issue in-progress")
	if err := e.Forge.SetLabel(ctx, rs.issue.Number, "status:in-progress"); err != nil {
		e.Logger.Warn("failed to set in-progress label", "issue", rs.issue.Number, "error", err)
	}

	e.emitProgress(rs.issue.Number, "creating worktree")
	path, err := e.createWorktree(ctx, rs)
	if err != nil {
		return fmt.Errorf("creating worktree: %w", err)
	}
	rs.path = path

	if liveIssue, err := e.Forge.GetIssue(ctx, rs.issue.Number); err != nil {
		e.Logger.Warn("failed to fetch live issue body, using plan title only", "issue", rs.issue.Number, "error", err)
	} else {
		rs.issueBody = liveIssue.Body
	}

	e.planPhase(ctx, rs)

	if rs.cfg.Flags.TDD && rs.planSummary != "" {
		e.tddPhase(ctx, rs)
	}

	if err := e.implementPhase(ctx, rs); err != nil {
		return fmt.Errorf("implement phase: %w", err)
	}

	e.runQualityGate(ctx, rs)
	_ = e.postComment(ctx, rs.issue.Number, qualitySummaryComment(rs.quality))

	e.qualityRetryLoop(ctx, rs)

	if rs.quality.Passed {
		e.codeReview(ctx, rs)
	}

	if rs.quality.Passed {
		e.acceptanceCriteriaReview(ctx, rs)
	}

	if rs.cfg.Flags.Challenger && rs.quality.Passed {
		e.challengerReview(ctx, rs)
	}

	e.gatherFinalDiff(ctx, rs)

	if !rs.quality.Passed {
		return fmt.Errorf("quality gate failed: %s", failingCheckSummary(rs.quality))
	}
	return nil
}

func failingCheckSummary(q planmodel.QualityResult) string {
	var names []string
	for _, c := range q.Checks {
		if !c.Passed {
			names = append(names, c.Name)
		}
	}
	return strings.Join(names, ", ")
}

func (e *Executor) createWorktree(ctx context.Context, rs *runState) (string, error) {
	path := filepath.Join(rs.cfg.WorktreeRoot, fmt.Sprintf("issue-%d", rs.issue.Number))
	if err := e.Worktree.Create(ctx, path, rs.branch, rs.cfg.BaseBranch); err != nil {
		return "", err
	}
	return path, nil
}

func (e *Executor) emitProgress(issueNumber int, step string) {
	if e.Bus == nil {
		return
	}
	e.Bus.Emit(eventbus.IssueProgress, eventbus.IssueProgressPayload{IssueNumber: issueNumber, Step: step})
}

func (e *Executor) postComment(ctx context.Context, issueNumber int, body string) error {
	if body == "" {
		return nil
	}
	return e.Forge.AddComment(ctx, issueNumber, body)
}

func (e *Executor) baseVars(rs *runState) prompttemplate.Vars {
	return prompttemplate.Vars{
		"PROJECT_NAME":   rs.cfg.ProjectName,
		"REPO_OWNER":     rs.cfg.RepoOwner,
		"REPO_NAME":      rs.cfg.RepoName,
		"SPRINT_NUMBER":  fmt.Sprintf("%d", rs.cfg.SprintNumber),
		"ISSUE_NUMBER":   fmt.Sprintf("%d", rs.issue.Number),
		"ISSUE_TITLE":    rs.issue.Title,
		"ISSUE_BODY":     prompttemplate.Sanitize(rs.issueBody),
		"BRANCH_NAME":    rs.branch,
		"BASE_BRANCH":    rs.cfg.BaseBranch,
		"WORKTREE_PATH":  rs.path,
		"MAX_DIFF_LINES": fmt.Sprintf("%d", rs.cfg.QualityGate.MaxDiffLines),
	}
}

func (e *Executor) phaseAgentConfig(rs *runState, role planmodel.Role) planmodel.PhaseAgentConfig {
	if rs.cfg.Phases == nil {
		return planmodel.PhaseAgentConfig{}
	}
	return rs.cfg.Phases[role]
}

func (e *Executor) sessionTimeout(rs *runState) time.Duration {
	if rs.cfg.SessionTimeout.Duration > 0 {
		return rs.cfg.SessionTimeout.Duration
	}
	return 0
}
