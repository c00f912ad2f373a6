package sprintrunner

import (
	"context"
	"fmt"
	"log/slog"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/sprintforge/sprintforge/internal/depgraph"
	"github.com/sprintforge/sprintforge/internal/forge"
	"github.com/sprintforge/sprintforge/internal/planmodel"
	"github.com/sprintforge/sprintforge/internal/prompttemplate"
)

// AgentClient is the subset of *agentclient.Client the sprint ceremonies
// drive — one ad-hoc session per ceremony rather than the executor's
// per-issue session lifecycle. Mirrors executor.AgentClient.
type AgentClient interface {
	CreateSession(ctx context.Context, role planmodel.Role, issueNumber *int, cwd string, mcpServers []string) (string, error)
	EndSession(ctx context.Context, sessionID string) error
	SetModel(ctx context.Context, sessionID, modelID string) error
	SendPrompt(ctx context.Context, sessionID, text string, timeout time.Duration) (response, stopReason string, err error)
}

// Templates holds the sprint-ceremony prompt templates. Zero-value fields
// fall back to prompttemplate's defaults.
type Templates struct {
	Refine string
	Plan   string
	Retro  string
}

func (t Templates) withDefaults() Templates {
	if t.Refine == "" {
		t.Refine = prompttemplate.DefaultRefineTemplate
	}
	if t.Plan == "" {
		t.Plan = prompttemplate.DefaultSprintPlanTemplate
	}
	if t.Retro == "" {
		t.Retro = prompttemplate.DefaultRetroTemplate
	}
	return t
}

// Ceremonies is the sprint-level (as opposed to per-issue) agent work the
// runner drives between dispatcher calls: refine, plan, review, retro.
type Ceremonies interface {
	Refine(ctx context.Context, cfg planmodel.SprintConfig) error
	Plan(ctx context.Context, cfg planmodel.SprintConfig) (planmodel.SprintPlan, error)
	Review(ctx context.Context, cfg planmodel.SprintConfig, result planmodel.SprintResult) error
	Retro(ctx context.Context, cfg planmodel.SprintConfig, result planmodel.SprintResult, huddles []planmodel.HuddleEntry) (string, error)
}

// AgentCeremonies implements Ceremonies by opening one ad-hoc agent
// session per phase, grounded on the same create-session/send-prompt/parse
// shape as the executor's planPhase/codeReview (internal/executor/plan.go,
// review.go), generalized from one issue to the whole open backlog.
type AgentCeremonies struct {
	Agent          AgentClient
	Forge          forge.Adapter
	ProjectName    string
	RepoOwner      string
	RepoName       string
	ProjectPath    string
	SessionTimeout time.Duration
	Templates      Templates
	Logger         *slog.Logger
}

// NewAgentCeremonies constructs an AgentCeremonies.
func NewAgentCeremonies(agent AgentClient, fg forge.Adapter, projectName, repoOwner, repoName, projectPath string, sessionTimeout time.Duration, templates Templates, logger *slog.Logger) *AgentCeremonies {
	return &AgentCeremonies{
		Agent:          agent,
		Forge:          fg,
		ProjectName:    projectName,
		RepoOwner:      repoOwner,
		RepoName:       repoName,
		ProjectPath:    projectPath,
		SessionTimeout: sessionTimeout,
		Templates:      templates.withDefaults(),
		Logger:         logger,
	}
}

func (c *AgentCeremonies) baseVars(cfg planmodel.SprintConfig) prompttemplate.Vars {
	return prompttemplate.Vars{
		"PROJECT_NAME":  c.ProjectName,
		"REPO_OWNER":    c.RepoOwner,
		"REPO_NAME":     c.RepoName,
		"SPRINT_NUMBER": strconv.Itoa(cfg.SprintNumber),
		"ISSUE_CAP":     strconv.Itoa(cfg.IssueCap),
	}
}

func backlogListing(issues []forge.Issue) string {
	var b strings.Builder
	for _, iss := range issues {
		fmt.Fprintf(&b, "#%d %s\n%s\n\n", iss.Number, iss.Title, prompttemplate.Sanitize(iss.Body))
	}
	return b.String()
}

// Refine scores every open issue with ICE and leaves a grooming comment on
// each (spec §4.10 "refine"). A malformed or missing response is logged
// and swallowed, mirroring the planner phase's own carve-out — refinement
// is advisory and must never fail the sprint.
func (c *AgentCeremonies) Refine(ctx context.Context, cfg planmodel.SprintConfig) error {
	issues, err := c.Forge.ListIssues(ctx, forge.ListIssuesOptions{State: "open"})
	if err != nil {
		return fmt.Errorf("refine: listing open issues: %w", err)
	}
	if len(issues) == 0 {
		c.Logger.Info("refine: backlog is empty, nothing to groom")
		return nil
	}

	sessionID, err := c.Agent.CreateSession(ctx, planmodel.RoleRefiner, nil, c.ProjectPath, nil)
	if err != nil {
		return fmt.Errorf("refine: creating session: %w", err)
	}
	defer func() { _ = c.Agent.EndSession(ctx, sessionID) }()

	vars := c.baseVars(cfg)
	vars["BACKLOG"] = backlogListing(issues)
	prompt := prompttemplate.Render(c.Templates.Refine, vars)

	output, _, err := c.Agent.SendPrompt(ctx, sessionID, prompt, c.SessionTimeout)
	if err != nil {
		return fmt.Errorf("refine: send prompt: %w", err)
	}

	refined, ok := prompttemplate.ParseRefineResponse(output)
	if !ok {
		c.Logger.Warn("refine: response did not parse, skipping backlog comments")
		return nil
	}

	for _, item := range refined.Issues {
		body := fmt.Sprintf("## Backlog refinement\n\nICE score: %.1f", item.ICEScore)
		if item.Notes != "" {
			body += "\n\n" + item.Notes
		}
		if err := c.Forge.AddComment(ctx, item.Number, body); err != nil {
			c.Logger.Warn("refine: posting comment failed", "issue", item.Number, "error", err)
		}
		if err := c.Forge.SetLabel(ctx, item.Number, "status:refined"); err != nil {
			c.Logger.Warn("refine: setting refined label failed", "issue", item.Number, "error", err)
		}
	}
	return nil
}

// Plan selects and orders this sprint's issues from the refined backlog and
// groups them into execution levels (spec §4.10 "plan"). Unlike Refine,
// planning failure is fatal to the sprint — fullCycle has nothing to
// dispatch without a plan.
func (c *AgentCeremonies) Plan(ctx context.Context, cfg planmodel.SprintConfig) (planmodel.SprintPlan, error) {
	issues, err := c.Forge.ListIssues(ctx, forge.ListIssuesOptions{State: "open"})
	if err != nil {
		return planmodel.SprintPlan{}, fmt.Errorf("plan: listing open issues: %w", err)
	}
	if len(issues) == 0 {
		return planmodel.SprintPlan{}, fmt.Errorf("plan: no open issues to plan")
	}

	sessionID, err := c.Agent.CreateSession(ctx, planmodel.RolePlanner, nil, c.ProjectPath, nil)
	if err != nil {
		return planmodel.SprintPlan{}, fmt.Errorf("plan: creating session: %w", err)
	}
	defer func() { _ = c.Agent.EndSession(ctx, sessionID) }()

	vars := c.baseVars(cfg)
	vars["BACKLOG"] = backlogListing(issues)
	prompt := prompttemplate.Render(c.Templates.Plan, vars)

	output, _, err := c.Agent.SendPrompt(ctx, sessionID, prompt, c.SessionTimeout)
	if err != nil {
		return planmodel.SprintPlan{}, fmt.Errorf("plan: send prompt: %w", err)
	}

	resp, ok := prompttemplate.ParseSprintPlanResponse(output)
	if !ok {
		return planmodel.SprintPlan{}, fmt.Errorf("plan: response did not parse into a sprint plan")
	}

	titleByNumber := make(map[int]string, len(issues))
	for _, iss := range issues {
		titleByNumber[iss.Number] = iss.Title
	}

	plan := planmodel.SprintPlan{
		ID:              uuid.NewString(),
		SprintNumber:    cfg.SprintNumber,
		EstimatedPoints: resp.EstimatedPoints,
		Rationale:       resp.Rationale,
	}
	for _, pi := range resp.Issues {
		title := pi.Title
		if title == "" {
			title = titleByNumber[pi.Number]
		}
		plan.Issues = append(plan.Issues, planmodel.SprintIssue{
			Number:             pi.Number,
			Title:              title,
			DependsOn:          pi.DependsOn,
			StoryPoints:        pi.StoryPoints,
			AcceptanceCriteria: pi.AcceptanceCriteria,
		})
	}
	if cfg.IssueCap > 0 && len(plan.Issues) > cfg.IssueCap {
		plan.Issues = plan.Issues[:cfg.IssueCap]
	}

	groups, err := depgraph.Group(plan.Issues)
	if err != nil {
		return planmodel.SprintPlan{}, fmt.Errorf("plan: grouping issues: %w", err)
	}
	plan.ExecutionGroups = groups
	return plan, nil
}

// Review is a mechanical post-execute check (spec §4.10's "review" phase):
// it never opens an agent session, since per-issue code review already ran
// inside the executor (spec §4.8 step 8). It only confirms every completed
// issue actually passed its quality gate, logging anything that slipped
// through in an unexpected state.
func (c *AgentCeremonies) Review(ctx context.Context, cfg planmodel.SprintConfig, result planmodel.SprintResult) error {
	for _, r := range result.IssueResults {
		if r.Status == planmodel.IssueCompleted && !r.QualityGatePassed {
			c.Logger.Warn("review: issue completed without a passing quality gate", "issue", r.IssueNumber)
		}
	}
	return nil
}

// Retro summarizes the sprint's results and asks the retro role for
// process-improvement notes (spec §4.10 "retro"). The returned notes are
// the response's result text as-is, persisted by the caller; no parse step
// runs, and only a session or transport failure returns an error.
func (c *AgentCeremonies) Retro(ctx context.Context, cfg planmodel.SprintConfig, result planmodel.SprintResult, huddles []planmodel.HuddleEntry) (string, error) {
	sessionID, err := c.Agent.CreateSession(ctx, planmodel.RoleRetro, nil, c.ProjectPath, nil)
	if err != nil {
		return "", fmt.Errorf("retro: creating session: %w", err)
	}
	defer func() { _ = c.Agent.EndSession(ctx, sessionID) }()

	vars := c.baseVars(cfg)
	vars["SPRINT_SUMMARY"] = summarizeForRetro(result, huddles)
	prompt := prompttemplate.Render(c.Templates.Retro, vars)

	output, _, err := c.Agent.SendPrompt(ctx, sessionID, prompt, c.SessionTimeout)
	if err != nil {
		return "", fmt.Errorf("retro: send prompt: %w", err)
	}
	return prompttemplate.ResultText(output), nil
}

func summarizeForRetro(result planmodel.SprintResult, huddles []planmodel.HuddleEntry) string {
	var b strings.Builder
	fmt.Fprintf(&b, "%d issues, %d merge conflicts, parallelization ratio %.2f\n\n",
		len(result.IssueResults), result.MergeConflicts, result.ParallelizationRatio)
	for _, h := range huddles {
		fmt.Fprintf(&b, "#%d %s: %s", h.IssueNumber, h.Title, h.Status)
		if h.ErrorMessage != "" {
			fmt.Fprintf(&b, " (%s)", h.ErrorMessage)
		}
		b.WriteString("\n")
	}
	return b.String()
}
