package main

import (
	"context"
	"fmt"
	"log/slog"
	"path/filepath"

	"github.com/sprintforge/sprintforge/internal/agentclient"
	"github.com/sprintforge/sprintforge/internal/chatsvc"
	"github.com/sprintforge/sprintforge/internal/config"
	"github.com/sprintforge/sprintforge/internal/dispatcher"
	"github.com/sprintforge/sprintforge/internal/eventbus"
	"github.com/sprintforge/sprintforge/internal/executor"
	"github.com/sprintforge/sprintforge/internal/forge"
	"github.com/sprintforge/sprintforge/internal/huddlelog"
	"github.com/sprintforge/sprintforge/internal/planmodel"
	"github.com/sprintforge/sprintforge/internal/qualitygate"
	"github.com/sprintforge/sprintforge/internal/session"
	"github.com/sprintforge/sprintforge/internal/sprintrunner"
	"github.com/sprintforge/sprintforge/internal/worktree"
)

// rig is the fully wired collaborator graph one CLI invocation needs. Not
// every command uses every field; cobra commands pull what they need and
// leave the rest idle.
type rig struct {
	cfg         *config.Config
	projectPath string
	bus         *eventbus.Bus
	agent       *agentclient.Client
	forgeClient forge.Adapter
	worktrees   *worktree.Manager
	gate        *qualitygate.Gate
	escalator   *forge.Escalator
	hitl        *session.Controller
	executor    *executor.Executor
	dispatcher  *dispatcher.Dispatcher
	ceremonies  *sprintrunner.AgentCeremonies
	chat        *chatsvc.Service
}

// huddleAppender adapts huddlelog's free function (projectPath/slug/sprint
// bound ahead of time) to executor.HuddleAppender's single-entry shape.
type huddleAppender struct {
	projectPath string
	slug        string
	sprintNum   int
}

func (h huddleAppender) Append(entry planmodel.HuddleEntry) error {
	return huddlelog.Append(h.projectPath, h.slug, h.sprintNum, entry)
}

// buildRig loads the config file at configPath and wires every collaborator
// a sprint against projectPath, sprintNumber, slug needs. Mirrors the
// teacher's wireProviders: build the cheap pieces unconditionally, the
// optional notifier/tracker escalation channels only when configured.
func buildRig(configPath, projectPath, slug string, sprintNumber int, logger *slog.Logger) (*rig, error) {
	cfg, err := config.Load(configPath)
	if err != nil {
		return nil, fmt.Errorf("loading config: %w", err)
	}

	absProject, err := filepath.Abs(projectPath)
	if err != nil {
		return nil, fmt.Errorf("resolving project path: %w", err)
	}

	bus := eventbus.New(logger)

	profile := agentclient.AgentProfile{
		Name:    cfg.Agent.Provider,
		Command: cfg.Agent.Command,
	}
	policy := agentclient.PermissionPolicy{
		AutoApprove:   true,
		AllowPatterns: cfg.Agent.AllowedTools,
	}
	agent := agentclient.New(profile, logger, policy, bus)

	fg := forge.New(cfg.Forge.Owner, cfg.Forge.Repo, cfg.Forge.Token, logger)

	wt := worktree.New(cfg.Worktree.CreateCmd, cfg.Worktree.RemoveCmd, absProject, logger)

	gate := qualitygate.New(logger)

	// The forge issue is the primary escalation channel and is always
	// available since fg is already constructed above; notifier/tracker are
	// additional channels layered on top when configured.
	escalator := &forge.Escalator{Forge: fg, Logger: logger}
	if cfg.Notifier.Provider != "" {
		escalator.Notifier = forge.NewSlackNotifier(cfg.Notifier.WebhookURL)
	}
	if cfg.Tracker.Provider != "" {
		escalator.Tracker = forge.NewJiraTracker(cfg.Tracker.BaseURL, cfg.Tracker.Project, cfg.Tracker.Email, cfg.Tracker.Token)
	}

	hitl := session.NewController()

	huddle := huddleAppender{projectPath: absProject, slug: slug, sprintNum: sprintNumber}

	exec := executor.New(agent, wt, gate, fg, hitl, bus, huddle, executor.Templates{}, logger)

	disp := dispatcher.New(exec, fg, wt, escalator, bus, logger)

	ceremonies := sprintrunner.NewAgentCeremonies(
		agent, fg, cfg.Forge.Repo, cfg.Forge.Owner, cfg.Forge.Repo,
		absProject, cfg.Agent.SessionTimeout.Duration, sprintrunner.Templates{}, logger,
	)

	chat := chatsvc.New(agent, bus, cfg.Agent.SessionTimeout.Duration, logger)

	return &rig{
		cfg:         cfg,
		projectPath: absProject,
		bus:         bus,
		agent:       agent,
		forgeClient: fg,
		worktrees:   wt,
		gate:        gate,
		escalator:   escalator,
		hitl:        hitl,
		executor:    exec,
		dispatcher:  disp,
		ceremonies:  ceremonies,
		chat:        chat,
	}, nil
}

// connect opens the agent client's subprocess connection. Commands that
// never open an agent session (check-quality, metrics, drift-report) skip
// this.
func (r *rig) connect(ctx context.Context) error {
	return r.agent.Connect(ctx)
}

func (r *rig) disconnect(ctx context.Context) {
	_ = r.agent.Disconnect(ctx)
}

// newRunner builds a sprintrunner.Runner over the rig's ceremonies and
// dispatcher, loading (or creating) slug's persisted phase state.
func (r *rig) newRunner(slug string, sprintNumber int, logger *slog.Logger) (*sprintrunner.Runner, error) {
	return sprintrunner.New(slug, sprintNumber, r.ceremonies, r.dispatcher, r.bus, logger)
}
