// Package config loads and validates the sprintforge configuration file:
// forge adapter credentials, agent CLI settings, quality-gate commands, and
// sprint-wide feature flags.
package config

import (
	"errors"
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/sprintforge/sprintforge/internal/planmodel"
)

// Duration re-exports planmodel.Duration so config files share one YAML
// duration representation with persisted sprint state.
type Duration = planmodel.Duration

// Config is the top-level sprintforge configuration, loaded once per process.
type Config struct {
	Forge    ForgeConfig    `yaml:"forge"`
	Agent    AgentConfig    `yaml:"agent"`
	Worktree WorktreeConfig `yaml:"worktree"`
	Sprint   SprintConfig   `yaml:"sprint"`
	Quality  QualityConfig  `yaml:"quality"`
	Notifier NotifierConfig `yaml:"notifier"`
	Tracker  TrackerConfig  `yaml:"tracker"`
}

// ForgeConfig names the hosted code-forge this sprint targets.
type ForgeConfig struct {
	Provider   string `yaml:"provider"` // "github"
	Owner      string `yaml:"owner"`
	Repo       string `yaml:"repo"`
	BaseBranch string `yaml:"base_branch"`
	Token      string `yaml:"token"`
}

// AgentConfig names the coding-assistant executable and its spawn settings.
type AgentConfig struct {
	Provider       string   `yaml:"provider"` // "claude" | "codex" | "gemini" | "ralph"
	Command        string   `yaml:"command"`
	AllowedTools   []string `yaml:"allowed_tools"`
	SessionTimeout Duration `yaml:"session_timeout"`
}

// WorktreeConfig controls how per-issue working copies are created.
type WorktreeConfig struct {
	Root      string `yaml:"root"`
	CreateCmd string `yaml:"create_cmd"`
	RemoveCmd string `yaml:"remove_cmd"`
}

// SprintConfig carries sprint-wide cadence and feature-flag settings.
type SprintConfig struct {
	Prefix          string `yaml:"prefix"`
	BranchPattern   string `yaml:"branch_pattern"`
	ConcurrencyCap  int    `yaml:"concurrency_cap"`
	IssueCap        int    `yaml:"issue_cap"`
	RetryCap        int    `yaml:"retry_cap"`
	Challenger      bool   `yaml:"challenger"`
	TDD             bool   `yaml:"tdd"`
	AutoMerge       bool   `yaml:"auto_merge"`
	Squash          bool   `yaml:"squash"`
	DeleteBranch    bool   `yaml:"delete_branch"`
	AutoRevertDrift bool   `yaml:"auto_revert_drift"`
}

// QualityConfig names the quality-gate check commands.
type QualityConfig struct {
	RequireTests bool   `yaml:"require_tests"`
	RequireLint  bool   `yaml:"require_lint"`
	RequireTypes bool   `yaml:"require_types"`
	RequireBuild bool   `yaml:"require_build"`
	TestCmd      string `yaml:"test_cmd"`
	LintCmd      string `yaml:"lint_cmd"`
	TypesCmd     string `yaml:"types_cmd"`
	BuildCmd     string `yaml:"build_cmd"`
	MaxDiffLines int    `yaml:"max_diff_lines"`
}

// NotifierConfig is the fallback notification sink (Slack-compatible webhook).
type NotifierConfig struct {
	Provider   string `yaml:"provider"`
	WebhookURL string `yaml:"webhook_url"`
}

// TrackerConfig is the stakeholder-escalation collaborator (Jira-compatible).
type TrackerConfig struct {
	Provider string `yaml:"provider"`
	Project  string `yaml:"project"`
	BaseURL  string `yaml:"base_url"`
	Email    string `yaml:"email"`
	Token    string `yaml:"token"`
}

const (
	defaultSessionTimeout = 45 * time.Minute
	defaultConcurrencyCap = 3
	defaultRetryCap       = 2
	defaultMaxDiffLines   = 2000
	defaultBranchPattern  = "{prefix}/{sprint}/issue-{issue}"
)

// Load reads, expands env vars, parses, and validates a sprintforge config file.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading config: %w", err)
	}

	expanded := os.ExpandEnv(string(data))

	var cfg Config
	if err := yaml.Unmarshal([]byte(expanded), &cfg); err != nil {
		return nil, fmt.Errorf("parsing config: %w", err)
	}

	applyDefaults(&cfg)

	if err := validate(&cfg); err != nil {
		return nil, err
	}

	return &cfg, nil
}

func applyDefaults(cfg *Config) {
	if cfg.Agent.SessionTimeout.Duration == 0 {
		cfg.Agent.SessionTimeout.Duration = defaultSessionTimeout
	}
	if cfg.Sprint.ConcurrencyCap == 0 {
		cfg.Sprint.ConcurrencyCap = defaultConcurrencyCap
	}
	if cfg.Sprint.RetryCap == 0 {
		cfg.Sprint.RetryCap = defaultRetryCap
	}
	if cfg.Sprint.BranchPattern == "" {
		cfg.Sprint.BranchPattern = defaultBranchPattern
	}
	if cfg.Quality.MaxDiffLines == 0 {
		cfg.Quality.MaxDiffLines = defaultMaxDiffLines
	}
	if cfg.Forge.Provider == "" {
		cfg.Forge.Provider = "github"
	}
}

func validate(cfg *Config) error {
	var errs []error

	if cfg.Forge.Owner == "" {
		errs = append(errs, errors.New("forge.owner is required"))
	}
	if cfg.Forge.Repo == "" {
		errs = append(errs, errors.New("forge.repo is required"))
	}
	if cfg.Forge.BaseBranch == "" {
		errs = append(errs, errors.New("forge.base_branch is required"))
	}
	if cfg.Agent.Provider == "" {
		errs = append(errs, errors.New("agent.provider is required"))
	}
	if cfg.Agent.SessionTimeout.Duration <= 0 {
		errs = append(errs, errors.New("agent.session_timeout must be positive"))
	}
	if cfg.Worktree.CreateCmd == "" {
		errs = append(errs, errors.New("worktree.create_cmd is required"))
	}
	if cfg.Worktree.RemoveCmd == "" {
		errs = append(errs, errors.New("worktree.remove_cmd is required"))
	}

	if cfg.Tracker.Provider != "" {
		if cfg.Tracker.Project == "" {
			errs = append(errs, errors.New("tracker.project is required when tracker.provider is set"))
		}
		if cfg.Tracker.BaseURL == "" {
			errs = append(errs, errors.New("tracker.base_url is required when tracker.provider is set"))
		}
		if cfg.Tracker.Token == "" {
			errs = append(errs, errors.New("tracker.token is required when tracker.provider is set"))
		}
	}

	if cfg.Notifier.Provider != "" && cfg.Notifier.WebhookURL == "" {
		errs = append(errs, errors.New("notifier.webhook_url is required when notifier.provider is set"))
	}

	return errors.Join(errs...)
}

// ToSprintConfig builds a planmodel.SprintConfig for a specific sprint number,
// binding the loaded file config to a concrete run (spec §3: "built from
// parsed config + sprint number; passed by value to all components").
func (c *Config) ToSprintConfig(sprintNumber int, slug, projectPath string) planmodel.SprintConfig {
	return planmodel.SprintConfig{
		SprintNumber:   sprintNumber,
		Prefix:         c.Sprint.Prefix,
		Slug:           slug,
		BaseBranch:     c.Forge.BaseBranch,
		WorktreeRoot:   c.Worktree.Root,
		BranchPattern:  c.Sprint.BranchPattern,
		ConcurrencyCap: c.Sprint.ConcurrencyCap,
		IssueCap:       c.Sprint.IssueCap,
		RetryCap:       c.Sprint.RetryCap,
		Flags: planmodel.FeatureFlags{
			Challenger:      c.Sprint.Challenger,
			TDD:             c.Sprint.TDD,
			AutoMerge:       c.Sprint.AutoMerge,
			Squash:          c.Sprint.Squash,
			DeleteBranch:    c.Sprint.DeleteBranch,
			AutoRevertDrift: c.Sprint.AutoRevertDrift,
		},
		SessionTimeout: c.Agent.SessionTimeout,
		QualityGate: planmodel.QualityGateConfig{
			RequireTests: c.Quality.RequireTests,
			RequireLint:  c.Quality.RequireLint,
			RequireTypes: c.Quality.RequireTypes,
			RequireBuild: c.Quality.RequireBuild,
			TestCmd:      c.Quality.TestCmd,
			LintCmd:      c.Quality.LintCmd,
			TypesCmd:     c.Quality.TypesCmd,
			BuildCmd:     c.Quality.BuildCmd,
			MaxDiffLines: c.Quality.MaxDiffLines,
		},
		ProjectPath: projectPath,
		RepoOwner:   c.Forge.Owner,
		RepoName:    c.Forge.Repo,
	}
}
