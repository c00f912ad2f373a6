package main

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/sprintforge/sprintforge/internal/planmodel"
)

func newExecuteIssueCmd(env func() *cliEnv) *cobra.Command {
	var issueNumber, sprintNumber int

	cmd := &cobra.Command{
		Use:   "execute-issue",
		Short: "Run the full per-issue pipeline for a single issue",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return cmdExecuteIssue(env(), issueNumber, sprintNumber)
		},
	}
	cmd.Flags().IntVar(&issueNumber, "issue", 0, "issue number")
	cmd.Flags().IntVar(&sprintNumber, "sprint", 0, "sprint number")
	cmd.MarkFlagRequired("issue")
	cmd.MarkFlagRequired("sprint")
	return cmd
}

func cmdExecuteIssue(env *cliEnv, issueNumber, sprintNumber int) error {
	if issueNumber <= 0 {
		return fmt.Errorf("invalid issue number %d", issueNumber)
	}
	if sprintNumber <= 0 {
		return fmt.Errorf("invalid sprint number %d", sprintNumber)
	}

	slug := env.resolveSlug("")
	r, err := buildRig(env.configPath, env.projectPath, slug, sprintNumber, env.logger)
	if err != nil {
		return err
	}
	slug = env.resolveSlug(r.cfg.Forge.Repo)

	ctx := context.Background()
	if err := r.connect(ctx); err != nil {
		return fmt.Errorf("connecting agent client: %w", err)
	}
	defer r.disconnect(ctx)

	liveIssue, err := r.forgeClient.GetIssue(ctx, issueNumber)
	if err != nil {
		return fmt.Errorf("fetching issue #%d: %w", issueNumber, err)
	}

	issue := planmodel.SprintIssue{
		Number:      liveIssue.Number,
		Title:       liveIssue.Title,
		StoryPoints: 1,
	}

	cfg := r.cfg.ToSprintConfig(sprintNumber, slug, r.projectPath)

	result, huddle := r.executor.Execute(ctx, cfg, issue)

	env.logger.Info("execute-issue finished",
		"issue", issueNumber, "status", result.Status, "quality_passed", result.QualityGatePassed,
		"duration_ms", result.DurationMS, "retries", result.RetryCount)

	if result.Status == planmodel.IssueFailed {
		return fmt.Errorf("issue #%d failed: %s", issueNumber, result.ErrorMessage)
	}

	_ = huddle
	return nil
}
