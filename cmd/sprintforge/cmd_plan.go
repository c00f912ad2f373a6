package main

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"
)

func newPlanCmd(env func() *cliEnv) *cobra.Command {
	var sprintNumber int

	cmd := &cobra.Command{
		Use:   "plan",
		Short: "Run the planner ceremony for a sprint",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return cmdPlan(env(), sprintNumber)
		},
	}
	cmd.Flags().IntVar(&sprintNumber, "sprint", 0, "sprint number")
	cmd.MarkFlagRequired("sprint")
	return cmd
}

func cmdPlan(env *cliEnv, sprintNumber int) error {
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

	cfg := r.cfg.ToSprintConfig(sprintNumber, slug, r.projectPath)

	plan, err := r.ceremonies.Plan(ctx, cfg)
	if err != nil {
		return fmt.Errorf("plan: %w", err)
	}

	env.logger.Info("plan complete", "slug", slug, "sprint", sprintNumber, "issues", len(plan.Issues), "groups", len(plan.ExecutionGroups))
	return nil
}
