package main

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"
)

func newFullCycleCmd(env func() *cliEnv) *cobra.Command {
	var sprintNumber int

	cmd := &cobra.Command{
		Use:   "full-cycle",
		Short: "Run refine, plan, execute, review, and retro for a sprint",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return cmdFullCycle(env(), sprintNumber)
		},
	}
	cmd.Flags().IntVar(&sprintNumber, "sprint", 0, "sprint number")
	cmd.MarkFlagRequired("sprint")
	return cmd
}

func cmdFullCycle(env *cliEnv, sprintNumber int) error {
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

	runner, err := r.newRunner(slug, sprintNumber, env.logger)
	if err != nil {
		return fmt.Errorf("loading runner state: %w", err)
	}

	cfg := r.cfg.ToSprintConfig(sprintNumber, slug, r.projectPath)

	if err := runner.FullCycle(ctx, cfg); err != nil {
		return fmt.Errorf("full cycle: %w", err)
	}

	env.logger.Info("sprint cycle finished", "slug", slug, "sprint", sprintNumber, "phase", runner.Phase())
	return nil
}
