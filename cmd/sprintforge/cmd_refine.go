package main

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"
)

func newRefineCmd(env func() *cliEnv) *cobra.Command {
	var sprintNumber int

	cmd := &cobra.Command{
		Use:   "refine",
		Short: "Score and groom the open backlog with ICE",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return cmdRefine(env(), sprintNumber)
		},
	}
	cmd.Flags().IntVar(&sprintNumber, "sprint", 0, "sprint number (used for template variables only)")
	cmd.MarkFlagRequired("sprint")
	return cmd
}

func cmdRefine(env *cliEnv, sprintNumber int) error {
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
	if err := r.ceremonies.Refine(ctx, cfg); err != nil {
		return fmt.Errorf("refine: %w", err)
	}

	env.logger.Info("refine complete", "slug", slug, "sprint", sprintNumber)
	return nil
}
