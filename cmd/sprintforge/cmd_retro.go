package main

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"
)

func newRetroCmd(env func() *cliEnv) *cobra.Command {
	var sprintNumber int

	cmd := &cobra.Command{
		Use:   "retro",
		Short: "Run the sprint retrospective over the persisted result and huddle log",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return cmdRetro(env(), sprintNumber)
		},
	}
	cmd.Flags().IntVar(&sprintNumber, "sprint", 0, "sprint number")
	cmd.MarkFlagRequired("sprint")
	return cmd
}

func cmdRetro(env *cliEnv, sprintNumber int) error {
	if sprintNumber <= 0 {
		return fmt.Errorf("invalid sprint number %d", sprintNumber)
	}

	slug := env.resolveSlug("")
	r, err := buildRig(env.configPath, env.projectPath, slug, sprintNumber, env.logger)
	if err != nil {
		return err
	}
	slug = env.resolveSlug(r.cfg.Forge.Repo)

	state, err := loadSprintState(r.projectPath, slug, sprintNumber)
	if err != nil {
		return err
	}

	ctx := context.Background()
	if err := r.connect(ctx); err != nil {
		return fmt.Errorf("connecting agent client: %w", err)
	}
	defer r.disconnect(ctx)

	cfg := r.cfg.ToSprintConfig(sprintNumber, slug, r.projectPath)
	notes, err := r.ceremonies.Retro(ctx, cfg, state.Result, state.Huddles)
	if err != nil {
		return fmt.Errorf("retro: %w", err)
	}

	fmt.Println(notes)
	env.logger.Info("retro complete", "slug", slug, "sprint", sprintNumber)
	return nil
}
