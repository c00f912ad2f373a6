package main

import (
	"context"
	"fmt"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/sprintforge/sprintforge/internal/sprintrunner"
)

func newReviewCmd(env func() *cliEnv) *cobra.Command {
	var sprintNumber int

	cmd := &cobra.Command{
		Use:   "review",
		Short: "Run the sprint-level review ceremony over the persisted sprint result",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return cmdReview(env(), sprintNumber)
		},
	}
	cmd.Flags().IntVar(&sprintNumber, "sprint", 0, "sprint number")
	cmd.MarkFlagRequired("sprint")
	return cmd
}

// loadSprintState reads the persisted state for slug under projectPath,
// failing if it isn't for the requested sprint number (spec §6: "invalid
// sprint/issue numbers exit 1 with a usage message").
func loadSprintState(projectPath, slug string, sprintNumber int) (*sprintrunner.State, error) {
	path := filepath.Join(projectPath, "docs", "sprints", slug+"-state.json")
	s, err := sprintrunner.LoadStateFile(path)
	if err != nil {
		return nil, fmt.Errorf("loading sprint state: %w", err)
	}
	if s.SprintNumber != sprintNumber {
		return nil, fmt.Errorf("persisted state for %q is on sprint %d, not %d", slug, s.SprintNumber, sprintNumber)
	}
	return s, nil
}

func cmdReview(env *cliEnv, sprintNumber int) error {
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
	if err := r.ceremonies.Review(ctx, cfg, state.Result); err != nil {
		return fmt.Errorf("review: %w", err)
	}

	env.logger.Info("review complete", "slug", slug, "sprint", sprintNumber)
	return nil
}
