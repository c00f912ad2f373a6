package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/sprintforge/sprintforge/internal/planmodel"
	"github.com/sprintforge/sprintforge/internal/velocity"
)

func newMetricsCmd(env func() *cliEnv) *cobra.Command {
	var sprintNumber int

	cmd := &cobra.Command{
		Use:   "metrics",
		Short: "Record a sprint's velocity row from its persisted result",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return cmdMetrics(env(), sprintNumber)
		},
	}
	cmd.Flags().IntVar(&sprintNumber, "sprint", 0, "sprint number")
	cmd.MarkFlagRequired("sprint")
	return cmd
}

func cmdMetrics(env *cliEnv, sprintNumber int) error {
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

	row := velocity.Row{
		Sprint:  sprintNumber,
		Date:    state.UpdatedAt.Format("2006-01-02"),
		Goal:    slug,
		Planned: len(state.Plan.Issues),
		Done:    countByStatus(state.Result.IssueResults, planmodel.IssueCompleted),
		Carry:   len(state.Plan.Issues) - countByStatus(state.Result.IssueResults, planmodel.IssueCompleted),
		Hours:   totalHours(state.Result.IssueResults),
	}

	if err := velocity.Append(r.projectPath, row); err != nil {
		return fmt.Errorf("recording velocity: %w", err)
	}

	env.logger.Info("metrics recorded", "slug", slug, "sprint", sprintNumber, "planned", row.Planned, "done", row.Done, "carry", row.Carry)
	return nil
}

func countByStatus(results []planmodel.IssueResult, status planmodel.IssueStatus) int {
	n := 0
	for _, r := range results {
		if r.Status == status {
			n++
		}
	}
	return n
}

func totalHours(results []planmodel.IssueResult) float64 {
	var ms int64
	for _, r := range results {
		ms += r.DurationMS
	}
	return float64(ms) / 3_600_000.0
}
