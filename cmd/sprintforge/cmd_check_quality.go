package main

import (
	"context"
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

func newCheckQualityCmd(env func() *cliEnv) *cobra.Command {
	var branch, base string

	cmd := &cobra.Command{
		Use:   "check-quality",
		Short: "Run the configured quality-gate checks against a branch",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return cmdCheckQuality(env(), branch, base)
		},
	}
	cmd.Flags().StringVar(&branch, "branch", "", "branch to check")
	cmd.Flags().StringVar(&base, "base", "", "base branch to diff against (defaults to the configured base branch)")
	cmd.MarkFlagRequired("branch")
	return cmd
}

func cmdCheckQuality(env *cliEnv, branch, base string) error {
	if branch == "" {
		return fmt.Errorf("branch is required")
	}

	slug := env.resolveSlug("")
	r, err := buildRig(env.configPath, env.projectPath, slug, 0, env.logger)
	if err != nil {
		return err
	}

	if base == "" {
		base = r.cfg.Forge.BaseBranch
	}

	ctx := context.Background()
	cfg := r.cfg.ToSprintConfig(0, slug, r.projectPath)

	result := r.gate.Run(ctx, cfg.QualityGate, r.worktrees, r.projectPath, branch, base, nil)

	for _, c := range result.Checks {
		status := "pass"
		if !c.Passed {
			status = "fail"
		}
		env.logger.Info("quality check", "name", c.Name, "category", c.Category, "status", status, "detail", c.Detail)
	}

	if !result.Passed {
		fmt.Fprintf(os.Stderr, "quality gate failed for branch %s\n", branch)
		os.Exit(1)
	}
	env.logger.Info("quality gate passed", "branch", branch)
	return nil
}
