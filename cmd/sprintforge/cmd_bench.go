package main

import (
	"context"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/sprintforge/sprintforge/internal/planmodel"
	"github.com/sprintforge/sprintforge/internal/promptbench"
)

func newBenchCmd(env func() *cliEnv) *cobra.Command {
	var role, examplesDir, modelID, reportDir string

	cmd := &cobra.Command{
		Use:   "bench",
		Short: "Run prompt-bench examples against an agent role and score the responses",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return cmdBench(env(), planmodel.Role(role), examplesDir, modelID, reportDir)
		},
	}
	cmd.Flags().StringVar(&role, "role", "", "agent role to bench (planner|developer|test-engineer|quality-reviewer|challenger|refiner|retro)")
	cmd.Flags().StringVar(&examplesDir, "examples", "testdata/promptbench", "directory of example YAML fixtures")
	cmd.Flags().StringVar(&modelID, "model", "", "model id override for the bench session")
	cmd.Flags().StringVar(&reportDir, "report-dir", "docs/promptbench", "directory to persist the latest and timestamped report")
	cmd.MarkFlagRequired("role")
	return cmd
}

func cmdBench(env *cliEnv, role planmodel.Role, examplesDir, modelID, reportDir string) error {
	r, err := buildRig(env.configPath, env.projectPath, env.slug, 0, env.logger)
	if err != nil {
		return err
	}

	ctx := context.Background()
	if err := r.connect(ctx); err != nil {
		return fmt.Errorf("connecting agent client: %w", err)
	}
	defer r.disconnect(ctx)

	var judge promptbench.Judge
	if apiKey := os.Getenv("ANTHROPIC_API_KEY"); apiKey != "" {
		judgeModel := modelID
		if judgeModel == "" {
			judgeModel = "claude-3-5-haiku-latest"
		}
		judge = promptbench.NewAnthropicJudge(apiKey, judgeModel)
	}

	harness := promptbench.New(r.agent, env.logger)
	report, err := harness.Run(ctx, promptbench.Config{
		Role:           role,
		ExamplesDir:    examplesDir,
		ProjectPath:    r.projectPath,
		ModelID:        modelID,
		SessionTimeout: r.cfg.Agent.SessionTimeout.Duration,
		Judge:          judge,
	})
	if err != nil {
		return fmt.Errorf("running prompt-bench: %w", err)
	}

	if err := promptbench.WriteReport(reportDir, report); err != nil {
		return fmt.Errorf("writing prompt-bench report: %w", err)
	}

	env.logger.Info("prompt-bench complete", "role", role, "total", report.Total, "passed", report.Passed, "accuracy", report.Accuracy)

	if report.Accuracy < promptbench.MinAccuracy {
		fmt.Printf("accuracy %.0f%% below threshold %.0f%%\n", report.Accuracy*100, promptbench.MinAccuracy*100)
		os.Exit(1)
	}
	return nil
}
