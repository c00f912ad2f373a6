package main

import (
	"log/slog"
	"os"

	"github.com/spf13/cobra"
)

func main() {
	logger := slog.New(slog.NewTextHandler(os.Stderr, nil))

	if err := newRootCmd(logger).Execute(); err != nil {
		os.Exit(1)
	}
}

func newRootCmd(logger *slog.Logger) *cobra.Command {
	var configPath, projectPath, slug string

	root := &cobra.Command{
		Use:           "sprintforge",
		Short:         "Drive a sprint of coding-assistant sessions end-to-end",
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	root.PersistentFlags().StringVar(&configPath, "config", "sprintforge.yaml", "path to the sprintforge config file")
	root.PersistentFlags().StringVar(&projectPath, "project", ".", "path to the target project's working copy")
	root.PersistentFlags().StringVar(&slug, "slug", "", "sprint slug (defaults to the config's repo name in commands that load the config; status and logs require it)")

	env := func() *cliEnv { return &cliEnv{logger: logger, configPath: configPath, projectPath: projectPath, slug: slug} }

	root.AddCommand(
		newInitCmd(),
		newPlanCmd(env),
		newRefineCmd(env),
		newExecuteIssueCmd(env),
		newCheckQualityCmd(env),
		newFullCycleCmd(env),
		newReviewCmd(env),
		newRetroCmd(env),
		newMetricsCmd(env),
		newDriftReportCmd(env),
		newWebCmd(env),
		newBenchCmd(env),
		newResumeCmd(env),
		newRunsCmd(env),
		newStatusCmd(env),
		newLogsCmd(env),
		newEditCmd(env),
		newNLCmd(env),
	)

	return root
}

// cliEnv carries the flags every subcommand needs to load config and wire
// its collaborators; built fresh per invocation from the root command's
// persistent flags.
type cliEnv struct {
	logger      *slog.Logger
	configPath  string
	projectPath string
	slug        string
}

// resolveSlug returns e.slug if set, otherwise falls back to the config's
// forge repo name once loaded (spec §6: slug defaults are project-derived).
func (e *cliEnv) resolveSlug(fallback string) string {
	if e.slug != "" {
		return e.slug
	}
	return fallback
}
