package main

import (
	"fmt"
	"sort"
	"strings"

	"github.com/spf13/cobra"
)

func newDriftReportCmd(env func() *cliEnv) *cobra.Command {
	var sprintNumber int
	var changedFiles, expectedFiles []string

	cmd := &cobra.Command{
		Use:   "drift-report",
		Short: "Report files changed outside a sprint's expected-files scope",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return cmdDriftReport(env(), sprintNumber, changedFiles, expectedFiles)
		},
	}
	cmd.Flags().IntVar(&sprintNumber, "sprint", 0, "sprint number")
	cmd.Flags().StringSliceVar(&changedFiles, "changed-files", nil, "changed files (defaults to every issue's recorded files-changed)")
	cmd.Flags().StringSliceVar(&expectedFiles, "expected-files", nil, "expected files (defaults to the plan's union of expected-files hints)")
	cmd.MarkFlagRequired("sprint")
	return cmd
}

func cmdDriftReport(env *cliEnv, sprintNumber int, changedFiles, expectedFiles []string) error {
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

	if len(changedFiles) == 0 {
		for _, res := range state.Result.IssueResults {
			changedFiles = append(changedFiles, res.FilesChanged...)
		}
	}
	if len(expectedFiles) == 0 {
		for _, iss := range state.Plan.Issues {
			expectedFiles = append(expectedFiles, iss.ExpectedFiles...)
		}
	}

	expected := make(map[string]bool, len(expectedFiles))
	for _, f := range expectedFiles {
		expected[f] = true
	}

	var outside []string
	for _, f := range changedFiles {
		if !expected[f] {
			outside = append(outside, f)
		}
	}
	sort.Strings(outside)

	if len(outside) == 0 {
		env.logger.Info("drift-report: no out-of-scope files", "slug", slug, "sprint", sprintNumber)
		return nil
	}

	fmt.Printf("sprint %d drifted outside its expected scope:\n%s\n", sprintNumber, strings.Join(outside, "\n"))
	return nil
}
