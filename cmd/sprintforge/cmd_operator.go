package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/exec"
	"path/filepath"
	"time"

	"github.com/spf13/cobra"

	"github.com/sprintforge/sprintforge/internal/scanner"
)

func newResumeCmd(env func() *cliEnv) *cobra.Command {
	var sprintNumber int

	cmd := &cobra.Command{
		Use:   "resume",
		Short: "Resume a paused sprint and continue its full cycle",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return cmdResume(env(), sprintNumber)
		},
	}
	cmd.Flags().IntVar(&sprintNumber, "sprint", 0, "sprint number")
	cmd.MarkFlagRequired("sprint")
	return cmd
}

func cmdResume(env *cliEnv, sprintNumber int) error {
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

	if err := runner.Resume(ctx); err != nil {
		return fmt.Errorf("resume: %w", err)
	}

	cfg := r.cfg.ToSprintConfig(sprintNumber, slug, r.projectPath)
	if err := runner.FullCycle(ctx, cfg); err != nil {
		return fmt.Errorf("full cycle: %w", err)
	}

	env.logger.Info("sprint resumed and finished", "slug", slug, "sprint", sprintNumber, "phase", runner.Phase())
	return nil
}

func newRunsCmd(env func() *cliEnv) *cobra.Command {
	var discoverRoots []string

	cmd := &cobra.Command{
		Use:   "runs",
		Short: "List local sprint states, or discover sprintforge repos under given roots",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return cmdRuns(env(), discoverRoots)
		},
	}
	cmd.Flags().StringSliceVar(&discoverRoots, "discover", nil, "filesystem roots to walk for sprintforge repos, instead of just listing the current project")
	return cmd
}

func cmdRuns(env *cliEnv, discoverRoots []string) error {
	if len(discoverRoots) > 0 {
		repos, err := scanner.ScanRepos(discoverRoots)
		if err != nil {
			return fmt.Errorf("scanning for repos: %w", err)
		}
		for _, repo := range repos {
			fmt.Printf("%s\t%s\t%d sprint(s)\n", repo.RepoName, repo.RepoPath, len(repo.Sprints))
		}
		return nil
	}

	dir := filepath.Join(env.projectPath, "docs", "sprints")
	entries, err := filepath.Glob(filepath.Join(dir, "*-state.json"))
	if err != nil {
		return err
	}
	for _, path := range entries {
		fmt.Println(filepath.Base(path))
	}
	return nil
}

func newStatusCmd(env func() *cliEnv) *cobra.Command {
	var sprintNumber int

	cmd := &cobra.Command{
		Use:   "status",
		Short: "Show a sprint's persisted phase and result summary",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return cmdStatus(env(), sprintNumber)
		},
	}
	cmd.Flags().IntVar(&sprintNumber, "sprint", 0, "sprint number")
	cmd.MarkFlagRequired("sprint")
	return cmd
}

func cmdStatus(env *cliEnv, sprintNumber int) error {
	slug := env.resolveSlug("")
	if slug == "" {
		return fmt.Errorf("--slug is required")
	}
	state, err := loadSprintState(env.projectPath, slug, sprintNumber)
	if err != nil {
		return err
	}

	elapsed := state.UpdatedAt.Sub(state.CreatedAt).Truncate(time.Second)
	fmt.Printf("Slug:     %s\n", state.Slug)
	fmt.Printf("Sprint:   %d\n", state.SprintNumber)
	fmt.Printf("Phase:    %s\n", state.Phase)
	fmt.Printf("Elapsed:  %s\n", elapsed)
	fmt.Printf("Issues:   %d planned, %d results\n", len(state.Plan.Issues), len(state.Result.IssueResults))
	return nil
}

func newLogsCmd(env func() *cliEnv) *cobra.Command {
	var sprintNumber int
	var follow bool

	cmd := &cobra.Command{
		Use:   "logs",
		Short: "Show a sprint's huddle log",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return cmdLogs(env(), sprintNumber, follow)
		},
	}
	cmd.Flags().IntVar(&sprintNumber, "sprint", 0, "sprint number")
	cmd.Flags().BoolVarP(&follow, "follow", "f", false, "follow log output")
	cmd.MarkFlagRequired("sprint")
	return cmd
}

func cmdLogs(env *cliEnv, sprintNumber int, follow bool) error {
	slug := env.resolveSlug("")
	if slug == "" {
		return fmt.Errorf("--slug is required")
	}
	logPath := filepath.Join(env.projectPath, "docs", "sprints", fmt.Sprintf("%s-%d-log.md", slug, sprintNumber))

	if follow {
		cmd := exec.Command("tail", "-f", logPath)
		cmd.Stdout = os.Stdout
		cmd.Stderr = os.Stderr
		return cmd.Run()
	}

	f, err := os.Open(logPath)
	if err != nil {
		return fmt.Errorf("opening log: %w", err)
	}
	defer f.Close()

	_, err = io.Copy(os.Stdout, f)
	return err
}

func newEditCmd(env func() *cliEnv) *cobra.Command {
	var issueNumber int

	cmd := &cobra.Command{
		Use:   "edit",
		Short: "Print the worktree path for an in-flight issue, for manual editing",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return cmdEdit(env(), issueNumber)
		},
	}
	cmd.Flags().IntVar(&issueNumber, "issue", 0, "issue number")
	cmd.MarkFlagRequired("issue")
	return cmd
}

func cmdEdit(env *cliEnv, issueNumber int) error {
	if issueNumber <= 0 {
		return fmt.Errorf("invalid issue number %d", issueNumber)
	}

	r, err := buildRig(env.configPath, env.projectPath, env.slug, 0, env.logger)
	if err != nil {
		return err
	}

	path := filepath.Join(r.cfg.Worktree.Root, fmt.Sprintf("issue-%d", issueNumber))
	if _, err := os.Stat(path); err != nil {
		return fmt.Errorf("worktree for issue #%d not found at %s: %w", issueNumber, path, err)
	}

	fmt.Println(path)
	return nil
}
