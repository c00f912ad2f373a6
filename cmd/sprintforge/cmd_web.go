package main

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"

	"github.com/spf13/cobra"

	"github.com/sprintforge/sprintforge/internal/dashboard"
	"github.com/sprintforge/sprintforge/internal/forge"
	"github.com/sprintforge/sprintforge/internal/planmodel"
	"github.com/sprintforge/sprintforge/internal/registry"
	"github.com/sprintforge/sprintforge/internal/sprintrunner"
)

func newWebCmd(env func() *cliEnv) *cobra.Command {
	var port int
	var run, once bool
	var sprintNumber int
	var logFile string
	var noOpen bool

	cmd := &cobra.Command{
		Use:   "web",
		Short: "Start the dashboard web server, optionally driving a live sprint",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return cmdWeb(env(), port, run, once, sprintNumber, logFile, noOpen)
		},
	}
	cmd.Flags().IntVar(&port, "port", 9100, "HTTP server port")
	cmd.Flags().BoolVar(&run, "run", false, "drive the sprint loop across every open milestone while serving")
	cmd.Flags().BoolVar(&once, "once", false, "drive a single sprint's full cycle while serving")
	cmd.Flags().IntVar(&sprintNumber, "sprint", 0, "sprint number (required with --once)")
	cmd.Flags().StringVar(&logFile, "log-file", "", "write logs to this file instead of stderr")
	cmd.Flags().BoolVar(&noOpen, "no-open", false, "don't announce a browser-openable URL")
	cmd.MarkFlagsMutuallyExclusive("run", "once")
	return cmd
}

func cmdWeb(env *cliEnv, port int, run, once bool, sprintNumber int, logFile string, noOpen bool) error {
	logger := env.logger
	if logFile != "" {
		f, err := os.OpenFile(logFile, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o644)
		if err != nil {
			return fmt.Errorf("opening log file: %w", err)
		}
		defer f.Close()
		logger = slog.New(slog.NewTextHandler(io.MultiWriter(os.Stderr, f), nil))
	}

	slug := env.resolveSlug("")
	r, err := buildRig(env.configPath, env.projectPath, slug, sprintNumber, logger)
	if err != nil {
		return err
	}
	slug = env.resolveSlug(r.cfg.Forge.Repo)

	registry.Touch(r.projectPath)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	var runner *sprintrunner.Runner
	if run || once {
		if err := r.connect(ctx); err != nil {
			return fmt.Errorf("connecting agent client: %w", err)
		}
		defer r.disconnect(ctx)

		if once {
			if sprintNumber <= 0 {
				return fmt.Errorf("--once requires --sprint")
			}
			runner, err = r.newRunner(slug, sprintNumber, logger)
			if err != nil {
				return fmt.Errorf("loading runner state: %w", err)
			}
			cfg := r.cfg.ToSprintConfig(sprintNumber, slug, r.projectPath)
			go func() {
				if err := runner.FullCycle(ctx, cfg); err != nil {
					logger.Error("sprint cycle failed", "error", err)
				}
			}()
		} else {
			loop := &sprintrunner.Loop{
				Forge:      r.forgeClient,
				Prefix:     r.cfg.Sprint.Prefix,
				Ceremonies: r.ceremonies,
				Dispatcher: r.dispatcher,
				Bus:        r.bus,
				Logger:     logger,
			}
			configFn := func(milestone forge.Milestone) (planmodel.SprintConfig, error) {
				return r.cfg.ToSprintConfig(milestone.SprintNumber, slug, r.projectPath), nil
			}
			go func() {
				if err := loop.Run(ctx, configFn); err != nil {
					logger.Error("sprint loop stopped", "error", err)
				}
			}()
		}
	}

	if !noOpen {
		fmt.Printf("Dashboard at http://localhost:%d\n", port)
	}

	srv := dashboard.New(dashboard.Config{
		Port:        port,
		ProjectPath: r.projectPath,
		Slug:        slug,
		MultiRepo:   !once,
		Bus:         r.bus,
		Runner:      runner,
		Forge:       r.forgeClient,
		Chat:        r.chat,
		HITL:        r.hitl,
		Logger:      logger,
	})
	return srv.Run(ctx)
}
