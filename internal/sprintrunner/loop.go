package sprintrunner

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/sprintforge/sprintforge/internal/eventbus"
	"github.com/sprintforge/sprintforge/internal/forge"
	"github.com/sprintforge/sprintforge/internal/planmodel"
)

// ConfigFn builds a sprint's config from the milestone the loop just
// discovered (slug, branch names, feature flags — whatever the caller's
// project-level configuration layer decides per milestone).
type ConfigFn func(milestone forge.Milestone) (planmodel.SprintConfig, error)

// Loop repeatedly discovers the next open milestone and runs it through a
// fresh Runner's FullCycle, until no open milestone remains (spec §4.10:
// "sprintLoop(configFn, bus) repeatedly: discovers the next open
// milestone, builds the sprint config, runs fullCycle, and iterates").
type Loop struct {
	Forge      forge.Adapter
	Prefix     string
	Ceremonies Ceremonies
	Dispatcher Dispatcher
	Bus        *eventbus.Bus
	Logger     *slog.Logger
}

// Run drives the loop until no open milestone remains or ctx is canceled.
func (l *Loop) Run(ctx context.Context, configFn ConfigFn) error {
	for {
		if err := ctx.Err(); err != nil {
			return err
		}

		milestone, ok, err := l.Forge.GetNextOpenMilestone(ctx, l.Prefix)
		if err != nil {
			return fmt.Errorf("sprint loop: discovering next milestone: %w", err)
		}
		if !ok {
			l.Logger.Info("sprint loop: no open milestone remains, stopping")
			return nil
		}

		cfg, err := configFn(milestone)
		if err != nil {
			return fmt.Errorf("sprint loop: building config for milestone %q: %w", milestone.Title, err)
		}

		runner, err := New(cfg.Slug, cfg.SprintNumber, l.Ceremonies, l.Dispatcher, l.Bus, l.Logger)
		if err != nil {
			return fmt.Errorf("sprint loop: loading runner state for %q: %w", cfg.Slug, err)
		}

		l.Logger.Info("sprint loop: running sprint", "slug", cfg.Slug, "sprint_number", cfg.SprintNumber)
		if err := runner.FullCycle(ctx, cfg); err != nil {
			return fmt.Errorf("sprint loop: sprint %q failed: %w", cfg.Slug, err)
		}
	}
}
