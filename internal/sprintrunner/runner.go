// Package sprintrunner drives one sprint through the phase graph
//
//	init -> refine -> plan -> execute -> review -> retro -> complete
//	                                 \-> failed (terminal)
//	paused <-> (previous phase, recorded in phaseBeforePause)
//
// persisting state after every transition (spec §4.10). Adapted from the
// teacher's internal/state.RunState: Save()'s write-then-rename atomicity
// and ResetFrom's "mark everything before idx completed, idx onward
// pending" resume idea become State.save() and the completed-issue
// reconciliation in filterCompleted/mergeResults.
package sprintrunner

import (
	"context"
	"fmt"
	"log/slog"
	"sync"

	"github.com/sprintforge/sprintforge/internal/eventbus"
	"github.com/sprintforge/sprintforge/internal/planmodel"
)

// Dispatcher is the subset of *dispatcher.Dispatcher the runner's execute
// phase drives.
type Dispatcher interface {
	Dispatch(ctx context.Context, cfg planmodel.SprintConfig, plan planmodel.SprintPlan) (planmodel.SprintResult, []planmodel.HuddleEntry, error)
}

// Runner owns one sprint's persisted phase state and drives it through
// ceremonies and the dispatcher.
type Runner struct {
	Ceremonies Ceremonies
	Dispatcher Dispatcher
	Bus        *eventbus.Bus
	Logger     *slog.Logger

	mu             sync.Mutex
	state          *State
	pauseRequested bool
	cycleRunning   bool
}

// New loads a sprint's persisted state for slug, or creates a fresh
// phase=init state if none exists yet.
func New(slug string, sprintNumber int, ceremonies Ceremonies, dispatcher Dispatcher, bus *eventbus.Bus, logger *slog.Logger) (*Runner, error) {
	s, err := loadState(slug)
	if err != nil {
		return nil, err
	}
	if s == nil {
		s = newState(slug, sprintNumber)
	}
	return &Runner{Ceremonies: ceremonies, Dispatcher: dispatcher, Bus: bus, Logger: logger, state: s}, nil
}

// Phase returns the runner's current phase.
func (r *Runner) Phase() planmodel.Phase {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.state.Phase
}

// Slug returns the sprint slug this runner persists state under.
func (r *Runner) Slug() string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.state.Slug
}

// transition moves to phase, persists, and emits phase:change.
func (r *Runner) transition(to planmodel.Phase) error {
	r.mu.Lock()
	from := r.state.Phase
	r.state.Phase = to
	err := r.state.save()
	r.mu.Unlock()

	if r.Bus != nil {
		r.Bus.Emit(eventbus.PhaseChange, eventbus.PhaseChangePayload{From: string(from), To: string(to)})
	}
	return err
}

// consumePauseRequested reports whether Pause was called since the last
// check, clearing the flag. FullCycle calls this only between phases, so
// a pause requested mid-phase takes effect once the in-flight ceremony
// returns rather than stomping on whatever phase the loop transitions to
// next (spec §4.10: "no preemption inside a phase").
func (r *Runner) consumePauseRequested() bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	requested := r.pauseRequested
	r.pauseRequested = false
	return requested
}

// Pause requests a suspend. If no FullCycle is currently running, the
// pause applies immediately. Otherwise the ceremony or dispatcher call in
// flight finishes uninterrupted, and FullCycle applies the pause —
// persisting phase=paused with phaseBeforePause set to whatever phase it
// was about to start next — the moment that call returns (spec §4.10: "no
// preemption inside a phase").
func (r *Runner) Pause(ctx context.Context) error {
	r.mu.Lock()
	if r.state.Phase == planmodel.PhasePaused {
		r.mu.Unlock()
		return nil
	}
	if !r.cycleRunning {
		current := r.state.Phase
		r.state.PhaseBeforePause = current
		r.state.Phase = planmodel.PhasePaused
		err := r.state.save()
		r.mu.Unlock()
		if err != nil {
			return err
		}
		if r.Bus != nil {
			r.Bus.Emit(eventbus.SprintPaused, eventbus.SprintPausedPayload{SprintNumber: r.state.SprintNumber})
		}
		return nil
	}
	r.pauseRequested = true
	r.mu.Unlock()
	return nil
}

// applyPause persists the paused phase with next as the phase to resume
// into, and emits sprint:paused.
func (r *Runner) applyPause(next planmodel.Phase) error {
	r.mu.Lock()
	r.state.PhaseBeforePause = next
	r.state.Phase = planmodel.PhasePaused
	err := r.state.save()
	r.mu.Unlock()
	if err != nil {
		return err
	}
	if r.Bus != nil {
		r.Bus.Emit(eventbus.SprintPaused, eventbus.SprintPausedPayload{SprintNumber: r.state.SprintNumber})
	}
	return nil
}

// Resume restores the phase recorded before Pause and lets FullCycle
// continue from there.
func (r *Runner) Resume(ctx context.Context) error {
	r.mu.Lock()
	if r.state.Phase != planmodel.PhasePaused {
		r.mu.Unlock()
		return nil
	}
	prior := r.state.PhaseBeforePause
	r.state.Phase = prior
	r.state.PhaseBeforePause = ""
	err := r.state.save()
	r.mu.Unlock()
	if err != nil {
		return err
	}
	if r.Bus != nil {
		r.Bus.Emit(eventbus.SprintResumed, eventbus.SprintResumedPayload{SprintNumber: r.state.SprintNumber})
	}
	return nil
}

// Stop pauses and logs a sprint:error, per spec §4.10: "stop() is pause +
// a sprint:error log".
func (r *Runner) Stop(ctx context.Context, reason string) error {
	if err := r.Pause(ctx); err != nil {
		return err
	}
	r.Logger.Error("sprint stopped", "slug", r.Slug(), "reason", reason)
	if r.Bus != nil {
		r.Bus.Emit(eventbus.SprintError, eventbus.SprintErrorPayload{Error: reason})
	}
	return nil
}

// phaseSequence is the ordered ceremony phases FullCycle drives, paired
// with the work each one does.
var phaseSequence = []planmodel.Phase{
	planmodel.PhaseRefine,
	planmodel.PhasePlan,
	planmodel.PhaseExecute,
	planmodel.PhaseReview,
	planmodel.PhaseRetro,
}

// FullCycle runs refine -> plan -> execute -> review -> retro in order,
// persisting and emitting phase:change after each transition, and halting
// (without error) if Pause was called between phases. Resumes from
// whatever phase the runner's persisted state names, rather than always
// starting at refine, so a crash mid-sprint picks back up correctly.
func (r *Runner) FullCycle(ctx context.Context, cfg planmodel.SprintConfig) error {
	r.mu.Lock()
	r.cycleRunning = true
	r.mu.Unlock()
	defer func() {
		r.mu.Lock()
		r.cycleRunning = false
		r.mu.Unlock()
	}()

	start := r.Phase()
	startIdx := 0
	if start != planmodel.PhaseInit {
		for i, p := range phaseSequence {
			if p == start {
				startIdx = i
				break
			}
		}
	}

	for i := startIdx; i < len(phaseSequence); i++ {
		phase := phaseSequence[i]

		if r.consumePauseRequested() {
			return r.applyPause(phase)
		}

		if err := r.runPhase(ctx, cfg, phase); err != nil {
			_ = r.transition(planmodel.PhaseFailed)
			return fmt.Errorf("sprint %s: phase %s: %w", cfg.Slug, phase, err)
		}

		next := planmodel.PhaseComplete
		if i+1 < len(phaseSequence) {
			next = phaseSequence[i+1]
		}

		if r.consumePauseRequested() {
			return r.applyPause(next)
		}
		if err := r.transition(next); err != nil {
			return err
		}
	}

	if r.Bus != nil {
		r.Bus.Emit(eventbus.SprintComplete, eventbus.SprintCompletePayload{SprintNumber: cfg.SprintNumber})
	}
	return nil
}

func (r *Runner) runPhase(ctx context.Context, cfg planmodel.SprintConfig, phase planmodel.Phase) error {
	switch phase {
	case planmodel.PhaseRefine:
		return r.Ceremonies.Refine(ctx, cfg)
	case planmodel.PhasePlan:
		plan, err := r.Ceremonies.Plan(ctx, cfg)
		if err != nil {
			return err
		}
		r.mu.Lock()
		r.state.Plan = plan
		err = r.state.save()
		r.mu.Unlock()
		if r.Bus != nil {
			issues := make([]int, 0, len(plan.Issues))
			for _, iss := range plan.Issues {
				issues = append(issues, iss.Number)
			}
			r.Bus.Emit(eventbus.SprintPlanned, eventbus.SprintPlannedPayload{Issues: issues})
		}
		return err
	case planmodel.PhaseExecute:
		return r.runExecute(ctx, cfg)
	case planmodel.PhaseReview:
		r.mu.Lock()
		result := r.state.Result
		r.mu.Unlock()
		return r.Ceremonies.Review(ctx, cfg, result)
	case planmodel.PhaseRetro:
		r.mu.Lock()
		result := r.state.Result
		huddles := append([]planmodel.HuddleEntry{}, r.state.Huddles...)
		r.mu.Unlock()

		notes, err := r.Ceremonies.Retro(ctx, cfg, result, huddles)
		if err != nil {
			return err
		}
		r.mu.Lock()
		r.state.RetroNotes = notes
		err = r.state.save()
		r.mu.Unlock()
		return err
	default:
		return fmt.Errorf("unknown phase %q", phase)
	}
}

// runExecute dispatches the plan's not-yet-completed issues (spec §4.10's
// crash-recovery reconciliation: skip issues whose last result status is
// completed) and merges the outcome into persisted state.
func (r *Runner) runExecute(ctx context.Context, cfg planmodel.SprintConfig) error {
	r.mu.Lock()
	plan := r.state.Plan
	prior := completedByNumber(r.state.Result.IssueResults)
	r.mu.Unlock()

	remaining := filterCompleted(plan, prior)
	if len(remaining.Issues) == 0 {
		r.Logger.Info("execute: every issue already completed on a prior run", "slug", r.Slug())
		return nil
	}

	if r.Bus != nil {
		r.Bus.Emit(eventbus.SprintStart, eventbus.SprintStartPayload{SprintNumber: cfg.SprintNumber})
	}

	result, huddles, err := r.Dispatcher.Dispatch(ctx, cfg, remaining)
	if err != nil {
		return fmt.Errorf("execute: %w", err)
	}

	merged := mergeResults(prior, result)

	r.mu.Lock()
	r.state.Result = merged
	r.state.Huddles = append(r.state.Huddles, huddles...)
	err = r.state.save()
	r.mu.Unlock()
	return err
}
