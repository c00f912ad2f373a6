// Package dispatcher fans a sprint plan's dependency-grouped issues out to
// the issue executor, group by group, then (optionally) merges every
// quality-passing issue's branch. Adapted from the teacher's
// internal/pipeline/batch.go: RunBatch's level-by-level topsort walk
// (sequential singletons, goroutine fan-out for multi-issue levels,
// reportFailure/findBlocked on failure) becomes Dispatch's group-by-group
// walk over the plan's pre-computed execution groups, generalized to spec
// §4.9's bounded-concurrency semaphore and its own post-group auto-merge
// and escalation steps.
package dispatcher

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"
	"golang.org/x/sync/semaphore"

	"github.com/sprintforge/sprintforge/internal/depgraph"
	"github.com/sprintforge/sprintforge/internal/eventbus"
	"github.com/sprintforge/sprintforge/internal/forge"
	"github.com/sprintforge/sprintforge/internal/planmodel"
)

// Executor is the subset of *executor.Executor the dispatcher drives. Kept
// as an interface so tests can substitute a fake issue runner.
type Executor interface {
	Execute(ctx context.Context, cfg planmodel.SprintConfig, issue planmodel.SprintIssue) (planmodel.IssueResult, planmodel.HuddleEntry)
}

// Merger is the subset of *worktree.Manager the auto-merge step's pre-merge
// verification needs.
type Merger interface {
	CanRebase(ctx context.Context, branch, base string) (bool, error)
	HasConflicts(ctx context.Context, branch, base string) (bool, error)
	SpotCheckMerge(ctx context.Context, branch, base string, cmds ...string) error
}

// Escalator is the subset of *forge.Escalator the dispatcher calls when a
// whole group fails outright.
type Escalator interface {
	Escalate(ctx context.Context, level forge.EscalationLevel, title, message string) error
}

// Dispatcher runs a sprint plan's execution groups in dependency order, with
// bounded concurrency within each group.
type Dispatcher struct {
	Executor  Executor
	Forge     forge.Adapter
	Merger    Merger
	Escalator Escalator
	Bus       *eventbus.Bus
	Logger    *slog.Logger
}

// New constructs a Dispatcher. merger and escalator may be nil (auto-merge
// and must-level escalation are then skipped with a warning).
func New(exec Executor, fg forge.Adapter, merger Merger, escalator Escalator, bus *eventbus.Bus, logger *slog.Logger) *Dispatcher {
	return &Dispatcher{Executor: exec, Forge: fg, Merger: merger, Escalator: escalator, Bus: bus, Logger: logger}
}

// groupOutcome is one group's settled issue results, paired with the huddle
// entries the caller appends to the sprint log.
type groupOutcome struct {
	results []planmodel.IssueResult
	huddles []planmodel.HuddleEntry
}

// Dispatch runs every execution group in plan in order, honoring the
// concurrency ordering guarantee that no issue in group k+1 starts before
// every issue in group k has finished. Returns once either every group has
// run or a whole group failed outright (in which case remaining groups are
// left unexecuted, per spec §4.9 step 4).
func (d *Dispatcher) Dispatch(ctx context.Context, cfg planmodel.SprintConfig, plan planmodel.SprintPlan) (planmodel.SprintResult, []planmodel.HuddleEntry, error) {
	groups := plan.ExecutionGroups
	if len(groups) == 0 {
		var err error
		groups, err = depgraph.Group(plan.Issues)
		if err != nil {
			return planmodel.SprintResult{}, nil, fmt.Errorf("grouping issues: %w", err)
		}
	}

	maxParallel := cfg.ConcurrencyCap
	if maxParallel <= 0 {
		maxParallel = 1
	}

	var allResults []planmodel.IssueResult
	var allHuddles []planmodel.HuddleEntry
	var totalDurationMS int64
	mergeConflicts := 0

	for _, group := range groups {
		outcome, err := d.runGroup(ctx, cfg, plan, group, int64(maxParallel))
		if err != nil {
			return planmodel.SprintResult{}, allHuddles, err
		}

		if cfg.Flags.AutoMerge {
			conflicts := d.mergeGroup(ctx, cfg, outcome.results)
			mergeConflicts += conflicts
		}

		allResults = append(allResults, outcome.results...)
		allHuddles = append(allHuddles, outcome.huddles...)

		for _, r := range outcome.results {
			totalDurationMS += r.DurationMS
		}

		if allFailed(outcome.results) {
			d.escalateGroupFailure(ctx, group, outcome.results)
			break
		}
	}

	result := planmodel.SprintResult{
		IssueResults:   allResults,
		SprintNumber:   cfg.SprintNumber,
		MergeConflicts: mergeConflicts,
	}
	if len(groups) > 0 {
		result.ParallelizationRatio = float64(len(plan.Issues)) / float64(len(groups))
	}
	if len(allResults) > 0 {
		result.AvgWorktreeLifetimeMS = float64(totalDurationMS) / float64(len(allResults))
	}
	return result, allHuddles, nil
}

// runGroup executes one dependency level with up to maxParallel issues
// in flight, converting any executor panic-equivalent into a settled
// failed result rather than letting it abort the group (spec §4.9 step 2:
// "PromiseSettled-equivalent").
func (d *Dispatcher) runGroup(ctx context.Context, cfg planmodel.SprintConfig, plan planmodel.SprintPlan, group planmodel.ExecutionGroup, maxParallel int64) (groupOutcome, error) {
	sem := semaphore.NewWeighted(maxParallel)
	results := make([]planmodel.IssueResult, len(group.Issues))
	huddles := make([]planmodel.HuddleEntry, len(group.Issues))

	g, gctx := errgroup.WithContext(ctx)
	for i, num := range group.Issues {
		i, num := i, num
		issue, ok := plan.IssueByNumber(num)
		if !ok {
			results[i] = planmodel.IssueResult{IssueNumber: num, Status: planmodel.IssueFailed, ErrorMessage: "issue not found in plan"}
			continue
		}

		g.Go(func() error {
			if err := sem.Acquire(gctx, 1); err != nil {
				return err
			}
			defer sem.Release(1)

			d.emitIssueStart(num)
			result, huddle := d.settle(gctx, cfg, issue)
			results[i] = result
			huddles[i] = huddle
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return groupOutcome{}, fmt.Errorf("running group %d: %w", group.Group, err)
	}
	return groupOutcome{results: results, huddles: huddles}, nil
}

// settle calls the executor and guards against it panicking — the
// goroutine-per-issue fan-out in runGroup must never let one issue's crash
// take the whole group down.
func (d *Dispatcher) settle(ctx context.Context, cfg planmodel.SprintConfig, issue planmodel.SprintIssue) (result planmodel.IssueResult, huddle planmodel.HuddleEntry) {
	defer func() {
		if r := recover(); r != nil {
			result = planmodel.IssueResult{
				IssueNumber:  issue.Number,
				Status:       planmodel.IssueFailed,
				ErrorMessage: fmt.Sprintf("executor panicked: %v", r),
			}
			huddle = planmodel.HuddleEntry{
				ID:          uuid.NewString(),
				IssueNumber: issue.Number,
				Title:       issue.Title,
				Status:      planmodel.IssueFailed,
				ErrorMessage: result.ErrorMessage,
				ZeroChangeDiagnostic: &planmodel.ZeroChangeDiagnostic{Outcome: "worker-error"},
			}
		}
	}()
	return d.Executor.Execute(ctx, cfg, issue)
}

func (d *Dispatcher) emitIssueStart(issueNumber int) {
	if d.Bus == nil {
		return
	}
	d.Bus.Emit(eventbus.IssueStart, eventbus.IssueStartPayload{Issue: issueNumber})
}

func allFailed(results []planmodel.IssueResult) bool {
	if len(results) == 0 {
		return false
	}
	for _, r := range results {
		if r.Status != planmodel.IssueFailed {
			return false
		}
	}
	return true
}

func (d *Dispatcher) escalateGroupFailure(ctx context.Context, group planmodel.ExecutionGroup, results []planmodel.IssueResult) {
	msg := fmt.Sprintf("sprintforge: every issue in group %d failed: %v — remaining groups were not started", group.Group, group.Issues)
	d.Logger.Error("group failed entirely, stopping dispatch", "group", group.Group, "issues", group.Issues)
	if d.Bus != nil {
		d.Bus.Emit(eventbus.SprintError, eventbus.SprintErrorPayload{Error: msg})
	}
	if d.Escalator == nil {
		d.Logger.Warn("no escalator configured, group failure not escalated", "group", group.Group)
		return
	}
	if err := d.Escalator.Escalate(ctx, forge.EscalationMust, fmt.Sprintf("sprint group %d blocked", group.Group), msg); err != nil {
		d.Logger.Warn("escalating group failure failed", "group", group.Group, "error", err)
	}
}
