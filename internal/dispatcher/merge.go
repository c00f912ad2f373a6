package dispatcher

import (
	"context"
	"fmt"

	"github.com/sprintforge/sprintforge/internal/forge"
	"github.com/sprintforge/sprintforge/internal/planmodel"
)

func forgeMergeOptions(cfg planmodel.SprintConfig) forge.MergeOptions {
	return forge.MergeOptions{Squash: cfg.Flags.Squash, DeleteBranch: cfg.Flags.DeleteBranch}
}

// mergeGroup runs spec §4.9 step 3 over every completed, quality-passing
// issue in results: pre-merge rebase/conflict verification, a local
// merge-and-spot-check in a disposable worktree, then the actual PR merge.
// Returns the number of merge conflicts encountered (for SprintResult's
// MergeConflicts counter).
func (d *Dispatcher) mergeGroup(ctx context.Context, cfg planmodel.SprintConfig, results []planmodel.IssueResult) int {
	if d.Merger == nil {
		d.Logger.Warn("auto-merge enabled but no merger configured, skipping")
		return 0
	}

	conflicts := 0
	for i := range results {
		r := &results[i]
		if r.Status != planmodel.IssueCompleted || !r.QualityGatePassed {
			continue
		}
		if err := d.mergeOne(ctx, cfg, r); err != nil {
			d.Logger.Warn("merge failed", "issue", r.IssueNumber, "branch", r.Branch, "error", err)
			r.Status = planmodel.IssueFailed
			r.ErrorMessage = err.Error()
			conflicts++
			if setErr := d.Forge.SetLabel(ctx, r.IssueNumber, "status:blocked"); setErr != nil {
				d.Logger.Warn("setting blocked label after merge failure failed", "issue", r.IssueNumber, "error", setErr)
			}
			if cErr := d.Forge.AddComment(ctx, r.IssueNumber, "**Merge blocked:** "+err.Error()); cErr != nil {
				d.Logger.Warn("posting merge-blocked comment failed", "issue", r.IssueNumber, "error", cErr)
			}
		}
	}
	return conflicts
}

func (d *Dispatcher) mergeOne(ctx context.Context, cfg planmodel.SprintConfig, r *planmodel.IssueResult) error {
	rebasable, err := d.Merger.CanRebase(ctx, r.Branch, cfg.BaseBranch)
	if err != nil {
		return fmt.Errorf("rebase check: %w", err)
	}
	if !rebasable {
		return fmt.Errorf("branch does not rebase cleanly onto %s", cfg.BaseBranch)
	}

	conflicted, err := d.Merger.HasConflicts(ctx, r.Branch, cfg.BaseBranch)
	if err != nil {
		return fmt.Errorf("conflict check: %w", err)
	}
	if conflicted {
		return fmt.Errorf("merge would conflict with %s", cfg.BaseBranch)
	}

	spotCheckCmds := []string{cfg.QualityGate.TestCmd, cfg.QualityGate.TypesCmd}
	if err := d.Merger.SpotCheckMerge(ctx, r.Branch, cfg.BaseBranch, spotCheckCmds...); err != nil {
		return fmt.Errorf("pre-merge spot check: %w", err)
	}

	mergeResult, err := d.Forge.MergeIssuePR(ctx, r.Branch, forgeMergeOptions(cfg))
	if err != nil {
		return fmt.Errorf("merging pull request: %w", err)
	}
	if !mergeResult.Success {
		return fmt.Errorf("merge rejected: %s", mergeResult.Reason)
	}
	return nil
}
