package forge

import (
	"context"
	"fmt"

	"github.com/google/go-github/v68/github"
)

func (c *Client) findOpenPR(ctx context.Context, branch string) (*github.PullRequest, error) {
	opts := &github.PullRequestListOptions{
		Head:        fmt.Sprintf("%s:%s", c.Owner, branch),
		State:       "open",
		ListOptions: github.ListOptions{PerPage: 10},
	}
	prs, _, err := c.gh.PullRequests.List(ctx, c.Owner, c.Repo, opts)
	if err != nil {
		return nil, fmt.Errorf("forge: list PRs for %s: %w", branch, err)
	}
	if len(prs) == 0 {
		return nil, nil
	}
	return prs[0], nil
}

// GetPRStats returns the size of branch's open PR, or nil if none exists.
func (c *Client) GetPRStats(ctx context.Context, branch string) (*PRStats, error) {
	summary, err := c.findOpenPR(ctx, branch)
	if err != nil {
		return nil, err
	}
	if summary == nil {
		return nil, nil
	}

	pr, _, err := c.gh.PullRequests.Get(ctx, c.Owner, c.Repo, summary.GetNumber())
	if err != nil {
		return nil, fmt.Errorf("forge: get PR #%d: %w", summary.GetNumber(), err)
	}

	return &PRStats{
		PRNumber:     pr.GetNumber(),
		Additions:    pr.GetAdditions(),
		Deletions:    pr.GetDeletions(),
		ChangedFiles: pr.GetChangedFiles(),
	}, nil
}

// MergeIssuePR merges branch's open PR. If no PR is open, it returns a
// failed result rather than erroring — the caller decides severity per
// spec §4.6.
func (c *Client) MergeIssuePR(ctx context.Context, branch string, opts MergeOptions) (MergeResult, error) {
	pr, err := c.findOpenPR(ctx, branch)
	if err != nil {
		return MergeResult{}, err
	}
	if pr == nil {
		return MergeResult{Success: false, Reason: "no open PR for branch " + branch}, nil
	}

	method := "merge"
	if opts.Squash {
		method = "squash"
	}

	result, _, err := c.gh.PullRequests.Merge(ctx, c.Owner, c.Repo, pr.GetNumber(), "", &github.PullRequestOptions{
		MergeMethod: method,
	})
	if err != nil {
		return MergeResult{Success: false, PRNumber: pr.GetNumber(), Reason: err.Error()}, nil
	}
	if !result.GetMerged() {
		return MergeResult{Success: false, PRNumber: pr.GetNumber(), Reason: result.GetMessage()}, nil
	}

	if opts.DeleteBranch {
		ref := "heads/" + branch
		if _, err := c.gh.Git.DeleteRef(ctx, c.Owner, c.Repo, ref); err != nil {
			c.Logger.Warn("forge: merged PR but failed to delete branch", "branch", branch, "error", err)
		}
	}

	return MergeResult{Success: true, PRNumber: pr.GetNumber()}, nil
}
