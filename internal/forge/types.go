// Package forge is the external-contract-only adapter to the hosted code
// forge (spec §4.6): issues, labels, comments, milestones, and PR merges.
// Adapted from the teacher's internal/provider/vcs/github.go, rebuilt on
// github.com/google/go-github/v68 instead of shelling out to the gh CLI —
// the teacher's own provider.VCS interface shape (one adapter, one
// interface, commandContext-free here since everything is a typed REST
// call) is preserved; only the transport changes.
package forge

import "context"

// Issue mirrors the forge issue fields the rest of the system needs.
type Issue struct {
	Number int
	Title  string
	Body   string
	Labels []string
	State  string
}

// ListIssuesOptions filters ListIssues.
type ListIssuesOptions struct {
	Milestone *int
	State     string
	Labels    []string
}

// Milestone is one sprint milestone.
type Milestone struct {
	SprintNumber int
	Number       int
	Title        string
	State        string
}

// PRStats summarises an open pull request's size.
type PRStats struct {
	PRNumber     int
	Additions    int
	Deletions    int
	ChangedFiles int
}

// MergeOptions controls how MergeIssuePR merges a branch's PR.
type MergeOptions struct {
	Squash       bool
	DeleteBranch bool
}

// MergeResult reports the outcome of a merge attempt.
type MergeResult struct {
	Success bool
	PRNumber int
	Reason   string
}

// Adapter is the external-contract-only interface the executor, dispatcher
// and sprint runner depend on (spec §4.6) — lets tests substitute a fake
// without pulling in go-github.
type Adapter interface {
	GetIssue(ctx context.Context, number int) (Issue, error)
	ListIssues(ctx context.Context, opts ListIssuesOptions) ([]Issue, error)
	AddComment(ctx context.Context, number int, body string) error
	SetLabel(ctx context.Context, number int, label string) error
	CreateIssue(ctx context.Context, title, body string, labels []string) (Issue, error)
	ListSprintMilestones(ctx context.Context, prefix string) ([]Milestone, error)
	GetNextOpenMilestone(ctx context.Context, prefix string) (Milestone, bool, error)
	GetPRStats(ctx context.Context, branch string) (*PRStats, error)
	MergeIssuePR(ctx context.Context, branch string, opts MergeOptions) (MergeResult, error)
}
