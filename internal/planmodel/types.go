// Package planmodel holds the core sprint data types shared across every
// component: the sprint configuration, the plan the planner produces, the
// results the executor and dispatcher emit, and the persisted sprint state.
package planmodel

import (
	"sync"
	"time"
)

// Phase is a sprint ceremony.
type Phase string

const (
	PhaseInit    Phase = "init"
	PhaseRefine  Phase = "refine"
	PhasePlan    Phase = "plan"
	PhaseExecute Phase = "execute"
	PhaseReview  Phase = "review"
	PhaseRetro   Phase = "retro"
	PhaseComplete Phase = "complete"
	PhaseFailed   Phase = "failed"
	PhasePaused   Phase = "paused"
)

// Role tags a tracked agent session by the part it plays in the pipeline.
type Role string

const (
	RolePlanner         Role = "planner"
	RoleDeveloper        Role = "developer"
	RoleTestEngineer     Role = "test-engineer"
	RoleQualityReviewer  Role = "quality-reviewer"
	RoleChallenger       Role = "challenger"
	RoleRefiner          Role = "refiner"
	RoleRetro            Role = "retro"
	RoleGeneral          Role = "general"
)

// IssueStatus is the terminal or in-flight status of one issue's execution.
type IssueStatus string

const (
	IssueCompleted  IssueStatus = "completed"
	IssueFailed     IssueStatus = "failed"
	IssueInProgress IssueStatus = "in-progress"
)

// CheckCategory classifies a quality-gate check.
type CheckCategory string

const (
	CategoryTest  CheckCategory = "test"
	CategoryLint  CheckCategory = "lint"
	CategoryTypes CheckCategory = "types"
	CategoryBuild CheckCategory = "build"
	CategoryDiff  CheckCategory = "diff"
	CategoryOther CheckCategory = "other"
)

// PhaseAgentConfig describes the model, MCP servers, and instruction files
// used when a sub-phase opens an agent session.
type PhaseAgentConfig struct {
	ModelID          string   `json:"model_id,omitempty" yaml:"model_id,omitempty"`
	MCPServers       []string `json:"mcp_servers,omitempty" yaml:"mcp_servers,omitempty"`
	InstructionFiles []string `json:"instruction_files,omitempty" yaml:"instruction_files,omitempty"`
}

// FeatureFlags are the sprint-wide on/off switches.
type FeatureFlags struct {
	Challenger      bool `json:"challenger" yaml:"challenger"`
	TDD             bool `json:"tdd" yaml:"tdd"`
	AutoMerge       bool `json:"auto_merge" yaml:"auto_merge"`
	Squash          bool `json:"squash" yaml:"squash"`
	DeleteBranch    bool `json:"delete_branch" yaml:"delete_branch"`
	AutoRevertDrift bool `json:"auto_revert_drift" yaml:"auto_revert_drift"`
}

// QualityGateConfig controls which checks the quality gate runs.
type QualityGateConfig struct {
	RequireTests   bool              `json:"require_tests" yaml:"require_tests"`
	RequireLint    bool              `json:"require_lint" yaml:"require_lint"`
	RequireTypes   bool              `json:"require_types" yaml:"require_types"`
	RequireBuild   bool              `json:"require_build" yaml:"require_build"`
	TestCmd        string            `json:"test_cmd,omitempty" yaml:"test_cmd,omitempty"`
	LintCmd        string            `json:"lint_cmd,omitempty" yaml:"lint_cmd,omitempty"`
	TypesCmd       string            `json:"types_cmd,omitempty" yaml:"types_cmd,omitempty"`
	BuildCmd       string            `json:"build_cmd,omitempty" yaml:"build_cmd,omitempty"`
	MaxDiffLines   int               `json:"max_diff_lines" yaml:"max_diff_lines"`
	ExpectedFiles  []string          `json:"expected_files,omitempty" yaml:"expected_files,omitempty"`
}

// SprintConfig is immutable for the duration of one sprint run.
type SprintConfig struct {
	SprintNumber        int                         `json:"sprint_number" yaml:"sprint_number"`
	Prefix              string                      `json:"prefix" yaml:"prefix"`
	Slug                string                      `json:"slug" yaml:"slug"`
	BaseBranch          string                      `json:"base_branch" yaml:"base_branch"`
	WorktreeRoot        string                      `json:"worktree_root" yaml:"worktree_root"`
	BranchPattern        string                      `json:"branch_pattern" yaml:"branch_pattern"`
	ConcurrencyCap       int                         `json:"concurrency_cap" yaml:"concurrency_cap"`
	IssueCap             int                         `json:"issue_cap" yaml:"issue_cap"`
	RetryCap             int                         `json:"retry_cap" yaml:"retry_cap"`
	Flags                FeatureFlags                `json:"flags" yaml:"flags"`
	SessionTimeout        Duration                    `json:"session_timeout" yaml:"session_timeout"`
	Phases               map[Role]PhaseAgentConfig   `json:"phases,omitempty" yaml:"phases,omitempty"`
	QualityGate          QualityGateConfig           `json:"quality_gate" yaml:"quality_gate"`
	ProjectPath          string                      `json:"project_path" yaml:"project_path"`
	ProjectName          string                      `json:"project_name" yaml:"project_name"`
	RepoOwner            string                      `json:"repo_owner" yaml:"repo_owner"`
	RepoName             string                      `json:"repo_name" yaml:"repo_name"`
}

// BranchName renders the configured pattern for one issue.
func (c SprintConfig) BranchName(issue int) string {
	return expandBranchPattern(c.BranchPattern, c.Prefix, c.SprintNumber, issue)
}

// SprintIssue is one planned unit of work.
type SprintIssue struct {
	Number         int      `json:"number" yaml:"number"`
	Title          string   `json:"title" yaml:"title"`
	ICEScore       float64  `json:"ice_score" yaml:"ice_score"`
	DependsOn      []int    `json:"depends_on,omitempty" yaml:"depends_on,omitempty"`
	AcceptanceCriteria string `json:"acceptance_criteria,omitempty" yaml:"acceptance_criteria,omitempty"`
	ExpectedFiles  []string `json:"expected_files,omitempty" yaml:"expected_files,omitempty"`
	StoryPoints    int      `json:"story_points" yaml:"story_points"`
}

// ExecutionGroup is a set of issue numbers safe to execute in parallel.
type ExecutionGroup struct {
	Group  int   `json:"group" yaml:"group"`
	Issues []int `json:"issues" yaml:"issues"`
}

// SprintPlan is produced by the planner phase.
type SprintPlan struct {
	ID               string           `json:"id,omitempty" yaml:"id,omitempty"`
	SprintNumber     int              `json:"sprint_number" yaml:"sprint_number"`
	Issues           []SprintIssue    `json:"issues" yaml:"issues"`
	ExecutionGroups  []ExecutionGroup `json:"execution_groups" yaml:"execution_groups"`
	EstimatedPoints  int              `json:"estimated_points" yaml:"estimated_points"`
	Rationale        string           `json:"rationale,omitempty" yaml:"rationale,omitempty"`
}

// IssueByNumber returns the issue with the given number, if present.
func (p SprintPlan) IssueByNumber(n int) (SprintIssue, bool) {
	for _, iss := range p.Issues {
		if iss.Number == n {
			return iss, true
		}
	}
	return SprintIssue{}, false
}

// QualityCheck is one named pass/fail check within a quality result.
type QualityCheck struct {
	Name     string        `json:"name" yaml:"name"`
	Passed   bool          `json:"passed" yaml:"passed"`
	Detail   string        `json:"detail,omitempty" yaml:"detail,omitempty"`
	Category CheckCategory `json:"category" yaml:"category"`
}

// QualityResult is the outcome of running the quality gate.
type QualityResult struct {
	Passed bool           `json:"passed" yaml:"passed"`
	Checks []QualityCheck `json:"checks" yaml:"checks"`
}

// Recompute sets Passed to the conjunction of all checks (invariant in spec §3).
func (q *QualityResult) Recompute() {
	q.Passed = true
	for _, c := range q.Checks {
		if !c.Passed {
			q.Passed = false
			return
		}
	}
}

// CodeReviewResult is a reviewer session's verdict.
type CodeReviewResult struct {
	Approved bool     `json:"approved" yaml:"approved"`
	Feedback string   `json:"feedback,omitempty" yaml:"feedback,omitempty"`
	Issues   []string `json:"issues,omitempty" yaml:"issues,omitempty"`
}

// IssueResult is the per-issue outcome of the executor.
type IssueResult struct {
	IssueNumber      int               `json:"issue_number" yaml:"issue_number"`
	Status           IssueStatus       `json:"status" yaml:"status"`
	QualityGatePassed bool             `json:"quality_gate_passed" yaml:"quality_gate_passed"`
	QualityDetails   QualityResult     `json:"quality_details" yaml:"quality_details"`
	CodeReview       *CodeReviewResult `json:"code_review,omitempty" yaml:"code_review,omitempty"`
	Branch           string            `json:"branch" yaml:"branch"`
	DurationMS       int64             `json:"duration_ms" yaml:"duration_ms"`
	FilesChanged     []string          `json:"files_changed" yaml:"files_changed"`
	RetryCount       int               `json:"retry_count" yaml:"retry_count"`
	Points           int               `json:"points" yaml:"points"`
	ErrorMessage     string            `json:"error_message,omitempty" yaml:"error_message,omitempty"`
	TimedOut         bool              `json:"timed_out,omitempty" yaml:"timed_out,omitempty"`
}

// SprintResult aggregates the dispatcher's run over a sprint plan.
type SprintResult struct {
	IssueResults          []IssueResult `json:"issue_results" yaml:"issue_results"`
	SprintNumber          int           `json:"sprint_number" yaml:"sprint_number"`
	ParallelizationRatio  float64       `json:"parallelization_ratio" yaml:"parallelization_ratio"`
	AvgWorktreeLifetimeMS float64       `json:"avg_worktree_lifetime_ms" yaml:"avg_worktree_lifetime_ms"`
	MergeConflicts        int           `json:"merge_conflicts" yaml:"merge_conflicts"`
}

// ZeroChangeDiagnostic captures why an issue produced no file changes.
type ZeroChangeDiagnostic struct {
	LastOutputLines []string `json:"last_output_lines,omitempty" yaml:"last_output_lines,omitempty"`
	TimedOut        bool     `json:"timed_out" yaml:"timed_out"`
	Outcome         string   `json:"outcome" yaml:"outcome"` // "worker-error" | "task-not-applicable"
}

// PRStats summarizes the pull request attached to an issue's branch.
type PRStats struct {
	PRNumber     int `json:"pr_number" yaml:"pr_number"`
	Additions    int `json:"additions" yaml:"additions"`
	Deletions    int `json:"deletions" yaml:"deletions"`
	ChangedFiles int `json:"changed_files" yaml:"changed_files"`
}

// HuddleEntry is one issue's post-mortem, appended to the sprint log.
type HuddleEntry struct {
	ID                   string                `json:"id,omitempty" yaml:"id,omitempty"`
	IssueNumber          int                   `json:"issue_number" yaml:"issue_number"`
	Title                string                `json:"title" yaml:"title"`
	Status               IssueStatus           `json:"status" yaml:"status"`
	QualityResult        QualityResult         `json:"quality_result" yaml:"quality_result"`
	CodeReview           *CodeReviewResult     `json:"code_review,omitempty" yaml:"code_review,omitempty"`
	DurationMS           int64                 `json:"duration_ms" yaml:"duration_ms"`
	FilesChanged         []string              `json:"files_changed" yaml:"files_changed"`
	Timestamp            time.Time             `json:"timestamp" yaml:"timestamp"`
	CleanupWarning       string                `json:"cleanup_warning,omitempty" yaml:"cleanup_warning,omitempty"`
	ErrorMessage         string                `json:"error_message,omitempty" yaml:"error_message,omitempty"`
	PRStats              *PRStats              `json:"pr_stats,omitempty" yaml:"pr_stats,omitempty"`
	RetryCount           int                   `json:"retry_count" yaml:"retry_count"`
	ZeroChangeDiagnostic *ZeroChangeDiagnostic `json:"zero_change_diagnostic,omitempty" yaml:"zero_change_diagnostic,omitempty"`
}

// TrackedSession is a live agent session's bookkeeping record.
type TrackedSession struct {
	SessionID   string     `json:"session_id" yaml:"session_id"`
	Role        Role       `json:"role" yaml:"role"`
	IssueNumber *int       `json:"issue_number,omitempty" yaml:"issue_number,omitempty"`
	ModelID     string     `json:"model_id,omitempty" yaml:"model_id,omitempty"`
	StartedAt   time.Time  `json:"started_at" yaml:"started_at"`
	EndedAt     *time.Time `json:"ended_at,omitempty" yaml:"ended_at,omitempty"`

	mu     sync.Mutex
	output []string
}

const maxSessionOutputChunks = 500

// AppendOutput appends a chunk to the session's ring buffer, bounded to the
// last 500 chunks (spec §3 invariant: append-only until ended, bounded by count).
func (t *TrackedSession) AppendOutput(chunk string) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.output = append(t.output, chunk)
	if len(t.output) > maxSessionOutputChunks {
		t.output = t.output[len(t.output)-maxSessionOutputChunks:]
	}
}

// Output returns a snapshot copy of the last n chunks (n<=0 means all).
func (t *TrackedSession) Output(n int) []string {
	t.mu.Lock()
	defer t.mu.Unlock()
	if n <= 0 || n >= len(t.output) {
		out := make([]string, len(t.output))
		copy(out, t.output)
		return out
	}
	start := len(t.output) - n
	out := make([]string, n)
	copy(out, t.output[start:])
	return out
}

// End marks the session as finished.
func (t *TrackedSession) End() {
	now := time.Now()
	t.EndedAt = &now
}
