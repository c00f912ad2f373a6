package dispatcher

import (
	"context"
	"io"
	"log/slog"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sprintforge/sprintforge/internal/eventbus"
	"github.com/sprintforge/sprintforge/internal/forge"
	"github.com/sprintforge/sprintforge/internal/planmodel"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

type fakeExecutor struct {
	mu      sync.Mutex
	byIssue map[int]planmodel.IssueResult
	calls   []int
}

func (f *fakeExecutor) Execute(ctx context.Context, cfg planmodel.SprintConfig, issue planmodel.SprintIssue) (planmodel.IssueResult, planmodel.HuddleEntry) {
	f.mu.Lock()
	f.calls = append(f.calls, issue.Number)
	f.mu.Unlock()

	r, ok := f.byIssue[issue.Number]
	if !ok {
		r = planmodel.IssueResult{IssueNumber: issue.Number, Status: planmodel.IssueCompleted, QualityGatePassed: true, Branch: "b"}
	}
	return r, planmodel.HuddleEntry{IssueNumber: issue.Number, Status: r.Status}
}

type fakeMerger struct {
	rebasable   bool
	conflicted  bool
	spotCheckErr error
}

func (f *fakeMerger) CanRebase(ctx context.Context, branch, base string) (bool, error) { return f.rebasable, nil }
func (f *fakeMerger) HasConflicts(ctx context.Context, branch, base string) (bool, error) {
	return f.conflicted, nil
}
func (f *fakeMerger) SpotCheckMerge(ctx context.Context, branch, base string, cmds ...string) error {
	return f.spotCheckErr
}

type fakeEscalator struct {
	calls []string
}

func (f *fakeEscalator) Escalate(ctx context.Context, level forge.EscalationLevel, title, message string) error {
	f.calls = append(f.calls, string(level)+":"+title)
	return nil
}

type fakeForge struct {
	mu          sync.Mutex
	labels      map[int][]string
	comments    map[int][]string
	mergeResult forge.MergeResult
	mergeErr    error
}

func newFakeForge() *fakeForge {
	return &fakeForge{labels: map[int][]string{}, comments: map[int][]string{}}
}

func (f *fakeForge) GetIssue(ctx context.Context, number int) (forge.Issue, error) { return forge.Issue{Number: number}, nil }
func (f *fakeForge) ListIssues(ctx context.Context, opts forge.ListIssuesOptions) ([]forge.Issue, error) {
	return nil, nil
}
func (f *fakeForge) AddComment(ctx context.Context, number int, body string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.comments[number] = append(f.comments[number], body)
	return nil
}
func (f *fakeForge) SetLabel(ctx context.Context, number int, label string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.labels[number] = append(f.labels[number], label)
	return nil
}
func (f *fakeForge) CreateIssue(ctx context.Context, title, body string, labels []string) (forge.Issue, error) {
	return forge.Issue{}, nil
}
func (f *fakeForge) ListSprintMilestones(ctx context.Context, prefix string) ([]forge.Milestone, error) {
	return nil, nil
}
func (f *fakeForge) GetNextOpenMilestone(ctx context.Context, prefix string) (forge.Milestone, bool, error) {
	return forge.Milestone{}, false, nil
}
func (f *fakeForge) GetPRStats(ctx context.Context, branch string) (*forge.PRStats, error) {
	return nil, nil
}
func (f *fakeForge) MergeIssuePR(ctx context.Context, branch string, opts forge.MergeOptions) (forge.MergeResult, error) {
	return f.mergeResult, f.mergeErr
}

func testPlan() planmodel.SprintPlan {
	return planmodel.SprintPlan{
		SprintNumber: 1,
		Issues: []planmodel.SprintIssue{
			{Number: 1, Title: "first"},
			{Number: 2, Title: "second", DependsOn: []int{1}},
			{Number: 3, Title: "third", DependsOn: []int{1}},
		},
		ExecutionGroups: []planmodel.ExecutionGroup{
			{Group: 0, Issues: []int{1}},
			{Group: 1, Issues: []int{2, 3}},
		},
	}
}

func testConfig() planmodel.SprintConfig {
	return planmodel.SprintConfig{SprintNumber: 1, ConcurrencyCap: 2, BaseBranch: "main"}
}

func TestDispatch_RunsGroupsInOrder_NoIssueInLaterGroupBeforeEarlierDone(t *testing.T) {
	exec := &fakeExecutor{byIssue: map[int]planmodel.IssueResult{}}
	fg := newFakeForge()
	d := New(exec, fg, nil, nil, nil, testLogger())

	result, huddles, err := d.Dispatch(context.Background(), testConfig(), testPlan())
	require.NoError(t, err)
	assert.Len(t, result.IssueResults, 3)
	assert.Len(t, huddles, 3)

	firstIdx := indexOf(exec.calls, 1)
	secondIdx := indexOf(exec.calls, 2)
	thirdIdx := indexOf(exec.calls, 3)
	assert.Less(t, firstIdx, secondIdx)
	assert.Less(t, firstIdx, thirdIdx)
}

func indexOf(xs []int, v int) int {
	for i, x := range xs {
		if x == v {
			return i
		}
	}
	return -1
}

func TestDispatch_AggregatesParallelizationRatioAndLifetime(t *testing.T) {
	exec := &fakeExecutor{byIssue: map[int]planmodel.IssueResult{
		1: {IssueNumber: 1, Status: planmodel.IssueCompleted, DurationMS: 100},
		2: {IssueNumber: 2, Status: planmodel.IssueCompleted, DurationMS: 200},
		3: {IssueNumber: 3, Status: planmodel.IssueCompleted, DurationMS: 300},
	}}
	fg := newFakeForge()
	d := New(exec, fg, nil, nil, nil, testLogger())

	result, _, err := d.Dispatch(context.Background(), testConfig(), testPlan())
	require.NoError(t, err)
	assert.InDelta(t, 1.5, result.ParallelizationRatio, 0.001) // 3 issues / 2 groups
	assert.InDelta(t, 200.0, result.AvgWorktreeLifetimeMS, 0.001)
}

func TestDispatch_EntireGroupFailed_EscalatesAndStopsRemaining(t *testing.T) {
	exec := &fakeExecutor{byIssue: map[int]planmodel.IssueResult{
		1: {IssueNumber: 1, Status: planmodel.IssueFailed, ErrorMessage: "boom"},
	}}
	fg := newFakeForge()
	esc := &fakeEscalator{}
	d := New(exec, fg, nil, esc, nil, testLogger())

	result, _, err := d.Dispatch(context.Background(), testConfig(), testPlan())
	require.NoError(t, err)
	assert.Len(t, result.IssueResults, 1, "group 2 should never have run")
	assert.Len(t, esc.calls, 1)
	assert.Contains(t, esc.calls[0], string(forge.EscalationMust))
}

func TestDispatch_AutoMerge_MergesPassingIssuesAndCountsConflicts(t *testing.T) {
	plan := planmodel.SprintPlan{
		Issues:          []planmodel.SprintIssue{{Number: 1, Title: "a"}, {Number: 2, Title: "b"}},
		ExecutionGroups: []planmodel.ExecutionGroup{{Group: 0, Issues: []int{1, 2}}},
	}
	exec := &fakeExecutor{byIssue: map[int]planmodel.IssueResult{
		1: {IssueNumber: 1, Status: planmodel.IssueCompleted, QualityGatePassed: true, Branch: "sprint/1/issue-1"},
		2: {IssueNumber: 2, Status: planmodel.IssueCompleted, QualityGatePassed: true, Branch: "sprint/1/issue-2"},
	}}
	fg := newFakeForge()
	fg.mergeResult = forge.MergeResult{Success: false, Reason: "stale"}
	merger := &fakeMerger{rebasable: true, conflicted: false}
	d := New(exec, fg, merger, nil, nil, testLogger())

	cfg := testConfig()
	cfg.Flags.AutoMerge = true

	result, _, err := d.Dispatch(context.Background(), cfg, plan)
	require.NoError(t, err)
	assert.Equal(t, 2, result.MergeConflicts)
	assert.Contains(t, fg.labels[1], "status:blocked")
}

func TestDispatch_AutoMerge_SkipsIssuesThatFailedQualityGate(t *testing.T) {
	plan := planmodel.SprintPlan{
		Issues:          []planmodel.SprintIssue{{Number: 1, Title: "a"}},
		ExecutionGroups: []planmodel.ExecutionGroup{{Group: 0, Issues: []int{1}}},
	}
	exec := &fakeExecutor{byIssue: map[int]planmodel.IssueResult{
		1: {IssueNumber: 1, Status: planmodel.IssueFailed, QualityGatePassed: false},
	}}
	fg := newFakeForge()
	merger := &fakeMerger{rebasable: true}
	d := New(exec, fg, merger, nil, nil, testLogger())

	cfg := testConfig()
	cfg.Flags.AutoMerge = true

	result, _, err := d.Dispatch(context.Background(), cfg, plan)
	require.NoError(t, err)
	assert.Equal(t, 0, result.MergeConflicts)
	assert.Empty(t, fg.labels[1])
}

func TestDispatch_EmitsIssueStart(t *testing.T) {
	exec := &fakeExecutor{byIssue: map[int]planmodel.IssueResult{}}
	fg := newFakeForge()
	bus := eventbus.New(testLogger())

	var seen []int
	var mu sync.Mutex
	bus.On(eventbus.IssueStart, func(ev eventbus.Event) {
		p, ok := ev.Payload.(eventbus.IssueStartPayload)
		if !ok {
			return
		}
		mu.Lock()
		seen = append(seen, p.Issue)
		mu.Unlock()
	})

	d := New(exec, fg, nil, nil, bus, testLogger())
	_, _, err := d.Dispatch(context.Background(), testConfig(), testPlan())
	require.NoError(t, err)

	mu.Lock()
	defer mu.Unlock()
	assert.ElementsMatch(t, []int{1, 2, 3}, seen)
}
