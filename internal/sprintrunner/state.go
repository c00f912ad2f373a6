package sprintrunner

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/sprintforge/sprintforge/internal/planmodel"
)

var sprintsDir = "docs/sprints"

// SetSprintsDir overrides the default persisted-state directory, for tests.
func SetSprintsDir(dir string) { sprintsDir = dir }

// State is the sprint runner's persisted phase state machine (spec §4.10):
// current phase, the phase to restore on resume, the plan and the results
// accumulated so far. Adapted from the teacher's internal/state.RunState —
// same atomic write-then-rename persistence, JSON instead of YAML per the
// spec's explicit "persistent state on disk (JSON)".
type State struct {
	Slug             string                  `json:"slug"`
	SprintNumber     int                     `json:"sprint_number"`
	Phase            planmodel.Phase         `json:"phase"`
	PhaseBeforePause planmodel.Phase         `json:"phase_before_pause,omitempty"`
	Plan             planmodel.SprintPlan    `json:"plan,omitempty"`
	Result           planmodel.SprintResult  `json:"result,omitempty"`
	Huddles          []planmodel.HuddleEntry `json:"huddles,omitempty"`
	RetroNotes       string                  `json:"retro_notes,omitempty"`
	CreatedAt        time.Time               `json:"created_at"`
	UpdatedAt        time.Time               `json:"updated_at"`
}

// newState creates a State with phase=init for a fresh sprint slug.
func newState(slug string, sprintNumber int) *State {
	now := time.Now()
	return &State{
		Slug:         slug,
		SprintNumber: sprintNumber,
		Phase:        planmodel.PhaseInit,
		CreatedAt:    now,
		UpdatedAt:    now,
	}
}

func statePath(slug string) string {
	return filepath.Join(sprintsDir, slug+"-state.json")
}

// loadState reads a persisted State for slug. Returns (nil, nil) if no
// state file exists yet — the caller should create a fresh one.
func loadState(slug string) (*State, error) {
	data, err := os.ReadFile(statePath(slug))
	if os.IsNotExist(err) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("loading sprint state %q: %w", slug, err)
	}

	var s State
	if err := json.Unmarshal(data, &s); err != nil {
		return nil, fmt.Errorf("parsing sprint state %q: %w", slug, err)
	}
	return &s, nil
}

// LoadStateFile reads a persisted State from an arbitrary path, for callers
// outside this package that already know a state file's location (the
// registry scanning across multiple repos, for instance). Adapted from the
// teacher's internal/state.LoadFile.
func LoadStateFile(path string) (*State, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("loading sprint state file %q: %w", path, err)
	}
	var s State
	if err := json.Unmarshal(data, &s); err != nil {
		return nil, fmt.Errorf("parsing sprint state file %q: %w", path, err)
	}
	return &s, nil
}

// save writes the state atomically to docs/sprints/<slug>-state.json.
func (s *State) save() error {
	if err := os.MkdirAll(sprintsDir, 0o755); err != nil {
		return fmt.Errorf("creating sprints dir: %w", err)
	}

	s.UpdatedAt = time.Now()

	data, err := json.MarshalIndent(s, "", "  ")
	if err != nil {
		return fmt.Errorf("marshaling sprint state: %w", err)
	}

	dest := statePath(s.Slug)
	tmp := dest + ".tmp"

	if err := os.WriteFile(tmp, data, 0o644); err != nil {
		return fmt.Errorf("writing temp sprint state file: %w", err)
	}
	if err := os.Rename(tmp, dest); err != nil {
		_ = os.Remove(tmp)
		return fmt.Errorf("renaming sprint state file: %w", err)
	}
	return nil
}

// completedByNumber maps every IssueResult in results whose status is
// completed to itself, keyed by issue number (spec §4.10 reconciliation:
// "map each previously executed issue by number to its last result").
func completedByNumber(results []planmodel.IssueResult) map[int]planmodel.IssueResult {
	out := make(map[int]planmodel.IssueResult, len(results))
	for _, r := range results {
		if r.Status == planmodel.IssueCompleted {
			out[r.IssueNumber] = r
		}
	}
	return out
}

// filterCompleted returns plan with every issue already present in
// completed dropped, so a resumed execute phase does not duplicate work
// already reflected on the forge.
func filterCompleted(plan planmodel.SprintPlan, completed map[int]planmodel.IssueResult) planmodel.SprintPlan {
	if len(completed) == 0 {
		return plan
	}

	out := plan
	out.Issues = nil
	for _, iss := range plan.Issues {
		if _, done := completed[iss.Number]; done {
			continue
		}
		out.Issues = append(out.Issues, iss)
	}

	out.ExecutionGroups = nil
	for _, g := range plan.ExecutionGroups {
		var remaining []int
		for _, n := range g.Issues {
			if _, done := completed[n]; !done {
				remaining = append(remaining, n)
			}
		}
		if len(remaining) > 0 {
			out.ExecutionGroups = append(out.ExecutionGroups, planmodel.ExecutionGroup{Group: g.Group, Issues: remaining})
		}
	}
	return out
}

// mergeResults folds a new dispatch result on top of the issues already
// completed on a prior run. The new result's aggregate metrics (computed
// over only the issues it actually ran) are kept as-is, merge conflicts
// included.
func mergeResults(prior map[int]planmodel.IssueResult, fresh planmodel.SprintResult) planmodel.SprintResult {
	merged := fresh
	merged.IssueResults = make([]planmodel.IssueResult, 0, len(prior)+len(fresh.IssueResults))
	for _, r := range prior {
		merged.IssueResults = append(merged.IssueResults, r)
	}
	merged.IssueResults = append(merged.IssueResults, fresh.IssueResults...)
	return merged
}
