package planmodel

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"
)

// CurrentStateVersion is written into every persisted SprintState (spec §9:
// "every state file starts with a version field; loaders switch on version").
const CurrentStateVersion = "1"

// SprintState is the sprint runner's persistent record (spec §3, §6).
type SprintState struct {
	Version         string        `json:"version"`
	SprintNumber    int           `json:"sprint_number"`
	Phase           Phase         `json:"phase"`
	StartedAt       time.Time     `json:"started_at"`
	Plan            *SprintPlan   `json:"plan,omitempty"`
	SprintResult    *SprintResult `json:"sprint_result,omitempty"`
	ReviewResult    *ReviewResult `json:"review_result,omitempty"`
	RetroResult     *RetroResult  `json:"retro_result,omitempty"`
	FinalElapsedMS  *int64        `json:"final_elapsed_ms,omitempty"`
	PhaseBeforePause Phase        `json:"phase_before_pause,omitempty"`
}

// ReviewResult is the free-text output of the review ceremony.
type ReviewResult struct {
	Summary string   `json:"summary"`
	Issues  []string `json:"issues,omitempty"`
}

// RetroResult is the free-text output of the retro ceremony.
type RetroResult struct {
	Summary    string   `json:"summary"`
	ActionItems []string `json:"action_items,omitempty"`
}

// NewSprintState builds an init-phase state for a sprint.
func NewSprintState(sprintNumber int) *SprintState {
	return &SprintState{
		Version:      CurrentStateVersion,
		SprintNumber: sprintNumber,
		Phase:        PhaseInit,
		StartedAt:    time.Now(),
	}
}

// statePath returns <projectPath>/docs/sprints/<slug>-<N>-state.json (spec §6).
func statePath(projectPath, slug string, sprintNumber int) string {
	return filepath.Join(projectPath, "docs", "sprints", fmt.Sprintf("%s-%d-state.json", slug, sprintNumber))
}

// LoadSprintState loads and version-migrates the persisted state for a sprint.
// Returns os.ErrNotExist-wrapping error when no state file exists yet.
func LoadSprintState(projectPath, slug string, sprintNumber int) (*SprintState, error) {
	path := statePath(projectPath, slug, sprintNumber)
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("loading sprint state %q: %w", path, err)
	}

	var probe struct {
		Version string `json:"version"`
	}
	if err := json.Unmarshal(data, &probe); err != nil {
		return nil, fmt.Errorf("parsing sprint state %q: %w", path, err)
	}

	var st SprintState
	switch probe.Version {
	case "", CurrentStateVersion:
		if err := json.Unmarshal(data, &st); err != nil {
			return nil, fmt.Errorf("parsing sprint state %q: %w", path, err)
		}
		st.Version = CurrentStateVersion
	default:
		return nil, fmt.Errorf("sprint state %q: unsupported version %q", path, probe.Version)
	}

	return &st, nil
}

// Save writes the SprintState atomically: write to a sibling .tmp file, then
// rename (spec §9's persistence rule; teacher's state.Save idiom, adapted to JSON).
func (s *SprintState) Save(projectPath, slug string) error {
	dest := statePath(projectPath, slug, s.SprintNumber)
	if err := os.MkdirAll(filepath.Dir(dest), 0o755); err != nil {
		return fmt.Errorf("creating sprint state dir: %w", err)
	}

	data, err := json.MarshalIndent(s, "", "  ")
	if err != nil {
		return fmt.Errorf("marshaling sprint state: %w", err)
	}

	tmp := dest + ".tmp"
	if err := os.WriteFile(tmp, data, 0o644); err != nil {
		return fmt.Errorf("writing temp sprint state: %w", err)
	}
	if err := os.Rename(tmp, dest); err != nil {
		_ = os.Remove(tmp)
		return fmt.Errorf("renaming sprint state file: %w", err)
	}
	return nil
}

// ResultForIssue returns the last recorded result for an issue number, used
// on resume to decide whether re-execution is needed (spec §4.10's
// reconciliation invariant: skip issues whose last result was "completed").
func (s *SprintState) ResultForIssue(issueNumber int) (IssueResult, bool) {
	if s.SprintResult == nil {
		return IssueResult{}, false
	}
	for _, r := range s.SprintResult.IssueResults {
		if r.IssueNumber == issueNumber {
			return r, true
		}
	}
	return IssueResult{}, false
}
