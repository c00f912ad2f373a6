package prompttemplate

import (
	"encoding/json"
	"strings"
)

// ResultText unwraps an agent's `{"result": "..."}` JSON envelope, the
// shape `claude -p --output-format json` (and the session protocol's final
// response) uses. Falls back to the raw string if there is no envelope.
// Grounded on the teacher's pipeline.agentResultText /
// intent.extractResultField, which do the same unwrap for two different
// callers.
func ResultText(raw string) string {
	var envelope struct {
		Result string `json:"result"`
	}
	if err := json.Unmarshal([]byte(raw), &envelope); err != nil {
		return raw
	}
	if envelope.Result == "" {
		return raw
	}
	return envelope.Result
}

// StripCodeFences removes a single pair of wrapping ``` fences, with or
// without a language tag, left over when an agent wraps structured output
// in a markdown code block despite being asked not to.
func StripCodeFences(s string) string {
	s = strings.TrimSpace(s)
	if !strings.HasPrefix(s, "```") {
		return s
	}
	if idx := strings.Index(s, "\n"); idx != -1 {
		s = s[idx+1:]
	}
	if idx := strings.LastIndex(s, "```"); idx != -1 {
		s = s[:idx]
	}
	return strings.TrimSpace(s)
}

// ExtractMarker extracts the text between the first two occurrences of
// marker in an agent's response, unwrapping the result envelope first.
// Returns ok=false if the markers are missing or enclose nothing.
// Generalizes the teacher's ---CRSUMMARY---/---CRREVIEW--- convention to an
// arbitrary marker string, used for the plan summary, review verdicts, and
// challenger notes alike.
func ExtractMarker(raw, marker string) (string, bool) {
	text := ResultText(raw)
	parts := strings.SplitN(text, marker, 3)
	if len(parts) < 3 {
		return "", false
	}
	content := strings.TrimSpace(parts[1])
	if content == "" {
		return "", false
	}
	return content, true
}

// PlanStep is one file-level action named in a planner's structured
// response.
type PlanStep struct {
	File   string `json:"file,omitempty"`
	Action string `json:"action,omitempty"`
}

// PlanResponse is the planner phase's expected structured shape (spec
// §4.8 step 3: "{summary, steps:[{file?,action?}]}").
type PlanResponse struct {
	Summary string     `json:"summary"`
	Steps   []PlanStep `json:"steps"`
}

// ParsePlanResponse attempts to decode a planner's response as a
// PlanResponse, tolerating a result envelope and/or code fences around the
// JSON. ok is false if no valid structured plan could be recovered — the
// caller falls back to treating the whole response as free-text summary.
func ParsePlanResponse(raw string) (PlanResponse, bool) {
	text := StripCodeFences(ResultText(raw))
	text = strings.TrimSpace(text)

	var resp PlanResponse
	if err := json.Unmarshal([]byte(text), &resp); err != nil {
		return PlanResponse{}, false
	}
	if resp.Summary == "" && len(resp.Steps) == 0 {
		return PlanResponse{}, false
	}
	return resp, true
}

// ExpectedFiles returns the deduplicated, non-empty file names named across
// a plan's steps, for merging into an issue's expectedFiles union.
func (p PlanResponse) ExpectedFiles() []string {
	seen := map[string]bool{}
	var files []string
	for _, step := range p.Steps {
		if step.File == "" || seen[step.File] {
			continue
		}
		seen[step.File] = true
		files = append(files, step.File)
	}
	return files
}

// RefinedIssue is one backlog item's refinement (spec §4.10 "refine"):
// an ICE score and free-text grooming notes.
type RefinedIssue struct {
	Number   int     `json:"number"`
	ICEScore float64 `json:"ice_score"`
	Notes    string  `json:"notes,omitempty"`
}

// RefineResponse is the refiner phase's expected structured shape.
type RefineResponse struct {
	Issues []RefinedIssue `json:"issues"`
}

// ParseRefineResponse decodes a refiner's response, tolerating a result
// envelope and code fences. ok is false if no usable backlog refinement
// could be recovered.
func ParseRefineResponse(raw string) (RefineResponse, bool) {
	text := StripCodeFences(ResultText(raw))
	text = strings.TrimSpace(text)

	var resp RefineResponse
	if err := json.Unmarshal([]byte(text), &resp); err != nil {
		return RefineResponse{}, false
	}
	if len(resp.Issues) == 0 {
		return RefineResponse{}, false
	}
	return resp, true
}

// SprintPlanIssue is one issue selected into a sprint plan.
type SprintPlanIssue struct {
	Number             int    `json:"number"`
	Title              string `json:"title,omitempty"`
	DependsOn          []int  `json:"depends_on,omitempty"`
	StoryPoints        int    `json:"story_points,omitempty"`
	AcceptanceCriteria string `json:"acceptance_criteria,omitempty"`
}

// SprintPlanResponse is the sprint-level planner's expected structured
// shape, distinct from PlanResponse (the per-issue implementation plan
// produced inside the executor).
type SprintPlanResponse struct {
	Issues          []SprintPlanIssue `json:"issues"`
	EstimatedPoints int               `json:"estimated_points,omitempty"`
	Rationale       string            `json:"rationale,omitempty"`
}

// ParseSprintPlanResponse decodes a sprint planner's response, tolerating
// a result envelope and code fences.
func ParseSprintPlanResponse(raw string) (SprintPlanResponse, bool) {
	text := StripCodeFences(ResultText(raw))
	text = strings.TrimSpace(text)

	var resp SprintPlanResponse
	if err := json.Unmarshal([]byte(text), &resp); err != nil {
		return SprintPlanResponse{}, false
	}
	if len(resp.Issues) == 0 {
		return SprintPlanResponse{}, false
	}
	return resp, true
}

// Verdict is the structured outcome of a reviewer-style session (code
// review, acceptance-criteria review, challenger review): an approval flag
// plus a list of issue descriptions.
type Verdict struct {
	Approved bool     `json:"approved"`
	Issues   []string `json:"issues,omitempty"`
}

// ParseVerdict decodes a reviewer's structured verdict, tolerating a result
// envelope and code fences. ok is false if no valid verdict JSON could be
// recovered.
func ParseVerdict(raw string) (Verdict, bool) {
	text := StripCodeFences(ResultText(raw))
	text = strings.TrimSpace(text)

	var v Verdict
	if err := json.Unmarshal([]byte(text), &v); err != nil {
		return Verdict{}, false
	}
	return v, true
}
