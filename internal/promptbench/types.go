// Package promptbench is the prompt-bench harness (spec §4.12): given a
// role id and a directory of example files, it drives each example through
// a fresh agent session, parses the role's verdict, scores it against an
// expected outcome, and persists an aggregate report. Grounded on the
// teacher's internal/intent/classify.go tolerant-JSON-from-CLI-prose
// parsing (generalized in internal/prompttemplate), with
// github.com/tidwall/gjson layered on top here for the cases a role's free
// text doesn't match prompttemplate.Verdict's exact field names, the way
// goadesign-goa-ai's anthropic client reaches for the raw Anthropic SDK
// response shape rather than a single fixed struct.
package promptbench

import "time"

// Expected describes how to score one example's agent response.
type Expected struct {
	Verdict        bool     `yaml:"verdict"`
	MustContain    []string `yaml:"mustContain,omitempty"`
	MustNotContain []string `yaml:"mustNotContain,omitempty"`
}

// Example is one prompt-bench fixture: free text handed to the role plus
// the expected scoring.
type Example struct {
	Name     string   `yaml:"name"`
	Prompt   string   `yaml:"prompt"`
	Expected Expected `yaml:"expected"`
}

// ExampleResult is one example's outcome.
type ExampleResult struct {
	Name           string `json:"name"`
	Passed         bool   `json:"passed"`
	Verdict        bool   `json:"verdict"`
	ExpectedVerdict bool  `json:"expected_verdict"`
	FalsePositive  bool   `json:"false_positive"`
	FalseNegative  bool   `json:"false_negative"`
	Response       string `json:"response,omitempty"`
	Error          string `json:"error,omitempty"`
}

// Report is the persisted aggregate for one prompt-bench run.
type Report struct {
	Role            string          `json:"role"`
	RunAt           time.Time       `json:"run_at"`
	Total           int             `json:"total"`
	Passed          int             `json:"passed"`
	Accuracy        float64         `json:"accuracy"`
	FalsePositives  int             `json:"false_positives"`
	FalseNegatives  int             `json:"false_negatives"`
	Results         []ExampleResult `json:"results"`
}

// MinAccuracy is the pass threshold below which the harness exits non-zero
// (spec §4.12: "exit non-zero if accuracy < 70%").
const MinAccuracy = 0.70
