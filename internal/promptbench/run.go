package promptbench

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/tidwall/gjson"

	"github.com/sprintforge/sprintforge/internal/planmodel"
	"github.com/sprintforge/sprintforge/internal/prompttemplate"
)

// AgentClient is the subset of *agentclient.Client the harness drives —
// one ad-hoc session per example.
type AgentClient interface {
	CreateSession(ctx context.Context, role planmodel.Role, issueNumber *int, cwd string, mcpServers []string) (string, error)
	EndSession(ctx context.Context, sessionID string) error
	SetModel(ctx context.Context, sessionID, modelID string) error
	SendPrompt(ctx context.Context, sessionID, text string, timeout time.Duration) (response, stopReason string, err error)
}

// Config parameterizes one harness run.
type Config struct {
	Role           planmodel.Role
	ExamplesDir    string
	ProjectPath    string
	ModelID        string
	Template       string // {{EXAMPLE}} substitution; raw example prompt if empty
	SessionTimeout time.Duration
	Judge          Judge // optional, used when substring matching is ambiguous
}

// Harness runs prompt-bench examples against an agent role.
type Harness struct {
	Agent  AgentClient
	Logger *slog.Logger
}

// New constructs a Harness.
func New(agent AgentClient, logger *slog.Logger) *Harness {
	return &Harness{Agent: agent, Logger: logger}
}

// Run loads cfg.ExamplesDir, drives each example through its own agent
// session, scores the response against its expectation, and returns the
// aggregate report. It does not decide the process exit code; callers
// compare Report.Accuracy against MinAccuracy (spec §4.12).
func (h *Harness) Run(ctx context.Context, cfg Config) (Report, error) {
	examples, err := LoadExamples(cfg.ExamplesDir)
	if err != nil {
		return Report{}, err
	}
	if len(examples) == 0 {
		return Report{}, fmt.Errorf("promptbench: no examples found in %q", cfg.ExamplesDir)
	}

	report := Report{Role: string(cfg.Role), RunAt: time.Now(), Total: len(examples)}
	for _, ex := range examples {
		res := h.runOne(ctx, cfg, ex)
		if res.Passed {
			report.Passed++
		}
		if res.FalsePositive {
			report.FalsePositives++
		}
		if res.FalseNegative {
			report.FalseNegatives++
		}
		report.Results = append(report.Results, res)
	}
	if report.Total > 0 {
		report.Accuracy = float64(report.Passed) / float64(report.Total)
	}
	return report, nil
}

func (h *Harness) runOne(ctx context.Context, cfg Config, ex Example) ExampleResult {
	res := ExampleResult{Name: ex.Name, ExpectedVerdict: ex.Expected.Verdict}

	sessionID, err := h.Agent.CreateSession(ctx, cfg.Role, nil, cfg.ProjectPath, nil)
	if err != nil {
		res.Error = fmt.Sprintf("create session: %v", err)
		return res
	}
	defer func() { _ = h.Agent.EndSession(ctx, sessionID) }()

	if cfg.ModelID != "" {
		if err := h.Agent.SetModel(ctx, sessionID, cfg.ModelID); err != nil {
			res.Error = fmt.Sprintf("set model: %v", err)
			return res
		}
	}

	prompt := ex.Prompt
	if cfg.Template != "" {
		prompt = prompttemplate.Render(cfg.Template, prompttemplate.Vars{"EXAMPLE": ex.Prompt})
	}

	output, _, err := h.Agent.SendPrompt(ctx, sessionID, prompt, cfg.SessionTimeout)
	if err != nil {
		res.Error = fmt.Sprintf("send prompt: %v", err)
		return res
	}
	res.Response = output

	verdict, issues, ok := parseRoleVerdict(output)
	if !ok {
		res.Error = "response did not parse into a verdict"
		return res
	}
	res.Verdict = verdict

	score(ctx, &res, ex.Expected, issues, output, cfg.Judge)
	return res
}

// parseRoleVerdict tries prompttemplate's fixed Verdict shape first, then
// falls back to gjson path probing for the handful of field-name variants
// different roles' prompts have historically used.
func parseRoleVerdict(raw string) (verdict bool, issues []string, ok bool) {
	text := prompttemplate.StripCodeFences(prompttemplate.ResultText(raw))
	if gjson.Valid(text) && gjson.Get(text, "approved").Exists() {
		if v, ok := prompttemplate.ParseVerdict(raw); ok {
			return v.Approved, v.Issues, true
		}
	}

	if !gjson.Valid(text) {
		return false, nil, false
	}
	for _, path := range []string{"approved", "verdict", "pass", "passed"} {
		if r := gjson.Get(text, path); r.Exists() {
			verdict = r.Bool()
			ok = true
			break
		}
	}
	if !ok {
		return false, nil, false
	}
	for _, path := range []string{"issues", "findings", "problems"} {
		if r := gjson.Get(text, path); r.Exists() && r.IsArray() {
			for _, item := range r.Array() {
				issues = append(issues, item.String())
			}
			break
		}
	}
	return verdict, issues, true
}

// score fills in res's Passed/FalsePositive/FalseNegative fields by
// comparing the parsed verdict and issues against ex's expectation (spec
// §4.12: verdict boolean plus "any match" for mustContain, "all absent"
// for mustNotContain).
func score(ctx context.Context, res *ExampleResult, expected Expected, issues []string, response string, judge Judge) {
	haystack := response
	if len(issues) > 0 {
		haystack = strings.Join(issues, "\n")
	}

	verdictMatches := res.Verdict == expected.Verdict
	containMatches := anyContains(haystack, expected.MustContain)
	notContainMatches := allAbsent(haystack, expected.MustNotContain)

	if !containMatches && judge != nil && len(expected.MustContain) > 0 {
		if ok, err := judge.Matches(ctx, response, expected.MustContain); err == nil {
			containMatches = ok
		}
	}

	res.Passed = verdictMatches && containMatches && notContainMatches
	if !res.Passed {
		if res.Verdict && !expected.Verdict {
			res.FalsePositive = true
		}
		if !res.Verdict && expected.Verdict {
			res.FalseNegative = true
		}
	}
}

func anyContains(haystack string, needles []string) bool {
	if len(needles) == 0 {
		return true
	}
	for _, n := range needles {
		if strings.Contains(haystack, n) {
			return true
		}
	}
	return false
}

func allAbsent(haystack string, needles []string) bool {
	for _, n := range needles {
		if strings.Contains(haystack, n) {
			return false
		}
	}
	return true
}
