package intent

import (
	"fmt"
	"strings"
)

// BuildPrompt constructs the full classification prompt for the LLM.
func BuildPrompt(query string, dc DynamicContext) string {
	const maxQueryLen = 500
	if len(query) > maxQueryLen {
		query = query[:maxQueryLen]
	}

	var sb strings.Builder

	sb.WriteString(`You are a CLI intent classifier for the "sprintforge" tool.
Given a natural language query, determine which sprintforge subcommand the user intends to run.

## sprintforge subcommands

- sprintforge plan --sprint N                 — Plan a sprint from the refined backlog
- sprintforge execute-issue --issue N --sprint N — Implement one issue
- sprintforge check-quality --branch B [--base B] — Run the quality gate against a branch
- sprintforge refine --sprint N                — Refine backlog ideas into issues
- sprintforge full-cycle --sprint N            — Run refine/plan/execute/review/merge/retro end to end
- sprintforge review --sprint N                — Run code review on a sprint's open issues
- sprintforge retro --sprint N                 — Run the sprint retrospective
- sprintforge metrics --sprint N               — Print sprint velocity/quality metrics
- sprintforge drift-report --sprint N [--changed-files...] [--expected-files...] — Report scope drift
- sprintforge init [--path] [--force]          — Initialize a sprintforge project
- sprintforge web [--port 9100] [--run|--once] [--sprint N] — Start the dashboard
- sprintforge resume --sprint N                — Resume a paused sprint
- sprintforge runs [--discover ROOTS]           — List sprint states, or discover repos under roots
- sprintforge status --sprint N --slug S        — Show sprint status
- sprintforge logs --sprint N --slug S [--follow] — Show the sprint's huddle log
- sprintforge edit --issue N                    — Print an in-flight issue's worktree path

`)

	if ctx := FormatForPrompt(dc); ctx != "" {
		sb.WriteString(ctx)
	}

	sb.WriteString(`## Rules

1. Map the query to exactly one subcommand with appropriate flags/arguments.
2. Resolve partial or fuzzy sprint references against the sprints listed above.
3. NEVER invent sprint numbers or slugs that are not in the list above.
4. If the query is ambiguous or cannot map to a subcommand, return empty argv.
5. Return ONLY bare JSON — no markdown, no code fences, no explanation outside the JSON.

## Output format

{"argv": ["subcommand", "arg1", ...], "confidence": 0.0-1.0, "reasoning": "brief explanation"}

`)

	fmt.Fprintf(&sb, "## User query\n\n%s\n", query)

	return sb.String()
}
