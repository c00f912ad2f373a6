package prompttemplate

// Default phase prompt templates. Each is rendered with Render(tmpl, vars)
// before any phase-specific instructions are prepended or plan text is
// appended (spec §4.8 steps 3-5). Modeled on the teacher's
// pipeline.buildAgentPrompt / buildFixCRPrompt / buildReviewPrompt: rules
// first, required output format last.

const DefaultPlannerTemplate = `You are planning the implementation of one issue in an existing codebase.

Project: {{PROJECT_NAME}} ({{REPO_OWNER}}/{{REPO_NAME}}), sprint {{SPRINT_NUMBER}}.

## Issue #{{ISSUE_NUMBER}}: {{ISSUE_TITLE}}

{{ISSUE_BODY}}

## Instructions

1. Read enough of the codebase to understand how this issue should be implemented.
2. Do NOT modify any files. This is a planning pass only.
3. Identify every file you expect to create or modify, and the action for each
   ("create", "modify", or "delete").
4. Keep the plan scoped to this issue; do not plan unrelated cleanup.

## Required Output

Respond with exactly one JSON object, no prose outside it:

{"summary": "one paragraph describing the approach", "steps": [{"file": "path/to/file", "action": "modify"}]}
`

const DefaultTDDTemplate = `You are writing failing tests for an issue before it is implemented.

## Implementation Plan (follow this)

{{IMPLEMENTATION_PLAN}}

## Instructions

1. Write tests that exercise the behavior described in the plan. They are expected to fail
   until the implementation phase completes.
2. Do not implement the feature itself — tests only.
3. Follow the project's existing test conventions and file layout.
`

const DefaultWorkerTemplate = `You are implementing a task in an existing codebase.

Branch: {{BRANCH_NAME}} (base: {{BASE_BRANCH}}), worktree: {{WORKTREE_PATH}}.

## Issue #{{ISSUE_NUMBER}}: {{ISSUE_TITLE}}

{{ISSUE_BODY}}

## Rules

1. Follow the project's CLAUDE.md conventions — they take priority over these rules.
2. Only modify files necessary to implement the issue.
3. You MUST produce file changes. Never conclude "already done" without diffing the exact
   expected state line-by-line.
4. After making changes, run the build, the test suite, and any linters, and fix what you broke.
5. Do not add unrelated improvements, refactoring, or documentation changes.
6. Keep the total diff under {{MAX_DIFF_LINES}} changed lines where feasible.
`

const DefaultQualityFeedbackPreamble = `The quality gate failed after your last change. Fix the issues below, then stop — do not
make unrelated changes.

`

const DefaultReviewTemplate = `You are reviewing a pull request. This is a READ-ONLY review — do NOT modify any files.

## Instructions

1. Run ` + "`git diff {{BASE_BRANCH}}...{{BRANCH_NAME}}`" + ` to see the changes.
2. Review for bugs, security issues, missing error handling, convention violations, and
   missing or inadequate tests.

## Required Output

Respond with exactly one JSON object, no prose outside it:

{"approved": true, "issues": []}

List every concrete problem as one string per issue. approved is true only if issues is empty.
`

const DefaultAcceptanceCriteriaTemplate = `You are scoring an implementation against its acceptance criteria. This is a READ-ONLY
review — do NOT modify any files.

## Acceptance Criteria

{{ACCEPTANCE_CRITERIA}}

## Instructions

Check the diff (` + "`git diff {{BASE_BRANCH}}...{{BRANCH_NAME}}`" + `) against each criterion.

## Required Output

Respond with exactly one JSON object, no prose outside it:

{"approved": true, "issues": ["criterion not met: ..."]}
`

const DefaultChallengerTemplate = `You are a skeptical second reviewer. This is a READ-ONLY, advisory-only review — your
verdict never blocks merge.

## Instructions

1. Run ` + "`git diff {{BASE_BRANCH}}...{{BRANCH_NAME}}`" + ` to see the changes.
2. Look for anything the primary review may have missed: edge cases, hidden assumptions,
   scope creep beyond the issue.

## Required Output

Respond with exactly one JSON object, no prose outside it:

{"approved": true, "issues": []}
`

// DefaultRefineTemplate drives the sprint-level backlog-refinement
// ceremony (spec §4.10 "refine"): score every open issue with ICE
// (impact, confidence, ease) and leave grooming notes.
const DefaultRefineTemplate = `You are grooming the open issue backlog for {{PROJECT_NAME}} ({{REPO_OWNER}}/{{REPO_NAME}}).

## Open issues

{{BACKLOG}}

## Instructions

1. Score every issue 1-10 on Impact, Confidence, and Ease; ICE score is their product.
2. Flag anything underspecified in a short grooming note — do not rewrite the issue body.
3. Do not invent issues that are not listed above.

## Required Output

Respond with exactly one JSON object, no prose outside it:

{"issues": [{"number": 123, "ice_score": 240, "notes": "needs acceptance criteria"}]}
`

// DefaultSprintPlanTemplate drives the sprint-level planning ceremony
// (spec §4.10 "plan"): select and order issues for sprint {{SPRINT_NUMBER}}.
const DefaultSprintPlanTemplate = `You are planning sprint {{SPRINT_NUMBER}} for {{PROJECT_NAME}} ({{REPO_OWNER}}/{{REPO_NAME}}).

## Candidate issues (open backlog)

{{BACKLOG}}

## Instructions

1. Select the issues this sprint should take on, respecting {{ISSUE_CAP}} as the max count.
2. Record true cross-issue dependencies in depends_on — omit it for independent issues.
3. Estimate story points per issue and total.

## Required Output

Respond with exactly one JSON object, no prose outside it:

{"issues": [{"number": 123, "title": "...", "depends_on": [], "story_points": 3}],
 "estimated_points": 3, "rationale": "one paragraph"}
`

// DefaultRetroTemplate drives the end-of-sprint retrospective ceremony
// (spec §4.10 "retro"): summarize what shipped, what failed, and why.
const DefaultRetroTemplate = `You are writing the retrospective for sprint {{SPRINT_NUMBER}} of {{PROJECT_NAME}}.

## Results

{{SPRINT_SUMMARY}}

## Instructions

1. Summarize what shipped and what did not, in plain prose.
2. Call out any recurring failure pattern across issues (same quality check, same
   zero-change diagnostic, repeated merge conflicts).
3. Suggest at most three concrete process changes for next sprint.

Respond with prose, not JSON.
`
