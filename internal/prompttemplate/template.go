// Package prompttemplate renders the per-phase agent prompts and parses
// their structured responses. It unifies two patterns the teacher keeps
// separate: pipeline/run.go's "---MARKER---"-delimited section extraction
// (buildFixCRPrompt / extractCRSummary) and intent/classify.go's tolerant
// JSON-envelope/code-fence-stripping parser (extractResultField /
// stripCodeFences) into one general free-text structured extractor, since
// the executor needs both a planner JSON blob and reviewer/challenger
// marker blocks out of the same kind of free-text agent output.
package prompttemplate

import "strings"

// Vars is the set of substitution variables available to every phase
// template (spec §4.8 step 3): PROJECT_NAME, REPO_OWNER, REPO_NAME,
// SPRINT_NUMBER, ISSUE_NUMBER, ISSUE_TITLE, ISSUE_BODY, BRANCH_NAME,
// BASE_BRANCH, WORKTREE_PATH, MAX_DIFF_LINES.
type Vars map[string]string

// Render substitutes every {{KEY}} occurrence in tmpl with vars[KEY],
// leaving unrecognized placeholders untouched.
func Render(tmpl string, vars Vars) string {
	pairs := make([]string, 0, len(vars)*2)
	for k, v := range vars {
		pairs = append(pairs, "{{"+k+"}}", v)
	}
	return strings.NewReplacer(pairs...).Replace(tmpl)
}

// Sanitize strips characters from issue bodies that would otherwise be
// interpreted as template syntax or break marker-based extraction of the
// agent's response (spec §4.8 step 3: "ISSUE_BODY [sanitised]").
func Sanitize(body string) string {
	r := strings.NewReplacer("{{", "(( ", "}}", " ))", "---", "- - -")
	return r.Replace(body)
}
