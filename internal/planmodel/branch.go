package planmodel

import (
	"strconv"
	"strings"
)

// expandBranchPattern substitutes {prefix}, {sprint}, {issue} in pattern.
// Grounded on the teacher's pipeline.BranchName, generalized from a
// Jira-key/slug pattern to the sprint/issue pattern of spec.md §6.
func expandBranchPattern(pattern, prefix string, sprint, issue int) string {
	if pattern == "" {
		pattern = "{prefix}/{sprint}/issue-{issue}"
	}
	r := strings.NewReplacer(
		"{prefix}", prefix,
		"{sprint}", strconv.Itoa(sprint),
		"{issue}", strconv.Itoa(issue),
	)
	return r.Replace(pattern)
}
