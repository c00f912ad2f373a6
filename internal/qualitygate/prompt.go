package qualitygate

import (
	"fmt"
	"strings"

	"github.com/sprintforge/sprintforge/internal/planmodel"
)

// BuildFeedbackPrompt enumerates a failed quality result's failing checks
// for the developer session to fix. Generalizes the teacher's
// buildHookFixPrompt (a single shell hook's tail output) into a bundle of
// named check failures (spec §4.8 step 7, "construct a feedback prompt
// enumerating failing checks").
func BuildFeedbackPrompt(result planmodel.QualityResult) string {
	var b strings.Builder
	b.WriteString("The quality gate failed. Fix ALL reported failures so every check passes.\n\n")
	b.WriteString("Failing checks:\n")
	for _, c := range result.Checks {
		if c.Passed {
			continue
		}
		detail := c.Detail
		if len(detail) > maxDetailChars {
			detail = "...[truncated]\n" + detail[len(detail)-maxDetailChars:]
		}
		fmt.Fprintf(&b, "\n- %s (%s):\n%s\n", c.Name, c.Category, detail)
	}
	b.WriteString("\nInstructions:\n")
	b.WriteString("1. Address every failing check listed above, not just the first.\n")
	b.WriteString("2. Make no unrelated changes — only fix what was reported.\n")
	b.WriteString("3. Re-run the relevant commands locally before responding if possible.\n")
	return b.String()
}

// maxDetailChars bounds how much of a check's failure output is quoted in
// the feedback prompt — the tail usually contains the actual error.
const maxDetailChars = 4000
