// Package huddlelog appends one markdown block per issue huddle to the
// sprint log (spec §6: "docs/sprints/<slug>-<N>-log.md. Append-only;
// huddle entries separated by blank lines"). Grounded on the teacher's
// atomic write-then-rename file idiom (internal/state.RunState.Save),
// adapted here to an append-only log rather than a rewrite-every-time
// state file.
package huddlelog

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/sprintforge/sprintforge/internal/format"
	"github.com/sprintforge/sprintforge/internal/planmodel"
)

// Path returns the sprint log path for slug under projectPath.
func Path(projectPath, slug string, sprintNumber int) string {
	return filepath.Join(projectPath, "docs", "sprints", fmt.Sprintf("%s-%d-log.md", slug, sprintNumber))
}

// Append renders entry as a markdown block and appends it to the sprint
// log, creating the file (and its docs/sprints directory) if necessary.
// Existing content is never rewritten, only appended to, so a crash mid
// sprint never loses prior huddle entries.
func Append(projectPath, slug string, sprintNumber int, entry planmodel.HuddleEntry) error {
	path := Path(projectPath, slug, sprintNumber)
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("huddlelog: creating sprints dir: %w", err)
	}

	f, err := os.OpenFile(path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o644)
	if err != nil {
		return fmt.Errorf("huddlelog: opening %s: %w", path, err)
	}
	defer f.Close()

	if _, err := f.WriteString(render(entry)); err != nil {
		return fmt.Errorf("huddlelog: writing %s: %w", path, err)
	}
	return nil
}

func render(e planmodel.HuddleEntry) string {
	var b strings.Builder
	fmt.Fprintf(&b, "## #%d %s\n\n", e.IssueNumber, e.Title)
	fmt.Fprintf(&b, "- status: %s\n", e.Status)
	fmt.Fprintf(&b, "- duration: %s\n", format.FormatDuration(e.DurationMS))
	fmt.Fprintf(&b, "- retries: %d\n", e.RetryCount)
	fmt.Fprintf(&b, "- quality gate: %v\n", e.QualityResult.Passed)
	if len(e.FilesChanged) > 0 {
		fmt.Fprintf(&b, "- files changed: %s\n", strings.Join(e.FilesChanged, ", "))
	}
	if e.ErrorMessage != "" {
		fmt.Fprintf(&b, "- error: %s\n", e.ErrorMessage)
	}
	if e.CleanupWarning != "" {
		fmt.Fprintf(&b, "- cleanup warning: %s\n", e.CleanupWarning)
	}
	if e.ZeroChangeDiagnostic != nil {
		fmt.Fprintf(&b, "- zero-change diagnostic: %s (timed out: %v)\n", e.ZeroChangeDiagnostic.Outcome, e.ZeroChangeDiagnostic.TimedOut)
	}
	if e.CodeReview != nil {
		fmt.Fprintf(&b, "- code review: approved=%v\n", e.CodeReview.Approved)
		if e.CodeReview.Feedback != "" {
			fmt.Fprintf(&b, "  - feedback: %s\n", e.CodeReview.Feedback)
		}
		for _, issue := range e.CodeReview.Issues {
			fmt.Fprintf(&b, "  - issue: %s\n", issue)
		}
	}
	if e.PRStats != nil {
		fmt.Fprintf(&b, "- pr #%d: +%d -%d across %d files\n", e.PRStats.PRNumber, e.PRStats.Additions, e.PRStats.Deletions, e.PRStats.ChangedFiles)
	}
	b.WriteString("\n")
	return b.String()
}
