package intent

import (
	"fmt"
	"path/filepath"
	"strings"

	"github.com/sprintforge/sprintforge/internal/sprintrunner"
)

// DynamicContext holds runtime information injected into the classification
// prompt: sprint slugs/numbers with persisted state in the current project,
// for resolving fuzzy references like "redo the checkout sprint".
type DynamicContext struct {
	Sprints []string
}

// GatherContext collects known sprint state files under projectPath's
// docs/sprints directory for prompt injection.
func GatherContext(projectPath string) DynamicContext {
	var dc DynamicContext

	paths, _ := filepath.Glob(filepath.Join(projectPath, "docs", "sprints", "*-state.json"))
	for _, p := range paths {
		s, err := sprintrunner.LoadStateFile(p)
		if err != nil {
			continue
		}
		dc.Sprints = append(dc.Sprints, fmt.Sprintf("%s sprint %d (phase: %s)", s.Slug, s.SprintNumber, s.Phase))
	}

	return dc
}

// FormatForPrompt renders dynamic context as markdown for inclusion in the prompt.
func FormatForPrompt(dc DynamicContext) string {
	var sb strings.Builder

	if len(dc.Sprints) > 0 {
		sb.WriteString("## Known sprints\n")
		for _, s := range dc.Sprints {
			fmt.Fprintf(&sb, "- %s\n", s)
		}
		sb.WriteString("\n")
	}

	return sb.String()
}
