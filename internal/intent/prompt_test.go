package intent

import (
	"strings"
	"testing"
)

func TestBuildPrompt_ContainsQuery(t *testing.T) {
	dc := DynamicContext{}
	prompt := BuildPrompt("run the checkout sprint", dc)

	if !strings.Contains(prompt, "run the checkout sprint") {
		t.Fatal("expected query in prompt")
	}
}

func TestBuildPrompt_ContainsSubcommands(t *testing.T) {
	dc := DynamicContext{}
	prompt := BuildPrompt("anything", dc)

	subcommands := []string{
		"sprintforge plan", "sprintforge execute-issue", "sprintforge check-quality",
		"sprintforge refine", "sprintforge full-cycle", "sprintforge review",
		"sprintforge retro", "sprintforge metrics", "sprintforge drift-report",
		"sprintforge init", "sprintforge web", "sprintforge resume",
		"sprintforge runs", "sprintforge status", "sprintforge logs", "sprintforge edit",
	}

	for _, sub := range subcommands {
		if !strings.Contains(prompt, sub) {
			t.Fatalf("expected %q in prompt", sub)
		}
	}
}

func TestBuildPrompt_ContainsDynamicContext(t *testing.T) {
	dc := DynamicContext{
		Sprints: []string{"checkout sprint 1 (phase: execute)"},
	}
	prompt := BuildPrompt("do something", dc)

	if !strings.Contains(prompt, "checkout sprint 1") {
		t.Fatal("expected sprint in prompt")
	}
}

func TestBuildPrompt_NoDynamicContext(t *testing.T) {
	dc := DynamicContext{}
	prompt := BuildPrompt("do something", dc)

	if strings.Contains(prompt, "Known sprints") {
		t.Fatal("unexpected sprints section in prompt")
	}
}
