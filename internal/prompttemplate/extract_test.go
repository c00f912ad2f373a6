package prompttemplate

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestRender_SubstitutesKnownVars(t *testing.T) {
	out := Render("issue #{{ISSUE_NUMBER}} in {{REPO_NAME}}", Vars{"ISSUE_NUMBER": "42", "REPO_NAME": "widgets"})
	assert.Equal(t, "issue #42 in widgets", out)
}

func TestRender_LeavesUnknownPlaceholders(t *testing.T) {
	out := Render("{{UNKNOWN}} stays", Vars{"ISSUE_NUMBER": "1"})
	assert.Equal(t, "{{UNKNOWN}} stays", out)
}

func TestSanitize_NeutralizesTemplateAndMarkerSyntax(t *testing.T) {
	out := Sanitize("use {{FOO}} and ---split---")
	assert.NotContains(t, out, "{{")
	assert.NotContains(t, out, "---")
}

func TestResultText_UnwrapsEnvelope(t *testing.T) {
	assert.Equal(t, "hello", ResultText(`{"result":"hello"}`))
}

func TestResultText_FallsBackToRaw(t *testing.T) {
	assert.Equal(t, "not json", ResultText("not json"))
}

func TestStripCodeFences_RemovesWrappingFence(t *testing.T) {
	assert.Equal(t, `{"a":1}`, StripCodeFences("```json\n{\"a\":1}\n```"))
}

func TestStripCodeFences_NoOpWithoutFence(t *testing.T) {
	assert.Equal(t, "plain", StripCodeFences("plain"))
}

func TestExtractMarker_FindsContentBetweenMarkers(t *testing.T) {
	out, ok := ExtractMarker("prefix ---M--- body text ---M--- suffix", "---M---")
	assert.True(t, ok)
	assert.Equal(t, "body text", out)
}

func TestExtractMarker_MissingMarkers(t *testing.T) {
	_, ok := ExtractMarker("no markers here", "---M---")
	assert.False(t, ok)
}

func TestExtractMarker_UnwrapsEnvelopeFirst(t *testing.T) {
	raw := `{"result":"---M--- inner ---M---"}`
	out, ok := ExtractMarker(raw, "---M---")
	assert.True(t, ok)
	assert.Equal(t, "inner", out)
}

func TestParsePlanResponse_Valid(t *testing.T) {
	raw := `{"summary":"do the thing","steps":[{"file":"a.go","action":"modify"},{"file":"a.go","action":"modify"},{"file":"b.go","action":"create"}]}`
	plan, ok := ParsePlanResponse(raw)
	assert.True(t, ok)
	assert.Equal(t, "do the thing", plan.Summary)
	assert.Equal(t, []string{"a.go", "b.go"}, plan.ExpectedFiles())
}

func TestParsePlanResponse_ToleratesCodeFences(t *testing.T) {
	raw := "```json\n{\"summary\":\"x\",\"steps\":[]}\n```"
	plan, ok := ParsePlanResponse(raw)
	assert.True(t, ok)
	assert.Equal(t, "x", plan.Summary)
}

func TestParsePlanResponse_InvalidFallsBack(t *testing.T) {
	_, ok := ParsePlanResponse("I looked around and here's my plan in prose.")
	assert.False(t, ok)
}

func TestParseVerdict_Approved(t *testing.T) {
	v, ok := ParseVerdict(`{"approved":true,"issues":[]}`)
	assert.True(t, ok)
	assert.True(t, v.Approved)
	assert.Empty(t, v.Issues)
}

func TestParseVerdict_WithIssues(t *testing.T) {
	v, ok := ParseVerdict(`{"approved":false,"issues":["missing nil check"]}`)
	assert.True(t, ok)
	assert.False(t, v.Approved)
	assert.Equal(t, []string{"missing nil check"}, v.Issues)
}
