package velocity

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAppend_CreatesTableWhenNoFileExists(t *testing.T) {
	dir := t.TempDir()

	err := Append(dir, Row{Sprint: 1, Date: "2026-01-05", Goal: "ship auth", Planned: 10, Done: 8, Carry: 2, Hours: 20})
	require.NoError(t, err)

	data, err := os.ReadFile(Path(dir))
	require.NoError(t, err)
	assert.Contains(t, string(data), "| 1 | 2026-01-05 | ship auth | 10 | 8 | 2 | 20.0 | 0.40 |  |")
}

func TestAppend_SameSprintReplacesRowInPlace(t *testing.T) {
	dir := t.TempDir()

	require.NoError(t, Append(dir, Row{Sprint: 1, Date: "2026-01-05", Goal: "ship auth", Planned: 10, Done: 5, Carry: 5, Hours: 20}))
	require.NoError(t, Append(dir, Row{Sprint: 2, Date: "2026-01-12", Goal: "ship billing", Planned: 8, Done: 8, Carry: 0, Hours: 16}))
	require.NoError(t, Append(dir, Row{Sprint: 1, Date: "2026-01-05", Goal: "ship auth", Planned: 10, Done: 10, Carry: 0, Hours: 22}))

	rows, err := parseRows(mustRead(t, dir))
	require.NoError(t, err)
	require.Len(t, rows, 2, "re-appending sprint 1 must update, not duplicate")

	assert.Equal(t, 1, rows[0].Sprint)
	assert.Equal(t, 10, rows[0].Done)
	assert.Equal(t, 2, rows[1].Sprint)
}

func TestAppend_EscapesPipesInGoalAndNotes(t *testing.T) {
	dir := t.TempDir()

	require.NoError(t, Append(dir, Row{Sprint: 1, Date: "2026-01-05", Goal: "a | b", Notes: "n | m", Hours: 1, Done: 1}))

	data := mustRead(t, dir)
	assert.Contains(t, data, "a \\| b")
	assert.Contains(t, data, "n \\| m")
}

func mustRead(t *testing.T, dir string) string {
	t.Helper()
	data, err := os.ReadFile(filepath.Join(dir, "docs", "sprints", "velocity.md"))
	require.NoError(t, err)
	return string(data)
}
