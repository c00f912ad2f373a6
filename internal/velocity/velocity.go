// Package velocity maintains the per-project velocity.md table (spec §6):
// one markdown row per sprint, columns Sprint/Date/Goal/Planned/Done/Carry/
// Hours/Issues per Hr/Notes (header "Issues/Hr"). Grounded on the teacher's atomic write-then-rename
// file idiom (internal/state.RunState.Save); the table read/write itself is
// plain markdown-table parsing on the standard library, since nothing in
// the retrieval pack brings a markdown-table library and the format here
// (fixed columns, one row per sprint) doesn't warrant one.
package velocity

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
)

var columns = []string{"Sprint", "Date", "Goal", "Planned", "Done", "Carry", "Hours", "Issues/Hr", "Notes"}

// Row is one sprint's velocity entry.
type Row struct {
	Sprint  int
	Date    string
	Goal    string
	Planned int
	Done    int
	Carry   int
	Hours   float64
	Notes   string
}

func (r Row) issuesPerHour() string {
	if r.Hours <= 0 {
		return "0.00"
	}
	return strconv.FormatFloat(float64(r.Done)/r.Hours, 'f', 2, 64)
}

func (r Row) cells() []string {
	return []string{
		strconv.Itoa(r.Sprint),
		r.Date,
		escapeCell(r.Goal),
		strconv.Itoa(r.Planned),
		strconv.Itoa(r.Done),
		strconv.Itoa(r.Carry),
		strconv.FormatFloat(r.Hours, 'f', 1, 64),
		r.issuesPerHour(),
		escapeCell(r.Notes),
	}
}

func escapeCell(s string) string {
	return strings.ReplaceAll(strings.ReplaceAll(s, "|", "\\|"), "\n", " ")
}

// Path returns the velocity file path under projectPath.
func Path(projectPath string) string {
	return filepath.Join(projectPath, "docs", "sprints", "velocity.md")
}

// Append upserts row into the velocity table at projectPath's velocity.md:
// if a row for the same sprint already exists it is replaced in place,
// otherwise the row is appended (spec §6: "no duplicates").
func Append(projectPath string, row Row) error {
	path := Path(projectPath)

	existing, err := os.ReadFile(path)
	if err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("velocity: reading %s: %w", path, err)
	}

	rows, err := parseRows(string(existing))
	if err != nil {
		return fmt.Errorf("velocity: parsing %s: %w", path, err)
	}

	replaced := false
	for i, r := range rows {
		if r.Sprint == row.Sprint {
			rows[i] = row
			replaced = true
			break
		}
	}
	if !replaced {
		rows = append(rows, row)
	}

	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("velocity: creating sprints dir: %w", err)
	}

	data := []byte(render(rows))
	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, data, 0o644); err != nil {
		return fmt.Errorf("velocity: writing temp file: %w", err)
	}
	if err := os.Rename(tmp, path); err != nil {
		_ = os.Remove(tmp)
		return fmt.Errorf("velocity: renaming file: %w", err)
	}
	return nil
}

func render(rows []Row) string {
	var b strings.Builder
	b.WriteString("| " + strings.Join(columns, " | ") + " |\n")
	b.WriteString("|" + strings.Repeat(" --- |", len(columns)) + "\n")
	for _, r := range rows {
		b.WriteString("| " + strings.Join(r.cells(), " | ") + " |\n")
	}
	return b.String()
}

// parseRows reads the data rows of an existing velocity table, tolerating
// a missing or empty file (no rows yet).
func parseRows(doc string) ([]Row, error) {
	lines := strings.Split(doc, "\n")
	var rows []Row
	for _, line := range lines {
		line = strings.TrimSpace(line)
		if line == "" || !strings.HasPrefix(line, "|") {
			continue
		}
		if isSeparatorRow(line) {
			continue
		}
		cells := splitCells(line)
		if len(cells) < len(columns) || cells[0] == columns[0] {
			continue
		}
		row, err := parseRow(cells)
		if err != nil {
			return nil, err
		}
		rows = append(rows, row)
	}
	return rows, nil
}

func isSeparatorRow(line string) bool {
	return strings.Trim(line, "|- ") == ""
}

func splitCells(line string) []string {
	line = strings.TrimPrefix(line, "|")
	line = strings.TrimSuffix(line, "|")
	parts := strings.Split(line, "|")
	cells := make([]string, len(parts))
	for i, p := range parts {
		cells[i] = strings.TrimSpace(p)
	}
	return cells
}

func parseRow(cells []string) (Row, error) {
	sprint, err := strconv.Atoi(cells[0])
	if err != nil {
		return Row{}, fmt.Errorf("parsing sprint number %q: %w", cells[0], err)
	}
	planned, _ := strconv.Atoi(cells[3])
	done, _ := strconv.Atoi(cells[4])
	carry, _ := strconv.Atoi(cells[5])
	hours, _ := strconv.ParseFloat(cells[6], 64)
	return Row{
		Sprint:  sprint,
		Date:    cells[1],
		Goal:    cells[2],
		Planned: planned,
		Done:    done,
		Carry:   carry,
		Hours:   hours,
		Notes:   cells[8],
	}, nil
}
