package promptbench

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"github.com/tidwall/sjson"
)

// WriteReport persists report as both a timestamped file (a permanent
// record of this run) and a "latest" file overwritten each time, matching
// spec §4.12's "persist a latest and a timestamped report". Both writes
// are atomic write-then-rename, grounded on the teacher's RunState.Save.
//
// The latest file is patched field-by-field with sjson rather than
// replaced wholesale: an operator who has hand-annotated
// "<role>-latest.json" (e.g. a "reviewed_by" note) keeps that annotation
// across runs, since sjson.Set only touches the keys Report defines.
func WriteReport(dir string, report Report) error {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("promptbench: creating report dir: %w", err)
	}

	stamp := report.RunAt.UTC().Format("20060102-150405")
	timestamped := filepath.Join(dir, fmt.Sprintf("%s-%s.json", report.Role, stamp))
	if err := writeAtomic(timestamped, mustMarshal(report)); err != nil {
		return err
	}

	latest := filepath.Join(dir, fmt.Sprintf("%s-latest.json", report.Role))
	merged, err := mergeLatest(latest, report)
	if err != nil {
		return err
	}
	return writeAtomic(latest, merged)
}

func mergeLatest(path string, report Report) ([]byte, error) {
	existing, err := os.ReadFile(path)
	if err != nil {
		if !os.IsNotExist(err) {
			return nil, fmt.Errorf("promptbench: reading existing latest report: %w", err)
		}
		existing = []byte("{}")
	}

	doc := string(existing)
	fields := map[string]any{
		"role":            report.Role,
		"run_at":          report.RunAt,
		"total":           report.Total,
		"passed":          report.Passed,
		"accuracy":        report.Accuracy,
		"false_positives": report.FalsePositives,
		"false_negatives": report.FalseNegatives,
		"results":         report.Results,
	}
	for key, value := range fields {
		doc, err = sjson.Set(doc, key, value)
		if err != nil {
			return nil, fmt.Errorf("promptbench: patching latest report field %q: %w", key, err)
		}
	}
	return []byte(doc), nil
}

func mustMarshal(report Report) []byte {
	data, _ := json.MarshalIndent(report, "", "  ")
	return data
}

func writeAtomic(dest string, data []byte) error {
	tmp := dest + ".tmp"
	if err := os.WriteFile(tmp, data, 0o644); err != nil {
		return fmt.Errorf("promptbench: writing temp report file: %w", err)
	}
	if err := os.Rename(tmp, dest); err != nil {
		_ = os.Remove(tmp)
		return fmt.Errorf("promptbench: renaming report file: %w", err)
	}
	return nil
}
