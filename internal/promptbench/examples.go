package promptbench

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"

	"gopkg.in/yaml.v3"
)

// LoadExamples reads every *.yaml/*.yml file in dir as an Example, sorted
// by filename for deterministic run order.
func LoadExamples(dir string) ([]Example, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, fmt.Errorf("promptbench: reading example dir %q: %w", dir, err)
	}

	var names []string
	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		ext := filepath.Ext(e.Name())
		if ext == ".yaml" || ext == ".yml" {
			names = append(names, e.Name())
		}
	}
	sort.Strings(names)

	examples := make([]Example, 0, len(names))
	for _, name := range names {
		data, err := os.ReadFile(filepath.Join(dir, name))
		if err != nil {
			return nil, fmt.Errorf("promptbench: reading example %q: %w", name, err)
		}
		var ex Example
		if err := yaml.Unmarshal(data, &ex); err != nil {
			return nil, fmt.Errorf("promptbench: parsing example %q: %w", name, err)
		}
		if ex.Name == "" {
			ex.Name = name
		}
		examples = append(examples, ex)
	}
	return examples, nil
}
