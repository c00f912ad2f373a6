package worktree

import (
	"bytes"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"text/template"
)

// templateData is the substitution set available to create/remove command
// templates (spec §4.4).
type templateData struct {
	Branch string
	Base   string
	Path   string
}

func renderTemplate(tmplStr string, data templateData) ([]string, error) {
	tmpl, err := template.New("cmd").Parse(tmplStr)
	if err != nil {
		return nil, fmt.Errorf("parsing template: %w", err)
	}

	var buf bytes.Buffer
	if err := tmpl.Execute(&buf, data); err != nil {
		return nil, fmt.Errorf("executing template: %w", err)
	}

	fields := strings.Fields(buf.String())
	if len(fields) == 0 {
		return nil, fmt.Errorf("template produced empty command")
	}

	if strings.HasPrefix(fields[0], "~/") {
		home, err := os.UserHomeDir()
		if err == nil {
			fields[0] = filepath.Join(home, strings.TrimPrefix(fields[0], "~/"))
		}
	}

	return fields, nil
}
