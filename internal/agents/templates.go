package agents

import (
	"embed"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"text/template"
)

//go:embed templates/*.tmpl
var defaultTemplates embed.FS

// Template identifiers, one per agent
const (
	TemplateFatigue = "fatigue"
	TemplateSafety  = "safety"
	TemplateSummary = "summary"
)

// TemplateSet holds the parsed prompt templates. Prompt text is
// configuration, not code: templates load at startup and can be revised
// without touching the pipeline.
type TemplateSet struct {
	templates map[string]*template.Template
}

// LoadTemplates loads prompt templates from dir, falling back to the
// embedded defaults for any template the directory does not provide.
// An empty dir loads only the embedded defaults.
func LoadTemplates(dir string) (*TemplateSet, error) {
	set := &TemplateSet{templates: make(map[string]*template.Template)}

	for _, id := range []string{TemplateFatigue, TemplateSafety, TemplateSummary} {
		text, err := loadTemplateText(dir, id)
		if err != nil {
			return nil, err
		}
		tmpl, err := template.New(id).Parse(text)
		if err != nil {
			return nil, fmt.Errorf("failed to parse %s template: %w", id, err)
		}
		set.templates[id] = tmpl
	}

	return set, nil
}

func loadTemplateText(dir, id string) (string, error) {
	if dir != "" {
		path := filepath.Join(dir, id+".tmpl")
		if data, err := os.ReadFile(path); err == nil {
			return string(data), nil
		} else if !os.IsNotExist(err) {
			return "", fmt.Errorf("failed to read %s: %w", path, err)
		}
	}

	data, err := defaultTemplates.ReadFile("templates/" + id + ".tmpl")
	if err != nil {
		return "", fmt.Errorf("missing embedded template %s: %w", id, err)
	}
	return string(data), nil
}

// Render renders the named template with the given data
func (s *TemplateSet) Render(id string, data any) (string, error) {
	tmpl, ok := s.templates[id]
	if !ok {
		return "", fmt.Errorf("unknown template: %s", id)
	}

	var sb strings.Builder
	if err := tmpl.Execute(&sb, data); err != nil {
		return "", fmt.Errorf("failed to render %s template: %w", id, err)
	}
	return sb.String(), nil
}
