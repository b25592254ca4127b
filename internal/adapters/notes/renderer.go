package notes

import (
	"bytes"
	"fmt"
	"os"
	"strings"
	"sync"
	"text/template"

	"go.uber.org/zap"
	"gopkg.in/yaml.v3"
)

// DefaultTemplate is used when no template file is configured
const DefaultTemplate = `---
{{ yaml .frontmatter }}---

# {{ .subject }}

- **From:** {{ .sender }}
- **Date:** {{ .date }}
- **Account:** {{ .account }}
- **Importance:** {{ .importance }}
- **Spam:** {{ .spam }}
{{- if .tags }}
- **Tags:** {{ join .tags " " }}
{{- end }}
{{- if .classification_error }}

> Classification failed after {{ .attempts }} attempt(s): {{ .classification_error }}
{{- end }}

## Body

{{ .body }}
`

// TemplateRenderer is an implementation of the Renderer interface using text/template.
// Parsed templates are cached per reference.
type TemplateRenderer struct {
	logger *zap.Logger

	mu    sync.Mutex
	cache map[string]*template.Template
}

// NewTemplateRenderer creates a new template renderer
func NewTemplateRenderer(logger *zap.Logger) *TemplateRenderer {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &TemplateRenderer{logger: logger, cache: map[string]*template.Template{}}
}

// Render executes the template at templateRef, or the builtin template when
// templateRef is empty, against data.
func (r *TemplateRenderer) Render(templateRef string, data map[string]any) (string, error) {
	tmpl, err := r.lookup(templateRef)
	if err != nil {
		return "", err
	}

	var buf bytes.Buffer
	if err := tmpl.Execute(&buf, data); err != nil {
		return "", fmt.Errorf("failed to render note: %w", err)
	}
	return buf.String(), nil
}

func (r *TemplateRenderer) lookup(ref string) (*template.Template, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if tmpl, ok := r.cache[ref]; ok {
		return tmpl, nil
	}

	text := DefaultTemplate
	name := "default"
	if ref != "" {
		raw, err := os.ReadFile(ref)
		if err != nil {
			return nil, fmt.Errorf("failed to read note template: %w", err)
		}
		text = string(raw)
		name = ref
	}

	tmpl, err := template.New(name).Funcs(funcMap).Parse(text)
	if err != nil {
		return nil, fmt.Errorf("failed to parse note template %s: %w", name, err)
	}
	r.logger.Debug("Parsed note template", zap.String("template", name))
	r.cache[ref] = tmpl
	return tmpl, nil
}

var funcMap = template.FuncMap{
	"yaml": toYAML,
	"join": strings.Join,
}

func toYAML(v any) (string, error) {
	out, err := yaml.Marshal(v)
	if err != nil {
		return "", err
	}
	return string(out), nil
}
