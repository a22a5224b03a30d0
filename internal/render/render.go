// Package render turns an agenda context into markdown using the templates
// shipped with the binary.
package render

import (
	"bytes"
	"embed"
	"fmt"
	"io/fs"
	"strings"
	"text/template"

	"github.com/charmbracelet/glamour"
)

const templateSuffix = ".md.tmpl"

//go:embed templates/*.md.tmpl
var builtinTemplates embed.FS

// Templates renders agendas from a parsed template set. It is built once
// by the host and is safe for concurrent use.
type Templates struct {
	set *template.Template
}

// New parses the built-in templates.
func New() (*Templates, error) {
	sub, err := fs.Sub(builtinTemplates, "templates")
	if err != nil {
		return nil, err
	}
	return Load(sub)
}

// Load parses every *.md.tmpl file at the root of fsys.
func Load(fsys fs.FS) (*Templates, error) {
	set, err := template.New("agenda").
		Option("missingkey=default").
		Funcs(template.FuncMap{
			"join": strings.Join,
		}).
		ParseFS(fsys, "*"+templateSuffix)
	if err != nil {
		return nil, fmt.Errorf("failed to parse templates: %w", err)
	}
	return &Templates{set: set}, nil
}

// Has reports whether a template exists for the report name.
func (t *Templates) Has(name string) bool {
	return t.set.Lookup(name+templateSuffix) != nil
}

// Render executes the template named after the report.
func (t *Templates) Render(name string, data map[string]any) (string, error) {
	tmpl := t.set.Lookup(name + templateSuffix)
	if tmpl == nil {
		return "", fmt.Errorf("no template for report %q", name)
	}
	var buf bytes.Buffer
	if err := tmpl.Execute(&buf, data); err != nil {
		return "", fmt.Errorf("failed to render %s: %w", name, err)
	}
	return buf.String(), nil
}

// Pretty renders markdown for a terminal with glamour.
type Pretty struct {
	Next interface {
		Render(name string, data map[string]any) (string, error)
	}
	// Style is a glamour style name such as "dark", "light" or "notty".
	Style string
}

func (p *Pretty) Render(name string, data map[string]any) (string, error) {
	out, err := p.Next.Render(name, data)
	if err != nil {
		return "", err
	}
	style := p.Style
	if style == "" {
		style = "dark"
	}
	pretty, err := glamour.Render(out, style)
	if err != nil {
		return "", fmt.Errorf("failed to format %s for the terminal: %w", name, err)
	}
	return pretty, nil
}
