// Package shell wraps compiled body markup in a printable HTML document:
// page geometry, base typography, and a title. The pooled engine renders
// the wrapped document; the shell itself never touches bindings.
package shell

import (
	"fmt"
	"strings"

	"github.com/flosch/pongo2/v6"

	"github.com/admsmc/dykstra-funeral-website-sub003/docgen"
)

const defaultShell = `<!DOCTYPE html>
<html>
<head>
<meta charset="utf-8">
<title>{{ title }}</title>
<style>
@page {
  size: {{ page_size }}{% if landscape %} landscape{% endif %};
  {% if margin %}margin: {{ margin }};{% endif %}
}
body {
  font-family: Georgia, 'Times New Roman', serif;
  font-size: 11pt;
  color: #1a1a1a;
  margin: 0;
}
h1, h2, h3 { font-weight: 600; }
table { width: 100%; border-collapse: collapse; }
th { text-align: left; border-bottom: 1px solid #999; }
td, th { padding: 4px 6px; }
</style>
</head>
<body>
{{ body | safe }}
</body>
</html>
`

// Renderer wraps body markup with a pongo2 document shell.
type Renderer struct {
	// Template overrides the built-in shell. It receives the variables
	// title, page_size, landscape, margin, and body.
	Template string

	compiled *pongo2.Template
}

var _ docgen.Shell = (*Renderer)(nil)

// New creates a shell renderer with the built-in template.
func New() (*Renderer, error) {
	r := &Renderer{}
	if err := r.compile(); err != nil {
		return nil, err
	}
	return r, nil
}

func (r *Renderer) compile() error {
	source := r.Template
	if source == "" {
		source = defaultShell
	}
	compiled, err := pongo2.FromString(source)
	if err != nil {
		return docgen.NewError(docgen.KindInternal, "shell template is invalid", err)
	}
	r.compiled = compiled
	return nil
}

// Wrap embeds body into the document shell using opts for page geometry.
func (r *Renderer) Wrap(body string, opts docgen.OutputOptions) (string, error) {
	if r.compiled == nil {
		if err := r.compile(); err != nil {
			return "", err
		}
	}

	out, err := r.compiled.Execute(pongo2.Context{
		"title":     opts.Title,
		"page_size": cssPageSize(opts.PageSize),
		"landscape": opts.Landscape,
		"margin":    cssMargin(opts),
		"body":      body,
	})
	if err != nil {
		return "", docgen.NewError(docgen.KindInternal, "shell render failed", err)
	}
	return out, nil
}

func cssPageSize(size string) string {
	switch strings.ToUpper(strings.TrimSpace(size)) {
	case "A3":
		return "A3"
	case "A4":
		return "A4"
	case "A5":
		return "A5"
	case "LEGAL":
		return "legal"
	case "", "LETTER":
		return "letter"
	default:
		return "letter"
	}
}

func cssMargin(opts docgen.OutputOptions) string {
	if opts.MarginTop == "" && opts.MarginRight == "" && opts.MarginBottom == "" && opts.MarginLeft == "" {
		return ""
	}
	orDefault := func(v string) string {
		if v == "" {
			return "0.5in"
		}
		return v
	}
	return fmt.Sprintf("%s %s %s %s",
		orDefault(opts.MarginTop),
		orDefault(opts.MarginRight),
		orDefault(opts.MarginBottom),
		orDefault(opts.MarginLeft))
}
