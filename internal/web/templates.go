package web

import (
	"bytes"
	"embed"
	"html/template"
	"io"

	"github.com/Masterminds/sprig/v3"

	"routeiq/internal/grid"
)

//go:embed tpl/*.tmpl tpl/partials/*.tmpl tpl/pages/*.tmpl
var tplFS embed.FS

const (
	// StylesheetPath is where the server exposes resources/styles.css.
	StylesheetPath = "/static/styles.css"
	documentTitle  = "RouteIQ"
)

// Renderer executes the embedded templates. Templates are parsed once and
// execution holds no state, so one Renderer serves all requests.
type Renderer struct {
	t *template.Template
}

func NewRenderer() (*Renderer, error) {
	funcs := template.FuncMap{
		"lightClass": lightClass,
	}
	t := template.New("root").Funcs(sprig.FuncMap()).Funcs(funcs)
	if _, err := t.ParseFS(tplFS, "tpl/shell.tmpl", "tpl/partials/*.tmpl", "tpl/pages/*.tmpl"); err != nil {
		return nil, err
	}
	return &Renderer{t: t}, nil
}

// Shell writes the full document with content placed verbatim in <main>.
// Empty content yields an empty main region.
func (r *Renderer) Shell(w io.Writer, content template.HTML) error {
	return r.t.ExecuteTemplate(w, "shell", ShellData{
		Title:      documentTitle,
		Stylesheet: StylesheetPath,
		Content:    content,
	})
}

// Fragment renders a page template on its own, for use as Shell content.
func (r *Renderer) Fragment(name string, data any) (template.HTML, error) {
	var buf bytes.Buffer
	if err := r.t.ExecuteTemplate(&buf, name, data); err != nil {
		return "", err
	}
	return template.HTML(buf.String()), nil
}

// Landing renders the landing view fragment.
func (r *Renderer) Landing() (template.HTML, error) {
	return r.Fragment("landing", nil)
}

// Render writes the named page wrapped in the shell. Nothing is written
// when the page fails to render.
func (r *Renderer) Render(w io.Writer, name string, data any) error {
	content, err := r.Fragment(name, data)
	if err != nil {
		return err
	}
	return r.Shell(w, content)
}

func lightClass(s grid.LightState) string {
	switch s {
	case grid.LightGreen:
		return "text-green-700"
	case grid.LightYellow:
		return "text-amber-600"
	default:
		return "text-red-700"
	}
}
