// Package ui - List Renderer
// Builds view models for the entity list, navigation, profile and dashboard
// from module schemas and rows, and renders them with embedded templates.
package ui

import (
	"bytes"
	"embed"
	"fmt"
	"html/template"
	"io"
	"io/fs"
	"strings"
)

//go:embed templates/*.html
var templateFS embed.FS

//go:embed static
var staticFS embed.FS

// Static returns the stylesheet and other assets served under /static.
func Static() fs.FS {
	sub, err := fs.Sub(staticFS, "static")
	if err != nil {
		panic(err)
	}
	return sub
}

// Page is the shell around every screen.
type Page struct {
	AppName  string
	Title    string
	ActiveID string
	Theme    ThemeView
	Nav      Nav
	Profile  Profile
	Content  template.HTML
}

// Renderer executes the embedded templates.
type Renderer struct {
	tmpl *template.Template
}

// NewRenderer parses the embedded templates.
func NewRenderer() (*Renderer, error) {
	tmpl, err := template.New("glow").Funcs(TemplateFuncs()).ParseFS(templateFS, "templates/*.html")
	if err != nil {
		return nil, fmt.Errorf("parse templates: %w", err)
	}
	return &Renderer{tmpl: tmpl}, nil
}

// TemplateFuncs are the helpers available to templates.
func TemplateFuncs() template.FuncMap {
	return template.FuncMap{
		"join": strings.Join,
		"ariaSort": func(h HeaderCell) string {
			switch {
			case !h.Active:
				return "none"
			case h.Direction == "desc":
				return "descending"
			default:
				return "ascending"
			}
		},
	}
}

// Module renders a full entity-module page.
func (r *Renderer) Module(w io.Writer, page Page, v ModuleView) error {
	return r.page(w, page, "module", v)
}

// Dashboard renders the dashboard page.
func (r *Renderer) Dashboard(w io.Writer, page Page, panels []DashboardPanel) error {
	return r.page(w, page, "dashboard", panels)
}

// Placeholder renders a page for a module that has no fields.
func (r *Renderer) Placeholder(w io.Writer, page Page) error {
	return r.page(w, page, "placeholder", page.Title)
}

// List renders only the table and pagination of a module, for partial updates.
func (r *Renderer) List(w io.Writer, v ModuleView) error {
	return r.tmpl.ExecuteTemplate(w, "list", v)
}

// Table renders a bare table.
func (r *Renderer) Table(w io.Writer, t Table) error {
	return r.tmpl.ExecuteTemplate(w, "table", t)
}

func (r *Renderer) page(w io.Writer, page Page, content string, data any) error {
	var buf bytes.Buffer
	if err := r.tmpl.ExecuteTemplate(&buf, content, data); err != nil {
		return fmt.Errorf("render %s: %w", content, err)
	}
	// Already escaped by the content template.
	page.Content = template.HTML(buf.String())
	if page.Title == "" {
		page.Title = page.AppName
	}
	return r.tmpl.ExecuteTemplate(w, "layout", page)
}
