package http

import (
	"embed"
	"fmt"
	"html/template"
	"io"

	"github.com/labstack/echo/v4"
)

//go:embed templates/*.html
var templateFS embed.FS

// Page names accepted by TemplateRenderer
const (
	PagePay       = "pay.html"
	PageExpired   = "expired.html"
	PagePaid      = "paid.html"
	PageSuccess   = "success.html"
	PageCancelled = "cancelled.html"
	PageMessage   = "message.html"
)

var pages = []string{PagePay, PageExpired, PagePaid, PageSuccess, PageCancelled, PageMessage}

// TemplateRenderer renders the embedded customer pages for echo
type TemplateRenderer struct {
	templates map[string]*template.Template
}

// NewTemplateRenderer parses every page together with the shared layout
func NewTemplateRenderer() (*TemplateRenderer, error) {
	templates := make(map[string]*template.Template, len(pages))
	for _, page := range pages {
		tmpl, err := template.ParseFS(templateFS, "templates/layout.html", "templates/"+page)
		if err != nil {
			return nil, fmt.Errorf("failed to parse template %s: %w", page, err)
		}
		templates[page] = tmpl
	}
	return &TemplateRenderer{templates: templates}, nil
}

// Render implements echo.Renderer
func (r *TemplateRenderer) Render(w io.Writer, name string, data interface{}, _ echo.Context) error {
	tmpl, ok := r.templates[name]
	if !ok {
		return fmt.Errorf("template %s not found", name)
	}
	return tmpl.ExecuteTemplate(w, "layout", data)
}
