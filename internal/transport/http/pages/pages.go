// Package pages renders the server-side HTML for the protected forms.
package pages

import (
	"bytes"
	"context"
	"embed"
	"errors"
	"fmt"
	"html/template"
	"log/slog"
	"net/http"

	"spamgate/internal/captcha/emitter"
	"spamgate/internal/captcha/gate"
	dErrors "spamgate/pkg/domain-errors"
)

//go:embed templates/*.html
var templateFS embed.FS

// Names of the pages the renderer knows.
const (
	Home     = "home.html"
	Login    = "login.html"
	Register = "register.html"
	Contact  = "contact.html"
	Error    = "error.html"
)

var pageNames = []string{Home, Login, Register, Contact, Error}

// FormGate is what a page needs from the captcha gate to protect a form.
type FormGate interface {
	BeginRender(ctx context.Context) *emitter.Page
	OnRenderForm(p *emitter.Page, f gate.Form) gate.Markup
	Emitter() *emitter.Emitter
}

// View is the data every page template receives.
type View struct {
	Title   string
	User    string
	Notice  string
	Errors  []string
	Values  map[string]string
	Captcha gate.Markup
	Head    template.HTML
	Scripts template.HTML
}

type Renderer struct {
	pages  map[string]*template.Template
	logger *slog.Logger
}

// New parses the layout once per page so each page can define its own
// "content" block.
func New(logger *slog.Logger) (*Renderer, error) {
	layout, err := template.ParseFS(templateFS, "templates/layout.html")
	if err != nil {
		return nil, fmt.Errorf("parse layout: %w", err)
	}
	r := &Renderer{pages: make(map[string]*template.Template, len(pageNames)), logger: logger}
	for _, name := range pageNames {
		t, err := layout.Clone()
		if err != nil {
			return nil, err
		}
		if _, err := t.ParseFS(templateFS, "templates/"+name); err != nil {
			return nil, fmt.Errorf("parse %s: %w", name, err)
		}
		r.pages[name] = t
	}
	return r, nil
}

// FormView opens a render on g and protects form f. The returned view carries
// the hidden input, the head style and the queued scripts.
func FormView(ctx context.Context, g FormGate, f gate.Form, title string) View {
	p := g.BeginRender(ctx)
	markup := g.OnRenderForm(p, f)
	return View{
		Title:   title,
		Values:  map[string]string{},
		Captcha: markup,
		Head:    g.Emitter().HeadHTML(p),
		Scripts: p.Scripts(),
	}
}

// Render writes page name with status. The page is buffered so a template
// failure still produces a clean 500.
func (r *Renderer) Render(w http.ResponseWriter, req *http.Request, status int, name string, view View) {
	t, ok := r.pages[name]
	if !ok {
		r.logger.ErrorContext(req.Context(), "unknown page", "page", name)
		http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
		return
	}
	var buf bytes.Buffer
	if err := t.ExecuteTemplate(&buf, "layout", view); err != nil {
		r.logger.ErrorContext(req.Context(), "failed to render page", "page", name, "error", err)
		http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.WriteHeader(status)
	_, _ = buf.WriteTo(w)
}

// RenderError renders the error page for a service error. Internal errors
// never expose their message.
func (r *Renderer) RenderError(w http.ResponseWriter, req *http.Request, err error) {
	status := dErrors.ToHTTPStatus(dErrors.CodeOf(err))
	msg := http.StatusText(status)
	if status != http.StatusInternalServerError {
		var de *dErrors.Error
		if errors.As(err, &de) {
			msg = de.Message
		}
	}
	r.Render(w, req, status, Error, View{Title: "Error", Errors: []string{msg}})
}
