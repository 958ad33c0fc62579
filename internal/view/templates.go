package view

import (
	"bytes"
	"fmt"
	"html/template"
	"net/http"
	"time"

	"github.com/sunlease/portal/internal/identity"
	"github.com/sunlease/portal/internal/rbac"
	"github.com/sunlease/portal/web"
)

// Engine renders HTML templates.
type Engine struct {
	templates *template.Template
}

// TemplateData contains values shared across templates.
type TemplateData struct {
	Title       string
	CSRFToken   string
	CurrentPath string
	User        *identity.Identity
	Access      rbac.Evaluator
	Menu        []rbac.MenuItem
	Error       string
	Data        any
}

// NewEngine parses templates at build-time.
func NewEngine() (*Engine, error) {
	funcMap := template.FuncMap{
		"formatDate": func(t time.Time) string {
			if t.IsZero() {
				return ""
			}
			return t.Format("02 Jan 2006 15:04")
		},
		// can reports whether the evaluator grants any of the capabilities on
		// module; with no capability it checks module access.
		"can": func(access rbac.Evaluator, module string, caps ...string) bool {
			gate := rbac.Gate{Module: identity.Module(module), HasAccess: len(caps) == 0}
			for _, c := range caps {
				gate.Capabilities = append(gate.Capabilities, identity.Capability(c))
			}
			return gate.Allows(access)
		},
		"active": func(current, path string) bool {
			return path != "" && (current == path || (len(current) > len(path) && current[:len(path)+1] == path+"/"))
		},
	}
	tpl, err := template.New("root").Funcs(funcMap).ParseFS(web.Templates, web.TemplatePatterns...)
	if err != nil {
		return nil, err
	}
	return &Engine{templates: tpl}, nil
}

// Render executes a named template with TemplateData.
func (e *Engine) Render(w http.ResponseWriter, name string, data TemplateData) error {
	return e.RenderStatus(w, http.StatusOK, name, data)
}

// RenderStatus renders into a buffer first so a template error never leaves
// a half-written page behind the chosen status.
func (e *Engine) RenderStatus(w http.ResponseWriter, status int, name string, data TemplateData) error {
	if e == nil {
		return fmt.Errorf("template engine not initialised")
	}
	var buf bytes.Buffer
	if err := e.templates.ExecuteTemplate(&buf, name, data); err != nil {
		return err
	}
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.WriteHeader(status)
	_, err := buf.WriteTo(w)
	return err
}
