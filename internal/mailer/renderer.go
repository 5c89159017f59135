package mailer

import (
	"bytes"
	"embed"
	"fmt"
	"strings"
	"text/template"
	"time"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"
)

//go:embed templates/*.tmpl
var templatesFS embed.FS

// Renderer renders queued emails from templates.
type Renderer struct {
	templates map[Kind]*template.Template
}

// NewRenderer creates a new renderer and loads all templates.
func NewRenderer() (*Renderer, error) {
	funcMap := template.FuncMap{
		"title":      titleCase,
		"upper":      strings.ToUpper,
		"lower":      strings.ToLower,
		"formatDate": formatDate,
	}

	r := &Renderer{
		templates: make(map[Kind]*template.Template),
	}

	for _, kind := range []Kind{KindWelcome, KindDueSoon, KindOverdue} {
		filename := fmt.Sprintf("templates/%s.tmpl", kind)

		content, err := templatesFS.ReadFile(filename)
		if err != nil {
			return nil, fmt.Errorf("read template %s: %w", filename, err)
		}

		tmpl, err := template.New(string(kind)).Funcs(funcMap).Parse(string(content))
		if err != nil {
			return nil, fmt.Errorf("parse template %s: %w", kind, err)
		}

		r.templates[kind] = tmpl
	}

	return r, nil
}

// Render renders a queue item. Returns subject and body.
func (r *Renderer) Render(item *QueueItem) (subject, body string, err error) {
	tmpl, ok := r.templates[item.Kind]
	if !ok {
		return "", "", fmt.Errorf("template not found: %s", item.Kind)
	}

	var buf bytes.Buffer
	if err := tmpl.Execute(&buf, item.Payload); err != nil {
		return "", "", fmt.Errorf("execute template %s: %w", item.Kind, err)
	}

	return r.renderSubject(item), strings.TrimSpace(buf.String()), nil
}

// renderSubject generates the subject line.
func (r *Renderer) renderSubject(item *QueueItem) string {
	switch item.Kind {
	case KindWelcome:
		return "Welcome to your todo list"
	case KindDueSoon:
		return fmt.Sprintf("[Due tomorrow] %s", item.Payload.TodoTitle)
	case KindOverdue:
		return fmt.Sprintf("[Overdue] %s", item.Payload.TodoTitle)
	default:
		return "Notification"
	}
}

// Template functions

var titleCaser = cases.Title(language.English)

func titleCase(s string) string {
	return titleCaser.String(s)
}

func formatDate(t *time.Time) string {
	if t == nil {
		return ""
	}
	return t.UTC().Format("Jan 2, 2006")
}
