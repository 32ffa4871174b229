package mail

import (
	"bytes"
	"embed"
	"fmt"
	"html/template"
)

//go:embed templates/*.html
var templateFS embed.FS

var templates = template.Must(template.ParseFS(templateFS, "templates/*.html"))

const (
	TemplateNewRequest        = "new_request.html"
	TemplateDecisionSubmitter = "decision_submitter.html"
	TemplateDecisionActor     = "decision_actor.html"
	TemplateDecisionStaff     = "decision_staff.html"
)

// Render executes the named template into an HTML string.
func Render(name string, data any) (string, error) {
	var buf bytes.Buffer
	if err := templates.ExecuteTemplate(&buf, name, data); err != nil {
		return "", fmt.Errorf("render %s: %w", name, err)
	}
	return buf.String(), nil
}
