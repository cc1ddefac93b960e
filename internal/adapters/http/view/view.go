// Package view renders the member desk markup from embedded templates.
package view

import (
	"bytes"
	"embed"
	"fmt"
	"html/template"
	"io"

	"memberdesk/internal/application/forms"
	"memberdesk/internal/domain/member"
)

//go:embed templates/*.html
var templateFS embed.FS

var templates = template.Must(template.ParseFS(templateFS, "templates/*.html"))

// TableOptions controls the table variant.
type TableOptions struct {
	// Editable turns every data cell into a link that opens the edit form.
	Editable bool
}

// RenderTable renders members as a table with a fixed header and one row per member.
// POST: Output depends only on the arguments; member order is kept
// INVARIANT: Field values are HTML-escaped
func RenderTable(members []member.Member, opts TableOptions) (template.HTML, error) {
	return execute("table", struct {
		Members  []member.Member
		Editable bool
	}{members, opts.Editable})
}

// RenderForm renders an add or edit form. csrfField is placed inside the form as-is.
// PRE: form.Open()
func RenderForm(form forms.Form, csrfField template.HTML) (template.HTML, error) {
	action := "/members/create"
	if form.Kind == forms.KindEdit {
		action = "/members/update"
	}
	return execute("form", struct {
		Form      forms.Form
		IsEdit    bool
		Action    string
		CSRFField template.HTML
	}{form, form.Kind == forms.KindEdit, action, csrfField})
}

// RenderError renders a user-facing error notice.
func RenderError(message string) (template.HTML, error) {
	return execute("error", message)
}

// PageData is everything the full page needs.
type PageData struct {
	Title     string
	CSRFToken string
	Banner    template.HTML
	// Loaded is false when the member list could not be fetched; the table is then omitted.
	Loaded bool
	Count  int
	Table  template.HTML
	Form   template.HTML
	Error  string
	// Notice confirms a completed change.
	Notice string
}

// RenderPage writes the full page.
func RenderPage(w io.Writer, data PageData) error {
	if data.Title == "" {
		data.Title = "Members"
	}
	if err := templates.ExecuteTemplate(w, "page", data); err != nil {
		return fmt.Errorf("render page: %w", err)
	}
	return nil
}

func execute(name string, data any) (template.HTML, error) {
	var buf bytes.Buffer
	if err := templates.ExecuteTemplate(&buf, name, data); err != nil {
		return "", fmt.Errorf("render %s: %w", name, err)
	}
	return template.HTML(buf.String()), nil
}
