// Package campaign sends the initial campaign emails and keeps the chosen
// subject and message templates.
package campaign

import (
	"regexp"
	"strings"
)

// Placeholder is the only substitution recognized in templates.
const Placeholder = "{{influencer_name}}"

var braced = regexp.MustCompile(`(\{+)(influencer_name)(\}+)`)

// Template is a subject and body pair with Placeholder markers.
type Template struct {
	Subject string
	Body    string
}

// NormalizeTemplate rewrites the single-brace "{influencer_name}" to the
// double-brace form. Other braced text is left alone.
func NormalizeTemplate(s string) string {
	return braced.ReplaceAllStringFunc(s, func(m string) string {
		parts := braced.FindStringSubmatch(m)
		if len(parts[1]) == 1 && len(parts[3]) == 1 {
			return "{{" + parts[2] + "}}"
		}
		return m
	})
}

// Normalize returns t with both parts normalized.
func (t Template) Normalize() Template {
	return Template{
		Subject: NormalizeTemplate(t.Subject),
		Body:    NormalizeTemplate(t.Body),
	}
}

// Render substitutes name for every Placeholder.
func (t Template) Render(name string) (subject, body string) {
	return strings.ReplaceAll(t.Subject, Placeholder, name),
		strings.ReplaceAll(t.Body, Placeholder, name)
}

// Empty reports whether either part is blank.
func (t Template) Empty() bool {
	return strings.TrimSpace(t.Subject) == "" || strings.TrimSpace(t.Body) == ""
}
