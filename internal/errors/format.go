package errors

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/charmbracelet/lipgloss"
	"github.com/valyala/quicktemplate"
)

var (
	styleError = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("167"))
	styleCode  = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("255"))
	styleHint  = lipgloss.NewStyle().Foreground(lipgloss.Color("36"))
	styleDim   = lipgloss.NewStyle().Foreground(lipgloss.Color("240"))
)

// Format returns the error formatted for terminal display.
func (e *Error) Format() string {
	var b strings.Builder

	b.WriteString("\n")
	if e.Code != "" {
		b.WriteString(styleError.Render("ERROR "))
		b.WriteString(styleCode.Render(e.Code + ": "))
	} else {
		b.WriteString(styleError.Render("ERROR: "))
	}
	b.WriteString(e.Message)
	b.WriteString("\n\n")

	if e.Detail != "" {
		for _, line := range wrapText(e.Detail, 70) {
			b.WriteString("  ")
			b.WriteString(line)
			b.WriteString("\n")
		}
		b.WriteString("\n")
	}

	if e.Wrapped != nil {
		b.WriteString("  ")
		b.WriteString(styleDim.Render("Cause: " + e.Wrapped.Error()))
		b.WriteString("\n\n")
	}

	if e.Suggestion != "" {
		b.WriteString("  ")
		b.WriteString(styleHint.Render("Hint: "))
		b.WriteString(e.Suggestion)
		b.WriteString("\n\n")
	}

	return b.String()
}

// FormatCompact returns a single-line error format.
func (e *Error) FormatCompact() string {
	var b strings.Builder
	if e.Code != "" {
		b.WriteString(e.Code)
		b.WriteString(": ")
	}
	b.WriteString(e.Message)
	if e.Detail != "" {
		b.WriteString(" (")
		b.WriteString(e.Detail)
		b.WriteString(")")
	}
	return b.String()
}

type jsonError struct {
	Code       string   `json:"code,omitempty"`
	Category   Category `json:"category"`
	Message    string   `json:"message"`
	Detail     string   `json:"detail,omitempty"`
	Suggestion string   `json:"suggestion,omitempty"`
	Cause      string   `json:"cause,omitempty"`
}

// FormatJSON returns the error as a JSON object.
func (e *Error) FormatJSON() string {
	je := jsonError{
		Code:       e.Code,
		Category:   e.Category,
		Message:    e.Message,
		Detail:     e.Detail,
		Suggestion: e.Suggestion,
	}
	if e.Wrapped != nil {
		je.Cause = e.Wrapped.Error()
	}
	b, _ := json.Marshal(je)
	return string(b)
}

// WriteHTML writes a minimal error page. The cause is left out because it
// may carry internal details.
func (e *Error) WriteHTML(w io.Writer) {
	qw := quicktemplate.AcquireWriter(w)
	defer quicktemplate.ReleaseWriter(qw)

	title := e.Message
	if e.Code != "" {
		title = e.Code + ": " + e.Message
	}
	qw.N().S("<!DOCTYPE html><html><head><meta charset=\"utf-8\"><title>")
	qw.E().S(title)
	qw.N().S("</title></head><body><h1>")
	qw.E().S(title)
	qw.N().S("</h1>")
	if e.Detail != "" {
		qw.N().S("<p>")
		qw.E().S(e.Detail)
		qw.N().S("</p>")
	}
	qw.N().S("</body></html>")
}

// wrapText wraps text to the specified width.
func wrapText(text string, width int) []string {
	if text == "" {
		return nil
	}
	if len(text) <= width {
		return []string{text}
	}

	var lines []string
	var current strings.Builder
	for _, word := range strings.Fields(text) {
		if current.Len() > 0 && current.Len()+len(word)+1 > width {
			lines = append(lines, current.String())
			current.Reset()
		}
		if current.Len() > 0 {
			current.WriteString(" ")
		}
		current.WriteString(word)
	}
	if current.Len() > 0 {
		lines = append(lines, current.String())
	}
	return lines
}

// PrintError prints a formatted error to stderr.
func PrintError(err error) {
	var e *Error
	if errors.As(err, &e) {
		fmt.Fprint(os.Stderr, e.Format())
		return
	}
	fmt.Fprintf(os.Stderr, "\n%s %s\n\n", styleError.Render("ERROR:"), err.Error())
}
