package tui

import (
	"fmt"
	"strings"

	"github.com/aretw0/chatflow/pkg/domain"
	"github.com/aretw0/chatflow/pkg/validator"
	"github.com/charmbracelet/glamour"
)

// Renderer turns markdown into terminal output.
type Renderer func(markdown string) (string, error)

// NewRenderer returns a function that renders markdown using glamour.
func NewRenderer() Renderer {
	r, err := glamour.NewTermRenderer(
		glamour.WithAutoStyle(), // Automatically detect light/dark background
	)
	if err != nil {
		return Plain
	}

	return func(markdown string) (string, error) {
		return r.Render(markdown)
	}
}

// Plain passes markdown through untouched. Used when output is not a terminal.
func Plain(markdown string) (string, error) {
	return markdown + "\n", nil
}

// FormatMessage renders a transcript entry as markdown. Buttons are the
// quick replies a buttons instruction refers to; they are numbered so the
// user can pick one by index.
func FormatMessage(msg domain.ConversationMessage, buttons []domain.Button) string {
	if msg.IsButtons() {
		if len(buttons) == 0 {
			return "_(no buttons)_"
		}
		var b strings.Builder
		for i, btn := range buttons {
			fmt.Fprintf(&b, "%d. %s\n", i+1, btn.Text)
		}
		return strings.TrimRight(b.String(), "\n")
	}

	switch msg.Sender {
	case domain.SenderUser:
		return "> " + msg.Content
	default:
		return "**bot:** " + msg.Content
	}
}

// FormatIssues renders lint findings as a markdown list.
func FormatIssues(issues []validator.Issue) string {
	if len(issues) == 0 {
		return "No lint issues."
	}
	var b strings.Builder
	b.WriteString("## Lint\n\n")
	for _, i := range issues {
		fmt.Fprintf(&b, "- %s\n", i)
	}
	return b.String()
}
