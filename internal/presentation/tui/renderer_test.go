package tui

import (
	"bytes"
	"testing"

	"github.com/aretw0/chatflow/pkg/domain"
	"github.com/aretw0/chatflow/pkg/validator"
	"github.com/stretchr/testify/assert"
)

func TestFormatMessage(t *testing.T) {
	buttons := []domain.Button{{ID: "1", Text: "Yes"}, {ID: "2", Text: "No"}}

	tests := []struct {
		name    string
		msg     domain.ConversationMessage
		buttons []domain.Button
		want    string
	}{
		{"Bot text", domain.ConversationMessage{Sender: domain.SenderBot, Content: "Hi"}, nil, "**bot:** Hi"},
		{"User text", domain.ConversationMessage{Sender: domain.SenderUser, Content: "hello"}, nil, "> hello"},
		{"Buttons", domain.ConversationMessage{Sender: domain.SenderBot, Content: domain.ButtonsContent}, buttons, "1. Yes\n2. No"},
		{"Buttons of a deleted node", domain.ConversationMessage{Sender: domain.SenderBot, Content: domain.ButtonsContent}, nil, "_(no buttons)_"},
		{"User typing the word buttons", domain.ConversationMessage{Sender: domain.SenderUser, Content: domain.ButtonsContent}, buttons, "> buttons"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, FormatMessage(tt.msg, tt.buttons))
		})
	}
}

func TestFormatIssues(t *testing.T) {
	assert.Equal(t, "No lint issues.", FormatIssues(nil))

	out := FormatIssues([]validator.Issue{{Severity: validator.SeverityWarning, NodeID: "a", Message: "label is empty"}})
	assert.Contains(t, out, "- [warning] node a: label is empty")
}

func TestPrintBanner(t *testing.T) {
	var buf bytes.Buffer
	PrintBanner(&buf, "0.1.0\n")
	assert.Contains(t, buf.String(), "preview v0.1.0")
}
