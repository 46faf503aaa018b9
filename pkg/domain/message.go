package domain

import "time"

// Sender identifies who produced a chat message.
type Sender string

const (
	SenderBot  Sender = "bot"
	SenderUser Sender = "user"
)

// ButtonsContent marks a bot message as an instruction to render the
// originating node's buttons instead of literal text.
const ButtonsContent = "buttons"

// ConversationMessage is a single chat bubble in the preview transcript.
type ConversationMessage struct {
	ID        string    `json:"id"`
	Sender    Sender    `json:"type"`
	Content   string    `json:"content"`
	Timestamp time.Time `json:"timestamp"`

	// NodeID is set for bot messages tied to a graph node.
	NodeID string `json:"nodeId,omitempty"`
}

// IsButtons reports whether the message is a buttons-render instruction.
func (m ConversationMessage) IsButtons() bool {
	return m.Sender == SenderBot && m.Content == ButtonsContent
}
