package domain

// SimulationStatus is the position of the preview state machine.
type SimulationStatus string

const (
	StatusIdle          SimulationStatus = "idle"           // No start node resolvable
	StatusAwaitingInput SimulationStatus = "awaiting_input" // Current node set, waiting for the user
	StatusAdvancing     SimulationStatus = "advancing"      // An emission is scheduled
)

// SimulationState is the transient conversation owned by one simulator.
type SimulationState struct {
	// SessionID identifies the preview session, when the simulator runs behind a session manager.
	SessionID string `json:"session_id,omitempty"`

	// FlowRevision is the revision of the Flow the transcript was produced from.
	FlowRevision uint64 `json:"flow_revision"`

	// Messages is the transcript in emission order.
	Messages []ConversationMessage `json:"messages"`

	// CurrentNodeID is the node whose outgoing edge will be followed next.
	CurrentNodeID string `json:"current_node_id,omitempty"`

	Status SimulationStatus `json:"status"`

	// Generation increments on every reset. Scheduled emissions carry the
	// generation they were created in and are dropped when it no longer matches.
	Generation uint64 `json:"generation"`
}

// NewSimulationState creates an empty, idle state.
func NewSimulationState(sessionID string) *SimulationState {
	return &SimulationState{
		SessionID: sessionID,
		Messages:  []ConversationMessage{},
		Status:    StatusIdle,
	}
}

// Snapshot returns a deep copy of the state.
func (s *SimulationState) Snapshot() *SimulationState {
	if s == nil {
		return nil
	}
	out := *s
	out.Messages = append([]ConversationMessage{}, s.Messages...)
	return &out
}

// LastBotMessage returns the most recent bot message.
func (s *SimulationState) LastBotMessage() (ConversationMessage, bool) {
	for i := len(s.Messages) - 1; i >= 0; i-- {
		if s.Messages[i].Sender == SenderBot {
			return s.Messages[i], true
		}
	}
	return ConversationMessage{}, false
}

// AwaitingButtons reports whether the latest bot message asks the UI to render buttons.
func (s *SimulationState) AwaitingButtons() bool {
	msg, ok := s.LastBotMessage()
	return ok && msg.IsButtons()
}
