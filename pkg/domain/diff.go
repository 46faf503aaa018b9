package domain

// TranscriptDiff represents the changes between two simulation snapshots.
// It is designed to be serialized to JSON for partial updates on the client.
type TranscriptDiff struct {
	// SessionID is always present to identify the target.
	SessionID string `json:"session_id"`

	CurrentNodeID *string           `json:"current_node_id,omitempty"`
	Status        *SimulationStatus `json:"status,omitempty"`

	// Appended contains messages added since the old snapshot.
	Appended []ConversationMessage `json:"appended,omitempty"`

	// Reset is set when the transcript was cleared, in which case Appended
	// holds the whole new transcript.
	Reset bool `json:"reset,omitempty"`
}

// Diff calculates the difference between oldState and newState.
// If oldState is nil, it returns a diff representing the entire newState (initial load).
// Returns nil when nothing changed.
func Diff(oldState, newState *SimulationState) *TranscriptDiff {
	if newState == nil {
		return nil
	}

	diff := &TranscriptDiff{SessionID: newState.SessionID}

	if oldState == nil || oldState.CurrentNodeID != newState.CurrentNodeID {
		if newState.CurrentNodeID != "" || oldState != nil {
			diff.CurrentNodeID = &newState.CurrentNodeID
		}
	}
	if oldState == nil || oldState.Status != newState.Status {
		diff.Status = &newState.Status
	}

	switch {
	case oldState == nil:
		diff.Appended = newState.Messages
	case oldState.Generation != newState.Generation || len(newState.Messages) < len(oldState.Messages):
		diff.Reset = true
		diff.Appended = newState.Messages
	case len(newState.Messages) > len(oldState.Messages):
		diff.Appended = newState.Messages[len(oldState.Messages):]
	}

	if diff.IsEmpty() {
		return nil
	}
	return diff
}

// IsEmpty checks if the diff contains any actionable changes.
func (d *TranscriptDiff) IsEmpty() bool {
	return d.CurrentNodeID == nil &&
		d.Status == nil &&
		!d.Reset &&
		len(d.Appended) == 0
}
