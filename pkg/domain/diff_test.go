package domain

import (
	"encoding/json"
	"strings"
	"testing"
)

func TestDiff(t *testing.T) {
	hello := ConversationMessage{ID: "m1", Sender: SenderBot, Content: "Hello"}
	reply := ConversationMessage{ID: "m2", Sender: SenderUser, Content: "Hi"}

	tests := []struct {
		name         string
		old          *SimulationState
		new          *SimulationState
		wantNil      bool
		wantAppended int
		wantReset    bool
	}{
		{
			name:         "Initial Load (Old is Nil)",
			old:          nil,
			new:          &SimulationState{SessionID: "s", CurrentNodeID: "a", Status: StatusAwaitingInput, Messages: []ConversationMessage{hello}},
			wantAppended: 1,
		},
		{
			name:    "No Changes",
			old:     &SimulationState{SessionID: "s", CurrentNodeID: "a", Status: StatusAwaitingInput, Messages: []ConversationMessage{hello}},
			new:     &SimulationState{SessionID: "s", CurrentNodeID: "a", Status: StatusAwaitingInput, Messages: []ConversationMessage{hello}},
			wantNil: true,
		},
		{
			name:         "Append",
			old:          &SimulationState{SessionID: "s", CurrentNodeID: "a", Messages: []ConversationMessage{hello}},
			new:          &SimulationState{SessionID: "s", CurrentNodeID: "a", Messages: []ConversationMessage{hello, reply}},
			wantAppended: 1,
		},
		{
			name:         "Reset bumps generation",
			old:          &SimulationState{SessionID: "s", Generation: 1, Messages: []ConversationMessage{hello, reply}},
			new:          &SimulationState{SessionID: "s", Generation: 2, Messages: []ConversationMessage{hello}},
			wantAppended: 1,
			wantReset:    true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := Diff(tt.old, tt.new)
			if tt.wantNil {
				if got != nil {
					t.Errorf("Diff() = %+v, want nil", got)
				}
				return
			}
			if got == nil {
				t.Fatal("Diff() = nil, want a diff")
			}
			if len(got.Appended) != tt.wantAppended {
				t.Errorf("len(Appended) = %d, want %d", len(got.Appended), tt.wantAppended)
			}
			if got.Reset != tt.wantReset {
				t.Errorf("Reset = %v, want %v", got.Reset, tt.wantReset)
			}
		})
	}
}

func TestDiffJSONSerialization(t *testing.T) {
	old := &SimulationState{SessionID: "s", Status: StatusAwaitingInput}
	next := &SimulationState{SessionID: "s", Status: StatusAdvancing}

	diff := Diff(old, next)
	if diff == nil {
		t.Fatal("Expected diff, got nil")
	}
	bytes, _ := json.Marshal(diff)
	if strings.Contains(string(bytes), `"appended"`) {
		t.Errorf("JSON should not contain 'appended' when empty, got: %s", string(bytes))
	}
	if !strings.Contains(string(bytes), `"status":"advancing"`) {
		t.Errorf("JSON should contain the new status, got: %s", string(bytes))
	}
}
