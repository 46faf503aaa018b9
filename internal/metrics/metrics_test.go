package metrics

import (
	"errors"
	"fmt"
	"net/http/httptest"
	"testing"

	"github.com/aretw0/chatflow/pkg/domain"
	"github.com/stretchr/testify/assert"
)

func scrape(t *testing.T, m *Metrics) string {
	t.Helper()
	rec := httptest.NewRecorder()
	m.Handler().ServeHTTP(rec, httptest.NewRequest("GET", "/metrics", nil))
	return rec.Body.String()
}

func TestObserveSave(t *testing.T) {
	m := New()

	m.ObserveSave(nil)
	m.ObserveSave(&domain.InvalidFlowTopologyError{Message: domain.MultipleRootsMessage})
	m.ObserveSave(fmt.Errorf("wrapped: %w", domain.ErrInvalidFlowTopology))
	m.ObserveSave(errors.New("disk full"))

	body := scrape(t, m)
	assert.Contains(t, body, `chatflow_saves_total{outcome="saved"} 1`)
	assert.Contains(t, body, `chatflow_saves_total{outcome="rejected"} 2`)
	assert.Contains(t, body, `chatflow_saves_total{outcome="failed"} 1`)
}

func TestHooks(t *testing.T) {
	m := New()
	h := m.Hooks()

	h.OnMessage(&domain.MessageEvent{Message: domain.ConversationMessage{Sender: domain.SenderBot}})
	h.OnMessage(&domain.MessageEvent{Message: domain.ConversationMessage{Sender: domain.SenderUser}})
	h.OnMessage(&domain.MessageEvent{Message: domain.ConversationMessage{Sender: domain.SenderBot}})
	h.OnNodeEnter(&domain.NodeEvent{NodeType: domain.NodeTypeQuickReplies})
	h.OnReset(&domain.ResetEvent{})

	body := scrape(t, m)
	assert.Contains(t, body, `chatflow_preview_messages_total{sender="bot"} 2`)
	assert.Contains(t, body, `chatflow_preview_messages_total{sender="user"} 1`)
	assert.Contains(t, body, `chatflow_preview_node_visits_total{node_type="quick_replies"} 1`)
	assert.Contains(t, body, "chatflow_preview_resets_total 1")
}

func TestHandler(t *testing.T) {
	m := New()
	m.TrackActiveSessions(func() int { return 3 })
	m.ObserveValidation(domain.ValidationResult{IsValid: false})

	body := scrape(t, m)
	assert.Contains(t, body, `chatflow_validations_total{outcome="invalid"} 1`)
	assert.Contains(t, body, "chatflow_preview_sessions_active 3")
}
