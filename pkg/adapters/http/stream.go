package http

import (
	"log/slog"
	"sync"

	"github.com/aretw0/chatflow/pkg/domain"
)

// StreamManager fans transcript diffs out to the SSE clients of each session.
type StreamManager struct {
	mu          sync.RWMutex
	subscribers map[string]map[chan *domain.TranscriptDiff]struct{} // SessionID -> Set of Channels
	logger      *slog.Logger
}

func NewStreamManager(logger *slog.Logger) *StreamManager {
	return &StreamManager{
		subscribers: make(map[string]map[chan *domain.TranscriptDiff]struct{}),
		logger:      logger,
	}
}

// Subscribe returns a buffered channel of diffs for sessionID and a cancel
// function that closes it.
func (sm *StreamManager) Subscribe(sessionID string) (<-chan *domain.TranscriptDiff, func()) {
	sm.mu.Lock()
	defer sm.mu.Unlock()

	ch := make(chan *domain.TranscriptDiff, 16)
	if _, ok := sm.subscribers[sessionID]; !ok {
		sm.subscribers[sessionID] = make(map[chan *domain.TranscriptDiff]struct{})
	}
	sm.subscribers[sessionID][ch] = struct{}{}

	var once sync.Once
	return ch, func() {
		once.Do(func() {
			sm.mu.Lock()
			defer sm.mu.Unlock()
			if subs, ok := sm.subscribers[sessionID]; ok {
				delete(subs, ch)
				close(ch)
				if len(subs) == 0 {
					delete(sm.subscribers, sessionID)
				}
			}
		})
	}
}

// Broadcast never blocks: a client whose buffer is full misses the diff.
func (sm *StreamManager) Broadcast(sessionID string, diff *domain.TranscriptDiff) {
	sm.mu.RLock()
	defer sm.mu.RUnlock()

	for ch := range sm.subscribers[sessionID] {
		select {
		case ch <- diff:
		default:
			sm.logger.Warn("SSE: Client buffer full, dropping diff", "session_id", sessionID)
		}
	}
}

// Subscribers returns the number of clients listening to sessionID.
func (sm *StreamManager) Subscribers(sessionID string) int {
	sm.mu.RLock()
	defer sm.mu.RUnlock()
	return len(sm.subscribers[sessionID])
}
