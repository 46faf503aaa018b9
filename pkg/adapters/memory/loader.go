package memory

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"github.com/aretw0/chatflow/pkg/domain"
)

// Loader implements ports.FlowLoader over flows held in memory.
type Loader struct {
	mu    sync.RWMutex
	flows map[string]domain.Flow
}

// NewLoader creates a Loader seeded with the given flows.
func NewLoader(flows map[string]domain.Flow) *Loader {
	l := &Loader{flows: make(map[string]domain.Flow, len(flows))}
	for id, f := range flows {
		l.flows[id] = f.Clone()
	}
	return l
}

// NewFromRaw decodes wire-form flows, improving DX for tests and fixtures.
func NewFromRaw(raw map[string]domain.RawFlow) (*Loader, error) {
	flows := make(map[string]domain.Flow, len(raw))
	for id, r := range raw {
		f, err := r.Decode()
		if err != nil {
			return nil, fmt.Errorf("failed to decode flow %s: %w", id, err)
		}
		flows[id] = f
	}
	return &Loader{flows: flows}, nil
}

// Put stores or replaces a flow.
func (l *Loader) Put(id string, flow domain.Flow) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.flows[id] = flow.Clone()
}

// GetFlow returns a copy of the flow stored under id.
func (l *Loader) GetFlow(_ context.Context, id string) (domain.Flow, error) {
	l.mu.RLock()
	defer l.mu.RUnlock()
	f, ok := l.flows[id]
	if !ok {
		return domain.Flow{}, fmt.Errorf("%w: %s", domain.ErrFlowNotFound, id)
	}
	return f.Clone(), nil
}

// ListFlows returns all flow ids.
func (l *Loader) ListFlows(_ context.Context) ([]string, error) {
	l.mu.RLock()
	defer l.mu.RUnlock()
	keys := make([]string, 0, len(l.flows))
	for k := range l.flows {
		keys = append(keys, k)
	}
	sort.Strings(keys) // Deterministic order
	return keys, nil
}
