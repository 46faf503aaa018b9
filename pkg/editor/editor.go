package editor

import (
	"context"
	"fmt"
	"log/slog"
	"strconv"
	"sync"
	"time"

	"github.com/aretw0/chatflow/internal/logging"
	"github.com/aretw0/chatflow/pkg/domain"
	"github.com/aretw0/chatflow/pkg/schedule"
	"github.com/aretw0/chatflow/pkg/validator"
)

// DefaultErrorDisplay is how long a rejected save keeps its error visible.
const DefaultErrorDisplay = 5000 * time.Millisecond

// SaveHandler receives every flow that passes validation on Save.
type SaveHandler func(ctx context.Context, flow domain.Flow) error

// Listener is called with the new revision after every change.
type Listener func(domain.Flow)

// Editor owns a flow and produces a new revision for every edit.
type Editor struct {
	mu   sync.Mutex
	flow domain.Flow
	seq  int

	// notifyMu serializes listener deliveries.
	notifyMu sync.Mutex

	listeners    map[int]Listener
	nextListener int

	saveErr      string
	saveErrTimer schedule.Timer
	saveErrSeq   uint64

	sched        schedule.Scheduler
	errorDisplay time.Duration
	onSave       SaveHandler
	logger       *slog.Logger
}

// Option configures an Editor.
type Option func(*Editor)

// WithScheduler replaces the wall-clock scheduler used to clear save errors.
func WithScheduler(s schedule.Scheduler) Option {
	return func(e *Editor) {
		e.sched = s
	}
}

// WithErrorDisplay sets how long a save error stays visible.
func WithErrorDisplay(d time.Duration) Option {
	return func(e *Editor) {
		e.errorDisplay = d
	}
}

// WithSaveHandler sets where valid flows go on Save. The default only logs.
func WithSaveHandler(h SaveHandler) Option {
	return func(e *Editor) {
		e.onSave = h
	}
}

// WithLogger sets a structured logger.
func WithLogger(logger *slog.Logger) Option {
	return func(e *Editor) {
		e.logger = logger
	}
}

// WithFlow seeds the editor with an existing flow.
func WithFlow(flow domain.Flow) Option {
	return func(e *Editor) {
		e.flow = flow.Clone()
	}
}

// New creates an editor, empty unless WithFlow is given.
func New(opts ...Option) *Editor {
	e := &Editor{
		flow:         domain.NewFlow(nil, nil),
		listeners:    make(map[int]Listener),
		sched:        schedule.Real(),
		errorDisplay: DefaultErrorDisplay,
		logger:       logging.NewNop(),
	}
	for _, opt := range opts {
		opt(e)
	}
	if e.onSave == nil {
		e.onSave = e.logSave
	}
	return e
}

func (e *Editor) logSave(_ context.Context, flow domain.Flow) error {
	e.logger.Info("flow saved",
		"revision", flow.Revision,
		"nodes", len(flow.Nodes),
		"edges", len(flow.Edges),
	)
	return nil
}

// Flow returns the current revision.
func (e *Editor) Flow() domain.Flow {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.flow.Clone()
}

// Subscribe registers fn for future revisions and returns a function that
// removes it. Listeners run after the editor releases its lock, one delivery
// at a time, and always receive the newest revision: a listener never sees a
// revision older than one it was already given. Listeners must not edit the
// flow they are subscribed to.
func (e *Editor) Subscribe(fn Listener) (unsubscribe func()) {
	e.mu.Lock()
	defer e.mu.Unlock()

	id := e.nextListener
	e.nextListener++
	e.listeners[id] = fn

	return func() {
		e.mu.Lock()
		defer e.mu.Unlock()
		delete(e.listeners, id)
	}
}

// update applies fn to a copy of the current flow and, if fn succeeds,
// publishes the copy as the next revision.
func (e *Editor) update(fn func(f *domain.Flow) error) (domain.Flow, error) {
	e.mu.Lock()
	next := e.flow.Clone()
	if err := fn(&next); err != nil {
		e.mu.Unlock()
		return domain.Flow{}, err
	}
	next.Revision = e.flow.Revision + 1
	e.flow = next
	e.mu.Unlock()

	e.notify()
	return next.Clone(), nil
}

// notify hands the current revision to every listener. A concurrent edit
// that published a newer revision meanwhile is delivered here too, so
// deliveries never go backwards.
func (e *Editor) notify() {
	e.notifyMu.Lock()
	defer e.notifyMu.Unlock()

	e.mu.Lock()
	current := e.flow.Clone()
	listeners := make([]Listener, 0, len(e.listeners))
	for _, l := range e.listeners {
		listeners = append(listeners, l)
	}
	e.mu.Unlock()

	for _, l := range listeners {
		l(current.Clone())
	}
}

// AddNode creates a node of the given type with that type's default content.
// Ids have the form "<type>-<n>".
func (e *Editor) AddNode(t domain.NodeType, pos domain.Position) (domain.Node, error) {
	def, ok := domain.LookupNodeType(t)
	if !ok {
		return domain.Node{}, fmt.Errorf("%w: %q", domain.ErrUnknownNodeType, t)
	}
	if !def.Available {
		return domain.Node{}, fmt.Errorf("node type %q is not available yet", t)
	}

	var node domain.Node
	_, err := e.update(func(f *domain.Flow) error {
		node = domain.Node{
			ID:       e.nextNodeID(f, t),
			Type:     t,
			Position: pos,
			Data:     def.Defaults(),
		}
		f.Nodes = append(f.Nodes, node)
		return nil
	})
	if err != nil {
		return domain.Node{}, err
	}
	e.logger.Debug("node added", "node_id", node.ID, "type", t)
	return node, nil
}

func (e *Editor) nextNodeID(f *domain.Flow, t domain.NodeType) string {
	for {
		e.seq++
		id := string(t) + "-" + strconv.Itoa(e.seq)
		if _, taken := f.Node(id); !taken {
			return id
		}
	}
}

// Connect links source to target. An existing edge leaving the same
// (source, sourceHandle) is replaced.
func (e *Editor) Connect(source, sourceHandle, target, targetHandle string) (domain.Edge, error) {
	if source == target {
		return domain.Edge{}, fmt.Errorf("%w: %s", domain.ErrSelfConnection, source)
	}

	edge := domain.Edge{
		ID:           domain.EdgeID(source, target),
		Source:       source,
		SourceHandle: sourceHandle,
		Target:       target,
		TargetHandle: targetHandle,
	}
	_, err := e.update(func(f *domain.Flow) error {
		for _, id := range []string{source, target} {
			if _, ok := f.Node(id); !ok {
				return fmt.Errorf("%w: %s", domain.ErrNodeNotFound, id)
			}
		}

		kept := f.Edges[:0]
		for _, existing := range f.Edges {
			if existing.Key() == edge.Key() || existing.ID == edge.ID {
				continue
			}
			kept = append(kept, existing)
		}
		f.Edges = append(kept, edge)
		return nil
	})
	if err != nil {
		return domain.Edge{}, err
	}
	return edge, nil
}

// RemoveNode deletes a node and every edge touching it.
func (e *Editor) RemoveNode(id string) error {
	_, err := e.update(func(f *domain.Flow) error {
		idx := -1
		for i, n := range f.Nodes {
			if n.ID == id {
				idx = i
				break
			}
		}
		if idx < 0 {
			return fmt.Errorf("%w: %s", domain.ErrNodeNotFound, id)
		}
		f.Nodes = append(f.Nodes[:idx], f.Nodes[idx+1:]...)

		kept := f.Edges[:0]
		for _, edge := range f.Edges {
			if edge.Source != id && edge.Target != id {
				kept = append(kept, edge)
			}
		}
		f.Edges = kept
		return nil
	})
	return err
}

// RemoveEdge deletes a single edge.
func (e *Editor) RemoveEdge(id string) error {
	_, err := e.update(func(f *domain.Flow) error {
		for i, edge := range f.Edges {
			if edge.ID == id {
				f.Edges = append(f.Edges[:i], f.Edges[i+1:]...)
				return nil
			}
		}
		return fmt.Errorf("%w: %s", domain.ErrEdgeNotFound, id)
	})
	return err
}

// UpdateNodeData merges patch into the node's content. Keys absent from
// patch keep their value.
func (e *Editor) UpdateNodeData(id string, patch map[string]any) (domain.Node, error) {
	return e.updateNode(id, func(n *domain.Node) error {
		merged, err := domain.MergePayload(n.Data, patch)
		if err != nil {
			return err
		}
		n.Data = merged
		return nil
	})
}

// AddButton appends a quick reply named "Option N" to a quick-replies node.
func (e *Editor) AddButton(nodeID string) (domain.Node, error) {
	return e.updateNode(nodeID, func(n *domain.Node) error {
		qr, ok := n.Data.(domain.QuickRepliesPayload)
		if !ok {
			return fmt.Errorf("%w: %s", domain.ErrNoButtons, nodeID)
		}
		next := len(qr.Buttons) + 1
		qr.Buttons = append(qr.Buttons, domain.Button{
			ID:    uniqueButtonID(qr.Buttons, next),
			Text:  "Option " + strconv.Itoa(next),
			Value: "option" + strconv.Itoa(next),
		})
		n.Data = qr
		return nil
	})
}

// RemoveButton drops the quick reply at index.
func (e *Editor) RemoveButton(nodeID string, index int) (domain.Node, error) {
	return e.updateNode(nodeID, func(n *domain.Node) error {
		qr, ok := n.Data.(domain.QuickRepliesPayload)
		if !ok {
			return fmt.Errorf("%w: %s", domain.ErrNoButtons, nodeID)
		}
		if index < 0 || index >= len(qr.Buttons) {
			return fmt.Errorf("button index %d out of range for node %s", index, nodeID)
		}
		qr.Buttons = append(qr.Buttons[:index], qr.Buttons[index+1:]...)
		n.Data = qr
		return nil
	})
}

func uniqueButtonID(buttons []domain.Button, n int) string {
	taken := make(map[string]bool, len(buttons))
	for _, b := range buttons {
		taken[b.ID] = true
	}
	for {
		id := strconv.Itoa(n)
		if !taken[id] {
			return id
		}
		n++
	}
}

func (e *Editor) updateNode(id string, fn func(*domain.Node) error) (domain.Node, error) {
	var updated domain.Node
	_, err := e.update(func(f *domain.Flow) error {
		for i := range f.Nodes {
			if f.Nodes[i].ID != id {
				continue
			}
			if err := fn(&f.Nodes[i]); err != nil {
				return err
			}
			updated = f.Nodes[i].Clone()
			return nil
		}
		return fmt.Errorf("%w: %s", domain.ErrNodeNotFound, id)
	})
	return updated, err
}

// Replace swaps the whole graph, as when the canvas re-supplies a snapshot.
func (e *Editor) Replace(nodes []domain.Node, edges []domain.Edge) (domain.Flow, error) {
	return e.update(func(f *domain.Flow) error {
		seen := make(map[string]bool, len(nodes))
		for _, n := range nodes {
			if seen[n.ID] {
				return fmt.Errorf("%w: %s", domain.ErrDuplicateNode, n.ID)
			}
			seen[n.ID] = true
		}
		replaced := domain.NewFlow(nodes, edges)
		f.Nodes = replaced.Nodes
		f.Edges = replaced.Edges
		return nil
	})
}

// Validate runs the save gate against the current revision.
func (e *Editor) Validate() domain.ValidationResult {
	f := e.Flow()
	return validator.ValidateFlow(f.Nodes, f.Edges)
}

// Save validates the current revision and hands it to the save handler.
// An invalid flow yields a *domain.InvalidFlowTopologyError; its message is
// then available from SaveError until the display time elapses or a later
// save replaces it.
func (e *Editor) Save(ctx context.Context) error {
	e.mu.Lock()
	flow := e.flow.Clone()
	err := validator.Check(flow)
	if err != nil {
		e.showSaveError(validator.ValidateFlow(flow.Nodes, flow.Edges).Error)
		e.mu.Unlock()
		e.logger.Warn("save rejected", "revision", flow.Revision, "error", err)
		return err
	}
	e.clearSaveError()
	handler := e.onSave
	e.mu.Unlock()

	if err := handler(ctx, flow); err != nil {
		return fmt.Errorf("failed to save flow: %w", err)
	}
	return nil
}

// SaveError returns the message of the last rejected save while it is displayed.
func (e *Editor) SaveError() string {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.saveErr
}

// showSaveError must be called with e.mu held.
func (e *Editor) showSaveError(msg string) {
	e.clearSaveError()
	e.saveErr = msg
	seq := e.saveErrSeq
	e.saveErrTimer = e.sched.AfterFunc(e.errorDisplay, func() {
		e.mu.Lock()
		defer e.mu.Unlock()
		if e.saveErrSeq == seq {
			e.saveErr = ""
			e.saveErrTimer = nil
		}
	})
}

// clearSaveError must be called with e.mu held.
func (e *Editor) clearSaveError() {
	e.saveErrSeq++
	if e.saveErrTimer != nil {
		e.saveErrTimer.Stop()
		e.saveErrTimer = nil
	}
	e.saveErr = ""
}

// Close stops the save error timer.
func (e *Editor) Close() {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.clearSaveError()
}
