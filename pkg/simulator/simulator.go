package simulator

import (
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/aretw0/chatflow/internal/logging"
	"github.com/aretw0/chatflow/pkg/domain"
	"github.com/aretw0/chatflow/pkg/schedule"
	"github.com/google/uuid"
)

// Simulator is the preview state machine for one conversation.
// It is safe for concurrent use.
type Simulator struct {
	mu    sync.Mutex
	flow  domain.Flow
	state *domain.SimulationState

	// pending holds the emissions scheduled in the current generation.
	pending map[uint64]schedule.Timer
	seq     uint64

	sched     schedule.Scheduler
	delays    Delays
	hooks     domain.LifecycleHooks
	logger    *slog.Logger
	sessionID string
	newID     func() string
}

// New creates a Simulator for the flow and resets it, so the first bot
// message is already scheduled when New returns.
func New(flow domain.Flow, opts ...Option) *Simulator {
	s := &Simulator{
		flow:    flow.Clone(),
		pending: make(map[uint64]schedule.Timer),
		sched:   schedule.Real(),
		delays:  DefaultDelays,
		logger:  logging.NewNop(),
		newID:   uuid.NewString,
	}
	for _, opt := range opts {
		opt(s)
	}
	if s.sessionID != "" {
		s.logger = s.logger.With("session_id", s.sessionID)
	}
	s.state = domain.NewSimulationState(s.sessionID)

	s.Reset()
	return s
}

// notifications collects hook calls made under the lock so they can run
// after it is released.
type notifications []func()

func (n *notifications) add(fn func()) {
	*n = append(*n, fn)
}

func (s *Simulator) do(fn func(n *notifications)) {
	var n notifications
	s.mu.Lock()
	fn(&n)
	s.mu.Unlock()
	for _, call := range n {
		call()
	}
}

// Reset cancels every pending emission, clears the transcript and starts
// over from the first root node in insertion order.
func (s *Simulator) Reset() {
	s.do(s.reset)
}

func (s *Simulator) reset(n *notifications) {
	s.cancelPending()

	s.state.Generation++
	s.state.FlowRevision = s.flow.Revision
	s.state.Messages = []domain.ConversationMessage{}
	s.state.CurrentNodeID = ""

	ev := &domain.ResetEvent{
		EventBase:    s.event(domain.EventReset),
		Generation:   s.state.Generation,
		FlowRevision: s.flow.Revision,
	}

	roots := s.flow.Roots()
	if len(roots) > 0 {
		start := roots[0]
		s.state.CurrentNodeID = start.ID
		ev.StartNodeID = start.ID
		s.schedule(s.delays.Start, func(n *notifications) {
			s.emit(n, start)
		})
	}
	s.refreshStatus()

	s.logger.Debug("simulation reset",
		"generation", s.state.Generation,
		"flow_revision", s.flow.Revision,
		"start_node", ev.StartNodeID,
	)
	if s.hooks.OnReset != nil {
		hook := s.hooks.OnReset
		n.add(func() { hook(ev) })
	}
}

// SetFlow replaces the flow being previewed and resets the conversation.
// A flow with a lower revision than the one being previewed is ignored.
func (s *Simulator) SetFlow(flow domain.Flow) {
	s.do(func(n *notifications) {
		if flow.Revision < s.flow.Revision {
			s.logger.Debug("stale flow ignored",
				"flow_revision", flow.Revision,
				"current_revision", s.flow.Revision,
			)
			return
		}
		s.flow = flow.Clone()
		s.reset(n)
	})
}

// Flow returns the flow being previewed.
func (s *Simulator) Flow() domain.Flow {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.flow.Clone()
}

// SimulateMessage renders a node as bot messages: its label (or the default
// greeting) right away and, for quick replies, a buttons instruction after
// the buttons delay. It does not move the current node.
func (s *Simulator) SimulateMessage(node domain.Node) {
	s.do(func(n *notifications) {
		s.emit(n, node.Clone())
		s.refreshStatus()
	})
}

// HandleSendMessage records typed user input and advances the conversation.
// Input that is blank after trimming is ignored.
func (s *Simulator) HandleSendMessage(text string) {
	if strings.TrimSpace(text) == "" {
		return
	}
	s.do(func(n *notifications) {
		s.input(n, text)
	})
}

// HandleButtonClick records a quick-reply click and advances the conversation.
// The button chosen does not affect which edge is followed.
func (s *Simulator) HandleButtonClick(buttonText string) {
	s.do(func(n *notifications) {
		s.input(n, buttonText)
	})
}

func (s *Simulator) input(n *notifications, text string) {
	s.appendMessage(n, domain.ConversationMessage{
		Sender:  domain.SenderUser,
		Content: text,
	})
	s.advance(n)
	s.refreshStatus()
}

// advance schedules the move along the first outgoing edge of the current node.
func (s *Simulator) advance(n *notifications) {
	current := s.state.CurrentNodeID
	if current == "" {
		return
	}

	edge, ok := s.flow.FirstOutgoing(current)
	if !ok {
		s.logger.Debug("conversation reached terminal node", "node_id", current)
		return
	}

	next, ok := s.flow.Node(edge.Target)
	if !ok {
		s.logger.Debug("edge points at missing node",
			"edge_id", edge.ID,
			"target", edge.Target,
		)
		return
	}

	s.schedule(s.delays.Advance, func(n *notifications) {
		s.state.CurrentNodeID = next.ID
		s.emit(n, next)
	})
}

// emit appends the bot messages for node. Callers must hold s.mu.
func (s *Simulator) emit(n *notifications, node domain.Node) {
	if s.hooks.OnNodeEnter != nil {
		hook := s.hooks.OnNodeEnter
		ev := &domain.NodeEvent{EventBase: s.event(domain.EventNodeEnter), NodeID: node.ID, NodeType: node.Type}
		n.add(func() { hook(ev) })
	}

	content := node.Label()
	if content == "" {
		content = domain.DefaultGreeting
	}
	s.appendMessage(n, domain.ConversationMessage{
		Sender:  domain.SenderBot,
		Content: content,
		NodeID:  node.ID,
	})

	// A quick-replies node whose button list was never set has nothing to render.
	if node.Type == domain.NodeTypeQuickReplies && node.Buttons() != nil {
		s.schedule(s.delays.Buttons, func(n *notifications) {
			s.appendMessage(n, domain.ConversationMessage{
				Sender:  domain.SenderBot,
				Content: domain.ButtonsContent,
				NodeID:  node.ID,
			})
		})
	}

	if !s.flow.HasOutgoing(node.ID) && s.hooks.OnTerminal != nil {
		hook := s.hooks.OnTerminal
		ev := &domain.NodeEvent{EventBase: s.event(domain.EventTerminal), NodeID: node.ID, NodeType: node.Type}
		n.add(func() { hook(ev) })
	}
}

func (s *Simulator) appendMessage(n *notifications, msg domain.ConversationMessage) {
	msg.ID = s.newID()
	msg.Timestamp = s.sched.Now()
	s.state.Messages = append(s.state.Messages, msg)

	if s.hooks.OnMessage != nil {
		hook := s.hooks.OnMessage
		ev := &domain.MessageEvent{EventBase: s.event(domain.EventMessage), Message: msg}
		n.add(func() { hook(ev) })
	}
}

// schedule runs fn after d unless the simulator is reset first.
// Callers must hold s.mu.
func (s *Simulator) schedule(d time.Duration, fn func(n *notifications)) {
	s.seq++
	id := s.seq
	gen := s.state.Generation

	s.pending[id] = s.sched.AfterFunc(d, func() {
		s.do(func(n *notifications) {
			if _, ok := s.pending[id]; !ok {
				return
			}
			delete(s.pending, id)
			if gen != s.state.Generation {
				s.logger.Debug("dropping stale emission", "generation", gen)
				return
			}
			fn(n)
			s.refreshStatus()
		})
	})
}

func (s *Simulator) cancelPending() {
	for id, t := range s.pending {
		t.Stop()
		delete(s.pending, id)
	}
}

func (s *Simulator) refreshStatus() {
	switch {
	case len(s.pending) > 0:
		s.state.Status = domain.StatusAdvancing
	case s.state.CurrentNodeID != "":
		s.state.Status = domain.StatusAwaitingInput
	default:
		s.state.Status = domain.StatusIdle
	}
}

func (s *Simulator) event(t domain.EventType) domain.EventBase {
	return domain.EventBase{Timestamp: s.sched.Now(), Type: t, SessionID: s.sessionID}
}

// Close cancels every pending emission. The transcript is kept.
func (s *Simulator) Close() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.cancelPending()
	s.refreshStatus()
}

// Snapshot returns a copy of the conversation state.
func (s *Simulator) Snapshot() *domain.SimulationState {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state.Snapshot()
}

// Messages returns a copy of the transcript.
func (s *Simulator) Messages() []domain.ConversationMessage {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]domain.ConversationMessage{}, s.state.Messages...)
}

// CurrentNode returns the node the conversation is positioned on.
func (s *Simulator) CurrentNode() (domain.Node, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.state.CurrentNodeID == "" {
		return domain.Node{}, false
	}
	return s.flow.Node(s.state.CurrentNodeID)
}

// LastIsButtons reports whether the latest bot message asks the UI to render buttons.
func (s *Simulator) LastIsButtons() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state.AwaitingButtons()
}

// Buttons returns the quick replies a buttons instruction refers to.
// It returns nil for ordinary messages and for nodes no longer in the flow.
func (s *Simulator) Buttons(msg domain.ConversationMessage) []domain.Button {
	if !msg.IsButtons() {
		return nil
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	node, ok := s.flow.Node(msg.NodeID)
	if !ok {
		return nil
	}
	return append([]domain.Button(nil), node.Buttons()...)
}

// Pending returns the number of scheduled emissions.
func (s *Simulator) Pending() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.pending)
}
