package chatflow

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"sort"
	"sync"

	"github.com/aretw0/chatflow/internal/logging"
	"github.com/aretw0/chatflow/internal/metrics"
	"github.com/aretw0/chatflow/pkg/adapters/memory"
	"github.com/aretw0/chatflow/pkg/domain"
	"github.com/aretw0/chatflow/pkg/editor"
	"github.com/aretw0/chatflow/pkg/ports"
	"github.com/aretw0/chatflow/pkg/schedule"
	"github.com/aretw0/chatflow/pkg/session"
	"github.com/aretw0/chatflow/pkg/simulator"
)

// FlowSaver receives every flow that passes validation on Save.
type FlowSaver func(ctx context.Context, id string, flow domain.Flow) error

// Studio is the high-level entry point of the library.
// It keeps one editor per open flow and runs previews of those flows,
// restarting them whenever their flow changes.
type Studio struct {
	mu      sync.RWMutex
	editors map[string]*openFlow

	watchMu  sync.RWMutex
	watchers map[int]session.Observer
	nextW    int

	loader   ports.FlowLoader
	store    ports.SessionStore
	locker   ports.DistributedLocker
	saver    FlowSaver
	sched    schedule.Scheduler
	delays   simulator.Delays
	hooks    domain.LifecycleHooks
	logger   *slog.Logger
	sessions *session.Manager
	metrics  *metrics.Metrics
}

type openFlow struct {
	editor *editor.Editor
	unsub  func()
}

// Option defines a functional option for configuring the Studio.
type Option func(*Studio)

// WithLoader sets the library new flows are opened from.
func WithLoader(l ports.FlowLoader) Option {
	return func(s *Studio) {
		s.loader = l
	}
}

// WithSessionStore sets where preview snapshots are kept (default: in memory).
func WithSessionStore(store ports.SessionStore) Option {
	return func(s *Studio) {
		s.store = store
	}
}

// WithLocker enables distributed locking of preview sessions.
func WithLocker(l ports.DistributedLocker) Option {
	return func(s *Studio) {
		s.locker = l
	}
}

// WithSaver sets where valid flows go on Save. The default only logs.
func WithSaver(fn FlowSaver) Option {
	return func(s *Studio) {
		s.saver = fn
	}
}

// WithScheduler replaces the wall clock used by editors and previews.
func WithScheduler(sched schedule.Scheduler) Option {
	return func(s *Studio) {
		s.sched = sched
	}
}

// WithDelays overrides the preview pacing.
func WithDelays(d simulator.Delays) Option {
	return func(s *Studio) {
		s.delays = d
	}
}

// WithLifecycleHooks registers observability hooks on every preview.
func WithLifecycleHooks(hooks domain.LifecycleHooks) Option {
	return func(s *Studio) {
		s.hooks = hooks
	}
}

// WithLogger sets a custom structured logger.
func WithLogger(logger *slog.Logger) Option {
	return func(s *Studio) {
		s.logger = logger
	}
}

// New initializes a Studio with no open flows.
func New(opts ...Option) *Studio {
	s := &Studio{
		editors:  make(map[string]*openFlow),
		watchers: make(map[int]session.Observer),
		sched:    schedule.Real(),
		delays:   simulator.DefaultDelays,
		logger:   logging.NewNop(),
		metrics:  metrics.New(),
	}
	for _, opt := range opts {
		opt(s)
	}
	if s.store == nil {
		s.store = memory.NewStore()
	}

	sessOpts := []session.Option{
		session.WithLogger(s.logger),
		session.WithLifecycleHooks(simulator.ChainHooks(s.metrics.Hooks(), s.hooks)),
		session.WithObserver(s.broadcast),
		session.WithSimulatorOptions(
			simulator.WithScheduler(s.sched),
			simulator.WithDelays(s.delays),
		),
	}
	if s.locker != nil {
		sessOpts = append(sessOpts, session.WithLocker(s.locker))
	}
	s.sessions = session.NewManager(s.store, sessOpts...)
	s.metrics.TrackActiveSessions(s.sessions.Active)
	return s
}

// Create opens a new flow under id.
func (s *Studio) Create(id string, flow domain.Flow) (*editor.Editor, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.editors[id]; ok {
		return nil, fmt.Errorf("%w: %s", domain.ErrFlowExists, id)
	}
	return s.open(id, flow), nil
}

// Editor returns the editor of an open flow, opening it from the loader if needed.
func (s *Studio) Editor(ctx context.Context, id string) (*editor.Editor, error) {
	s.mu.RLock()
	of, ok := s.editors[id]
	s.mu.RUnlock()
	if ok {
		return of.editor, nil
	}
	if s.loader == nil {
		return nil, fmt.Errorf("%w: %s", domain.ErrFlowNotFound, id)
	}

	flow, err := s.loader.GetFlow(ctx, id)
	if err != nil {
		return nil, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	// Another request may have opened it meanwhile.
	if of, ok := s.editors[id]; ok {
		return of.editor, nil
	}
	return s.open(id, flow), nil
}

// open must be called with s.mu held.
func (s *Studio) open(id string, flow domain.Flow) *editor.Editor {
	opts := []editor.Option{
		editor.WithFlow(flow),
		editor.WithScheduler(s.sched),
		editor.WithLogger(s.logger.With("flow_id", id)),
	}
	if s.saver != nil {
		opts = append(opts, editor.WithSaveHandler(func(ctx context.Context, f domain.Flow) error {
			return s.saver(ctx, id, f)
		}))
	}
	ed := editor.New(opts...)
	unsub := ed.Subscribe(func(f domain.Flow) {
		n, err := s.sessions.Rebind(context.Background(), id, f)
		if err != nil {
			s.logger.Error("failed to restart previews", "flow_id", id, "error", err)
			return
		}
		if n > 0 {
			s.logger.Debug("previews restarted", "flow_id", id, "revision", f.Revision, "sessions", n)
		}
	})
	s.editors[id] = &openFlow{editor: ed, unsub: unsub}
	s.logger.Info("flow opened", "flow_id", id, "nodes", len(flow.Nodes))
	return ed
}

// Remove closes an open flow. Its previews keep the last revision they saw.
func (s *Studio) Remove(id string) error {
	s.mu.Lock()
	of, ok := s.editors[id]
	delete(s.editors, id)
	s.mu.Unlock()
	if !ok {
		return fmt.Errorf("%w: %s", domain.ErrFlowNotFound, id)
	}
	of.unsub()
	of.editor.Close()
	return nil
}

// List returns the ids of open flows and of flows in the library.
func (s *Studio) List(ctx context.Context) ([]string, error) {
	seen := make(map[string]bool)
	s.mu.RLock()
	for id := range s.editors {
		seen[id] = true
	}
	s.mu.RUnlock()

	if s.loader != nil {
		ids, err := s.loader.ListFlows(ctx)
		if err != nil {
			return nil, err
		}
		for _, id := range ids {
			seen[id] = true
		}
	}

	out := make([]string, 0, len(seen))
	for id := range seen {
		out = append(out, id)
	}
	sort.Strings(out)
	return out, nil
}

// Validate runs the save gate against the current revision of a flow.
func (s *Studio) Validate(ctx context.Context, id string) (domain.ValidationResult, error) {
	ed, err := s.Editor(ctx, id)
	if err != nil {
		return domain.ValidationResult{}, err
	}
	res := ed.Validate()
	s.metrics.ObserveValidation(res)
	return res, nil
}

// Save validates a flow and hands it to the saver.
func (s *Studio) Save(ctx context.Context, id string) error {
	ed, err := s.Editor(ctx, id)
	if err != nil {
		return err
	}
	err = ed.Save(ctx)
	s.metrics.ObserveSave(err)
	return err
}

// Preview starts a conversation over the current revision of a flow.
func (s *Studio) Preview(ctx context.Context, id string) (string, *domain.SimulationState, error) {
	ed, err := s.Editor(ctx, id)
	if err != nil {
		return "", nil, err
	}
	flow := ed.Flow()
	sid, state, err := s.sessions.Start(ctx, id, flow)
	if err != nil {
		return "", nil, err
	}
	// Edits made before the session was registered never reached Rebind.
	if current := ed.Flow(); current.Revision != flow.Revision {
		state, err = s.sessions.SetFlow(ctx, sid, current)
		if err != nil {
			return "", nil, err
		}
	}
	return sid, state, nil
}

// Sessions exposes the preview session manager.
func (s *Studio) Sessions() *session.Manager {
	return s.sessions
}

// Watch registers fn for every preview snapshot and returns a function that removes it.
func (s *Studio) Watch(fn session.Observer) (unwatch func()) {
	s.watchMu.Lock()
	defer s.watchMu.Unlock()
	id := s.nextW
	s.nextW++
	s.watchers[id] = fn
	return func() {
		s.watchMu.Lock()
		defer s.watchMu.Unlock()
		delete(s.watchers, id)
	}
}

func (s *Studio) broadcast(sessionID string, state *domain.SimulationState) {
	s.watchMu.RLock()
	defer s.watchMu.RUnlock()
	for _, fn := range s.watchers {
		fn(sessionID, state)
	}
}

// MetricsHandler serves the Prometheus collectors of this Studio.
func (s *Studio) MetricsHandler() http.Handler {
	return s.metrics.Handler()
}

// Close stops every preview and closes every open flow.
func (s *Studio) Close() {
	s.sessions.Shutdown()

	s.mu.Lock()
	editors := s.editors
	s.editors = make(map[string]*openFlow)
	s.mu.Unlock()

	for _, of := range editors {
		of.unsub()
		of.editor.Close()
	}
}
