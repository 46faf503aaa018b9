package session

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"sync"
	"time"

	"github.com/aretw0/chatflow/internal/logging"
	"github.com/aretw0/chatflow/pkg/domain"
	"github.com/aretw0/chatflow/pkg/ports"
	"github.com/aretw0/chatflow/pkg/simulator"
	"github.com/google/uuid"
)

// lockEntry holds the mutex and the reference count.
type lockEntry struct {
	mu   sync.Mutex
	refs int
}

// preview is a live simulator bound to the flow it was started from.
type preview struct {
	flowID string
	sim    *simulator.Simulator

	// persistMu orders snapshot writes so the store always ends with the newest one.
	persistMu sync.Mutex
	closed    bool
}

// Observer is notified with every snapshot written to the store.
type Observer func(sessionID string, state *domain.SimulationState)

// Manager orchestrates preview sessions, ensuring safe concurrent operations.
// It uses Reference Counting to garbage collect unused locks.
type Manager struct {
	store ports.SessionStore

	mu    sync.Mutex            // Global lock for the map
	locks map[string]*lockEntry // Map of active locks

	previewsMu sync.RWMutex
	previews   map[string]*preview

	locker    ports.DistributedLocker // Optional distributed locker
	lockTTL   time.Duration
	logger    *slog.Logger
	hooks     domain.LifecycleHooks
	observers []Observer
	simOpts   []simulator.Option
	newID     func() string
}

// Option configures the Manager.
type Option func(*Manager)

// WithLocker enables distributed locking.
func WithLocker(locker ports.DistributedLocker) Option {
	return func(m *Manager) {
		m.locker = locker
	}
}

// WithLockTTL sets the lease of distributed locks (30s by default).
func WithLockTTL(ttl time.Duration) Option {
	return func(m *Manager) {
		m.lockTTL = ttl
	}
}

// WithLogger configures a logger for the Manager.
func WithLogger(logger *slog.Logger) Option {
	return func(m *Manager) {
		m.logger = logger
	}
}

// WithLifecycleHooks adds hooks to every simulator the Manager starts.
func WithLifecycleHooks(hooks domain.LifecycleHooks) Option {
	return func(m *Manager) {
		m.hooks = simulator.ChainHooks(m.hooks, hooks)
	}
}

// WithObserver registers a callback for every persisted snapshot.
func WithObserver(o Observer) Option {
	return func(m *Manager) {
		m.observers = append(m.observers, o)
	}
}

// WithSimulatorOptions passes options (scheduler, delays) to every simulator.
func WithSimulatorOptions(opts ...simulator.Option) Option {
	return func(m *Manager) {
		m.simOpts = append(m.simOpts, opts...)
	}
}

// WithIDGenerator replaces the session id generator (UUIDs by default).
func WithIDGenerator(fn func() string) Option {
	return func(m *Manager) {
		m.newID = fn
	}
}

// NewManager creates a new session Manager with the given snapshot store.
func NewManager(store ports.SessionStore, opts ...Option) *Manager {
	m := &Manager{
		store:    store,
		locks:    make(map[string]*lockEntry),
		previews: make(map[string]*preview),
		lockTTL:  30 * time.Second,
		logger:   logging.NewNop(), // Default to no-op
		newID:    uuid.NewString,
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// acquire gets or creates a lock entry and increments its reference count.
// The caller MUST Lock the entry.mu, and then call release(sessionID) after unlocking.
func (m *Manager) acquire(sessionID string) *lockEntry {
	m.mu.Lock()
	defer m.mu.Unlock()

	entry, exists := m.locks[sessionID]
	if !exists {
		entry = &lockEntry{}
		m.locks[sessionID] = entry
	}
	entry.refs++
	return entry
}

// release decrements the reference count and deletes the entry if it reaches zero.
func (m *Manager) release(sessionID string) {
	m.mu.Lock()
	defer m.mu.Unlock()

	entry, exists := m.locks[sessionID]
	if !exists {
		return
	}

	entry.refs--
	if entry.refs <= 0 {
		delete(m.locks, sessionID)
	}
}

// WithLock executes a function while holding the lock for the session.
func (m *Manager) WithLock(ctx context.Context, sessionID string, fn func(context.Context) error) error {
	entry := m.acquire(sessionID)
	entry.mu.Lock()
	defer func() {
		entry.mu.Unlock()
		m.release(sessionID)
	}()

	if m.locker != nil {
		unlock, err := m.locker.Lock(ctx, sessionID, m.lockTTL)
		if err != nil {
			return fmt.Errorf("failed to acquire distributed lock: %w", err)
		}
		defer func() {
			if err := unlock(ctx); err != nil {
				m.logger.Warn("Failed to release distributed lock (will expire via TTL)",
					"session_id", sessionID,
					"err", err,
				)
			}
		}()
	}

	return fn(ctx)
}

// Start opens a preview of flow and returns its session id and first snapshot.
// The flow id is remembered so Rebind can reach the session later.
func (m *Manager) Start(ctx context.Context, flowID string, flow domain.Flow) (string, *domain.SimulationState, error) {
	sessionID := m.newID()
	var state *domain.SimulationState

	err := m.WithLock(ctx, sessionID, func(ctx context.Context) error {
		p := &preview{flowID: flowID}
		opts := append([]simulator.Option{
			simulator.WithSessionID(sessionID),
			simulator.WithLogger(m.logger),
			simulator.WithLifecycleHooks(simulator.ChainHooks(m.hooks, m.persistHooks(sessionID))),
		}, m.simOpts...)
		p.sim = simulator.New(flow, opts...)

		m.previewsMu.Lock()
		m.previews[sessionID] = p
		m.previewsMu.Unlock()

		var err error
		state, err = m.persist(ctx, sessionID, p)
		if err != nil {
			m.drop(sessionID)
			return fmt.Errorf("failed to initialize session: %w", err)
		}
		return nil
	})
	if err != nil {
		return "", nil, err
	}

	m.logger.Info("preview started", "session_id", sessionID, "flow_id", flowID)
	return sessionID, state, nil
}

// persistHooks writes a snapshot whenever the simulator changes on its own
// (scheduled bot messages and resets).
func (m *Manager) persistHooks(sessionID string) domain.LifecycleHooks {
	save := func() {
		p, ok := m.get(sessionID)
		if !ok {
			return
		}
		if _, err := m.persist(context.Background(), sessionID, p); err != nil {
			m.logger.Error("failed to persist preview snapshot", "session_id", sessionID, "error", err)
		}
	}
	return domain.LifecycleHooks{
		OnMessage: func(*domain.MessageEvent) { save() },
		OnReset:   func(*domain.ResetEvent) { save() },
	}
}

func (m *Manager) persist(ctx context.Context, sessionID string, p *preview) (*domain.SimulationState, error) {
	p.persistMu.Lock()
	defer p.persistMu.Unlock()

	state := p.sim.Snapshot()
	if p.closed {
		return state, nil
	}
	if err := m.store.Save(ctx, sessionID, state); err != nil {
		return nil, err
	}
	for _, o := range m.observers {
		o(sessionID, state.Snapshot())
	}
	return state, nil
}

func (m *Manager) get(sessionID string) (*preview, bool) {
	m.previewsMu.RLock()
	defer m.previewsMu.RUnlock()
	p, ok := m.previews[sessionID]
	return p, ok
}

func (m *Manager) drop(sessionID string) {
	m.previewsMu.Lock()
	p, ok := m.previews[sessionID]
	delete(m.previews, sessionID)
	m.previewsMu.Unlock()
	if ok {
		p.sim.Close()
	}
}

// command runs fn against a live session and persists the result.
func (m *Manager) command(ctx context.Context, sessionID string, fn func(*simulator.Simulator)) (*domain.SimulationState, error) {
	var state *domain.SimulationState
	err := m.WithLock(ctx, sessionID, func(ctx context.Context) error {
		p, ok := m.get(sessionID)
		if !ok {
			return fmt.Errorf("%w: %s", domain.ErrSessionNotFound, sessionID)
		}
		fn(p.sim)

		var err error
		state, err = m.persist(ctx, sessionID, p)
		return err
	})
	return state, err
}

// Send feeds typed user input into the session.
func (m *Manager) Send(ctx context.Context, sessionID, text string) (*domain.SimulationState, error) {
	return m.command(ctx, sessionID, func(s *simulator.Simulator) { s.HandleSendMessage(text) })
}

// Click feeds a quick-reply click into the session.
func (m *Manager) Click(ctx context.Context, sessionID, buttonText string) (*domain.SimulationState, error) {
	return m.command(ctx, sessionID, func(s *simulator.Simulator) { s.HandleButtonClick(buttonText) })
}

// Reset restarts the session's conversation.
func (m *Manager) Reset(ctx context.Context, sessionID string) (*domain.SimulationState, error) {
	return m.command(ctx, sessionID, func(s *simulator.Simulator) { s.Reset() })
}

// SetFlow pushes a revision of its flow into one session and restarts its
// conversation. Revisions older than the one the session runs are ignored.
func (m *Manager) SetFlow(ctx context.Context, sessionID string, flow domain.Flow) (*domain.SimulationState, error) {
	return m.command(ctx, sessionID, func(s *simulator.Simulator) { s.SetFlow(flow) })
}

// Rebind pushes a new revision of a flow into every session started from it.
// Each of those conversations restarts. It returns the number of sessions reset.
func (m *Manager) Rebind(ctx context.Context, flowID string, flow domain.Flow) (int, error) {
	m.previewsMu.RLock()
	var ids []string
	for id, p := range m.previews {
		if p.flowID == flowID {
			ids = append(ids, id)
		}
	}
	m.previewsMu.RUnlock()
	sort.Strings(ids)

	for _, id := range ids {
		_, err := m.command(ctx, id, func(s *simulator.Simulator) { s.SetFlow(flow) })
		if err != nil {
			return 0, fmt.Errorf("failed to rebind session %s: %w", id, err)
		}
	}
	return len(ids), nil
}

// Load returns the last persisted snapshot of a session.
func (m *Manager) Load(ctx context.Context, sessionID string) (*domain.SimulationState, error) {
	return m.store.Load(ctx, sessionID)
}

// Buttons resolves the quick replies a buttons instruction of the session refers to.
func (m *Manager) Buttons(sessionID string, msg domain.ConversationMessage) ([]domain.Button, error) {
	p, ok := m.get(sessionID)
	if !ok {
		return nil, fmt.Errorf("%w: %s", domain.ErrSessionNotFound, sessionID)
	}
	return p.sim.Buttons(msg), nil
}

// Close stops a session and removes its snapshot.
func (m *Manager) Close(ctx context.Context, sessionID string) error {
	return m.WithLock(ctx, sessionID, func(ctx context.Context) error {
		p, ok := m.get(sessionID)
		if !ok {
			return fmt.Errorf("%w: %s", domain.ErrSessionNotFound, sessionID)
		}
		m.drop(sessionID)

		p.persistMu.Lock()
		defer p.persistMu.Unlock()
		p.closed = true
		return m.store.Delete(ctx, sessionID)
	})
}

// Shutdown stops every live session. Snapshots stay in the store.
func (m *Manager) Shutdown() {
	m.previewsMu.Lock()
	previews := m.previews
	m.previews = make(map[string]*preview)
	m.previewsMu.Unlock()

	for _, p := range previews {
		p.sim.Close()
	}
}

// List delegates to the store.
func (m *Manager) List(ctx context.Context) ([]string, error) {
	return m.store.List(ctx)
}

// Active returns the number of live sessions in this process.
func (m *Manager) Active() int {
	m.previewsMu.RLock()
	defer m.previewsMu.RUnlock()
	return len(m.previews)
}

// Store returns the underlying snapshot store.
func (m *Manager) Store() ports.SessionStore {
	return m.store
}
