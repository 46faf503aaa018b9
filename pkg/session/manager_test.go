package session_test

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/aretw0/chatflow/pkg/adapters/memory"
	"github.com/aretw0/chatflow/pkg/domain"
	"github.com/aretw0/chatflow/pkg/ports"
	"github.com/aretw0/chatflow/pkg/schedule"
	"github.com/aretw0/chatflow/pkg/session"
	"github.com/aretw0/chatflow/pkg/simulator"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var epoch = time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)

func twoStepFlow() domain.Flow {
	return domain.NewFlow(
		[]domain.Node{
			{ID: "a", Type: domain.NodeTypeMessage, Data: domain.MessagePayload{Label: "Pick one"}},
			{ID: "b", Type: domain.NodeTypeQuickReplies, Data: domain.QuickRepliesPayload{
				Label:   "Well?",
				Buttons: []domain.Button{{ID: "1", Text: "Yes", Value: "yes"}},
			}},
		},
		[]domain.Edge{{ID: "a-b", Source: "a", Target: "b"}},
	)
}

func sequence(prefix string) func() string {
	var mu sync.Mutex
	n := 0
	return func() string {
		mu.Lock()
		defer mu.Unlock()
		n++
		return fmt.Sprintf("%s-%d", prefix, n)
	}
}

func newManager(t *testing.T, opts ...session.Option) (*session.Manager, *schedule.Manual, *memory.Store) {
	t.Helper()
	clock := schedule.NewManual(epoch)
	store := memory.NewStore()
	m := session.NewManager(store, append([]session.Option{
		session.WithSimulatorOptions(simulator.WithScheduler(clock)),
		session.WithIDGenerator(sequence("s")),
	}, opts...)...)
	t.Cleanup(m.Shutdown)
	return m, clock, store
}

func TestManager_Conversation(t *testing.T) {
	m, clock, store := newManager(t)
	ctx := context.Background()

	sid, state, err := m.Start(ctx, "welcome", twoStepFlow())
	require.NoError(t, err)
	assert.Equal(t, "s-1", sid)
	assert.Empty(t, state.Messages)
	assert.Equal(t, "a", state.CurrentNodeID)

	// Scheduled bot messages are persisted without any command.
	clock.Advance(500 * time.Millisecond)
	stored, err := store.Load(ctx, sid)
	require.NoError(t, err)
	require.Len(t, stored.Messages, 1)
	assert.Equal(t, "Pick one", stored.Messages[0].Content)

	state, err = m.Send(ctx, sid, "hello")
	require.NoError(t, err)
	assert.Len(t, state.Messages, 2)
	assert.Equal(t, domain.StatusAdvancing, state.Status)

	clock.RunAll()
	state, err = m.Load(ctx, sid)
	require.NoError(t, err)
	require.Len(t, state.Messages, 4)
	assert.True(t, state.AwaitingButtons())

	buttons, err := m.Buttons(sid, state.Messages[3])
	require.NoError(t, err)
	assert.Equal(t, "Yes", buttons[0].Text)

	state, err = m.Click(ctx, sid, "Yes")
	require.NoError(t, err)
	assert.Len(t, state.Messages, 5)

	state, err = m.Reset(ctx, sid)
	require.NoError(t, err)
	assert.Empty(t, state.Messages)
	assert.Equal(t, uint64(2), state.Generation)
}

func TestManager_UnknownSession(t *testing.T) {
	m, _, _ := newManager(t)
	ctx := context.Background()

	_, err := m.Send(ctx, "missing", "hi")
	assert.ErrorIs(t, err, domain.ErrSessionNotFound)
	_, err = m.Buttons("missing", domain.ConversationMessage{})
	assert.ErrorIs(t, err, domain.ErrSessionNotFound)
	assert.ErrorIs(t, m.Close(ctx, "missing"), domain.ErrSessionNotFound)
}

func TestManager_Rebind(t *testing.T) {
	m, clock, _ := newManager(t)
	ctx := context.Background()

	s1, _, err := m.Start(ctx, "welcome", twoStepFlow())
	require.NoError(t, err)
	s2, _, err := m.Start(ctx, "other", twoStepFlow())
	require.NoError(t, err)
	clock.RunAll()

	updated := domain.NewFlow([]domain.Node{{ID: "z", Type: domain.NodeTypeMessage, Data: domain.MessagePayload{Label: "New start"}}}, nil)
	n, err := m.Rebind(ctx, "welcome", updated)
	require.NoError(t, err)
	assert.Equal(t, 1, n)
	clock.RunAll()

	st1, _ := m.Load(ctx, s1)
	st2, _ := m.Load(ctx, s2)
	assert.Equal(t, "New start", st1.Messages[0].Content)
	assert.Equal(t, "Pick one", st2.Messages[0].Content)
}

func TestManager_CloseStopsSession(t *testing.T) {
	m, clock, store := newManager(t)
	ctx := context.Background()

	sid, _, err := m.Start(ctx, "welcome", twoStepFlow())
	require.NoError(t, err)
	assert.Equal(t, 1, m.Active())

	require.NoError(t, m.Close(ctx, sid))
	assert.Equal(t, 0, m.Active())
	assert.Equal(t, 0, clock.Pending(), "pending emissions are cancelled")

	_, err = store.Load(ctx, sid)
	assert.ErrorIs(t, err, domain.ErrSessionNotFound)
}

func TestManager_ObserverAndHooks(t *testing.T) {
	var (
		mu        sync.Mutex
		snapshots []int
		messages  int
	)
	m, clock, _ := newManager(t,
		session.WithObserver(func(_ string, s *domain.SimulationState) {
			mu.Lock()
			defer mu.Unlock()
			snapshots = append(snapshots, len(s.Messages))
		}),
		session.WithLifecycleHooks(domain.LifecycleHooks{
			OnMessage: func(*domain.MessageEvent) {
				mu.Lock()
				defer mu.Unlock()
				messages++
			},
		}),
	)
	ctx := context.Background()

	sid, _, err := m.Start(ctx, "welcome", twoStepFlow())
	require.NoError(t, err)
	clock.RunAll()
	_, err = m.Send(ctx, sid, "go")
	require.NoError(t, err)

	mu.Lock()
	defer mu.Unlock()
	assert.Equal(t, 2, messages)
	// start, bot message, user message hook, send command
	assert.Equal(t, []int{0, 1, 2, 2}, snapshots)
}

type failingStore struct{ *memory.Store }

func (failingStore) Save(context.Context, string, *domain.SimulationState) error {
	return errors.New("store down")
}

func TestManager_StartFailsWhenStoreFails(t *testing.T) {
	m := session.NewManager(failingStore{memory.NewStore()},
		session.WithSimulatorOptions(simulator.WithScheduler(schedule.NewManual(epoch))))

	_, _, err := m.Start(context.Background(), "welcome", twoStepFlow())
	require.Error(t, err)
	assert.Equal(t, 0, m.Active())
}

// lockRecorder counts distributed lock calls.
type lockRecorder struct {
	mu    sync.Mutex
	locks int
}

func (l *lockRecorder) Lock(ctx context.Context, key string, ttl time.Duration) (ports.UnlockFunc, error) {
	l.mu.Lock()
	l.locks++
	l.mu.Unlock()
	return func(context.Context) error { return nil }, nil
}

func TestManager_UsesDistributedLocker(t *testing.T) {
	locker := &lockRecorder{}
	m, _, _ := newManager(t, session.WithLocker(locker))
	ctx := context.Background()

	sid, _, err := m.Start(ctx, "welcome", twoStepFlow())
	require.NoError(t, err)
	_, err = m.Send(ctx, sid, "hi")
	require.NoError(t, err)

	locker.mu.Lock()
	defer locker.mu.Unlock()
	assert.Equal(t, 2, locker.locks)
}

func TestManager_ConcurrentCommands(t *testing.T) {
	m, clock, _ := newManager(t)
	ctx := context.Background()
	sid, _, err := m.Start(ctx, "welcome", twoStepFlow())
	require.NoError(t, err)
	clock.RunAll()

	var wg sync.WaitGroup
	for i := 0; i < 10; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, err := m.Send(ctx, sid, fmt.Sprintf("msg %d", i))
			assert.NoError(t, err)
		}(i)
	}
	wg.Wait()

	state, err := m.Load(ctx, sid)
	require.NoError(t, err)
	assert.Len(t, state.Messages, 11, "every command lands in the last snapshot")
}
