package chatflow_test

import (
	"context"
	"errors"
	"net/http/httptest"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/aretw0/chatflow"
	"github.com/aretw0/chatflow/pkg/adapters/memory"
	"github.com/aretw0/chatflow/pkg/domain"
	"github.com/aretw0/chatflow/pkg/editor"
	"github.com/aretw0/chatflow/pkg/flowfile"
	"github.com/aretw0/chatflow/pkg/schedule"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func twoStepFlow() domain.Flow {
	return domain.NewFlow(
		[]domain.Node{
			{ID: "a", Type: domain.NodeTypeMessage, Data: domain.MessagePayload{Label: "first"}},
			{ID: "b", Type: domain.NodeTypeMessage, Data: domain.MessagePayload{Label: "second"}},
		},
		[]domain.Edge{{ID: "a-b", Source: "a", Target: "b"}},
	)
}

func newStudio(t *testing.T, opts ...chatflow.Option) (*chatflow.Studio, *schedule.Manual) {
	t.Helper()
	clock := schedule.NewManual(time.Unix(0, 0))
	s := chatflow.New(append([]chatflow.Option{chatflow.WithScheduler(clock)}, opts...)...)
	t.Cleanup(s.Close)
	return s, clock
}

func TestStudio_CreateTwice(t *testing.T) {
	s, _ := newStudio(t)

	_, err := s.Create("f", twoStepFlow())
	require.NoError(t, err)
	_, err = s.Create("f", twoStepFlow())
	assert.ErrorIs(t, err, domain.ErrFlowExists)
}

func TestStudio_OpensFromLoader(t *testing.T) {
	loader := memory.NewLoader(map[string]domain.Flow{"lib": twoStepFlow()})
	s, _ := newStudio(t, chatflow.WithLoader(loader))
	ctx := context.Background()

	_, err := s.Create("scratch", domain.Flow{})
	require.NoError(t, err)

	ids, err := s.List(ctx)
	require.NoError(t, err)
	assert.Equal(t, []string{"lib", "scratch"}, ids)

	ed, err := s.Editor(ctx, "lib")
	require.NoError(t, err)
	assert.Len(t, ed.Flow().Nodes, 2)

	again, err := s.Editor(ctx, "lib")
	require.NoError(t, err)
	assert.Same(t, ed, again)

	_, err = s.Editor(ctx, "missing")
	assert.ErrorIs(t, err, domain.ErrFlowNotFound)
}

func TestStudio_EditRestartsPreview(t *testing.T) {
	s, clock := newStudio(t)
	ctx := context.Background()

	ed, err := s.Create("f", twoStepFlow())
	require.NoError(t, err)

	sid, _, err := s.Preview(ctx, "f")
	require.NoError(t, err)
	clock.RunAll()

	state, err := s.Sessions().Load(ctx, sid)
	require.NoError(t, err)
	require.Len(t, state.Messages, 1)
	assert.Equal(t, uint64(1), state.Generation)

	_, err = ed.UpdateNodeData("a", map[string]any{"label": "changed"})
	require.NoError(t, err)
	clock.RunAll()

	state, err = s.Sessions().Load(ctx, sid)
	require.NoError(t, err)
	assert.Equal(t, uint64(2), state.Generation)
	require.Len(t, state.Messages, 1)
	assert.Equal(t, "changed", state.Messages[0].Content)
}

func TestStudio_PreviewCatchesEditDuringStart(t *testing.T) {
	var (
		ed   *editor.Editor
		once sync.Once
	)
	// The first reset runs while the session is being created, before it is
	// registered for restarts.
	hooks := domain.LifecycleHooks{
		OnReset: func(*domain.ResetEvent) {
			once.Do(func() {
				_, err := ed.UpdateNodeData("a", map[string]any{"label": "edited"})
				require.NoError(t, err)
			})
		},
	}
	s, clock := newStudio(t, chatflow.WithLifecycleHooks(hooks))
	ctx := context.Background()

	var err error
	ed, err = s.Create("f", twoStepFlow())
	require.NoError(t, err)

	sid, state, err := s.Preview(ctx, "f")
	require.NoError(t, err)
	assert.Equal(t, ed.Flow().Revision, state.FlowRevision)
	clock.RunAll()

	state, err = s.Sessions().Load(ctx, sid)
	require.NoError(t, err)
	require.Len(t, state.Messages, 1)
	assert.Equal(t, "edited", state.Messages[0].Content)
}

func TestStudio_Save(t *testing.T) {
	dir := t.TempDir()
	s, clock := newStudio(t, chatflow.WithSaver(flowfile.DirSaver(dir, flowfile.FormatYAML)))
	ctx := context.Background()

	ed, err := s.Create("f", twoStepFlow())
	require.NoError(t, err)
	require.NoError(t, s.Save(ctx, "f"))

	saved, err := flowfile.Load(filepath.Join(dir, "f.yaml"))
	require.NoError(t, err)
	assert.Len(t, saved.Nodes, 2)

	require.NoError(t, ed.RemoveEdge("a-b"))
	err = s.Save(ctx, "f")
	var topo *domain.InvalidFlowTopologyError
	require.True(t, errors.As(err, &topo))
	assert.Equal(t, []string{"a", "b"}, topo.Roots)
	assert.Equal(t, domain.MultipleRootsMessage, ed.SaveError())

	clock.Advance(5 * time.Second)
	assert.Empty(t, ed.SaveError())

	rec := httptest.NewRecorder()
	s.MetricsHandler().ServeHTTP(rec, httptest.NewRequest("GET", "/metrics", nil))
	assert.Contains(t, rec.Body.String(), `chatflow_saves_total{outcome="saved"} 1`)
	assert.Contains(t, rec.Body.String(), `chatflow_saves_total{outcome="rejected"} 1`)
}

func TestStudio_Watch(t *testing.T) {
	s, clock := newStudio(t)
	ctx := context.Background()
	_, err := s.Create("f", twoStepFlow())
	require.NoError(t, err)

	var mu sync.Mutex
	var counts []int
	unwatch := s.Watch(func(_ string, state *domain.SimulationState) {
		mu.Lock()
		defer mu.Unlock()
		counts = append(counts, len(state.Messages))
	})

	sid, _, err := s.Preview(ctx, "f")
	require.NoError(t, err)
	clock.RunAll()
	unwatch()

	_, err = s.Sessions().Send(ctx, sid, "hi")
	require.NoError(t, err)

	mu.Lock()
	defer mu.Unlock()
	assert.Equal(t, []int{0, 1}, counts)
}

func TestStudio_Remove(t *testing.T) {
	s, _ := newStudio(t)
	_, err := s.Create("f", twoStepFlow())
	require.NoError(t, err)

	require.NoError(t, s.Remove("f"))
	assert.ErrorIs(t, s.Remove("f"), domain.ErrFlowNotFound)
	_, _, err = s.Preview(context.Background(), "f")
	assert.ErrorIs(t, err, domain.ErrFlowNotFound)
}
