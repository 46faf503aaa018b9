package ports

import (
	"context"
	"testing"
	"time"

	"github.com/aretw0/chatflow/pkg/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// RunSessionStoreContract runs a suite of tests to verify that a SessionStore
// implementation adheres to the defined interface contract.
func RunSessionStoreContract(t *testing.T, store SessionStore) {
	ctx := context.Background()
	sessionID := "contract-test-session-" + time.Now().Format("20060102150405")

	t.Run("Save and Load", func(t *testing.T) {
		state := domain.NewSimulationState(sessionID)
		state.FlowRevision = 7
		state.Generation = 2
		state.CurrentNodeID = "b"
		state.Status = domain.StatusAwaitingInput
		state.Messages = append(state.Messages,
			domain.ConversationMessage{ID: "1", Sender: domain.SenderBot, Content: "Pick one", NodeID: "a", Timestamp: time.Unix(1700000000, 0).UTC()},
			domain.ConversationMessage{ID: "2", Sender: domain.SenderBot, Content: domain.ButtonsContent, NodeID: "a", Timestamp: time.Unix(1700000000, 0).UTC()},
		)

		err := store.Save(ctx, sessionID, state)
		require.NoError(t, err, "Save should not return error")

		loaded, err := store.Load(ctx, sessionID)
		require.NoError(t, err, "Load should not return error")
		assert.Equal(t, state.CurrentNodeID, loaded.CurrentNodeID)
		assert.Equal(t, state.Status, loaded.Status)
		assert.Equal(t, state.Generation, loaded.Generation)
		assert.Equal(t, state.FlowRevision, loaded.FlowRevision)
		require.Len(t, loaded.Messages, 2)
		assert.True(t, loaded.AwaitingButtons())
		assert.True(t, state.Messages[0].Timestamp.Equal(loaded.Messages[0].Timestamp))
	})

	t.Run("Saved state is isolated", func(t *testing.T) {
		state := domain.NewSimulationState(sessionID)
		require.NoError(t, store.Save(ctx, sessionID, state))

		state.Messages = append(state.Messages, domain.ConversationMessage{ID: "late", Sender: domain.SenderUser, Content: "hi"})

		loaded, err := store.Load(ctx, sessionID)
		require.NoError(t, err)
		assert.Empty(t, loaded.Messages, "mutating after Save must not leak into the store")
	})

	t.Run("Load Non-Existent", func(t *testing.T) {
		_, err := store.Load(ctx, "non-existent-"+sessionID)
		assert.ErrorIs(t, err, domain.ErrSessionNotFound)
	})

	t.Run("Delete", func(t *testing.T) {
		err := store.Save(ctx, sessionID, domain.NewSimulationState(sessionID))
		require.NoError(t, err)

		err = store.Delete(ctx, sessionID)
		require.NoError(t, err, "Delete should not return error")

		_, err = store.Load(ctx, sessionID)
		assert.ErrorIs(t, err, domain.ErrSessionNotFound, "Load after Delete should return ErrSessionNotFound")
	})

	t.Run("List", func(t *testing.T) {
		id1 := sessionID + "-1"
		id2 := sessionID + "-2"
		_ = store.Save(ctx, id1, domain.NewSimulationState(id1))
		_ = store.Save(ctx, id2, domain.NewSimulationState(id2))

		defer func() {
			_ = store.Delete(ctx, id1)
			_ = store.Delete(ctx, id2)
		}()

		sessions, err := store.List(ctx)
		require.NoError(t, err)
		assert.Contains(t, sessions, id1)
		assert.Contains(t, sessions, id2)
	})
}
