package memory_test

import (
	"context"
	"testing"

	"github.com/aretw0/chatflow/pkg/adapters/memory"
	"github.com/aretw0/chatflow/pkg/domain"
	contract "github.com/aretw0/chatflow/pkg/ports/tests"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestInMemoryLoader_Contract(t *testing.T) {
	loader, err := memory.NewFromRaw(map[string]domain.RawFlow{
		"welcome": {
			Nodes: []domain.RawNode{
				{ID: "start", Type: "message", Data: map[string]any{"label": "Hello World"}},
				{ID: "menu", Type: "buttonNode", Data: map[string]any{
					"label":   "Pick one",
					"buttons": []any{map[string]any{"id": 1, "text": "Yes", "value": "yes"}},
				}},
			},
			Edges: []domain.Edge{{ID: "start-menu", Source: "start", Target: "menu"}},
		},
		"empty": {},
	})
	require.NoError(t, err)

	contract.FlowLoaderContractTest(t, loader, map[string][]string{
		"welcome": {"start", "menu"},
		"empty":   {},
	})
}

func TestInMemoryLoader_CopiesFlows(t *testing.T) {
	flow := domain.NewFlow([]domain.Node{{ID: "a", Type: domain.NodeTypeMessage, Data: domain.MessagePayload{Label: "A"}}}, nil)
	loader := memory.NewLoader(map[string]domain.Flow{"f": flow})

	got, err := loader.GetFlow(context.Background(), "f")
	require.NoError(t, err)
	got.Nodes[0].Data = domain.MessagePayload{Label: "changed"}

	again, _ := loader.GetFlow(context.Background(), "f")
	assert.Equal(t, "A", again.Nodes[0].Label())

	_, err = memory.NewFromRaw(map[string]domain.RawFlow{"bad": {Nodes: []domain.RawNode{{ID: "x", Type: "condition"}}}})
	assert.ErrorIs(t, err, domain.ErrUnknownNodeType)
}
