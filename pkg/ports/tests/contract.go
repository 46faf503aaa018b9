package tests

import (
	"context"
	"errors"
	"testing"

	"github.com/aretw0/chatflow/pkg/domain"
	"github.com/aretw0/chatflow/pkg/ports"
)

// FlowLoaderContractTest is a reusable test suite that verifies if an adapter complies with ports.FlowLoader.
// want maps each flow id the loader was seeded with to the node ids it must contain, in order.
func FlowLoaderContractTest(t *testing.T, loader ports.FlowLoader, want map[string][]string) {
	t.Helper()
	ctx := context.Background()

	t.Run("GetFlow_Success", func(t *testing.T) {
		for id, nodeIDs := range want {
			flow, err := loader.GetFlow(ctx, id)
			if err != nil {
				t.Fatalf("unexpected error getting flow %s: %v", id, err)
			}
			if len(flow.Nodes) != len(nodeIDs) {
				t.Fatalf("flow %s: got %d nodes, want %d", id, len(flow.Nodes), len(nodeIDs))
			}
			for i, n := range flow.Nodes {
				if n.ID != nodeIDs[i] {
					t.Errorf("flow %s: node %d is %q, want %q", id, i, n.ID, nodeIDs[i])
				}
				if n.Data == nil {
					t.Errorf("flow %s: node %s has no payload", id, n.ID)
				}
			}
		}
	})

	t.Run("GetFlow_NotFound", func(t *testing.T) {
		_, err := loader.GetFlow(ctx, "non-existent-flow")
		if !errors.Is(err, domain.ErrFlowNotFound) {
			t.Errorf("expected ErrFlowNotFound, got %v", err)
		}
	})

	t.Run("ListFlows", func(t *testing.T) {
		ids, err := loader.ListFlows(ctx)
		if err != nil {
			t.Fatalf("unexpected error listing flows: %v", err)
		}

		if len(ids) != len(want) {
			t.Errorf("expected %d flows, got %d", len(want), len(ids))
		}

		lookup := make(map[string]bool)
		for _, id := range ids {
			lookup[id] = true
		}
		for id := range want {
			if !lookup[id] {
				t.Errorf("flow %s missing from list", id)
			}
		}
	})
}
