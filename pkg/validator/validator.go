package validator

import (
	"github.com/aretw0/chatflow/pkg/domain"
)

// ValidateFlow decides whether the flow may be saved.
// Empty and single-node flows are always valid. Otherwise at most one node
// may lack an incoming edge. Cycles, reachability and payload completeness are not checked.
func ValidateFlow(nodes []domain.Node, edges []domain.Edge) domain.ValidationResult {
	if len(nodes) <= 1 {
		return domain.ValidationResult{IsValid: true}
	}

	if len(roots(nodes, edges)) > 1 {
		return domain.ValidationResult{
			IsValid: false,
			Error:   domain.MultipleRootsMessage,
		}
	}

	return domain.ValidationResult{IsValid: true}
}

// ValidateNodeConnections reports whether every (source node, source handle)
// pair carries at most one outgoing edge.
func ValidateNodeConnections(nodes []domain.Node, edges []domain.Edge) bool {
	return len(DuplicateSourceHandles(edges)) == 0
}

// DuplicateSourceHandles returns the source handles used by more than one edge,
// in order of first appearance.
func DuplicateSourceHandles(edges []domain.Edge) []domain.SourceKey {
	counts := make(map[domain.SourceKey]int, len(edges))
	var order []domain.SourceKey
	for _, e := range edges {
		k := e.Key()
		if counts[k] == 0 {
			order = append(order, k)
		}
		counts[k]++
	}

	var dups []domain.SourceKey
	for _, k := range order {
		if counts[k] > 1 {
			dups = append(dups, k)
		}
	}
	return dups
}

// FindDisconnectedNodes returns the nodes with neither incoming nor outgoing
// edges. A flow of zero or one node has no disconnected nodes.
func FindDisconnectedNodes(nodes []domain.Node, edges []domain.Edge) []domain.Node {
	if len(nodes) <= 1 {
		return []domain.Node{}
	}

	incoming, outgoing := degrees(edges)
	out := []domain.Node{}
	for _, n := range nodes {
		if !incoming[n.ID] && !outgoing[n.ID] {
			out = append(out, n)
		}
	}
	return out
}

// Roots returns the nodes without an incoming edge, in input order.
func Roots(nodes []domain.Node, edges []domain.Edge) []domain.Node {
	return roots(nodes, edges)
}

func roots(nodes []domain.Node, edges []domain.Edge) []domain.Node {
	incoming, _ := degrees(edges)
	var out []domain.Node
	for _, n := range nodes {
		if !incoming[n.ID] {
			out = append(out, n)
		}
	}
	return out
}

func degrees(edges []domain.Edge) (incoming, outgoing map[string]bool) {
	incoming = make(map[string]bool, len(edges))
	outgoing = make(map[string]bool, len(edges))
	for _, e := range edges {
		incoming[e.Target] = true
		outgoing[e.Source] = true
	}
	return incoming, outgoing
}

// Check runs ValidateFlow against a snapshot and converts a rejection into an error.
// It returns nil when the flow may be saved.
func Check(flow domain.Flow) error {
	res := ValidateFlow(flow.Nodes, flow.Edges)
	if res.IsValid {
		return nil
	}
	ids := make([]string, 0)
	for _, r := range roots(flow.Nodes, flow.Edges) {
		ids = append(ids, r.ID)
	}
	return &domain.InvalidFlowTopologyError{Message: res.Error, Roots: ids}
}
