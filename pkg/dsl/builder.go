package dsl

import (
	"fmt"

	"github.com/aretw0/chatflow/pkg/adapters/memory"
	"github.com/aretw0/chatflow/pkg/domain"
)

// Builder manages the flow construction.
// Nodes keep the order in which they were first added.
type Builder struct {
	order []string
	nodes map[string]*NodeBuilder
}

// New creates a new flow builder.
func New() *Builder {
	return &Builder{
		nodes: make(map[string]*NodeBuilder),
	}
}

// Add creates a new node in the flow.
// If the node already exists, it returns the existing builder.
// Until a type is chosen the node is a Message node with an empty label.
func (b *Builder) Add(id string) *NodeBuilder {
	if nb, ok := b.nodes[id]; ok {
		return nb
	}
	nb := &NodeBuilder{
		node: domain.Node{
			ID:   id,
			Type: domain.NodeTypeMessage,
			Data: domain.MessagePayload{},
		},
		builder: b,
	}
	b.order = append(b.order, id)
	b.nodes[id] = nb
	return nb
}

// Build compiles the nodes and their connections into a Flow.
func (b *Builder) Build() (domain.Flow, error) {
	nodes := make([]domain.Node, 0, len(b.order))
	var edges []domain.Edge
	seen := make(map[domain.SourceKey]bool)

	for _, id := range b.order {
		nb := b.nodes[id]
		nodes = append(nodes, nb.node)

		for _, e := range nb.edges {
			if _, ok := b.nodes[e.Target]; !ok {
				return domain.Flow{}, fmt.Errorf("%w: %s (target of %s)", domain.ErrNodeNotFound, e.Target, id)
			}
			if e.Target == id {
				return domain.Flow{}, fmt.Errorf("%w: %s", domain.ErrSelfConnection, id)
			}
			if seen[e.Key()] {
				return domain.Flow{}, fmt.Errorf("node %s: output %q is connected twice", id, e.SourceHandle)
			}
			seen[e.Key()] = true
			edges = append(edges, e)
		}
	}

	return domain.NewFlow(nodes, edges), nil
}

// Loader builds the flow and serves it from a memory loader under id.
func (b *Builder) Loader(id string) (*memory.Loader, error) {
	flow, err := b.Build()
	if err != nil {
		return nil, fmt.Errorf("failed to build flow %s: %w", id, err)
	}
	return memory.NewLoader(map[string]domain.Flow{id: flow}), nil
}

// MustBuild is like Build but panics on error. Intended for tests and examples.
func (b *Builder) MustBuild() domain.Flow {
	flow, err := b.Build()
	if err != nil {
		panic(err)
	}
	return flow
}
