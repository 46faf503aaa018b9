package domain

import (
	"encoding/json"
	"fmt"
)

// Flow is an immutable snapshot of the conversation graph at a given revision.
// Nodes keep insertion order, which is the tie-break wherever a single node must be picked.
// Consumers must treat a Flow as read-only; the editor produces a new value for every change.
type Flow struct {
	Revision uint64
	Nodes    []Node
	Edges    []Edge
}

// NewFlow builds a snapshot from nodes and edges, copying both.
func NewFlow(nodes []Node, edges []Edge) Flow {
	f := Flow{
		Nodes: make([]Node, len(nodes)),
		Edges: append([]Edge(nil), edges...),
	}
	for i, n := range nodes {
		f.Nodes[i] = n.Clone()
	}
	return f
}

// Clone returns a deep copy of the flow.
func (f Flow) Clone() Flow {
	out := NewFlow(f.Nodes, f.Edges)
	out.Revision = f.Revision
	return out
}

// Node returns the node with the given id.
func (f Flow) Node(id string) (Node, bool) {
	for _, n := range f.Nodes {
		if n.ID == id {
			return n, true
		}
	}
	return Node{}, false
}

// Edge returns the edge with the given id.
func (f Flow) Edge(id string) (Edge, bool) {
	for _, e := range f.Edges {
		if e.ID == id {
			return e, true
		}
	}
	return Edge{}, false
}

// HasIncoming reports whether some edge targets the node.
func (f Flow) HasIncoming(nodeID string) bool {
	for _, e := range f.Edges {
		if e.Target == nodeID {
			return true
		}
	}
	return false
}

// HasOutgoing reports whether some edge leaves the node.
func (f Flow) HasOutgoing(nodeID string) bool {
	for _, e := range f.Edges {
		if e.Source == nodeID {
			return true
		}
	}
	return false
}

// Roots returns the nodes without incoming edges, in insertion order.
func (f Flow) Roots() []Node {
	var roots []Node
	for _, n := range f.Nodes {
		if !f.HasIncoming(n.ID) {
			roots = append(roots, n)
		}
	}
	return roots
}

// FirstOutgoing returns the first edge (in edge order) leaving the node.
func (f Flow) FirstOutgoing(nodeID string) (Edge, bool) {
	for _, e := range f.Edges {
		if e.Source == nodeID {
			return e, true
		}
	}
	return Edge{}, false
}

// RawFlow is the wire form of a Flow with undecoded node payloads.
type RawFlow struct {
	Revision uint64    `json:"revision,omitempty" yaml:"revision,omitempty" mapstructure:"revision"`
	Nodes    []RawNode `json:"nodes" yaml:"nodes" mapstructure:"nodes"`
	Edges    []Edge    `json:"edges" yaml:"edges" mapstructure:"edges"`
}

// Decode converts the raw form into a typed Flow. Duplicate node ids are rejected.
func (r RawFlow) Decode() (Flow, error) {
	f := Flow{Revision: r.Revision, Nodes: make([]Node, 0, len(r.Nodes)), Edges: append([]Edge(nil), r.Edges...)}
	seen := make(map[string]bool, len(r.Nodes))
	for _, rn := range r.Nodes {
		n, err := rn.Decode()
		if err != nil {
			return Flow{}, err
		}
		if seen[n.ID] {
			return Flow{}, fmt.Errorf("%w: %s", ErrDuplicateNode, n.ID)
		}
		seen[n.ID] = true
		f.Nodes = append(f.Nodes, n)
	}
	if f.Edges == nil {
		f.Edges = []Edge{}
	}
	return f, nil
}

// Raw converts the flow back into its wire form.
func (f Flow) Raw() (RawFlow, error) {
	raw := RawFlow{Revision: f.Revision, Nodes: make([]RawNode, 0, len(f.Nodes)), Edges: append([]Edge{}, f.Edges...)}
	for _, n := range f.Nodes {
		rn, err := n.Raw()
		if err != nil {
			return RawFlow{}, err
		}
		raw.Nodes = append(raw.Nodes, rn)
	}
	return raw, nil
}

type flowJSON struct {
	Revision uint64 `json:"revision"`
	Nodes    []Node `json:"nodes"`
	Edges    []Edge `json:"edges"`
}

// MarshalJSON writes nodes and edges as arrays, never null.
func (f Flow) MarshalJSON() ([]byte, error) {
	out := flowJSON{Revision: f.Revision, Nodes: f.Nodes, Edges: f.Edges}
	if out.Nodes == nil {
		out.Nodes = []Node{}
	}
	if out.Edges == nil {
		out.Edges = []Edge{}
	}
	return json.Marshal(out)
}

// UnmarshalJSON reads the wire form and decodes payloads by node type.
func (f *Flow) UnmarshalJSON(data []byte) error {
	var raw RawFlow
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	decoded, err := raw.Decode()
	if err != nil {
		return err
	}
	*f = decoded
	return nil
}
