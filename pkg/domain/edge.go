package domain

// DefaultHandle is the handle id used when a connection does not name one.
// Every built-in node type exposes exactly one output and one input handle.
const DefaultHandle = ""

// Edge is a directed connection from a node's output handle to another node's input handle.
type Edge struct {
	ID           string `json:"id" yaml:"id" mapstructure:"id"`
	Source       string `json:"source" yaml:"source" mapstructure:"source"`
	SourceHandle string `json:"sourceHandle,omitempty" yaml:"source_handle,omitempty" mapstructure:"sourceHandle"`
	Target       string `json:"target" yaml:"target" mapstructure:"target"`
	TargetHandle string `json:"targetHandle,omitempty" yaml:"target_handle,omitempty" mapstructure:"targetHandle"`
}

// SourceKey identifies the output handle the edge leaves from.
type SourceKey struct {
	Node   string
	Handle string
}

// Key returns the (source node, source handle) pair of the edge.
func (e Edge) Key() SourceKey {
	return SourceKey{Node: e.Source, Handle: e.SourceHandle}
}

// EdgeID builds the identifier the editor assigns to a new connection.
func EdgeID(source, target string) string {
	return source + "-" + target
}
