package loam

import (
	"github.com/aretw0/chatflow/pkg/domain"
)

// FlowMetadata is the document header of a flow in the library.
// In Markdown documents it is the frontmatter and the body becomes the
// flow description; JSON and YAML documents carry it at the top level.
type FlowMetadata struct {
	ID       string           `json:"id" mapstructure:"id"`
	Title    string           `json:"title" mapstructure:"title"`
	Revision uint64           `json:"revision" mapstructure:"revision"`
	Nodes    []domain.RawNode `json:"nodes" mapstructure:"nodes"`
	Edges    []domain.Edge    `json:"edges" mapstructure:"edges"`
}

// Raw returns the wire form of the flow described by the metadata.
func (m FlowMetadata) Raw() domain.RawFlow {
	return domain.RawFlow{Revision: m.Revision, Nodes: m.Nodes, Edges: m.Edges}
}
