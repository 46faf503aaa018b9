package dsl

import (
	"strconv"

	"github.com/aretw0/chatflow/pkg/domain"
)

// NodeBuilder provides a fluent API for configuring a node.
type NodeBuilder struct {
	node    domain.Node
	edges   []domain.Edge
	builder *Builder
}

// Message marks the node as a Message node saying text.
func (n *NodeBuilder) Message(text string) *NodeBuilder {
	n.node.Type = domain.NodeTypeMessage
	n.node.Data = domain.MessagePayload{Label: text}
	return n
}

// Image marks the node as an Image node showing url.
func (n *NodeBuilder) Image(label, url, caption string) *NodeBuilder {
	n.node.Type = domain.NodeTypeImage
	n.node.Data = domain.ImagePayload{Label: label, ImageURL: url, Caption: caption}
	return n
}

// QuickReplies marks the node as a Quick Replies node offering one button per
// text. Button ids are their 1-based position.
func (n *NodeBuilder) QuickReplies(label string, texts ...string) *NodeBuilder {
	buttons := make([]domain.Button, len(texts))
	for i, t := range texts {
		buttons[i] = domain.Button{ID: strconv.Itoa(i + 1), Text: t, Value: t}
	}
	n.node.Type = domain.NodeTypeQuickReplies
	n.node.Data = domain.QuickRepliesPayload{Label: label, Buttons: buttons}
	return n
}

// At places the node on the canvas.
func (n *NodeBuilder) At(x, y float64) *NodeBuilder {
	n.node.Position = domain.Position{X: x, Y: y}
	return n
}

// Go connects the node's default output to the target node.
func (n *NodeBuilder) Go(target string) *NodeBuilder {
	return n.On(domain.DefaultHandle, target)
}

// On connects a named output handle to the target node.
func (n *NodeBuilder) On(handle, target string) *NodeBuilder {
	id := domain.EdgeID(n.node.ID, target)
	if handle != domain.DefaultHandle {
		id += "-" + handle
	}
	n.edges = append(n.edges, domain.Edge{
		ID:           id,
		Source:       n.node.ID,
		SourceHandle: handle,
		Target:       target,
	})
	return n
}

// Add starts the next node, for chaining a whole flow in one expression.
func (n *NodeBuilder) Add(id string) *NodeBuilder {
	return n.builder.Add(id)
}

// Build returns the underlying domain.Node.
// This is primarily used by the Builder, but exposed for advanced usage.
func (n *NodeBuilder) Build() domain.Node {
	return n.node
}
