package domain

import (
	"encoding/json"
	"fmt"
)

// NodeType tags the payload carried by a Node.
type NodeType string

const (
	// NodeTypeMessage sends a plain text message.
	NodeTypeMessage NodeType = "message"
	// NodeTypeImage sends an image with a caption.
	NodeTypeImage NodeType = "image"
	// NodeTypeQuickReplies presents a fixed set of clickable replies.
	NodeTypeQuickReplies NodeType = "quick_replies"
)

// nodeTypeAliases maps the tags used by the canvas widgets to NodeTypes.
var nodeTypeAliases = map[string]NodeType{
	"textNode":   NodeTypeMessage,
	"text":       NodeTypeMessage,
	"imageNode":  NodeTypeImage,
	"buttonNode": NodeTypeQuickReplies,
	"buttons":    NodeTypeQuickReplies,
}

// ParseNodeType resolves a type tag (canonical or canvas alias) to a registered NodeType.
func ParseNodeType(tag string) (NodeType, error) {
	if alias, ok := nodeTypeAliases[tag]; ok {
		return alias, nil
	}
	t := NodeType(tag)
	if _, ok := LookupNodeType(t); !ok {
		return "", fmt.Errorf("%w: %q", ErrUnknownNodeType, tag)
	}
	return t, nil
}

// Position is the canvas coordinate of a node. It carries no logic.
type Position struct {
	X float64 `json:"x" yaml:"x" mapstructure:"x"`
	Y float64 `json:"y" yaml:"y" mapstructure:"y"`
}

// Node represents one conversational step in the flow.
type Node struct {
	ID       string
	Type     NodeType
	Position Position

	// Data is the type-specific payload. Its Kind always matches Type.
	Data Payload
}

// Label returns the text the bot says when this node is visited.
func (n Node) Label() string {
	if n.Data == nil {
		return ""
	}
	return n.Data.GetLabel()
}

// Buttons returns the quick replies of the node, or nil for other node types.
func (n Node) Buttons() []Button {
	if qr, ok := n.Data.(QuickRepliesPayload); ok {
		return qr.Buttons
	}
	return nil
}

// Clone returns a deep copy of the node.
func (n Node) Clone() Node {
	out := n
	if n.Data != nil {
		out.Data = n.Data.clone()
	}
	return out
}

// RawNode is the wire form of a Node, with the payload left as a generic map.
// Flow files, HTTP bodies and the flow library all decode into this shape first.
type RawNode struct {
	ID       string         `json:"id" yaml:"id" mapstructure:"id"`
	Type     string         `json:"type" yaml:"type" mapstructure:"type"`
	Position Position       `json:"position" yaml:"position" mapstructure:"position"`
	Data     map[string]any `json:"data" yaml:"data" mapstructure:"data"`
}

// Decode converts the raw form into a typed Node.
func (r RawNode) Decode() (Node, error) {
	if r.ID == "" {
		return Node{}, fmt.Errorf("node missing ID")
	}
	t, err := ParseNodeType(r.Type)
	if err != nil {
		return Node{}, fmt.Errorf("node %s: %w", r.ID, err)
	}
	payload, err := DecodePayload(t, r.Data)
	if err != nil {
		return Node{}, fmt.Errorf("node %s: %w", r.ID, err)
	}
	return Node{ID: r.ID, Type: t, Position: r.Position, Data: payload}, nil
}

// Raw converts the node back into its wire form.
func (n Node) Raw() (RawNode, error) {
	data, err := PayloadMap(n.Data)
	if err != nil {
		return RawNode{}, fmt.Errorf("node %s: %w", n.ID, err)
	}
	return RawNode{ID: n.ID, Type: string(n.Type), Position: n.Position, Data: data}, nil
}

type nodeJSON struct {
	ID       string   `json:"id"`
	Type     NodeType `json:"type"`
	Position Position `json:"position"`
	Data     Payload  `json:"data"`
}

// MarshalJSON writes the node in the canvas wire format.
func (n Node) MarshalJSON() ([]byte, error) {
	return json.Marshal(nodeJSON{ID: n.ID, Type: n.Type, Position: n.Position, Data: n.Data})
}

// UnmarshalJSON reads the canvas wire format, resolving the payload by type.
func (n *Node) UnmarshalJSON(data []byte) error {
	var raw RawNode
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	decoded, err := raw.Decode()
	if err != nil {
		return err
	}
	*n = decoded
	return nil
}
