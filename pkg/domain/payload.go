package domain

import (
	"fmt"

	"github.com/mitchellh/mapstructure"
)

// DefaultGreeting is what the bot says for a node with an empty label.
const DefaultGreeting = "Hello!"

// Payload is the type-specific content of a Node.
// The set of implementations is closed: each NodeType has exactly one payload type.
type Payload interface {
	Kind() NodeType
	GetLabel() string
	clone() Payload
}

// MessagePayload is the content of a Message node.
type MessagePayload struct {
	Label string `json:"label" yaml:"label" mapstructure:"label"`
}

func (p MessagePayload) Kind() NodeType   { return NodeTypeMessage }
func (p MessagePayload) GetLabel() string { return p.Label }
func (p MessagePayload) clone() Payload   { return p }

// ImagePayload is the content of an Image node.
// ImageURL is either a remote URL or a reference to an uploaded file.
type ImagePayload struct {
	Label     string `json:"label" yaml:"label" mapstructure:"label"`
	ImageURL  string `json:"imageUrl" yaml:"image_url" mapstructure:"imageUrl" validate:"omitempty,url"`
	ImageFile string `json:"imageFile,omitempty" yaml:"image_file,omitempty" mapstructure:"imageFile"`
	Caption   string `json:"caption" yaml:"caption" mapstructure:"caption"`
}

func (p ImagePayload) Kind() NodeType   { return NodeTypeImage }
func (p ImagePayload) GetLabel() string { return p.Label }
func (p ImagePayload) clone() Payload   { return p }

// Button is a single quick reply. IDs are unique within their node.
type Button struct {
	ID    string `json:"id" yaml:"id" mapstructure:"id" validate:"required"`
	Text  string `json:"text" yaml:"text" mapstructure:"text" validate:"required"`
	Value string `json:"value" yaml:"value" mapstructure:"value"`
}

// QuickRepliesPayload is the content of a Quick Replies node.
type QuickRepliesPayload struct {
	Label   string   `json:"label" yaml:"label" mapstructure:"label"`
	Buttons []Button `json:"buttons" yaml:"buttons" mapstructure:"buttons" validate:"unique=ID,dive"`
}

func (p QuickRepliesPayload) Kind() NodeType   { return NodeTypeQuickReplies }
func (p QuickRepliesPayload) GetLabel() string { return p.Label }
func (p QuickRepliesPayload) clone() Payload {
	if p.Buttons != nil {
		p.Buttons = append([]Button(nil), p.Buttons...)
	}
	return p
}

// DecodePayload builds the payload for the given node type from a generic map.
// A nil map yields the zero payload of that type.
func DecodePayload(t NodeType, data map[string]any) (Payload, error) {
	def, ok := LookupNodeType(t)
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrUnknownNodeType, t)
	}
	return def.decode(data)
}

// MergePayload applies a partial update on top of an existing payload.
// Keys absent from the patch keep their current value.
func MergePayload(p Payload, patch map[string]any) (Payload, error) {
	if p == nil {
		return nil, fmt.Errorf("cannot merge into nil payload")
	}
	base, err := PayloadMap(p)
	if err != nil {
		return nil, err
	}
	for k, v := range patch {
		base[k] = v
	}
	return DecodePayload(p.Kind(), base)
}

// PayloadMap flattens a payload into the generic map used by the wire forms.
func PayloadMap(p Payload) (map[string]any, error) {
	out := make(map[string]any)
	if p == nil {
		return out, nil
	}
	if err := mapstructure.Decode(p, &out); err != nil {
		return nil, fmt.Errorf("failed to flatten %s payload: %w", p.Kind(), err)
	}
	return out, nil
}

func decodeInto[T Payload](data map[string]any) (Payload, error) {
	var out T
	decoder, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
		WeaklyTypedInput: true,
		Result:           &out,
	})
	if err != nil {
		return nil, err
	}
	if err := decoder.Decode(data); err != nil {
		return nil, fmt.Errorf("invalid %s payload: %w", out.Kind(), err)
	}
	return out, nil
}
