package domain

import (
	"sort"
	"sync"
)

// NodeTypeDefinition describes a node type offered by the nodes panel.
type NodeTypeDefinition struct {
	Type        NodeType
	Label       string
	Description string
	Available   bool

	// Defaults returns the payload given to a freshly dropped node.
	Defaults func() Payload

	decode func(map[string]any) (Payload, error)
}

var (
	registryMu sync.RWMutex
	registry   = map[NodeType]NodeTypeDefinition{}
	order      []NodeType
)

func init() {
	register(NodeTypeDefinition{
		Type:        NodeTypeMessage,
		Label:       "Message",
		Description: "Send a text message",
		Available:   true,
		Defaults: func() Payload {
			return MessagePayload{Label: "Enter your message here..."}
		},
		decode: decodeInto[MessagePayload],
	})
	register(NodeTypeDefinition{
		Type:        NodeTypeImage,
		Label:       "Image",
		Description: "Send image with caption",
		Available:   true,
		Defaults: func() Payload {
			return ImagePayload{Label: "Image Message", Caption: "Add image caption here..."}
		},
		decode: decodeInto[ImagePayload],
	})
	register(NodeTypeDefinition{
		Type:        NodeTypeQuickReplies,
		Label:       "Quick Replies",
		Description: "Add quick reply buttons",
		Available:   true,
		Defaults: func() Payload {
			return QuickRepliesPayload{
				Label: "Choose an option:",
				Buttons: []Button{
					{ID: "1", Text: "Option 1", Value: "option1"},
					{ID: "2", Text: "Option 2", Value: "option2"},
				},
			}
		},
		decode: decodeInto[QuickRepliesPayload],
	})
}

func register(def NodeTypeDefinition) {
	registryMu.Lock()
	defer registryMu.Unlock()
	if _, exists := registry[def.Type]; !exists {
		order = append(order, def.Type)
	}
	registry[def.Type] = def
}

// LookupNodeType returns the definition registered for t.
func LookupNodeType(t NodeType) (NodeTypeDefinition, bool) {
	registryMu.RLock()
	defer registryMu.RUnlock()
	def, ok := registry[t]
	return def, ok
}

// NodeTypes lists the registered node types in registration order.
func NodeTypes() []NodeTypeDefinition {
	registryMu.RLock()
	defer registryMu.RUnlock()
	out := make([]NodeTypeDefinition, 0, len(order))
	for _, t := range order {
		out = append(out, registry[t])
	}
	return out
}

// NodeTypeNames returns the sorted canonical type tags, for help texts.
func NodeTypeNames() []string {
	registryMu.RLock()
	defer registryMu.RUnlock()
	names := make([]string, 0, len(registry))
	for t := range registry {
		names = append(names, string(t))
	}
	sort.Strings(names)
	return names
}
