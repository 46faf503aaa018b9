package graph

import (
	"fmt"
	"strings"

	"github.com/aretw0/chatflow/pkg/domain"
	"github.com/aretw0/chatflow/pkg/validator"
)

const maxLabel = 32

// GraphOverlay contains preview state to visualize on the graph.
type GraphOverlay struct {
	VisitedNodes []string
	CurrentNode  string
}

// OverlayFromState marks every node the transcript went through and the current node.
func OverlayFromState(state *domain.SimulationState) *GraphOverlay {
	if state == nil {
		return nil
	}
	o := &GraphOverlay{CurrentNode: state.CurrentNodeID}
	for _, m := range state.Messages {
		if m.NodeID != "" {
			o.VisitedNodes = append(o.VisitedNodes, m.NodeID)
		}
	}
	return o
}

// GenerateMermaid produces a Mermaid flowchart syntax string from a flow.
// It applies semantic styling:
// - Entry point: ((Circle))
// - Quick replies: {Rhombus}
// - Image: [[Subroutine]]
// - Default: [Rectangle]
// Nodes without any edge are flagged as disconnected. When the flow has
// more than one entry point every entry point is flagged, since that is
// what blocks saving.
func GenerateMermaid(flow domain.Flow, overlay *GraphOverlay) string {
	var sb strings.Builder
	sb.WriteString("graph TD\n")

	roots := validator.Roots(flow.Nodes, flow.Edges)
	isRoot := make(map[string]bool, len(roots))
	for _, r := range roots {
		isRoot[r.ID] = true
	}

	for _, node := range flow.Nodes {
		safeID := sanitizeMermaidID(node.ID)

		opener, closer := "[", "]"
		switch {
		case isRoot[node.ID]:
			opener, closer = "((", "))"
		case node.Type == domain.NodeTypeQuickReplies:
			opener, closer = "{", "}"
		case node.Type == domain.NodeTypeImage:
			opener, closer = "[[", "]]"
		}

		text := node.ID
		if label := summarize(node.Label()); label != "" {
			text = fmt.Sprintf("%s <br/> %s", node.ID, label)
		}
		fmt.Fprintf(&sb, "    %s%s\"%s\"%s\n", safeID, opener, text, closer)
	}

	known := make(map[string]bool, len(flow.Nodes))
	for _, n := range flow.Nodes {
		known[n.ID] = true
	}
	for _, e := range flow.Edges {
		arrow := "-->"
		if !known[e.Source] || !known[e.Target] {
			arrow = "-.->"
		}
		if e.SourceHandle != "" {
			arrow = fmt.Sprintf("-- \"%s\" -->", strings.ReplaceAll(e.SourceHandle, "\"", "'"))
		}
		fmt.Fprintf(&sb, "    %s %s %s\n", sanitizeMermaidID(e.Source), arrow, sanitizeMermaidID(e.Target))
	}

	disconnected := validator.FindDisconnectedNodes(flow.Nodes, flow.Edges)
	if len(disconnected) > 0 || len(roots) > 1 {
		sb.WriteString("\n    %% Validation Styles\n")
		sb.WriteString("    classDef disconnected fill:#fff3e0,stroke:#e65100,stroke-dasharray:5 5,color:#000;\n")
		sb.WriteString("    classDef entry fill:#ffebee,stroke:#b71c1c,stroke-width:2px,color:#000;\n")
		if len(roots) > 1 {
			for _, r := range roots {
				fmt.Fprintf(&sb, "    class %s entry;\n", sanitizeMermaidID(r.ID))
			}
		}
		for _, n := range disconnected {
			fmt.Fprintf(&sb, "    class %s disconnected;\n", sanitizeMermaidID(n.ID))
		}
	}

	if overlay != nil {
		sb.WriteString("\n    %% Overlay Styles\n")
		// Force black text (color:#000) for high-contrast on light backgrounds, regardless of theme (Light/Dark)
		sb.WriteString("    classDef visited fill:#e1f5fe,stroke:#01579b,stroke-width:2px,color:#000;\n")
		sb.WriteString("    classDef current fill:#ffeb3b,stroke:#fbc02d,stroke-width:4px,color:#000;\n")

		visitedSet := make(map[string]bool)
		for _, id := range overlay.VisitedNodes {
			safeID := sanitizeMermaidID(id)
			if !visitedSet[safeID] && safeID != "" {
				visitedSet[safeID] = true
				fmt.Fprintf(&sb, "    class %s visited;\n", safeID)
			}
		}

		if overlay.CurrentNode != "" {
			fmt.Fprintf(&sb, "    class %s current;\n", sanitizeMermaidID(overlay.CurrentNode))
		}
	}

	return sb.String()
}

// summarize shortens a bot message to a single line fit for a node box.
func summarize(label string) string {
	label = strings.Join(strings.Fields(label), " ")
	label = strings.ReplaceAll(label, "\"", "'")
	if r := []rune(label); len(r) > maxLabel {
		label = string(r[:maxLabel-1]) + "…"
	}
	return label
}

func sanitizeMermaidID(id string) string {
	s := strings.ReplaceAll(id, ".", "_")
	s = strings.ReplaceAll(s, "-", "_")
	s = strings.ReplaceAll(s, "/", "_")
	s = strings.ReplaceAll(s, "\\", "_")
	s = strings.ReplaceAll(s, " ", "_")
	return s
}
