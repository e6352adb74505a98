package graph

import (
	"fmt"
	"strings"

	"github.com/agenciaboz-dev/bozchat-sub001/pkg/domain"
)

// maxLabel is the number of runes of node text shown in a label.
const maxLabel = 40

// GraphOverlay contains editor state to visualize on the graph.
type GraphOverlay struct {
	Selected   string
	LoopSource string
}

// GenerateMermaid produces a Mermaid flowchart from a conversation graph.
// It applies semantic styling:
// - Message (bot speaks): [Rectangle]
// - Response (user answers): ([Stadium])
// - Loop references: dotted arrows labeled "loop"
// Nodes with misconfigured actions are always highlighted; overlay styles
// are added when provided.
func GenerateMermaid(g domain.FlowGraph, overlay *GraphOverlay) string {
	var sb strings.Builder
	sb.WriteString("graph TD\n")

	var misconfigured []string
	for _, node := range g.Nodes {
		safeID := sanitizeMermaidID(node.ID)

		opener, closer := "[", "]"
		if node.Kind == domain.KindResponse {
			opener, closer = "([", "])"
		}
		fmt.Fprintf(&sb, "    %s%s\"%s\"%s\n", safeID, opener, mermaidLabel(node), closer)

		if node.Payload.Misconfigured() {
			misconfigured = append(misconfigured, safeID)
		}
	}

	for _, e := range g.Edges {
		fmt.Fprintf(&sb, "    %s --> %s\n", sanitizeMermaidID(e.Source), sanitizeMermaidID(e.Target))
	}

	for _, node := range g.Nodes {
		if !node.Payload.HasLoop() || !g.Has(node.Payload.LoopTargetID) {
			continue
		}
		fmt.Fprintf(&sb, "    %s -. \"loop\" .-> %s\n", sanitizeMermaidID(node.ID), sanitizeMermaidID(node.Payload.LoopTargetID))
	}

	if len(misconfigured) > 0 {
		sb.WriteString("\n    classDef misconfigured stroke:#d32f2f,stroke-width:3px,stroke-dasharray:4;\n")
		for _, id := range misconfigured {
			fmt.Fprintf(&sb, "    class %s misconfigured;\n", id)
		}
	}

	if overlay != nil {
		sb.WriteString("\n    %% Overlay Styles\n")
		// Force black text (color:#000) for contrast regardless of theme.
		sb.WriteString("    classDef selected fill:#ffeb3b,stroke:#fbc02d,stroke-width:4px,color:#000;\n")
		sb.WriteString("    classDef looping fill:#e1f5fe,stroke:#01579b,stroke-width:2px,color:#000;\n")
		if overlay.LoopSource != "" && g.Has(overlay.LoopSource) {
			fmt.Fprintf(&sb, "    class %s looping;\n", sanitizeMermaidID(overlay.LoopSource))
		}
		if overlay.Selected != "" && g.Has(overlay.Selected) {
			fmt.Fprintf(&sb, "    class %s selected;\n", sanitizeMermaidID(overlay.Selected))
		}
	}

	return sb.String()
}

func mermaidLabel(node domain.FlowNode) string {
	text := summary(node.Payload.Text)
	if text == "" {
		return node.ID
	}
	// Escape double quotes for Mermaid labels.
	text = strings.ReplaceAll(text, "\"", "'")
	return node.ID + " <br/> " + text
}

// summary flattens text to one line and truncates it to maxLabel runes.
func summary(text string) string {
	text = strings.Join(strings.Fields(text), " ")
	runes := []rune(text)
	if len(runes) > maxLabel {
		return string(runes[:maxLabel-1]) + "…"
	}
	return text
}

func sanitizeMermaidID(id string) string {
	s := strings.ReplaceAll(id, ".", "_")
	s = strings.ReplaceAll(s, "-", "_")
	s = strings.ReplaceAll(s, "/", "_")
	s = strings.ReplaceAll(s, "\\", "_")
	s = strings.ReplaceAll(s, " ", "_")
	return s
}
