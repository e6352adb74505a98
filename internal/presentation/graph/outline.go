package graph

import (
	"fmt"
	"strings"

	"github.com/agenciaboz-dev/bozchat-sub001/pkg/domain"
	flow "github.com/agenciaboz-dev/bozchat-sub001/pkg/graph"
)

// Outline renders the conversation as a nested Markdown list, one item per
// node in tree order. Nodes unreachable from the first root are listed under
// their own roots.
func Outline(title string, g domain.FlowGraph) string {
	var sb strings.Builder
	if title != "" {
		fmt.Fprintf(&sb, "# %s\n\n", title)
	}
	if len(g.Nodes) == 0 {
		sb.WriteString("_empty conversation_\n")
		return sb.String()
	}

	seen := make(map[string]bool, len(g.Nodes))
	var walk func(id string, depth int)
	walk = func(id string, depth int) {
		if seen[id] {
			return
		}
		seen[id] = true
		node, _ := g.Node(id)
		sb.WriteString(strings.Repeat("  ", depth))
		sb.WriteString(outlineItem(node))
		sb.WriteString("\n")
		for _, child := range flow.Children(g, id) {
			walk(child, depth+1)
		}
	}
	for _, root := range flow.Roots(g) {
		walk(root, 0)
	}
	// Nodes only reachable through a cycle have no root.
	for _, n := range g.Nodes {
		walk(n.ID, 0)
	}
	return sb.String()
}

func outlineItem(n domain.FlowNode) string {
	var sb strings.Builder
	fmt.Fprintf(&sb, "- **%s** _%s_", n.ID, n.Kind)
	if text := summary(n.Payload.Text); text != "" {
		sb.WriteString(": ")
		sb.WriteString(text)
	}
	if n.Payload.Media != nil {
		sb.WriteString(" 📎")
	}
	for _, a := range n.Payload.Actions {
		fmt.Fprintf(&sb, " `%s`", a.Target)
		if a.Misconfigured {
			sb.WriteString(" ⚠")
		}
	}
	if n.Payload.HasLoop() {
		fmt.Fprintf(&sb, " ↩ %s", n.Payload.LoopTargetID)
	}
	return sb.String()
}
