package graph

import (
	"bytes"
	"context"
	"fmt"
	"strings"

	"github.com/goccy/go-graphviz"

	"github.com/agenciaboz-dev/bozchat-sub001/pkg/domain"
)

// ToDOT converts a conversation graph to Graphviz DOT format.
// Response nodes are drawn as ellipses, loop references as dashed edges that
// do not constrain the ranking.
func ToDOT(g domain.FlowGraph) string {
	var buf bytes.Buffer
	buf.WriteString("digraph G {\n")
	buf.WriteString("  rankdir=TB;\n")
	buf.WriteString("  bgcolor=\"transparent\";\n")
	buf.WriteString("  node [shape=box, style=\"rounded,filled\", fillcolor=white, fontsize=14, margin=\"0.2,0.1\"];\n")
	buf.WriteString("  ranksep=0.5;\n")
	buf.WriteString("  nodesep=0.3;\n")
	buf.WriteString("\n")

	for _, n := range g.Nodes {
		fmt.Fprintf(&buf, "  %q [%s];\n", n.ID, strings.Join(dotAttrs(n), ", "))
	}

	buf.WriteString("\n")
	for _, e := range g.Edges {
		fmt.Fprintf(&buf, "  %q -> %q;\n", e.Source, e.Target)
	}
	for _, n := range g.Nodes {
		if n.Payload.HasLoop() && g.Has(n.Payload.LoopTargetID) {
			fmt.Fprintf(&buf, "  %q -> %q [style=dashed, constraint=false, label=\"loop\"];\n", n.ID, n.Payload.LoopTargetID)
		}
	}

	buf.WriteString("}\n")
	return buf.String()
}

func dotAttrs(n domain.FlowNode) []string {
	label := n.ID
	if text := summary(n.Payload.Text); text != "" {
		label += "\n" + text
	}
	attrs := []string{fmt.Sprintf("label=%q", label)}
	if n.Kind == domain.KindResponse {
		attrs = append(attrs, "shape=ellipse", "fillcolor=\"#e1f5fe\"")
	}
	if n.Payload.Misconfigured() {
		attrs = append(attrs, "color=red", "penwidth=2")
	}
	return attrs
}

// RenderSVG renders a DOT graph to SVG using Graphviz.
func RenderSVG(ctx context.Context, dot string) ([]byte, error) {
	gv, err := graphviz.New(ctx)
	if err != nil {
		return nil, fmt.Errorf("init graphviz: %w", err)
	}
	defer gv.Close()

	g, err := graphviz.ParseBytes([]byte(dot))
	if err != nil {
		return nil, fmt.Errorf("parse DOT: %w", err)
	}
	defer g.Close()

	var buf bytes.Buffer
	if err := gv.Render(ctx, g, graphviz.SVG, &buf); err != nil {
		return nil, fmt.Errorf("render: %w", err)
	}
	return buf.Bytes(), nil
}
