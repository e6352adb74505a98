package graph

import (
	"fmt"
	"strings"

	"github.com/agenciaboz-dev/bozchat-sub001/pkg/domain"
)

// Report counts the repairs made by Normalize.
type Report struct {
	FilledIDs     int  `json:"filled_ids"`
	FilledKinds   int  `json:"filled_kinds"`
	DroppedNodes  int  `json:"dropped_nodes"`
	DroppedEdges  int  `json:"dropped_edges"`
	BrokenCycles  int  `json:"broken_cycles"`
	ClearedLoops  int  `json:"cleared_loops"`
	RenamedNodes  int  `json:"renamed_nodes"`
	ExtraRoots    int  `json:"extra_roots"`
	ResetViewport bool `json:"reset_viewport"`
}

// Changed reports whether Normalize modified anything.
func (r Report) Changed() bool {
	return r.FilledIDs+r.FilledKinds+r.DroppedNodes+r.DroppedEdges+
		r.BrokenCycles+r.ClearedLoops+r.RenamedNodes > 0 || r.ResetViewport
}

func (r Report) String() string {
	if !r.Changed() && r.ExtraRoots == 0 {
		return "clean"
	}
	var parts []string
	add := func(n int, what string) {
		if n > 0 {
			parts = append(parts, fmt.Sprintf("%d %s", n, what))
		}
	}
	add(r.FilledIDs, "ids filled")
	add(r.FilledKinds, "kinds filled")
	add(r.DroppedNodes, "duplicate nodes dropped")
	add(r.DroppedEdges, "edges dropped")
	add(r.BrokenCycles, "cycles broken")
	add(r.ClearedLoops, "loops cleared")
	add(r.RenamedNodes, "nodes renamed")
	add(r.ExtraRoots, "orphan roots kept")
	if r.ResetViewport {
		parts = append(parts, "viewport reset")
	}
	return strings.Join(parts, ", ")
}

// Normalize repairs a graph restored from storage or a snapshot so the
// structural operations can work on it:
//
//   - nodes without id get one, nodes repeating an id are dropped;
//   - edges with an unknown endpoint, self edges, repeated edges and second
//     incoming edges are dropped;
//   - cycles without a root are broken by detaching the first node of the
//     cycle in array order;
//   - loop targets that do not resolve are cleared;
//   - missing or unknown kinds are derived (a root is a response, a child is
//     the opposite of its parent);
//   - ids are reassigned.
//
// Orphan subtrees are kept as extra roots and counted in the report; Validate
// flags them.
func Normalize(g domain.FlowGraph) (domain.FlowGraph, Report) {
	var rep Report
	out := domain.FlowGraph{
		Viewport: g.Viewport,
		Extra:    g.Extra.Clone(),
		Nodes:    make([]domain.FlowNode, 0, len(g.Nodes)),
		Edges:    make([]domain.FlowEdge, 0, len(g.Edges)),
	}
	if out.Viewport.Zoom <= 0 {
		out.Viewport = domain.DefaultViewport
		rep.ResetViewport = true
	}

	seen := make(map[string]bool, len(g.Nodes))
	for i, n := range g.Nodes {
		n = n.Clone()
		if n.ID == "" {
			// Anything unique works; ids are reassigned at the end.
			n.ID = fmt.Sprintf("\x00unnamed_%d", i)
			rep.FilledIDs++
		}
		if seen[n.ID] {
			rep.DroppedNodes++
			continue
		}
		seen[n.ID] = true
		out.Nodes = append(out.Nodes, n)
	}

	hasParent := make(map[string]bool, len(g.Edges))
	pairs := make(map[[2]string]bool, len(g.Edges))
	for _, e := range g.Edges {
		key := [2]string{e.Source, e.Target}
		if !seen[e.Source] || !seen[e.Target] || e.Source == e.Target ||
			pairs[key] || hasParent[e.Target] {
			rep.DroppedEdges++
			continue
		}
		pairs[key] = true
		hasParent[e.Target] = true
		out.Edges = append(out.Edges, e.Clone())
	}

	rep.BrokenCycles = breakCycles(&out)
	rep.ExtraRoots = max(len(Roots(out))-1, 0)
	rep.ClearedLoops = clearDanglingLoops(&out)
	rep.FilledKinds = fillKinds(&out)

	for i, n := range out.Nodes {
		if n.ID != domain.NodeID(i) {
			rep.RenamedNodes++
		}
	}
	return ReassignIDs(out), rep
}

// breakCycles assumes every node has at most one parent. Nodes that are not
// reachable from a root then sit on (or below) a parent cycle; the first of
// them in array order loses its incoming edge and becomes a root.
func breakCycles(g *domain.FlowGraph) int {
	reached := make(map[string]bool, len(g.Nodes))
	for _, root := range Roots(*g) {
		for id := range Reachable(*g, root) {
			reached[id] = true
		}
	}

	broken := 0
	for _, n := range g.Nodes {
		if reached[n.ID] {
			continue
		}
		kept := g.Edges[:0]
		for _, e := range g.Edges {
			if e.Target != n.ID {
				kept = append(kept, e)
			}
		}
		g.Edges = kept
		broken++
		for id := range Reachable(*g, n.ID) {
			reached[id] = true
		}
	}
	return broken
}

// fillKinds derives missing kinds top-down and returns how many were filled.
func fillKinds(g *domain.FlowGraph) int {
	index := make(map[string]int, len(g.Nodes))
	for i, n := range g.Nodes {
		index[n.ID] = i
	}
	children := make(map[string][]string, len(g.Nodes))
	for _, e := range g.Edges {
		children[e.Source] = append(children[e.Source], e.Target)
	}

	filled := 0
	var walk func(id string, parent domain.NodeKind)
	walk = func(id string, parent domain.NodeKind) {
		n := &g.Nodes[index[id]]
		if !n.Kind.Valid() {
			if parent == "" {
				n.Kind = domain.KindResponse
			} else {
				n.Kind = parent.Opposite()
			}
			filled++
		}
		for _, c := range children[id] {
			walk(c, n.Kind)
		}
	}
	for _, root := range Roots(*g) {
		walk(root, "")
	}
	return filled
}
