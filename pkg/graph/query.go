package graph

import "github.com/agenciaboz-dev/bozchat-sub001/pkg/domain"

// Default returns the graph of a bot that was never edited: a single root
// response node holding the trigger phrase.
func Default(trigger string) domain.FlowGraph {
	return domain.FlowGraph{
		Nodes: []domain.FlowNode{{
			ID:      domain.NodeID(0),
			Kind:    domain.KindResponse,
			Payload: domain.Payload{Text: trigger},
		}},
		Edges:    []domain.FlowEdge{},
		Viewport: domain.DefaultViewport,
	}
}

// Roots returns the ids of nodes without an incoming edge, in array order.
func Roots(g domain.FlowGraph) []string {
	hasParent := make(map[string]bool, len(g.Edges))
	for _, e := range g.Edges {
		hasParent[e.Target] = true
	}
	var roots []string
	for _, n := range g.Nodes {
		if !hasParent[n.ID] {
			roots = append(roots, n.ID)
		}
	}
	return roots
}

// Root returns the id of the first root.
func Root(g domain.FlowGraph) (string, bool) {
	roots := Roots(g)
	if len(roots) == 0 {
		return "", false
	}
	return roots[0], true
}

// Children returns the targets of the edges leaving id, in edge order.
func Children(g domain.FlowGraph, id string) []string {
	var out []string
	for _, e := range g.Edges {
		if e.Source == id {
			out = append(out, e.Target)
		}
	}
	return out
}

// Parent returns the source of the first edge entering id.
func Parent(g domain.FlowGraph, id string) (string, bool) {
	for _, e := range g.Edges {
		if e.Target == id {
			return e.Source, true
		}
	}
	return "", false
}

// Reachable returns id and every node reachable from it through structural
// edges. Loop targets are not followed. Cycles are tolerated.
func Reachable(g domain.FlowGraph, id string) map[string]bool {
	adj := make(map[string][]string, len(g.Nodes))
	for _, e := range g.Edges {
		adj[e.Source] = append(adj[e.Source], e.Target)
	}
	seen := map[string]bool{id: true}
	queue := []string{id}
	for len(queue) > 0 {
		cur := queue[0]
		queue = queue[1:]
		for _, next := range adj[cur] {
			if !seen[next] {
				seen[next] = true
				queue = append(queue, next)
			}
		}
	}
	return seen
}

// Resolves reports whether the runtime position of a live conversation still
// points at an existing node.
func Resolves(g domain.FlowGraph, active domain.ActiveBot) bool {
	return active.CurrentNodeID != "" && g.Has(active.CurrentNodeID)
}
