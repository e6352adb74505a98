package graph

import (
	"fmt"

	"github.com/agenciaboz-dev/bozchat-sub001/pkg/domain"
)

// childOffset is the provisional vertical distance between a new node and
// its parent. The layout engine overwrites it.
const childOffset = 200

// AddChild appends a node of the given kind under sourceID.
// It returns the new graph and the created node. An empty or unknown kind
// defaults to the opposite of the source's kind.
func AddChild(g domain.FlowGraph, sourceID string, kind domain.NodeKind) (domain.FlowGraph, domain.FlowNode, error) {
	src, ok := g.Node(sourceID)
	if !ok {
		return g, domain.FlowNode{}, fmt.Errorf("add child to %q: %w", sourceID, domain.ErrNodeNotFound)
	}
	if !kind.Valid() {
		kind = src.Kind.Opposite()
	}

	out := g.Clone()
	n := len(out.Nodes)
	id := domain.NodeID(n)
	for out.Has(id) {
		n++
		id = domain.NodeID(n)
	}

	node := domain.FlowNode{
		ID:   id,
		Kind: kind,
		Position: domain.Position{
			X: src.Position.X,
			Y: src.Position.Y + childOffset,
		},
	}
	out.Nodes = append(out.Nodes, node)
	out.Edges = append(out.Edges, domain.FlowEdge{
		ID:     domain.EdgeID(sourceID, id),
		Source: sourceID,
		Target: id,
	})
	return out, node.Clone(), nil
}

// DeleteSubtree removes nodeID together with every node reachable from it
// through structural edges, drops every edge touching a removed node, clears
// loop targets that no longer resolve and reassigns ids.
func DeleteSubtree(g domain.FlowGraph, nodeID string) (domain.FlowGraph, error) {
	if !g.Has(nodeID) {
		return g, fmt.Errorf("delete %q: %w", nodeID, domain.ErrNodeNotFound)
	}
	removed := Reachable(g, nodeID)

	out := domain.FlowGraph{
		Viewport: g.Viewport,
		Extra:    g.Extra.Clone(),
		Nodes:    make([]domain.FlowNode, 0, len(g.Nodes)),
		Edges:    make([]domain.FlowEdge, 0, len(g.Edges)),
	}
	for _, n := range g.Nodes {
		if !removed[n.ID] {
			out.Nodes = append(out.Nodes, n.Clone())
		}
	}
	for _, e := range g.Edges {
		if !removed[e.Source] && !removed[e.Target] {
			out.Edges = append(out.Edges, e.Clone())
		}
	}
	clearDanglingLoops(&out)
	return ReassignIDs(out), nil
}

// ReassignIDs renames nodes to node_i following array order and rewrites
// edge endpoints, edge ids and loop targets accordingly. When ids are
// duplicated, references resolve to the first occurrence.
func ReassignIDs(g domain.FlowGraph) domain.FlowGraph {
	out := g.Clone()
	mapping := make(map[string]string, len(out.Nodes))
	for i := range out.Nodes {
		id := domain.NodeID(i)
		if _, dup := mapping[out.Nodes[i].ID]; !dup {
			mapping[out.Nodes[i].ID] = id
		}
		out.Nodes[i].ID = id
	}
	rename := func(id string) string {
		if to, ok := mapping[id]; ok {
			return to
		}
		return id
	}
	for i := range out.Edges {
		e := &out.Edges[i]
		e.Source = rename(e.Source)
		e.Target = rename(e.Target)
		e.ID = domain.EdgeID(e.Source, e.Target)
	}
	for i := range out.Nodes {
		p := &out.Nodes[i].Payload
		if p.LoopTargetID != "" {
			p.LoopTargetID = rename(p.LoopTargetID)
		}
	}
	return out
}

// Connect adds the structural edge sourceID -> targetID. It refuses edges
// that would give targetID a second parent or close a cycle.
func Connect(g domain.FlowGraph, sourceID, targetID string) (domain.FlowGraph, error) {
	for _, id := range []string{sourceID, targetID} {
		if !g.Has(id) {
			return g, fmt.Errorf("connect %q -> %q: %w", sourceID, targetID, domain.ErrNodeNotFound)
		}
	}
	if sourceID == targetID {
		return g, fmt.Errorf("connect %q to itself: %w", sourceID, domain.ErrTreeShape)
	}
	if parent, ok := Parent(g, targetID); ok {
		return g, fmt.Errorf("connect %q -> %q: already child of %q: %w", sourceID, targetID, parent, domain.ErrTreeShape)
	}
	if Reachable(g, targetID)[sourceID] {
		return g, fmt.Errorf("connect %q -> %q: would close a cycle: %w", sourceID, targetID, domain.ErrTreeShape)
	}

	out := g.Clone()
	out.Edges = append(out.Edges, domain.FlowEdge{
		ID:     domain.EdgeID(sourceID, targetID),
		Source: sourceID,
		Target: targetID,
	})
	return out, nil
}

// clearDanglingLoops removes loop targets that do not resolve or point to
// the node itself. It returns the number of cleared loops.
func clearDanglingLoops(g *domain.FlowGraph) int {
	ids := make(map[string]bool, len(g.Nodes))
	for _, n := range g.Nodes {
		ids[n.ID] = true
	}
	cleared := 0
	for i := range g.Nodes {
		p := &g.Nodes[i].Payload
		if p.LoopTargetID == "" {
			continue
		}
		if !ids[p.LoopTargetID] || p.LoopTargetID == g.Nodes[i].ID {
			p.LoopTargetID = ""
			cleared++
		}
	}
	return cleared
}
