package domain

import (
	"reflect"
)

// GraphDiff represents the changes between two graphs.
// It is designed to be serialized to JSON for partial updates on the client.
// Nodes and edges are matched by id; positions are ignored because the layout
// engine recomputes them on every structural change.
type GraphDiff struct {
	AddedNodes   []string `json:"added_nodes,omitempty"`
	RemovedNodes []string `json:"removed_nodes,omitempty"`
	// ChangedNodes lists nodes whose kind or payload changed.
	ChangedNodes []string `json:"changed_nodes,omitempty"`

	AddedEdges   []string `json:"added_edges,omitempty"`
	RemovedEdges []string `json:"removed_edges,omitempty"`

	Viewport *Viewport `json:"viewport,omitempty"`
}

// Diff calculates the difference between oldGraph and newGraph.
// If oldGraph is nil, it returns a diff representing the entire newGraph (initial load).
// It returns nil when nothing changed.
func Diff(oldGraph, newGraph *FlowGraph) *GraphDiff {
	if newGraph == nil {
		return nil
	}
	if oldGraph == nil {
		oldGraph = &FlowGraph{}
	}

	diff := &GraphDiff{}

	oldNodes := make(map[string]FlowNode, len(oldGraph.Nodes))
	for _, n := range oldGraph.Nodes {
		oldNodes[n.ID] = n
	}
	seen := make(map[string]bool, len(newGraph.Nodes))
	for _, n := range newGraph.Nodes {
		seen[n.ID] = true
		prev, ok := oldNodes[n.ID]
		switch {
		case !ok:
			diff.AddedNodes = append(diff.AddedNodes, n.ID)
		case prev.Kind != n.Kind || !samePayload(prev.Payload, n.Payload):
			diff.ChangedNodes = append(diff.ChangedNodes, n.ID)
		}
	}
	for _, n := range oldGraph.Nodes {
		if !seen[n.ID] {
			diff.RemovedNodes = append(diff.RemovedNodes, n.ID)
		}
	}

	oldEdges := make(map[string]bool, len(oldGraph.Edges))
	for _, e := range oldGraph.Edges {
		oldEdges[edgeKey(e)] = true
	}
	newEdges := make(map[string]bool, len(newGraph.Edges))
	for _, e := range newGraph.Edges {
		key := edgeKey(e)
		newEdges[key] = true
		if !oldEdges[key] {
			diff.AddedEdges = append(diff.AddedEdges, e.ID)
		}
	}
	for _, e := range oldGraph.Edges {
		if !newEdges[edgeKey(e)] {
			diff.RemovedEdges = append(diff.RemovedEdges, e.ID)
		}
	}

	if oldGraph.Viewport != newGraph.Viewport {
		vp := newGraph.Viewport
		diff.Viewport = &vp
	}

	if diff.IsEmpty() {
		return nil
	}
	return diff
}

func edgeKey(e FlowEdge) string {
	return e.ID + "|" + e.Source + "|" + e.Target
}

// samePayload compares payloads through their wire form, which is what the
// runtime observes.
func samePayload(a, b Payload) bool {
	ja, errA := a.MarshalJSON()
	jb, errB := b.MarshalJSON()
	if errA != nil || errB != nil {
		return reflect.DeepEqual(a, b)
	}
	return string(ja) == string(jb)
}

// IsEmpty checks if the diff contains any actionable changes.
func (d *GraphDiff) IsEmpty() bool {
	return len(d.AddedNodes) == 0 &&
		len(d.RemovedNodes) == 0 &&
		len(d.ChangedNodes) == 0 &&
		len(d.AddedEdges) == 0 &&
		len(d.RemovedEdges) == 0 &&
		d.Viewport == nil
}
