package graph

import (
	"fmt"

	"github.com/agenciaboz-dev/bozchat-sub001/pkg/domain"
)

// SetPayload replaces the payload of nodeID. Id, kind and edges are left
// untouched. Action flags are recomputed; a loop target that does not
// resolve is dropped.
func SetPayload(g domain.FlowGraph, nodeID string, payload domain.Payload) (domain.FlowGraph, error) {
	i := g.IndexOf(nodeID)
	if i < 0 {
		return g, fmt.Errorf("set payload of %q: %w", nodeID, domain.ErrNodeNotFound)
	}
	out := g.Clone()
	p := payload.Clone()
	p.Refresh()
	if p.LoopTargetID != "" && (p.LoopTargetID == nodeID || !out.Has(p.LoopTargetID)) {
		p.LoopTargetID = ""
	}
	out.Nodes[i].Payload = p
	return out, nil
}

// MarkLoop makes nodeID loop back to targetID. No edge is created.
func MarkLoop(g domain.FlowGraph, nodeID, targetID string) (domain.FlowGraph, error) {
	i := g.IndexOf(nodeID)
	if i < 0 || !g.Has(targetID) {
		return g, fmt.Errorf("loop %q -> %q: %w", nodeID, targetID, domain.ErrNodeNotFound)
	}
	if nodeID == targetID {
		return g, fmt.Errorf("loop %q: %w", nodeID, domain.ErrSelfLoop)
	}
	out := g.Clone()
	out.Nodes[i].Payload.LoopTargetID = targetID
	return out, nil
}

// ClearLoop removes the loop target of nodeID, if any.
func ClearLoop(g domain.FlowGraph, nodeID string) (domain.FlowGraph, error) {
	i := g.IndexOf(nodeID)
	if i < 0 {
		return g, fmt.Errorf("clear loop of %q: %w", nodeID, domain.ErrNodeNotFound)
	}
	out := g.Clone()
	out.Nodes[i].Payload.LoopTargetID = ""
	return out, nil
}
