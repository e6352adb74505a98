package domain

import (
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
)

// NodeKind distinguishes the two alternating node kinds of a conversation script.
type NodeKind string

const (
	// KindMessage is an outgoing message sent by the bot.
	KindMessage NodeKind = "message"
	// KindResponse is an expected user response. The root is always a response
	// holding the bot's trigger phrase.
	KindResponse NodeKind = "response"
)

// Valid reports whether k is one of the known kinds.
func (k NodeKind) Valid() bool {
	return k == KindMessage || k == KindResponse
}

// Opposite returns the kind that normally follows k in a conversation.
func (k NodeKind) Opposite() NodeKind {
	if k == KindMessage {
		return KindResponse
	}
	return KindMessage
}

// NodeIDPrefix is the prefix of every node id. The numeric suffix is the
// node's index in FlowGraph.Nodes.
const NodeIDPrefix = "node_"

// NodeID returns the id for the node at index i.
func NodeID(i int) string {
	return NodeIDPrefix + strconv.Itoa(i)
}

// NodeIndex parses the array index encoded in a node id.
func NodeIndex(id string) (int, bool) {
	rest, ok := strings.CutPrefix(id, NodeIDPrefix)
	if !ok {
		return 0, false
	}
	i, err := strconv.Atoi(rest)
	if err != nil || i < 0 {
		return 0, false
	}
	return i, true
}

// EdgeID returns the conventional id of the edge source -> target.
func EdgeID(source, target string) string {
	return fmt.Sprintf("e%s-%s", source, target)
}

// Position is a top-left canvas coordinate.
type Position struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
}

// Viewport is the pan and zoom of the editing surface. It is persisted so the
// editor reopens where it was left.
type Viewport struct {
	X    float64 `json:"x"`
	Y    float64 `json:"y"`
	Zoom float64 `json:"zoom"`
}

// DefaultViewport is used for freshly synthesized graphs.
var DefaultViewport = Viewport{Zoom: 1}

// FlowNode represents a point in the conversation graph.
type FlowNode struct {
	ID       string
	Kind     NodeKind
	Position Position
	Payload  Payload

	// Extra keeps unknown wire fields (e.g. width, selected) for round-tripping.
	Extra Extra
}

// Clone returns a deep copy of the node.
func (n FlowNode) Clone() FlowNode {
	n.Payload = n.Payload.Clone()
	n.Extra = n.Extra.Clone()
	return n
}

func (n FlowNode) MarshalJSON() ([]byte, error) {
	return joinObject(n.Extra, map[string]any{
		KeyID:       n.ID,
		KeyType:     n.Kind,
		KeyPosition: n.Position,
		KeyData:     n.Payload,
	})
}

func (n *FlowNode) UnmarshalJSON(data []byte) error {
	raw, err := splitObject(data)
	if err != nil {
		return err
	}
	*n = FlowNode{}
	if err := take(raw, KeyID, &n.ID); err != nil {
		return err
	}
	if err := take(raw, KeyType, &n.Kind); err != nil {
		return err
	}
	if err := take(raw, KeyPosition, &n.Position); err != nil {
		return err
	}
	if err := take(raw, KeyData, &n.Payload); err != nil {
		return err
	}
	n.Extra = leftover(raw)
	return nil
}

// FlowEdge is a structural parent -> child relationship.
type FlowEdge struct {
	ID       string
	Source   string
	Target   string
	Type     string
	Animated bool

	Extra Extra
}

// Clone returns a deep copy of the edge.
func (e FlowEdge) Clone() FlowEdge {
	e.Extra = e.Extra.Clone()
	return e
}

func (e FlowEdge) MarshalJSON() ([]byte, error) {
	known := map[string]any{
		KeyID:     e.ID,
		KeySource: e.Source,
		KeyTarget: e.Target,
	}
	if e.Type != "" {
		known[KeyType] = e.Type
	}
	if e.Animated {
		known[KeyAnimated] = true
	}
	return joinObject(e.Extra, known)
}

// UnmarshalJSON keeps a "type" or "animated" value that would not re-encode
// identically (null, "", false) in Extra, so it is written back as stored.
func (e *FlowEdge) UnmarshalJSON(data []byte) error {
	raw, err := splitObject(data)
	if err != nil {
		return err
	}
	*e = FlowEdge{}
	for key, dst := range map[string]any{
		KeyID:     &e.ID,
		KeySource: &e.Source,
		KeyTarget: &e.Target,
	} {
		if err := take(raw, key, dst); err != nil {
			return err
		}
	}
	if v, ok := raw[KeyType]; ok {
		var typ string
		if json.Unmarshal(v, &typ) == nil && typ != "" {
			e.Type = typ
			delete(raw, KeyType)
		}
	}
	if v, ok := raw[KeyAnimated]; ok {
		var animated bool
		if json.Unmarshal(v, &animated) == nil && animated {
			e.Animated = true
			delete(raw, KeyAnimated)
		}
	}
	e.Extra = leftover(raw)
	return nil
}

// FlowGraph is the unit of persistence: the full conversation script of a bot.
type FlowGraph struct {
	Nodes    []FlowNode
	Edges    []FlowEdge
	Viewport Viewport

	Extra Extra
}

// Clone returns a deep copy of the graph. Snapshots rely on this to stay
// independent of later edits.
func (g FlowGraph) Clone() FlowGraph {
	out := FlowGraph{
		Viewport: g.Viewport,
		Extra:    g.Extra.Clone(),
	}
	if g.Nodes != nil {
		out.Nodes = make([]FlowNode, len(g.Nodes))
		for i, n := range g.Nodes {
			out.Nodes[i] = n.Clone()
		}
	}
	if g.Edges != nil {
		out.Edges = make([]FlowEdge, len(g.Edges))
		for i, e := range g.Edges {
			out.Edges[i] = e.Clone()
		}
	}
	return out
}

// Node returns the node with the given id.
func (g FlowGraph) Node(id string) (FlowNode, bool) {
	if i := g.IndexOf(id); i >= 0 {
		return g.Nodes[i], true
	}
	return FlowNode{}, false
}

// IndexOf returns the array index of the node with the given id, or -1.
// The id suffix is tried first; a linear scan covers graphs whose ids are
// not sequential yet.
func (g FlowGraph) IndexOf(id string) int {
	if i, ok := NodeIndex(id); ok && i < len(g.Nodes) && g.Nodes[i].ID == id {
		return i
	}
	for i := range g.Nodes {
		if g.Nodes[i].ID == id {
			return i
		}
	}
	return -1
}

// Has reports whether a node with the given id exists.
func (g FlowGraph) Has(id string) bool {
	return g.IndexOf(id) >= 0
}

func (g FlowGraph) MarshalJSON() ([]byte, error) {
	nodes := g.Nodes
	if nodes == nil {
		nodes = []FlowNode{}
	}
	edges := g.Edges
	if edges == nil {
		edges = []FlowEdge{}
	}
	return joinObject(g.Extra, map[string]any{
		KeyNodes:    nodes,
		KeyEdges:    edges,
		KeyViewport: g.Viewport,
	})
}

func (g *FlowGraph) UnmarshalJSON(data []byte) error {
	raw, err := splitObject(data)
	if err != nil {
		return err
	}
	*g = FlowGraph{}
	if err := take(raw, KeyNodes, &g.Nodes); err != nil {
		return err
	}
	if err := take(raw, KeyEdges, &g.Edges); err != nil {
		return err
	}
	if err := take(raw, KeyViewport, &g.Viewport); err != nil {
		return err
	}
	g.Extra = leftover(raw)
	return nil
}

// ParseGraph decodes a persisted instance.
func ParseGraph(data []byte) (FlowGraph, error) {
	var g FlowGraph
	if err := json.Unmarshal(data, &g); err != nil {
		return FlowGraph{}, fmt.Errorf("failed to parse flow graph: %w", err)
	}
	return g, nil
}
