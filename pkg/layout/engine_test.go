package layout_test

import (
	"fmt"
	"math/rand"
	"testing"

	"github.com/agenciaboz-dev/bozchat-sub001/pkg/domain"
	"github.com/agenciaboz-dev/bozchat-sub001/pkg/graph"
	"github.com/agenciaboz-dev/bozchat-sub001/pkg/layout"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func randomTree(seed int64, size int) domain.FlowGraph {
	rng := rand.New(rand.NewSource(seed))
	g := graph.Default("oi")
	for len(g.Nodes) < size {
		src := g.Nodes[rng.Intn(len(g.Nodes))].ID
		g, _, _ = graph.AddChild(g, src, "")
	}
	return g
}

func TestEngine_SingleNode(t *testing.T) {
	e := layout.New(layout.Config{})
	out := e.Apply(graph.Default("oi"))
	assert.Equal(t, domain.Position{}, out.Nodes[0].Position)
}

func TestEngine_Empty(t *testing.T) {
	e := layout.New(layout.DefaultConfig())
	assert.Empty(t, e.Positions(nil, nil))
}

func TestEngine_RanksAndRows(t *testing.T) {
	cfg := layout.DefaultConfig()
	e := layout.New(cfg)

	g := graph.Default("oi")
	g, _, _ = graph.AddChild(g, "node_0", "") // node_1
	g, _, _ = graph.AddChild(g, "node_0", "") // node_2
	g, _, _ = graph.AddChild(g, "node_1", "") // node_3

	ranks := layout.Ranks(g.Nodes, g.Edges)
	assert.Equal(t, map[string]int{"node_0": 0, "node_1": 1, "node_2": 1, "node_3": 2}, ranks)

	pos := e.Positions(g.Nodes, g.Edges)
	row := cfg.NodeHeight + cfg.RankSep
	assert.Equal(t, 0.0, pos["node_0"].Y)
	assert.Equal(t, row, pos["node_1"].Y)
	assert.Equal(t, row, pos["node_2"].Y)
	assert.Equal(t, 2*row, pos["node_3"].Y)

	// Siblings keep their insertion order and the parent sits between them.
	assert.Less(t, pos["node_1"].X, pos["node_2"].X)
	assert.InDelta(t, (pos["node_1"].X+pos["node_2"].X)/2, pos["node_0"].X, 1e-9)
}

func TestEngine_Deterministic(t *testing.T) {
	e := layout.New(layout.DefaultConfig())
	g := randomTree(7, 40)

	// Prior positions must not influence the result.
	scrambled := g.Clone()
	for i := range scrambled.Nodes {
		scrambled.Nodes[i].Position = domain.Position{X: float64(i * 13), Y: -5}
	}
	assert.Equal(t, e.Positions(g.Nodes, g.Edges), e.Positions(scrambled.Nodes, scrambled.Edges))
	assert.Equal(t, e.Apply(g), e.Apply(e.Apply(g)))
}

func TestEngine_NoOverlapWithinRank(t *testing.T) {
	cfg := layout.DefaultConfig()
	e := layout.New(cfg)

	for seed := int64(1); seed <= 25; seed++ {
		t.Run(fmt.Sprintf("seed=%d", seed), func(t *testing.T) {
			g := randomTree(seed, 5+int(seed)*3)
			pos := e.Positions(g.Nodes, g.Edges)
			require.Len(t, pos, len(g.Nodes))

			byRow := map[float64][]float64{}
			minX := pos["node_0"].X
			for _, p := range pos {
				byRow[p.Y] = append(byRow[p.Y], p.X)
				minX = min(minX, p.X)
			}
			assert.InDelta(t, 0, minX, 1e-9, "layout is shifted to x=0")
			for y, xs := range byRow {
				for i := range xs {
					for j := i + 1; j < len(xs); j++ {
						d := xs[i] - xs[j]
						if d < 0 {
							d = -d
						}
						assert.GreaterOrEqual(t, d+1e-6, cfg.NodeWidth+cfg.NodeSep, "overlap in row %v", y)
					}
				}
			}
		})
	}
}

func TestEngine_MalformedGraph(t *testing.T) {
	e := layout.New(layout.DefaultConfig())
	nodes := []domain.FlowNode{
		{ID: "a"}, {ID: "b"}, {ID: "b"}, {ID: ""}, {ID: "c"}, {ID: "d"},
	}
	edges := []domain.FlowEdge{
		{Source: "a", Target: "ghost"},
		{Source: "a", Target: "a"},
		{Source: "b", Target: "c"},
		{Source: "c", Target: "b"},
		{Source: "a", Target: "d"},
		{Source: "a", Target: "d"},
	}

	var pos map[string]domain.Position
	require.NotPanics(t, func() { pos = e.Positions(nodes, edges) })
	assert.Len(t, pos, 4)

	ranks := layout.Ranks(nodes, edges)
	assert.Equal(t, 0, ranks["a"])
	assert.Equal(t, 1, ranks["d"])
	assert.Equal(t, 0, ranks["b"], "first node of a rootless cycle becomes a root")
	assert.Equal(t, 1, ranks["c"])
}

func TestEngine_IgnoresLoopTargets(t *testing.T) {
	e := layout.New(layout.DefaultConfig())
	g := randomTree(3, 12)
	looped, err := graph.MarkLoop(g, g.Nodes[11].ID, "node_0")
	require.NoError(t, err)
	assert.Equal(t, e.Positions(g.Nodes, g.Edges), e.Positions(looped.Nodes, looped.Edges))
}

func TestConfig_Defaults(t *testing.T) {
	e := layout.New(layout.Config{NodeWidth: 300})
	cfg := e.Config()
	assert.Equal(t, 300.0, cfg.NodeWidth)
	assert.Equal(t, layout.DefaultConfig().NodeHeight, cfg.NodeHeight)
	assert.Equal(t, layout.DefaultConfig().Sweeps, cfg.Sweeps)
}
