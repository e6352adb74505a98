package graph_test

import (
	"errors"
	"testing"

	"github.com/agenciaboz-dev/bozchat-sub001/pkg/domain"
	"github.com/agenciaboz-dev/bozchat-sub001/pkg/graph"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestValidate(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(g *domain.FlowGraph)
		want   string
	}{
		{
			name:   "valid",
			mutate: func(g *domain.FlowGraph) {},
		},
		{
			name:   "empty",
			mutate: func(g *domain.FlowGraph) { g.Nodes = nil; g.Edges = nil },
			want:   "no nodes",
		},
		{
			name:   "gap in ids",
			mutate: func(g *domain.FlowGraph) { g.Nodes[2].ID = "node_7"; g.Edges[1].Target = "node_7" },
			want:   "does not match position 2",
		},
		{
			name:   "dangling edge",
			mutate: func(g *domain.FlowGraph) { g.Edges = append(g.Edges, domain.FlowEdge{Source: "node_1", Target: "node_9"}) },
			want:   `target "node_9" does not exist`,
		},
		{
			name: "second parent",
			mutate: func(g *domain.FlowGraph) {
				g.Edges = append(g.Edges, domain.FlowEdge{Source: "node_0", Target: "node_2"})
			},
			want: "2 incoming edges",
		},
		{
			name:   "message root",
			mutate: func(g *domain.FlowGraph) { g.Nodes[0].Kind = domain.KindMessage },
			want:   "root must be a response node",
		},
		{
			name:   "dangling loop",
			mutate: func(g *domain.FlowGraph) { g.Nodes[1].Payload.LoopTargetID = "node_42" },
			want:   `loop target "node_42" does not exist`,
		},
		{
			name:   "unknown kind",
			mutate: func(g *domain.FlowGraph) { g.Nodes[1].Kind = "sticker" },
			want:   `unknown kind "sticker"`,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			g := chain(3)
			tt.mutate(&g)
			err := graph.Validate(g)
			if tt.want == "" {
				assert.NoError(t, err)
				return
			}
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.want)

			var aggr *graph.AggregateError
			require.True(t, errors.As(err, &aggr))
			assert.NotEmpty(t, graph.ValidationErrors(err))
		})
	}
}

func TestAggregateError_Format(t *testing.T) {
	err := &graph.AggregateError{Errors: []error{
		&graph.ValidationError{Ref: "node_1", Reason: "first"},
		&graph.ValidationError{Reason: "second"},
	}}
	assert.Equal(t, "2 validation errors:\n  1. node_1: first\n  2. second\n", err.Error())
	assert.Nil(t, graph.ValidationErrors(errors.New("plain")))
}

func TestQueries(t *testing.T) {
	g := chain(3)
	g, _, _ = graph.AddChild(g, "node_0", "")

	root, ok := graph.Root(g)
	require.True(t, ok)
	assert.Equal(t, "node_0", root)
	assert.Equal(t, []string{"node_1", "node_3"}, graph.Children(g, "node_0"))

	parent, ok := graph.Parent(g, "node_2")
	require.True(t, ok)
	assert.Equal(t, "node_1", parent)
	_, ok = graph.Parent(g, "node_0")
	assert.False(t, ok)

	assert.Equal(t, map[string]bool{"node_1": true, "node_2": true}, graph.Reachable(g, "node_1"))

	assert.True(t, graph.Resolves(g, domain.ActiveBot{CurrentNodeID: "node_3"}))
	assert.False(t, graph.Resolves(g, domain.ActiveBot{CurrentNodeID: "node_4"}))
	assert.False(t, graph.Resolves(g, domain.ActiveBot{}))
}
