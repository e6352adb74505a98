package domain

import (
	"encoding/json"
	"reflect"
	"strings"
	"testing"
)

func twoNodes() *FlowGraph {
	return &FlowGraph{
		Nodes: []FlowNode{
			{ID: "node_0", Kind: KindResponse, Payload: Payload{Text: "oi"}},
			{ID: "node_1", Kind: KindMessage, Payload: Payload{Text: "hello"}},
		},
		Edges:    []FlowEdge{{ID: EdgeID("node_0", "node_1"), Source: "node_0", Target: "node_1"}},
		Viewport: DefaultViewport,
	}
}

func TestDiff(t *testing.T) {
	tests := []struct {
		name     string
		old      *FlowGraph
		new      *FlowGraph
		wantDiff *GraphDiff // nil means we expect no diff
	}{
		{
			name: "Initial Load (Old is Nil)",
			old:  nil,
			new:  twoNodes(),
			wantDiff: &GraphDiff{
				AddedNodes: []string{"node_0", "node_1"},
				AddedEdges: []string{"enode_0-node_1"},
				Viewport:   &Viewport{Zoom: 1},
			},
		},
		{
			name:     "No Changes",
			old:      twoNodes(),
			new:      twoNodes(),
			wantDiff: nil,
		},
		{
			name: "Positions Are Ignored",
			old:  twoNodes(),
			new: func() *FlowGraph {
				g := twoNodes()
				g.Nodes[1].Position = Position{X: 300, Y: 200}
				return g
			}(),
			wantDiff: nil,
		},
		{
			name: "Payload Changed",
			old:  twoNodes(),
			new: func() *FlowGraph {
				g := twoNodes()
				g.Nodes[1].Payload.Text = "hello there"
				return g
			}(),
			wantDiff: &GraphDiff{ChangedNodes: []string{"node_1"}},
		},
		{
			name: "Subtree Removed",
			old:  twoNodes(),
			new: &FlowGraph{
				Nodes:    []FlowNode{{ID: "node_0", Kind: KindResponse, Payload: Payload{Text: "oi"}}},
				Viewport: DefaultViewport,
			},
			wantDiff: &GraphDiff{
				RemovedNodes: []string{"node_1"},
				RemovedEdges: []string{"enode_0-node_1"},
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := Diff(tt.old, tt.new)
			if tt.wantDiff == nil {
				if got != nil {
					t.Errorf("Diff() = %+v, want nil", got)
				}
				return
			}

			if got == nil {
				t.Fatalf("Diff() = nil, want %+v", tt.wantDiff)
			}
			if !reflect.DeepEqual(got, tt.wantDiff) {
				t.Errorf("Diff() = %+v, want %+v", got, tt.wantDiff)
			}
		})
	}
}

func TestDiffJSONSerialization(t *testing.T) {
	t.Run("Empty Lists Omitted", func(t *testing.T) {
		g := twoNodes()
		g.Nodes[1].Payload.Text = "changed"
		diff := Diff(twoNodes(), g)
		if diff == nil {
			t.Fatal("Expected diff, got nil")
		}

		bytes, _ := json.Marshal(diff)
		if strings.Contains(string(bytes), `"added_nodes"`) {
			t.Errorf("JSON should not contain 'added_nodes' when empty, got: %s", string(bytes))
		}
		if !strings.Contains(string(bytes), `"changed_nodes":["node_1"]`) {
			t.Errorf("JSON should list the changed node, got: %s", string(bytes))
		}
	})
}
