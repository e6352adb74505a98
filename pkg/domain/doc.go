/*
Package domain contains the core models of the bot flow editor.

It defines the conversation graph a bot runtime interprets, together with the
bot record it is persisted on. This package is kept pure and free of external
dependencies like I/O or persistence, following Hexagonal Architecture principles.

# Key Entities

  - FlowNode: a point in the graph, either an outgoing message or an expected user response.
  - FlowEdge: a structural parent to child relationship. Edges define the tree shape.
  - FlowGraph: nodes, edges and viewport. The unit of persistence.
  - Payload: the typed content of a node (text, media, post-send actions, loop target).
  - Snapshot: a full copy of a graph captured before a destructive edit.
  - Bot: the persisted record that carries the graph as its instance.

# Wire Format

FlowGraph marshals to the shape consumed by the bot runtime:

	{
	  "nodes": [{"id": "node_0", "type": "response", "position": {"x": 0, "y": 0}, "data": {"value": "oi"}}],
	  "edges": [{"id": "enode_0-node_1", "source": "node_0", "target": "node_1"}],
	  "viewport": {"x": 0, "y": 0, "zoom": 1}
	}

Fields the editor does not know about are kept in Extra maps and written back
unchanged.
*/
package domain
