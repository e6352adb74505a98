/*
Package bozchat is the editing core of the bozchat visual bot builder.

A bot's conversation script is a tree of alternating nodes: outgoing messages
the bot sends and user responses it waits for. The root is always a response
holding the bot's trigger phrase. Nodes may also loop back to an earlier node,
a non-structural reference the bot runtime follows after the node fires.

# Packages

  - pkg/domain: the graph model and its lossless JSON codec.
  - pkg/graph: pure structural edits (add child, delete subtree, connect),
    normalization and validation.
  - pkg/layout: the layered layout engine.
  - pkg/inspector: node selection and content binding.
  - pkg/editor: editing sessions with debounced saves and snapshot undo.
  - pkg/session: one session per bot.
  - pkg/ports and pkg/adapters: bot repositories (memory, file, redis, sqlite,
    mongo, remote HTTP) and the HTTP and MCP surfaces.

# Usage

	store := memory.NewStore(&domain.Bot{ID: "support", Trigger: "oi"})
	s, err := editor.Open(ctx, store, "support")
	if err != nil {
		log.Fatal(err)
	}
	defer s.Close(ctx)

	msg, _ := s.AddChild(ctx, "node_0", domain.KindMessage)
	_, _ = s.AddChild(ctx, msg.ID, domain.KindResponse)
	_ = s.DeleteSubtree(ctx, msg.ID) // captured for Undo
	_ = s.Undo(ctx)

The cmd/bozchat binary serves the same operations over HTTP and MCP.
*/
package bozchat
