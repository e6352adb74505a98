/*
Package editor runs interactive editing sessions over a bot's conversation graph.

A Session owns the graph of one bot. Every edit goes through it:

  - Structural edits (AddChild, DeleteSubtree, Connect) are applied by package
    graph and laid out again by package layout.
  - Content edits (UpdatePayload, loop marking, viewport) leave the layout alone.
  - Each applied edit schedules a debounced save of the whole graph through a
    ports.BotRepository. Save failures are logged and reported to hooks; the
    local graph is never rolled back.
  - DeleteSubtree captures a snapshot first. Undo and Restore bring a snapshot
    back and save immediately.

Close flushes pending changes synchronously.
*/
package editor
