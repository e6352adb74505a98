package domain

import (
	"context"
	"time"
)

// EventType defines the category of the event.
type EventType string

const (
	EventMutation EventType = "mutation"
	EventSave     EventType = "save"
	EventUndo     EventType = "undo"
	EventLayout   EventType = "layout"
)

// Operation names carried by mutation events.
const (
	OpAddChild      = "add_child"
	OpDeleteSubtree = "delete_subtree"
	OpConnect       = "connect"
	OpPayload       = "payload"
	OpMarkLoop      = "mark_loop"
	OpClearLoop     = "clear_loop"
	OpViewport      = "viewport"
	OpUndo          = "undo"
)

// EventBase contains common fields for all events.
type EventBase struct {
	Timestamp time.Time `json:"timestamp"`
	Type      EventType `json:"type"`
	BotID     string    `json:"bot_id"`
}

// MutationEvent is emitted after a mutation was applied to a session's graph.
type MutationEvent struct {
	EventBase
	Op     string     `json:"op"`
	NodeID string     `json:"node_id,omitempty"`
	Diff   *GraphDiff `json:"diff,omitempty"`
}

// SaveEvent is emitted after a save attempt.
type SaveEvent struct {
	EventBase
	Revision string        `json:"revision"`
	Nodes    int           `json:"nodes"`
	Duration time.Duration `json:"duration"`
	Err      error         `json:"-"`
}

// LayoutEvent is emitted after the layout engine ran.
type LayoutEvent struct {
	EventBase
	Nodes    int           `json:"nodes"`
	Duration time.Duration `json:"duration"`
}

// EditorHooks defines callbacks for editor observability.
type EditorHooks struct {
	OnMutation func(context.Context, *MutationEvent)
	OnSave     func(context.Context, *SaveEvent)
	OnLayout   func(context.Context, *LayoutEvent)
}

// Merge returns hooks that call h first and then other.
func (h EditorHooks) Merge(other EditorHooks) EditorHooks {
	return EditorHooks{
		OnMutation: chain(h.OnMutation, other.OnMutation),
		OnSave:     chain(h.OnSave, other.OnSave),
		OnLayout:   chain(h.OnLayout, other.OnLayout),
	}
}

func chain[E any](a, b func(context.Context, E)) func(context.Context, E) {
	switch {
	case a == nil:
		return b
	case b == nil:
		return a
	}
	return func(ctx context.Context, e E) {
		a(ctx, e)
		b(ctx, e)
	}
}
