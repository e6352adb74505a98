package http

import (
	"context"
	"encoding/json"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/agenciaboz-dev/bozchat-sub001/internal/logging"
	"github.com/agenciaboz-dev/bozchat-sub001/pkg/domain"
)

// StreamEvent is the payload of one server-sent event.
type StreamEvent struct {
	Type      domain.EventType  `json:"type"`
	BotID     string            `json:"bot_id"`
	Timestamp time.Time         `json:"timestamp"`
	Op        string            `json:"op,omitempty"`
	NodeID    string            `json:"node_id,omitempty"`
	Diff      *domain.GraphDiff `json:"diff,omitempty"`
	Revision  string            `json:"revision,omitempty"`
	Error     string            `json:"error,omitempty"`
}

// matches reports whether the event carries any of the watched fields.
// Known fields: nodes, edges, viewport, save.
func (e StreamEvent) matches(watch []string) bool {
	if len(watch) == 0 {
		return true
	}
	for _, field := range watch {
		switch strings.TrimSpace(field) {
		case "nodes":
			if e.Diff != nil && len(e.Diff.AddedNodes)+len(e.Diff.RemovedNodes)+len(e.Diff.ChangedNodes) > 0 {
				return true
			}
		case "edges":
			if e.Diff != nil && len(e.Diff.AddedEdges)+len(e.Diff.RemovedEdges) > 0 {
				return true
			}
		case "viewport":
			if e.Diff != nil && e.Diff.Viewport != nil {
				return true
			}
		case "save":
			if e.Type == domain.EventSave {
				return true
			}
		}
	}
	return false
}

// StreamManager handles active SSE connections
type StreamManager struct {
	mu          sync.RWMutex
	subscribers map[string]map[chan<- StreamEvent]struct{} // BotID -> Set of Channels
	logger      *slog.Logger
}

// NewStreamManager creates a stream manager. A nil logger discards logs.
func NewStreamManager(logger *slog.Logger) *StreamManager {
	if logger == nil {
		logger = logging.NewNop()
	}
	return &StreamManager{
		subscribers: make(map[string]map[chan<- StreamEvent]struct{}),
		logger:      logger,
	}
}

// Subscribe registers a listener for botID. The returned func unsubscribes
// and closes the channel.
func (sm *StreamManager) Subscribe(botID string) (<-chan StreamEvent, func()) {
	sm.mu.Lock()
	defer sm.mu.Unlock()

	ch := make(chan StreamEvent, 10)
	if _, ok := sm.subscribers[botID]; !ok {
		sm.subscribers[botID] = make(map[chan<- StreamEvent]struct{})
	}
	sm.subscribers[botID][ch] = struct{}{}

	return ch, func() {
		sm.mu.Lock()
		defer sm.mu.Unlock()
		if subs, ok := sm.subscribers[botID]; ok {
			if _, ok := subs[ch]; !ok {
				return
			}
			delete(subs, ch)
			close(ch)
			if len(subs) == 0 {
				delete(sm.subscribers, botID)
			}
		}
	}
}

// Subscribers returns the number of listeners of botID.
func (sm *StreamManager) Subscribers(botID string) int {
	sm.mu.RLock()
	defer sm.mu.RUnlock()
	return len(sm.subscribers[botID])
}

// Broadcast sends e to every listener of its bot. Slow listeners lose events.
func (sm *StreamManager) Broadcast(e StreamEvent) {
	sm.mu.RLock()
	defer sm.mu.RUnlock()

	subs, ok := sm.subscribers[e.BotID]
	if !ok {
		return
	}
	sm.logger.Debug("StreamManager: Broadcasting", "bot_id", e.BotID, "type", e.Type, "subscribers", len(subs))
	for ch := range subs {
		select {
		case ch <- e:
		default:
			// Drop message if channel is full (slow client)
			sm.logger.Warn("SSE: Client buffer full, dropping message", "bot_id", e.BotID)
		}
	}
}

// Hooks returns editor hooks that broadcast mutations and saves.
func (sm *StreamManager) Hooks() domain.EditorHooks {
	return domain.EditorHooks{
		OnMutation: func(_ context.Context, e *domain.MutationEvent) {
			sm.Broadcast(StreamEvent{
				Type:      e.Type,
				BotID:     e.BotID,
				Timestamp: e.Timestamp,
				Op:        e.Op,
				NodeID:    e.NodeID,
				Diff:      e.Diff,
			})
		},
		OnSave: func(_ context.Context, e *domain.SaveEvent) {
			ev := StreamEvent{
				Type:      e.Type,
				BotID:     e.BotID,
				Timestamp: e.Timestamp,
				Revision:  e.Revision,
			}
			if e.Err != nil {
				ev.Error = e.Err.Error()
			}
			sm.Broadcast(ev)
		},
	}
}

func encodeEvent(e StreamEvent) ([]byte, error) {
	return json.Marshal(e)
}
