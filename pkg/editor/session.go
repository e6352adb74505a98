package editor

import (
	"context"
	"fmt"
	"log/slog"
	"slices"
	"sync"
	"time"

	"github.com/agenciaboz-dev/bozchat-sub001/internal/logging"
	"github.com/agenciaboz-dev/bozchat-sub001/pkg/domain"
	"github.com/agenciaboz-dev/bozchat-sub001/pkg/graph"
	"github.com/agenciaboz-dev/bozchat-sub001/pkg/inspector"
	"github.com/agenciaboz-dev/bozchat-sub001/pkg/layout"
	"github.com/agenciaboz-dev/bozchat-sub001/pkg/ports"
	"github.com/google/uuid"
)

// DefaultSaveTimeout bounds a background save.
const DefaultSaveTimeout = 10 * time.Second

// Session is the editing session of one bot. It owns the graph, the undo
// history, the armed loop source and the inspector. All methods are safe for
// concurrent use; the debounced save runs on its own goroutine.
type Session struct {
	botID string
	repo  ports.BotRepository

	mu         sync.Mutex
	graph      domain.FlowGraph
	history    []domain.Snapshot
	loopSource string
	closed     bool
	rev        uint64 // bumped by every applied mutation
	savedRev   uint64 // last rev the repository acknowledged
	report     graph.Report

	// saveMu serializes repository writes so the last save wins.
	saveMu sync.Mutex

	debounce    *Debouncer
	debounceFor time.Duration
	saveTimeout time.Duration
	engine      *layout.Engine
	inspector   *inspector.Inspector
	hooks       domain.EditorHooks
	logger      *slog.Logger
	now         func() time.Time
}

// Option configures a Session.
type Option func(*Session)

// WithLogger sets the session logger.
func WithLogger(logger *slog.Logger) Option {
	return func(s *Session) {
		s.logger = logger
	}
}

// WithLayout sets the layout engine.
func WithLayout(engine *layout.Engine) Option {
	return func(s *Session) {
		s.engine = engine
	}
}

// WithDebounce sets the quiet period before a scheduled save fires.
func WithDebounce(d time.Duration) Option {
	return func(s *Session) {
		s.debounceFor = d
	}
}

// WithSaveTimeout bounds background saves.
func WithSaveTimeout(d time.Duration) Option {
	return func(s *Session) {
		s.saveTimeout = d
	}
}

// WithHooks registers observability hooks. Multiple calls are merged.
func WithHooks(hooks domain.EditorHooks) Option {
	return func(s *Session) {
		s.hooks = s.hooks.Merge(hooks)
	}
}

// Open loads botID from repo and starts a session on it. A bot that was
// never edited starts from the default graph built from its trigger phrase;
// a stored instance is normalized and laid out.
func Open(ctx context.Context, repo ports.BotRepository, botID string, opts ...Option) (*Session, error) {
	bot, err := repo.Load(ctx, botID)
	if err != nil {
		return nil, fmt.Errorf("failed to open bot %s: %w", botID, err)
	}
	var g domain.FlowGraph
	fresh := bot.Instance == nil
	if fresh {
		g = graph.Default(bot.Trigger)
	} else {
		g = *bot.Instance
	}
	s := New(repo, botID, g, opts...)
	if fresh {
		s.logger.Info("Bot has no instance, starting from default graph", "bot_id", botID)
		s.mu.Lock()
		s.rev++
		s.mu.Unlock()
	}
	return s, nil
}

// New starts a session on g without loading anything. The graph is
// normalized and laid out; if normalization repaired it, the repaired graph
// is written on the next save.
func New(repo ports.BotRepository, botID string, g domain.FlowGraph, opts ...Option) *Session {
	s := &Session{
		botID:       botID,
		repo:        repo,
		debounceFor: DefaultDebounce,
		saveTimeout: DefaultSaveTimeout,
		logger:      logging.NewNop(),
		now:         time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	if s.engine == nil {
		s.engine = layout.New(layout.DefaultConfig())
	}
	s.debounce = NewDebouncer(s.debounceFor, s.saveInBackground)
	s.inspector = inspector.New(func(nodeID string, payload domain.Payload, current func() error) error {
		return s.mutate(context.Background(), domain.OpPayload, nodeID, false, func(g domain.FlowGraph) (domain.FlowGraph, error) {
			if err := current(); err != nil {
				return g, err
			}
			return graph.SetPayload(g, nodeID, payload)
		})
	})

	normalized, report := graph.Normalize(g)
	s.report = report
	if report.Changed() {
		s.logger.Warn("Repaired stored graph", "bot_id", botID, "report", report.String())
		s.rev++
	}
	laidOut, took := s.layout(normalized)
	s.graph = laidOut
	s.emitLayout(context.Background(), len(laidOut.Nodes), took)
	return s
}

// BotID returns the id of the edited bot.
func (s *Session) BotID() string { return s.botID }

// Report returns what normalization repaired when the session started.
func (s *Session) Report() graph.Report { return s.report }

// Inspector returns the session's node inspector.
func (s *Session) Inspector() *inspector.Inspector { return s.inspector }

// Graph returns a copy of the current graph.
func (s *Session) Graph() domain.FlowGraph {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.graph.Clone()
}

// Dirty reports whether the graph has changes the repository has not acknowledged.
func (s *Session) Dirty() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.rev != s.savedRev
}

// SavePending reports whether a debounced save is scheduled.
func (s *Session) SavePending() bool {
	return s.debounce.Pending()
}

// AddChild appends a node of kind under sourceID and returns it with its
// laid out position.
func (s *Session) AddChild(ctx context.Context, sourceID string, kind domain.NodeKind) (domain.FlowNode, error) {
	var added domain.FlowNode
	err := s.mutate(ctx, domain.OpAddChild, sourceID, true, func(g domain.FlowGraph) (domain.FlowGraph, error) {
		next, node, err := graph.AddChild(g, sourceID, kind)
		added = node
		return next, err
	})
	if err != nil {
		return domain.FlowNode{}, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if n, ok := s.graph.Node(added.ID); ok {
		added = n.Clone()
	}
	return added, nil
}

// DeleteSubtree removes nodeID and its descendants. The pre-delete graph is
// pushed onto the undo history first.
func (s *Session) DeleteSubtree(ctx context.Context, nodeID string) error {
	return s.mutate(ctx, domain.OpDeleteSubtree, nodeID, true, func(g domain.FlowGraph) (domain.FlowGraph, error) {
		next, err := graph.DeleteSubtree(g, nodeID)
		if err != nil {
			return g, err
		}
		s.history = append(s.history, domain.Snapshot{
			Graph:   g.Clone(),
			Reason:  domain.OpDeleteSubtree,
			NodeID:  nodeID,
			TakenAt: s.now(),
		})
		// Ids were renumbered.
		s.loopSource = ""
		s.inspector.Close()
		return next, nil
	})
}

// Connect adds the structural edge source -> target.
func (s *Session) Connect(ctx context.Context, sourceID, targetID string) error {
	return s.mutate(ctx, domain.OpConnect, sourceID, true, func(g domain.FlowGraph) (domain.FlowGraph, error) {
		return graph.Connect(g, sourceID, targetID)
	})
}

// UpdatePayload replaces the content of nodeID. Id, kind and edges never change.
func (s *Session) UpdatePayload(ctx context.Context, nodeID string, payload domain.Payload) error {
	return s.mutate(ctx, domain.OpPayload, nodeID, false, func(g domain.FlowGraph) (domain.FlowGraph, error) {
		return graph.SetPayload(g, nodeID, payload)
	})
}

// SetViewport stores the canvas viewport.
func (s *Session) SetViewport(ctx context.Context, vp domain.Viewport) error {
	return s.mutate(ctx, domain.OpViewport, "", false, func(g domain.FlowGraph) (domain.FlowGraph, error) {
		out := g.Clone()
		out.Viewport = vp
		return out, nil
	})
}

// Select opens nodeID in the inspector and returns its binding. The binding
// stops committing once the node is closed, another node is selected or a
// structural edit renumbers the graph.
func (s *Session) Select(nodeID string) (*inspector.Binding, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return nil, domain.ErrSessionClosed
	}
	node, ok := s.graph.Node(nodeID)
	if !ok {
		return nil, fmt.Errorf("select %q: %w", nodeID, domain.ErrNodeNotFound)
	}
	return s.inspector.Open(node), nil
}

// ArmLoop puts the session in loop picking mode with nodeID as source.
// Arming again replaces the source.
func (s *Session) ArmLoop(nodeID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return domain.ErrSessionClosed
	}
	if !s.graph.Has(nodeID) {
		return fmt.Errorf("arm loop on %q: %w", nodeID, domain.ErrNodeNotFound)
	}
	s.loopSource = nodeID
	return nil
}

// LoopSource returns the armed loop source.
func (s *Session) LoopSource() (string, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.loopSource, s.loopSource != ""
}

// CancelLoop leaves loop picking mode.
func (s *Session) CancelLoop() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.loopSource = ""
}

// PickLoopTarget makes the armed source loop back to targetID and disarms.
// On error the source stays armed so another target can be picked.
func (s *Session) PickLoopTarget(ctx context.Context, targetID string) error {
	source, armed := s.LoopSource()
	if !armed {
		return domain.ErrLoopNotArmed
	}
	err := s.mutate(ctx, domain.OpMarkLoop, source, false, func(g domain.FlowGraph) (domain.FlowGraph, error) {
		if s.loopSource != source {
			return g, fmt.Errorf("loop source changed to %q: %w", s.loopSource, domain.ErrLoopNotArmed)
		}
		next, err := graph.MarkLoop(g, source, targetID)
		if err != nil {
			return g, err
		}
		s.loopSource = ""
		return next, nil
	})
	if err == nil {
		s.logger.Debug("Loop marked", "bot_id", s.botID, "source", source, "target", targetID)
	}
	return err
}

// MarkLoop makes nodeID loop back to targetID without going through loop mode.
func (s *Session) MarkLoop(ctx context.Context, nodeID, targetID string) error {
	return s.mutate(ctx, domain.OpMarkLoop, nodeID, false, func(g domain.FlowGraph) (domain.FlowGraph, error) {
		return graph.MarkLoop(g, nodeID, targetID)
	})
}

// ClearLoop removes the loop target of nodeID.
func (s *Session) ClearLoop(ctx context.Context, nodeID string) error {
	return s.mutate(ctx, domain.OpClearLoop, nodeID, false, func(g domain.FlowGraph) (domain.FlowGraph, error) {
		return graph.ClearLoop(g, nodeID)
	})
}

// History returns the captured snapshots, newest last.
func (s *Session) History() []domain.Snapshot {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]domain.Snapshot, len(s.history))
	for i, snap := range s.history {
		snap.Graph = snap.Graph.Clone()
		out[i] = snap
	}
	return out
}

// Undo restores the most recent snapshot and saves immediately.
func (s *Session) Undo(ctx context.Context) error {
	s.mu.Lock()
	n := len(s.history)
	s.mu.Unlock()
	if n == 0 {
		return domain.ErrNothingToUndo
	}
	return s.Restore(ctx, n-1)
}

// Restore replaces the graph with snapshot i and drops it and every newer
// snapshot. The restored graph is saved immediately.
func (s *Session) Restore(ctx context.Context, i int) error {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return domain.ErrSessionClosed
	}
	if len(s.history) == 0 {
		s.mu.Unlock()
		return domain.ErrNothingToUndo
	}
	if i < 0 || i >= len(s.history) {
		s.mu.Unlock()
		return fmt.Errorf("restore snapshot %d of %d: index out of range", i, len(s.history))
	}
	snap := s.history[i]
	s.history = slices.Clip(s.history[:i])
	before := s.graph
	restored, took := s.layout(snap.Graph.Clone())
	s.graph = restored
	s.rev++
	s.loopSource = ""
	diff := domain.Diff(&before, &restored)
	s.mu.Unlock()

	s.inspector.Close()
	s.debounce.Cancel()
	s.emitLayout(ctx, len(restored.Nodes), took)
	s.emitMutation(ctx, domain.OpUndo, snap.NodeID, diff)
	s.logger.Info("Snapshot restored", "bot_id", s.botID, "reason", snap.Reason, "taken_at", snap.TakenAt)
	return s.save(ctx)
}

// Flush cancels the pending debounced save and saves synchronously.
func (s *Session) Flush(ctx context.Context) error {
	s.debounce.Cancel()
	return s.save(ctx)
}

// Close flushes pending changes and ends the session. Further mutations fail
// with domain.ErrSessionClosed. When the final save fails the session stays
// open, so the local graph is kept and Close can be retried. Closing twice is
// a no-op.
func (s *Session) Close(ctx context.Context) error {
	s.mu.Lock()
	closed := s.closed
	s.mu.Unlock()
	if closed {
		return nil
	}
	if err := s.Flush(ctx); err != nil {
		return err
	}

	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return nil
	}
	s.closed = true
	s.mu.Unlock()
	s.debounce.Stop()

	// Catches an edit that landed between the flush and the close.
	if err := s.save(ctx); err != nil {
		s.mu.Lock()
		s.closed = false
		s.mu.Unlock()
		s.debounce.Resume()
		return err
	}

	s.mu.Lock()
	s.loopSource = ""
	s.mu.Unlock()
	s.inspector.Close()
	return nil
}

// mutate applies fn to the graph under the session lock. Structural edits
// are laid out again. Successful mutations schedule a debounced save.
func (s *Session) mutate(ctx context.Context, op, nodeID string, structural bool, fn func(domain.FlowGraph) (domain.FlowGraph, error)) error {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return domain.ErrSessionClosed
	}
	before := s.graph
	next, err := fn(before)
	if err != nil {
		s.mu.Unlock()
		return err
	}
	var took time.Duration
	if structural {
		next, took = s.layout(next)
	}
	s.graph = next
	s.rev++
	diff := domain.Diff(&before, &next)
	s.mu.Unlock()

	s.debounce.Trigger()
	if structural {
		s.emitLayout(ctx, len(next.Nodes), took)
	}
	s.emitMutation(ctx, op, nodeID, diff)
	return nil
}

func (s *Session) layout(g domain.FlowGraph) (domain.FlowGraph, time.Duration) {
	start := time.Now()
	out := s.engine.Apply(g)
	return out, time.Since(start)
}

// Hooks run outside the session lock so they may read the session.
func (s *Session) emitLayout(ctx context.Context, nodes int, took time.Duration) {
	if s.hooks.OnLayout == nil {
		return
	}
	s.hooks.OnLayout(ctx, &domain.LayoutEvent{
		EventBase: s.base(domain.EventLayout),
		Nodes:     nodes,
		Duration:  took,
	})
}

func (s *Session) emitMutation(ctx context.Context, op, nodeID string, diff *domain.GraphDiff) {
	s.logger.Debug("Graph mutated", "bot_id", s.botID, "op", op, "node_id", nodeID)
	if s.hooks.OnMutation == nil {
		return
	}
	typ := domain.EventMutation
	if op == domain.OpUndo {
		typ = domain.EventUndo
	}
	s.hooks.OnMutation(ctx, &domain.MutationEvent{
		EventBase: s.base(typ),
		Op:        op,
		NodeID:    nodeID,
		Diff:      diff,
	})
}

func (s *Session) base(typ domain.EventType) domain.EventBase {
	return domain.EventBase{Timestamp: s.now(), Type: typ, BotID: s.botID}
}

func (s *Session) saveInBackground() {
	ctx, cancel := context.WithTimeout(context.Background(), s.saveTimeout)
	defer cancel()
	// Failures are logged and reported by save; the local graph stays authoritative.
	_ = s.save(ctx)
}

// save writes the current graph when it has unacknowledged changes.
func (s *Session) save(ctx context.Context) error {
	s.saveMu.Lock()
	defer s.saveMu.Unlock()

	s.mu.Lock()
	rev := s.rev
	if rev == s.savedRev {
		s.mu.Unlock()
		return nil
	}
	g := s.graph.Clone()
	s.mu.Unlock()

	revision := uuid.NewString()
	start := time.Now()
	err := s.repo.SaveInstance(ports.WithRevision(ctx, revision), s.botID, g)
	elapsed := time.Since(start)

	if s.hooks.OnSave != nil {
		s.hooks.OnSave(ctx, &domain.SaveEvent{
			EventBase: s.base(domain.EventSave),
			Revision:  revision,
			Nodes:     len(g.Nodes),
			Duration:  elapsed,
			Err:       err,
		})
	}
	if err != nil {
		s.logger.Warn("Failed to save bot instance",
			"bot_id", s.botID,
			"revision", revision,
			"err", err,
		)
		return fmt.Errorf("failed to save bot %s: %w", s.botID, err)
	}

	s.mu.Lock()
	if rev > s.savedRev {
		s.savedRev = rev
	}
	s.mu.Unlock()
	s.logger.Debug("Bot instance saved", "bot_id", s.botID, "revision", revision, "nodes", len(g.Nodes), "duration", elapsed)
	return nil
}
