package editor_test

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/agenciaboz-dev/bozchat-sub001/pkg/adapters/memory"
	"github.com/agenciaboz-dev/bozchat-sub001/pkg/domain"
	"github.com/agenciaboz-dev/bozchat-sub001/pkg/editor"
	"github.com/agenciaboz-dev/bozchat-sub001/pkg/graph"
	"github.com/agenciaboz-dev/bozchat-sub001/pkg/ports"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// recordingRepo counts saves and can be switched to fail.
type recordingRepo struct {
	ports.BotRepository

	mu        sync.Mutex
	saves     int
	revisions []string
	fail      error
}

func (r *recordingRepo) SaveInstance(ctx context.Context, botID string, g domain.FlowGraph) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.saves++
	if rev, ok := ports.RevisionFrom(ctx); ok {
		r.revisions = append(r.revisions, rev)
	}
	if r.fail != nil {
		return r.fail
	}
	return r.BotRepository.SaveInstance(ctx, botID, g)
}

func (r *recordingRepo) count() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.saves
}

func (r *recordingRepo) setFail(err error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.fail = err
}

func newRepo(t *testing.T) (*recordingRepo, *memory.Store) {
	t.Helper()
	store := memory.NewStore(&domain.Bot{ID: "bot", Name: "Support", Trigger: "oi"})
	return &recordingRepo{BotRepository: store}, store
}

func storedInstance(t *testing.T, store *memory.Store) domain.FlowGraph {
	t.Helper()
	bot, err := store.Load(context.Background(), "bot")
	require.NoError(t, err)
	require.NotNil(t, bot.Instance, "instance was never saved")
	return *bot.Instance
}

func open(t *testing.T, repo ports.BotRepository, opts ...editor.Option) *editor.Session {
	t.Helper()
	opts = append([]editor.Option{editor.WithDebounce(time.Hour)}, opts...)
	s, err := editor.Open(context.Background(), repo, "bot", opts...)
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.Close(context.Background()) })
	return s
}

func ids(g domain.FlowGraph) []string {
	out := make([]string, len(g.Nodes))
	for i, n := range g.Nodes {
		out[i] = n.ID
	}
	return out
}

func TestOpen_DefaultGraphFromTrigger(t *testing.T) {
	repo, store := newRepo(t)
	s := open(t, repo)

	g := s.Graph()
	require.Len(t, g.Nodes, 1)
	assert.Equal(t, "node_0", g.Nodes[0].ID)
	assert.Equal(t, domain.KindResponse, g.Nodes[0].Kind)
	assert.Equal(t, "oi", g.Nodes[0].Payload.Text)
	assert.Empty(t, g.Edges)
	assert.True(t, s.Dirty(), "the synthesized graph is not stored yet")

	require.NoError(t, s.Close(context.Background()))
	assert.Len(t, storedInstance(t, store).Nodes, 1)
}

func TestOpen_BotNotFound(t *testing.T) {
	_, err := editor.Open(context.Background(), memory.NewStore(), "ghost")
	assert.ErrorIs(t, err, domain.ErrBotNotFound)
}

func TestOpen_RepairsStoredInstance(t *testing.T) {
	broken := domain.FlowGraph{
		Nodes: []domain.FlowNode{
			{ID: "node_0", Kind: domain.KindResponse, Payload: domain.Payload{Text: "oi"}},
			{ID: "node_1", Kind: domain.KindMessage},
		},
		Edges: []domain.FlowEdge{
			{ID: "enode_0-node_1", Source: "node_0", Target: "node_1"},
			{ID: "enode_0-node_9", Source: "node_0", Target: "node_9"},
		},
		Viewport: domain.DefaultViewport,
	}
	store := memory.NewStore(&domain.Bot{ID: "bot", Trigger: "oi", Instance: &broken})

	s := open(t, store)
	assert.Equal(t, 1, s.Report().DroppedEdges)
	assert.True(t, s.Dirty())
	require.NoError(t, graph.Validate(s.Graph()))
}

func TestSession_Scenario(t *testing.T) {
	repo, store := newRepo(t)
	s := open(t, repo)
	ctx := context.Background()

	n1, err := s.AddChild(ctx, "node_0", domain.KindMessage)
	require.NoError(t, err)
	assert.Equal(t, "node_1", n1.ID)
	assert.Greater(t, n1.Position.Y, 0.0, "returned node carries its laid out position")

	n2, err := s.AddChild(ctx, "node_1", domain.KindResponse)
	require.NoError(t, err)
	assert.Equal(t, "node_2", n2.ID)
	full := s.Graph()

	require.NoError(t, s.DeleteSubtree(ctx, "node_1"))
	g := s.Graph()
	assert.Equal(t, []string{"node_0"}, ids(g))
	assert.Empty(t, g.Edges)

	history := s.History()
	require.Len(t, history, 1)
	assert.Equal(t, domain.OpDeleteSubtree, history[0].Reason)
	assert.Equal(t, "node_1", history[0].NodeID)
	assert.Len(t, history[0].Graph.Nodes, 3)

	savesBefore := repo.count()
	require.NoError(t, s.Undo(ctx))
	assert.Equal(t, savesBefore+1, repo.count(), "undo saves without waiting for the debounce")
	assert.False(t, s.SavePending())
	assert.Empty(t, s.History())

	restored := s.Graph()
	assert.Equal(t, ids(full), ids(restored))
	assert.Equal(t, full.Edges, restored.Edges)
	assert.Len(t, storedInstance(t, store).Nodes, 3)

	assert.ErrorIs(t, s.Undo(ctx), domain.ErrNothingToUndo)
}

func TestSession_InvalidTargetsAreNoOps(t *testing.T) {
	repo, _ := newRepo(t)
	s := open(t, repo)
	ctx := context.Background()
	before := s.Graph()

	_, err := s.AddChild(ctx, "node_7", domain.KindMessage)
	assert.ErrorIs(t, err, domain.ErrNodeNotFound)
	assert.ErrorIs(t, s.DeleteSubtree(ctx, "node_7"), domain.ErrNodeNotFound)
	assert.ErrorIs(t, s.Connect(ctx, "node_0", "node_0"), domain.ErrTreeShape)

	assert.Equal(t, before, s.Graph())
	assert.Empty(t, s.History(), "failed deletes take no snapshot")
	assert.False(t, s.SavePending())
}

func TestSession_DebounceCollapsesSaves(t *testing.T) {
	repo, store := newRepo(t)
	s := open(t, repo, editor.WithDebounce(40*time.Millisecond))
	ctx := context.Background()

	for i := 0; i < 5; i++ {
		_, err := s.AddChild(ctx, "node_0", domain.KindMessage)
		require.NoError(t, err)
	}
	assert.True(t, s.SavePending())
	assert.Equal(t, 0, repo.count())

	assert.Eventually(t, func() bool { return repo.count() == 1 }, 2*time.Second, 5*time.Millisecond)
	time.Sleep(80 * time.Millisecond)
	assert.Equal(t, 1, repo.count(), "five mutations, one save")
	assert.Len(t, storedInstance(t, store).Nodes, 6, "the save carries the latest graph")
	assert.False(t, s.Dirty())
}

func TestSession_SaveFailureKeepsLocalGraph(t *testing.T) {
	repo, _ := newRepo(t)
	s := open(t, repo)
	ctx := context.Background()
	repo.setFail(errors.New("connection refused"))

	_, err := s.AddChild(ctx, "node_0", domain.KindMessage)
	require.NoError(t, err)

	err = s.Flush(ctx)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "connection refused")
	assert.Len(t, s.Graph().Nodes, 2, "local graph stays authoritative")
	assert.True(t, s.Dirty())

	repo.setFail(nil)
	require.NoError(t, s.Flush(ctx))
	assert.False(t, s.Dirty())
}

func TestSession_CloseFlushes(t *testing.T) {
	repo, store := newRepo(t)
	s, err := editor.Open(context.Background(), repo, "bot", editor.WithDebounce(time.Hour))
	require.NoError(t, err)
	ctx := context.Background()

	_, err = s.AddChild(ctx, "node_0", domain.KindMessage)
	require.NoError(t, err)
	require.True(t, s.SavePending())

	require.NoError(t, s.Close(ctx))
	assert.Equal(t, 1, repo.count())
	assert.Len(t, storedInstance(t, store).Nodes, 2)

	_, err = s.AddChild(ctx, "node_0", domain.KindMessage)
	assert.ErrorIs(t, err, domain.ErrSessionClosed)
	assert.NoError(t, s.Close(ctx), "closing twice is a no-op")
	assert.Equal(t, 1, repo.count())
}

func TestSession_FailedCloseKeepsSessionOpen(t *testing.T) {
	repo, store := newRepo(t)
	s, err := editor.Open(context.Background(), repo, "bot", editor.WithDebounce(time.Hour))
	require.NoError(t, err)
	ctx := context.Background()

	_, err = s.AddChild(ctx, "node_0", domain.KindMessage)
	require.NoError(t, err)

	repo.setFail(errors.New("network down"))
	err = s.Close(ctx)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "network down")
	assert.True(t, s.Dirty())

	_, err = s.AddChild(ctx, "node_1", domain.KindResponse)
	require.NoError(t, err, "the session is still open after a failed close")

	repo.setFail(nil)
	require.NoError(t, s.Close(ctx))
	assert.Len(t, storedInstance(t, store).Nodes, 3)
	_, err = s.AddChild(ctx, "node_0", domain.KindMessage)
	assert.ErrorIs(t, err, domain.ErrSessionClosed)
}

func TestSession_FlushSkipsCleanGraph(t *testing.T) {
	repo, _ := newRepo(t)
	s := open(t, repo)
	ctx := context.Background()

	require.NoError(t, s.Flush(ctx))
	require.NoError(t, s.Flush(ctx))
	assert.Equal(t, 1, repo.count(), "only the synthesized default graph is written")
	require.Len(t, repo.revisions, 1)
	assert.NotEmpty(t, repo.revisions[0])
}

func TestSession_LoopMode(t *testing.T) {
	repo, _ := newRepo(t)
	s := open(t, repo)
	ctx := context.Background()

	_, err := s.AddChild(ctx, "node_0", domain.KindMessage)
	require.NoError(t, err)
	_, err = s.AddChild(ctx, "node_1", domain.KindResponse)
	require.NoError(t, err)
	edges := len(s.Graph().Edges)

	assert.ErrorIs(t, s.PickLoopTarget(ctx, "node_0"), domain.ErrLoopNotArmed)
	assert.ErrorIs(t, s.ArmLoop("node_9"), domain.ErrNodeNotFound)

	require.NoError(t, s.ArmLoop("node_2"))
	assert.ErrorIs(t, s.PickLoopTarget(ctx, "node_2"), domain.ErrSelfLoop)
	src, armed := s.LoopSource()
	assert.True(t, armed, "a failed pick keeps the source armed")
	assert.Equal(t, "node_2", src)

	require.NoError(t, s.PickLoopTarget(ctx, "node_0"))
	_, armed = s.LoopSource()
	assert.False(t, armed)

	g := s.Graph()
	n2, _ := g.Node("node_2")
	assert.Equal(t, "node_0", n2.Payload.LoopTargetID)
	assert.Len(t, g.Edges, edges, "loops never create edges")

	require.NoError(t, s.ClearLoop(ctx, "node_2"))
	n2, _ = s.Graph().Node("node_2")
	assert.False(t, n2.Payload.HasLoop())

	require.NoError(t, s.ArmLoop("node_1"))
	s.CancelLoop()
	assert.ErrorIs(t, s.PickLoopTarget(ctx, "node_0"), domain.ErrLoopNotArmed)
}

func TestSession_DeleteClearsLoopsIntoSubtree(t *testing.T) {
	repo, _ := newRepo(t)
	s := open(t, repo)
	ctx := context.Background()

	_, _ = s.AddChild(ctx, "node_0", domain.KindMessage) // node_1
	_, _ = s.AddChild(ctx, "node_0", domain.KindMessage) // node_2
	require.NoError(t, s.MarkLoop(ctx, "node_2", "node_1"))

	require.NoError(t, s.DeleteSubtree(ctx, "node_1"))
	g := s.Graph()
	assert.Equal(t, []string{"node_0", "node_1"}, ids(g))
	n1, _ := g.Node("node_1")
	assert.False(t, n1.Payload.HasLoop(), "the loop target was deleted")
}

func TestSession_InspectorWriteBack(t *testing.T) {
	repo, _ := newRepo(t)
	s := open(t, repo)
	ctx := context.Background()
	_, err := s.AddChild(ctx, "node_0", domain.KindMessage)
	require.NoError(t, err)
	require.NoError(t, s.Flush(ctx))

	_, err = s.Select("node_5")
	assert.ErrorIs(t, err, domain.ErrNodeNotFound)

	b, err := s.Select("node_1")
	require.NoError(t, err)
	payload := domain.Payload{
		Text:    "Hello!",
		Actions: []domain.Action{domain.NewAction(domain.TargetForwardBoard)},
	}
	payload = b.OnChange(payload)
	assert.True(t, payload.Actions[0].Misconfigured)

	require.NoError(t, b.OnSave("node_1", payload))
	n, _ := s.Graph().Node("node_1")
	assert.Equal(t, "Hello!", n.Payload.Text)
	assert.True(t, n.Payload.Misconfigured())
	assert.Equal(t, domain.KindMessage, n.Kind, "content writes never change the kind")
	assert.True(t, s.Dirty())

	require.NoError(t, s.DeleteSubtree(ctx, "node_1"))
	assert.Equal(t, "closed", string(s.Inspector().State()), "deleting renumbers ids and closes the inspector")
}

func TestSession_StaleBindingCannotWriteRenumberedNode(t *testing.T) {
	repo, _ := newRepo(t)
	s := open(t, repo)
	ctx := context.Background()
	_, err := s.AddChild(ctx, "node_0", domain.KindMessage)
	require.NoError(t, err)
	_, err = s.AddChild(ctx, "node_0", domain.KindMessage)
	require.NoError(t, err)
	require.NoError(t, s.UpdatePayload(ctx, "node_2", domain.Payload{Text: "keep me"}))

	first, err := s.Select("node_1")
	require.NoError(t, err)
	_, err = s.Select("node_0")
	require.NoError(t, err)
	_, err = s.Select("node_2")
	require.NoError(t, err)
	require.NoError(t, s.DeleteSubtree(ctx, "node_1"))

	// node_2 was renumbered to node_1.
	err = first.OnSave("node_1", domain.Payload{Text: "edit of deleted node_1"})
	assert.ErrorIs(t, err, domain.ErrBindingClosed)
	n, ok := s.Graph().Node("node_1")
	require.True(t, ok)
	assert.Equal(t, "keep me", n.Payload.Text)

	// A binding opened after the delete writes normally.
	b, err := s.Select("node_1")
	require.NoError(t, err)
	require.NoError(t, b.OnSave("node_1", domain.Payload{Text: "edited"}))
	n, _ = s.Graph().Node("node_1")
	assert.Equal(t, "edited", n.Payload.Text)
}

func TestSession_Restore(t *testing.T) {
	repo, _ := newRepo(t)
	s := open(t, repo)
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		_, err := s.AddChild(ctx, "node_0", domain.KindMessage)
		require.NoError(t, err)
	}
	require.NoError(t, s.DeleteSubtree(ctx, "node_3"))
	require.NoError(t, s.DeleteSubtree(ctx, "node_2"))
	require.NoError(t, s.DeleteSubtree(ctx, "node_1"))
	require.Len(t, s.History(), 3)

	assert.Error(t, s.Restore(ctx, 3))
	require.NoError(t, s.Restore(ctx, 0))
	assert.Len(t, s.Graph().Nodes, 4)
	assert.Empty(t, s.History(), "restoring drops the snapshot and every newer one")
}

func TestSession_Hooks(t *testing.T) {
	repo, _ := newRepo(t)
	var mu sync.Mutex
	var ops []string
	var saves, layouts int
	hooks := domain.EditorHooks{
		OnMutation: func(_ context.Context, e *domain.MutationEvent) {
			mu.Lock()
			defer mu.Unlock()
			ops = append(ops, e.Op)
		},
		OnSave: func(_ context.Context, e *domain.SaveEvent) {
			mu.Lock()
			defer mu.Unlock()
			saves++
		},
		OnLayout: func(_ context.Context, e *domain.LayoutEvent) {
			mu.Lock()
			defer mu.Unlock()
			layouts++
		},
	}
	s := open(t, repo, editor.WithHooks(hooks))
	ctx := context.Background()

	_, err := s.AddChild(ctx, "node_0", domain.KindMessage)
	require.NoError(t, err)
	require.NoError(t, s.SetViewport(ctx, domain.Viewport{X: 5, Zoom: 2}))
	require.NoError(t, s.DeleteSubtree(ctx, "node_1"))
	require.NoError(t, s.Undo(ctx))

	mu.Lock()
	defer mu.Unlock()
	assert.Equal(t, []string{domain.OpAddChild, domain.OpViewport, domain.OpDeleteSubtree, domain.OpUndo}, ops)
	assert.Equal(t, 1, saves)
	assert.Equal(t, 4, layouts, "open, add, delete and undo lay out; the viewport does not")
}

func TestSession_PickLoopTargetReportsSource(t *testing.T) {
	repo, _ := newRepo(t)
	var mu sync.Mutex
	var events []domain.MutationEvent
	hooks := domain.EditorHooks{
		OnMutation: func(_ context.Context, e *domain.MutationEvent) {
			mu.Lock()
			defer mu.Unlock()
			events = append(events, *e)
		},
	}
	s := open(t, repo, editor.WithHooks(hooks))
	ctx := context.Background()

	_, err := s.AddChild(ctx, "node_0", domain.KindMessage)
	require.NoError(t, err)
	require.NoError(t, s.ArmLoop("node_1"))
	require.NoError(t, s.PickLoopTarget(ctx, "node_0"))

	mu.Lock()
	defer mu.Unlock()
	require.Len(t, events, 2)
	last := events[1]
	assert.Equal(t, domain.OpMarkLoop, last.Op)
	assert.Equal(t, "node_1", last.NodeID, "the event names the node whose payload changed")
	require.NotNil(t, last.Diff)
	assert.Equal(t, []string{"node_1"}, last.Diff.ChangedNodes)
}
