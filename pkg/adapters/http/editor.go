package http

import (
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/agenciaboz-dev/bozchat-sub001/pkg/domain"
	"github.com/agenciaboz-dev/bozchat-sub001/pkg/editor"
	"github.com/agenciaboz-dev/bozchat-sub001/pkg/graph"
	"github.com/go-chi/chi/v5"
	"github.com/oapi-codegen/runtime"
)

// MutationResponse is returned by every edit. Graph is the graph after the edit.
type MutationResponse struct {
	Changed bool              `json:"changed"`
	Node    *domain.FlowNode  `json:"node,omitempty"`
	Graph   *domain.FlowGraph `json:"graph,omitempty"`
	// Saved is set by operations that save synchronously.
	Saved *bool  `json:"saved,omitempty"`
	Error string `json:"error,omitempty"`
}

// AddChildRequest is the body of POST /bots/{botID}/nodes.
type AddChildRequest struct {
	SourceID string          `json:"sourceId"`
	Kind     domain.NodeKind `json:"kind"`
}

// ConnectRequest is the body of POST /bots/{botID}/edges.
type ConnectRequest struct {
	SourceID string `json:"sourceId"`
	TargetID string `json:"targetId"`
}

// LoopRequest is the body of the loop endpoints.
type LoopRequest struct {
	SourceID string `json:"sourceId,omitempty"`
	TargetID string `json:"targetId,omitempty"`
}

// SnapshotInfo describes one undo snapshot.
type SnapshotInfo struct {
	Index   int       `json:"index"`
	Reason  string    `json:"reason"`
	NodeID  string    `json:"node_id,omitempty"`
	Nodes   int       `json:"nodes"`
	TakenAt time.Time `json:"taken_at"`
}

// ValidationResponse lists invariant violations of the current graph.
type ValidationResponse struct {
	Valid    bool     `json:"valid"`
	Findings []string `json:"findings,omitempty"`
}

func (s *Server) session(w http.ResponseWriter, r *http.Request) (*editor.Session, bool) {
	sess, err := s.Sessions.Open(r.Context(), chi.URLParam(r, "botID"))
	if err != nil {
		s.writeError(w, r, err)
		return nil, false
	}
	return sess, true
}

func (s *Server) changed(w http.ResponseWriter, sess *editor.Session, node *domain.FlowNode) {
	g := sess.Graph()
	s.writeJSON(w, http.StatusOK, MutationResponse{Changed: true, Node: node, Graph: &g})
}

// GetGraph handles GET /bots/{botID}/graph.
func (s *Server) GetGraph(w http.ResponseWriter, r *http.Request) {
	sess, ok := s.session(w, r)
	if !ok {
		return
	}
	s.writeJSON(w, http.StatusOK, sess.Graph())
}

// Validate handles GET /bots/{botID}/validate.
func (s *Server) Validate(w http.ResponseWriter, r *http.Request) {
	sess, ok := s.session(w, r)
	if !ok {
		return
	}
	resp := ValidationResponse{Valid: true}
	for _, err := range graph.ValidationErrors(graph.Validate(sess.Graph())) {
		resp.Valid = false
		resp.Findings = append(resp.Findings, err.Error())
	}
	s.writeJSON(w, http.StatusOK, resp)
}

// AddChild handles POST /bots/{botID}/nodes.
func (s *Server) AddChild(w http.ResponseWriter, r *http.Request) {
	var body AddChildRequest
	if err := decode(w, r, &body); err != nil {
		s.badRequest(w, err)
		return
	}
	sess, ok := s.session(w, r)
	if !ok {
		return
	}
	node, err := sess.AddChild(r.Context(), body.SourceID, body.Kind)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	g := sess.Graph()
	s.writeJSON(w, http.StatusCreated, MutationResponse{Changed: true, Node: &node, Graph: &g})
}

// DeleteSubtree handles DELETE /bots/{botID}/nodes/{nodeID}.
func (s *Server) DeleteSubtree(w http.ResponseWriter, r *http.Request) {
	sess, ok := s.session(w, r)
	if !ok {
		return
	}
	if err := sess.DeleteSubtree(r.Context(), chi.URLParam(r, "nodeID")); err != nil {
		s.writeError(w, r, err)
		return
	}
	s.changed(w, sess, nil)
}

// Connect handles POST /bots/{botID}/edges.
func (s *Server) Connect(w http.ResponseWriter, r *http.Request) {
	var body ConnectRequest
	if err := decode(w, r, &body); err != nil {
		s.badRequest(w, err)
		return
	}
	sess, ok := s.session(w, r)
	if !ok {
		return
	}
	if err := sess.Connect(r.Context(), body.SourceID, body.TargetID); err != nil {
		s.writeError(w, r, err)
		return
	}
	s.changed(w, sess, nil)
}

// UpdatePayload handles PUT /bots/{botID}/nodes/{nodeID}/payload. The body
// is the node's data object.
func (s *Server) UpdatePayload(w http.ResponseWriter, r *http.Request) {
	var payload domain.Payload
	if err := decode(w, r, &payload); err != nil {
		s.badRequest(w, err)
		return
	}
	sess, ok := s.session(w, r)
	if !ok {
		return
	}
	nodeID := chi.URLParam(r, "nodeID")
	if err := sess.UpdatePayload(r.Context(), nodeID, payload); err != nil {
		s.writeError(w, r, err)
		return
	}
	node, _ := sess.Graph().Node(nodeID)
	s.changed(w, sess, &node)
}

// MarkLoop handles POST /bots/{botID}/nodes/{nodeID}/loop.
func (s *Server) MarkLoop(w http.ResponseWriter, r *http.Request) {
	var body LoopRequest
	if err := decode(w, r, &body); err != nil {
		s.badRequest(w, err)
		return
	}
	sess, ok := s.session(w, r)
	if !ok {
		return
	}
	if err := sess.MarkLoop(r.Context(), chi.URLParam(r, "nodeID"), body.TargetID); err != nil {
		s.writeError(w, r, err)
		return
	}
	s.changed(w, sess, nil)
}

// ClearLoop handles DELETE /bots/{botID}/nodes/{nodeID}/loop.
func (s *Server) ClearLoop(w http.ResponseWriter, r *http.Request) {
	sess, ok := s.session(w, r)
	if !ok {
		return
	}
	if err := sess.ClearLoop(r.Context(), chi.URLParam(r, "nodeID")); err != nil {
		s.writeError(w, r, err)
		return
	}
	s.changed(w, sess, nil)
}

// ArmLoop handles POST /bots/{botID}/loop.
func (s *Server) ArmLoop(w http.ResponseWriter, r *http.Request) {
	var body LoopRequest
	if err := decode(w, r, &body); err != nil {
		s.badRequest(w, err)
		return
	}
	sess, ok := s.session(w, r)
	if !ok {
		return
	}
	if err := sess.ArmLoop(body.SourceID); err != nil {
		s.writeError(w, r, err)
		return
	}
	s.writeJSON(w, http.StatusOK, map[string]string{"armed": body.SourceID})
}

// PickLoopTarget handles POST /bots/{botID}/loop/target.
func (s *Server) PickLoopTarget(w http.ResponseWriter, r *http.Request) {
	var body LoopRequest
	if err := decode(w, r, &body); err != nil {
		s.badRequest(w, err)
		return
	}
	sess, ok := s.session(w, r)
	if !ok {
		return
	}
	if err := sess.PickLoopTarget(r.Context(), body.TargetID); err != nil {
		s.writeError(w, r, err)
		return
	}
	s.changed(w, sess, nil)
}

// CancelLoop handles DELETE /bots/{botID}/loop.
func (s *Server) CancelLoop(w http.ResponseWriter, r *http.Request) {
	sess, ok := s.session(w, r)
	if !ok {
		return
	}
	sess.CancelLoop()
	w.WriteHeader(http.StatusNoContent)
}

// SetViewport handles PUT /bots/{botID}/viewport.
func (s *Server) SetViewport(w http.ResponseWriter, r *http.Request) {
	var vp domain.Viewport
	if err := decode(w, r, &vp); err != nil {
		s.badRequest(w, err)
		return
	}
	sess, ok := s.session(w, r)
	if !ok {
		return
	}
	if err := sess.SetViewport(r.Context(), vp); err != nil {
		s.writeError(w, r, err)
		return
	}
	s.changed(w, sess, nil)
}

// GetHistory handles GET /bots/{botID}/history.
func (s *Server) GetHistory(w http.ResponseWriter, r *http.Request) {
	sess, ok := s.session(w, r)
	if !ok {
		return
	}
	history := sess.History()
	out := make([]SnapshotInfo, len(history))
	for i, snap := range history {
		out[i] = SnapshotInfo{
			Index:   i,
			Reason:  snap.Reason,
			NodeID:  snap.NodeID,
			Nodes:   len(snap.Graph.Nodes),
			TakenAt: snap.TakenAt,
		}
	}
	s.writeJSON(w, http.StatusOK, out)
}

// Undo handles POST /bots/{botID}/undo.
func (s *Server) Undo(w http.ResponseWriter, r *http.Request) {
	sess, ok := s.session(w, r)
	if !ok {
		return
	}
	s.restored(w, r, sess, sess.Undo(r.Context()))
}

// Restore handles POST /bots/{botID}/history/{index}/restore.
func (s *Server) Restore(w http.ResponseWriter, r *http.Request) {
	var index int
	err := runtime.BindStyledParameterWithOptions("simple", "index", chi.URLParam(r, "index"), &index, runtime.BindStyledParameterOptions{
		ParamLocation: runtime.ParamLocationPath,
		Explode:       false,
		Required:      true,
	})
	if err != nil {
		s.badRequest(w, fmt.Errorf("invalid snapshot index: %w", err))
		return
	}
	sess, ok := s.session(w, r)
	if !ok {
		return
	}
	if index < 0 || index >= len(sess.History()) {
		s.writeJSON(w, http.StatusNotFound, errorResponse{Error: fmt.Sprintf("no snapshot %d", index)})
		return
	}
	s.restored(w, r, sess, sess.Restore(r.Context(), index))
}

// restored answers an undo. The graph is restored locally even when the
// immediate save fails; that case is reported with saved=false.
func (s *Server) restored(w http.ResponseWriter, r *http.Request, sess *editor.Session, err error) {
	if errors.Is(err, domain.ErrNothingToUndo) || errors.Is(err, domain.ErrSessionClosed) {
		s.writeError(w, r, err)
		return
	}
	saved := err == nil
	g := sess.Graph()
	resp := MutationResponse{Changed: true, Graph: &g, Saved: &saved}
	if err != nil {
		resp.Error = err.Error()
	}
	s.writeJSON(w, http.StatusOK, resp)
}

// Flush handles POST /bots/{botID}/flush.
func (s *Server) Flush(w http.ResponseWriter, r *http.Request) {
	sess, ok := s.session(w, r)
	if !ok {
		return
	}
	if err := sess.Flush(r.Context()); err != nil {
		s.logger.Warn("Flush failed", "bot_id", sess.BotID(), "err", err)
		s.writeJSON(w, http.StatusBadGateway, errorResponse{Error: err.Error()})
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// CloseSession handles DELETE /bots/{botID}/session.
func (s *Server) CloseSession(w http.ResponseWriter, r *http.Request) {
	if err := s.Sessions.Close(r.Context(), chi.URLParam(r, "botID")); err != nil {
		s.logger.Warn("Close failed", "bot_id", chi.URLParam(r, "botID"), "err", err)
		s.writeJSON(w, http.StatusBadGateway, errorResponse{Error: err.Error()})
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// SubscribeEvents handles GET /bots/{botID}/events (SSE). The optional
// watch query parameter filters events by field: nodes, edges, viewport, save.
func (s *Server) SubscribeEvents(w http.ResponseWriter, r *http.Request) {
	flusher, ok := w.(http.Flusher)
	if !ok {
		http.Error(w, "Streaming not supported", http.StatusInternalServerError)
		s.logger.Error("SubscribeEvents: Streaming not supported")
		return
	}
	sess, ok := s.session(w, r)
	if !ok {
		return
	}
	botID := sess.BotID()

	var watch []string
	if err := runtime.BindQueryParameter("form", false, false, "watch", r.URL.Query(), &watch); err != nil {
		s.badRequest(w, fmt.Errorf("invalid watch filter: %w", err))
		return
	}

	ch, cancel := s.Streams.Subscribe(botID)
	defer cancel()
	s.logger.Info("SSE: Subscribing to bot updates", "bot_id", botID)

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	fmt.Fprintf(w, "event: ping\ndata: connected\n\n")
	flusher.Flush()

	for {
		select {
		case <-r.Context().Done():
			s.logger.Info("SSE Client Disconnected", "bot_id", botID)
			return
		case ev, ok := <-ch:
			if !ok {
				return
			}
			if !ev.matches(watch) {
				continue
			}
			data, err := encodeEvent(ev)
			if err != nil {
				s.logger.Error("SSE: encode failed", "err", err)
				continue
			}
			fmt.Fprintf(w, "event: %s\ndata: %s\n\n", ev.Type, data)
			flusher.Flush()
		}
	}
}
