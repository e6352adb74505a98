// Package http exposes editing sessions over a JSON API with server-sent
// events, plus the bot record API the httpclient adapter consumes.
package http

import (
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strings"

	bozchat "github.com/agenciaboz-dev/bozchat-sub001"
	"github.com/agenciaboz-dev/bozchat-sub001/internal/logging"
	"github.com/agenciaboz-dev/bozchat-sub001/pkg/domain"
	"github.com/agenciaboz-dev/bozchat-sub001/pkg/ports"
	"github.com/agenciaboz-dev/bozchat-sub001/pkg/session"
	"github.com/go-chi/chi/v5"
)

// maxBodyBytes caps request bodies.
const maxBodyBytes = 4 << 20

// Server routes HTTP requests to editing sessions.
type Server struct {
	Sessions *session.Manager
	Streams  *StreamManager
	// Bots backs the /api/bots record API. The API is not mounted when nil.
	Bots    ports.BotStore
	Metrics http.Handler

	logger *slog.Logger
}

// Option configures the Server.
type Option func(*Server)

// WithLogger configures a logger for the Server.
func WithLogger(logger *slog.Logger) Option {
	return func(s *Server) {
		s.logger = logger
	}
}

// WithStreams sets the stream manager whose hooks the sessions were opened with.
func WithStreams(streams *StreamManager) Option {
	return func(s *Server) {
		s.Streams = streams
	}
}

// WithBotStore mounts the bot record API on store.
func WithBotStore(store ports.BotStore) Option {
	return func(s *Server) {
		s.Bots = store
	}
}

// WithMetrics serves handler on GET /metrics.
func WithMetrics(handler http.Handler) Option {
	return func(s *Server) {
		s.Metrics = handler
	}
}

// NewServer creates a server over the session manager.
func NewServer(sessions *session.Manager, opts ...Option) *Server {
	s := &Server{
		Sessions: sessions,
		logger:   logging.NewNop(),
	}
	for _, opt := range opts {
		opt(s)
	}
	if s.Streams == nil {
		s.Streams = NewStreamManager(s.logger)
	}
	return s
}

// Handler builds the router.
func (s *Server) Handler() http.Handler {
	r := chi.NewRouter()
	if spec, err := loadSpec(); err != nil {
		s.logger.Error("Request validation disabled", "err", err)
	} else {
		r.Use(s.validateRequests(spec))
	}

	r.Get("/health", s.GetHealth)
	r.Get("/info", s.GetInfo)
	r.Get("/openapi.yaml", s.GetOpenAPI)
	if s.Metrics != nil {
		r.Method(http.MethodGet, "/metrics", s.Metrics)
	}

	r.Route("/bots/{botID}", func(r chi.Router) {
		r.Get("/graph", s.GetGraph)
		r.Get("/validate", s.Validate)
		r.Get("/events", s.SubscribeEvents)
		r.Get("/history", s.GetHistory)

		r.Post("/nodes", s.AddChild)
		r.Delete("/nodes/{nodeID}", s.DeleteSubtree)
		r.Put("/nodes/{nodeID}/payload", s.UpdatePayload)
		r.Post("/nodes/{nodeID}/loop", s.MarkLoop)
		r.Delete("/nodes/{nodeID}/loop", s.ClearLoop)
		r.Post("/edges", s.Connect)
		r.Put("/viewport", s.SetViewport)

		r.Post("/loop", s.ArmLoop)
		r.Post("/loop/target", s.PickLoopTarget)
		r.Delete("/loop", s.CancelLoop)

		r.Post("/undo", s.Undo)
		r.Post("/history/{index}/restore", s.Restore)
		r.Post("/flush", s.Flush)
		r.Delete("/session", s.CloseSession)
	})

	if s.Bots != nil {
		r.Route("/api/bots", func(r chi.Router) {
			r.Get("/", s.ListBots)
			r.Get("/{botID}", s.GetBot)
			r.Put("/{botID}", s.PutBot)
			r.Delete("/{botID}", s.DeleteBot)
			r.Put("/{botID}/instance", s.PutInstance)
		})
	}

	return enableCORS(r)
}

func enableCORS(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", "*")
		w.Header().Set("Access-Control-Allow-Methods", "GET, POST, PUT, DELETE, OPTIONS")
		w.Header().Set("Access-Control-Allow-Headers", "Content-Type, X-Revision")
		if r.Method == "OPTIONS" {
			w.WriteHeader(http.StatusOK)
			return
		}
		next.ServeHTTP(w, r)
	})
}

// GetHealth handles the GET /health request.
func (s *Server) GetHealth(w http.ResponseWriter, r *http.Request) {
	s.writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// GetInfo handles the GET /info request.
func (s *Server) GetInfo(w http.ResponseWriter, r *http.Request) {
	info := map[string]any{
		"app":      "bozchat-http",
		"version":  strings.TrimSpace(bozchat.Version),
		"sessions": s.Sessions.List(),
	}
	if spec, err := loadSpec(); err == nil && spec.doc.Info != nil {
		info["api_version"] = spec.doc.Info.Version
	}
	s.writeJSON(w, http.StatusOK, info)
}

// errorResponse is the body of every failed request. Changed is always
// false: a refused edit leaves the graph untouched.
type errorResponse struct {
	Changed bool   `json:"changed"`
	Error   string `json:"error"`
}

func statusFor(err error) int {
	switch {
	case errors.Is(err, domain.ErrNodeNotFound), errors.Is(err, domain.ErrBotNotFound):
		return http.StatusNotFound
	case errors.Is(err, domain.ErrTreeShape),
		errors.Is(err, domain.ErrSelfLoop),
		errors.Is(err, domain.ErrLoopNotArmed),
		errors.Is(err, domain.ErrBindingClosed),
		errors.Is(err, domain.ErrNothingToUndo):
		return http.StatusConflict
	case errors.Is(err, domain.ErrSessionClosed):
		return http.StatusGone
	}
	return http.StatusInternalServerError
}

func (s *Server) writeError(w http.ResponseWriter, r *http.Request, err error) {
	status := statusFor(err)
	if status == http.StatusInternalServerError {
		s.logger.Error("Request failed", "method", r.Method, "path", r.URL.Path, "err", err)
	} else {
		s.logger.Debug("Request refused", "method", r.Method, "path", r.URL.Path, "status", status, "err", err)
	}
	s.writeJSON(w, status, errorResponse{Error: err.Error()})
}

func (s *Server) badRequest(w http.ResponseWriter, err error) {
	s.writeJSON(w, http.StatusBadRequest, errorResponse{Error: err.Error()})
}

func (s *Server) writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		s.logger.Error("Response encode failed", "err", err)
	}
}

func decode(w http.ResponseWriter, r *http.Request, v any) error {
	r.Body = http.MaxBytesReader(w, r.Body, maxBodyBytes)
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		return fmt.Errorf("invalid request body: %w", err)
	}
	return nil
}
