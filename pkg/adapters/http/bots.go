package http

import (
	"net/http"

	"github.com/agenciaboz-dev/bozchat-sub001/pkg/domain"
	"github.com/go-chi/chi/v5"
)

// RevisionHeader carries the save revision id of an instance write.
const RevisionHeader = "X-Revision"

// ListBots handles GET /api/bots.
func (s *Server) ListBots(w http.ResponseWriter, r *http.Request) {
	ids, err := s.Bots.List(r.Context())
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	if ids == nil {
		ids = []string{}
	}
	s.writeJSON(w, http.StatusOK, ids)
}

// GetBot handles GET /api/bots/{botID}.
func (s *Server) GetBot(w http.ResponseWriter, r *http.Request) {
	bot, err := s.Bots.Load(r.Context(), chi.URLParam(r, "botID"))
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	s.writeJSON(w, http.StatusOK, bot)
}

// PutBot handles PUT /api/bots/{botID}. The path id wins over the body id.
func (s *Server) PutBot(w http.ResponseWriter, r *http.Request) {
	var bot domain.Bot
	if err := decode(w, r, &bot); err != nil {
		s.badRequest(w, err)
		return
	}
	bot.ID = chi.URLParam(r, "botID")
	if err := s.Bots.Put(r.Context(), &bot); err != nil {
		s.writeError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// DeleteBot handles DELETE /api/bots/{botID}. An open session is closed
// first so its pending save does not resurrect the record.
func (s *Server) DeleteBot(w http.ResponseWriter, r *http.Request) {
	botID := chi.URLParam(r, "botID")
	if err := s.Sessions.Close(r.Context(), botID); err != nil {
		s.logger.Warn("Closing session before delete failed", "bot_id", botID, "err", err)
	}
	if err := s.Bots.Delete(r.Context(), botID); err != nil {
		s.writeError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// PutInstance handles PUT /api/bots/{botID}/instance.
func (s *Server) PutInstance(w http.ResponseWriter, r *http.Request) {
	var g domain.FlowGraph
	if err := decode(w, r, &g); err != nil {
		s.badRequest(w, err)
		return
	}
	botID := chi.URLParam(r, "botID")
	if _, open := s.Sessions.Get(botID); open {
		s.logger.Warn("Instance replaced while an editing session is open; the session's next save wins",
			"bot_id", botID)
	}
	if err := s.Bots.SaveInstance(r.Context(), botID, g); err != nil {
		s.writeError(w, r, err)
		return
	}
	s.logger.Debug("Instance stored", "bot_id", botID, "revision", r.Header.Get(RevisionHeader), "nodes", len(g.Nodes))
	w.WriteHeader(http.StatusNoContent)
}
