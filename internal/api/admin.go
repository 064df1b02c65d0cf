package api

import (
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/ignite/outreach-orchestrator/internal/domain"
	"github.com/ignite/outreach-orchestrator/internal/pkg/httputil"
	"github.com/ignite/outreach-orchestrator/internal/repository/postgres"
)

func (s *Server) handleListDLQ(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	limit, _ := strconv.Atoi(q.Get("limit"))
	offset, _ := strconv.Atoi(q.Get("offset"))

	filter := postgres.DeadLetterFilter{
		Provider: q.Get("provider"),
		Status:   domain.DeadLetterStatus(q.Get("status")),
		Limit:    limit,
		Offset:   offset,
	}

	entries, err := s.dlqRepo.List(r.Context(), filter)
	if err != nil {
		httputil.InternalError(w, err)
		return
	}
	if entries == nil {
		entries = []domain.DeadLetterEvent{}
	}
	httputil.OK(w, map[string]interface{}{"entries": entries, "count": len(entries)})
}

type replayRequest struct {
	IDs []string `json:"ids"`
}

func (s *Server) handleReplayDLQ(w http.ResponseWriter, r *http.Request) {
	var req replayRequest
	if !httputil.Decode(w, r, &req) {
		return
	}
	if len(req.IDs) == 0 {
		httputil.BadRequest(w, "ids is required")
		return
	}

	ids := make([]uuid.UUID, 0, len(req.IDs))
	for _, raw := range req.IDs {
		id, err := uuid.Parse(raw)
		if err != nil {
			httputil.BadRequest(w, "invalid id: "+raw)
			return
		}
		ids = append(ids, id)
	}

	res, err := s.replayer.Replay(r.Context(), ids)
	if err != nil {
		httputil.InternalError(w, err)
		return
	}
	httputil.OK(w, res)
}

func (s *Server) handleWorkflowStats(w http.ResponseWriter, r *http.Request) {
	name := chi.URLParam(r, "name")
	days, _ := strconv.Atoi(r.URL.Query().Get("days"))

	stats, err := s.engine.Stats(r.Context(), name, days)
	if err != nil {
		httputil.InternalError(w, err)
		return
	}
	httputil.OK(w, stats)
}

func (s *Server) handleListApprovals(w http.ResponseWriter, r *http.Request) {
	httputil.OK(w, map[string]interface{}{"pending": s.registry.PendingApprovals()})
}

func (s *Server) handleApprove(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	if err := s.registry.Approve(id); err != nil {
		httputil.NotFound(w, err.Error())
		return
	}
	httputil.OK(w, map[string]string{"status": "approved", "id": id})
}

// handleStats surfaces the ingestion and queue counters.
func (s *Server) handleStats(w http.ResponseWriter, r *http.Request) {
	out := map[string]interface{}{}
	if s.pipeline != nil {
		out["pipeline"] = s.pipeline.Stats()
	}
	if s.orphans != nil {
		out["orphan_queue"] = s.orphans.Stats()
	}
	httputil.OK(w, out)
}
