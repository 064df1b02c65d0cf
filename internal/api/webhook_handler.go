package api

import (
	"errors"
	"io"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/ignite/outreach-orchestrator/internal/events"
	"github.com/ignite/outreach-orchestrator/internal/pkg/httputil"
	"github.com/ignite/outreach-orchestrator/internal/pkg/logger"
)

// Providers retry on 5xx, so only genuine server-side failures return one.
// Signature and payload problems are terminal for a given delivery.
func (s *Server) handleWebhook(w http.ResponseWriter, r *http.Request) {
	provider := chi.URLParam(r, "provider")

	// The raw bytes feed the HMAC; read before any parsing.
	rawBody, err := io.ReadAll(io.LimitReader(r.Body, 1<<20))
	if err != nil {
		httputil.BadRequest(w, "unreadable body")
		return
	}

	out, err := s.pipeline.IngestWebhook(r.Context(), provider, rawBody, r.Header)
	if err != nil {
		switch {
		case errors.Is(err, events.ErrInvalidSignature), errors.Is(err, events.ErrUnknownProvider):
			httputil.Unauthorized(w, "signature verification failed")
		case errors.Is(err, events.ErrMalformedPayload):
			httputil.BadRequest(w, "malformed payload")
		default:
			logger.Error("[API] webhook ingestion failed", "provider", provider, "error", err.Error())
			httputil.InternalError(w, err)
		}
		return
	}

	switch {
	case out.Orphaned:
		httputil.Accepted(w, map[string]string{"status": "queued"})
	case out.Duplicate:
		httputil.Accepted(w, map[string]string{"status": "duplicate"})
	default:
		httputil.Accepted(w, map[string]string{"status": "processed"})
	}
}
