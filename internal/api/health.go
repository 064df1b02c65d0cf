package api

import (
	"context"
	"net/http"
	"time"

	"github.com/ignite/outreach-orchestrator/internal/pkg/httputil"
)

// handleHealth aggregates dependency checks. Each check gets a short
// deadline so a wedged dependency cannot stall the probe.
func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 3*time.Second)
	defer cancel()

	healthy := true
	checks := map[string]interface{}{}

	if s.db != nil {
		if err := s.db.PingContext(ctx); err != nil {
			healthy = false
			checks["database"] = map[string]interface{}{"healthy": false, "error": err.Error()}
		} else {
			checks["database"] = map[string]interface{}{"healthy": true}
		}
	}

	if s.redis != nil {
		if err := s.redis.Ping(ctx).Err(); err != nil {
			healthy = false
			checks["redis"] = map[string]interface{}{"healthy": false, "error": err.Error()}
		} else {
			checks["redis"] = map[string]interface{}{"healthy": true}
		}
	}

	if s.orphans != nil {
		qh := s.orphans.Health(ctx)
		checks["orphan_queue"] = qh
		if ok, _ := qh["healthy"].(bool); !ok {
			healthy = false
		}
	}

	status := "healthy"
	code := http.StatusOK
	if !healthy {
		status = "degraded"
		code = http.StatusServiceUnavailable
	}

	httputil.JSON(w, code, map[string]interface{}{
		"status": status,
		"time":   time.Now().UTC().Format(time.RFC3339),
		"checks": checks,
	})
}
