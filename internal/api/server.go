// Package api exposes the orchestrator's HTTP surface: provider webhook
// ingestion, health, and the admin endpoints for dead letters, workflow
// stats, and tool approvals.
package api

import (
	"context"
	"database/sql"
	"fmt"
	"net"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/redis/go-redis/v9"

	"github.com/ignite/outreach-orchestrator/internal/config"
	"github.com/ignite/outreach-orchestrator/internal/events"
	"github.com/ignite/outreach-orchestrator/internal/orphan"
	"github.com/ignite/outreach-orchestrator/internal/pkg/logger"
	"github.com/ignite/outreach-orchestrator/internal/repository/postgres"
	"github.com/ignite/outreach-orchestrator/internal/tools"
	"github.com/ignite/outreach-orchestrator/internal/workflow"
)

// Server wires the HTTP layer to the core services.
type Server struct {
	cfg      *config.Config
	pipeline *events.Pipeline
	replayer *events.Replayer
	dlqRepo  *postgres.DeadLetterRepo
	engine   *workflow.Engine
	registry *tools.Registry
	orphans  *orphan.Processor
	db       *sql.DB
	redis    *redis.Client

	httpServer *http.Server
}

// NewServer assembles the router and handlers.
func NewServer(
	cfg *config.Config,
	pipeline *events.Pipeline,
	replayer *events.Replayer,
	dlqRepo *postgres.DeadLetterRepo,
	engine *workflow.Engine,
	registry *tools.Registry,
	orphans *orphan.Processor,
	db *sql.DB,
	redisClient *redis.Client,
) *Server {
	return &Server{
		cfg:      cfg,
		pipeline: pipeline,
		replayer: replayer,
		dlqRepo:  dlqRepo,
		engine:   engine,
		registry: registry,
		orphans:  orphans,
		db:       db,
		redis:    redisClient,
	}
}

// Router builds the chi handler tree.
func (s *Server) Router() http.Handler {
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)
	r.Use(middleware.Timeout(60 * time.Second))
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   []string{"*"},
		AllowedMethods:   []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type"},
		AllowCredentials: false,
		MaxAge:           300,
	}))

	r.Get("/health", s.handleHealth)

	r.Post("/webhooks/{provider}", s.handleWebhook)

	r.Route("/admin", func(r chi.Router) {
		r.Get("/dlq", s.handleListDLQ)
		r.Post("/dlq/replay", s.handleReplayDLQ)
		r.Get("/workflows/{name}/stats", s.handleWorkflowStats)
		r.Get("/approvals", s.handleListApprovals)
		r.Post("/approvals/{id}/approve", s.handleApprove)
		r.Get("/stats", s.handleStats)
	})

	return r
}

// Start checks the port is free, then serves until Shutdown. The preflight
// check turns the common double-start mistake into a clear error instead of
// a late bind failure.
func (s *Server) Start() error {
	addr := fmt.Sprintf("%s:%d", s.cfg.Server.GetHost(), s.cfg.Server.Port)

	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return fmt.Errorf("port %d is not available: %w", s.cfg.Server.Port, err)
	}

	s.httpServer = &http.Server{
		Addr:         addr,
		Handler:      s.Router(),
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 30 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	logger.Info("[API] server listening", "addr", addr)
	if err := s.httpServer.Serve(ln); err != nil && err != http.ErrServerClosed {
		return err
	}
	return nil
}

// Shutdown stops accepting connections and waits for in-flight requests.
func (s *Server) Shutdown(ctx context.Context) error {
	if s.httpServer == nil {
		return nil
	}
	return s.httpServer.Shutdown(ctx)
}
