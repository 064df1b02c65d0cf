package main

import (
	"context"
	"database/sql"
	"fmt"
	"net"
	"os"
	"os/signal"
	"syscall"
	"time"

	_ "github.com/lib/pq"
	"github.com/redis/go-redis/v9"

	"github.com/ignite/outreach-orchestrator/internal/api"
	"github.com/ignite/outreach-orchestrator/internal/config"
	"github.com/ignite/outreach-orchestrator/internal/events"
	"github.com/ignite/outreach-orchestrator/internal/orphan"
	"github.com/ignite/outreach-orchestrator/internal/pkg/distlock"
	"github.com/ignite/outreach-orchestrator/internal/pkg/logger"
	"github.com/ignite/outreach-orchestrator/internal/provider"
	"github.com/ignite/outreach-orchestrator/internal/repository/postgres"
	"github.com/ignite/outreach-orchestrator/internal/tools"
	"github.com/ignite/outreach-orchestrator/internal/workflow"
)

func main() {
	configPath := "config/config.yaml"
	if v := os.Getenv("CONFIG_PATH"); v != "" {
		configPath = v
	}

	cfg, err := config.LoadFromEnv(configPath)
	if err != nil {
		logger.Error("[Main] config load failed", "path", configPath, "error", err.Error())
		os.Exit(1)
	}

	// Fail before touching any dependency if the port is taken.
	addr := fmt.Sprintf("%s:%d", cfg.Server.GetHost(), cfg.Server.Port)
	if ln, err := net.Listen("tcp", addr); err != nil {
		logger.Error("[Main] port unavailable", "addr", addr, "error", err.Error())
		os.Exit(1)
	} else {
		ln.Close()
	}

	db, err := sql.Open("postgres", cfg.Database.URL)
	if err != nil {
		logger.Error("[Main] database open failed", "error", err.Error())
		os.Exit(1)
	}
	db.SetMaxOpenConns(cfg.Database.MaxOpenConns)
	db.SetMaxIdleConns(cfg.Database.MaxIdleConns)
	if err := db.Ping(); err != nil {
		logger.Error("[Main] database ping failed", "error", err.Error())
		os.Exit(1)
	}

	redisOpts, err := redis.ParseURL(cfg.Redis.URL)
	if err != nil {
		logger.Error("[Main] redis url invalid", "error", err.Error())
		os.Exit(1)
	}
	redisClient := redis.NewClient(redisOpts)
	if err := redisClient.Ping(context.Background()).Err(); err != nil {
		logger.Error("[Main] redis ping failed", "error", err.Error())
		os.Exit(1)
	}

	eventRepo := postgres.NewEventRepo(db)
	dlqRepo := postgres.NewDeadLetterRepo(db)
	workflowRepo := postgres.NewWorkflowRepo(db)

	queue := orphan.NewQueue(redisClient)
	pollLock := distlock.New(redisClient, db, "orphan-processor", 30*time.Second)
	processor := orphan.NewProcessor(queue, eventRepo, dlqRepo, pollLock,
		cfg.OrphanQueue.PollInterval(), cfg.OrphanQueue.DrainTimeout())

	pipeline := events.NewPipeline(eventRepo, queue, webhookSecrets(cfg))
	replayer := events.NewReplayer(dlqRepo, eventRepo, queue)

	registry := tools.NewRegistry()
	tools.RegisterProviderTools(registry, provider.NewFactory(cfg))
	engine := workflow.NewEngine(workflowRepo, registry)

	if defs, err := workflow.LoadDefinitions(cfg.Workflow.DefinitionsDir); err != nil {
		logger.Warn("[Main] workflow definitions not loaded", "dir", cfg.Workflow.DefinitionsDir, "error", err.Error())
	} else {
		logger.Info("[Main] workflow definitions loaded", "count", len(defs))
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	processor.Start(ctx)

	// Daily retention sweep for completed workflow executions.
	go func() {
		ticker := time.NewTicker(24 * time.Hour)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				if _, err := engine.CleanupOldWorkflows(ctx, cfg.Workflow.RetentionDays); err != nil {
					logger.Warn("[Main] workflow cleanup failed", "error", err.Error())
				}
			}
		}
	}()

	server := api.NewServer(cfg, pipeline, replayer, dlqRepo, engine, registry, processor, db, redisClient)
	go func() {
		if err := server.Start(); err != nil {
			logger.Error("[Main] server stopped", "error", err.Error())
			stop()
		}
	}()

	<-ctx.Done()
	logger.Info("[Main] shutdown signal received")

	// Ordered shutdown: stop accepting requests, drain the orphan queue,
	// then release connections.
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Warn("[Main] http shutdown error", "error", err.Error())
	}

	processor.Stop()

	redisClient.Close()
	db.Close()
	logger.Info("[Main] shutdown complete")
}

func webhookSecrets(cfg *config.Config) map[string]string {
	secrets := map[string]string{}
	for _, name := range []string{"lemlist", "postmark", "phantombuster", "heygen"} {
		if pc, ok := cfg.Providers.ByName(name); ok && pc.WebhookSecret != "" {
			secrets[name] = pc.WebhookSecret
		}
	}
	return secrets
}
