// Package main is the entrypoint for the SOPHIA API server.
package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/txdxai/sophia/internal/api"
	"github.com/txdxai/sophia/internal/api/handler"
	mw "github.com/txdxai/sophia/internal/api/middleware"
	"github.com/txdxai/sophia/internal/api/response"
	"github.com/txdxai/sophia/internal/backend"
	"github.com/txdxai/sophia/internal/cache"
	"github.com/txdxai/sophia/internal/config"
	"github.com/txdxai/sophia/internal/escalation"
	"github.com/txdxai/sophia/internal/metrics"
	"github.com/txdxai/sophia/internal/monitoring"
	"github.com/txdxai/sophia/internal/orchestrator"
	"github.com/txdxai/sophia/internal/retrieval"
	"github.com/txdxai/sophia/internal/session"
	"github.com/txdxai/sophia/internal/store"
	"github.com/txdxai/sophia/internal/tenant"
	"github.com/txdxai/sophia/pkg/models"
)

func main() {
	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
		Level: slog.LevelInfo,
	}))
	slog.SetDefault(logger)

	if err := run(); err != nil {
		slog.Error("server failed", "error", err)
		os.Exit(1)
	}
}

func run() error {
	// 1. Load config, fail fast on invalid config
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	slog.Info("config loaded", "env", cfg.Server.Env, "backend_url", cfg.Backend.URL)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// 2. Connect to database
	pool, err := store.Connect(ctx, cfg.Database)
	if err != nil {
		return fmt.Errorf("connect database: %w", err)
	}
	defer pool.Close()
	slog.Info("database connected")

	// 3. Run migrations
	if err := store.RunMigrations(cfg.Database.URL, cfg.Database.MigrationsDir); err != nil {
		return fmt.Errorf("run migrations: %w", err)
	}
	slog.Info("database migrations applied")

	// 4. Create Redis cache
	redisCache, err := cache.NewRedisCache(cfg.Redis.URL)
	if err != nil {
		return fmt.Errorf("create redis cache: %w", err)
	}
	defer redisCache.Close()

	if err := redisCache.Ping(ctx); err != nil {
		return fmt.Errorf("ping redis: %w", err)
	}
	slog.Info("redis connected")

	// 5. Metrics
	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	m := metrics.New(reg)

	// 6. Platform backend and tenant agents
	client := backend.NewHTTPClient(cfg.Backend.URL, backend.Timeouts{
		Auth:   cfg.Backend.AuthTimeout,
		Ticket: cfg.Backend.TicketTimeout,
		Audit:  cfg.Backend.AuditTimeout,
	})
	authCache := cache.NewAuthCache(redisCache, cfg.Redis.AuthCacheTTL, 0)

	searchTimeout := cfg.Retrieval.SearchTimeout
	tenants := tenant.NewCache(tenant.BackendLoader(client), func(tc models.TenantAgentConfig) retrieval.Retriever {
		return retrieval.New(tc, searchTimeout, m)
	}, cfg.Tenant.CacheTTL, m)

	// 7. Escalation and orchestration
	pgStore := store.NewPostgresStore(pool)
	builder := escalation.NewBuilder(client, pgStore, m, cfg.Backend.TicketTimeout)

	orch := orchestrator.New(orchestrator.Deps{
		Sessions:      session.NewMemoryStore(),
		Tenants:       tenants,
		Escalations:   builder,
		Monitoring:    monitoring.Default(func() time.Time { return time.Now().UTC() }),
		Auditor:       client,
		Metrics:       m,
		ContextTokens: cfg.Retrieval.ContextMaxTokens,
	})

	// 8. Build router with dependencies
	deps := api.Dependencies{
		Auth:        mw.NewAuth(client, authCache),
		RateLimit:   mw.NewRateLimit(redisCache, cfg.Server.RateLimitPerMin),
		CORSOrigins: cfg.Server.CORSOrigins,

		HealthHandler:  healthHandler(pgStore, redisCache),
		MetricsHandler: promhttp.HandlerFor(reg, promhttp.HandlerOpts{}),

		ChatHandler:             handler.NewChatHandler(orch),
		ListThreadsHandler:      handler.NewListThreadsHandler(orch),
		GetThreadHandler:        handler.NewGetThreadHandler(orch),
		DeleteThreadHandler:     handler.NewDeleteThreadHandler(orch),
		ListEscalationsHandler:  handler.NewListEscalationsHandler(pgStore),
		GetEscalationHandler:    handler.NewGetEscalationHandler(pgStore, builder),
		CancelEscalationHandler: handler.NewCancelEscalationHandler(pgStore, builder),
		TestConfigHandler:       handler.NewTestConfigHandler(orch),
		RefreshKnowledgeHandler: handler.NewRefreshKnowledgeHandler(orch),
		CacheStatsHandler:       handler.NewCacheStatsHandler(tenants),
		CacheInvalidateHandler:  handler.NewCacheInvalidateHandler(tenants, authCache),
	}

	router := api.NewRouter(deps)

	// 9. Start HTTP server
	addr := fmt.Sprintf(":%d", cfg.Server.Port)
	srv := &http.Server{
		Addr:         addr,
		Handler:      router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 60 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	// Start server in background
	errCh := make(chan error, 1)
	go func() {
		slog.Info("server listening", "addr", addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	// Wait for shutdown signal or server error
	select {
	case err := <-errCh:
		return fmt.Errorf("server error: %w", err)
	case <-ctx.Done():
		slog.Info("shutdown signal received, draining connections...")
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("server shutdown: %w", err)
	}

	slog.Info("server stopped gracefully")
	return nil
}

// pinger is satisfied by the store and the cache.
type pinger interface {
	Ping(ctx context.Context) error
}

// healthHandler checks database and cache connectivity.
func healthHandler(db, c pinger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		checks := map[string]string{
			"database": "ok",
			"cache":    "ok",
		}

		if err := db.Ping(r.Context()); err != nil {
			checks["database"] = "degraded"
		}
		if err := c.Ping(r.Context()); err != nil {
			checks["cache"] = "degraded"
		}

		degraded := checks["database"] != "ok" || checks["cache"] != "ok"
		if degraded {
			response.Error(w, http.StatusServiceUnavailable, "DEGRADED",
				"One or more services degraded", checks)
			return
		}

		response.JSON(w, map[string]any{
			"status":   "ok",
			"service":  "sophia",
			"services": checks,
		})
	}
}
