// Package internal provides the main application initialization and runtime logic.
package internal

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

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"golang.org/x/sync/errgroup"

	"github.com/starford/laguz/internal/api"
	"github.com/starford/laguz/internal/embedding"
	"github.com/starford/laguz/internal/idempotency"
	"github.com/starford/laguz/internal/ledger"
	"github.com/starford/laguz/internal/mcpserver"
	"github.com/starford/laguz/internal/models"
	"github.com/starford/laguz/internal/noteservice"
	"github.com/starford/laguz/internal/search"
	"github.com/starford/laguz/internal/sse"
	"github.com/starford/laguz/internal/storage"
	"github.com/starford/laguz/internal/syncer"
	"github.com/starford/laguz/internal/vector"
)

// stack holds the wired core components shared by the HTTP server and the
// MCP server.
type stack struct {
	logger   *slog.Logger
	store    *storage.FS
	db       *ledger.DB
	vectors  vector.Store
	embedder embedding.Embedder
	svc      *noteservice.Service
	searcher *search.Searcher
	pipeline *syncer.Pipeline
	checker  *syncer.DirtyChecker
}

// buildStack wires storage, the ledger, the embedder, and the pipeline
// from configuration. events may be nil.
func buildStack(cfg *Config, events syncer.Events, logger *slog.Logger) (*stack, error) {
	if err := os.MkdirAll(cfg.Vault.Path, 0o755); err != nil {
		return nil, fmt.Errorf("create vault dir: %w", err)
	}
	store, err := storage.NewFS(cfg.Vault.Path, cfg.Vault.Extension)
	if err != nil {
		return nil, fmt.Errorf("init storage: %w", err)
	}

	db, err := ledger.Open(cfg.Ledger.Path)
	if err != nil {
		return nil, fmt.Errorf("init ledger: %w", err)
	}

	var embedder embedding.Embedder
	switch cfg.Embedding.Provider {
	case EmbeddingProviderOpenAI:
		embedder = embedding.NewOpenAI(cfg.Embedding.APIKey, cfg.Embedding.Model)
	default:
		embedder = embedding.NewLocal(cfg.Embedding.Dims)
	}

	vectors := vector.NewSQLite(db.Conn())
	owner := cfg.Vault.OwnerID
	checker := syncer.NewDirtyChecker(store, db, owner, logger)

	s := &stack{
		logger:   logger,
		store:    store,
		db:       db,
		vectors:  vectors,
		embedder: embedder,
		checker:  checker,
		searcher: search.NewSearcher(embedder, vectors, db, owner, logger),
	}

	// The pipeline resolves text through the note service, and the note
	// service enqueues through the pipeline; the service is constructed
	// second and the pipeline reaches it through the stack.
	s.pipeline = syncer.NewPipeline(db, vectors, embedder, textSource{s}, checker, events,
		syncer.PipelineConfig{
			Owner:       owner,
			Workers:     cfg.Sync.Workers,
			QueueSize:   cfg.Sync.QueueSize,
			MaxAttempts: cfg.Sync.MaxAttempts,
			BaseBackoff: cfg.Sync.BaseBackoff.Std(),
			OpTimeout:   cfg.Sync.OpTimeout.Std(),
		}, logger)
	s.svc = noteservice.NewService(store, db, vectors, s.pipeline, noteservice.Events(events), owner)
	return s, nil
}

// textSource defers to the note service, which is built after the
// pipeline.
type textSource struct{ s *stack }

func (t textSource) CanonicalText(ctx context.Context, noteID string) (*models.CanonicalText, error) {
	return t.s.svc.CanonicalText(ctx, noteID)
}

// Run starts the application with the given options.
func Run(ctx context.Context, opts ...Option) error {
	app := &application{}

	for _, opt := range opts {
		opt(app)
	}

	if app.config == nil {
		return fmt.Errorf("config is required")
	}

	cfg := app.config

	// Initialize structured JSON logger.
	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
		Level: cfg.App.LogLevel,
	}))
	slog.SetDefault(logger)

	logger.Info("Configuration loaded",
		slog.String("http_address", cfg.App.HTTP.Address()),
		slog.String("vault_path", cfg.Vault.Path),
		slog.String("ledger_path", cfg.Ledger.Path),
		slog.String("owner_id", cfg.Vault.OwnerID),
		slog.String("embedding_provider", cfg.Embedding.Provider),
		slog.String("log_level", cfg.App.LogLevel.String()))

	// SSE broker. The pipeline's lifecycle events feed it directly.
	broker := sse.NewBroker(2 * time.Second)
	defer broker.Close()

	s, err := buildStack(cfg, broker.PublishSyncEvent, logger)
	if err != nil {
		return err
	}
	defer s.db.Close()

	owner := cfg.Vault.OwnerID
	health := &syncer.Health{}
	deb := syncer.NewDebouncer(cfg.Sync.DebounceWindow.Std(), s.pipeline.EnqueueCheck, logger)
	guard := idempotency.NewGuard(s.db, cfg.Idempotency.TTL.Std(), logger)
	sweeper := idempotency.NewSweeper(s.db, cfg.Idempotency.SweepInterval.Std(), logger)

	// Build API handler and router.
	h := api.NewHandler(s.svc, s.searcher, guard, s.db, owner, health, deb.Pending, s.embedder.ModelName())
	apiRouter := api.NewRouter(h, cfg.Auth.AuthEnabled(), cfg.Auth.Token, broker)

	// Build chi router.
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)

	// Health check endpoints (unauthenticated).
	r.Get("/health/live", func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte(`{"status":"ok"}`))
	})
	r.Get("/health/ready", func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		if !health.Ready() || health.Err() != nil {
			w.WriteHeader(http.StatusServiceUnavailable)
			_, _ = w.Write([]byte(`{"status":"not ready"}`))
			return
		}
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte(`{"status":"ok"}`))
	})

	// Mount API routes under /api.
	r.Mount("/api", apiRouter)

	httpServer := &http.Server{
		Addr:    cfg.App.HTTP.Address(),
		Handler: r,
	}

	logger.Info("Server starting...", slog.String("http_address", cfg.App.HTTP.Address()))

	// errgroup only cancels its context when a goroutine errors, so the
	// signal handler needs an explicit cancel to unblock the watcher and
	// the sweeper on a clean shutdown.
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()
	g, gCtx := errgroup.WithContext(ctx)

	// Start the embedding pipeline, then heal whatever happened while the
	// process was down before live watching begins.
	s.pipeline.Start(gCtx)
	if err := syncer.Reconcile(gCtx, s.store, s.db, owner, s.pipeline.EnqueueCheck, logger); err != nil {
		logger.Warn("startup reconcile failed", slog.String("error", err.Error()))
	}

	// Start file watcher.
	g.Go(func() error {
		return syncer.Watch(gCtx, s.store, deb, health, logger)
	})

	// Expired idempotency records sweeper.
	g.Go(func() error {
		sweeper.Run(gCtx)
		return nil
	})

	// Start HTTP server.
	g.Go(func() error {
		logger.Info("Starting HTTP server", slog.String("address", cfg.App.HTTP.Address()))
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("HTTP server error: %w", err)
		}
		return nil
	})

	// Handle shutdown signals.
	g.Go(func() error {
		quit := make(chan os.Signal, 1)
		signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
		defer signal.Stop(quit)

		select {
		case sig := <-quit:
			logger.Info("Received shutdown signal", slog.String("signal", sig.String()))
		case <-gCtx.Done():
			logger.Info("Context cancelled, initiating shutdown")
		}

		logger.Info("Shutting down server...")

		// Stop accepting work before the HTTP server goes away: pending
		// debounced checks are discarded (the next reconcile covers them)
		// and in-flight embeddings finish.
		deb.Stop()
		s.pipeline.Stop()

		shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer shutdownCancel()
		if err := httpServer.Shutdown(shutdownCtx); err != nil {
			logger.Error("HTTP server shutdown error", slog.String("error", err.Error()))
		}

		cancel()
		return nil
	})

	if err := g.Wait(); err != nil {
		logger.Error("Application error", slog.String("error", err.Error()))
		return err
	}

	logger.Info("Server stopped successfully")
	return nil
}

// RunMCP starts the MCP server on stdio. It runs the embedding pipeline
// so tool-created notes get embedded, but no watcher and no HTTP surface.
func RunMCP(ctx context.Context, opts ...Option) error {
	app := &application{}
	for _, opt := range opts {
		opt(app)
	}
	if app.config == nil {
		return fmt.Errorf("config is required")
	}
	cfg := app.config

	// MCP talks on stdout, so logs go to stderr.
	logger := slog.New(slog.NewJSONHandler(os.Stderr, &slog.HandlerOptions{
		Level: cfg.App.LogLevel,
	}))
	slog.SetDefault(logger)

	s, err := buildStack(cfg, nil, logger)
	if err != nil {
		return err
	}
	defer s.db.Close()

	s.pipeline.Start(ctx)
	defer s.pipeline.Stop()

	srv := mcpserver.New(s.svc, s.searcher, s.db, cfg.Vault.OwnerID)
	logger.Info("MCP server starting on stdio")
	return srv.ServeStdio()
}
