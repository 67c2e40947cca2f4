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

	"github.com/arond1/jotter/internal/api"
	"github.com/arond1/jotter/internal/index"
	"github.com/arond1/jotter/internal/mcpserver"
	"github.com/arond1/jotter/internal/notebook"
	"github.com/arond1/jotter/internal/notebookservice"
	"github.com/arond1/jotter/internal/sse"
	"github.com/arond1/jotter/internal/storage"
)

// Backend is the opened storage root, notebook manager and search index.
type Backend struct {
	Store   *storage.FS
	Manager *notebook.Manager
	DB      *index.DB
}

// Close releases the search index.
func (b *Backend) Close() error {
	return b.DB.Close()
}

// Open prepares the notebook root and the search index described by cfg.
func Open(cfg *Config, logger *slog.Logger) (*Backend, error) {
	if err := os.MkdirAll(cfg.Notebooks.Path, 0o700); err != nil {
		return nil, fmt.Errorf("create notebooks dir: %w", err)
	}

	store, err := storage.NewOS(cfg.Notebooks.Path)
	if err != nil {
		return nil, fmt.Errorf("init storage: %w", err)
	}

	m := notebook.NewManager(store,
		notebook.WithCodec(cfg.Notebooks.Codec()),
		notebook.WithDefaultNote(cfg.Notebooks.DefaultNote),
		notebook.WithLogger(logger),
	)

	db, err := index.Open(cfg.SQLite.Path)
	if err != nil {
		return nil, fmt.Errorf("init index: %w", err)
	}

	return &Backend{Store: store, Manager: m, DB: db}, nil
}

func setup(opts []Option) (*application, *slog.Logger, error) {
	app := &application{logOutput: os.Stdout}

	for _, opt := range opts {
		opt(app)
	}

	if app.config == nil {
		return nil, nil, fmt.Errorf("config is required")
	}

	// Initialize structured JSON logger.
	logger := slog.New(slog.NewJSONHandler(app.logOutput, &slog.HandlerOptions{
		Level: app.config.App.LogLevel,
	}))
	slog.SetDefault(logger)

	logger.Info("Configuration loaded",
		slog.String("http_address", app.config.App.HTTP.Address()),
		slog.String("notebooks_path", app.config.Notebooks.Path),
		slog.String("sqlite_path", app.config.SQLite.Path),
		slog.Bool("compress", app.config.Notebooks.Compress),
		slog.String("log_level", app.config.App.LogLevel.String()))

	return app, logger, nil
}

// Run starts the HTTP server and the file watcher with the given options.
func Run(ctx context.Context, opts ...Option) error {
	app, logger, err := setup(opts)
	if err != nil {
		return err
	}
	cfg := app.config

	b, err := Open(cfg, logger)
	if err != nil {
		return err
	}
	defer b.Close()

	// Run initial sync.
	if err := index.Sync(b.DB, b.Manager, logger); err != nil {
		logger.Warn("initial sync failed", slog.String("error", err.Error()))
	}

	broker := sse.NewBroker(cfg.Events.TreeThrottle)
	defer broker.Close()

	svc := notebookservice.NewService(b.Manager, b.DB, broker, logger)
	apiRouter := api.NewRouter(svc, cfg.Auth.AuthEnabled(), cfg.Auth.Token, broker)

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
		if _, err := b.Manager.Registry(); err != nil {
			w.WriteHeader(http.StatusServiceUnavailable)
			_, _ = w.Write([]byte(`{"status":"unavailable"}`))
			return
		}
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte(`{"status":"ok"}`))
	})

	r.Mount("/api", apiRouter)

	httpServer := &http.Server{
		Addr:              cfg.App.HTTP.Address(),
		Handler:           r,
		ReadHeaderTimeout: 10 * time.Second,
	}

	logger.Info("Server starting...", slog.String("http_address", cfg.App.HTTP.Address()))

	g, gCtx := errgroup.WithContext(ctx)

	// Start file watcher with SSE callback.
	g.Go(func() error {
		err := index.Watch(gCtx, b.DB, b.Manager, logger, func(kind, nb, path string) {
			broker.PublishChange(sse.Change{Subject: "note", Kind: kind, Notebook: nb, Path: path})
		})
		if err != nil {
			logger.Error("watcher failed", slog.String("error", err.Error()))
		}
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

		// SSE streams only end when their clients go away; closing the
		// broker first lets Shutdown drain them.
		broker.Close()

		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := httpServer.Shutdown(shutdownCtx); err != nil {
			logger.Error("HTTP server shutdown error", slog.String("error", err.Error()))
		}

		return errShutdown
	})

	if err := g.Wait(); err != nil && !errors.Is(err, errShutdown) {
		logger.Error("Application error", slog.String("error", err.Error()))
		return err
	}

	logger.Info("Server stopped successfully")
	return nil
}

// errShutdown cancels the group so the watcher stops with the server.
var errShutdown = errors.New("shutdown")

// RunMCP serves the notebook tools over stdio until stdin closes.
func RunMCP(_ context.Context, opts ...Option) error {
	app, logger, err := setup(append([]Option{WithLogOutput(os.Stderr)}, opts...))
	if err != nil {
		return err
	}

	b, err := Open(app.config, logger)
	if err != nil {
		return err
	}
	defer b.Close()

	if err := index.Sync(b.DB, b.Manager, logger); err != nil {
		logger.Warn("initial sync failed", slog.String("error", err.Error()))
	}

	svc := notebookservice.NewService(b.Manager, b.DB, nil, logger)
	logger.Info("MCP server starting on stdio")
	return mcpserver.New(svc).ServeStdio()
}
