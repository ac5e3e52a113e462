// Package internal provides the main application initialization and runtime logic.
package internal

import (
	"context"
	"encoding/json"
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

	"github.com/starford/keepnotes/internal/api"
	"github.com/starford/keepnotes/internal/dispatch"
	"github.com/starford/keepnotes/internal/kv"
	"github.com/starford/keepnotes/internal/mcpserver"
	"github.com/starford/keepnotes/internal/notes"
	"github.com/starford/keepnotes/internal/sse"
	"github.com/starford/keepnotes/internal/theme"
	"github.com/starford/keepnotes/internal/watch"
)

var errConfigRequired = errors.New("config is required")

// Session is an opened store with a running dispatcher.
type Session struct {
	Dispatcher *dispatch.Dispatcher
	Store      kv.Store
	Logger     *slog.Logger
}

// Close stops the dispatcher and releases the store.
func (s *Session) Close() error {
	s.Dispatcher.Close()
	return s.Store.Close()
}

// Open loads the configured store and returns a session for one-shot
// commands. Logs go to stderr unless WithLogOutput says otherwise.
func Open(ctx context.Context, opts ...Option) (*Session, error) {
	app, err := newApplication(os.Stderr, opts)
	if err != nil {
		return nil, err
	}
	return app.open(ctx)
}

func (a *application) open(ctx context.Context) (*Session, error) {
	cfg := a.config
	logger := slog.New(slog.NewJSONHandler(a.logOutput, &slog.HandlerOptions{
		Level: cfg.App.LogLevel,
	}))

	store, err := kv.Open(cfg.Storage.Backend, cfg.Storage.Path)
	if err != nil {
		return nil, fmt.Errorf("init storage: %w", err)
	}

	repo := notes.NewRepository(store, notes.WithLogger(logger))
	opts := []dispatch.Option{dispatch.WithLogger(logger)}
	for _, p := range a.presenters {
		opts = append(opts, dispatch.WithPresenter(p))
	}
	d := dispatch.New(repo, theme.New(store, logger), opts...)

	s := &Session{Dispatcher: d, Store: store, Logger: logger}
	// An unreadable store leaves the session usable with an empty cache;
	// mutations re-read and report the failure themselves.
	if err := d.Init(ctx); err != nil {
		logger.Error("initial load failed", slog.String("error", err.Error()))
	}
	return s, nil
}

// ServeMCP serves the MCP tools over stdio until stdin closes.
func ServeMCP(ctx context.Context, opts ...Option) error {
	app, err := newApplication(os.Stderr, opts)
	if err != nil {
		return err
	}
	s, err := app.open(ctx)
	if err != nil {
		return err
	}
	defer s.Close()

	s.Logger.Info("MCP server starting", slog.String("backend", app.config.Storage.Backend))
	return mcpserver.New(s.Dispatcher, app.version).ServeStdio()
}

// Run starts the HTTP server with the given options.
func Run(ctx context.Context, opts ...Option) error {
	broker := sse.NewBroker()
	defer broker.Close()

	app, err := newApplication(os.Stdout, append([]Option{WithPresenter(broker)}, opts...))
	if err != nil {
		return err
	}
	cfg := app.config

	s, err := app.open(ctx)
	if err != nil {
		return err
	}
	defer s.Close()
	logger := s.Logger
	slog.SetDefault(logger)

	logger.Info("Configuration loaded",
		slog.String("http_address", cfg.App.HTTP.Address()),
		slog.String("storage_backend", cfg.Storage.Backend),
		slog.String("storage_path", cfg.Storage.Path),
		slog.String("log_level", cfg.App.LogLevel.String()))

	apiRouter := api.NewRouter(s.Dispatcher, cfg.Auth.AuthEnabled(), cfg.Auth.Token, broker)

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
	r.Get("/health/ready", readyHandler(s.Dispatcher, broker))

	r.Mount("/api", apiRouter)

	httpServer := &http.Server{
		Addr:              cfg.App.HTTP.Address(),
		Handler:           r,
		ReadHeaderTimeout: 10 * time.Second,
	}

	runCtx, cancel := context.WithCancel(ctx)
	defer cancel()
	g, gCtx := errgroup.WithContext(runCtx)

	if cfg.Storage.WatchEnabled() {
		fsStore, ok := s.Store.(*kv.FS)
		if !ok {
			return fmt.Errorf("watch: backend %q has no directory", cfg.Storage.Backend)
		}
		g.Go(func() error {
			keys := []string{notes.StorageKey, theme.StorageKey}
			return watch.Watch(gCtx, fsStore.Root(), keys, logger, reloadOnChange(gCtx, s.Dispatcher, broker, logger))
		})
	}

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
		cancel()

		// Event streams never go idle; closing the broker ends them.
		broker.Close()

		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := httpServer.Shutdown(shutdownCtx); err != nil {
			logger.Error("HTTP server shutdown error", slog.String("error", err.Error()))
		}

		return nil
	})

	if err := g.Wait(); err != nil {
		logger.Error("Application error", slog.String("error", err.Error()))
		return err
	}

	logger.Info("Server stopped successfully")
	return nil
}

// StoreReloaded is the SSE event sent after external store changes are
// reloaded.
const StoreReloaded = "store.reloaded"

// reloadOnChange reloads the dispatcher when watched keys change and tells
// event-stream clients which keys did.
func reloadOnChange(ctx context.Context, d *dispatch.Dispatcher, broker *sse.Broker, logger *slog.Logger) watch.Callback {
	return func(keys []string) {
		if _, err := d.Send(ctx, dispatch.Reload{}); err != nil {
			logger.Warn("watch: reload failed", slog.String("error", err.Error()))
			return
		}
		broker.Publish(sse.Event{Type: StoreReloaded, Data: map[string][]string{"keys": keys}})
	}
}

type readiness struct {
	Status     string `json:"status"`
	SSEClients int    `json:"sse_clients"`
}

// readyHandler reports whether the dispatcher still accepts messages.
func readyHandler(d *dispatch.Dispatcher, broker *sse.Broker) http.HandlerFunc {
	return func(w http.ResponseWriter, req *http.Request) {
		body := readiness{Status: "ok", SSEClients: broker.ClientCount()}
		status := http.StatusOK
		if _, err := d.Send(req.Context(), dispatch.EditorStatus{}); err != nil {
			body.Status, status = "unavailable", http.StatusServiceUnavailable
		}
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(status)
		_ = json.NewEncoder(w).Encode(body)
	}
}
