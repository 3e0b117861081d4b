package application

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"

	"go.uber.org/zap"

	"github.com/eugenenazirov/zetafill/internal/api"
	"github.com/eugenenazirov/zetafill/internal/config"
	"github.com/eugenenazirov/zetafill/internal/runs"
	"github.com/eugenenazirov/zetafill/internal/storage"
)

// App encapsulates the application dependencies and HTTP server.
type App struct {
	storage storage.Storage
	runs    *runs.Manager
	handler *api.Handler
	router  http.Handler
	logger  *zap.Logger
	server  *http.Server
}

// New initializes the application with all dependencies from the provided configuration.
func New(ctx context.Context, cfg config.Config, logger *zap.Logger) (*App, error) {
	store, err := storage.Open(ctx, storage.Options{
		Backend:     cfg.Storage.Backend,
		LevelDBPath: cfg.Storage.LevelDBPath,
		RedisAddr:   cfg.Storage.RedisAddr,
		RedisPrefix: cfg.Storage.RedisPrefix,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to open %s storage: %w", cfg.Storage.Backend, err)
	}

	manager := runs.NewManager(
		runs.WithLogger(logger),
		runs.WithMaxRuns(cfg.Runs.MaxRuns),
		runs.WithDefaults(runs.Defaults{
			GridSize:    cfg.Runs.GridSize,
			MaxAttempts: cfg.Runs.MaxAttempts,
			MaxDisks:    cfg.Runs.MaxDisks,
			MinDiskArea: cfg.Runs.MinDiskArea,
		}),
	)

	handler := api.NewHandler(manager, store, api.WithMaxSteps(cfg.Runs.MaxStepsPerRequest))
	apiRouter := api.NewRouter(handler, logger,
		api.WithLogging(cfg.EnableRequestLogging),
		api.WithRateLimit(cfg.RateLimitRPS, cfg.RateLimitBurst),
	)

	logger.Info("application initialized",
		zap.String("storage", cfg.Storage.Backend),
		zap.Int("max_steps_per_request", cfg.Runs.MaxStepsPerRequest),
	)

	return &App{
		storage: store,
		runs:    manager,
		handler: handler,
		router:  apiRouter,
		logger:  logger,
		server:  NewServer(cfg, BuildRootHandler(apiRouter)),
	}, nil
}

// BuildRootHandler mounts the API under /api/ and redirects the bare root to
// the health endpoint.
func BuildRootHandler(apiHandler http.Handler) http.Handler {
	mux := http.NewServeMux()
	mux.Handle("/api/", apiHandler)
	mux.Handle("/", http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/" {
			http.NotFound(w, r)
			return
		}
		http.Redirect(w, r, "/api/health", http.StatusTemporaryRedirect)
	}))
	return mux
}

// NewServer creates and configures an HTTP server from the provided configuration.
func NewServer(cfg config.Config, handler http.Handler) *http.Server {
	addr := cfg.Port
	if !strings.Contains(addr, ":") {
		addr = ":" + addr
	}

	return &http.Server{
		Addr:              addr,
		Handler:           handler,
		ReadHeaderTimeout: cfg.ReadHeaderTimeout,
		WriteTimeout:      cfg.WriteTimeout,
		IdleTimeout:       cfg.IdleTimeout,
	}
}

// Start starts the HTTP server in a goroutine and logs the listening address.
func (a *App) Start() error {
	go func() {
		a.logger.Info("server listening", zap.String("addr", a.server.Addr))
		if err := a.server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			a.logger.Fatal("server error", zap.Error(err))
		}
	}()
	return nil
}

// Server returns the HTTP server instance for shutdown handling.
func (a *App) Server() *http.Server {
	return a.server
}

// Close releases the snapshot store. Call it after the server has stopped.
func (a *App) Close() error {
	if err := a.storage.Close(); err != nil {
		return fmt.Errorf("close storage: %w", err)
	}
	return nil
}
