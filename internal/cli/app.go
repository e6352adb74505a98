package cli

import (
	"context"
	"errors"
	"log/slog"

	"github.com/agenciaboz-dev/bozchat-sub001/internal/config"
	"github.com/agenciaboz-dev/bozchat-sub001/internal/metrics"
	httpadapter "github.com/agenciaboz-dev/bozchat-sub001/pkg/adapters/http"
	"github.com/agenciaboz-dev/bozchat-sub001/pkg/editor"
	"github.com/agenciaboz-dev/bozchat-sub001/pkg/layout"
	"github.com/agenciaboz-dev/bozchat-sub001/pkg/persistence/middleware"
	"github.com/agenciaboz-dev/bozchat-sub001/pkg/session"
)

// App wires the editing stack shared by the serve and mcp commands.
type App struct {
	Config   config.Config
	Logger   *slog.Logger
	Backend  *Backend
	Metrics  *metrics.Recorder
	Streams  *httpadapter.StreamManager
	Sessions *session.Manager
}

// NewApp opens the configured store and builds a session manager whose
// sessions report to the metrics recorder and the SSE streams.
func NewApp(ctx context.Context, cfg config.Config, logger *slog.Logger) (*App, error) {
	backend, err := OpenBackend(ctx, cfg.Store, logger)
	if err != nil {
		return nil, err
	}

	recorder := metrics.New()
	streams := httpadapter.NewStreamManager(logger)

	repo := middleware.Chain(backend.Store,
		middleware.WithLogging(logger),
		middleware.WithMetrics(recorder),
	)

	sessionOpts := []session.Option{
		session.WithLogger(logger),
		session.WithLockTTL(cfg.LockTTL.Std()),
		session.WithEditorOptions(
			editor.WithLogger(logger),
			editor.WithLayout(layout.New(cfg.Layout)),
			editor.WithDebounce(cfg.Debounce.Std()),
			editor.WithSaveTimeout(cfg.SaveTimeout.Std()),
			editor.WithHooks(recorder.Hooks()),
			editor.WithHooks(streams.Hooks()),
		),
	}
	if backend.Locker != nil {
		sessionOpts = append(sessionOpts, session.WithLocker(backend.Locker))
	}

	return &App{
		Config:   cfg,
		Logger:   logger,
		Backend:  backend,
		Metrics:  recorder,
		Streams:  streams,
		Sessions: session.NewManager(repo, sessionOpts...),
	}, nil
}

// HTTPServer builds the HTTP adapter over the app's sessions.
func (a *App) HTTPServer() *httpadapter.Server {
	return httpadapter.NewServer(a.Sessions,
		httpadapter.WithLogger(a.Logger),
		httpadapter.WithStreams(a.Streams),
		httpadapter.WithBotStore(a.Backend.Store),
		httpadapter.WithMetrics(a.Metrics.Handler()),
	)
}

// Close flushes every open session and closes the store.
func (a *App) Close(ctx context.Context) error {
	err := a.Sessions.CloseAll(ctx)
	if err != nil {
		a.Logger.Warn("Some sessions could not be flushed", "err", err)
	}
	return errors.Join(err, a.Backend.Close(ctx))
}
