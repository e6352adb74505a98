package cli

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"
)

// ShutdownTimeout bounds graceful shutdown, including the final flush.
const ShutdownTimeout = 10 * time.Second

// Serve runs the HTTP API on addr until ctx is cancelled, then shuts the
// server down and flushes every open session.
func Serve(ctx context.Context, app *App, addr string) error {
	srv := &http.Server{
		Addr:              addr,
		Handler:           app.HTTPServer().Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	// Channel to listen for errors coming from the listener.
	serverErrors := make(chan error, 1)
	go func() {
		app.Logger.Info("Starting bozchat server", "address", addr, "store", app.Backend.Kind)
		serverErrors <- srv.ListenAndServe()
	}()

	var serveErr error
	select {
	case err := <-serverErrors:
		if !errors.Is(err, http.ErrServerClosed) {
			serveErr = fmt.Errorf("server error: %w", err)
		}
	case <-ctx.Done():
		app.Logger.Info("Start shutdown", "cause", context.Cause(ctx))
	}

	// Give outstanding requests a deadline for completion.
	shutdownCtx, cancel := context.WithTimeout(context.Background(), ShutdownTimeout)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		app.Logger.Warn("Graceful shutdown did not complete", "timeout", ShutdownTimeout, "err", err)
		_ = srv.Close()
	}
	if err := app.Close(shutdownCtx); err != nil {
		return errors.Join(serveErr, err)
	}
	app.Logger.Info("bozchat server stopped gracefully")
	return serveErr
}
