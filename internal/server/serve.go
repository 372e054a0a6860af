// Package server runs the development HTTP servers: the static server for
// the output directory with live reload, and the JSON mock API.
package server

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"time"

	"golang.org/x/sync/errgroup"
)

const shutdownTimeout = 5 * time.Second

// listenAndServe serves h on port until ctx is cancelled, then shuts the
// server down gracefully.
func listenAndServe(ctx context.Context, name string, port int, h http.Handler, logger *slog.Logger) error {
	eg, egctx := errgroup.WithContext(ctx)

	srv := &http.Server{
		Addr:    fmt.Sprintf(":%d", port),
		Handler: h,
		BaseContext: func(_ net.Listener) context.Context {
			return egctx
		},
		ReadHeaderTimeout: 10 * time.Second,
	}

	eg.Go(func() error {
		logger.Info("starting "+name, "addr", fmt.Sprintf("http://localhost:%d", port))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("%s error: %w", name, err)
		}
		return nil
	})

	eg.Go(func() error {
		<-egctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()

		logger.Debug("shutting down " + name)
		return srv.Shutdown(shutdownCtx)
	})

	return eg.Wait()
}
