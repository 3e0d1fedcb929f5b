package main

import (
	"context"
	"net/http"
	"time"

	"github.com/jamsocket-labs/driftroom/internal/metrics"
)

// runMetricsServer serves /metrics until ctx is cancelled, then shuts down
// gracefully.
func runMetricsServer(ctx context.Context, addr string, registry *metrics.Registry) error {
	mux := http.NewServeMux()
	mux.Handle("/metrics", registry.Handler())

	httpServer := &http.Server{
		Addr:         addr,
		Handler:      mux,
		ReadTimeout:  5 * time.Second,
		WriteTimeout: 5 * time.Second,
		IdleTimeout:  30 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		errCh <- httpServer.ListenAndServe()
	}()

	select {
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		return httpServer.Shutdown(shutdownCtx)
	case err := <-errCh:
		if err != nil && err != http.ErrServerClosed {
			return err
		}
		return nil
	}
}
