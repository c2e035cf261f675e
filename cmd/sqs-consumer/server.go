package main

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/slackmgr/types"
)

const shutdownTimeout = 5 * time.Second

type runningChecker interface {
	IsRunning() bool
}

func newMux(consumer runningChecker, gatherer prometheus.Gatherer) *http.ServeMux {
	mux := http.NewServeMux()
	mux.HandleFunc("/healthz", healthz(consumer))
	mux.Handle("/metrics", promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{}))

	return mux
}

func healthz(consumer runningChecker) http.HandlerFunc {
	return func(w http.ResponseWriter, _ *http.Request) {
		if !consumer.IsRunning() {
			http.Error(w, "consumer not running", http.StatusServiceUnavailable)
			return
		}

		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	}
}

// startHTTPServer serves handler until ctx is done. The returned channel is
// closed once the server has shut down.
func startHTTPServer(ctx context.Context, addr string, handler http.Handler, logger types.Logger) <-chan struct{} {
	srv := &http.Server{
		Addr:              addr,
		Handler:           handler,
		ReadHeaderTimeout: 5 * time.Second,
	}

	go func() {
		logger.Infof("Starting HTTP server on %s", addr)

		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Errorf("HTTP server failed: %v", err)
		}
	}()

	done := make(chan struct{})

	go func() {
		defer close(done)

		<-ctx.Done()

		shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), shutdownTimeout)
		defer cancel()

		if err := srv.Shutdown(shutdownCtx); err != nil {
			logger.Errorf("HTTP server shutdown failed: %v", err)
			return
		}

		logger.Info("HTTP server shut down")
	}()

	return done
}
