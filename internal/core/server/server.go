package server

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/mohammed-shakir/rasterman/internal/core/config"
	"github.com/mohammed-shakir/rasterman/internal/core/health"
	middleware "github.com/mohammed-shakir/rasterman/internal/core/middleware"
	"github.com/mohammed-shakir/rasterman/internal/core/router"
)

type Deps struct {
	Logger  *slog.Logger
	Service router.RasterService
	// Metrics defaults to the default Prometheus registry.
	Metrics     http.Handler
	MetricsPath string
	Ready       map[string]health.ReadinessReporter
	// DataRoot, when set, confines query paths to one directory tree.
	DataRoot string
}

// NewHandler builds the HTTP routes.
func NewHandler(d Deps) http.Handler {
	if d.Logger == nil {
		d.Logger = slog.Default()
	}
	if d.Metrics == nil {
		d.Metrics = promhttp.Handler()
	}
	if d.MetricsPath == "" {
		d.MetricsPath = "/metrics"
	}

	r := chi.NewRouter()
	r.Use(middleware.Recover(d.Logger))
	r.Use(middleware.Logging(d.Logger))
	r.Use(middleware.CORS())

	r.Get("/healthz", health.Liveness())
	r.Get("/readyz", health.Readiness(d.Ready))
	r.Get(d.MetricsPath, d.Metrics.ServeHTTP)
	svc := router.Confine(d.Service, d.DataRoot)
	r.Route("/v1", func(r chi.Router) {
		r.Get("/properties", router.HandleProperties(d.Logger, svc))
		r.Get("/concurrent", router.HandleConcurrent(d.Logger, svc))
		r.Get("/value", router.HandleValue(d.Logger, svc))
	})
	return r
}

// sets up http and starts serving
func Run(ctx context.Context, cfg config.Config, d Deps) error {
	logger := d.Logger
	if logger == nil {
		logger = slog.Default()
	}
	srv := &http.Server{
		Addr:              cfg.Addr,
		Handler:           NewHandler(d),
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       15 * time.Second,
		WriteTimeout:      60 * time.Second,
		IdleTimeout:       60 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Info("http listen", "addr", cfg.Addr)
		if err := srv.ListenAndServe(); !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	select {
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		_ = srv.Shutdown(shutdownCtx)
		return nil
	case err := <-errCh:
		return err
	}
}
