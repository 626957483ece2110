// Package httpapi serves the JSON ratio history, health probes, Prometheus
// metrics, and the static chart frontend.
package httpapi

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"

	"xsushi-ratio-tracker/internal/config"
	"xsushi-ratio-tracker/internal/storage"
)

// Pinger reports whether the backing store is reachable.
type Pinger interface {
	Ping(ctx context.Context) error
}

// Server bundles the router and the listener lifecycle.
type Server struct {
	srv    *http.Server
	logger zerolog.Logger
}

// New builds the router and the HTTP server around it.
func New(cfg config.HTTPConfig, ratios storage.RatioStore, pinger Pinger, logger zerolog.Logger) *Server {
	log := logger.With().Str("component", "httpapi").Logger()

	r := chi.NewRouter()
	r.Use(requestLogger(log))

	r.Handle("/metrics", promhttp.Handler())
	r.Get("/healthz", handleHealth())
	r.Get("/readyz", handleReady(pinger))

	r.Route("/api", func(r chi.Router) {
		r.Get("/ratio-data", handleRatioData(ratios, log))
	})

	r.Get("/robots.txt", handleRobots())
	r.Get("/favicon.ico", handleFavicon(cfg.StaticDir))
	r.Get("/", handleIndex(cfg.StaticDir, ratios, log))
	r.Handle("/static/*", http.StripPrefix("/static/", http.FileServer(http.Dir(cfg.StaticDir))))

	return &Server{
		srv: &http.Server{
			Addr:         cfg.Listen,
			Handler:      r,
			ReadTimeout:  15 * time.Second,
			WriteTimeout: 15 * time.Second,
			IdleTimeout:  60 * time.Second,
		},
		logger: log,
	}
}

// Run serves until ctx is cancelled, then shuts down gracefully.
func (s *Server) Run(ctx context.Context) error {
	errCh := make(chan error, 1)
	go func() {
		s.logger.Info().Str("addr", s.srv.Addr).Msg("http server listening")
		if err := s.srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
			return
		}
		errCh <- nil
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := s.srv.Shutdown(shutdownCtx); err != nil {
		return err
	}
	s.logger.Info().Msg("http server stopped")
	return <-errCh
}
