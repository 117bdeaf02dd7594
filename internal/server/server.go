// Package server exposes stored tract scores over HTTP.
package server

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/climateburdentract/cbi-pipeline/internal/config"
	"github.com/climateburdentract/cbi-pipeline/internal/insights"
	"github.com/climateburdentract/cbi-pipeline/internal/reconcile"
	"github.com/climateburdentract/cbi-pipeline/internal/store"
)

// Server is the query API. All dependencies are injected; there is no
// process-global state.
type Server struct {
	cfg      config.ServerConfig
	store    store.Store
	locator  *reconcile.TractLocator
	insights insights.Generator
	http     *http.Server
}

// New builds a Server. locator may be nil when no tract geometries were
// extracted; the point lookup endpoint then returns 503.
func New(cfg config.ServerConfig, st store.Store, locator *reconcile.TractLocator, gen insights.Generator) *Server {
	s := &Server{
		cfg:      cfg,
		store:    st,
		locator:  locator,
		insights: gen,
	}

	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(requestLogger)
	r.Use(middleware.Recoverer)
	r.Use(middleware.Timeout(30 * time.Second))
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins: cfg.AllowedOrigins,
		AllowedMethods: []string{"GET", "OPTIONS"},
		AllowedHeaders: []string{"Accept", "Content-Type"},
		MaxAge:         300,
	}))

	r.Get("/healthz", s.handleHealth)
	r.Get("/score", s.handleScoreByPoint)
	r.Get("/scores", s.handleListScores)
	r.Get("/scores/{geoid}", s.handleScoreByTract)
	r.Get("/clusters", s.handleClusters)
	r.Get("/nlp-insights/{geoid}", s.handleInsights)

	s.http = &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.Port),
		Handler:           r,
		ReadHeaderTimeout: 10 * time.Second,
	}
	return s
}

// ListenAndServe blocks until the context is cancelled or the listener
// fails.
func (s *Server) ListenAndServe(ctx context.Context) error {
	errCh := make(chan error, 1)
	go func() {
		zap.L().Info("query api listening", zap.String("addr", s.http.Addr))
		errCh <- s.http.ListenAndServe()
	}()

	select {
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := s.http.Shutdown(shutdownCtx); err != nil {
			return eris.Wrap(err, "server: shutdown")
		}
		return nil
	case err := <-errCh:
		if err == http.ErrServerClosed {
			return nil
		}
		return eris.Wrap(err, "server: listen")
	}
}

func requestLogger(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		next.ServeHTTP(ww, r)
		zap.L().Info("request",
			zap.String("method", r.Method),
			zap.String("path", r.URL.Path),
			zap.Int("status", ww.Status()),
			zap.Duration("duration", time.Since(start)),
		)
	})
}
