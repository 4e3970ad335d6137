// Package api exposes the operational control surface: health and runtime
// statistics. Authentication is handled upstream.
package api

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/voxhall/mediabot/internal/dedup"
	"github.com/voxhall/mediabot/internal/queue"
)

// Server serves the control API.
type Server struct {
	addr    string
	stats   *queue.StatsCollector
	limiter *queue.SlidingWindowLimiter
	cache   *dedup.Cache
	logger  *slog.Logger
	srv     *http.Server
}

// NewServer creates a control API server.
func NewServer(
	addr string,
	stats *queue.StatsCollector,
	limiter *queue.SlidingWindowLimiter,
	cache *dedup.Cache,
	logger *slog.Logger,
) *Server {
	if logger == nil {
		logger = slog.Default()
	}
	return &Server{
		addr:    addr,
		stats:   stats,
		limiter: limiter,
		cache:   cache,
		logger:  logger,
	}
}

// Routes builds the router.
func (s *Server) Routes() chi.Router {
	r := chi.NewRouter()
	r.Use(middleware.Recoverer)
	r.Get("/healthz", s.healthHandler)
	r.Get("/stats", s.statsHandler)
	return r
}

// Start serves until the context is cancelled.
func (s *Server) Start(ctx context.Context) error {
	s.srv = &http.Server{
		Addr:              s.addr,
		Handler:           s.Routes(),
		ReadHeaderTimeout: 5 * time.Second,
	}

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := s.srv.Shutdown(shutdownCtx); err != nil {
			s.logger.Error("Control API shutdown failed", slog.Any("error", err))
		}
	}()

	s.logger.InfoContext(ctx, "Control API listening", slog.String("addr", s.addr))
	if err := s.srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

func (s *Server) healthHandler(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]bool{"ok": true})
}

func (s *Server) statsHandler(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"queue":        s.stats.Snapshot(),
		"rate_limiter": s.limiter.Stats(),
		"cache": map[string]any{
			"entries": s.cache.Len(),
		},
	})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
