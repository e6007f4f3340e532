// Package web serves the status endpoints: health, metrics, recent
// matches, and the live WebSocket match feed.
package web

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"uewatch/internal/domain"
	"uewatch/internal/metrics"
)

// Server is the HTTP status server.
type Server struct {
	host    string
	port    int
	version string
	store   domain.Store
	logger  *slog.Logger
	hub     *Hub
	server  *http.Server
}

type Config struct {
	Host    string
	Port    int
	Version string
	Store   domain.Store
	Logger  *slog.Logger
}

func NewServer(cfg Config) *Server {
	if cfg.Host == "" {
		cfg.Host = "127.0.0.1"
	}
	if cfg.Port == 0 {
		cfg.Port = 8090
	}
	return &Server{
		host:    cfg.Host,
		port:    cfg.Port,
		version: cfg.Version,
		store:   cfg.Store,
		logger:  cfg.Logger,
		hub:     NewHub(cfg.Logger),
	}
}

// Hub returns the WebSocket feed, which is also a domain.Notifier.
func (s *Server) Hub() *Hub { return s.hub }

// Start serves until ctx is cancelled.
func (s *Server) Start(ctx context.Context) error {
	mux := http.NewServeMux()
	mux.HandleFunc("/healthz", s.handleHealth)
	mux.HandleFunc("/api/matches", s.handleMatches)
	mux.HandleFunc("/metrics", metrics.Collector.Handler())
	mux.HandleFunc("/ws", s.hub.handleUpgrade)

	s.server = &http.Server{
		Addr:              fmt.Sprintf("%s:%d", s.host, s.port),
		Handler:           mux,
		ReadHeaderTimeout: 10 * time.Second,
	}

	s.logger.Info("web server starting", "addr", s.server.Addr)

	errCh := make(chan error, 1)
	go func() {
		if err := s.server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errCh <- err
		}
	}()

	select {
	case <-ctx.Done():
		s.hub.closeAll()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		return s.server.Shutdown(shutdownCtx)
	case err := <-errCh:
		return err
	}
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"status":  "ok",
		"version": s.version,
		"uptime":  metrics.Collector.Uptime().String(),
	})
}

func (s *Server) handleMatches(w http.ResponseWriter, r *http.Request) {
	limit := 50
	if q := r.URL.Query().Get("limit"); q != "" {
		n, err := strconv.Atoi(q)
		if err != nil || n < 1 || n > 1000 {
			writeJSON(w, http.StatusBadRequest, map[string]string{"error": "limit must be 1..1000"})
			return
		}
		limit = n
	}

	matches, err := s.store.ListMatches(r.Context(), limit)
	if err != nil {
		s.logger.Error("list matches failed", "err", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "storage error"})
		return
	}
	if matches == nil {
		matches = []domain.Match{}
	}
	writeJSON(w, http.StatusOK, matches)
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}
