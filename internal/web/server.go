// Package web exposes the fleet's operational HTTP surface: Prometheus
// metrics, a liveness probe, per-bot status, and the inspect dispatch
// endpoint itself.
package web

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/Will-Luck/inspectbot/internal/bot"
	"github.com/Will-Luck/inspectbot/internal/inspect"
	"github.com/Will-Luck/inspectbot/internal/logging"
)

// Dispatcher is the capability the web server needs from the bot
// controller to serve requests.
type Dispatcher interface {
	LookupInspect(ctx context.Context, link inspect.Link) (inspect.ItemInfo, error)
	GetReadyCount() int
	GetStatus() []bot.Status
}

// Server is the fleet's operational HTTP server.
type Server struct {
	ctrl           Dispatcher
	log            *logging.Logger
	metricsEnabled bool

	mux    *http.ServeMux
	server *http.Server
}

// NewServer builds a Server wired to ctrl. Pass metricsEnabled to expose
// /metrics via promhttp.
func NewServer(ctrl Dispatcher, log *logging.Logger, metricsEnabled bool) *Server {
	s := &Server{ctrl: ctrl, log: log, metricsEnabled: metricsEnabled, mux: http.NewServeMux()}
	s.registerRoutes()
	return s
}

func (s *Server) registerRoutes() {
	if s.metricsEnabled {
		s.mux.HandleFunc("GET /metrics", func(w http.ResponseWriter, r *http.Request) {
			promhttp.Handler().ServeHTTP(w, r)
		})
	}
	s.mux.HandleFunc("GET /healthz", s.handleHealthz)
	s.mux.HandleFunc("GET /status", s.handleStatus)
	s.mux.HandleFunc("GET /inspect", s.handleInspect)
}

func (s *Server) handleHealthz(w http.ResponseWriter, r *http.Request) {
	if s.ctrl.GetReadyCount() == 0 {
		w.WriteHeader(http.StatusServiceUnavailable)
		_, _ = w.Write([]byte("no ready bots"))
		return
	}
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("ok"))
}

func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	statuses := s.ctrl.GetStatus()
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(statuses)
}

func (s *Server) handleInspect(w http.ResponseWriter, r *http.Request) {
	raw := r.URL.Query().Get("link")
	if raw == "" {
		http.Error(w, "missing link parameter", http.StatusBadRequest)
		return
	}
	link, err := inspect.Parse(raw)
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	item, err := s.ctrl.LookupInspect(r.Context(), link)
	if err != nil {
		s.log.Warn("web: inspect dispatch failed", "error", err)
		http.Error(w, err.Error(), http.StatusServiceUnavailable)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(item)
}

// ListenAndServe starts the HTTP server on addr.
func (s *Server) ListenAndServe(addr string) error {
	s.server = &http.Server{
		Addr:         addr,
		Handler:      s.mux,
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 30 * time.Second,
		IdleTimeout:  120 * time.Second,
	}
	s.log.Info("inspectbot web listening", "addr", addr)
	return s.server.ListenAndServe()
}

// Shutdown gracefully shuts down the HTTP server.
func (s *Server) Shutdown(ctx context.Context) error {
	if s.server == nil {
		return nil
	}
	return s.server.Shutdown(ctx)
}
