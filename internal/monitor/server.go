package monitor

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"

	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/remedyops/healer/internal/core/domain"
)

// Server exposes the monitor over HTTP.
type Server struct {
	monitor *Monitor
	server  *http.Server
}

// NewServer creates the health HTTP server.
func NewServer(monitor *Monitor, port int) *Server {
	mux := http.NewServeMux()
	s := &Server{
		monitor: monitor,
		server: &http.Server{
			Addr:    fmt.Sprintf(":%d", port),
			Handler: mux,
		},
	}

	mux.HandleFunc("/health", s.handleHealth)
	mux.HandleFunc("/health/detailed", s.handleDetailed)
	mux.Handle("/metrics", promhttp.Handler())

	return s
}

// Start starts the HTTP server.
func (s *Server) Start() error {
	return s.server.ListenAndServe()
}

// Stop stops the HTTP server.
func (s *Server) Stop(ctx context.Context) error {
	return s.server.Shutdown(ctx)
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	overall := s.monitor.Overall()

	w.Header().Set("Content-Type", "application/json")
	if overall == domain.SystemUnhealthy {
		w.WriteHeader(http.StatusServiceUnavailable)
	} else {
		w.WriteHeader(http.StatusOK)
	}
	json.NewEncoder(w).Encode(map[string]string{"status": string(overall)})
}

func (s *Server) handleDetailed(w http.ResponseWriter, r *http.Request) {
	response := struct {
		Overall domain.SystemStatus        `json:"overall"`
		Checks  []domain.HealthCheckResult `json:"checks"`
	}{
		Overall: s.monitor.Overall(),
		Checks:  s.monitor.Report(),
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(response)
}
