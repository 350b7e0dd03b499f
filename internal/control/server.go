package control

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"

	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/careops/caresync/internal/netmon"
)

// Server exposes the client's network state and metrics over HTTP.
type Server struct {
	monitor *netmon.Monitor
	server  *http.Server
}

// NewServer creates the status server.
func NewServer(monitor *netmon.Monitor, port int) *Server {
	mux := http.NewServeMux()
	s := &Server{
		monitor: monitor,
		server: &http.Server{
			Addr:    fmt.Sprintf(":%d", port),
			Handler: mux,
		},
	}

	mux.HandleFunc("/health", s.handleHealth)
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

type healthResponse struct {
	Online     bool   `json:"online"`
	WasOffline bool   `json:"was_offline"`
	Quality    string `json:"quality"`
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	state := s.monitor.State()

	w.Header().Set("Content-Type", "application/json")
	if !state.Online {
		w.WriteHeader(http.StatusServiceUnavailable)
	} else {
		w.WriteHeader(http.StatusOK)
	}

	json.NewEncoder(w).Encode(healthResponse{
		Online:     state.Online,
		WasOffline: state.WasOffline,
		Quality:    string(state.Quality),
	})
}
