// Package api serves the dashboard backend-for-frontend: widget layout,
// flow runs and live run state over WebSocket and SSE.
package api

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/gorilla/mux"

	"github.com/tcmartin/crewdeck/pkg/client"
	"github.com/tcmartin/crewdeck/pkg/config"
	"github.com/tcmartin/crewdeck/pkg/logging"
	"github.com/tcmartin/crewdeck/pkg/middleware"
	"github.com/tcmartin/crewdeck/pkg/runtime"
	"github.com/tcmartin/crewdeck/pkg/widgets"
)

// Server represents the HTTP API server
type Server struct {
	config  *config.Config
	router  *mux.Router
	server  *http.Server
	backend *client.Client
	runtime runtime.FlowRuntime
	prefs   *widgets.Preferences
	sockets *WebSocketManager
	relay   *Relay
	limiter *middleware.RateLimiter
	logger  *slog.Logger
}

// ServerOption configures a Server
type ServerOption func(*Server)

// WithLogger sets the server logger
func WithLogger(l *slog.Logger) ServerOption {
	return func(s *Server) { s.logger = l }
}

// WithRelay serves run events from relay. The relay must also be the
// runtime's observer for events to arrive.
func WithRelay(relay *Relay) ServerOption {
	return func(s *Server) { s.relay = relay }
}

// NewServer creates a new API server
func NewServer(cfg *config.Config, backend *client.Client, rt runtime.FlowRuntime, prefs *widgets.Preferences, opts ...ServerOption) *Server {
	s := &Server{
		config:  cfg,
		router:  mux.NewRouter(),
		backend: backend,
		runtime: rt,
		prefs:   prefs,
	}
	for _, opt := range opts {
		opt(s)
	}
	s.logger = logging.OrDefault(s.logger)
	if s.relay == nil {
		s.relay = NewRelay(s.logger)
	}
	s.sockets = NewWebSocketManager(cfg.Server.AllowedOrigins, s.logger)

	limit := cfg.Server.KickoffRateLimit
	if limit <= 0 {
		limit = 30
	}
	s.limiter = middleware.NewRateLimiter(limit, time.Minute)

	s.setupRoutes()
	return s
}

// Handler returns the root handler, for tests and embedding
func (s *Server) Handler() http.Handler {
	return s.router
}

// Start starts the HTTP server
func (s *Server) Start() error {
	addr := s.config.Server.Address()
	s.server = &http.Server{
		Addr:              addr,
		Handler:           s.router,
		ReadHeaderTimeout: 15 * time.Second,
		IdleTimeout:       60 * time.Second,
		// no WriteTimeout: run streams stay open for the whole execution
	}

	s.logger.Info("starting HTTP server", "addr", addr, "tls", s.config.Server.TLS.Enabled)

	var err error
	if s.config.Server.TLS.Enabled {
		err = s.server.ListenAndServeTLS(
			s.config.Server.TLS.CertFile,
			s.config.Server.TLS.KeyFile,
		)
	} else {
		err = s.server.ListenAndServe()
	}

	// If the server was shut down gracefully, this error is expected
	if errors.Is(err, http.ErrServerClosed) {
		return nil
	}
	return err
}

// Stop closes live streams, stops every run and shuts the server down
func (s *Server) Stop(ctx context.Context) error {
	s.relay.Close()
	s.sockets.CloseAll()
	s.runtime.Close()
	if s.server == nil {
		return nil
	}
	return s.server.Shutdown(ctx)
}

// setupRoutes configures the API routes
func (s *Server) setupRoutes() {
	s.router.Use(middleware.RequestLogger(s.logger))
	s.router.Use(middleware.CORS(s.config.Server.AllowedOrigins))
	s.router.Use(middleware.BearerToken)

	// API router with version prefix
	api := s.router.PathPrefix("/api/v1").Subrouter()

	api.HandleFunc("/health", s.handleHealth).Methods(http.MethodGet, http.MethodOptions)

	// Widget routes
	api.HandleFunc("/widgets", s.handleListWidgets).Methods(http.MethodGet, http.MethodOptions)
	api.HandleFunc("/widgets/reset", s.handleResetWidgets).Methods(http.MethodPost, http.MethodOptions)
	api.HandleFunc("/widgets/{id}/toggle", s.handleToggleWidget).Methods(http.MethodPost, http.MethodOptions)
	api.HandleFunc("/widgets/{id}/move", s.handleMoveWidget).Methods(http.MethodPost, http.MethodOptions)

	// Flow routes
	api.Handle("/flows/{id}/run", s.limiter.Limit(http.HandlerFunc(s.handleRunFlow))).Methods(http.MethodPost, http.MethodOptions)

	// Run routes
	runs := api.PathPrefix("/runs").Subrouter()
	runs.HandleFunc("/{id}", s.handleGetRun).Methods(http.MethodGet, http.MethodOptions)
	runs.HandleFunc("/{id}", s.handleRemoveRun).Methods(http.MethodDelete, http.MethodOptions)
	runs.HandleFunc("/{id}/attach", s.handleAttachRun).Methods(http.MethodPost, http.MethodOptions)
	runs.HandleFunc("/{id}/cancel", s.handleCancelRun).Methods(http.MethodPost, http.MethodOptions)
	runs.HandleFunc("/{id}/feedback", s.handleRunFeedback).Methods(http.MethodPost, http.MethodOptions)
	runs.HandleFunc("/{id}/ws", s.handleRunWebSocket).Methods(http.MethodGet)
	runs.HandleFunc("/{id}/events", s.handleRunEvents).Methods(http.MethodGet, http.MethodOptions)
}

// handleHealth handles the health check endpoint
func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"status":  "ok",
		"time":    time.Now().Format(time.RFC3339),
		"backend": s.backend.BaseURL(),
		"clients": s.sockets.GetConnectedClients(),
	})
}

// clientFor returns a backend client carrying the caller's token, or the
// server's own client when the caller sent none
func (s *Server) clientFor(r *http.Request) (*client.Client, error) {
	token, ok := middleware.GetToken(r)
	if !ok || token == s.backend.Token() {
		return s.backend, nil
	}
	return client.New(s.backend.BaseURL(),
		client.WithToken(token),
		client.WithTimeout(s.config.API.Timeout.Std()),
		client.WithLogger(s.logger))
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, detail string) {
	writeJSON(w, status, map[string]string{"detail": detail})
}

// writeFailure maps an error to a response. Backend client errors keep
// their status; backend server errors become 502.
func (s *Server) writeFailure(w http.ResponseWriter, r *http.Request, err error) {
	var apiErr *client.APIError
	switch {
	case errors.Is(err, runtime.ErrRunNotFound):
		writeError(w, http.StatusNotFound, "run not found")
	case errors.Is(err, widgets.ErrUnknownWidget):
		writeError(w, http.StatusNotFound, err.Error())
	case errors.As(err, &apiErr):
		status := apiErr.StatusCode
		if status >= http.StatusInternalServerError {
			status = http.StatusBadGateway
		}
		writeError(w, status, apiErr.Detail)
	default:
		s.logger.Error("request failed", "method", r.Method, "path", r.URL.Path, "error", err)
		writeError(w, http.StatusInternalServerError, err.Error())
	}
}
