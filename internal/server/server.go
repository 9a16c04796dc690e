// Package server exposes the subtitle service over HTTP.
package server

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"os"
	"strings"
	"time"

	"subburn/internal/config"
	"subburn/internal/deps"
	"subburn/internal/history"
	"subburn/internal/logging"
	"subburn/internal/pipeline"
	"subburn/internal/workspace"
)

// Server handles subtitle requests over HTTP.
type Server struct {
	cfg      *config.Config
	logger   *slog.Logger
	pipeline *pipeline.Pipeline
	manager  *workspace.Manager
	store    *history.Store
	started  time.Time

	listener net.Listener
	server   *http.Server
}

// New assembles the HTTP server. store may be nil when history is disabled.
func New(cfg *config.Config, p *pipeline.Pipeline, manager *workspace.Manager, store *history.Store, logger *slog.Logger) *Server {
	if logger == nil {
		logger = logging.NewNop()
	}
	srv := &Server{
		cfg:      cfg,
		logger:   logger,
		pipeline: p,
		manager:  manager,
		store:    store,
		started:  time.Now(),
	}

	mux := http.NewServeMux()
	mux.HandleFunc("/api/subtitles", srv.handleSubtitles)
	mux.HandleFunc("/api/status", srv.handleStatus)
	mux.HandleFunc("/api/requests", srv.handleRequests)
	mux.HandleFunc("/api/requests/", srv.handleRequestByID)

	// Uploads and rendered responses can take minutes, so only the header
	// read and idle keepalives are bounded.
	srv.server = &http.Server{
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
		IdleTimeout:       60 * time.Second,
	}
	return srv
}

// Handler returns the route mux, mainly for tests.
func (s *Server) Handler() http.Handler {
	return s.server.Handler
}

// Start begins serving on the configured bind address and shuts down when
// ctx is canceled.
func (s *Server) Start(ctx context.Context) error {
	bind := strings.TrimSpace(s.cfg.Paths.APIBind)
	if bind == "" {
		return fmt.Errorf("api bind address not configured")
	}
	listener, err := net.Listen("tcp", bind)
	if err != nil {
		return fmt.Errorf("api listen: %w", err)
	}
	s.listener = listener

	go func() {
		if err := s.server.Serve(listener); err != nil && !errors.Is(err, http.ErrServerClosed) {
			s.log().Error("api server error", logging.Error(err))
		}
	}()

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = s.server.Shutdown(shutdownCtx)
	}()

	s.log().Info("api server listening", logging.String("address", listener.Addr().String()))
	return nil
}

// Stop shuts the server down immediately.
func (s *Server) Stop() {
	if s == nil || s.server == nil {
		return
	}
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	_ = s.server.Shutdown(shutdownCtx)
	if s.listener != nil {
		_ = s.listener.Close()
		s.listener = nil
	}
}

// Addr returns the bound listen address, empty before Start.
func (s *Server) Addr() string {
	if s.listener == nil {
		return ""
	}
	return s.listener.Addr().String()
}

func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		s.writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}
	statuses := deps.CheckBinaries(deps.Requirements(s.cfg))
	depViews := make([]dependencyStatus, 0, len(statuses))
	for _, status := range statuses {
		depViews = append(depViews, dependencyStatus{
			Name:      status.Name,
			Command:   status.Command,
			Available: status.Available,
			Detail:    status.Detail,
		})
	}
	payload := statusResponse{
		Running:       true,
		PID:           os.Getpid(),
		UptimeSeconds: int64(time.Since(s.started).Seconds()),
		StagingDir:    s.cfg.Paths.StagingDir,
		Dependencies:  depViews,
	}
	if s.store != nil {
		payload.HistoryDBPath = s.store.Path()
	}
	s.writeJSON(w, http.StatusOK, payload)
}

func (s *Server) log() *slog.Logger {
	return s.logger.With(logging.String(logging.FieldComponent, "api-server"))
}
