package daemon

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net"
	"net/http"
	"strings"
	"time"

	"fieldsync/internal/api"
	"fieldsync/internal/config"
	"fieldsync/internal/logging"
	"fieldsync/internal/mutation"
	"fieldsync/internal/queue"
)

const maxRequestBody = 1 << 20

type statusFunc func(ctx context.Context) api.DaemonStatus

type apiServer struct {
	bind    string
	token   string
	logger  *slog.Logger
	service *api.SyncService
	status  statusFunc

	listener net.Listener
	server   *http.Server
}

// newAPIServer returns nil when the HTTP API is disabled. All methods are
// nil-safe.
func newAPIServer(cfg *config.Config, service *api.SyncService, status statusFunc, logger *slog.Logger) *apiServer {
	bind := strings.TrimSpace(cfg.Paths.APIBind)
	if bind == "" {
		return nil
	}
	return &apiServer{
		bind:    bind,
		token:   cfg.Paths.APIToken,
		logger:  logging.NewComponentLogger(logger, "api-server"),
		service: service,
		status:  status,
	}
}

func (s *apiServer) routes() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/api/status", authMiddleware(s.token, s.handleStatus))
	mux.HandleFunc("/api/queue", authMiddleware(s.token, s.handleQueue))
	mux.HandleFunc("/api/sync", authMiddleware(s.token, s.handleSync))
	mux.HandleFunc("/api/dead-letters", authMiddleware(s.token, s.handleDeadLetters))
	mux.HandleFunc("/api/dead-letters/", authMiddleware(s.token, s.handleDeadLetterItem))
	mux.HandleFunc("/api/stream", authMiddleware(s.token, s.handleStream))
	return mux
}

func (s *apiServer) listen() error {
	if s == nil {
		return nil
	}
	listener, err := net.Listen("tcp", s.bind)
	if err != nil {
		return fmt.Errorf("api listen: %w", err)
	}
	s.listener = listener
	s.server = &http.Server{
		Handler:           s.routes(),
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       15 * time.Second,
		IdleTimeout:       60 * time.Second,
	}
	s.logger.Info("api server listening", logging.String("address", listener.Addr().String()))
	return nil
}

// serve blocks until ctx is done or the server fails. Request contexts derive
// from ctx so long-lived streams end with the daemon.
func (s *apiServer) serve(ctx context.Context) error {
	if s == nil || s.listener == nil {
		return nil
	}
	s.server.BaseContext = func(net.Listener) context.Context { return ctx }

	errCh := make(chan error, 1)
	go func() {
		errCh <- s.server.Serve(s.listener)
	}()

	select {
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = s.server.Shutdown(shutdownCtx)
		<-errCh
		return nil
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return fmt.Errorf("api serve: %w", err)
	}
}

func (s *apiServer) address() string {
	if s == nil || s.listener == nil {
		return ""
	}
	return s.listener.Addr().String()
}

func (s *apiServer) handleStatus(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		s.writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}
	s.writeJSON(w, http.StatusOK, s.status(r.Context()))
}

func (s *apiServer) handleQueue(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodGet:
		items, err := s.service.RefreshQueue(r.Context())
		if err != nil {
			s.writeServiceError(w, err)
			return
		}
		s.writeJSON(w, http.StatusOK, api.QueueListResponse{Items: items})
	case http.MethodPost:
		var req api.EnqueueRequest
		if err := json.NewDecoder(io.LimitReader(r.Body, maxRequestBody)).Decode(&req); err != nil {
			s.writeError(w, http.StatusBadRequest, "invalid request body")
			return
		}
		resp, err := s.service.Enqueue(r.Context(), req)
		if err != nil {
			s.writeServiceError(w, err)
			return
		}
		s.writeJSON(w, http.StatusCreated, resp)
	case http.MethodDelete:
		removed, err := s.service.ClearQueue(r.Context())
		if err != nil {
			s.writeServiceError(w, err)
			return
		}
		s.writeJSON(w, http.StatusOK, map[string]int64{"removed": removed})
	default:
		s.writeError(w, http.StatusMethodNotAllowed, "method not allowed")
	}
}

// handleSync runs a pass and waits for it unless wait=false, in which case
// the pass is requested and the handler returns 202, or 200 with a skip
// reason while paused.
func (s *apiServer) handleSync(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		s.writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}
	if strings.EqualFold(r.URL.Query().Get("wait"), "false") {
		if !s.service.RequestSync(context.WithoutCancel(r.Context())) {
			s.writeJSON(w, http.StatusOK, api.SyncResponse{Skipped: "paused"})
			return
		}
		w.WriteHeader(http.StatusAccepted)
		return
	}
	resp, err := s.service.Sync(r.Context())
	if err != nil {
		s.writeServiceError(w, err)
		return
	}
	s.writeJSON(w, http.StatusOK, resp)
}

func (s *apiServer) handleDeadLetters(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodGet:
		letters, err := s.service.DeadLetters(r.Context())
		if err != nil {
			s.writeServiceError(w, err)
			return
		}
		s.writeJSON(w, http.StatusOK, api.DeadLetterListResponse{Items: letters})
	case http.MethodDelete:
		removed, err := s.service.PurgeDeadLetters(r.Context())
		if err != nil {
			s.writeServiceError(w, err)
			return
		}
		s.writeJSON(w, http.StatusOK, map[string]int64{"removed": removed})
	default:
		s.writeError(w, http.StatusMethodNotAllowed, "method not allowed")
	}
}

// handleDeadLetterItem serves POST /api/dead-letters/{id}/requeue.
func (s *apiServer) handleDeadLetterItem(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		s.writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}
	rest := strings.TrimPrefix(r.URL.Path, "/api/dead-letters/")
	id, action, ok := strings.Cut(rest, "/")
	if !ok || id == "" || action != "requeue" {
		s.writeError(w, http.StatusNotFound, "not found")
		return
	}
	resp, err := s.service.Requeue(r.Context(), id)
	if err != nil {
		s.writeServiceError(w, err)
		return
	}
	s.writeJSON(w, http.StatusCreated, resp)
}

func (s *apiServer) writeServiceError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, mutation.ErrInvalidPayload):
		s.writeError(w, http.StatusBadRequest, err.Error())
	case errors.Is(err, queue.ErrNotFound):
		s.writeError(w, http.StatusNotFound, err.Error())
	default:
		s.logger.Error("api request failed", logging.Error(err))
		s.writeError(w, http.StatusInternalServerError, err.Error())
	}
}

func (s *apiServer) writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if payload == nil {
		return
	}
	if err := json.NewEncoder(w).Encode(payload); err != nil {
		s.logger.Error("failed to encode response", logging.Error(err))
	}
}

func (s *apiServer) writeError(w http.ResponseWriter, status int, message string) {
	s.writeJSON(w, status, map[string]string{"error": message})
}
