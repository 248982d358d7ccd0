// Package api exposes the sync engine over HTTP with API-key auth and
// per-client rate limiting.
package api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"rostersync/internal/config"
	"rostersync/internal/metrics"
	"rostersync/internal/models"
	"rostersync/internal/repository"
	"rostersync/internal/sync"

	"github.com/rs/zerolog"
)

// Engine is the slice of the sync orchestrator the HTTP layer calls.
type Engine interface {
	Import(ctx context.Context, req sync.ImportRequest) (*sync.ImportResult, error)
	Export(ctx context.Context, req sync.ExportRequest) (*sync.ExportResult, error)
	Snapshot(ctx context.Context, departmentID int64, dateStart, dateEnd time.Time) (*models.Snapshot, error)
	Restore(ctx context.Context, snap *models.Snapshot) (*sync.RestoreResult, error)
}

type HTTPServer struct {
	cfg     config.APIConfig
	targets []sync.Target
	engine  Engine
	runs    repository.RunRepository
	server  *http.Server
	auth    *HTTPAuth
	logger  zerolog.Logger
}

func NewHTTPServer(cfg config.APIConfig, targets []sync.Target, engine Engine, runs repository.RunRepository, logger *zerolog.Logger) *HTTPServer {
	srv := &HTTPServer{
		cfg:     cfg,
		targets: targets,
		engine:  engine,
		runs:    runs,
		logger:  logger.With().Str("component", "http").Logger(),
	}
	srv.auth = NewHTTPAuth(cfg, runs)

	mux := http.NewServeMux()
	mux.HandleFunc("/api/v1/sync/import", srv.handleImport)
	mux.HandleFunc("/api/v1/sync/export", srv.handleExport)
	mux.HandleFunc("/api/v1/snapshot", srv.handleSnapshot)
	mux.HandleFunc("/api/v1/snapshot/restore", srv.handleRestore)
	mux.HandleFunc("/api/v1/runs", srv.handleRuns)
	mux.HandleFunc("/api/v1/runs/", srv.handleRun)
	mux.HandleFunc("/api/v1/targets", srv.handleTargets)
	mux.HandleFunc("/healthz", srv.handleHealth)

	handler := srv.loggingMiddleware(srv.auth.Wrap(mux))

	srv.server = &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.HTTP.Port),
		Handler:           handler,
		ReadHeaderTimeout: 5 * time.Second,
		// Imports against big sheets take a while; no write timeout.
	}

	return srv
}

// Handler exposes the composed handler chain for tests.
func (s *HTTPServer) Handler() http.Handler {
	return s.server.Handler
}

func (s *HTTPServer) Start() error {
	if s.server == nil {
		return fmt.Errorf("http server is not initialized")
	}
	s.logger.Info().Str("addr", s.server.Addr).Msg("http api listening")
	if err := s.server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return err
	}
	return nil
}

func (s *HTTPServer) Shutdown(ctx context.Context) error {
	if s.server == nil {
		return nil
	}
	return s.server.Shutdown(ctx)
}

// syncRequest is the wire form shared by import and export calls. Either
// target_name picks a configured preset or target supplies coordinates
// inline.
type syncRequest struct {
	TargetName   string       `json:"target_name,omitempty"`
	Target       *sync.Target `json:"target,omitempty"`
	DepartmentID int64        `json:"department_id"`
	DateStart    string       `json:"date_start"`
	DateEnd      string       `json:"date_end"`
	ReplaceAll   bool         `json:"replace_all,omitempty"`
	AssumedYear  int          `json:"assumed_year,omitempty"`
}

func (s *HTTPServer) resolveSyncRequest(body *syncRequest) (sync.Target, time.Time, time.Time, error) {
	var target sync.Target
	switch {
	case body.Target != nil:
		target = *body.Target
	case body.TargetName != "":
		found := false
		for _, t := range s.targets {
			if t.Name == body.TargetName {
				target, found = t, true
				break
			}
		}
		if !found {
			return target, time.Time{}, time.Time{}, fmt.Errorf("unknown target %q", body.TargetName)
		}
	default:
		return target, time.Time{}, time.Time{}, fmt.Errorf("target or target_name is required")
	}

	start, err := time.Parse(models.DateFormat, body.DateStart)
	if err != nil {
		return target, time.Time{}, time.Time{}, fmt.Errorf("invalid date_start; expected YYYY-MM-DD")
	}
	end, err := time.Parse(models.DateFormat, body.DateEnd)
	if err != nil {
		return target, time.Time{}, time.Time{}, fmt.Errorf("invalid date_end; expected YYYY-MM-DD")
	}
	if end.Before(start) {
		return target, time.Time{}, time.Time{}, fmt.Errorf("date_end before date_start")
	}
	return target, start, end, nil
}

func (s *HTTPServer) handleImport(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}

	var body syncRequest
	if err := decodeJSON(r, &body); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	target, start, end, err := s.resolveSyncRequest(&body)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	result, err := s.engine.Import(r.Context(), sync.ImportRequest{
		Target:       target,
		DepartmentID: body.DepartmentID,
		DateStart:    start,
		DateEnd:      end,
		ReplaceAll:   body.ReplaceAll,
		AssumedYear:  body.AssumedYear,
	})
	if err != nil {
		metrics.IncSyncRun(models.RunOpImport, models.RunStateFailed)
		writeSyncError(w, err)
		return
	}

	metrics.IncSyncRun(models.RunOpImport, models.RunStateCompleted)
	for _, skip := range result.SkipDetails {
		metrics.IncImportSkip(skip.Reason)
	}
	writeJSON(w, http.StatusOK, result)
}

func (s *HTTPServer) handleExport(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}

	var body syncRequest
	if err := decodeJSON(r, &body); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	target, start, end, err := s.resolveSyncRequest(&body)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	result, err := s.engine.Export(r.Context(), sync.ExportRequest{
		Target:       target,
		DepartmentID: body.DepartmentID,
		DateStart:    start,
		DateEnd:      end,
	})
	if err != nil {
		metrics.IncSyncRun(models.RunOpExport, models.RunStateFailed)
		writeSyncError(w, err)
		return
	}

	metrics.IncSyncRun(models.RunOpExport, models.RunStateCompleted)
	writeJSON(w, http.StatusOK, result)
}

func (s *HTTPServer) handleSnapshot(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}

	q := r.URL.Query()
	departmentID, _ := parseInt64(q.Get("department_id"))
	start, err := time.Parse(models.DateFormat, q.Get("date_start"))
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid date_start; expected YYYY-MM-DD")
		return
	}
	end, err := time.Parse(models.DateFormat, q.Get("date_end"))
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid date_end; expected YYYY-MM-DD")
		return
	}

	snap, err := s.engine.Snapshot(r.Context(), departmentID, start, end)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, snap)
}

func (s *HTTPServer) handleRestore(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}

	var snap models.Snapshot
	if err := decodeJSON(r, &snap); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	result, err := s.engine.Restore(r.Context(), &snap)
	if err != nil {
		metrics.IncSyncRun(models.RunOpRestore, models.RunStateFailed)
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	metrics.IncSyncRun(models.RunOpRestore, models.RunStateCompleted)
	writeJSON(w, http.StatusOK, result)
}

func (s *HTTPServer) handleRuns(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}
	if s.runs == nil {
		writeError(w, http.StatusNotFound, "run tracking is disabled")
		return
	}

	limit, _ := parseInt64(r.URL.Query().Get("limit"))
	runs, err := s.runs.ListRuns(r.Context(), int(limit))
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"runs": runs})
}

func (s *HTTPServer) handleRun(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}
	if s.runs == nil {
		writeError(w, http.StatusNotFound, "run tracking is disabled")
		return
	}

	id := strings.TrimPrefix(r.URL.Path, "/api/v1/runs/")
	if id == "" || strings.Contains(id, "/") {
		writeError(w, http.StatusBadRequest, "run id is required")
		return
	}

	run, err := s.runs.GetRun(r.Context(), id)
	if errors.Is(err, models.ErrNotFound) {
		writeError(w, http.StatusNotFound, "run not found")
		return
	}
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, run)
}

func (s *HTTPServer) handleTargets(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"targets": s.targets})
}

func (s *HTTPServer) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// writeSyncError maps engine errors to status codes: layout problems the
// caller can fix are 422, everything else is 500.
func writeSyncError(w http.ResponseWriter, err error) {
	var ndc *sync.NoDateColumnsError
	var dup *sync.DuplicateDateColumnError
	switch {
	case errors.As(err, &ndc), errors.As(err, &dup):
		writeError(w, http.StatusUnprocessableEntity, err.Error())
	default:
		writeError(w, http.StatusInternalServerError, err.Error())
	}
}

func (s *HTTPServer) loggingMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		recorder := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(recorder, r)
		dur := time.Since(start)

		metrics.IncHTTP(r.URL.Path, fmt.Sprintf("%d", recorder.status))
		s.logger.Info().
			Str("method", r.Method).
			Str("path", r.URL.Path).
			Int("status", recorder.status).
			Dur("duration", dur).
			Msg("http request")
	})
}

func decodeJSON(r *http.Request, dst any) error {
	decoder := json.NewDecoder(r.Body)
	decoder.DisallowUnknownFields()
	if err := decoder.Decode(dst); err != nil {
		return fmt.Errorf("invalid JSON body")
	}
	return nil
}

func parseInt64(raw string) (int64, error) {
	var v int64
	if raw == "" {
		return 0, nil
	}
	_, err := fmt.Sscanf(raw, "%d", &v)
	return v, err
}

func writeJSON(w http.ResponseWriter, statusCode int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	_ = json.NewEncoder(w).Encode(payload)
}

func writeError(w http.ResponseWriter, statusCode int, message string) {
	writeJSON(w, statusCode, map[string]string{"error": message})
}

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(status int) {
	r.status = status
	r.ResponseWriter.WriteHeader(status)
}
