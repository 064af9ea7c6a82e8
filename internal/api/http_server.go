package api

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"gymaccess/internal/config"
	"gymaccess/internal/export"
	"gymaccess/internal/metrics"
	"gymaccess/internal/models"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

// BookingFlow is the booking coordinator as seen by the HTTP layer.
type BookingFlow interface {
	CheckEligibility(ctx context.Context, memberID string) (*models.Member, *models.QuotaStatus, error)
	Begin(ctx context.Context, memberID string) (*models.BookingAttempt, *models.QuotaStatus, error)
	Get(ctx context.Context, attemptID string) (*models.BookingAttempt, error)
	Select(ctx context.Context, attemptID, state, provider string) (*models.BookingAttempt, error)
	Confirm(ctx context.Context, attemptID string) (*models.Receipt, error)
	Receipt(ctx context.Context, attemptID string) (*models.Receipt, error)
}

// Directory lists the states and gym providers members can choose from.
type Directory interface {
	States(ctx context.Context) ([]string, error)
	Providers(ctx context.Context, state string) ([]string, error)
}

// AccessLogExporter writes an xlsx workbook for [start, end).
type AccessLogExporter interface {
	Write(ctx context.Context, start, end time.Time, w io.Writer) (int, error)
}

// ReadinessProbe reports whether a dependency is usable.
type ReadinessProbe func(ctx context.Context) error

// Services bundles what the HTTP handlers call into.
type Services struct {
	Booking   BookingFlow
	Directory Directory
	Exporter  AccessLogExporter
	Location  *time.Location
	Probes    map[string]ReadinessProbe
}

// HTTPServer exposes the gym access booking flow over JSON.
type HTTPServer struct {
	cfg    config.APIConfig
	svc    Services
	server *http.Server
	auth   *HTTPAuth
	logger *zerolog.Logger
}

func NewHTTPServer(cfg config.APIConfig, svc Services, logger *zerolog.Logger) *HTTPServer {
	if logger == nil {
		nop := zerolog.Nop()
		logger = &nop
	}
	l := logger.With().Str("component", "http").Logger()
	if svc.Location == nil {
		svc.Location = time.UTC
	}

	srv := &HTTPServer{cfg: cfg, svc: svc, logger: &l}
	srv.auth = NewHTTPAuth(cfg)

	mux := http.NewServeMux()
	srv.handle(mux, "GET /healthz", srv.handleHealthz)
	srv.handle(mux, "GET /readyz", srv.handleReadyz)
	srv.handle(mux, "POST /api/v1/eligibility", srv.handleEligibility)
	srv.handle(mux, "GET /api/v1/states", srv.handleStates)
	srv.handle(mux, "GET /api/v1/providers", srv.handleProviders)
	srv.handle(mux, "POST /api/v1/attempts", srv.handleBeginAttempt)
	srv.handle(mux, "GET /api/v1/attempts/{id}", srv.handleGetAttempt)
	srv.handle(mux, "PUT /api/v1/attempts/{id}/selection", srv.handleSelect)
	srv.handle(mux, "POST /api/v1/attempts/{id}/confirm", srv.handleConfirm)
	srv.handle(mux, "GET /api/v1/attempts/{id}/receipt", srv.handleReceipt)
	srv.handle(mux, "GET /api/v1/access-log/export", srv.handleExport)

	handler := srv.loggingMiddleware(srv.auth.Wrap(mux))

	srv.server = &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.HTTP.Port),
		Handler:           handler,
		ReadHeaderTimeout: 5 * time.Second,
		// Confirm waits on the notification channel.
		WriteTimeout: 60 * time.Second,
	}

	return srv
}

func (s *HTTPServer) handle(mux *http.ServeMux, pattern string, h http.HandlerFunc) {
	mux.HandleFunc(pattern, func(w http.ResponseWriter, r *http.Request) {
		metrics.IncHTTP(pattern)
		h(w, r)
	})
}

func (s *HTTPServer) Handler() http.Handler {
	return s.server.Handler
}

func (s *HTTPServer) Start() error {
	if s.server == nil {
		return errors.New("http server is not initialized")
	}
	s.logger.Info().Str("addr", s.server.Addr).Msg("HTTP API listening")
	if err := s.server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
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

func (s *HTTPServer) handleHealthz(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *HTTPServer) handleReadyz(w http.ResponseWriter, r *http.Request) {
	failed := make(map[string]string)
	for name, probe := range s.svc.Probes {
		if err := probe(r.Context()); err != nil {
			failed[name] = err.Error()
		}
	}
	if len(failed) > 0 {
		writeJSON(w, http.StatusServiceUnavailable, map[string]any{"status": "unavailable", "failed": failed})
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "ready"})
}

type memberRequest struct {
	MemberID string `json:"member_id"`
}

type selectionRequest struct {
	State    string `json:"state"`
	Provider string `json:"provider"`
}

func (s *HTTPServer) handleEligibility(w http.ResponseWriter, r *http.Request) {
	var body memberRequest
	if !decodeBody(w, r, &body) {
		return
	}

	member, quota, err := s.svc.Booking.CheckEligibility(r.Context(), body.MemberID)
	if err != nil {
		s.writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"member": member, "quota": quota})
}

func (s *HTTPServer) handleStates(w http.ResponseWriter, r *http.Request) {
	states, err := s.svc.Directory.States(r.Context())
	if err != nil {
		s.writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"states": nonNil(states)})
}

func (s *HTTPServer) handleProviders(w http.ResponseWriter, r *http.Request) {
	state := strings.TrimSpace(r.URL.Query().Get("state"))
	if state == "" {
		writeError(w, http.StatusBadRequest, "state is required")
		return
	}
	providers, err := s.svc.Directory.Providers(r.Context(), state)
	if err != nil {
		s.writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"state": state, "providers": nonNil(providers)})
}

func (s *HTTPServer) handleBeginAttempt(w http.ResponseWriter, r *http.Request) {
	var body memberRequest
	if !decodeBody(w, r, &body) {
		return
	}

	attempt, quota, err := s.svc.Booking.Begin(r.Context(), body.MemberID)
	if err != nil {
		s.writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, map[string]any{"attempt": attempt, "quota": quota})
}

func (s *HTTPServer) handleGetAttempt(w http.ResponseWriter, r *http.Request) {
	attempt, err := s.svc.Booking.Get(r.Context(), r.PathValue("id"))
	if err != nil {
		s.writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"attempt": attempt})
}

func (s *HTTPServer) handleSelect(w http.ResponseWriter, r *http.Request) {
	var body selectionRequest
	if !decodeBody(w, r, &body) {
		return
	}

	attempt, err := s.svc.Booking.Select(r.Context(), r.PathValue("id"), body.State, body.Provider)
	if err != nil {
		s.writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"attempt": attempt})
}

func (s *HTTPServer) handleConfirm(w http.ResponseWriter, r *http.Request) {
	receipt, err := s.svc.Booking.Confirm(r.Context(), r.PathValue("id"))
	if err != nil {
		s.writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"receipt": receipt})
}

func (s *HTTPServer) handleReceipt(w http.ResponseWriter, r *http.Request) {
	receipt, err := s.svc.Booking.Receipt(r.Context(), r.PathValue("id"))
	if err != nil {
		s.writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"receipt": receipt})
}

func (s *HTTPServer) handleExport(w http.ResponseWriter, r *http.Request) {
	if s.svc.Exporter == nil {
		writeError(w, http.StatusNotFound, "export is not configured")
		return
	}

	q := r.URL.Query()
	from, to := strings.TrimSpace(q.Get("from")), strings.TrimSpace(q.Get("to"))
	if from == "" || to == "" {
		writeError(w, http.StatusBadRequest, "from and to are required (YYYY-MM-DD)")
		return
	}
	start, end, err := export.DayRange(from, to, s.svc.Location)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	var buf bytes.Buffer
	if _, err := s.svc.Exporter.Write(r.Context(), start, end, &buf); err != nil {
		s.writeServiceError(w, r, err)
		return
	}

	w.Header().Set("Content-Type", "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet")
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", export.FileName(start, end, s.svc.Location)))
	w.WriteHeader(http.StatusOK)
	_, _ = buf.WriteTo(w)
}

func (s *HTTPServer) writeServiceError(w http.ResponseWriter, r *http.Request, err error) {
	statusCode, code := classifyError(err)
	if statusCode >= http.StatusInternalServerError {
		s.logger.Error().Err(err).Str("path", r.URL.Path).Str("code", code).Msg("request failed")
	}

	resp := map[string]any{"error": err.Error(), "code": code}
	var quotaErr *models.QuotaExceededError
	if errors.As(err, &quotaErr) {
		resp["limit"] = quotaErr.Limit
		resp["period"] = quotaErr.Period
		resp["used"] = quotaErr.Used
	}
	writeJSON(w, statusCode, resp)
}

func (s *HTTPServer) loggingMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		requestID := strings.TrimSpace(r.Header.Get(requestIDHeader))
		if requestID == "" {
			requestID = uuid.NewString()
		}
		w.Header().Set(requestIDHeader, requestID)

		start := time.Now()
		recorder := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(recorder, r)

		s.logger.Info().
			Str("request_id", requestID).
			Str("method", r.Method).
			Str("path", r.URL.Path).
			Int("status", recorder.status).
			Dur("duration", time.Since(start)).
			Msg("http request")
	})
}

const requestIDHeader = "X-Request-Id"

func decodeBody(w http.ResponseWriter, r *http.Request, dst any) bool {
	decoder := json.NewDecoder(r.Body)
	decoder.DisallowUnknownFields()
	if err := decoder.Decode(dst); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON body")
		return false
	}
	return true
}

func nonNil(values []string) []string {
	if values == nil {
		return []string{}
	}
	return values
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
