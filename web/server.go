package web

import (
	"context"
	"encoding/csv"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/sadewadee/email-extractor/pkg/monitoring"
	"github.com/sadewadee/email-extractor/writers/emailcsv"
)

const (
	serviceName    = "Email Extraction API"
	serviceVersion = "1.0.0"

	defaultListLimit  = 100
	defaultEmailLimit = 1000
)

// Server is the REST surface over a Service. Construct with New, run with
// Start.
type Server struct {
	svc     *Service
	metrics *monitoring.MetricsCollector
	logger  *slog.Logger
	srv     *http.Server
}

type ServerOption func(*Server)

func WithMetrics(m *monitoring.MetricsCollector) ServerOption {
	return func(s *Server) {
		s.metrics = m
	}
}

func WithLogger(l *slog.Logger) ServerOption {
	return func(s *Server) {
		s.logger = l
	}
}

func New(svc *Service, addr string, opts ...ServerOption) (*Server, error) {
	if addr == "" {
		return nil, errors.New("missing listen address")
	}

	s := Server{
		svc:    svc,
		logger: slog.Default(),
	}

	for _, opt := range opts {
		opt(&s)
	}

	mux := http.NewServeMux()

	mux.HandleFunc("GET /{$}", s.handleHealth)
	mux.HandleFunc("POST /api/searches", s.handleCreateSearch)
	mux.HandleFunc("GET /api/searches", s.handleListSearches)
	mux.HandleFunc("GET /api/searches/{id}", s.handleGetSearch)
	mux.HandleFunc("GET /api/searches/{id}/statistics", s.handleStatistics)
	mux.HandleFunc("GET /api/searches/{id}/domains", s.handleListDomains)
	mux.HandleFunc("GET /api/searches/{id}/emails", s.handleSearchEmails)
	mux.HandleFunc("GET /api/searches/{id}/emails.csv", s.handleSearchEmailsCSV)
	mux.HandleFunc("GET /api/domains/{id}/emails", s.handleDomainEmails)
	mux.HandleFunc("PATCH /api/searches/{id}/pause", s.handlePause)
	mux.HandleFunc("PATCH /api/searches/{id}/resume", s.handleResume)
	mux.HandleFunc("DELETE /api/searches/{id}", s.handleCancel)
	mux.HandleFunc("GET /api/metrics", s.handleMetrics)

	s.srv = &http.Server{
		Addr:              addr,
		Handler:           mux,
		ReadHeaderTimeout: 10 * time.Second,
	}

	return &s, nil
}

// Start serves until ctx is cancelled, then shuts down gracefully.
func (s *Server) Start(ctx context.Context) error {
	errc := make(chan error, 1)

	go func() {
		errc <- s.srv.ListenAndServe()
	}()

	s.logger.Info("api server listening", "addr", s.srv.Addr)

	select {
	case err := <-errc:
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}

		return nil
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()

		return s.srv.Shutdown(shutdownCtx)
	}
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	resp := map[string]any{
		"status":  "running",
		"service": serviceName,
		"version": serviceVersion,
	}

	ctx, cancel := context.WithTimeout(r.Context(), time.Second)
	defer cancel()

	if err := s.svc.Ping(ctx); err != nil {
		resp["status"] = "degraded"
		resp["database"] = "unreachable"

		s.renderJSON(w, http.StatusServiceUnavailable, resp)

		return
	}

	resp["database"] = "ok"

	s.renderJSON(w, http.StatusOK, resp)
}

func (s *Server) handleCreateSearch(w http.ResponseWriter, r *http.Request) {
	var req CreateSearchRequest

	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.renderError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	if err := req.Validate(); err != nil {
		s.renderError(w, http.StatusBadRequest, err.Error())
		return
	}

	search, err := s.svc.Create(r.Context(), &req)
	if err != nil {
		s.serverError(w, "create search", err)
		return
	}

	s.renderJSON(w, http.StatusCreated, search)
}

func (s *Server) handleListSearches(w http.ResponseWriter, r *http.Request) {
	params := SelectParams{
		Status: r.URL.Query().Get("status"),
		Limit:  queryInt(r, "limit", defaultListLimit),
		Offset: queryInt(r, "offset", 0),
	}

	searches, err := s.svc.All(r.Context(), params)
	if err != nil {
		s.serverError(w, "list searches", err)
		return
	}

	s.renderJSON(w, http.StatusOK, searches)
}

func (s *Server) handleGetSearch(w http.ResponseWriter, r *http.Request) {
	id, ok := s.pathID(w, r)
	if !ok {
		return
	}

	search, err := s.svc.Get(r.Context(), id)
	if errors.Is(err, ErrNotFound) {
		s.renderError(w, http.StatusNotFound, "Search not found")
		return
	}

	if err != nil {
		s.serverError(w, "get search", err)
		return
	}

	s.renderJSON(w, http.StatusOK, search)
}

func (s *Server) handleStatistics(w http.ResponseWriter, r *http.Request) {
	id, ok := s.pathID(w, r)
	if !ok {
		return
	}

	stats, err := s.svc.Statistics(r.Context(), id)
	if errors.Is(err, ErrNotFound) {
		s.renderError(w, http.StatusNotFound, "Search not found")
		return
	}

	if err != nil {
		s.serverError(w, "search statistics", err)
		return
	}

	s.renderJSON(w, http.StatusOK, stats)
}

func (s *Server) handleListDomains(w http.ResponseWriter, r *http.Request) {
	id, ok := s.pathID(w, r)
	if !ok {
		return
	}

	params := SelectParams{
		Status: r.URL.Query().Get("status"),
		Limit:  queryInt(r, "limit", defaultListLimit),
		Offset: queryInt(r, "offset", 0),
	}

	domains, err := s.svc.Domains(r.Context(), id, params)
	if err != nil {
		s.serverError(w, "list domains", err)
		return
	}

	s.renderJSON(w, http.StatusOK, domains)
}

func (s *Server) handleSearchEmails(w http.ResponseWriter, r *http.Request) {
	id, ok := s.pathID(w, r)
	if !ok {
		return
	}

	params := SelectParams{
		Limit:  queryInt(r, "limit", defaultEmailLimit),
		Offset: queryInt(r, "offset", 0),
	}

	emails, err := s.svc.SearchEmails(r.Context(), id, params)
	if err != nil {
		s.serverError(w, "list emails", err)
		return
	}

	s.renderJSON(w, http.StatusOK, emails)
}

func (s *Server) handleSearchEmailsCSV(w http.ResponseWriter, r *http.Request) {
	id, ok := s.pathID(w, r)
	if !ok {
		return
	}

	params := SelectParams{
		Limit:  queryInt(r, "limit", defaultEmailLimit),
		Offset: queryInt(r, "offset", 0),
	}

	emails, err := s.svc.SearchEmails(r.Context(), id, params)
	if err != nil {
		s.serverError(w, "export emails", err)
		return
	}

	w.Header().Set("Content-Type", "text/csv")
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=search-%d-emails.csv", id))

	cw := emailcsv.New(csv.NewWriter(w))

	for i := range emails {
		if err := cw.Write(&emails[i]); err != nil {
			s.logger.Error("failed to write csv row", "error", err)
			return
		}
	}

	if err := cw.Flush(); err != nil {
		s.logger.Error("failed to flush csv", "error", err)
	}
}

func (s *Server) handleDomainEmails(w http.ResponseWriter, r *http.Request) {
	id, ok := s.pathID(w, r)
	if !ok {
		return
	}

	emails, err := s.svc.DomainEmails(r.Context(), id)
	if err != nil {
		s.serverError(w, "domain emails", err)
		return
	}

	s.renderJSON(w, http.StatusOK, emails)
}

func (s *Server) handlePause(w http.ResponseWriter, r *http.Request) {
	id, ok := s.pathID(w, r)
	if !ok {
		return
	}

	err := s.svc.Pause(r.Context(), id)
	if errors.Is(err, ErrInvalidStatus) || errors.Is(err, ErrNotFound) {
		s.renderError(w, http.StatusBadRequest, "Search not found or not in progress")
		return
	}

	if err != nil {
		s.serverError(w, "pause search", err)
		return
	}

	s.renderJSON(w, http.StatusOK, map[string]any{
		"message":   "Search paused",
		"search_id": id,
	})
}

func (s *Server) handleResume(w http.ResponseWriter, r *http.Request) {
	id, ok := s.pathID(w, r)
	if !ok {
		return
	}

	err := s.svc.Resume(r.Context(), id)
	if errors.Is(err, ErrInvalidStatus) || errors.Is(err, ErrNotFound) {
		s.renderError(w, http.StatusBadRequest, "Search not found or not paused")
		return
	}

	if err != nil {
		s.serverError(w, "resume search", err)
		return
	}

	s.renderJSON(w, http.StatusOK, map[string]any{
		"message":   "Search resumed",
		"search_id": id,
	})
}

func (s *Server) handleCancel(w http.ResponseWriter, r *http.Request) {
	id, ok := s.pathID(w, r)
	if !ok {
		return
	}

	err := s.svc.Cancel(r.Context(), id)
	if errors.Is(err, ErrNotFound) {
		s.renderError(w, http.StatusNotFound, "Search not found")
		return
	}

	if err != nil {
		s.serverError(w, "cancel search", err)
		return
	}

	s.renderJSON(w, http.StatusOK, map[string]any{
		"message":   "Search cancelled",
		"search_id": id,
	})
}

func (s *Server) handleMetrics(w http.ResponseWriter, r *http.Request) {
	if s.metrics == nil {
		s.renderError(w, http.StatusNotFound, "metrics not enabled")
		return
	}

	s.renderJSON(w, http.StatusOK, map[string]any{
		"metrics":     s.metrics.GetMetrics(),
		"performance": s.metrics.GetPerformanceStats(),
	})
}

func (s *Server) renderJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)

	if err := json.NewEncoder(w).Encode(v); err != nil {
		s.logger.Error("failed to encode response", "error", err)
	}
}

func (s *Server) renderError(w http.ResponseWriter, status int, msg string) {
	s.renderJSON(w, status, map[string]string{"error": msg})
}

func (s *Server) serverError(w http.ResponseWriter, op string, err error) {
	s.logger.Error("request failed", "op", op, "error", err)
	s.renderError(w, http.StatusInternalServerError, "internal server error")
}

// pathID parses the {id} path segment, answering the request itself when
// the value is not a number.
func (s *Server) pathID(w http.ResponseWriter, r *http.Request) (int64, bool) {
	id, err := strconv.ParseInt(r.PathValue("id"), 10, 64)
	if err != nil || id <= 0 {
		s.renderError(w, http.StatusBadRequest, "invalid id")
		return 0, false
	}

	return id, true
}

func queryInt(r *http.Request, key string, fallback int) int {
	v := r.URL.Query().Get(key)
	if v == "" {
		return fallback
	}

	n, err := strconv.Atoi(v)
	if err != nil || n < 0 {
		return fallback
	}

	return n
}
