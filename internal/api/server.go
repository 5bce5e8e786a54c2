// Package api exposes the HTTP interface for the event pipeline service.
package api

import (
	"bufio"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/eventscout/eventscout/internal/config"
	"github.com/eventscout/eventscout/internal/event"
	"github.com/eventscout/eventscout/internal/metrics"
)

const (
	defaultEventLimit = 100
	maxEventLimit     = 500
)

// Pipeline runs one full discover-enrich-save cycle.
type Pipeline interface {
	Run(ctx context.Context) (event.RunCounters, error)
}

// Server wires HTTP handlers to the pipeline runners and the event store.
type Server struct {
	router    chi.Router
	store     event.EventStore
	ledger    event.Ledger
	pipelines map[event.Type]Pipeline
	runs      *runRegistry
	idGen     event.IDGenerator
	clock     event.Clock
	cfg       config.Config
	logger    *zap.Logger
}

// NewServer constructs a Server with middleware and routes.
func NewServer(
	store event.EventStore,
	ledger event.Ledger,
	pipelines map[event.Type]Pipeline,
	idGen event.IDGenerator,
	clock event.Clock,
	cfg config.Config,
	logger *zap.Logger,
) *Server {
	if logger == nil {
		logger = zap.NewNop()
	}
	if clock == nil {
		clock = event.SystemClock{}
	}
	metrics.Init()
	s := &Server{
		store:     store,
		ledger:    ledger,
		pipelines: pipelines,
		runs:      newRunRegistry(),
		idGen:     idGen,
		clock:     clock,
		cfg:       cfg,
		logger:    logger.Named("api"),
	}
	r := chi.NewRouter()
	r.Use(requestIDMiddleware)
	r.Use(s.loggingMiddleware)
	r.Use(s.recoverMiddleware)
	r.Use(metrics.Middleware)
	r.Use(timeoutMiddleware(60 * time.Second))
	if cfg.Auth.Enabled {
		r.Use(apiKeyMiddleware(cfg.Auth.APIKey))
	}

	r.Get("/healthz", s.healthz)
	r.Get("/readyz", s.readyz)
	r.Method(http.MethodGet, "/metrics", metrics.Handler())

	r.Route("/api/v1", func(r chi.Router) {
		r.Get("/stats", s.stats)
		r.Route("/runs", func(r chi.Router) {
			r.Post("/", s.startRun)
			r.Get("/", s.listRuns)
			r.Get("/{run_id}", s.getRun)
		})
		r.Route("/events", func(r chi.Router) {
			r.Get("/", s.listEvents)
			r.Route("/{event_id}/actions", func(r chi.Router) {
				r.Post("/", s.recordAction)
				r.Get("/", s.listActions)
			})
		})
	})

	s.router = r
	return s
}

// Handler returns the Router for use with http.Server.
func (s *Server) Handler() http.Handler {
	return s.router
}

func (s *Server) healthz(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) readyz(w http.ResponseWriter, r *http.Request) {
	if _, err := s.store.Query(r.Context(), event.QueryFilter{Limit: 1}); err != nil {
		writeError(w, http.StatusServiceUnavailable, "event store unavailable")
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "ready"})
}

// typeStats is one per-type row of the stats response.
type typeStats struct {
	TotalURLs    int `json:"total_urls"`
	EnrichedURLs int `json:"enriched_urls"`
	PendingURLs  int `json:"pending_urls"`
}

func (s *Server) stats(w http.ResponseWriter, r *http.Request) {
	if s.ledger == nil {
		writeError(w, http.StatusServiceUnavailable, "ledger unavailable")
		return
	}
	out := make(map[string]typeStats, 2)
	for _, t := range []event.Type{event.TypeConference, event.TypeHackathon} {
		total, enriched, err := s.ledger.Counts(r.Context(), t)
		if err != nil {
			s.logger.Error("ledger counts failed", zap.String("event_type", string(t)), zap.Error(err))
			writeError(w, http.StatusInternalServerError, "ledger counts failed")
			return
		}
		out[string(t)] = typeStats{
			TotalURLs:    total,
			EnrichedURLs: enriched,
			PendingURLs:  total - enriched,
		}
	}
	writeJSON(w, http.StatusOK, out)
}

func (s *Server) listEvents(w http.ResponseWriter, r *http.Request) {
	filter, err := filterFromQuery(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	events, err := s.store.Query(r.Context(), filter)
	if err != nil {
		s.logger.Error("event query failed", zap.Error(err))
		writeError(w, http.StatusInternalServerError, "event query failed")
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"events": events, "count": len(events)})
}

func (s *Server) recordAction(w http.ResponseWriter, r *http.Request) {
	eventID := chi.URLParam(r, "event_id")
	var req actionRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON")
		return
	}
	action := event.Action(req.Action)
	if !action.Valid() {
		writeError(w, http.StatusBadRequest, fmt.Sprintf("unknown action %q", req.Action))
		return
	}
	id, err := s.idGen.NewID()
	if err != nil {
		writeError(w, http.StatusInternalServerError, "generate action id failed")
		return
	}
	rec := event.ActionRecord{
		ID:        id,
		EventID:   eventID,
		EventType: event.Type(req.EventType),
		Action:    action,
		Timestamp: s.clock.Now(),
	}
	if err := s.store.RecordAction(r.Context(), rec); err != nil {
		s.logger.Error("record action failed", zap.String("event_id", eventID), zap.Error(err))
		writeError(w, http.StatusInternalServerError, "record action failed")
		return
	}
	writeJSON(w, http.StatusCreated, rec)
}

func (s *Server) listActions(w http.ResponseWriter, r *http.Request) {
	eventID := chi.URLParam(r, "event_id")
	actions, err := s.store.ListActions(r.Context(), eventID)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "list actions failed")
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"actions": actions, "count": len(actions)})
}

type actionRequest struct {
	Action    string `json:"action"`
	EventType string `json:"event_type,omitempty"`
}

func filterFromQuery(r *http.Request) (event.QueryFilter, error) {
	q := r.URL.Query()
	filter := event.QueryFilter{
		Location: q.Get("location"),
		SortBy:   q.Get("sort"),
	}

	if raw := q.Get("event_type"); raw != "" {
		t := event.Type(raw)
		if !t.Valid() {
			return event.QueryFilter{}, fmt.Errorf("unknown event_type %q", raw)
		}
		filter.EventType = t
	}
	if raw := q.Get("status"); raw != "" {
		filter.Status = event.Status(raw)
	}

	var err error
	if filter.RemoteOnly, err = parseBoolParam(q.Get("remote")); err != nil {
		return event.QueryFilter{}, fmt.Errorf("invalid remote: %w", err)
	}
	if filter.FutureOnly, err = parseBoolParam(q.Get("future")); err != nil {
		return event.QueryFilter{}, fmt.Errorf("invalid future: %w", err)
	}

	filter.Limit, filter.Offset, err = parseLimitOffset(r, defaultEventLimit, maxEventLimit)
	if err != nil {
		return event.QueryFilter{}, err
	}
	return filter, nil
}

func parseBoolParam(raw string) (bool, error) {
	if raw == "" {
		return false, nil
	}
	v, err := strconv.ParseBool(strings.ToLower(raw))
	if err != nil {
		return false, fmt.Errorf("expected true or false, got %q", raw)
	}
	return v, nil
}

func parseLimitOffset(r *http.Request, def, max int) (int, int, error) {
	limit := def
	offset := 0
	q := r.URL.Query()
	if raw := q.Get("limit"); raw != "" {
		v, err := strconv.Atoi(raw)
		if err != nil || v <= 0 {
			return 0, 0, fmt.Errorf("invalid limit %q", raw)
		}
		if v > max {
			v = max
		}
		limit = v
	}
	if raw := q.Get("offset"); raw != "" {
		v, err := strconv.Atoi(raw)
		if err != nil || v < 0 {
			return 0, 0, fmt.Errorf("invalid offset %q", raw)
		}
		offset = v
	}
	return limit, offset, nil
}

func requestIDMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		reqID := uuid.NewString()
		ctx := context.WithValue(r.Context(), requestIDKey{}, reqID)
		w.Header().Set("X-Request-ID", reqID)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

func (s *Server) loggingMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ww := &responseWriter{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(ww, r)
		s.logger.Info("request completed",
			zap.String("method", r.Method),
			zap.String("path", r.URL.Path),
			zap.Int("status", ww.status),
			zap.Int64("duration_ms", time.Since(start).Milliseconds()),
		)
	})
}

func (s *Server) recoverMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		defer func() {
			if rec := recover(); rec != nil {
				s.logger.Error("panic recovered", zap.Any("error", rec))
				writeError(w, http.StatusInternalServerError, "internal server error")
			}
		}()
		next.ServeHTTP(w, r)
	})
}

func timeoutMiddleware(d time.Duration) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.TimeoutHandler(next, d, "request timed out")
	}
}

type responseWriter struct {
	http.ResponseWriter
	status int
}

func (rw *responseWriter) WriteHeader(code int) {
	rw.status = code
	rw.ResponseWriter.WriteHeader(code)
}

func (rw *responseWriter) Write(b []byte) (int, error) {
	n, err := rw.ResponseWriter.Write(b)
	if err != nil {
		return n, fmt.Errorf("write response: %w", err)
	}
	return n, nil
}

func (rw *responseWriter) Flush() {
	if f, ok := rw.ResponseWriter.(http.Flusher); ok {
		f.Flush()
	}
}

func (rw *responseWriter) Hijack() (net.Conn, *bufio.ReadWriter, error) {
	if h, ok := rw.ResponseWriter.(http.Hijacker); ok {
		conn, buf, err := h.Hijack()
		if err != nil {
			return nil, nil, fmt.Errorf("hijack connection: %w", err)
		}
		return conn, buf, nil
	}
	return nil, nil, errors.New("hijacker not supported")
}

type requestIDKey struct{}

func apiKeyMiddleware(expected string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			key := r.Header.Get("X-API-Key")
			if key == "" {
				key = r.URL.Query().Get("api_key")
			}
			if key != expected {
				writeError(w, http.StatusForbidden, "unauthorized")
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}
