package api

import (
	"context"
	"encoding/json"
	"net/http"
	"sort"
	"sync"
	"time"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"github.com/eventscout/eventscout/internal/event"
)

// RunStatus is the lifecycle state of a triggered pipeline run.
type RunStatus string

// Run statuses reported by the runs endpoints.
const (
	RunRunning   RunStatus = "running"
	RunSucceeded RunStatus = "succeeded"
	RunFailed    RunStatus = "failed"
)

// RunRecord tracks one triggered pipeline run for status queries.
type RunRecord struct {
	ID         string            `json:"id"`
	EventType  event.Type        `json:"event_type"`
	Status     RunStatus         `json:"status"`
	StartedAt  time.Time         `json:"started_at"`
	FinishedAt *time.Time        `json:"finished_at,omitempty"`
	Counters   event.RunCounters `json:"counters"`
	Error      string            `json:"error,omitempty"`
}

// runRegistry keeps run records in memory. Runs are operational state, not
// domain data, so they do not go through the event store.
type runRegistry struct {
	mu   sync.Mutex
	runs map[string]RunRecord
}

func newRunRegistry() *runRegistry {
	return &runRegistry{runs: make(map[string]RunRecord)}
}

func (g *runRegistry) put(rec RunRecord) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.runs[rec.ID] = rec
}

func (g *runRegistry) get(id string) (RunRecord, bool) {
	g.mu.Lock()
	defer g.mu.Unlock()
	rec, ok := g.runs[id]
	return rec, ok
}

func (g *runRegistry) list() []RunRecord {
	g.mu.Lock()
	defer g.mu.Unlock()
	out := make([]RunRecord, 0, len(g.runs))
	for _, rec := range g.runs {
		out = append(out, rec)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].StartedAt.After(out[j].StartedAt) })
	return out
}

type runRequest struct {
	EventType string `json:"event_type"`
}

func (s *Server) startRun(w http.ResponseWriter, r *http.Request) {
	var req runRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON")
		return
	}
	eventType := event.Type(req.EventType)
	if !eventType.Valid() {
		writeError(w, http.StatusBadRequest, "event_type must be conference or hackathon")
		return
	}
	p, ok := s.pipelines[eventType]
	if !ok {
		writeError(w, http.StatusServiceUnavailable, "no pipeline configured for "+req.EventType)
		return
	}

	runID, err := s.idGen.NewID()
	if err != nil {
		writeError(w, http.StatusInternalServerError, "generate run id failed")
		return
	}
	rec := RunRecord{
		ID:        runID,
		EventType: eventType,
		Status:    RunRunning,
		StartedAt: s.clock.Now(),
	}
	s.runs.put(rec)

	// The run outlives the request, so it gets a detached context.
	go s.executeRun(context.Background(), p, rec)

	writeJSON(w, http.StatusAccepted, map[string]string{
		"run_id":     runID,
		"event_type": string(eventType),
		"status":     string(RunRunning),
	})
}

func (s *Server) executeRun(ctx context.Context, p Pipeline, rec RunRecord) {
	counters, err := p.Run(ctx)
	finished := s.clock.Now()
	rec.FinishedAt = &finished
	rec.Counters = counters
	if err != nil {
		rec.Status = RunFailed
		rec.Error = err.Error()
		s.logger.Error("pipeline run failed",
			zap.String("run_id", rec.ID),
			zap.String("event_type", string(rec.EventType)),
			zap.Error(err))
	} else {
		rec.Status = RunSucceeded
	}
	s.runs.put(rec)
}

func (s *Server) getRun(w http.ResponseWriter, r *http.Request) {
	runID := chi.URLParam(r, "run_id")
	rec, ok := s.runs.get(runID)
	if !ok {
		writeError(w, http.StatusNotFound, "run not found")
		return
	}
	writeJSON(w, http.StatusOK, rec)
}

func (s *Server) listRuns(w http.ResponseWriter, _ *http.Request) {
	runs := s.runs.list()
	writeJSON(w, http.StatusOK, map[string]any{"runs": runs, "count": len(runs)})
}
