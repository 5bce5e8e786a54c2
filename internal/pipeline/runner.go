// Package pipeline wires discovery, acquisition, extraction, filtering, and
// persistence into a single run loop.
package pipeline

import (
	"context"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/eventscout/eventscout/internal/event"
	"github.com/eventscout/eventscout/internal/filter"
	"github.com/eventscout/eventscout/internal/metrics"
	"github.com/eventscout/eventscout/internal/snapshot"
)

// Discoverer fans out to the configured sources and merges their results.
type Discoverer interface {
	Discover(ctx context.Context, perSourceLimit int) []event.CandidateURL
}

// PageFetcher acquires one page, trying backends in order.
type PageFetcher interface {
	Fetch(ctx context.Context, url string) (event.FetchResult, error)
}

// Filter judges an extracted candidate.
type Filter interface {
	Evaluate(ctx context.Context, cand event.Candidate) filter.Decision
}

// Config controls Runner behavior.
type Config struct {
	Workers        int
	BatchSize      int
	BatchPause     time.Duration
	PerSourceLimit int
	NotifyTopic    string
	ContentType    string
}

func (c *Config) setDefaults() {
	if c.Workers <= 0 {
		c.Workers = 4
	}
	if c.BatchSize <= 0 {
		c.BatchSize = 10
	}
	if c.BatchPause <= 0 {
		c.BatchPause = 500 * time.Millisecond
	}
	if c.ContentType == "" {
		c.ContentType = "text/html; charset=utf-8"
	}
}

// Runner executes full pipeline runs for one event type.
type Runner struct {
	eventType  event.Type
	discoverer Discoverer
	ledger     event.Ledger
	fetcher    PageFetcher
	extractor  event.Extractor
	filter     Filter
	store      event.EventStore
	blobs      event.BlobStore
	publisher  event.Publisher
	clock      event.Clock
	ids        event.IDGenerator
	pauser     event.PauseController
	cfg        Config
	logger     *zap.Logger
}

// NewRunner constructs a Runner. The blob store and publisher are optional;
// everything else is required.
func NewRunner(
	eventType event.Type,
	discoverer Discoverer,
	ledger event.Ledger,
	fetcher PageFetcher,
	extractor event.Extractor,
	fltr Filter,
	store event.EventStore,
	blobs event.BlobStore,
	publisher event.Publisher,
	clock event.Clock,
	ids event.IDGenerator,
	pauser event.PauseController,
	cfg Config,
	logger *zap.Logger,
) (*Runner, error) {
	if !eventType.Valid() {
		return nil, fmt.Errorf("unknown event type %q", eventType)
	}
	if discoverer == nil || ledger == nil || fetcher == nil || extractor == nil || fltr == nil || store == nil {
		return nil, fmt.Errorf("pipeline runner is missing a required dependency")
	}
	if clock == nil {
		clock = event.SystemClock{}
	}
	if pauser == nil {
		pauser = &event.TimerPause{}
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	cfg.setDefaults()
	metrics.Init()
	return &Runner{
		eventType:  eventType,
		discoverer: discoverer,
		ledger:     ledger,
		fetcher:    fetcher,
		extractor:  extractor,
		filter:     fltr,
		store:      store,
		blobs:      blobs,
		publisher:  publisher,
		clock:      clock,
		ids:        ids,
		pauser:     pauser,
		cfg:        cfg,
		logger:     logger.Named("pipeline"),
	}, nil
}

// Run executes one full discover-enrich-save cycle and reports counters.
// Per-URL failures are counted, not fatal; the returned error covers only
// failures that stop the run.
func (r *Runner) Run(ctx context.Context) (event.RunCounters, error) {
	start := r.clock.Now()
	counters := event.RunCounters{}

	candidates := r.discoverer.Discover(ctx, r.cfg.PerSourceLimit)
	counters.Discovered = len(candidates)
	r.observeDiscovered(candidates)

	inserted, skipped, err := r.ledger.RecordSeen(ctx, r.eventType, candidates)
	if err != nil {
		return counters, fmt.Errorf("record discovered urls: %w", err)
	}
	r.logger.Info("discovery recorded",
		zap.String("event_type", string(r.eventType)),
		zap.Int("discovered", counters.Discovered),
		zap.Int("new", inserted),
		zap.Int("already_known", skipped))

	if err := r.enrichPending(ctx, &counters); err != nil {
		return counters, err
	}

	metrics.ObserveRunDuration(string(r.eventType), r.clock.Now().Sub(start))
	r.logger.Info("run finished",
		zap.String("event_type", string(r.eventType)),
		zap.Int("discovered", counters.Discovered),
		zap.Int("enriched", counters.Enriched),
		zap.Int("filtered", counters.Filtered),
		zap.Int("saved", counters.Saved),
		zap.Int("updated", counters.Updated),
		zap.Int("errors", counters.Errors))
	return counters, nil
}

// enrichPending drains the ledger in batches, fanning each batch out to the
// worker pool. Only URLs a worker actually attempted are marked enriched:
// a poisoned page cannot wedge the loop, and cancellation leaves everything
// untouched pending for the next run.
func (r *Runner) enrichPending(ctx context.Context, counters *event.RunCounters) error {
	for {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		pending, err := r.ledger.PendingEnrichment(ctx, r.eventType, r.cfg.BatchSize)
		if err != nil {
			return fmt.Errorf("load pending urls: %w", err)
		}
		if len(pending) == 0 {
			return nil
		}

		attempted := r.runBatch(ctx, pending, counters)
		if len(attempted) > 0 {
			// The attempts already happened; this bookkeeping write must land
			// even when the run is being cancelled.
			if err := r.ledger.MarkEnriched(context.WithoutCancel(ctx), attempted); err != nil {
				return fmt.Errorf("mark urls enriched: %w", err)
			}
		}

		if len(pending) < r.cfg.BatchSize {
			return nil
		}
		r.pauser.Pause(ctx, r.cfg.BatchPause)
	}
}

// runBatch returns the URLs workers actually processed so the caller can
// mark exactly those in the ledger.
func (r *Runner) runBatch(ctx context.Context, batch []event.LedgerEntry, counters *event.RunCounters) []string {
	jobs := make(chan event.LedgerEntry)
	var mu sync.Mutex
	var wg sync.WaitGroup
	attempted := make([]string, 0, len(batch))

	for i := 0; i < r.cfg.Workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for entry := range jobs {
				if ctx.Err() != nil {
					continue
				}
				metrics.IncActiveWorkers()
				outcome := r.processURL(ctx, entry)
				metrics.DecActiveWorkers()
				mu.Lock()
				attempted = append(attempted, entry.URL)
				counters.Enriched += outcome.Enriched
				counters.Filtered += outcome.Filtered
				counters.Saved += outcome.Saved
				counters.Updated += outcome.Updated
				counters.Errors += outcome.Errors
				mu.Unlock()
			}
		}()
	}

	for _, entry := range batch {
		if ctx.Err() != nil {
			break
		}
		jobs <- entry
	}
	close(jobs)
	wg.Wait()
	return attempted
}

func (r *Runner) processURL(ctx context.Context, entry event.LedgerEntry) event.RunCounters {
	out := event.RunCounters{}

	content, err := r.fetcher.Fetch(ctx, entry.URL)
	if err != nil {
		// Permanent fetch failures still go through the cascade so the
		// minimal-stub strategy can salvage a record from the URL alone.
		out.Errors++
		r.logger.Warn("fetch failed, extracting from empty content",
			zap.String("url", entry.URL), zap.Error(err))
		content = event.FetchResult{URL: entry.URL}
	} else {
		metrics.ObserveFetch(content.Method, entry.URL)
		r.archivePage(ctx, content)
	}

	cand, err := r.extractor.Extract(ctx, entry.URL, content, r.eventType)
	if err != nil {
		out.Errors++
		r.logger.Warn("extraction failed", zap.String("url", entry.URL), zap.Error(err))
		return out
	}
	// The normalized ledger URL is the record identity; extraction may echo
	// a differently-cased or trailing-slash variant.
	cand.URL = entry.URL
	out.Enriched++
	metrics.ObserveExtraction(cand.ExtractionMethod)

	decision := r.filter.Evaluate(ctx, cand)
	if !decision.Accept {
		out.Filtered++
		metrics.ObserveFilterRejection(decision.Stage)
		return out
	}

	rec, err := r.buildRecord(cand, decision)
	if err != nil {
		out.Errors++
		r.logger.Error("build record failed", zap.String("url", entry.URL), zap.Error(err))
		return out
	}

	upsert, err := r.store.Upsert(ctx, rec)
	if err != nil {
		out.Errors++
		r.logger.Error("save failed", zap.String("url", entry.URL), zap.Error(err))
		return out
	}
	switch upsert {
	case event.UpsertInserted:
		out.Saved++
	case event.UpsertUpdated:
		out.Updated++
	}
	metrics.ObserveEventSaved(string(r.eventType), string(upsert))

	r.notifySaved(ctx, rec, upsert)
	return out
}

// archivePage stores the raw HTML so extraction can be replayed. Snapshot
// failures are logged and swallowed; the run keeps going without the copy.
func (r *Runner) archivePage(ctx context.Context, content event.FetchResult) {
	if r.blobs == nil || content.RawHTML == "" {
		return
	}
	data := []byte(content.RawHTML)
	path := snapshot.ObjectPath(content.FetchedAt, data)
	if _, err := r.blobs.PutObject(ctx, path, r.cfg.ContentType, data); err != nil {
		r.logger.Warn("page snapshot failed", zap.String("url", content.URL), zap.Error(err))
	}
}

func (r *Runner) buildRecord(cand event.Candidate, decision filter.Decision) (event.EventRecord, error) {
	id, err := r.ids.NewID()
	if err != nil {
		return event.EventRecord{}, fmt.Errorf("generate record id: %w", err)
	}
	status := event.StatusValidated
	if decision.NeedsReview {
		status = event.StatusEnriched
	}
	return event.EventRecord{
		ID:                   id,
		URL:                  cand.URL,
		EventType:            r.eventType,
		Name:                 cand.Name,
		StartDate:            cand.StartDate,
		EndDate:              cand.EndDate,
		RegistrationDeadline: cand.RegistrationDeadline,
		RegistrationURL:      cand.RegistrationURL,
		Location:             cand.Location,
		City:                 cand.City,
		Remote:               cand.Remote,
		Description:          cand.Description,
		ShortDescription:     cand.ShortDescription,
		Speakers:             cand.Speakers,
		Organizers:           cand.Organizers,
		Sponsors:             cand.Sponsors,
		Themes:               cand.Themes,
		TicketPrices:         cand.TicketPrices,
		IsPaid:               cand.IsPaid,
		Source:               cand.Source,
		QualityScore:         filter.QualityScore(cand),
		Status:               status,
		NeedsReview:          decision.NeedsReview,
		CreatedAt:            r.clock.Now(),
	}, nil
}

// notifySaved publishes a saved-event notification. Publish failures are
// logged and swallowed; the record is already durable.
func (r *Runner) notifySaved(ctx context.Context, rec event.EventRecord, upsert event.UpsertOutcome) {
	if r.publisher == nil || r.cfg.NotifyTopic == "" {
		return
	}
	payload := map[string]any{
		"event_id":      rec.ID,
		"url":           rec.URL,
		"event_type":    string(rec.EventType),
		"status":        string(rec.Status),
		"outcome":       string(upsert),
		"quality_score": rec.QualityScore,
		"timestamp":     r.clock.Now().Format(time.RFC3339),
	}
	if _, err := r.publisher.Publish(ctx, r.cfg.NotifyTopic, payload); err != nil {
		r.logger.Warn("notification publish failed", zap.String("event_id", rec.ID), zap.Error(err))
	}
}

func (r *Runner) observeDiscovered(candidates []event.CandidateURL) {
	perSource := make(map[string]int)
	for _, c := range candidates {
		perSource[c.SourceName]++
	}
	for source, count := range perSource {
		metrics.ObserveDiscovered(source, count)
	}
}
