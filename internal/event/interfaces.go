package event

import (
	"context"
	"time"
)

// Ledger persists discovered URLs and their enrichment state.
type Ledger interface {
	RecordSeen(ctx context.Context, sourceType Type, urls []CandidateURL) (inserted, skipped int, err error)
	PendingEnrichment(ctx context.Context, sourceType Type, limit int) ([]LedgerEntry, error)
	MarkEnriched(ctx context.Context, urls []string) error
	Counts(ctx context.Context, sourceType Type) (total, enriched int, err error)
}

// EventStore persists validated event records keyed by normalized URL.
type EventStore interface {
	Upsert(ctx context.Context, rec EventRecord) (UpsertOutcome, error)
	GetByURL(ctx context.Context, url string) (EventRecord, error)
	Query(ctx context.Context, filter QueryFilter) ([]EventRecord, error)
	RecordAction(ctx context.Context, action ActionRecord) error
	ListActions(ctx context.Context, eventID string) ([]ActionRecord, error)
}

// Source discovers candidate URLs from one upstream (site scrape, search,
// platform API).
type Source interface {
	Name() string
	Discover(ctx context.Context, limit int) ([]CandidateURL, error)
}

// Fetcher acquires page content for a single URL.
type Fetcher interface {
	Name() string
	Fetch(ctx context.Context, url string) (FetchResult, error)
}

// FetchResult carries the acquired page content plus the backend that won.
type FetchResult struct {
	URL          string
	RawHTML      string
	RenderedText string
	StatusCode   int
	Method       string
	FetchedAt    time.Time
}

// Extractor turns fetched content into a structured candidate.
type Extractor interface {
	Extract(ctx context.Context, url string, content FetchResult, eventType Type) (Candidate, error)
}

// Searcher runs a web search query and returns scored hits.
type Searcher interface {
	Search(ctx context.Context, query string, maxResults int) ([]SearchHit, error)
}

// SearchHit is one result from the search service.
type SearchHit struct {
	URL     string
	Title   string
	Snippet string
	Score   float64
}

// Validator asks an external service to confirm a candidate is a real event.
type Validator interface {
	Confirm(ctx context.Context, cand Candidate, eventType Type) (bool, error)
}

// BlobStore archives raw artifacts and returns a URI.
type BlobStore interface {
	PutObject(ctx context.Context, path string, contentType string, data []byte) (string, error)
}

// Publisher pushes saved-event notifications downstream.
type Publisher interface {
	Publish(ctx context.Context, topic string, payload any) (string, error)
}

// Clock returns the current time (useful for testing).
type Clock interface {
	Now() time.Time
}

// IDGenerator produces record IDs (UUIDs).
type IDGenerator interface {
	NewID() (string, error)
}

// RetryPolicy decides whether and when to retry a failed operation.
type RetryPolicy interface {
	ShouldRetry(err error, attempt int) bool
	Backoff(attempt int) time.Duration
}

// PauseController abstracts how the pipeline backs off between batches.
type PauseController interface {
	Pause(ctx context.Context, delay time.Duration)
}
