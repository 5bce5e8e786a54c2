// Package memory provides in-memory store implementations used by tests
// and local development.
package memory

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/eventscout/eventscout/internal/event"
)

// Ledger is an in-memory event.Ledger.
type Ledger struct {
	mu      sync.Mutex
	entries map[string]*event.LedgerEntry
}

// NewLedger builds an empty ledger.
func NewLedger() *Ledger {
	return &Ledger{entries: make(map[string]*event.LedgerEntry)}
}

// RecordSeen inserts new URLs and skips known ones.
func (l *Ledger) RecordSeen(_ context.Context, sourceType event.Type, urls []event.CandidateURL) (int, int, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	inserted, skipped := 0, 0
	for _, cu := range urls {
		normalized, err := event.NormalizeURL(cu.URL)
		if err != nil {
			skipped++
			continue
		}
		if _, known := l.entries[normalized]; known {
			skipped++
			continue
		}
		meta := map[string]any{"source_name": cu.SourceName, "score": cu.Score}
		for k, v := range cu.Metadata {
			meta[k] = v
		}
		l.entries[normalized] = &event.LedgerEntry{
			URL:         normalized,
			SourceType:  sourceType,
			FirstSeenAt: cu.DiscoveredAt,
			Metadata:    meta,
		}
		inserted++
	}
	return inserted, skipped, nil
}

// PendingEnrichment returns un-enriched entries, oldest first.
func (l *Ledger) PendingEnrichment(_ context.Context, sourceType event.Type, limit int) ([]event.LedgerEntry, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	var out []event.LedgerEntry
	for _, entry := range l.entries {
		if entry.SourceType == sourceType && !entry.IsEnriched {
			out = append(out, *entry)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].FirstSeenAt.Before(out[j].FirstSeenAt) })
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

// MarkEnriched flips the flag for the given URLs; unknown URLs are ignored.
func (l *Ledger) MarkEnriched(_ context.Context, urls []string) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	for _, u := range urls {
		if entry, ok := l.entries[u]; ok {
			entry.IsEnriched = true
		}
	}
	return nil
}

// Counts reports total and enriched entries for one source type.
func (l *Ledger) Counts(_ context.Context, sourceType event.Type) (int, int, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	total, enriched := 0, 0
	for _, entry := range l.entries {
		if entry.SourceType != sourceType {
			continue
		}
		total++
		if entry.IsEnriched {
			enriched++
		}
	}
	return total, enriched, nil
}

// EventStore is an in-memory event.EventStore.
type EventStore struct {
	mu      sync.Mutex
	byURL   map[string]event.EventRecord
	actions []event.ActionRecord
}

// NewEventStore builds an empty store.
func NewEventStore() *EventStore {
	return &EventStore{byURL: make(map[string]event.EventRecord)}
}

// Upsert stores the record by URL, preserving id and created_at on update.
func (s *EventStore) Upsert(_ context.Context, rec event.EventRecord) (event.UpsertOutcome, error) {
	if rec.ID == "" || rec.URL == "" {
		return "", fmt.Errorf("record id and url are required")
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if existing, ok := s.byURL[rec.URL]; ok {
		rec.ID = existing.ID
		rec.CreatedAt = existing.CreatedAt
		s.byURL[rec.URL] = rec
		return event.UpsertUpdated, nil
	}
	s.byURL[rec.URL] = rec
	return event.UpsertInserted, nil
}

// GetByURL fetches a record or an error when absent.
func (s *EventStore) GetByURL(_ context.Context, url string) (event.EventRecord, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	rec, ok := s.byURL[url]
	if !ok {
		return event.EventRecord{}, fmt.Errorf("no event for url %s", url)
	}
	return rec, nil
}

// Query applies the filter in memory; sorting supports the same keys as the
// Postgres store.
func (s *EventStore) Query(_ context.Context, f event.QueryFilter) ([]event.EventRecord, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	today := time.Now().Format("2006-01-02")
	var out []event.EventRecord
	for _, rec := range s.byURL {
		if f.EventType != "" && rec.EventType != f.EventType {
			continue
		}
		if f.Status != "" && rec.Status != f.Status {
			continue
		}
		if f.Location != "" && !strings.Contains(strings.ToLower(rec.Location), strings.ToLower(f.Location)) {
			continue
		}
		if f.RemoteOnly && !rec.Remote {
			continue
		}
		// Unknown start dates pass, matching the Postgres query.
		if f.FutureOnly && rec.StartDate != "" && rec.StartDate < today {
			continue
		}
		out = append(out, rec)
	}
	switch f.SortBy {
	case "start_date":
		sort.Slice(out, func(i, j int) bool { return out[i].StartDate < out[j].StartDate })
	case "quality_score":
		sort.Slice(out, func(i, j int) bool { return out[i].QualityScore > out[j].QualityScore })
	default:
		sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	}
	if f.Offset > 0 {
		if f.Offset >= len(out) {
			return nil, nil
		}
		out = out[f.Offset:]
	}
	if f.Limit > 0 && len(out) > f.Limit {
		out = out[:f.Limit]
	}
	return out, nil
}

// RecordAction appends one audit row.
func (s *EventStore) RecordAction(_ context.Context, action event.ActionRecord) error {
	if action.ID == "" || action.EventID == "" {
		return fmt.Errorf("action id and event id are required")
	}
	if !action.Action.Valid() {
		return fmt.Errorf("unknown action %q", action.Action)
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.actions = append(s.actions, action)
	return nil
}

// ListActions returns the audit trail for one event, oldest first.
func (s *EventStore) ListActions(_ context.Context, eventID string) ([]event.ActionRecord, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []event.ActionRecord
	for _, a := range s.actions {
		if a.EventID == eventID {
			out = append(out, a)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Timestamp.Before(out[j].Timestamp) })
	return out, nil
}
