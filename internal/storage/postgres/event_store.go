package postgres

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/eventscout/eventscout/internal/event"
)

// EventStoreConfig controls the Postgres connection pool for event records.
type EventStoreConfig struct {
	DSN             string
	Table           string
	ActionsTable    string
	MaxConns        int32
	MinConns        int32
	MaxConnLifetime time.Duration
}

// EventStore implements event.EventStore over an events table plus an
// append-only event_actions table.
type EventStore struct {
	pool         dbPool
	table        string
	actionsTable string
}

// NewEventStore creates a Postgres-backed event store.
func NewEventStore(ctx context.Context, cfg EventStoreConfig) (*EventStore, error) {
	if cfg.DSN == "" {
		return nil, fmt.Errorf("database.dsn is required")
	}
	pool, err := newPool(ctx, cfg.DSN, cfg.MaxConns, cfg.MinConns, cfg.MaxConnLifetime)
	if err != nil {
		return nil, err
	}
	return NewEventStoreWithPool(pool, cfg.Table, cfg.ActionsTable)
}

// NewEventStoreWithPool constructs a store from an existing pool
// (primarily for testing).
func NewEventStoreWithPool(pool dbPool, table, actionsTable string) (*EventStore, error) {
	if pool == nil {
		return nil, fmt.Errorf("pool is required")
	}
	if table == "" {
		table = "events"
	}
	if actionsTable == "" {
		actionsTable = "event_actions"
	}
	if !validTableName.MatchString(table) {
		return nil, fmt.Errorf("invalid table name %q", table)
	}
	if !validTableName.MatchString(actionsTable) {
		return nil, fmt.Errorf("invalid table name %q", actionsTable)
	}
	return &EventStore{pool: pool, table: table, actionsTable: actionsTable}, nil
}

// Close releases the underlying pool resources.
func (s *EventStore) Close() {
	if s == nil || s.pool == nil {
		return
	}
	s.pool.Close()
}

const eventColumns = `id, url, event_type, name, start_date, end_date, registration_deadline,
registration_url, location, city, remote, description, short_description,
speakers, organizers, sponsors, themes, ticket_prices, is_paid, source,
quality_score, status, needs_review, created_at`

// Upsert inserts the record or, when the URL already exists, refreshes its
// fields while keeping the original id and created_at. The returned outcome
// says which branch ran.
func (s *EventStore) Upsert(ctx context.Context, rec event.EventRecord) (event.UpsertOutcome, error) {
	if s == nil || s.pool == nil {
		return "", fmt.Errorf("event store is not configured")
	}
	if rec.ID == "" {
		return "", fmt.Errorf("record id is required")
	}
	if rec.URL == "" {
		return "", fmt.Errorf("record url is required")
	}

	speakers, err := json.Marshal(rec.Speakers)
	if err != nil {
		return "", fmt.Errorf("marshal speakers: %w", err)
	}
	prices, err := json.Marshal(rec.TicketPrices)
	if err != nil {
		return "", fmt.Errorf("marshal ticket prices: %w", err)
	}

	query := fmt.Sprintf(`
INSERT INTO %s (%s)
VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13,$14,$15,$16,$17,$18,$19,$20,$21,$22,$23,$24)
ON CONFLICT (url) DO UPDATE SET
	event_type = EXCLUDED.event_type,
	name = EXCLUDED.name,
	start_date = EXCLUDED.start_date,
	end_date = EXCLUDED.end_date,
	registration_deadline = EXCLUDED.registration_deadline,
	registration_url = EXCLUDED.registration_url,
	location = EXCLUDED.location,
	city = EXCLUDED.city,
	remote = EXCLUDED.remote,
	description = EXCLUDED.description,
	short_description = EXCLUDED.short_description,
	speakers = EXCLUDED.speakers,
	organizers = EXCLUDED.organizers,
	sponsors = EXCLUDED.sponsors,
	themes = EXCLUDED.themes,
	ticket_prices = EXCLUDED.ticket_prices,
	is_paid = EXCLUDED.is_paid,
	source = EXCLUDED.source,
	quality_score = EXCLUDED.quality_score,
	status = EXCLUDED.status,
	needs_review = EXCLUDED.needs_review
RETURNING (xmax = 0) AS inserted`, s.table, eventColumns)

	args := []any{
		rec.ID,
		rec.URL,
		string(rec.EventType),
		rec.Name,
		nullable(rec.StartDate),
		nullable(rec.EndDate),
		nullable(rec.RegistrationDeadline),
		rec.RegistrationURL,
		rec.Location,
		rec.City,
		rec.Remote,
		rec.Description,
		rec.ShortDescription,
		speakers,
		rec.Organizers,
		rec.Sponsors,
		rec.Themes,
		prices,
		rec.IsPaid,
		rec.Source,
		rec.QualityScore,
		string(rec.Status),
		rec.NeedsReview,
		rec.CreatedAt,
	}

	var inserted bool
	if err := s.pool.QueryRow(ctx, query, args...).Scan(&inserted); err != nil {
		return "", fmt.Errorf("upsert event: %w", err)
	}
	if inserted {
		return event.UpsertInserted, nil
	}
	return event.UpsertUpdated, nil
}

// GetByURL fetches a single record by its normalized URL.
func (s *EventStore) GetByURL(ctx context.Context, url string) (event.EventRecord, error) {
	if s == nil || s.pool == nil {
		return event.EventRecord{}, fmt.Errorf("event store is not configured")
	}
	query := fmt.Sprintf(`SELECT %s FROM %s WHERE url = $1`, eventColumns, s.table)
	rec, err := scanEvent(s.pool.QueryRow(ctx, query, url))
	if err != nil {
		return event.EventRecord{}, fmt.Errorf("get event by url: %w", err)
	}
	return rec, nil
}

// Query lists records matching the filter, newest first by default.
func (s *EventStore) Query(ctx context.Context, f event.QueryFilter) ([]event.EventRecord, error) {
	if s == nil || s.pool == nil {
		return nil, fmt.Errorf("event store is not configured")
	}

	var (
		where []string
		args  []any
	)
	arg := func(v any) string {
		args = append(args, v)
		return fmt.Sprintf("$%d", len(args))
	}
	if f.EventType != "" {
		where = append(where, "event_type = "+arg(string(f.EventType)))
	}
	if f.Status != "" {
		where = append(where, "status = "+arg(string(f.Status)))
	}
	if f.Location != "" {
		where = append(where, "location ILIKE "+arg("%"+f.Location+"%"))
	}
	if f.RemoteOnly {
		where = append(where, "remote = TRUE")
	}
	if f.FutureOnly {
		where = append(where, "(start_date IS NULL OR start_date >= CURRENT_DATE)")
	}

	query := fmt.Sprintf(`SELECT %s FROM %s`, eventColumns, s.table)
	if len(where) > 0 {
		query += " WHERE " + strings.Join(where, " AND ")
	}
	switch f.SortBy {
	case "start_date":
		query += " ORDER BY start_date ASC NULLS LAST"
	case "quality_score":
		query += " ORDER BY quality_score DESC"
	default:
		query += " ORDER BY created_at DESC"
	}
	limit := f.Limit
	if limit <= 0 {
		limit = 100
	}
	query += " LIMIT " + arg(limit)
	if f.Offset > 0 {
		query += " OFFSET " + arg(f.Offset)
	}

	rows, err := s.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query events: %w", err)
	}
	defer rows.Close()

	var out []event.EventRecord
	for rows.Next() {
		rec, err := scanEvent(rows)
		if err != nil {
			return nil, fmt.Errorf("scan event row: %w", err)
		}
		out = append(out, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate event rows: %w", err)
	}
	return out, nil
}

// RecordAction appends one audit row. Actions are never updated or deleted.
func (s *EventStore) RecordAction(ctx context.Context, action event.ActionRecord) error {
	if s == nil || s.pool == nil {
		return fmt.Errorf("event store is not configured")
	}
	if action.ID == "" || action.EventID == "" {
		return fmt.Errorf("action id and event id are required")
	}
	if !action.Action.Valid() {
		return fmt.Errorf("unknown action %q", action.Action)
	}
	query := fmt.Sprintf(`
INSERT INTO %s (id, event_id, event_type, action, created_at)
VALUES ($1, $2, $3, $4, $5)`, s.actionsTable)

	if _, err := s.pool.Exec(ctx, query,
		action.ID, action.EventID, string(action.EventType), string(action.Action), action.Timestamp); err != nil {
		return fmt.Errorf("insert action: %w", err)
	}
	return nil
}

// ListActions returns the audit trail for one event, oldest first.
func (s *EventStore) ListActions(ctx context.Context, eventID string) ([]event.ActionRecord, error) {
	if s == nil || s.pool == nil {
		return nil, fmt.Errorf("event store is not configured")
	}
	query := fmt.Sprintf(`
SELECT id, event_id, event_type, action, created_at
FROM %s
WHERE event_id = $1
ORDER BY created_at ASC`, s.actionsTable)

	rows, err := s.pool.Query(ctx, query, eventID)
	if err != nil {
		return nil, fmt.Errorf("query actions: %w", err)
	}
	defer rows.Close()

	var out []event.ActionRecord
	for rows.Next() {
		var (
			rec       event.ActionRecord
			eventType string
			action    string
		)
		if err := rows.Scan(&rec.ID, &rec.EventID, &eventType, &action, &rec.Timestamp); err != nil {
			return nil, fmt.Errorf("scan action row: %w", err)
		}
		rec.EventType = event.Type(eventType)
		rec.Action = event.Action(action)
		out = append(out, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate action rows: %w", err)
	}
	return out, nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanEvent(row rowScanner) (event.EventRecord, error) {
	var (
		rec          event.EventRecord
		eventType    string
		status       string
		startDate    *string
		endDate      *string
		deadline     *string
		speakersJSON []byte
		pricesJSON   []byte
	)
	err := row.Scan(
		&rec.ID, &rec.URL, &eventType, &rec.Name, &startDate, &endDate, &deadline,
		&rec.RegistrationURL, &rec.Location, &rec.City, &rec.Remote, &rec.Description,
		&rec.ShortDescription, &speakersJSON, &rec.Organizers, &rec.Sponsors, &rec.Themes,
		&pricesJSON, &rec.IsPaid, &rec.Source, &rec.QualityScore, &status,
		&rec.NeedsReview, &rec.CreatedAt,
	)
	if err != nil {
		return event.EventRecord{}, err
	}
	rec.EventType = event.Type(eventType)
	rec.Status = event.Status(status)
	rec.StartDate = deref(startDate)
	rec.EndDate = deref(endDate)
	rec.RegistrationDeadline = deref(deadline)
	if len(speakersJSON) > 0 {
		if err := json.Unmarshal(speakersJSON, &rec.Speakers); err != nil {
			return event.EventRecord{}, fmt.Errorf("unmarshal speakers: %w", err)
		}
	}
	if len(pricesJSON) > 0 {
		if err := json.Unmarshal(pricesJSON, &rec.TicketPrices); err != nil {
			return event.EventRecord{}, fmt.Errorf("unmarshal ticket prices: %w", err)
		}
	}
	return rec, nil
}

// nullable maps "" to NULL so empty dates do not violate the date columns.
func nullable(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}

func deref(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}
