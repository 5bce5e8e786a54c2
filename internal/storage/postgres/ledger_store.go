// Package postgres provides Postgres-backed persistence implementations.
package postgres

import (
	"context"
	"encoding/json"
	"fmt"
	"regexp"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/eventscout/eventscout/internal/event"
)

var validTableName = regexp.MustCompile(`^[a-zA-Z_][a-zA-Z0-9_]*$`)

// dbPool is the slice of pgxpool.Pool the stores use; pgxmock satisfies it
// in tests.
type dbPool interface {
	Exec(context.Context, string, ...any) (pgconn.CommandTag, error)
	Query(context.Context, string, ...any) (pgx.Rows, error)
	QueryRow(context.Context, string, ...any) pgx.Row
	Close()
}

// LedgerStoreConfig controls the Postgres connection pool for the URL ledger.
type LedgerStoreConfig struct {
	DSN             string
	Table           string
	MaxConns        int32
	MinConns        int32
	MaxConnLifetime time.Duration
}

// LedgerStore implements event.Ledger over a collected_urls table.
type LedgerStore struct {
	pool  dbPool
	table string
}

// NewLedgerStore creates a Postgres-backed ledger using the provided config.
func NewLedgerStore(ctx context.Context, cfg LedgerStoreConfig) (*LedgerStore, error) {
	if cfg.DSN == "" {
		return nil, fmt.Errorf("database.dsn is required")
	}
	table := cfg.Table
	if table == "" {
		table = "collected_urls"
	}
	if !validTableName.MatchString(table) {
		return nil, fmt.Errorf("invalid table name %q", table)
	}
	pool, err := newPool(ctx, cfg.DSN, cfg.MaxConns, cfg.MinConns, cfg.MaxConnLifetime)
	if err != nil {
		return nil, err
	}
	return &LedgerStore{pool: pool, table: table}, nil
}

// NewLedgerStoreWithPool constructs a ledger from an existing pool
// (primarily for testing).
func NewLedgerStoreWithPool(pool dbPool, table string) (*LedgerStore, error) {
	if pool == nil {
		return nil, fmt.Errorf("pool is required")
	}
	if table == "" {
		table = "collected_urls"
	}
	if !validTableName.MatchString(table) {
		return nil, fmt.Errorf("invalid table name %q", table)
	}
	return &LedgerStore{pool: pool, table: table}, nil
}

// Close releases the underlying pool resources.
func (s *LedgerStore) Close() {
	if s == nil || s.pool == nil {
		return
	}
	s.pool.Close()
}

// RecordSeen inserts every new URL, skipping ones already in the ledger.
// Each URL is inserted independently; a failure on one does not roll back
// the others.
func (s *LedgerStore) RecordSeen(ctx context.Context, sourceType event.Type, urls []event.CandidateURL) (int, int, error) {
	if s == nil || s.pool == nil {
		return 0, 0, fmt.Errorf("ledger store is not configured")
	}
	query := fmt.Sprintf(`
INSERT INTO %s (url, source_type, is_enriched, first_seen_at, metadata)
VALUES ($1, $2, FALSE, $3, $4)
ON CONFLICT (url) DO NOTHING`, s.table)

	inserted, skipped := 0, 0
	for _, cu := range urls {
		normalized, err := event.NormalizeURL(cu.URL)
		if err != nil {
			skipped++
			continue
		}
		meta := cu.Metadata
		if meta == nil {
			meta = map[string]any{}
		}
		meta["source_name"] = cu.SourceName
		meta["score"] = cu.Score
		metaJSON, err := json.Marshal(meta)
		if err != nil {
			return inserted, skipped, fmt.Errorf("marshal url metadata: %w", err)
		}
		tag, err := s.pool.Exec(ctx, query, normalized, string(sourceType), cu.DiscoveredAt, metaJSON)
		if err != nil {
			return inserted, skipped, fmt.Errorf("insert collected url: %w", err)
		}
		if tag.RowsAffected() > 0 {
			inserted++
		} else {
			skipped++
		}
	}
	return inserted, skipped, nil
}

// PendingEnrichment returns the oldest un-enriched URLs for one source type.
func (s *LedgerStore) PendingEnrichment(ctx context.Context, sourceType event.Type, limit int) ([]event.LedgerEntry, error) {
	if s == nil || s.pool == nil {
		return nil, fmt.Errorf("ledger store is not configured")
	}
	if limit <= 0 {
		limit = 100
	}
	query := fmt.Sprintf(`
SELECT url, source_type, is_enriched, first_seen_at, metadata
FROM %s
WHERE source_type = $1 AND is_enriched = FALSE
ORDER BY first_seen_at ASC
LIMIT $2`, s.table)

	rows, err := s.pool.Query(ctx, query, string(sourceType), limit)
	if err != nil {
		return nil, fmt.Errorf("query pending urls: %w", err)
	}
	defer rows.Close()

	var entries []event.LedgerEntry
	for rows.Next() {
		var (
			entry    event.LedgerEntry
			srcType  string
			metaJSON []byte
		)
		if err := rows.Scan(&entry.URL, &srcType, &entry.IsEnriched, &entry.FirstSeenAt, &metaJSON); err != nil {
			return nil, fmt.Errorf("scan ledger row: %w", err)
		}
		entry.SourceType = event.Type(srcType)
		if len(metaJSON) > 0 {
			if err := json.Unmarshal(metaJSON, &entry.Metadata); err != nil {
				return nil, fmt.Errorf("unmarshal url metadata: %w", err)
			}
		}
		entries = append(entries, entry)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate ledger rows: %w", err)
	}
	return entries, nil
}

// MarkEnriched flips is_enriched for the given URLs. Already-enriched URLs
// are unaffected, which makes the call idempotent.
func (s *LedgerStore) MarkEnriched(ctx context.Context, urls []string) error {
	if s == nil || s.pool == nil {
		return fmt.Errorf("ledger store is not configured")
	}
	if len(urls) == 0 {
		return nil
	}
	query := fmt.Sprintf(`UPDATE %s SET is_enriched = TRUE WHERE url = ANY($1)`, s.table)
	if _, err := s.pool.Exec(ctx, query, urls); err != nil {
		return fmt.Errorf("mark urls enriched: %w", err)
	}
	return nil
}

// Counts reports the ledger size and how much of it has been enriched.
func (s *LedgerStore) Counts(ctx context.Context, sourceType event.Type) (int, int, error) {
	if s == nil || s.pool == nil {
		return 0, 0, fmt.Errorf("ledger store is not configured")
	}
	query := fmt.Sprintf(`
SELECT COUNT(*), COUNT(*) FILTER (WHERE is_enriched)
FROM %s
WHERE source_type = $1`, s.table)

	var total, enriched int
	if err := s.pool.QueryRow(ctx, query, string(sourceType)).Scan(&total, &enriched); err != nil {
		return 0, 0, fmt.Errorf("count ledger rows: %w", err)
	}
	return total, enriched, nil
}

func newPool(ctx context.Context, dsn string, maxConns, minConns int32, maxLifetime time.Duration) (*pgxpool.Pool, error) {
	poolCfg, err := pgxpool.ParseConfig(dsn)
	if err != nil {
		return nil, fmt.Errorf("parse postgres dsn: %w", err)
	}
	if maxConns > 0 {
		poolCfg.MaxConns = maxConns
	}
	if minConns > 0 {
		poolCfg.MinConns = minConns
	}
	if maxLifetime > 0 {
		poolCfg.MaxConnLifetime = maxLifetime
	}
	pool, err := pgxpool.NewWithConfig(ctx, poolCfg)
	if err != nil {
		return nil, fmt.Errorf("connect postgres: %w", err)
	}
	return pool, nil
}
