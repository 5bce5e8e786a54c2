package postgres

import (
	"context"
	"testing"
	"time"

	"github.com/pashagolub/pgxmock/v4"
	"github.com/stretchr/testify/require"

	"github.com/eventscout/eventscout/internal/event"
)

func TestRecordSeenCountsInsertedAndSkipped(t *testing.T) {
	t.Parallel()

	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	store, err := NewLedgerStoreWithPool(mock, "collected_urls")
	require.NoError(t, err)

	now := time.Unix(1700000000, 0).UTC()
	urls := []event.CandidateURL{
		{URL: "https://devpost.com/hackathons/new-one", SourceName: "platform_devpost", DiscoveredAt: now, Score: 0.95},
		{URL: "https://devpost.com/hackathons/already-known", SourceName: "platform_devpost", DiscoveredAt: now, Score: 0.95},
	}

	mock.ExpectExec("INSERT INTO collected_urls").
		WithArgs("https://devpost.com/hackathons/new-one", "hackathon", now, pgxmock.AnyArg()).
		WillReturnResult(pgxmock.NewResult("INSERT", 1))
	mock.ExpectExec("INSERT INTO collected_urls").
		WithArgs("https://devpost.com/hackathons/already-known", "hackathon", now, pgxmock.AnyArg()).
		WillReturnResult(pgxmock.NewResult("INSERT", 0))

	inserted, skipped, err := store.RecordSeen(context.Background(), event.TypeHackathon, urls)
	require.NoError(t, err)
	require.Equal(t, 1, inserted)
	require.Equal(t, 1, skipped)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestRecordSeenNormalizesBeforeInsert(t *testing.T) {
	t.Parallel()

	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	store, err := NewLedgerStoreWithPool(mock, "collected_urls")
	require.NoError(t, err)

	now := time.Unix(1700000000, 0).UTC()
	mock.ExpectExec("INSERT INTO collected_urls").
		WithArgs("https://devpost.com/hackathons/one", "hackathon", now, pgxmock.AnyArg()).
		WillReturnResult(pgxmock.NewResult("INSERT", 1))

	inserted, skipped, err := store.RecordSeen(context.Background(), event.TypeHackathon, []event.CandidateURL{
		{URL: "HTTPS://DEVPOST.COM/hackathons/one/", DiscoveredAt: now},
	})
	require.NoError(t, err)
	require.Equal(t, 1, inserted)
	require.Zero(t, skipped)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestPendingEnrichmentScansRows(t *testing.T) {
	t.Parallel()

	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	store, err := NewLedgerStoreWithPool(mock, "collected_urls")
	require.NoError(t, err)

	now := time.Unix(1700000000, 0).UTC()
	rows := pgxmock.NewRows([]string{"url", "source_type", "is_enriched", "first_seen_at", "metadata"}).
		AddRow("https://devpost.com/hackathons/one", "hackathon", false, now, []byte(`{"source_name":"platform_devpost"}`))

	mock.ExpectQuery("SELECT url, source_type, is_enriched, first_seen_at, metadata").
		WithArgs("hackathon", 10).
		WillReturnRows(rows)

	entries, err := store.PendingEnrichment(context.Background(), event.TypeHackathon, 10)
	require.NoError(t, err)
	require.Len(t, entries, 1)
	require.Equal(t, "https://devpost.com/hackathons/one", entries[0].URL)
	require.Equal(t, event.TypeHackathon, entries[0].SourceType)
	require.False(t, entries[0].IsEnriched)
	require.Equal(t, "platform_devpost", entries[0].Metadata["source_name"])
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestMarkEnriched(t *testing.T) {
	t.Parallel()

	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	store, err := NewLedgerStoreWithPool(mock, "collected_urls")
	require.NoError(t, err)

	urls := []string{"https://devpost.com/hackathons/one"}
	mock.ExpectExec("UPDATE collected_urls SET is_enriched = TRUE").
		WithArgs(urls).
		WillReturnResult(pgxmock.NewResult("UPDATE", 1))

	require.NoError(t, store.MarkEnriched(context.Background(), urls))
	require.NoError(t, store.MarkEnriched(context.Background(), nil), "empty input is a no-op")
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestCounts(t *testing.T) {
	t.Parallel()

	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	store, err := NewLedgerStoreWithPool(mock, "collected_urls")
	require.NoError(t, err)

	mock.ExpectQuery("SELECT COUNT").
		WithArgs("conference").
		WillReturnRows(pgxmock.NewRows([]string{"count", "enriched"}).AddRow(42, 17))

	total, enriched, err := store.Counts(context.Background(), event.TypeConference)
	require.NoError(t, err)
	require.Equal(t, 42, total)
	require.Equal(t, 17, enriched)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestLedgerStoreRejectsBadTableName(t *testing.T) {
	t.Parallel()

	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	_, err = NewLedgerStoreWithPool(mock, "bad; DROP TABLE events")
	require.Error(t, err)
}
