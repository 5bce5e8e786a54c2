package discovery

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/eventscout/eventscout/internal/event"
	"github.com/eventscout/eventscout/internal/rules"
)

type fakeSearcher struct {
	hits map[string][]event.SearchHit
	err  error
}

func (f *fakeSearcher) Search(ctx context.Context, query string, maxResults int) ([]event.SearchHit, error) {
	if f.err != nil {
		return nil, f.err
	}
	if hits, ok := f.hits[query]; ok {
		return hits, nil
	}
	return nil, nil
}

type fakePageFetcher struct {
	pages map[string]string
}

func (f *fakePageFetcher) Fetch(ctx context.Context, url string) (event.FetchResult, error) {
	html, ok := f.pages[url]
	if !ok {
		return event.FetchResult{}, errors.New("no such page")
	}
	return event.FetchResult{URL: url, RawHTML: html, StatusCode: 200, Method: "fake"}, nil
}

type fixedClock struct{ t time.Time }

func (c fixedClock) Now() time.Time { return c.t }

func newHackathonSearchSource(searcher event.Searcher, fetcher PageFetcher) *SearchSource {
	return NewSearchSource(
		SearchSourceConfig{MaxQueries: 1, MaxResultsPerQuery: 5, MaxTotalLinks: 20},
		searcher, fetcher, rules.ForType(event.TypeHackathon),
		fixedClock{t: time.Date(2025, 6, 1, 0, 0, 0, 0, time.UTC)}, zap.NewNop())
}

func firstQuery(t *testing.T) string {
	t.Helper()
	queries := BuildQueries(event.TypeHackathon, 2025)
	require.NotEmpty(t, queries)
	return queries[0]
}

func TestSearchSourceCollectsEventPages(t *testing.T) {
	t.Parallel()

	searcher := &fakeSearcher{hits: map[string][]event.SearchHit{
		firstQuery(t): {
			{URL: "https://devpost.com/hackathons/sf-hack", Score: 0.9},
			{URL: "https://example.com/login", Score: 0.8},
		},
	}}
	src := newHackathonSearchSource(searcher, nil)

	got, err := src.Discover(context.Background(), 10)
	require.NoError(t, err)
	require.Len(t, got, 1)
	require.Equal(t, "https://devpost.com/hackathons/sf-hack", got[0].URL)
	require.InDelta(t, 0.95, got[0].Score, 1e-9, "trusted domain reputation overrides the search score")
}

func TestSearchSourceExpandsAggregatorOneLevel(t *testing.T) {
	t.Parallel()

	listing := "https://example.com/calendar"
	searcher := &fakeSearcher{hits: map[string][]event.SearchHit{
		firstQuery(t): {{URL: listing, Score: 0.7}},
	}}
	fetcher := &fakePageFetcher{pages: map[string]string{
		listing: `<html><body>
			<a href="/event/ai-hack-night">AI Hack Night</a>
			<a href="https://devpost.com/hackathons/global">Global Hack</a>
			<a href="/privacy">Privacy</a>
			<a href="#top">Top</a>
		</body></html>`,
	}}
	src := newHackathonSearchSource(searcher, fetcher)

	got, err := src.Discover(context.Background(), 10)
	require.NoError(t, err)

	var urls []string
	for _, cu := range got {
		urls = append(urls, cu.URL)
	}
	require.Contains(t, urls, "https://example.com/event/ai-hack-night")
	require.Contains(t, urls, "https://devpost.com/hackathons/global")
	require.NotContains(t, urls, "https://example.com/privacy")
}

func TestSearchSourceRespectsLimit(t *testing.T) {
	t.Parallel()

	searcher := &fakeSearcher{hits: map[string][]event.SearchHit{
		firstQuery(t): {
			{URL: "https://devpost.com/hackathons/one"},
			{URL: "https://devpost.com/hackathons/two"},
			{URL: "https://devpost.com/hackathons/three"},
		},
	}}
	src := newHackathonSearchSource(searcher, nil)

	got, err := src.Discover(context.Background(), 2)
	require.NoError(t, err)
	require.Len(t, got, 2)
}

func TestSearchSourceSurvivesQueryFailure(t *testing.T) {
	t.Parallel()

	src := newHackathonSearchSource(&fakeSearcher{err: errors.New("search down")}, nil)
	got, err := src.Discover(context.Background(), 10)
	require.NoError(t, err)
	require.Empty(t, got)
}

func TestBuildQueries(t *testing.T) {
	t.Parallel()

	hack := BuildQueries(event.TypeHackathon, 2025)
	require.NotEmpty(t, hack)
	require.Contains(t, hack, "hackathon San Francisco 2025")

	conf := BuildQueries(event.TypeConference, 2025)
	require.NotEmpty(t, conf)
	require.Contains(t, conf, "AI conference NYC 2025")
}
