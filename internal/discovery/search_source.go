package discovery

import (
	"context"
	"net/url"
	"strings"

	"github.com/PuerkitoBio/goquery"
	"go.uber.org/zap"

	"github.com/eventscout/eventscout/internal/event"
	"github.com/eventscout/eventscout/internal/rules"
)

// PageFetcher is the slice of the fetch client discovery needs for
// expanding listing pages.
type PageFetcher interface {
	Fetch(ctx context.Context, url string) (event.FetchResult, error)
}

// SearchSourceConfig caps how much the search source pulls per run.
type SearchSourceConfig struct {
	MaxQueries          int
	MaxResultsPerQuery  int
	MaxTotalLinks       int
	MaxLinksPerListing  int
	DefaultDomainScore  float64
}

func (c *SearchSourceConfig) setDefaults() {
	if c.MaxQueries <= 0 {
		c.MaxQueries = 10
	}
	if c.MaxResultsPerQuery <= 0 {
		c.MaxResultsPerQuery = 5
	}
	if c.MaxTotalLinks <= 0 {
		c.MaxTotalLinks = 20
	}
	if c.MaxLinksPerListing <= 0 {
		c.MaxLinksPerListing = 10
	}
	if c.DefaultDomainScore <= 0 {
		c.DefaultDomainScore = 0.5
	}
}

// SearchSource discovers event URLs through the web-search service. Hits
// that look like listing pages are expanded exactly one level.
type SearchSource struct {
	cfg      SearchSourceConfig
	searcher event.Searcher
	fetcher  PageFetcher
	rules    rules.TypeRules
	clock    event.Clock
	logger   *zap.Logger
}

// NewSearchSource builds the search-driven source for one event type.
func NewSearchSource(cfg SearchSourceConfig, searcher event.Searcher, fetcher PageFetcher, typeRules rules.TypeRules, clock event.Clock, logger *zap.Logger) *SearchSource {
	cfg.setDefaults()
	if clock == nil {
		clock = event.SystemClock{}
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &SearchSource{
		cfg:      cfg,
		searcher: searcher,
		fetcher:  fetcher,
		rules:    typeRules,
		clock:    clock,
		logger:   logger.Named("search_source"),
	}
}

// Name identifies the source in logs and ledger metadata.
func (s *SearchSource) Name() string {
	return "search_" + string(s.rules.EventType)
}

// Discover runs the generated queries and collects plausible event URLs up
// to the configured total, expanding aggregator hits one level.
func (s *SearchSource) Discover(ctx context.Context, limit int) ([]event.CandidateURL, error) {
	if limit <= 0 || limit > s.cfg.MaxTotalLinks {
		limit = s.cfg.MaxTotalLinks
	}

	queries := BuildQueries(s.rules.EventType, s.clock.Now().Year())
	if len(queries) > s.cfg.MaxQueries {
		queries = queries[:s.cfg.MaxQueries]
	}

	now := s.clock.Now()
	seen := make(map[string]struct{})
	var out []event.CandidateURL

	add := func(rawURL string, score float64) bool {
		if len(out) >= limit {
			return false
		}
		normalized, err := event.NormalizeURL(rawURL)
		if err != nil {
			return true
		}
		if _, dup := seen[normalized]; dup {
			return true
		}
		if !rules.IsValidEventURL(normalized) {
			return true
		}
		seen[normalized] = struct{}{}
		out = append(out, event.CandidateURL{
			URL:          normalized,
			SourceName:   s.Name(),
			DiscoveredAt: now,
			Score:        s.rules.DomainReputation(event.Hostname(normalized), score),
		})
		return len(out) < limit
	}

	for _, query := range queries {
		if ctx.Err() != nil {
			break
		}
		hits, err := s.searcher.Search(ctx, query, s.cfg.MaxResultsPerQuery)
		if err != nil {
			s.logger.Warn("query failed", zap.String("query", query), zap.Error(err))
			continue
		}
		for _, hit := range hits {
			switch {
			case rules.LooksLikeEventPage(hit.URL):
				if !add(hit.URL, hit.Score) {
					return out, nil
				}
			case rules.LooksLikeAggregator(hit.URL):
				for _, link := range s.expandListing(ctx, hit.URL) {
					if !add(link, s.cfg.DefaultDomainScore) {
						return out, nil
					}
				}
			default:
				if !add(hit.URL, hit.Score) {
					return out, nil
				}
			}
		}
	}
	return out, nil
}

// expandListing fetches a listing page once and pulls out links that look
// like individual event pages. Expansion never recurses.
func (s *SearchSource) expandListing(ctx context.Context, listingURL string) []string {
	if s.fetcher == nil {
		return nil
	}
	result, err := s.fetcher.Fetch(ctx, listingURL)
	if err != nil {
		s.logger.Debug("listing fetch failed", zap.String("url", listingURL), zap.Error(err))
		return nil
	}
	links, err := extractEventLinks(listingURL, result.RawHTML, s.cfg.MaxLinksPerListing)
	if err != nil {
		s.logger.Debug("listing parse failed", zap.String("url", listingURL), zap.Error(err))
		return nil
	}
	return links
}

// extractEventLinks parses anchors out of a listing page, resolving relative
// hrefs against the page URL and keeping only event-shaped ones.
func extractEventLinks(pageURL, rawHTML string, max int) ([]string, error) {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(rawHTML))
	if err != nil {
		return nil, err
	}
	base, err := url.Parse(pageURL)
	if err != nil {
		return nil, err
	}

	seen := make(map[string]struct{})
	var links []string
	doc.Find("a[href]").EachWithBreak(func(_ int, sel *goquery.Selection) bool {
		href, _ := sel.Attr("href")
		href = strings.TrimSpace(href)
		if href == "" || strings.HasPrefix(href, "#") || strings.HasPrefix(href, "javascript:") {
			return true
		}
		ref, err := url.Parse(href)
		if err != nil {
			return true
		}
		abs := base.ResolveReference(ref).String()
		if !rules.LooksLikeEventPage(abs) || !rules.IsValidEventURL(abs) {
			return true
		}
		if _, dup := seen[abs]; dup {
			return true
		}
		seen[abs] = struct{}{}
		links = append(links, abs)
		return len(links) < max
	})
	return links, nil
}
