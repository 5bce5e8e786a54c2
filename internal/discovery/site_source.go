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

// SitePage is one configured listing page to scrape with CSS selectors.
type SitePage struct {
	Name      string   `mapstructure:"name"`
	URL       string   `mapstructure:"url"`
	Selectors []string `mapstructure:"selectors"`
}

// SiteSource scrapes a fixed set of event listing pages. Each page names
// the CSS selectors that wrap its event cards; anchors inside matching
// nodes become candidate URLs.
type SiteSource struct {
	eventType event.Type
	pages     []SitePage
	fetcher   PageFetcher
	rules     rules.TypeRules
	clock     event.Clock
	logger    *zap.Logger
}

// NewSiteSource builds the configured-sites source.
func NewSiteSource(eventType event.Type, pages []SitePage, fetcher PageFetcher, clock event.Clock, logger *zap.Logger) *SiteSource {
	if clock == nil {
		clock = event.SystemClock{}
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &SiteSource{
		eventType: eventType,
		pages:     pages,
		fetcher:   fetcher,
		rules:     rules.ForType(eventType),
		clock:     clock,
		logger:    logger.Named("site_source"),
	}
}

// Name identifies the source in logs and ledger metadata.
func (s *SiteSource) Name() string {
	return "sites_" + string(s.eventType)
}

// Discover scrapes each configured page. A page that fails to fetch or
// parse is skipped.
func (s *SiteSource) Discover(ctx context.Context, limit int) ([]event.CandidateURL, error) {
	now := s.clock.Now()
	seen := make(map[string]struct{})
	var out []event.CandidateURL

	for _, page := range s.pages {
		if ctx.Err() != nil {
			break
		}
		if limit > 0 && len(out) >= limit {
			break
		}
		result, err := s.fetcher.Fetch(ctx, page.URL)
		if err != nil {
			s.logger.Warn("page fetch failed", zap.String("page", page.Name), zap.Error(err))
			continue
		}
		links, err := scrapeCardLinks(page.URL, result.RawHTML, page.Selectors)
		if err != nil {
			s.logger.Warn("page parse failed", zap.String("page", page.Name), zap.Error(err))
			continue
		}
		for _, link := range links {
			normalized, err := event.NormalizeURL(link)
			if err != nil {
				continue
			}
			if _, dup := seen[normalized]; dup {
				continue
			}
			if !rules.IsValidEventURL(normalized) {
				continue
			}
			seen[normalized] = struct{}{}
			out = append(out, event.CandidateURL{
				URL:          normalized,
				SourceName:   s.Name(),
				DiscoveredAt: now,
				Score:        s.rules.DomainReputation(event.Hostname(normalized), 0.6),
				Metadata:     map[string]any{"page": page.Name},
			})
			if limit > 0 && len(out) >= limit {
				break
			}
		}
	}
	return out, nil
}

// scrapeCardLinks collects hrefs and data-url attributes under the given
// selectors, resolved against the page URL. When no selector matches
// anything it falls back to all anchors on the page.
func scrapeCardLinks(pageURL, rawHTML string, selectors []string) ([]string, error) {
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
	collect := func(raw string) {
		raw = strings.TrimSpace(raw)
		if raw == "" || strings.HasPrefix(raw, "#") || strings.HasPrefix(raw, "javascript:") {
			return
		}
		ref, err := url.Parse(raw)
		if err != nil {
			return
		}
		abs := base.ResolveReference(ref).String()
		if _, dup := seen[abs]; dup {
			return
		}
		seen[abs] = struct{}{}
		links = append(links, abs)
	}

	for _, selector := range selectors {
		doc.Find(selector).Each(func(_ int, sel *goquery.Selection) {
			if dataURL, ok := sel.Attr("data-url"); ok {
				collect(dataURL)
			}
			if href, ok := sel.Attr("href"); ok {
				collect(href)
			}
			sel.Find("a[href]").Each(func(_ int, a *goquery.Selection) {
				href, _ := a.Attr("href")
				collect(href)
			})
		})
	}
	if len(links) == 0 {
		doc.Find("a[href]").Each(func(_ int, a *goquery.Selection) {
			href, _ := a.Attr("href")
			collect(href)
		})
	}
	return links, nil
}
