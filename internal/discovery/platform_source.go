package discovery

import (
	"context"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/eventscout/eventscout/internal/event"
	"github.com/eventscout/eventscout/internal/rules"
)

// PlatformSourceConfig describes one paginated hackathon platform.
type PlatformSourceConfig struct {
	Name        string        `mapstructure:"name"`
	BaseURL     string        `mapstructure:"base_url"`
	ListingPath string        `mapstructure:"listing_path"`
	URLPattern  string        `mapstructure:"url_pattern"`
	MaxPages    int           `mapstructure:"max_pages"`
	PageDelay   time.Duration `mapstructure:"page_delay"`
	Reliability float64       `mapstructure:"reliability"`
}

func (c *PlatformSourceConfig) setDefaults() {
	if c.ListingPath == "" {
		c.ListingPath = "/hackathons"
	}
	if c.MaxPages <= 0 {
		c.MaxPages = 3
	}
	if c.PageDelay <= 0 {
		c.PageDelay = 7 * time.Second
	}
	if c.Reliability <= 0 {
		c.Reliability = 0.8
	}
}

// PlatformSource walks a hackathon platform's paginated listing
// (?page=N), with a politeness delay between pages. Rate-limit retries are
// handled by the fetch client underneath.
type PlatformSource struct {
	cfg       PlatformSourceConfig
	eventType event.Type
	fetcher   PageFetcher
	pauser    event.PauseController
	clock     event.Clock
	logger    *zap.Logger
}

// NewPlatformSource builds a paginated platform source.
func NewPlatformSource(cfg PlatformSourceConfig, eventType event.Type, fetcher PageFetcher, pauser event.PauseController, clock event.Clock, logger *zap.Logger) *PlatformSource {
	cfg.setDefaults()
	if pauser == nil {
		pauser = &event.TimerPause{}
	}
	if clock == nil {
		clock = event.SystemClock{}
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &PlatformSource{
		cfg:       cfg,
		eventType: eventType,
		fetcher:   fetcher,
		pauser:    pauser,
		clock:     clock,
		logger:    logger.Named("platform_source"),
	}
}

// Name identifies the source in logs and ledger metadata.
func (s *PlatformSource) Name() string {
	return "platform_" + s.cfg.Name
}

// Discover walks the listing pages in order. A page that fails after the
// fetch client's retries stops pagination; what was collected so far is
// still returned.
func (s *PlatformSource) Discover(ctx context.Context, limit int) ([]event.CandidateURL, error) {
	now := s.clock.Now()
	seen := make(map[string]struct{})
	var out []event.CandidateURL

	for page := 1; page <= s.cfg.MaxPages; page++ {
		if ctx.Err() != nil {
			return out, nil
		}
		if page > 1 {
			s.pauser.Pause(ctx, s.cfg.PageDelay)
			if ctx.Err() != nil {
				return out, nil
			}
		}

		pageURL := s.cfg.BaseURL + s.cfg.ListingPath
		if page > 1 {
			pageURL = fmt.Sprintf("%s?page=%d", pageURL, page)
		}

		result, err := s.fetcher.Fetch(ctx, pageURL)
		if err != nil {
			s.logger.Warn("listing page failed, stopping pagination",
				zap.String("platform", s.cfg.Name), zap.Int("page", page), zap.Error(err))
			break
		}

		perPage := limit
		if perPage <= 0 {
			perPage = 100
		}
		links, err := extractEventLinks(pageURL, result.RawHTML, perPage)
		if err != nil {
			s.logger.Warn("listing page parse failed",
				zap.String("platform", s.cfg.Name), zap.Int("page", page), zap.Error(err))
			continue
		}

		added := 0
		for _, link := range links {
			normalized, err := event.NormalizeURL(link)
			if err != nil {
				continue
			}
			if s.cfg.URLPattern != "" && !containsPattern(normalized, s.cfg.URLPattern) {
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
				Score:        s.cfg.Reliability,
				Metadata:     map[string]any{"page": page},
			})
			added++
			if limit > 0 && len(out) >= limit {
				return out, nil
			}
		}
		s.logger.Info("listing page scraped",
			zap.String("platform", s.cfg.Name), zap.Int("page", page), zap.Int("urls", added))

		// An empty page means we ran off the end of the listing.
		if added == 0 {
			break
		}
	}
	return out, nil
}

func containsPattern(url, pattern string) bool {
	return pattern == "" || strings.Contains(url, pattern)
}
