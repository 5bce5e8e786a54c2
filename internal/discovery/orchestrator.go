// Package discovery finds candidate event URLs from configured sources.
package discovery

import (
	"context"
	"sync"

	"go.uber.org/zap"

	"github.com/eventscout/eventscout/internal/event"
)

// Orchestrator fans discovery out over its sources with bounded concurrency.
// A failing source is logged and skipped; it never sinks the run.
type Orchestrator struct {
	sources     []event.Source
	maxParallel int
	logger      *zap.Logger
}

// NewOrchestrator builds an orchestrator over the given sources.
func NewOrchestrator(sources []event.Source, maxParallel int, logger *zap.Logger) *Orchestrator {
	if maxParallel <= 0 {
		maxParallel = 3
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Orchestrator{sources: sources, maxParallel: maxParallel, logger: logger.Named("discovery")}
}

// Discover runs every source, merges the results, and deduplicates them by
// normalized URL. perSourceLimit caps what each source may return.
func (o *Orchestrator) Discover(ctx context.Context, perSourceLimit int) []event.CandidateURL {
	type sourceResult struct {
		name string
		urls []event.CandidateURL
		err  error
	}

	results := make([]sourceResult, len(o.sources))
	sem := make(chan struct{}, o.maxParallel)
	var wg sync.WaitGroup

	for i, src := range o.sources {
		wg.Add(1)
		go func(idx int, s event.Source) {
			defer wg.Done()
			select {
			case sem <- struct{}{}:
				defer func() { <-sem }()
			case <-ctx.Done():
				results[idx] = sourceResult{name: s.Name(), err: ctx.Err()}
				return
			}
			urls, err := s.Discover(ctx, perSourceLimit)
			results[idx] = sourceResult{name: s.Name(), urls: urls, err: err}
		}(i, src)
	}
	wg.Wait()

	seen := make(map[string]struct{})
	var merged []event.CandidateURL
	for _, res := range results {
		if res.err != nil {
			o.logger.Warn("source failed", zap.String("source", res.name), zap.Error(res.err))
			continue
		}
		o.logger.Info("source finished", zap.String("source", res.name), zap.Int("urls", len(res.urls)))
		for _, cu := range res.urls {
			normalized, err := event.NormalizeURL(cu.URL)
			if err != nil {
				continue
			}
			if _, dup := seen[normalized]; dup {
				continue
			}
			seen[normalized] = struct{}{}
			cu.URL = normalized
			merged = append(merged, cu)
		}
	}
	return merged
}
