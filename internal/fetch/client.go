package fetch

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/eventscout/eventscout/internal/event"
	"github.com/eventscout/eventscout/internal/metrics"
)

// Config controls the fallback chain.
type Config struct {
	// PerBackendTimeout bounds a single backend attempt.
	PerBackendTimeout time.Duration
	// MaxRateLimitRetries caps retries of a rate-limited backend before
	// falling through to the next one.
	MaxRateLimitRetries int
	// RateLimitBaseDelay is the first retry delay; it doubles per attempt.
	RateLimitBaseDelay time.Duration
}

func (c *Config) setDefaults() {
	if c.PerBackendTimeout <= 0 {
		c.PerBackendTimeout = 30 * time.Second
	}
	if c.MaxRateLimitRetries <= 0 {
		c.MaxRateLimitRetries = 3
	}
	if c.RateLimitBaseDelay <= 0 {
		c.RateLimitBaseDelay = time.Second
	}
}

// Client tries backends in priority order until one returns content.
type Client struct {
	cfg      Config
	backends []event.Fetcher
	pauser   event.PauseController
	logger   *zap.Logger
}

// NewClient builds a Client over the given backends, tried in order.
func NewClient(cfg Config, backends []event.Fetcher, pauser event.PauseController, logger *zap.Logger) (*Client, error) {
	if len(backends) == 0 {
		return nil, errors.New("at least one fetch backend is required")
	}
	if pauser == nil {
		pauser = &event.TimerPause{}
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	cfg.setDefaults()
	metrics.Init()
	return &Client{cfg: cfg, backends: backends, pauser: pauser, logger: logger.Named("fetch")}, nil
}

// Fetch walks the backend chain. Rate-limited backends are retried with
// doubling delays up to the configured cap; any other failure moves on to
// the next backend. When every backend fails the last error is returned.
func (c *Client) Fetch(ctx context.Context, url string) (event.FetchResult, error) {
	var lastErr error
	for _, backend := range c.backends {
		result, err := c.fetchWithRetry(ctx, backend, url)
		if err == nil {
			return result, nil
		}
		lastErr = err
		metrics.ObserveFetchFailure(backend.Name(), string(KindOf(err)))
		if ctx.Err() != nil {
			return event.FetchResult{}, fmt.Errorf("fetch canceled: %w", ctx.Err())
		}
		c.logger.Warn("backend failed, falling through",
			zap.String("backend", backend.Name()),
			zap.String("url", url),
			zap.String("kind", string(KindOf(err))),
			zap.Error(err))
	}
	return event.FetchResult{}, fmt.Errorf("all fetch backends failed for %s: %w", url, lastErr)
}

func (c *Client) fetchWithRetry(ctx context.Context, backend event.Fetcher, url string) (event.FetchResult, error) {
	delay := c.cfg.RateLimitBaseDelay
	var lastErr error
	for attempt := 0; attempt <= c.cfg.MaxRateLimitRetries; attempt++ {
		if attempt > 0 {
			c.pauser.Pause(ctx, delay)
			delay *= 2
			if ctx.Err() != nil {
				return event.FetchResult{}, ctx.Err()
			}
		}
		attemptCtx, cancel := context.WithTimeout(ctx, c.cfg.PerBackendTimeout)
		result, err := backend.Fetch(attemptCtx, url)
		cancel()
		if err == nil {
			return result, nil
		}
		lastErr = err
		if KindOf(err) != FailureRateLimited {
			return event.FetchResult{}, err
		}
	}
	return event.FetchResult{}, lastErr
}
