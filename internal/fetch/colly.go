package fetch

import (
	"context"
	"net"
	"net/http"
	"time"

	"github.com/gocolly/colly/v2"

	"github.com/eventscout/eventscout/internal/event"
)

// CollyConfig controls the plain HTTP backend.
type CollyConfig struct {
	UserAgent string
	Timeout   time.Duration
}

// CollyFetcher is the lightweight HTTP backend, built on the Colly collector.
type CollyFetcher struct {
	cfg           CollyConfig
	baseCollector *colly.Collector
}

// NewColly builds the plain HTTP backend.
func NewColly(cfg CollyConfig) *CollyFetcher {
	c := colly.NewCollector(colly.Async(false))
	c.WithTransport(newHTTPTransport())
	return &CollyFetcher{cfg: cfg, baseCollector: c}
}

// Name identifies this backend in logs and results.
func (f *CollyFetcher) Name() string { return "colly" }

// Fetch executes a single HTTP GET using Colly.
func (f *CollyFetcher) Fetch(ctx context.Context, url string) (event.FetchResult, error) {
	collector := f.baseCollector.Clone()
	collector.IgnoreRobotsTxt = false
	if f.cfg.UserAgent != "" {
		collector.UserAgent = f.cfg.UserAgent
	}
	timeout := f.cfg.Timeout
	if timeout == 0 {
		timeout = 15 * time.Second
	}
	collector.SetRequestTimeout(timeout)

	var (
		result   event.FetchResult
		fetchErr error
	)
	collector.OnResponse(func(r *colly.Response) {
		result = event.FetchResult{
			URL:        r.Request.URL.String(),
			RawHTML:    string(r.Body),
			StatusCode: r.StatusCode,
			Method:     f.Name(),
			FetchedAt:  time.Now(),
		}
	})
	collector.OnError(func(r *colly.Response, err error) {
		kind := FailureUnknown
		if r != nil && r.StatusCode != 0 {
			kind = classifyStatus(r.StatusCode)
		} else {
			kind = classifyMessage(err.Error())
		}
		fetchErr = &Error{Kind: kind, Backend: f.Name(), Err: err}
	})

	done := make(chan error, 1)
	go func() {
		done <- collector.Visit(url)
	}()

	select {
	case <-ctx.Done():
		return event.FetchResult{}, &Error{Kind: FailureTimeout, Backend: f.Name(), Err: ctx.Err()}
	case err := <-done:
		if fetchErr != nil {
			return event.FetchResult{}, fetchErr
		}
		if err != nil {
			return event.FetchResult{}, &Error{Kind: classifyMessage(err.Error()), Backend: f.Name(), Err: err}
		}
		return result, nil
	}
}

func newHTTPTransport() *http.Transport {
	return &http.Transport{
		Proxy: http.ProxyFromEnvironment,
		DialContext: (&net.Dialer{
			Timeout:   10 * time.Second,
			KeepAlive: 30 * time.Second,
		}).DialContext,
		TLSHandshakeTimeout:   15 * time.Second,
		ExpectContinueTimeout: 1 * time.Second,
		MaxIdleConns:          100,
		IdleConnTimeout:       90 * time.Second,
	}
}
