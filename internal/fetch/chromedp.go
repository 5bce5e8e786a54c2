package fetch

import (
	"context"
	"fmt"
	"time"

	"github.com/chromedp/cdproto/emulation"
	"github.com/chromedp/cdproto/network"
	"github.com/chromedp/chromedp"

	"github.com/eventscout/eventscout/internal/event"
)

// ChromedpConfig controls the rendering backend.
type ChromedpConfig struct {
	MaxParallel       int
	UserAgent         string
	NavigationTimeout time.Duration
}

// ChromedpFetcher renders JavaScript-heavy pages with headless Chrome. It is
// the most expensive backend and usually sits last in the chain.
type ChromedpFetcher struct {
	cfg         ChromedpConfig
	limiter     chan struct{}
	allocator   context.Context
	allocCancel context.CancelFunc
}

// NewChromedp creates a rendering fetcher backed by chromedp.
func NewChromedp(cfg ChromedpConfig) (*ChromedpFetcher, error) {
	if cfg.MaxParallel < 0 {
		return nil, fmt.Errorf("max parallel must be >= 0")
	}
	if cfg.NavigationTimeout <= 0 {
		cfg.NavigationTimeout = 45 * time.Second
	}
	var limiter chan struct{}
	if cfg.MaxParallel > 0 {
		limiter = make(chan struct{}, cfg.MaxParallel)
	}

	opts := append(chromedp.DefaultExecAllocatorOptions[:],
		chromedp.Flag("headless", "new"),
		chromedp.Flag("disable-gpu", true),
		chromedp.Flag("hide-scrollbars", true),
		chromedp.Flag("enable-automation", false),
	)
	allocCtx, allocCancel := chromedp.NewExecAllocator(context.Background(), opts...)

	return &ChromedpFetcher{
		cfg:         cfg,
		limiter:     limiter,
		allocator:   allocCtx,
		allocCancel: allocCancel,
	}, nil
}

// Close cancels the allocator context.
func (f *ChromedpFetcher) Close() {
	f.allocCancel()
}

// Name identifies this backend in logs and results.
func (f *ChromedpFetcher) Name() string { return "chromedp" }

// Fetch navigates with a headless browser and returns the rendered DOM plus
// its visible text.
func (f *ChromedpFetcher) Fetch(ctx context.Context, url string) (event.FetchResult, error) {
	if err := f.acquire(ctx); err != nil {
		return event.FetchResult{}, &Error{Kind: FailureTimeout, Backend: f.Name(), Err: err}
	}
	defer f.release()

	taskCtx, taskCancel := chromedp.NewContext(f.allocator)
	defer taskCancel()

	taskCtx, cancel := context.WithTimeout(taskCtx, f.cfg.NavigationTimeout)
	defer cancel()

	stop := watchParent(ctx, cancel)
	defer stop()

	var (
		html string
		text string
	)
	actions := []chromedp.Action{
		f.networkSetupAction(),
		chromedp.Navigate(url),
		chromedp.WaitReady("body", chromedp.ByQuery),
		chromedp.Sleep(500 * time.Millisecond),
		chromedp.OuterHTML("html", &html, chromedp.ByQuery),
		chromedp.Text("body", &text, chromedp.ByQuery),
	}
	if err := chromedp.Run(taskCtx, actions...); err != nil {
		kind := classifyMessage(err.Error())
		if ctx.Err() != nil {
			kind = FailureTimeout
		}
		return event.FetchResult{}, &Error{Kind: kind, Backend: f.Name(), Err: fmt.Errorf("chromedp run: %w", err)}
	}

	return event.FetchResult{
		URL:          url,
		RawHTML:      html,
		RenderedText: text,
		StatusCode:   200,
		Method:       f.Name(),
		FetchedAt:    time.Now(),
	}, nil
}

func (f *ChromedpFetcher) networkSetupAction() chromedp.Action {
	return chromedp.ActionFunc(func(ctx context.Context) error {
		if err := network.Enable().Do(ctx); err != nil {
			return fmt.Errorf("enable network domain: %w", err)
		}
		if f.cfg.UserAgent != "" {
			if err := emulation.SetUserAgentOverride(f.cfg.UserAgent).Do(ctx); err != nil {
				return fmt.Errorf("set user-agent: %w", err)
			}
		}
		return nil
	})
}

func (f *ChromedpFetcher) acquire(ctx context.Context) error {
	if f.limiter == nil {
		return nil
	}
	select {
	case f.limiter <- struct{}{}:
		return nil
	case <-ctx.Done():
		return fmt.Errorf("render slot wait canceled: %w", ctx.Err())
	}
}

func (f *ChromedpFetcher) release() {
	if f.limiter == nil {
		return
	}
	select {
	case <-f.limiter:
	default:
	}
}

// watchParent cancels the task when the caller's context is done. chromedp
// contexts do not inherit the caller's context directly.
func watchParent(parent context.Context, cancel context.CancelFunc) func() {
	done := make(chan struct{})
	go func() {
		select {
		case <-parent.Done():
			cancel()
		case <-done:
		}
	}()
	return func() { close(done) }
}
