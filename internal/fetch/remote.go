package fetch

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/eventscout/eventscout/internal/event"
)

// RemoteConfig points at a hosted scraping service that renders pages and
// returns cleaned text alongside the raw HTML.
type RemoteConfig struct {
	BaseURL string
	APIKey  string
	Timeout time.Duration
}

// RemoteFetcher calls a scrape endpoint (POST /v1/scrape) and is typically
// the first backend in the chain since it handles anti-bot pages well.
type RemoteFetcher struct {
	cfg    RemoteConfig
	client *http.Client
}

// NewRemote builds the hosted-service backend.
func NewRemote(cfg RemoteConfig) (*RemoteFetcher, error) {
	if cfg.BaseURL == "" {
		return nil, fmt.Errorf("remote fetch base URL is required")
	}
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 60 * time.Second
	}
	return &RemoteFetcher{
		cfg:    cfg,
		client: &http.Client{Timeout: timeout},
	}, nil
}

// Name identifies this backend in logs and results.
func (f *RemoteFetcher) Name() string { return "remote" }

type scrapeRequest struct {
	URL     string   `json:"url"`
	Formats []string `json:"formats"`
}

type scrapeResponse struct {
	Success bool   `json:"success"`
	Error   string `json:"error,omitempty"`
	Data    struct {
		HTML     string `json:"html"`
		Markdown string `json:"markdown"`
	} `json:"data"`
}

// Fetch asks the hosted service to scrape the URL.
func (f *RemoteFetcher) Fetch(ctx context.Context, url string) (event.FetchResult, error) {
	body, err := json.Marshal(scrapeRequest{URL: url, Formats: []string{"html", "markdown"}})
	if err != nil {
		return event.FetchResult{}, fmt.Errorf("marshal scrape request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, f.cfg.BaseURL+"/v1/scrape", bytes.NewReader(body))
	if err != nil {
		return event.FetchResult{}, fmt.Errorf("build scrape request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	if f.cfg.APIKey != "" {
		req.Header.Set("Authorization", "Bearer "+f.cfg.APIKey)
	}

	resp, err := f.client.Do(req)
	if err != nil {
		return event.FetchResult{}, &Error{Kind: classifyMessage(err.Error()), Backend: f.Name(), Err: err}
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		io.Copy(io.Discard, io.LimitReader(resp.Body, 4096))
		return event.FetchResult{}, &Error{
			Kind:    classifyStatus(resp.StatusCode),
			Backend: f.Name(),
			Err:     fmt.Errorf("scrape endpoint returned %d", resp.StatusCode),
		}
	}

	var parsed scrapeResponse
	if err := json.NewDecoder(resp.Body).Decode(&parsed); err != nil {
		return event.FetchResult{}, &Error{Kind: FailureUnknown, Backend: f.Name(), Err: fmt.Errorf("decode scrape response: %w", err)}
	}
	if !parsed.Success {
		return event.FetchResult{}, &Error{
			Kind:    classifyMessage(parsed.Error),
			Backend: f.Name(),
			Err:     fmt.Errorf("scrape service error: %s", parsed.Error),
		}
	}

	return event.FetchResult{
		URL:          url,
		RawHTML:      parsed.Data.HTML,
		RenderedText: parsed.Data.Markdown,
		StatusCode:   resp.StatusCode,
		Method:       f.Name(),
		FetchedAt:    time.Now(),
	}, nil
}
