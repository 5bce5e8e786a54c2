// Package search wraps the web-search service used by discovery.
package search

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/eventscout/eventscout/internal/event"
)

// Config points at the search API.
type Config struct {
	BaseURL string
	APIKey  string
	Timeout time.Duration
}

// Client implements event.Searcher over the search service's JSON API.
type Client struct {
	cfg    Config
	client *http.Client
}

// New builds a search client.
func New(cfg Config) (*Client, error) {
	if cfg.BaseURL == "" {
		return nil, fmt.Errorf("search base URL is required")
	}
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	return &Client{cfg: cfg, client: &http.Client{Timeout: timeout}}, nil
}

type searchRequest struct {
	APIKey     string `json:"api_key"`
	Query      string `json:"query"`
	MaxResults int    `json:"max_results"`
}

type searchResponse struct {
	Results []struct {
		URL     string  `json:"url"`
		Title   string  `json:"title"`
		Content string  `json:"content"`
		Score   float64 `json:"score"`
	} `json:"results"`
}

// Search runs one query and returns up to maxResults hits.
func (c *Client) Search(ctx context.Context, query string, maxResults int) ([]event.SearchHit, error) {
	if maxResults <= 0 {
		maxResults = 5
	}
	body, err := json.Marshal(searchRequest{APIKey: c.cfg.APIKey, Query: query, MaxResults: maxResults})
	if err != nil {
		return nil, fmt.Errorf("marshal search request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.cfg.BaseURL+"/search", bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("build search request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("search request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("search endpoint returned %d", resp.StatusCode)
	}

	var parsed searchResponse
	if err := json.NewDecoder(resp.Body).Decode(&parsed); err != nil {
		return nil, fmt.Errorf("decode search response: %w", err)
	}

	hits := make([]event.SearchHit, 0, len(parsed.Results))
	for _, r := range parsed.Results {
		if r.URL == "" {
			continue
		}
		hits = append(hits, event.SearchHit{
			URL:     r.URL,
			Title:   r.Title,
			Snippet: r.Content,
			Score:   r.Score,
		})
	}
	return hits, nil
}
