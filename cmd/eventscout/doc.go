// Package main hosts the event pipeline service entrypoint.
//
// Architecture overview:
//   - HTTP API: internal/api.Server exposes health, metrics, run triggers, and
//     event browsing/action endpoints. A POST to /api/v1/runs kicks off a full
//     pipeline run for one event type; the run registry answers status queries.
//   - Discovery: per event type, an orchestrator fans out to the configured
//     sources (web search expansion, curated listing pages, the Devpost-style
//     platform listing) and merges deduplicated candidate URLs into the ledger.
//   - Acquisition: the fetch client walks its backend chain (remote scrape API,
//     plain Colly HTTP, headless Chromedp) per URL, retrying rate limits with
//     doubling delays before falling through to the next backend.
//   - Extraction & filtering: a model-backed cascade (full prompt, simplified
//     prompt, DOM heuristics, minimal stub) turns pages into candidates; the
//     filter chain applies URL, keyword, location, date, dedup, and semantic
//     validation stages. Validation outages fail open with a review flag.
//   - Persistence & fanout: accepted records are upserted by normalized URL
//     into Postgres (or in-memory stores when no DSN is set), raw pages are
//     archived to GCS when a bucket is configured, and a compact Pub/Sub
//     notification is published per saved record when a topic is configured.
//   - Configuration & plumbing: Viper populates config from env/files with the
//     EVENTSCOUT_ prefix; zap provides structured logging; Prometheus metrics
//     are exported via the metrics middleware and /metrics handler.
//
// Operational notes:
//   - Concurrency model: enrichment uses a fixed worker pool over ledger
//     batches with a politeness pause between batches; headless fetches have
//     their own semaphore inside the Chromedp fetcher. Shutdown is coordinated
//     via context cancellation from main.
//   - Run locally: go run ./cmd/eventscout -config config.yaml (or rely solely
//     on env overrides). Without a DSN the service runs fully in memory, which
//     is handy for development.
package main
