// Package api hosts the HTTP server, middleware, and REST handlers for
// operator access. Notable routes:
//   - GET /healthz / readyz for Kubernetes probes.
//   - GET /metrics for Prometheus scraping.
//   - POST /api/v1/runs to trigger a pipeline run; GET to check its status.
//   - GET /api/v1/stats for per-type ledger URL counts.
//   - GET /api/v1/events to browse stored events, POST/GET
//     /api/v1/events/{id}/actions for manual dispositions.
package api
