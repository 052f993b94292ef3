// Package api hosts the HTTP query interface. Routes:
//   - GET /v1/search?q=&limit= ranks documents against a free-text query.
//   - GET /v1/stats describes the loaded index.
//   - GET /healthz and /readyz for probes; readyz fails while the index is unavailable.
//   - GET /metrics for Prometheus scraping.
package api
