// Package api hosts the HTTP server, middleware, and handlers in front of the
// preview pipeline. Notable routes:
//   - POST /api/preview resolves {"url": "..."} into a preview.
//   - GET /healthz / readyz for container health checks.
//   - GET /metrics for Prometheus scraping.
package api
