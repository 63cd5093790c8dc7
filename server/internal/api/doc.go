// Package api implements the HTTP REST API for statuspulse-server.
//
// New(deps) returns an http.Handler that serves:
//
//	GET  /api/v1/health                 per-status service counts, firing alert count
//	GET  /api/v1/services               every service's summary (?interval=, default 1day)
//	GET  /api/v1/services/{id}          single summary; 404 if unknown
//	GET  /api/v1/services/{id}/series   full bucketed report (?interval=&end=RFC3339)
//	GET  /api/v1/profiles               the interval profile table
//	POST /api/v1/ingest                 raw rows for one service (API key, rate limited)
//	GET  /api/v1/alerts                 firing and recently resolved alerts
//	GET  /api/v1/snapshot               every service with buckets + generated_at
//
// All endpoints:
//   - Respond with Content-Type: application/json
//   - Return 405 for the wrong method
//   - Return 400 for an unknown interval or malformed end
//
// JSON types are defined in types.go. No external HTTP framework is used.
package api
