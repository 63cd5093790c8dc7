// Package config loads the server-side configuration from the `server:` section
// of config.yaml (the `agent:` key is ignored by the server binary).
//
// Config fields:
//   - GRPCPort                   port for the gRPC health service (default 50051)
//   - HTTPPort                   port for the REST API and WebSocket hub (default 8080)
//   - LogLevel                   debug | info | warn | error (default info)
//   - Auth.Mode                  "apikey" or "none"
//   - Auth.KeyEnv                environment variable holding the expected API key
//   - Auth.Header                gRPC metadata/HTTP header name (default "x-api-key")
//   - Store.Retention            how long rows are kept (default 169h)
//   - Store.MaxRowsPerService    per-service row cap (default 20000)
//   - Ingest.RateLimit / Burst   ingest throttle (default 50 rps, burst 100)
//   - Broadcast.Interval/Profile snapshot push cadence and range (default 5s, 1hr)
//
// Load(path) applies defaults before unmarshalling, then STATUSPULSE_*
// environment overrides, then validates. Watch reloads on file changes.
package config
