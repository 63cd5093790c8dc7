// Package metrics holds the Prometheus self-metrics of statuspulse-server.
//
// All collectors live on a private registry served by Handler at /metrics,
// so tests can build as many Metrics as they like without colliding on the
// global default registry.
package metrics
