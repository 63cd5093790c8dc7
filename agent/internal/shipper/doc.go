// Package shipper sends rows produced by the compute engine to
// statuspulse-server as JSON POSTs to /api/v1/ingest.
//
// Shipper.Ship is non-blocking: rows go into a per-source in-memory buffer
// (default capacity 1000). When a buffer is full the oldest row is evicted so
// the latest data is always preserved.
//
// Shipper.Run flushes every ship_interval, one request per source, retrying
// with exponential backoff (1s→60s, cenkalti/backoff). 4xx responses other
// than 429 discard the batch immediately; everything else re-queues it.
//
// Auth: when server_auth.mode is apikey, the key is sent in the configured
// header on every request.
package shipper
