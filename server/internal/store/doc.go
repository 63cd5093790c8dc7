// Package store keeps a bounded, thread-safe, in-memory history of normalized
// event-count rows per service, with retention-based eviction.
package store
