// Package series partitions a lookback window into a fixed number of
// equal-width buckets and sums event-count samples into them.
//
// The window always ends at an instant supplied by the caller; nothing in this
// package reads the wall clock. Normalize returns exactly Profile.Count buckets
// for any input, zero-filling empty ones and silently discarding samples that
// fall outside [end-window, end).
//
// Profiles: 1hr (30 x 2m), 1day (24 x 60m), 7day (28 x 360m).
package series
