// Package compute turns raw scraper totals into event-count rows.
//
// Sources expose cumulative counters; the Engine keeps the last successful
// scrape per source and emits the positive delta since then as one
// types.RawDatum, stamped with the previous scrape time. A counter reset
// (current below previous) yields 0 for that interval. Engine.Process takes
// an injectable time.Time so tests are deterministic.
package compute
