// Package compute reduces event-count samples to scalar aggregates and derives
// a categorical health status from them.
//
// aggregate.go holds the pure reductions: SumTotal, SumWarnings, SumErrors,
// ComputeRates and Summarize. ComputeRates returns 0 for both rates when the
// total is zero, never NaN.
//
// health.go holds the two classification policies:
//
//	ClassifyHealth  total < 100 → unknown; error rate ≥ 1% → error; else healthy
//	ClassifyTiered  total == 0 → no-data; ≥ 15% → error; ≥ 5% → warning; else healthy
//
// ClassifyHealth judges a whole service; ClassifyTiered colors single buckets.
package compute
