package api

import (
	"fmt"
	"sort"
	"time"

	"github.com/statuspulse/statuspulse/server/internal/compute"
	"github.com/statuspulse/statuspulse/server/internal/report"
)

// staleAfter is how long a service may go without a batch before it is
// flagged as silent.
const staleAfter = 5 * time.Minute

// Hint levels, most severe first.
const (
	levelCritical = "critical"
	levelWarning  = "warning"
	levelInfo     = "info"
	levelOK       = "ok"
)

// DiagnosticHint is one human-readable insight about a service's health.
// The UI displays these as chips on the service card; clicking one shows Detail.
type DiagnosticHint struct {
	// Key is a stable machine-readable identifier (used for dedup/ordering).
	Key string `json:"key"`
	// Level is "ok" | "info" | "warning" | "critical"
	Level string `json:"level"`
	// Title is a short label shown on the chip.
	Title string `json:"title"`
	// Detail is the full explanation shown on click/hover.
	Detail string `json:"detail"`
	// Value is an optional numeric value associated with this hint (e.g. error %).
	Value *float64 `json:"value,omitempty"`
}

// computeDiagnostics derives hints from a full report (buckets included).
// lastSeen is the zero time when the service has never sent a batch.
// Hints are ordered critical first, then warnings, then info.
func computeDiagnostics(r report.Report, lastSeen, now time.Time) []DiagnosticHint {
	var hints []DiagnosticHint
	agg := r.Aggregate

	if !lastSeen.IsZero() && now.Sub(lastSeen) > staleAfter {
		silent := now.Sub(lastSeen).Truncate(time.Second)
		hints = append(hints, DiagnosticHint{
			Key:   "silent",
			Level: levelWarning,
			Title: "No recent batches",
			Detail: fmt.Sprintf(
				"Nothing has been ingested for this service in %s. "+
					"Check that its agent is running and can reach the server.",
				silent,
			),
		})
	}

	if agg.Total == 0 {
		hints = append(hints, DiagnosticHint{
			Key:    "no_traffic",
			Level:  levelInfo,
			Title:  "No traffic",
			Detail: fmt.Sprintf("No requests were recorded in the %s window.", r.Interval),
		})
		return sortHints(hints)
	}

	if agg.Total < compute.MinSamples {
		v := float64(agg.Total)
		hints = append(hints, DiagnosticHint{
			Key:   "low_volume",
			Level: levelInfo,
			Title: "Too few samples",
			Detail: fmt.Sprintf(
				"Only %d requests in the %s window. Health is reported as unknown "+
					"until at least %d requests are seen, so a handful of failures "+
					"cannot flip the service to error.",
				agg.Total, r.Interval, compute.MinSamples,
			),
			Value: &v,
		})
	}

	if agg.ErrorRate > 0 {
		v := agg.ErrorRate
		level := levelInfo
		if agg.ErrorRate >= compute.ErrorRateThreshold {
			level = levelCritical
		}
		hints = append(hints, DiagnosticHint{
			Key:   "error_rate",
			Level: level,
			Title: fmt.Sprintf("%.2f%% non-success", v),
			Detail: fmt.Sprintf(
				"%d of %d requests (%d errors, %d warnings) did not succeed. "+
					"The service is marked as error at %.0f%% or more.",
				agg.ErrorCount+agg.WarningCount, agg.Total,
				agg.ErrorCount, agg.WarningCount, compute.ErrorRateThreshold,
			),
			Value: &v,
		})
	}

	if n, last := errorBuckets(r.Buckets); n > 0 {
		v := float64(n)
		hints = append(hints, DiagnosticHint{
			Key:   "error_buckets",
			Level: levelWarning,
			Title: fmt.Sprintf("%d red buckets", n),
			Detail: fmt.Sprintf(
				"%d of %d buckets crossed %.0f%% non-success. The most recent "+
					"started at %s.",
				n, len(r.Buckets), compute.TieredErrorThreshold,
				last.UTC().Format(time.RFC3339),
			),
			Value: &v,
		})
	}

	if len(hints) == 0 {
		v := agg.SuccessRate
		hints = append(hints, DiagnosticHint{
			Key:   "healthy",
			Level: levelOK,
			Title: "All clear",
			Detail: fmt.Sprintf(
				"All %d requests in the %s window succeeded.",
				agg.Total, r.Interval,
			),
			Value: &v,
		})
	}

	return sortHints(hints)
}

// errorBuckets counts buckets in the tiered error state and returns the start
// of the latest one.
func errorBuckets(buckets []report.Bucket) (int, time.Time) {
	var n int
	var last time.Time
	for _, b := range buckets {
		if b.Health.Status == compute.StatusError {
			n++
			last = b.Timestamp
		}
	}
	return n, last
}

func sortHints(hints []DiagnosticHint) []DiagnosticHint {
	rank := map[string]int{levelCritical: 0, levelWarning: 1, levelInfo: 2, levelOK: 3}
	sort.SliceStable(hints, func(i, j int) bool {
		return rank[hints[i].Level] < rank[hints[j].Level]
	})
	return hints
}
