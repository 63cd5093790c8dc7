package api

import (
	"time"

	"github.com/statuspulse/statuspulse/server/internal/report"
	"github.com/statuspulse/statuspulse/server/internal/series"
	"github.com/statuspulse/statuspulse/server/internal/store"
)

// BuildSnapshot renders every service in st over p, ending at now, with
// buckets included. It is shared by GET /api/v1/snapshot and the WebSocket hub.
func BuildSnapshot(st *store.Store, p series.Profile, now time.Time) SnapshotResponse {
	reports := report.BuildAll(st, p, now)
	services := make([]ServiceResponse, 0, len(reports))
	for _, r := range reports {
		services = append(services, toServiceResponse(st, r, now))
	}
	return SnapshotResponse{
		Interval:    p.Name,
		Overview:    report.Summarize(reports),
		Services:    services,
		GeneratedAt: now.UTC().Format(time.RFC3339),
	}
}

// toServiceResponse decorates a full report with last-seen and diagnostics.
// Diagnostics read the buckets, so r must not be a Summary.
func toServiceResponse(st *store.Store, r report.Report, now time.Time) ServiceResponse {
	resp := ServiceResponse{Report: r}
	seen, ok := st.LastSeen(r.ServiceID)
	if ok {
		resp.LastSeen = seen.UTC().Format(time.RFC3339)
	}
	resp.Diagnostics = computeDiagnostics(r, seen, now)
	return resp
}
