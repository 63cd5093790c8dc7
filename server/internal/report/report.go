package report

import (
	"log/slog"
	"time"

	"github.com/statuspulse/statuspulse/pkg/types"
	"github.com/statuspulse/statuspulse/server/internal/compute"
	"github.com/statuspulse/statuspulse/server/internal/series"
)

// Source is the read side of the row store.
type Source interface {
	Services() []string
	Rows(serviceID string) ([]types.Datum, error)
}

// Bucket is one bucket of a series with its derived per-bucket health.
type Bucket struct {
	types.Datum
	Total     int64          `json:"total"`
	ErrorRate float64        `json:"error_rate"`
	Health    compute.Health `json:"health"`
}

// Report is the presentation-ready view of one service over one profile.
type Report struct {
	ServiceID          string            `json:"service_id"`
	Interval           string            `json:"interval"`
	BucketWidthMinutes int               `json:"bucket_width_minutes"`
	WindowStart        time.Time         `json:"window_start"`
	WindowEnd          time.Time         `json:"window_end"`
	Aggregate          compute.Aggregate `json:"aggregate"`
	Health             compute.Health    `json:"health"`
	Buckets            []Bucket          `json:"buckets,omitempty"`
}

// Build buckets rows over p ending at end and derives the aggregate and
// health. The aggregate covers only in-window rows.
func Build(serviceID string, rows []types.Datum, p series.Profile, end time.Time) Report {
	end = end.UTC()
	buckets := series.Normalize(rows, p, end)
	agg := compute.Summarize(buckets)

	out := Report{
		ServiceID:          serviceID,
		Interval:           p.Name,
		BucketWidthMinutes: int(p.Width / time.Minute),
		WindowStart:        end.Add(-p.Window()),
		WindowEnd:          end,
		Aggregate:          agg,
		Health:             compute.ClassifyHealth(agg.ErrorRate, agg.Total),
		Buckets:            make([]Bucket, len(buckets)),
	}
	for i, b := range buckets {
		total := b.Total()
		rate := compute.ComputeRates(total, b.Warning, b.Error).NonSuccessRate
		out.Buckets[i] = Bucket{
			Datum:     b,
			Total:     total,
			ErrorRate: rate,
			Health:    compute.ClassifyTiered(rate, total),
		}
	}
	return out
}

// Summary returns r without its buckets.
func (r Report) Summary() Report {
	r.Buckets = nil
	return r
}

// BuildAll builds a report for every service in src, in src's order.
// Services that disappear between listing and reading are skipped.
func BuildAll(src Source, p series.Profile, end time.Time) []Report {
	ids := src.Services()
	out := make([]Report, 0, len(ids))
	for _, id := range ids {
		rows, err := src.Rows(id)
		if err != nil {
			slog.Debug("report: service vanished while building", "service", id, "err", err)
			continue
		}
		out = append(out, Build(id, rows, p, end))
	}
	return out
}

// Overview counts services per health status.
type Overview struct {
	Status       string `json:"status"`
	ServiceCount int    `json:"service_count"`
	HealthyCount int    `json:"healthy_count"`
	ErrorCount   int    `json:"error_count"`
	UnknownCount int    `json:"unknown_count"`
}

// Summarize folds reports into an Overview. The overall status is error if
// any service is in error, healthy if at least one is healthy, else unknown.
func Summarize(reports []Report) Overview {
	ov := Overview{ServiceCount: len(reports)}
	for _, r := range reports {
		switch r.Health.Status {
		case compute.StatusHealthy:
			ov.HealthyCount++
		case compute.StatusError:
			ov.ErrorCount++
		default:
			ov.UnknownCount++
		}
	}
	switch {
	case ov.ErrorCount > 0:
		ov.Status = compute.StatusError
	case ov.HealthyCount > 0:
		ov.Status = compute.StatusHealthy
	default:
		ov.Status = compute.StatusUnknown
	}
	return ov
}
