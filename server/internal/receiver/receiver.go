package receiver

import (
	"errors"
	"log/slog"
	"strings"
	"time"

	"github.com/statuspulse/statuspulse/pkg/types"
	"github.com/statuspulse/statuspulse/server/internal/metrics"
	"github.com/statuspulse/statuspulse/server/internal/report"
	"github.com/statuspulse/statuspulse/server/internal/series"
	"github.com/statuspulse/statuspulse/server/internal/store"
)

// ErrMissingServiceID is returned for a batch with an empty service_id.
var ErrMissingServiceID = errors.New("receiver: service_id is required")

// Evaluator is the alert engine as seen by the receiver.
type Evaluator interface {
	Evaluate(r report.Report)
}

// Receiver validates incoming batches and stores them.
type Receiver struct {
	store   *store.Store
	alerts  Evaluator
	metrics *metrics.Metrics
	profile series.Profile
	now     func() time.Time // injectable for deterministic tests
}

// New creates a Receiver that writes accepted rows to st and evaluates alerts
// over profile p. alerts may be nil.
func New(st *store.Store, alerts Evaluator, m *metrics.Metrics, p series.Profile) *Receiver {
	return &Receiver{
		store:   st,
		alerts:  alerts,
		metrics: m,
		profile: p,
		now:     time.Now,
	}
}

// Ingest stores req's rows and reports how many were kept.
func (r *Receiver) Ingest(req types.IngestRequest) (types.IngestResponse, error) {
	id := strings.TrimSpace(req.ServiceID)
	if id == "" {
		return types.IngestResponse{}, ErrMissingServiceID
	}

	rows, malformed := types.NormalizeRows(req.Rows)
	kept := r.store.Append(id, rows)
	resp := types.IngestResponse{
		Accepted: kept,
		Dropped:  malformed + len(rows) - kept,
	}
	if r.metrics != nil {
		r.metrics.Rows(resp.Accepted, resp.Dropped)
	}

	slog.Debug("receiver: rows stored",
		"service", id,
		"accepted", resp.Accepted,
		"dropped", resp.Dropped,
	)

	if r.alerts != nil {
		r.evaluate(id)
	}
	return resp, nil
}

func (r *Receiver) evaluate(id string) {
	rows, err := r.store.Rows(id)
	if err != nil {
		// Evicted between Append and Rows; nothing to evaluate.
		return
	}
	rep := report.Build(id, rows, r.profile, r.now())
	r.alerts.Evaluate(rep.Summary())
	if r.metrics != nil {
		r.metrics.AlertEvaluated(id)
	}
}
