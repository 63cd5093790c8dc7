package receiver

import (
	"errors"
	"testing"
	"time"

	"github.com/statuspulse/statuspulse/pkg/types"
	"github.com/statuspulse/statuspulse/server/internal/compute"
	"github.com/statuspulse/statuspulse/server/internal/metrics"
	"github.com/statuspulse/statuspulse/server/internal/report"
	"github.com/statuspulse/statuspulse/server/internal/series"
	"github.com/statuspulse/statuspulse/server/internal/store"
)

// recorder is an Evaluator that keeps every report it sees.
type recorder struct{ reports []report.Report }

func (r *recorder) Evaluate(rep report.Report) { r.reports = append(r.reports, rep) }

func raw(ts time.Time, ok, warn, errs int64) types.RawDatum {
	return types.RawDatum{
		Timestamp: types.Timestamp{Time: ts},
		OK:        types.Count(ok),
		Warning:   types.Count(warn),
		Error:     types.Count(errs),
	}
}

func newReceiver() (*Receiver, *store.Store, *recorder) {
	st := store.New(8*24*time.Hour, 0)
	rec := &recorder{}
	r := New(st, rec, metrics.New(nil), series.MustProfile(series.Profile1Hour))
	return r, st, rec
}

func TestIngest_StoresAndEvaluates(t *testing.T) {
	r, st, rec := newReceiver()
	now := time.Now().UTC()

	resp, err := r.Ingest(types.IngestRequest{
		ServiceID: "checkout",
		Rows: []types.RawDatum{
			raw(now.Add(-time.Minute), 150, 0, 0),
			raw(now.Add(-2*time.Minute), 40, 5, 5),
			{},                                      // no timestamp: dropped
			raw(now.Add(-30*24*time.Hour), 1, 0, 0), // past retention: dropped
		},
	})
	if err != nil {
		t.Fatalf("Ingest: %v", err)
	}
	if resp.Accepted != 2 || resp.Dropped != 2 {
		t.Errorf("resp = %+v, want accepted 2 dropped 2", resp)
	}

	rows, err := st.Rows("checkout")
	if err != nil || len(rows) != 2 {
		t.Fatalf("store rows = %d, %v", len(rows), err)
	}

	if len(rec.reports) != 1 {
		t.Fatalf("Evaluate called %d times, want 1", len(rec.reports))
	}
	got := rec.reports[0]
	if got.ServiceID != "checkout" || got.Aggregate.Total != 200 {
		t.Errorf("report = %+v", got)
	}
	if got.Buckets != nil {
		t.Error("alerts received buckets; want summary only")
	}
	// 10 non-success of 200 = 5% → error under the 1% rule.
	if got.Health.Status != compute.StatusError {
		t.Errorf("status = %q, want error", got.Health.Status)
	}
}

func TestIngest_MissingServiceID(t *testing.T) {
	r, st, rec := newReceiver()
	for _, id := range []string{"", "   "} {
		_, err := r.Ingest(types.IngestRequest{ServiceID: id})
		if !errors.Is(err, ErrMissingServiceID) {
			t.Errorf("Ingest(%q) err = %v, want ErrMissingServiceID", id, err)
		}
	}
	if st.Count() != 0 || len(rec.reports) != 0 {
		t.Error("rejected batch reached the store or alert engine")
	}
}

func TestIngest_TrimsServiceID(t *testing.T) {
	r, st, _ := newReceiver()
	if _, err := r.Ingest(types.IngestRequest{ServiceID: "  api  "}); err != nil {
		t.Fatalf("Ingest: %v", err)
	}
	if _, err := st.Rows("api"); err != nil {
		t.Errorf("service not stored under trimmed ID: %v", err)
	}
}

func TestIngest_NilCollaborators(t *testing.T) {
	st := store.New(8*24*time.Hour, 0)
	r := New(st, nil, nil, series.MustProfile(series.Profile1Day))
	resp, err := r.Ingest(types.IngestRequest{
		ServiceID: "svc",
		Rows:      []types.RawDatum{raw(time.Now(), 1, 0, 0)},
	})
	if err != nil || resp.Accepted != 1 {
		t.Fatalf("Ingest = %+v, %v", resp, err)
	}
}

func TestIngest_RowsTrimmedByCapCountAsDropped(t *testing.T) {
	st := store.New(8*24*time.Hour, 2)
	r := New(st, nil, nil, series.MustProfile(series.Profile1Hour))
	now := time.Now().UTC()

	resp, err := r.Ingest(types.IngestRequest{
		ServiceID: "checkout",
		Rows: []types.RawDatum{
			raw(now.Add(-3*time.Minute), 1, 0, 0),
			raw(now.Add(-2*time.Minute), 1, 0, 0),
			raw(now.Add(-1*time.Minute), 1, 0, 0),
		},
	})
	if err != nil {
		t.Fatalf("Ingest: %v", err)
	}
	if resp.Accepted != 2 || resp.Dropped != 1 {
		t.Errorf("response = %+v, want accepted 2 dropped 1", resp)
	}
}
