package types

import (
	"encoding/json"
	"math"
	"strconv"
	"strings"
	"time"
)

// Datum is one event-count sample. The three counts are mutually exclusive
// tallies of events in the interval the sample represents, and are never
// negative once a Datum has been produced by Normalize.
type Datum struct {
	Timestamp time.Time `json:"timestamp"`
	OK        int64     `json:"ok_count"`
	Warning   int64     `json:"warning_count"`
	Error     int64     `json:"error_count"`
}

// Total returns the request volume represented by d, saturating at
// math.MaxInt64.
func (d Datum) Total() int64 {
	return AddCounts(AddCounts(d.OK, d.Warning), d.Error)
}

// AddCounts adds two non-negative counts, saturating at math.MaxInt64 instead
// of wrapping.
func AddCounts(a, b int64) int64 {
	if a > math.MaxInt64-b {
		return math.MaxInt64
	}
	return a + b
}

// Count is a lenient JSON integer. Null, missing, non-numeric, non-finite and
// negative values decode to 0; fractional values are truncated and values past
// math.MaxInt64 clamp to it. Decoding never fails.
type Count int64

// UnmarshalJSON implements json.Unmarshaler.
func (c *Count) UnmarshalJSON(b []byte) error {
	*c = 0
	s := strings.TrimSpace(string(b))
	if s == "" || s == "null" {
		return nil
	}
	// Some exporters quote their numbers.
	if unq, err := strconv.Unquote(s); err == nil {
		s = strings.TrimSpace(unq)
	}
	f, err := strconv.ParseFloat(s, 64)
	if err != nil || math.IsNaN(f) || math.IsInf(f, 0) || f <= 0 {
		return nil
	}
	if f >= math.MaxInt64 {
		*c = math.MaxInt64
		return nil
	}
	*c = Count(f)
	return nil
}

// Timestamp is a lenient JSON instant: an RFC 3339 string or a number of
// milliseconds since the Unix epoch. Anything else decodes to the zero time.
type Timestamp struct {
	time.Time
}

// UnmarshalJSON implements json.Unmarshaler.
func (t *Timestamp) UnmarshalJSON(b []byte) error {
	t.Time = time.Time{}
	s := strings.TrimSpace(string(b))
	if s == "" || s == "null" {
		return nil
	}
	if unq, err := strconv.Unquote(s); err == nil {
		if parsed, err := time.Parse(time.RFC3339Nano, strings.TrimSpace(unq)); err == nil {
			t.Time = parsed
		}
		return nil
	}
	if ms, err := strconv.ParseInt(s, 10, 64); err == nil {
		t.Time = time.UnixMilli(ms)
	}
	return nil
}

// MarshalJSON implements json.Marshaler.
func (t Timestamp) MarshalJSON() ([]byte, error) {
	if t.IsZero() {
		return []byte("null"), nil
	}
	return json.Marshal(t.UTC().Format(time.RFC3339Nano))
}

// RawDatum is a metric row as it arrives from an external source.
type RawDatum struct {
	Timestamp Timestamp `json:"timestamp"`
	OK        Count     `json:"ok_count"`
	Warning   Count     `json:"warning_count"`
	Error     Count     `json:"error_count"`
}

// Normalize converts r into a Datum, truncating the timestamp to millisecond
// precision in UTC. It reports false when r has no usable timestamp.
func (r RawDatum) Normalize() (Datum, bool) {
	if r.Timestamp.IsZero() {
		return Datum{}, false
	}
	return Datum{
		Timestamp: time.UnixMilli(r.Timestamp.UnixMilli()).UTC(),
		OK:        nonNegative(int64(r.OK)),
		Warning:   nonNegative(int64(r.Warning)),
		Error:     nonNegative(int64(r.Error)),
	}, true
}

// NormalizeRows normalizes every row, returning the usable Datums and the
// number of rows dropped for lack of a timestamp.
func NormalizeRows(rows []RawDatum) ([]Datum, int) {
	out := make([]Datum, 0, len(rows))
	dropped := 0
	for _, r := range rows {
		d, ok := r.Normalize()
		if !ok {
			dropped++
			continue
		}
		out = append(out, d)
	}
	return out, dropped
}

// nonNegative guards against Counts built directly in Go rather than decoded.
func nonNegative(v int64) int64 {
	if v < 0 {
		return 0
	}
	return v
}

// IngestRequest is the body of POST /api/v1/ingest.
type IngestRequest struct {
	ServiceID string     `json:"service_id"`
	Rows      []RawDatum `json:"rows"`
}

// IngestResponse reports how many rows of an IngestRequest were stored.
type IngestResponse struct {
	Accepted int `json:"accepted"`
	Dropped  int `json:"dropped"`
}
