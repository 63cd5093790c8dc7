package types

import (
	"encoding/json"
	"testing"
	"time"
)

func TestRawDatum_NullAndMissingCoerceToZero(t *testing.T) {
	body := `{"timestamp":"2026-01-01T00:10:00.123Z","warning_count":null,"error_count":5}`

	var r RawDatum
	if err := json.Unmarshal([]byte(body), &r); err != nil {
		t.Fatalf("Unmarshal: %v", err)
	}
	d, ok := r.Normalize()
	if !ok {
		t.Fatal("Normalize: want ok for a valid timestamp")
	}
	if d.OK != 0 || d.Warning != 0 || d.Error != 5 {
		t.Errorf("counts = (%d,%d,%d), want (0,0,5)", d.OK, d.Warning, d.Error)
	}
	want := time.Date(2026, 1, 1, 0, 10, 0, 123_000_000, time.UTC)
	if !d.Timestamp.Equal(want) {
		t.Errorf("Timestamp = %v, want %v", d.Timestamp, want)
	}
}

func TestCount_Lenient(t *testing.T) {
	tests := []struct {
		in   string
		want Count
	}{
		{`12`, 12},
		{`0`, 0},
		{`-4`, 0},
		{`3.9`, 3},
		{`"7"`, 7},
		{`"abc"`, 0},
		{`null`, 0},
		{`true`, 0},
		{`{"x":1}`, 0},
		{`[1,2]`, 0},
		{`"NaN"`, 0},
		{`1e300`, Count(1<<63 - 1)},
		{`1e19`, Count(1<<63 - 1)},
		{`1e400`, 0},
		{`"Infinity"`, 0},
		{`"Inf"`, 0},
		{`"-Inf"`, 0},
	}
	for _, tc := range tests {
		t.Run(tc.in, func(t *testing.T) {
			var c Count = 99
			if err := json.Unmarshal([]byte(tc.in), &c); err != nil {
				t.Fatalf("Unmarshal(%s) error = %v", tc.in, err)
			}
			if c != tc.want {
				t.Errorf("Unmarshal(%s) = %d, want %d", tc.in, c, tc.want)
			}
		})
	}
}

func TestTimestamp_Formats(t *testing.T) {
	want := time.Date(2026, 3, 4, 5, 6, 7, 8_000_000, time.UTC)
	tests := []struct {
		name string
		in   string
		zero bool
	}{
		{"rfc3339 utc", `"2026-03-04T05:06:07.008Z"`, false},
		{"rfc3339 offset", `"2026-03-04T07:06:07.008+02:00"`, false},
		{"unix millis", `1772600767008`, false},
		{"garbage string", `"yesterday"`, true},
		{"null", `null`, true},
		{"object", `{}`, true},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			var ts Timestamp
			if err := json.Unmarshal([]byte(tc.in), &ts); err != nil {
				t.Fatalf("Unmarshal error = %v", err)
			}
			if tc.zero {
				if !ts.IsZero() {
					t.Errorf("got %v, want zero time", ts.Time)
				}
				return
			}
			if !ts.Equal(want) {
				t.Errorf("got %v, want %v", ts.Time, want)
			}
		})
	}
}

func TestNormalizeRows_DropsRowsWithoutTimestamp(t *testing.T) {
	body := `[
		{"timestamp":"2026-01-01T00:00:00Z","ok_count":1},
		{"ok_count":10},
		{"timestamp":"not a time","error_count":3},
		{"timestamp":1767225600000,"warning_count":2}
	]`
	var rows []RawDatum
	if err := json.Unmarshal([]byte(body), &rows); err != nil {
		t.Fatalf("Unmarshal: %v", err)
	}

	got, dropped := NormalizeRows(rows)
	if dropped != 2 {
		t.Errorf("dropped = %d, want 2", dropped)
	}
	if len(got) != 2 {
		t.Fatalf("len = %d, want 2", len(got))
	}
	if got[0].OK != 1 || got[1].Warning != 2 {
		t.Errorf("rows = %+v", got)
	}
}

func TestNormalize_NegativeCountsBuiltInGo(t *testing.T) {
	r := RawDatum{
		Timestamp: Timestamp{time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)},
		OK:        -1,
		Warning:   2,
		Error:     -3,
	}
	d, _ := r.Normalize()
	if d.OK != 0 || d.Warning != 2 || d.Error != 0 {
		t.Errorf("counts = (%d,%d,%d), want (0,2,0)", d.OK, d.Warning, d.Error)
	}
	if d.Total() != 2 {
		t.Errorf("Total = %d, want 2", d.Total())
	}
}

func TestTimestamp_MarshalRoundTrip(t *testing.T) {
	in := RawDatum{Timestamp: Timestamp{time.Date(2026, 1, 1, 0, 0, 0, 5_000_000, time.UTC)}, OK: 4}
	b, err := json.Marshal(in)
	if err != nil {
		t.Fatalf("Marshal: %v", err)
	}
	var out RawDatum
	if err := json.Unmarshal(b, &out); err != nil {
		t.Fatalf("Unmarshal: %v", err)
	}
	if !out.Timestamp.Equal(in.Timestamp.Time) || out.OK != 4 {
		t.Errorf("round trip = %+v (json %s)", out, b)
	}
}

func TestAddCounts_Saturates(t *testing.T) {
	const max = int64(1<<63 - 1)
	tests := []struct {
		a, b, want int64
	}{
		{1, 2, 3},
		{0, 0, 0},
		{max, 0, max},
		{max, 1, max},
		{max, max, max},
		{max - 5, 10, max},
	}
	for _, tc := range tests {
		if got := AddCounts(tc.a, tc.b); got != tc.want {
			t.Errorf("AddCounts(%d, %d) = %d, want %d", tc.a, tc.b, got, tc.want)
		}
	}
}

func TestDatum_TotalSaturates(t *testing.T) {
	d := Datum{OK: 1<<63 - 1, Error: 5}
	if got := d.Total(); got != 1<<63-1 {
		t.Errorf("Total = %d, want MaxInt64", got)
	}
}
