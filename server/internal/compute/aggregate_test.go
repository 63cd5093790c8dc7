package compute

import (
	"math"
	"testing"
	"time"

	"github.com/statuspulse/statuspulse/pkg/types"
)

// almostEqual returns true if a and b are within epsilon of each other.
func almostEqual(a, b, epsilon float64) bool {
	return math.Abs(a-b) < epsilon
}

var baseTime = time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)

func sample(ok, warn, errs int64) types.Datum {
	return types.Datum{Timestamp: baseTime, OK: ok, Warning: warn, Error: errs}
}

func TestSums(t *testing.T) {
	data := []types.Datum{
		sample(10, 1, 2),
		sample(5, 0, 1),
		sample(0, 4, 0),
	}
	if got := SumTotal(data); got != 23 {
		t.Errorf("SumTotal = %d, want 23", got)
	}
	if got := SumOK(data); got != 15 {
		t.Errorf("SumOK = %d, want 15", got)
	}
	if got := SumWarnings(data); got != 5 {
		t.Errorf("SumWarnings = %d, want 5", got)
	}
	if got := SumErrors(data); got != 3 {
		t.Errorf("SumErrors = %d, want 3", got)
	}
}

func TestSums_Empty(t *testing.T) {
	if SumTotal(nil) != 0 || SumWarnings(nil) != 0 || SumErrors(nil) != 0 {
		t.Error("sums over nil should all be 0")
	}
}

func TestComputeRates_ZeroTotal(t *testing.T) {
	for _, total := range []int64{0, -1} {
		r := ComputeRates(total, 0, 0)
		if r.SuccessRate != 0 || r.NonSuccessRate != 0 {
			t.Errorf("ComputeRates(%d,0,0) = %+v, want zeros", total, r)
		}
		if math.IsNaN(r.SuccessRate) || math.IsNaN(r.NonSuccessRate) {
			t.Errorf("ComputeRates(%d,0,0) produced NaN", total)
		}
	}
}

func TestComputeRates(t *testing.T) {
	tests := []struct {
		name                  string
		total, warn, errs     int64
		wantSuccess, wantFail float64
	}{
		{"all ok", 100, 0, 0, 100, 0},
		{"all errors", 50, 0, 50, 0, 100},
		{"mixed", 200, 10, 30, 80, 20},
		{"warnings only", 8, 2, 0, 75, 25},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			r := ComputeRates(tc.total, tc.warn, tc.errs)
			if !almostEqual(r.SuccessRate, tc.wantSuccess, 1e-9) {
				t.Errorf("SuccessRate = %.4f, want %.4f", r.SuccessRate, tc.wantSuccess)
			}
			if !almostEqual(r.NonSuccessRate, tc.wantFail, 1e-9) {
				t.Errorf("NonSuccessRate = %.4f, want %.4f", r.NonSuccessRate, tc.wantFail)
			}
		})
	}
}

func TestComputeRates_Complement(t *testing.T) {
	// success + non-success == 100 for every split of every total.
	for total := int64(1); total <= 60; total++ {
		for warn := int64(0); warn <= total; warn += 3 {
			for errs := int64(0); warn+errs <= total; errs += 2 {
				r := ComputeRates(total, warn, errs)
				if !almostEqual(r.SuccessRate+r.NonSuccessRate, 100, 1e-9) {
					t.Fatalf("ComputeRates(%d,%d,%d) sums to %.12f", total, warn, errs, r.SuccessRate+r.NonSuccessRate)
				}
			}
		}
	}
}

func TestSummarize(t *testing.T) {
	agg := Summarize([]types.Datum{sample(90, 6, 4)})

	if agg.Total != 100 || agg.OKCount != 90 || agg.WarningCount != 6 || agg.ErrorCount != 4 {
		t.Errorf("counts = %+v", agg)
	}
	if !almostEqual(agg.ErrorRate, 10, 1e-9) {
		t.Errorf("ErrorRate = %.4f, want 10", agg.ErrorRate)
	}
	if !almostEqual(agg.SuccessRate, 90, 1e-9) {
		t.Errorf("SuccessRate = %.4f, want 90", agg.SuccessRate)
	}
}

func TestSummarize_Empty(t *testing.T) {
	agg := Summarize(nil)
	if agg != (Aggregate{}) {
		t.Errorf("Summarize(nil) = %+v, want zero Aggregate", agg)
	}
}

func TestSummarize_HugeCountsSaturate(t *testing.T) {
	data := []types.Datum{
		sample(math.MaxInt64, 0, 0),
		sample(math.MaxInt64, 0, 0),
		sample(10, 0, 5),
	}
	a := Summarize(data)
	if a.Total != math.MaxInt64 || a.OKCount != math.MaxInt64 {
		t.Errorf("Total = %d, OKCount = %d, want MaxInt64", a.Total, a.OKCount)
	}
	if a.ErrorCount != 5 {
		t.Errorf("ErrorCount = %d, want 5", a.ErrorCount)
	}
	if a.ErrorRate < 0 || a.ErrorRate > 100 || a.SuccessRate < 0 || a.SuccessRate > 100 {
		t.Errorf("rates out of range: %+v", a)
	}
}

func TestComputeRates_NeverAbove100(t *testing.T) {
	r := ComputeRates(math.MaxInt64, math.MaxInt64, math.MaxInt64)
	if r.NonSuccessRate != 100 || r.SuccessRate != 0 {
		t.Errorf("ComputeRates(saturated) = %+v, want 100/0", r)
	}
}
