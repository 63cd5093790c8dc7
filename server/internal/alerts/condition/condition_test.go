package condition

import (
	"testing"

	"github.com/statuspulse/statuspulse/server/internal/compute"
	"github.com/statuspulse/statuspulse/server/internal/report"
)

func sampleReport() report.Report {
	return report.Report{
		ServiceID: "checkout",
		Aggregate: compute.Aggregate{
			Total:        1000,
			OKCount:      900,
			WarningCount: 40,
			ErrorCount:   60,
			ErrorRate:    10,
			SuccessRate:  90,
		},
		Health: compute.Health{Status: compute.StatusError},
	}
}

func TestExpr_Eval(t *testing.T) {
	r := sampleReport()
	tests := []struct {
		cond      string
		wantFires bool
		wantValue float64
	}{
		{"error_rate > 5", true, 10},
		{"error_rate > 10", false, 10},
		{"error_rate >= 10", true, 10},
		{"success_rate < 99", true, 90},
		{"total < 100", false, 1000},
		{"error_count == 60", true, 60},
		{"warning_count != 40", false, 40},
		{"ok_count <= 900", true, 900},
		{"status == error", true, 0},
		{"status != error", false, 0},
		{"status == healthy", false, 0},
	}
	for _, tc := range tests {
		c, err := Parse(tc.cond)
		if err != nil {
			t.Fatalf("Parse(%q): %v", tc.cond, err)
		}
		fires, v := c.Eval(r)
		if fires != tc.wantFires || v != tc.wantValue {
			t.Errorf("%q: got (%v, %.1f), want (%v, %.1f)", tc.cond, fires, v, tc.wantFires, tc.wantValue)
		}
	}
}

func TestParse_Invalid(t *testing.T) {
	for _, cond := range []string{
		"",
		"error_rate >",
		"error_rate > 5 extra",
		"latency_p99 > 5",
		"error_rate => 5",
		"error_rate > five",
		"status > error",
	} {
		if _, err := Parse(cond); err == nil {
			t.Errorf("Parse(%q): expected error", cond)
		}
	}
}
