package compute

import "testing"

func TestClassifyHealth(t *testing.T) {
	tests := []struct {
		name      string
		errorRate float64
		total     int64
		want      string
	}{
		{"at threshold is error", 1, 100, StatusError},
		{"just below threshold is healthy", 0.99, 100, StatusHealthy},
		{"high error rate, too few samples", 50, 99, StatusUnknown},
		{"total error, too few samples", 100, 5, StatusUnknown},
		{"no traffic", 0, 0, StatusUnknown},
		{"large clean service", 0, 1_000_000, StatusHealthy},
		{"large failing service", 37.5, 1_000_000, StatusError},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			got := ClassifyHealth(tc.errorRate, tc.total)
			if got.Status != tc.want {
				t.Errorf("ClassifyHealth(%.2f, %d) = %q, want %q", tc.errorRate, tc.total, got.Status, tc.want)
			}
			if got.ColorTag != ColorFor(tc.want) {
				t.Errorf("ColorTag = %q, want %q", got.ColorTag, ColorFor(tc.want))
			}
		})
	}
}

func TestClassifyTiered(t *testing.T) {
	tests := []struct {
		errorRate float64
		total     int64
		want      string
	}{
		{0, 0, StatusNoData},
		{50, 0, StatusNoData},
		{0, 1, StatusHealthy},
		{4.99, 10, StatusHealthy},
		{5, 10, StatusWarning},
		{14.99, 10, StatusWarning},
		{15, 10, StatusError},
		{100, 1, StatusError},
	}
	for _, tc := range tests {
		got := ClassifyTiered(tc.errorRate, tc.total)
		if got.Status != tc.want {
			t.Errorf("ClassifyTiered(%.2f, %d) = %q, want %q", tc.errorRate, tc.total, got.Status, tc.want)
		}
	}
}

func TestColorFor(t *testing.T) {
	tests := []struct {
		status, want string
	}{
		{StatusHealthy, ColorGreen},
		{StatusWarning, ColorYellow},
		{StatusError, ColorRed},
		{StatusUnknown, ColorGray},
		{StatusNoData, ColorGray},
		{"something-else", ColorGray},
	}
	for _, tc := range tests {
		if got := ColorFor(tc.status); got != tc.want {
			t.Errorf("ColorFor(%q) = %q, want %q", tc.status, got, tc.want)
		}
	}
}

func TestClassify_Pure(t *testing.T) {
	for i := 0; i < 3; i++ {
		if ClassifyHealth(2, 500) != ClassifyHealth(2, 500) {
			t.Fatal("ClassifyHealth not deterministic")
		}
		if ClassifyTiered(6, 20) != ClassifyTiered(6, 20) {
			t.Fatal("ClassifyTiered not deterministic")
		}
	}
}
