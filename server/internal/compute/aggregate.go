package compute

import "github.com/statuspulse/statuspulse/pkg/types"

// Aggregate is a scalar rollup over a sequence of samples.
type Aggregate struct {
	Total        int64   `json:"total"`
	OKCount      int64   `json:"ok_count"`
	WarningCount int64   `json:"warning_count"`
	ErrorCount   int64   `json:"error_count"`
	ErrorRate    float64 `json:"error_rate"`   // warnings+errors as % of Total
	SuccessRate  float64 `json:"success_rate"` // 100 - ErrorRate, or 0 with no traffic
}

// Rates is the result of ComputeRates. Both values are percentages.
type Rates struct {
	SuccessRate    float64
	NonSuccessRate float64
}

// The Sum functions saturate at math.MaxInt64 rather than wrap.

// SumTotal returns the sum of OK+Warning+Error across data.
func SumTotal(data []types.Datum) int64 {
	var n int64
	for _, d := range data {
		n = types.AddCounts(n, d.Total())
	}
	return n
}

// SumOK returns the sum of OK across data.
func SumOK(data []types.Datum) int64 {
	var n int64
	for _, d := range data {
		n = types.AddCounts(n, d.OK)
	}
	return n
}

// SumWarnings returns the sum of Warning across data.
func SumWarnings(data []types.Datum) int64 {
	var n int64
	for _, d := range data {
		n = types.AddCounts(n, d.Warning)
	}
	return n
}

// SumErrors returns the sum of Error across data.
func SumErrors(data []types.Datum) int64 {
	var n int64
	for _, d := range data {
		n = types.AddCounts(n, d.Error)
	}
	return n
}

// ComputeRates derives success and non-success percentages.
// With total <= 0 both rates are 0 so callers can render "0%" directly.
func ComputeRates(total, warnings, errors int64) Rates {
	if total <= 0 {
		return Rates{}
	}
	nonSuccess := (float64(warnings) + float64(errors)) / float64(total) * 100
	if nonSuccess > 100 {
		nonSuccess = 100
	}
	return Rates{
		SuccessRate:    100 - nonSuccess,
		NonSuccessRate: nonSuccess,
	}
}

// Summarize rolls data up into an Aggregate.
func Summarize(data []types.Datum) Aggregate {
	total := SumTotal(data)
	warnings := SumWarnings(data)
	errs := SumErrors(data)
	r := ComputeRates(total, warnings, errs)
	return Aggregate{
		Total:        total,
		OKCount:      SumOK(data), // total-errs-warnings unless total saturated
		WarningCount: warnings,
		ErrorCount:   errs,
		ErrorRate:    r.NonSuccessRate,
		SuccessRate:  r.SuccessRate,
	}
}
