package condition

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/statuspulse/statuspulse/server/internal/report"
)

// Expr is a parsed rule expression of the form "field op value".
//
// Supported expressions:
//
//	error_rate > 5
//	success_rate < 99
//	total < 100
//	error_count >= 10
//	warning_count > 50
//	ok_count < 1
//	status == error
//	status != healthy
type Expr struct {
	field     string
	op        string
	threshold float64
	text      string
}

// Parse validates cond. Unknown fields, operators, or non-numeric
// thresholds on numeric fields are errors.
func Parse(cond string) (Expr, error) {
	parts := strings.Fields(cond)
	if len(parts) != 3 {
		return Expr{}, fmt.Errorf("condition: %q: want \"field op value\"", cond)
	}
	c := Expr{field: parts[0], op: parts[1], text: parts[2]}

	if c.field == "status" {
		if c.op != "==" && c.op != "!=" {
			return Expr{}, fmt.Errorf("condition: %q: status supports only == and !=", cond)
		}
		return c, nil
	}

	if _, ok := numericField(c.field, report.Report{}); !ok {
		return Expr{}, fmt.Errorf("condition: %q: unknown field %q", cond, c.field)
	}
	switch c.op {
	case ">", ">=", "<", "<=", "==", "!=":
	default:
		return Expr{}, fmt.Errorf("condition: %q: unknown operator %q", cond, c.op)
	}
	v, err := strconv.ParseFloat(c.text, 64)
	if err != nil {
		return Expr{}, fmt.Errorf("condition: %q: threshold: %w", cond, err)
	}
	c.threshold = v
	return c, nil
}

// Eval reports whether the expression holds for r, and the value it tested.
// Status comparisons report a value of 0.
func (c Expr) Eval(r report.Report) (bool, float64) {
	if c.field == "status" {
		eq := r.Health.Status == c.text
		if c.op == "!=" {
			return !eq, 0
		}
		return eq, 0
	}
	v, _ := numericField(c.field, r)
	return compareFloat(v, c.op, c.threshold), v
}

// numericField maps a field name to its value in the report's aggregate.
func numericField(field string, r report.Report) (float64, bool) {
	a := r.Aggregate
	switch field {
	case "error_rate":
		return a.ErrorRate, true
	case "success_rate":
		return a.SuccessRate, true
	case "total":
		return float64(a.Total), true
	case "error_count":
		return float64(a.ErrorCount), true
	case "warning_count":
		return float64(a.WarningCount), true
	case "ok_count":
		return float64(a.OKCount), true
	default:
		return 0, false
	}
}

// compareFloat applies a comparison operator to two float64 values.
func compareFloat(v float64, op string, threshold float64) bool {
	switch op {
	case ">":
		return v > threshold
	case ">=":
		return v >= threshold
	case "<":
		return v < threshold
	case "<=":
		return v <= threshold
	case "==":
		return v == threshold
	case "!=":
		return v != threshold
	default:
		return false
	}
}
