package alerts

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/fuzzymachine/efficiency/pkg/fault"
	"github.com/fuzzymachine/efficiency/pkg/types"
	"github.com/fuzzymachine/efficiency/server/internal/fuzzy"
)

// Subject is what a rule is evaluated against: a machine and its latest score.
type Subject struct {
	Machine    types.Machine
	Evaluation fuzzy.Evaluation
}

// Condition is a parsed "field op value" expression.
//
// Supported expressions:
//
//	efficiency_score < 50
//	daily_production <= 200
//	error_margin > 10
//	maintenance_interval > 60
//	standby_time >= 120
//	energy_consumption > 100
//	status == very_bad
type Condition struct {
	Field     string
	Op        string
	Threshold float64
	Status    types.Status
}

var numericFields = map[string]func(Subject) float64{
	"efficiency_score":           func(s Subject) float64 { return s.Evaluation.Score },
	fuzzy.VarDailyProduction:     func(s Subject) float64 { return s.Machine.DailyProduction },
	fuzzy.VarErrorMargin:         func(s Subject) float64 { return s.Machine.ErrorMargin },
	fuzzy.VarMaintenanceInterval: func(s Subject) float64 { return s.Machine.MaintenanceInterval },
	fuzzy.VarStandbyTime:         func(s Subject) float64 { return s.Machine.StandbyTime },
	fuzzy.VarEnergyConsumption:   func(s Subject) float64 { return s.Machine.EnergyConsumption },
}

// ParseCondition parses a rule condition.
func ParseCondition(cond string) (Condition, error) {
	parts := strings.Fields(cond)
	if len(parts) != 3 {
		return Condition{}, fault.Configuration("alerts: condition %q: want \"field op value\"", cond)
	}
	field, op, rhs := parts[0], parts[1], parts[2]

	if field == "status" {
		if op != "==" && op != "!=" {
			return Condition{}, fault.Configuration("alerts: condition %q: status supports == and != only", cond)
		}
		st := types.Status(strings.ToLower(rhs))
		if !st.Valid() {
			return Condition{}, fault.Configuration("alerts: condition %q: unknown status %q", cond, rhs)
		}
		return Condition{Field: field, Op: op, Status: st}, nil
	}

	if _, ok := numericFields[field]; !ok {
		return Condition{}, fault.Configuration("alerts: condition %q: unknown field %q", cond, field)
	}
	switch op {
	case ">", ">=", "<", "<=", "==", "!=":
	default:
		return Condition{}, fault.Configuration("alerts: condition %q: unknown operator %q", cond, op)
	}
	threshold, err := strconv.ParseFloat(rhs, 64)
	if err != nil {
		return Condition{}, fault.Configuration("alerts: condition %q: threshold %q is not a number", cond, rhs)
	}
	return Condition{Field: field, Op: op, Threshold: threshold}, nil
}

// Eval reports whether the condition holds for s, and the value it tested.
// Status conditions report the score as their value.
func (c Condition) Eval(s Subject) (bool, float64) {
	if c.Field == "status" {
		match := s.Evaluation.Status == c.Status
		if c.Op == "!=" {
			match = !match
		}
		return match, s.Evaluation.Score
	}
	v := numericFields[c.Field](s)
	return compareFloat(v, c.Op, c.Threshold), v
}

func (c Condition) String() string {
	if c.Field == "status" {
		return fmt.Sprintf("status %s %s", c.Op, c.Status)
	}
	return fmt.Sprintf("%s %s %g", c.Field, c.Op, c.Threshold)
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
