package fuzzy

import (
	"math"

	"github.com/fuzzymachine/efficiency/pkg/fault"
	"github.com/fuzzymachine/efficiency/pkg/types"
)

// Evaluation is the outcome of scoring one measurement.
type Evaluation struct {
	Score    float64      `json:"score"`
	Status   types.Status `json:"status"`
	Fallback bool         `json:"fallback"`
	Rules    []Firing     `json:"rules,omitempty"`
}

// Engine runs fuzzification, inference, defuzzification and classification
// over one Model. It holds no mutable state.
type Engine struct {
	model *Model
}

// NewEngine returns an Engine over m.
func NewEngine(m *Model) *Engine {
	return &Engine{model: m}
}

// Model returns the engine's rule base.
func (e *Engine) Model() *Model { return e.model }

// Evaluate scores rec. The score is rounded to two decimals and always lies
// in the output domain. Non-finite or negative readings are rejected with a
// validation fault.
func (e *Engine) Evaluate(rec types.Measurement) (Evaluation, error) {
	if err := ValidateMeasurement(rec); err != nil {
		return Evaluation{}, err
	}

	m := e.model
	strengths := m.strengths(m.Fuzzify(rec))
	score, fallback := m.defuzzify(m.aggregate(m.rules, strengths))
	score = Round2(score)

	firings := make([]Firing, 0, len(m.rules))
	for i, r := range m.rules {
		if strengths[i] > 0 {
			firings = append(firings, Firing{Rule: r.If, Consequent: r.Then, Strength: strengths[i]})
		}
	}

	return Evaluation{
		Score:    score,
		Status:   Classify(score),
		Fallback: fallback,
		Rules:    firings,
	}, nil
}

// ValidateMeasurement rejects readings the model cannot interpret.
func ValidateMeasurement(rec types.Measurement) error {
	for _, name := range []string{
		VarDailyProduction, VarErrorMargin, VarMaintenanceInterval, VarStandbyTime, VarEnergyConsumption,
	} {
		v := inputFields[name](rec)
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return fault.Validation("%s must be a finite number", name)
		}
		if v < 0 {
			return fault.Validation("%s must not be negative, got %g", name, v)
		}
	}
	if rec.ErrorMargin > 100 {
		return fault.Validation("%s must not exceed 100, got %g", VarErrorMargin, rec.ErrorMargin)
	}
	return nil
}

// Round2 rounds v to two decimal places.
func Round2(v float64) float64 {
	return math.Round(v*100) / 100
}
