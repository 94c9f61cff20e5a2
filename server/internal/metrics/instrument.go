package metrics

import (
	"github.com/fuzzymachine/efficiency/pkg/types"
	"github.com/fuzzymachine/efficiency/server/internal/fuzzy"
)

// Evaluator scores a measurement.
type Evaluator interface {
	Evaluate(types.Measurement) (fuzzy.Evaluation, error)
}

// Instrumented wraps an Evaluator and records every call.
type Instrumented struct {
	next    Evaluator
	metrics *Metrics
}

// Instrument returns next wrapped with evaluation metrics.
func Instrument(next Evaluator, m *Metrics) *Instrumented {
	return &Instrumented{next: next, metrics: m}
}

func (i *Instrumented) Evaluate(rec types.Measurement) (fuzzy.Evaluation, error) {
	ev, err := i.next.Evaluate(rec)
	if err != nil {
		i.metrics.ObserveFailure()
		return ev, err
	}
	i.metrics.ObserveEvaluation(ev)
	return ev, nil
}
