package analytics

import (
	"fmt"

	"github.com/samber/lo"

	"github.com/fuzzymachine/efficiency/pkg/types"
)

// Comparison factor names.
const (
	FactorEfficiency            = "efficiency"
	FactorProduction            = "production"
	FactorErrorRate             = "errorRate"
	FactorMaintenanceEfficiency = "maintenanceEfficiency"
	FactorEnergyEfficiency      = "energyEfficiency"
)

// knownFactors lists every factor Compare knows how to score.
var knownFactors = []string{
	FactorEfficiency,
	FactorProduction,
	FactorErrorRate,
	FactorMaintenanceEfficiency,
	FactorEnergyEfficiency,
}

// Factors returns every factor Compare knows how to score, in report order.
func Factors() []string {
	return append([]string(nil), knownFactors...)
}

// Factor scores at or above strengthMin are reported as strengths, below
// weaknessMax as weaknesses. Unknown factors score neutralScore.
const (
	strengthMin  = 75.0
	weaknessMax  = 50.0
	neutralScore = 50.0
)

// ComparisonItem is one machine's row in a comparison.
type ComparisonItem struct {
	MachineID    int64              `json:"machine_id"`
	MachineName  string             `json:"machine_name"`
	FactorScores map[string]float64 `json:"factor_scores"`
	OverallScore float64            `json:"overall_score"`
	Strengths    []string           `json:"strengths"`
	Weaknesses   []string           `json:"weaknesses"`
}

// ComparisonResult is the outcome of Compare.
type ComparisonResult struct {
	Factors       []string                  `json:"factors"`
	Items         []ComparisonItem          `json:"items"`
	BestOverall   *ComparisonItem           `json:"best_overall,omitempty"`
	BestPerFactor map[string]ComparisonItem `json:"best_per_factor"`
	Charts        []Chart                   `json:"charts"`
}

// Compare scores each machine on the requested factors. Duplicate factor names
// collapse to their first occurrence; an empty list selects every known
// factor. Ties for best overall and best per factor go to the machine listed
// first.
func (s *Service) Compare(machines []types.Machine, factors []string) (ComparisonResult, error) {
	factors = lo.Uniq(lo.Compact(factors))
	if len(factors) == 0 {
		factors = Factors()
	}

	items := make([]ComparisonItem, 0, len(machines))
	for _, m := range machines {
		ev, err := s.Evaluate(m)
		if err != nil {
			return ComparisonResult{}, err
		}

		item := ComparisonItem{
			MachineID:    m.ID,
			MachineName:  m.Name,
			FactorScores: make(map[string]float64, len(factors)),
			Strengths:    []string{},
			Weaknesses:   []string{},
		}
		var sum float64
		for _, f := range factors {
			v := factorScore(f, m, ev.Score)
			item.FactorScores[f] = v
			sum += v
			switch {
			case v >= strengthMin:
				item.Strengths = append(item.Strengths, fmt.Sprintf("%s (%.1f)", f, v))
			case v < weaknessMax:
				item.Weaknesses = append(item.Weaknesses, fmt.Sprintf("%s (%.1f)", f, v))
			}
		}
		item.OverallScore = sum / float64(len(factors))
		items = append(items, item)
	}

	res := ComparisonResult{
		Factors:       factors,
		Items:         items,
		BestPerFactor: make(map[string]ComparisonItem, len(factors)),
		Charts:        []Chart{radarChart(factors, items), barChart(items)},
	}
	if len(items) == 0 {
		return res, nil
	}

	best := lo.MaxBy(items, func(a, b ComparisonItem) bool { return a.OverallScore > b.OverallScore })
	res.BestOverall = &best
	for _, f := range factors {
		res.BestPerFactor[f] = lo.MaxBy(items, func(a, b ComparisonItem) bool {
			return a.FactorScores[f] > b.FactorScores[f]
		})
	}
	return res, nil
}

func factorScore(factor string, m types.Machine, score float64) float64 {
	switch factor {
	case FactorEfficiency:
		return score
	case FactorProduction:
		return m.DailyProduction
	case FactorErrorRate:
		return 100 - m.ErrorMargin
	case FactorMaintenanceEfficiency:
		return m.MaintenanceInterval
	case FactorEnergyEfficiency:
		return 100 - m.EnergyConsumption
	default:
		return neutralScore
	}
}
