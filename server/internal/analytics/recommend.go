package analytics

import (
	"math"
	"sort"

	"github.com/fuzzymachine/efficiency/pkg/types"
	"github.com/fuzzymachine/efficiency/server/internal/fuzzy"
)

// TargetParams describes a production target to match machines against.
type TargetParams struct {
	DailyProductionTarget  float64 `json:"daily_production_target" validate:"gt=0"`
	DeadlineDays           int     `json:"deadline_days" validate:"gt=0"`
	MaxBudget              float64 `json:"max_budget" validate:"gte=0"`
	PrioritizeQuality      bool    `json:"prioritize_quality"`
	PrioritizeSpeed        bool    `json:"prioritize_speed"`
	PrioritizeEnergySaving bool    `json:"prioritize_energy_saving"`
}

// Recommendation is one machine's fit for a TargetParams.
type Recommendation struct {
	MachineID       int64        `json:"machine_id"`
	MachineName     string       `json:"machine_name"`
	EfficiencyScore float64      `json:"efficiency_score"`
	Status          types.Status `json:"efficiency_status"`
	MatchScore      float64      `json:"match_score"`
	WithinBudget    bool         `json:"within_budget"`
	EstimatedCost   float64      `json:"estimated_cost"`
	CanMeetDeadline bool         `json:"can_meet_deadline"`
	EstimatedDays   int          `json:"estimated_days"`
	Strengths       []string     `json:"strengths"`
	Limitations     []string     `json:"limitations"`
}

// Match-score weights and the thresholds behind each priority.
const (
	matchDeadline   = 40.0
	matchBudget     = 30.0
	matchScoreShare = 0.3
	matchPriority   = 10.0

	qualityErrorMax = 5.0
	highErrorMin    = 10.0
	lowEnergyMax    = 70.0
)

// Recommend ranks machines by how well they fit p, best first. Ties keep
// input order. A machine without effective production can never meet the
// deadline or fit a budget; its day count and cost are reported as 0.
func (s *Service) Recommend(machines []types.Machine, p TargetParams) ([]Recommendation, error) {
	out := make([]Recommendation, 0, len(machines))
	for _, m := range machines {
		ev, err := s.Evaluate(m)
		if err != nil {
			return nil, err
		}
		out = append(out, s.recommendOne(m, ev, p))
	}
	sort.SliceStable(out, func(i, j int) bool {
		return out[i].MatchScore > out[j].MatchScore
	})
	return out, nil
}

func (s *Service) recommendOne(m types.Machine, ev fuzzy.Evaluation, p TargetParams) Recommendation {
	effective := m.EffectiveProduction()

	var days int
	var cost float64
	producible := effective > 0 && p.DailyProductionTarget > 0
	if producible {
		days = int(math.Ceil(p.DailyProductionTarget / effective))
		cost = (m.EnergyConsumption*s.cfg.EnergyRate + s.cfg.OperationalCostPerDay) * float64(days)
	}
	feasible := producible && days <= p.DeadlineDays
	withinBudget := producible && cost <= p.MaxBudget

	match := ev.Score * matchScoreShare
	if feasible {
		match += matchDeadline
	}
	if withinBudget {
		match += matchBudget
	}
	if p.PrioritizeQuality && m.ErrorMargin < qualityErrorMax {
		match += matchPriority
	}
	if p.PrioritizeSpeed && effective > p.DailyProductionTarget {
		match += matchPriority
	}
	if p.PrioritizeEnergySaving && m.EnergyConsumption < lowEnergyMax {
		match += matchPriority
	}

	rec := Recommendation{
		MachineID:       m.ID,
		MachineName:     m.Name,
		EfficiencyScore: ev.Score,
		Status:          ev.Status,
		MatchScore:      fuzzy.Round2(match),
		WithinBudget:    withinBudget,
		EstimatedCost:   fuzzy.Round2(cost),
		CanMeetDeadline: feasible,
		EstimatedDays:   days,
		Strengths:       []string{},
		Limitations:     []string{},
	}

	if effective > p.DailyProductionTarget {
		rec.Strengths = append(rec.Strengths, "Effective daily output exceeds the target")
	} else if effective < p.DailyProductionTarget {
		rec.Limitations = append(rec.Limitations, "Effective daily output is below the target")
	}
	if m.ErrorMargin < qualityErrorMax {
		rec.Strengths = append(rec.Strengths, "Low error margin")
	} else if m.ErrorMargin > highErrorMin {
		rec.Limitations = append(rec.Limitations, "High error margin")
	}
	if m.EnergyConsumption < lowEnergyMax {
		rec.Strengths = append(rec.Strengths, "Energy efficient")
	} else {
		rec.Limitations = append(rec.Limitations, "High energy consumption")
	}
	if feasible {
		rec.Strengths = append(rec.Strengths, "Meets the deadline")
	} else {
		rec.Limitations = append(rec.Limitations, "Cannot meet the deadline")
	}
	if withinBudget {
		rec.Strengths = append(rec.Strengths, "Within budget")
	} else {
		rec.Limitations = append(rec.Limitations, "Exceeds the budget")
	}
	return rec
}
