package analytics

import (
	"fmt"

	"github.com/samber/lo"

	"github.com/fuzzymachine/efficiency/pkg/types"
	"github.com/fuzzymachine/efficiency/server/internal/fuzzy"
)

// Difficulty is a qualitative implementation effort.
type Difficulty string

const (
	DifficultyEasy   Difficulty = "easy"
	DifficultyMedium Difficulty = "medium"
	DifficultyHard   Difficulty = "hard"
)

// Days is the implementation time attributed to a difficulty.
func (d Difficulty) Days() int {
	switch d {
	case DifficultyEasy:
		return 7
	case DifficultyMedium:
		return 21
	case DifficultyHard:
		return 45
	default:
		return 14
	}
}

// lever is one tunable measurement and the rule for improving it.
type lever struct {
	parameter   string
	threshold   float64
	shrink      float64
	floor       float64
	improvement float64
	cost        float64
	difficulty  Difficulty
	reason      string
	get         func(*types.Measurement) *float64
}

var levers = []lever{
	{
		parameter: fuzzy.VarMaintenanceInterval, threshold: 30, shrink: 0.7, floor: 15,
		improvement: 15, cost: 5000, difficulty: DifficultyMedium,
		reason: "Shorter maintenance intervals reduce unplanned downtime and wear.",
		get:    func(m *types.Measurement) *float64 { return &m.MaintenanceInterval },
	},
	{
		parameter: fuzzy.VarStandbyTime, threshold: 60, shrink: 0.6, floor: 30,
		improvement: 20, cost: 2000, difficulty: DifficultyEasy,
		reason: "Idle time can be cut by better shift planning and changeover scheduling.",
		get:    func(m *types.Measurement) *float64 { return &m.StandbyTime },
	},
	{
		parameter: fuzzy.VarEnergyConsumption, threshold: 80, shrink: 0.8, floor: 60,
		improvement: 25, cost: 15000, difficulty: DifficultyHard,
		reason: "Energy use above the plant norm points to drive or insulation upgrades.",
		get:    func(m *types.Measurement) *float64 { return &m.EnergyConsumption },
	},
	{
		parameter: fuzzy.VarErrorMargin, threshold: 5, shrink: 0.6, floor: 2,
		improvement: 30, cost: 10000, difficulty: DifficultyMedium,
		reason: "Calibration and inline quality checks lower the defect rate.",
		get:    func(m *types.Measurement) *float64 { return &m.ErrorMargin },
	},
}

// Suggestion is one recommended parameter change.
type Suggestion struct {
	Parameter      string     `json:"parameter"`
	CurrentValue   float64    `json:"current_value"`
	SuggestedValue float64    `json:"suggested_value"`
	ImprovementPct float64    `json:"potential_improvement_pct"`
	Reason         string     `json:"reason"`
	Difficulty     Difficulty `json:"difficulty"`
	EstimatedCost  float64    `json:"estimated_cost"`
}

// OptimizedState is the projected outcome of applying every suggestion.
type OptimizedState struct {
	PotentialScore     float64      `json:"potential_score"`
	PotentialStatus    types.Status `json:"potential_status"`
	ImprovementPct     float64      `json:"improvement_pct"`
	EstimatedSavings   float64      `json:"estimated_savings"`
	ImplementationDays int          `json:"implementation_days"`
}

// OptimizationResult is the outcome of Optimize. Withheld lists changes that
// pass their threshold but would lower the score under the current rule base;
// they are not part of the optimized state.
type OptimizationResult struct {
	MachineID    int64          `json:"machine_id"`
	MachineName  string         `json:"machine_name"`
	CurrentScore float64        `json:"current_score"`
	Suggestions  []Suggestion   `json:"suggestions"`
	Withheld     []Suggestion   `json:"withheld,omitempty"`
	Optimized    OptimizedState `json:"optimized"`
}

// Optimize suggests parameter changes for m and re-scores its measurement
// with them applied. Levers are tried in order and each one is kept only if
// the re-evaluated score does not drop, so the potential score is the
// engine's own score of the tuned record and never below the current one.
func (s *Service) Optimize(m types.Machine) (OptimizationResult, error) {
	current, err := s.Evaluate(m)
	if err != nil {
		return OptimizationResult{}, err
	}

	tuned := m.Measurement
	best := current
	suggestions := make([]Suggestion, 0, len(levers))
	var withheld []Suggestion
	for _, l := range levers {
		v := *l.get(&tuned)
		if v <= l.threshold {
			continue
		}
		sg := Suggestion{
			Parameter:      l.parameter,
			CurrentValue:   v,
			SuggestedValue: fuzzy.Round2(max(l.floor, v*l.shrink)),
			ImprovementPct: l.improvement,
			Reason:         l.reason,
			Difficulty:     l.difficulty,
			EstimatedCost:  l.cost,
		}

		trial := tuned
		*l.get(&trial) = sg.SuggestedValue
		ev, err := s.eval.Evaluate(trial)
		if err != nil {
			return OptimizationResult{}, fmt.Errorf("optimize machine %d: %w", m.ID, err)
		}
		if ev.Score < best.Score {
			withheld = append(withheld, sg)
			continue
		}
		tuned, best = trial, ev
		suggestions = append(suggestions, sg)
	}

	var improvement float64
	if current.Score > 0 {
		improvement = (best.Score - current.Score) / current.Score * 100
	}
	days := lo.SumBy(suggestions, func(sg Suggestion) int { return sg.Difficulty.Days() })

	return OptimizationResult{
		MachineID:    m.ID,
		MachineName:  m.Name,
		CurrentScore: current.Score,
		Suggestions:  suggestions,
		Withheld:     withheld,
		Optimized: OptimizedState{
			PotentialScore:     best.Score,
			PotentialStatus:    best.Status,
			ImprovementPct:     fuzzy.Round2(improvement),
			EstimatedSavings:   fuzzy.Round2(improvement / 100 * m.DailyProduction * 365 * s.cfg.SavingsUnitValue),
			ImplementationDays: days,
		},
	}, nil
}
