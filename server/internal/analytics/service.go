package analytics

import (
	"fmt"

	"github.com/fuzzymachine/efficiency/pkg/types"
	"github.com/fuzzymachine/efficiency/server/internal/fuzzy"
)

// Evaluator scores a single measurement. *fuzzy.Engine satisfies it.
type Evaluator interface {
	Evaluate(types.Measurement) (fuzzy.Evaluation, error)
}

// Config holds the fixed business constants used by the calculations.
type Config struct {
	// LaborHoursPerDay is the staffed hours per machine-day used by Simulate.
	LaborHoursPerDay float64 `yaml:"labor_hours_per_day"`

	// EnergyRate is the cost per kWh used by Recommend.
	EnergyRate float64 `yaml:"energy_rate"`

	// OperationalCostPerDay is the fixed daily running cost used by Recommend.
	OperationalCostPerDay float64 `yaml:"operational_cost_per_day"`

	// MaintenanceHourlyRate prices a maintenance plan.
	MaintenanceHourlyRate float64 `yaml:"maintenance_hourly_rate"`

	// SavingsUnitValue is the value of one unit of production, used to turn
	// an improvement percentage into yearly savings.
	SavingsUnitValue float64 `yaml:"savings_unit_value"`
}

// DefaultConfig returns the standard business constants.
func DefaultConfig() Config {
	return Config{
		LaborHoursPerDay:      8,
		EnergyRate:            5,
		OperationalCostPerDay: 1000,
		MaintenanceHourlyRate: 150,
		SavingsUnitValue:      100,
	}
}

// Service runs the analytics over an Evaluator.
type Service struct {
	eval Evaluator
	cfg  Config
}

// New returns a Service. Zero fields in cfg take their defaults.
func New(eval Evaluator, cfg Config) *Service {
	def := DefaultConfig()
	if cfg.LaborHoursPerDay == 0 {
		cfg.LaborHoursPerDay = def.LaborHoursPerDay
	}
	if cfg.EnergyRate == 0 {
		cfg.EnergyRate = def.EnergyRate
	}
	if cfg.OperationalCostPerDay == 0 {
		cfg.OperationalCostPerDay = def.OperationalCostPerDay
	}
	if cfg.MaintenanceHourlyRate == 0 {
		cfg.MaintenanceHourlyRate = def.MaintenanceHourlyRate
	}
	if cfg.SavingsUnitValue == 0 {
		cfg.SavingsUnitValue = def.SavingsUnitValue
	}
	return &Service{eval: eval, cfg: cfg}
}

// Config returns the effective configuration.
func (s *Service) Config() Config { return s.cfg }

// Evaluate scores a single machine.
func (s *Service) Evaluate(m types.Machine) (fuzzy.Evaluation, error) {
	ev, err := s.eval.Evaluate(m.Measurement)
	if err != nil {
		return fuzzy.Evaluation{}, fmt.Errorf("machine %d (%s): %w", m.ID, m.Name, err)
	}
	return ev, nil
}

// Scored is a machine together with its evaluation.
type Scored struct {
	types.Machine
	Score  float64      `json:"efficiency_score"`
	Status types.Status `json:"efficiency_status"`
}

// ScoreAll evaluates every machine, preserving order.
func (s *Service) ScoreAll(machines []types.Machine) ([]Scored, error) {
	out := make([]Scored, 0, len(machines))
	for _, m := range machines {
		ev, err := s.Evaluate(m)
		if err != nil {
			return nil, err
		}
		out = append(out, Scored{Machine: m, Score: ev.Score, Status: ev.Status})
	}
	return out, nil
}
