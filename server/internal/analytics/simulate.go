package analytics

import (
	"math"

	"github.com/fuzzymachine/efficiency/pkg/fault"
	"github.com/fuzzymachine/efficiency/pkg/types"
	"github.com/fuzzymachine/efficiency/server/internal/fuzzy"
)

// SimulationParams describes a production job to cost out.
type SimulationParams struct {
	TargetProduction          float64 `json:"target_production" validate:"gt=0"`
	DeadlineDays              float64 `json:"deadline_days" validate:"gt=0"`
	ElectricityCost           float64 `json:"electricity_cost" validate:"gte=0"`
	LaborCostPerHour          float64 `json:"labor_cost_per_hour" validate:"gte=0"`
	MaintenanceCostPerSession float64 `json:"maintenance_cost_per_session" validate:"gte=0"`
}

// CostBreakdown splits the simulated total by cost source.
type CostBreakdown struct {
	Energy      float64 `json:"energy"`
	Labor       float64 `json:"labor"`
	Maintenance float64 `json:"maintenance"`
}

// SimulationResult is the outcome of Simulate.
type SimulationResult struct {
	MachineID    int64            `json:"machine_id"`
	MachineName  string           `json:"machine_name"`
	Evaluation   fuzzy.Evaluation `json:"evaluation"`
	TotalCost    float64          `json:"total_cost"`
	RequiredDays float64          `json:"required_days"`
	DeadlineMet  bool             `json:"deadline_met"`
	Costs        CostBreakdown    `json:"costs"`
}

// Simulate costs out running m for p.DeadlineDays and reports whether the
// target production is reachable in time.
//
//	energy      = energy_consumption × electricity_cost × deadline_days
//	labor       = labor_hours_per_day × labor_cost_per_hour × deadline_days
//	maintenance = deadline_days / maintenance_interval × cost_per_session
//	required    = target / (daily_production × (1 − error_margin/100))
func (s *Service) Simulate(m types.Machine, p SimulationParams) (SimulationResult, error) {
	if p.TargetProduction <= 0 || p.DeadlineDays <= 0 {
		return SimulationResult{}, fault.Validation("target production and deadline days must be positive")
	}
	if p.ElectricityCost < 0 || p.LaborCostPerHour < 0 || p.MaintenanceCostPerSession < 0 {
		return SimulationResult{}, fault.Validation("costs must not be negative")
	}
	if m.MaintenanceInterval <= 0 {
		return SimulationResult{}, fault.Validation("machine %d has no maintenance interval", m.ID)
	}
	effective := m.EffectiveProduction()
	if effective <= 0 {
		return SimulationResult{}, fault.Validation("machine %d has no effective production", m.ID)
	}

	ev, err := s.Evaluate(m)
	if err != nil {
		return SimulationResult{}, err
	}

	costs := CostBreakdown{
		Energy:      m.EnergyConsumption * p.ElectricityCost * p.DeadlineDays,
		Labor:       s.cfg.LaborHoursPerDay * p.LaborCostPerHour * p.DeadlineDays,
		Maintenance: p.DeadlineDays / m.MaintenanceInterval * p.MaintenanceCostPerSession,
	}
	required := p.TargetProduction / effective

	return SimulationResult{
		MachineID:    m.ID,
		MachineName:  m.Name,
		Evaluation:   ev,
		TotalCost:    fuzzy.Round2(costs.Energy + costs.Labor + costs.Maintenance),
		RequiredDays: fuzzy.Round2(required),
		DeadlineMet:  required <= p.DeadlineDays && !math.IsInf(required, 0),
		Costs: CostBreakdown{
			Energy:      fuzzy.Round2(costs.Energy),
			Labor:       fuzzy.Round2(costs.Labor),
			Maintenance: fuzzy.Round2(costs.Maintenance),
		},
	}, nil
}
