package analytics

import (
	"github.com/samber/lo"

	"github.com/fuzzymachine/efficiency/pkg/types"
	"github.com/fuzzymachine/efficiency/server/internal/fuzzy"
)

// Point is one (x, y) pair in a scatter series.
type Point struct {
	Label string  `json:"label"`
	X     float64 `json:"x"`
	Y     float64 `json:"y"`
}

// Statistics summarises a fleet of machines.
type Statistics struct {
	TotalMachines              int                  `json:"total_machines"`
	AverageEfficiencyScore     float64              `json:"average_efficiency_score"`
	MostEfficient              *Scored              `json:"most_efficient,omitempty"`
	LeastEfficient             *Scored              `json:"least_efficient,omitempty"`
	Distribution               map[types.Status]int `json:"distribution"`
	AverageMaintenanceInterval float64              `json:"average_maintenance_interval"`
	AverageEnergyConsumption   float64              `json:"average_energy_consumption"`
	ProductionVsEfficiency     []Point              `json:"production_vs_efficiency"`
}

// Statistics summarises machines. An empty slice yields zero averages and a
// distribution with every status present at 0.
func (s *Service) Statistics(machines []types.Machine) (Statistics, error) {
	st := Statistics{
		Distribution:           make(map[types.Status]int, len(types.Statuses)),
		ProductionVsEfficiency: []Point{},
	}
	for _, status := range types.Statuses {
		st.Distribution[status] = 0
	}
	if len(machines) == 0 {
		return st, nil
	}

	scored, err := s.ScoreAll(machines)
	if err != nil {
		return Statistics{}, err
	}
	n := float64(len(scored))

	st.TotalMachines = len(scored)
	st.AverageEfficiencyScore = fuzzy.Round2(lo.SumBy(scored, func(m Scored) float64 { return m.Score }) / n)
	st.AverageMaintenanceInterval = fuzzy.Round2(lo.SumBy(scored, func(m Scored) float64 { return m.MaintenanceInterval }) / n)
	st.AverageEnergyConsumption = fuzzy.Round2(lo.SumBy(scored, func(m Scored) float64 { return m.EnergyConsumption }) / n)

	most := lo.MaxBy(scored, func(a, b Scored) bool { return a.Score > b.Score })
	least := lo.MinBy(scored, func(a, b Scored) bool { return a.Score < b.Score })
	st.MostEfficient, st.LeastEfficient = &most, &least

	for _, m := range scored {
		st.Distribution[m.Status]++
		st.ProductionVsEfficiency = append(st.ProductionVsEfficiency, Point{
			Label: m.Name,
			X:     m.DailyProduction,
			Y:     m.Score,
		})
	}
	return st, nil
}
