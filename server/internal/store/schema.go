package store

import (
	"time"

	"github.com/fuzzymachine/efficiency/pkg/types"
)

const machineColumns = `id, name, daily_production, error_margin, maintenance_interval,
	standby_time, energy_consumption, created_at, updated_at`

// machineSchema is the row layout of the machines table.
type machineSchema struct {
	ID                  int64     `db:"id"`
	Name                string    `db:"name"`
	DailyProduction     float64   `db:"daily_production"`
	ErrorMargin         float64   `db:"error_margin"`
	MaintenanceInterval float64   `db:"maintenance_interval"`
	StandbyTime         float64   `db:"standby_time"`
	EnergyConsumption   float64   `db:"energy_consumption"`
	CreatedAt           time.Time `db:"created_at"`
	UpdatedAt           time.Time `db:"updated_at"`
}

func toSchema(m types.Machine) machineSchema {
	return machineSchema{
		ID:                  m.ID,
		Name:                m.Name,
		DailyProduction:     m.DailyProduction,
		ErrorMargin:         m.ErrorMargin,
		MaintenanceInterval: m.MaintenanceInterval,
		StandbyTime:         m.StandbyTime,
		EnergyConsumption:   m.EnergyConsumption,
		CreatedAt:           m.CreatedAt,
		UpdatedAt:           m.UpdatedAt,
	}
}

func (s machineSchema) toDomain() types.Machine {
	return types.Machine{
		ID:   s.ID,
		Name: s.Name,
		Measurement: types.Measurement{
			DailyProduction:     s.DailyProduction,
			ErrorMargin:         s.ErrorMargin,
			MaintenanceInterval: s.MaintenanceInterval,
			StandbyTime:         s.StandbyTime,
			EnergyConsumption:   s.EnergyConsumption,
		},
		CreatedAt: s.CreatedAt.UTC(),
		UpdatedAt: s.UpdatedAt.UTC(),
	}
}

func toDomainAll(rows []machineSchema) []types.Machine {
	out := make([]types.Machine, 0, len(rows))
	for _, r := range rows {
		out = append(out, r.toDomain())
	}
	return out
}
