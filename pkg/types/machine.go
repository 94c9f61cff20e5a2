package types

import "time"

// Measurement is the set of five crisp readings that describe how a machine
// performed. It is supplied per evaluation and never retained by the scorer.
type Measurement struct {
	// DailyProduction is the number of units produced per day.
	DailyProduction float64 `json:"daily_production" yaml:"daily_production" db:"daily_production"`

	// ErrorMargin is the share of defective output in percent (0–100).
	ErrorMargin float64 `json:"error_margin" yaml:"error_margin" db:"error_margin"`

	// MaintenanceInterval is the number of days between maintenance sessions.
	MaintenanceInterval float64 `json:"maintenance_interval" yaml:"maintenance_interval" db:"maintenance_interval"`

	// StandbyTime is the idle time in minutes per day.
	StandbyTime float64 `json:"standby_time" yaml:"standby_time" db:"standby_time"`

	// EnergyConsumption is the energy drawn per day in kWh.
	EnergyConsumption float64 `json:"energy_consumption" yaml:"energy_consumption" db:"energy_consumption"`
}

// EffectiveProduction is the daily output after defective units are removed.
func (m Measurement) EffectiveProduction() float64 {
	return m.DailyProduction * (1 - m.ErrorMargin/100)
}

// Machine is a catalog entry: a named machine together with its latest
// measurement.
type Machine struct {
	ID   int64  `json:"id"`
	Name string `json:"name"`
	Measurement

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}
