package api

import (
	"github.com/fuzzymachine/efficiency/pkg/types"
	"github.com/fuzzymachine/efficiency/server/internal/analytics"
	"github.com/fuzzymachine/efficiency/server/internal/fuzzy"
	"github.com/fuzzymachine/efficiency/server/internal/store"
)

// HealthResponse is the payload for GET /healthz.
type HealthResponse struct {
	Status   string `json:"status"`
	Machines int    `json:"machines"`
	Rules    int    `json:"rules"`
}

// MeasurementRequest carries the five readings of a machine.
type MeasurementRequest struct {
	DailyProduction     float64 `json:"daily_production" validate:"gte=0"`
	ErrorMargin         float64 `json:"error_margin" validate:"gte=0,lte=100"`
	MaintenanceInterval float64 `json:"maintenance_interval" validate:"gte=0"`
	StandbyTime         float64 `json:"standby_time" validate:"gte=0"`
	EnergyConsumption   float64 `json:"energy_consumption" validate:"gte=0"`
}

func (r MeasurementRequest) measurement() types.Measurement {
	return types.Measurement{
		DailyProduction:     r.DailyProduction,
		ErrorMargin:         r.ErrorMargin,
		MaintenanceInterval: r.MaintenanceInterval,
		StandbyTime:         r.StandbyTime,
		EnergyConsumption:   r.EnergyConsumption,
	}
}

// MachineRequest is the body of POST /add and PUT /{id}.
type MachineRequest struct {
	Name string `json:"name" validate:"required,max=255"`
	MeasurementRequest
}

func (r MachineRequest) machine() types.Machine {
	return types.Machine{Name: r.Name, Measurement: r.measurement()}
}

// PageResponse is the payload for GET /paged.
type PageResponse struct {
	Items      []analytics.Scored `json:"items"`
	Page       int                `json:"page"`
	Size       int                `json:"size"`
	Total      int                `json:"total"`
	TotalPages int                `json:"total_pages"`
}

func newPageResponse(p store.Page, items []analytics.Scored) PageResponse {
	return PageResponse{
		Items:      items,
		Page:       p.Page,
		Size:       p.Size,
		Total:      p.Total,
		TotalPages: p.TotalPages,
	}
}

// AnalysisResponse is the payload for GET /{id}/efficiency-analysis.
type AnalysisResponse struct {
	Machine     types.Machine                 `json:"machine"`
	Evaluation  fuzzy.Evaluation              `json:"evaluation"`
	Memberships map[string]map[string]float64 `json:"memberships"`
	Diagnostics []DiagnosticHint              `json:"diagnostics"`
}

// SimulationRequest is the body of POST /simulate.
type SimulationRequest struct {
	MachineID int64 `json:"machine_id" validate:"gt=0"`
	analytics.SimulationParams
}

// CompareRequest is the body of POST /compare.
type CompareRequest struct {
	MachineIDs []int64  `json:"machine_ids" validate:"required,min=1,dive,gt=0"`
	Factors    []string `json:"factors"`
}
