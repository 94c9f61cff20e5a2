package analytics

import (
	"encoding/json"
	"strings"
	"time"

	"github.com/samber/lo"

	"github.com/fuzzymachine/efficiency/pkg/fault"
	"github.com/fuzzymachine/efficiency/pkg/types"
)

// Frequency is the recurrence step of a maintenance plan.
type Frequency string

const (
	Daily     Frequency = "daily"
	Weekly    Frequency = "weekly"
	Biweekly  Frequency = "biweekly"
	Monthly   Frequency = "monthly"
	Quarterly Frequency = "quarterly"
	Yearly    Frequency = "yearly"
)

// StatusScheduled is the status of every generated maintenance entry.
const StatusScheduled = "scheduled"

// MaxPlanMonths bounds the horizon of a single plan.
const MaxPlanMonths = 120

// Day is a calendar date serialised as YYYY-MM-DD.
type Day struct {
	time.Time
}

// NewDay truncates t to its calendar date in UTC.
func NewDay(year int, month time.Month, day int) Day {
	return Day{time.Date(year, month, day, 0, 0, 0, 0, time.UTC)}
}

func (d Day) String() string { return d.Format(time.DateOnly) }

// MarshalJSON implements json.Marshaler.
func (d Day) MarshalJSON() ([]byte, error) {
	return json.Marshal(d.String())
}

// UnmarshalJSON implements json.Unmarshaler.
func (d *Day) UnmarshalJSON(b []byte) error {
	var s string
	if err := json.Unmarshal(b, &s); err != nil {
		return err
	}
	t, err := time.Parse(time.DateOnly, s)
	if err != nil {
		return err
	}
	d.Time = t
	return nil
}

// MaintenanceTask is one job performed at every scheduled session.
type MaintenanceTask struct {
	Name              string   `json:"name" validate:"required"`
	Description       string   `json:"description"`
	EstimatedHours    int      `json:"estimated_hours" validate:"gte=0"`
	Priority          string   `json:"priority"`
	RequiredResources []string `json:"required_resources"`
}

// MaintenancePlanRequest describes the plan to generate.
type MaintenancePlanRequest struct {
	StartDate       Day               `json:"start_date"`
	DurationMonths  int               `json:"duration_months" validate:"gt=0,lte=120"`
	Frequency       Frequency         `json:"frequency" validate:"required"`
	IncludeWeekends bool              `json:"include_weekends"`
	Tasks           []MaintenanceTask `json:"tasks" validate:"dive"`
}

// ScheduledMaintenance is one generated session.
type ScheduledMaintenance struct {
	Date          Day               `json:"date"`
	Tasks         []MaintenanceTask `json:"tasks"`
	TotalDuration int               `json:"total_duration"`
	Status        string            `json:"status"`
}

// MaintenancePlan is the outcome of Schedule.
type MaintenancePlan struct {
	MachineID           int64                  `json:"machine_id"`
	MachineName         string                 `json:"machine_name"`
	Entries             []ScheduledMaintenance `json:"scheduled_maintenances"`
	TotalHours          int                    `json:"total_maintenance_hours"`
	EstimatedCost       float64                `json:"estimated_cost"`
	NextMaintenanceDate *Day                   `json:"next_maintenance_date,omitempty"`
}

// ParseFrequency accepts a frequency name in any case.
func ParseFrequency(s string) (Frequency, error) {
	f := Frequency(strings.ToLower(strings.TrimSpace(s)))
	switch f {
	case Daily, Weekly, Biweekly, Monthly, Quarterly, Yearly:
		return f, nil
	}
	return "", fault.Validation("unknown maintenance frequency %q", s)
}

// Schedule generates a maintenance plan for m from req.StartDate (inclusive)
// to StartDate + DurationMonths (exclusive). When weekends are excluded a
// Saturday or Sunday is skipped one day at a time without creating an entry.
func (s *Service) Schedule(m types.Machine, req MaintenancePlanRequest) (MaintenancePlan, error) {
	if req.StartDate.IsZero() {
		return MaintenancePlan{}, fault.Validation("start date is required")
	}
	if req.DurationMonths <= 0 || req.DurationMonths > MaxPlanMonths {
		return MaintenancePlan{}, fault.Validation("duration must be between 1 and %d months", MaxPlanMonths)
	}
	freq, err := ParseFrequency(string(req.Frequency))
	if err != nil {
		return MaintenancePlan{}, err
	}
	for _, t := range req.Tasks {
		if t.EstimatedHours < 0 {
			return MaintenancePlan{}, fault.Validation("task %q has negative estimated hours", t.Name)
		}
	}

	start := req.StartDate.Time
	start = time.Date(start.Year(), start.Month(), start.Day(), 0, 0, 0, 0, time.UTC)
	end := addMonths(start, req.DurationMonths)
	sessionHours := lo.SumBy(req.Tasks, func(t MaintenanceTask) int { return t.EstimatedHours })

	plan := MaintenancePlan{
		MachineID:   m.ID,
		MachineName: m.Name,
		Entries:     []ScheduledMaintenance{},
	}
	for cur := start; cur.Before(end); {
		if !req.IncludeWeekends && isWeekend(cur) {
			cur = cur.AddDate(0, 0, 1)
			continue
		}
		plan.Entries = append(plan.Entries, ScheduledMaintenance{
			Date:          Day{cur},
			Tasks:         append([]MaintenanceTask{}, req.Tasks...),
			TotalDuration: sessionHours,
			Status:        StatusScheduled,
		})
		cur = step(cur, freq)
	}

	plan.TotalHours = sessionHours * len(plan.Entries)
	plan.EstimatedCost = float64(plan.TotalHours) * s.cfg.MaintenanceHourlyRate
	if len(plan.Entries) > 0 {
		next := plan.Entries[0].Date
		plan.NextMaintenanceDate = &next
	}
	return plan, nil
}

func step(t time.Time, f Frequency) time.Time {
	switch f {
	case Daily:
		return t.AddDate(0, 0, 1)
	case Weekly:
		return t.AddDate(0, 0, 7)
	case Biweekly:
		return t.AddDate(0, 0, 14)
	case Monthly:
		return addMonths(t, 1)
	case Quarterly:
		return addMonths(t, 3)
	default:
		return addMonths(t, 12)
	}
}

// addMonths adds n calendar months, clamping the day to the last day of the
// resulting month (Jan 31 + 1 month = Feb 28/29).
func addMonths(t time.Time, n int) time.Time {
	y, m, d := t.Date()
	first := time.Date(y, m+time.Month(n), 1, 0, 0, 0, 0, t.Location())
	if last := first.AddDate(0, 1, -1).Day(); d > last {
		d = last
	}
	return time.Date(first.Year(), first.Month(), d, 0, 0, 0, 0, t.Location())
}

func isWeekend(t time.Time) bool {
	wd := t.Weekday()
	return wd == time.Saturday || wd == time.Sunday
}
