package compute

import (
	"time"

	"github.com/fuzzymachine/efficiency/agent/internal/scraper"
	"github.com/fuzzymachine/efficiency/pkg/types"
)

const (
	day            = 24 * time.Hour
	minutesPerDay  = 24 * 60
	secondsPerMin  = 60
	maxErrorMargin = 100
)

// Derive turns two successful samples of the same machine into a measurement.
// Counters are scaled from the elapsed window to a full day:
//
//	daily_production     = Δproduced × day/elapsed
//	error_margin         = Δrejected / Δproduced × 100
//	standby_time         = Δstandby_seconds / 60 × day/elapsed   (minutes/day)
//	energy_consumption   = Δenergy_kwh × day/elapsed
//	maintenance_interval = current gauge
//
// A counter that went backwards counts as zero. ok is false when elapsed is
// not positive.
func Derive(prev, cur *scraper.Sample, elapsed time.Duration) (m types.Measurement, ok bool) {
	if elapsed <= 0 {
		return types.Measurement{}, false
	}
	scale := float64(day) / float64(elapsed)

	produced := deltaOf(cur.Produced, prev.Produced)
	rejected := deltaOf(cur.Rejected, prev.Rejected)

	m.DailyProduction = produced * scale
	if produced > 0 {
		m.ErrorMargin = min(rejected/produced*100, maxErrorMargin)
	}
	m.StandbyTime = min(deltaOf(cur.StandbySeconds, prev.StandbySeconds)/secondsPerMin*scale, minutesPerDay)
	m.EnergyConsumption = deltaOf(cur.EnergyKWh, prev.EnergyKWh) * scale
	m.MaintenanceInterval = max(cur.MaintenanceInterval, 0)
	return m, true
}

// deltaOf returns the positive counter delta between current and previous.
// If current < previous (counter reset after restart), returns 0.
func deltaOf(current, previous float64) float64 {
	d := current - previous
	if d < 0 {
		return 0
	}
	return d
}
