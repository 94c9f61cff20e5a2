package scraper

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/fuzzymachine/efficiency/agent/internal/config"
)

// Sample is the raw output of one scrape of a machine exporter. Counter fields
// hold running totals; the compute engine derives per-day values from the
// delta between two samples.
type Sample struct {
	Machine   string
	MachineID int64
	ScrapedAt time.Time

	Produced       float64
	Rejected       float64
	StandbySeconds float64
	EnergyKWh      float64

	// MaintenanceInterval is a gauge in days, used as-is.
	MaintenanceInterval float64

	// Missing lists the configured series absent from the scrape. Absent
	// series read as zero.
	Missing []string

	// Err is non-nil when the scrape failed or the production counter was
	// absent. The compute engine skips such samples.
	Err error
}

type machineScraper struct {
	machine config.Machine
	client  *http.Client
	now     func() time.Time
}

// Scrape fetches the exporter and reads the configured series. Transport and
// parse failures are reported in Sample.Err rather than as an error.
func (s *machineScraper) Scrape(ctx context.Context) (*Sample, error) {
	now := time.Now
	if s.now != nil {
		now = s.now
	}
	res := &Sample{Machine: s.machine.Name, MachineID: s.machine.ID, ScrapedAt: now().UTC()}

	mfs, err := fetchMetrics(ctx, s.client, s.machine.Endpoint)
	if err != nil {
		res.Err = fmt.Errorf("scrape %q: %w", s.machine.Name, err)
		slog.Warn("scraper: fetch failed", "machine", s.machine.Name, "err", err)
		return res, nil
	}

	names := s.machine.Metrics
	read := func(name string) float64 {
		v, ok := sumFamily(mfs[name])
		if !ok {
			res.Missing = append(res.Missing, name)
		}
		return v
	}
	res.Produced = read(names.Produced)
	res.Rejected = read(names.Rejected)
	res.StandbySeconds = read(names.StandbySeconds)
	res.EnergyKWh = read(names.EnergyKWh)
	res.MaintenanceInterval = read(names.MaintenanceInterval)

	if _, ok := mfs[names.Produced]; !ok {
		res.Err = fmt.Errorf("scrape %q: series %s not exported", s.machine.Name, names.Produced)
	}
	if len(res.Missing) > 0 {
		slog.Debug("scraper: series missing", "machine", s.machine.Name, "missing", res.Missing)
	}
	return res, nil
}
