package shipper

import (
	"github.com/fuzzymachine/efficiency/agent/internal/compute"
	"github.com/fuzzymachine/efficiency/pkg/telemetry"
)

// toReport converts a compute.Result into the wire message sent to
// efficiency-server.
func toReport(r *compute.Result) *telemetry.Report {
	return &telemetry.Report{
		MachineID:   r.MachineID,
		MachineName: r.Machine,
		Measurement: r.Measurement,
		ObservedAt:  r.ObservedAt.UTC(),
	}
}
