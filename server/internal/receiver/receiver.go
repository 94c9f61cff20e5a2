package receiver

import (
	"context"
	"errors"
	"log/slog"
	"strings"

	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"

	"github.com/fuzzymachine/efficiency/pkg/fault"
	"github.com/fuzzymachine/efficiency/pkg/telemetry"
	"github.com/fuzzymachine/efficiency/pkg/types"
	"github.com/fuzzymachine/efficiency/server/internal/fuzzy"
	"github.com/fuzzymachine/efficiency/server/internal/store"
)

// Evaluator scores a measurement.
type Evaluator interface {
	Evaluate(types.Measurement) (fuzzy.Evaluation, error)
}

// Alerter is told about every fresh evaluation. *alerts.Engine satisfies it.
type Alerter interface {
	Evaluate(types.Machine, fuzzy.Evaluation)
}

// Receiver implements telemetry.MeasurementServiceServer.
type Receiver struct {
	store  store.Repository
	eval   Evaluator
	alerts Alerter
}

var _ telemetry.MeasurementServiceServer = (*Receiver)(nil)

// New creates a Receiver. alerts may be nil.
func New(st store.Repository, eval Evaluator, alerts Alerter) *Receiver {
	return &Receiver{store: st, eval: eval, alerts: alerts}
}

// Report is the unary RPC handler called by agents.
func (r *Receiver) Report(ctx context.Context, rep *telemetry.Report) (*telemetry.Ack, error) {
	name := strings.TrimSpace(rep.MachineName)
	if rep.MachineID == 0 && name == "" {
		return nil, status.Error(codes.InvalidArgument, "machine_id or machine_name is required")
	}
	if err := fuzzy.ValidateMeasurement(rep.Measurement); err != nil {
		return nil, toStatus(err)
	}

	m, err := r.upsert(ctx, rep.MachineID, name, rep.Measurement)
	if err != nil {
		return nil, toStatus(err)
	}

	ev, err := r.eval.Evaluate(m.Measurement)
	if err != nil {
		return nil, toStatus(err)
	}
	if r.alerts != nil {
		r.alerts.Evaluate(m, ev)
	}

	slog.Debug("receiver: measurement applied",
		"machine_id", m.ID,
		"machine", m.Name,
		"score", ev.Score,
		"status", ev.Status,
		"observed_at", rep.ObservedAt,
	)

	return &telemetry.Ack{
		OK:        true,
		MachineID: m.ID,
		Score:     ev.Score,
		Status:    ev.Status,
	}, nil
}

func (r *Receiver) upsert(ctx context.Context, id int64, name string, rec types.Measurement) (types.Machine, error) {
	var (
		m   types.Machine
		err error
	)
	if id != 0 {
		m, err = r.store.Get(ctx, id)
	} else {
		var created bool
		m, created, err = r.store.FindOrCreate(ctx, types.Machine{Name: name, Measurement: rec})
		if err == nil && created {
			slog.Info("receiver: registered machine", "machine", name, "machine_id", m.ID)
			return m, nil
		}
	}
	if err != nil {
		return types.Machine{}, err
	}
	if name != "" {
		m.Name = name
	}
	m.Measurement = rec
	return r.store.Update(ctx, m)
}

// toStatus maps a fault kind to a gRPC status.
func toStatus(err error) error {
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return status.FromContextError(err).Err()
	}
	msg := fault.MessageOf(err)
	switch fault.KindOf(err) {
	case fault.KindValidation:
		return status.Error(codes.InvalidArgument, msg)
	case fault.KindNotFound:
		return status.Error(codes.NotFound, msg)
	case fault.KindComputation:
		slog.Error("receiver: evaluation failed", "err", err)
		return status.Error(codes.Internal, msg)
	default:
		slog.Error("receiver: internal error", "err", err)
		return status.Error(codes.Internal, "internal error")
	}
}
