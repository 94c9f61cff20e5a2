package shipper

import (
	"context"
	"fmt"
	"log/slog"
	"math/rand"
	"strings"
	"time"

	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/credentials/insecure"
	"google.golang.org/grpc/metadata"
	"google.golang.org/grpc/status"

	"github.com/fuzzymachine/efficiency/agent/internal/compute"
	"github.com/fuzzymachine/efficiency/agent/internal/config"
	"github.com/fuzzymachine/efficiency/pkg/telemetry"
)

const (
	backoffInitial    = 1 * time.Second
	backoffMax        = 60 * time.Second
	backoffMultiplier = 2.0
	sendTimeout       = 10 * time.Second
)

// Shipper buffers compute.Results and ships them to efficiency-server.
// Ship() is non-blocking; when the buffer is full the oldest report is evicted.
// Run() must be called in a goroutine to drain the buffer and handle reconnection.
type Shipper struct {
	cfg    config.AgentConfig
	buf    chan *telemetry.Report
	dialFn dialFunc

	// ids caches server-assigned machine ids by name. Only drain touches it.
	ids map[string]int64
}

// dialFunc opens a gRPC connection. Tests replace it to reach a local server.
type dialFunc func(ctx context.Context, endpoint string) (*grpc.ClientConn, error)

// New creates a Shipper using the given agent config.
func New(cfg config.AgentConfig) *Shipper {
	size := cfg.BufferSize
	if size <= 0 {
		size = config.DefaultBufferSize
	}
	return &Shipper{
		cfg:    cfg,
		buf:    make(chan *telemetry.Report, size),
		dialFn: defaultDial,
		ids:    make(map[string]int64),
	}
}

// Ship converts a compute.Result to a report and enqueues it.
// If the buffer is full the oldest entry is evicted to make room.
func (s *Shipper) Ship(res *compute.Result) {
	rep := toReport(res)
	for {
		select {
		case s.buf <- rep:
			return
		default:
		}
		select {
		case old := <-s.buf:
			slog.Warn("shipper: buffer full, evicted oldest report",
				"machine", old.MachineName, "buffer_cap", cap(s.buf))
		default:
		}
	}
}

// Pending returns the number of buffered reports.
func (s *Shipper) Pending() int {
	return len(s.buf)
}

// Run drains the buffer, sending reports to the server.
// It reconnects with exponential backoff when the connection is lost.
// Run blocks until ctx is cancelled.
func (s *Shipper) Run(ctx context.Context) {
	bo := newBackoff()

	for {
		if ctx.Err() != nil {
			return
		}

		conn, err := s.dialFn(ctx, s.cfg.ServerEndpoint)
		if err != nil {
			wait := bo.next()
			slog.Error("shipper: dial failed, will retry",
				"endpoint", s.cfg.ServerEndpoint,
				"err", err,
				"retry_in", wait)
			if !sleep(ctx, wait) {
				return
			}
			continue
		}

		slog.Info("shipper: connected", "endpoint", s.cfg.ServerEndpoint)
		bo.reset()

		err = s.drain(ctx, conn)
		conn.Close()

		if ctx.Err() != nil {
			return
		}

		wait := bo.next()
		slog.Warn("shipper: connection lost, will reconnect",
			"endpoint", s.cfg.ServerEndpoint,
			"err", err,
			"retry_in", wait)
		if !sleep(ctx, wait) {
			return
		}
	}
}

// drain reads from the buffer and sends reports until a send fails with a
// transient error or ctx is cancelled.
func (s *Shipper) drain(ctx context.Context, conn *grpc.ClientConn) error {
	client := telemetry.NewClient(conn)

	for {
		select {
		case <-ctx.Done():
			return nil

		case rep := <-s.buf:
			if rep.MachineID == 0 {
				rep.MachineID = s.ids[rep.MachineName]
			}

			sendCtx, cancel := context.WithTimeout(s.outgoing(ctx), sendTimeout)
			ack, err := client.Report(sendCtx, rep)
			cancel()

			if err != nil {
				if isPermanentError(err) {
					slog.Error("shipper: permanent send error, discarding report",
						"machine", rep.MachineName, "err", err)
					continue
				}
				// Requeue if there is room; otherwise newer data wins.
				select {
				case s.buf <- rep:
				default:
				}
				return fmt.Errorf("send: %w", err)
			}

			if !ack.OK {
				slog.Warn("shipper: server rejected report",
					"machine", rep.MachineName, "message", ack.Message)
				continue
			}
			if ack.MachineID > 0 {
				s.ids[rep.MachineName] = ack.MachineID
			}
			slog.Debug("shipper: report delivered",
				"machine", rep.MachineName,
				"machine_id", ack.MachineID,
				"score", ack.Score,
				"status", ack.Status)
		}
	}
}

// outgoing attaches the API key header when the server requires one.
func (s *Shipper) outgoing(ctx context.Context) context.Context {
	auth := s.cfg.ServerAuth
	if auth.Mode != "apikey" {
		return ctx
	}
	key := auth.Key()
	if key == "" {
		return ctx
	}
	return metadata.AppendToOutgoingContext(ctx, strings.ToLower(auth.EffectiveHeader()), key)
}

// isPermanentError reports whether err means the report itself will never be
// accepted, so retrying is pointless.
func isPermanentError(err error) bool {
	switch status.Code(err) {
	case codes.InvalidArgument, codes.NotFound, codes.Unauthenticated, codes.PermissionDenied:
		return true
	}
	return false
}

func defaultDial(ctx context.Context, endpoint string) (*grpc.ClientConn, error) {
	return grpc.DialContext(ctx, endpoint, //nolint:staticcheck
		grpc.WithTransportCredentials(insecure.NewCredentials()))
}

func sleep(ctx context.Context, d time.Duration) bool {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return false
	case <-t.C:
		return true
	}
}

// backoff implements truncated exponential backoff with jitter.
type backoff struct {
	current time.Duration
}

func newBackoff() *backoff {
	return &backoff{current: backoffInitial}
}

// next returns the current backoff duration and advances the internal state.
func (b *backoff) next() time.Duration {
	d := b.current
	jitter := time.Duration(float64(b.current) * 0.25 * (rand.Float64()*2 - 1)) //nolint:gosec // not crypto
	d += jitter
	if d < 0 {
		d = 0
	}

	b.current = time.Duration(float64(b.current) * backoffMultiplier)
	if b.current > backoffMax {
		b.current = backoffMax
	}
	return d
}

func (b *backoff) reset() {
	b.current = backoffInitial
}
