package shipper

import (
	"context"
	"net"
	"sync"
	"testing"
	"time"

	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/credentials/insecure"
	"google.golang.org/grpc/metadata"
	"google.golang.org/grpc/status"

	"github.com/fuzzymachine/efficiency/agent/internal/compute"
	"github.com/fuzzymachine/efficiency/agent/internal/config"
	"github.com/fuzzymachine/efficiency/pkg/telemetry"
	"github.com/fuzzymachine/efficiency/pkg/types"
)

// mockServer implements telemetry.MeasurementServiceServer for testing.
type mockServer struct {
	mu       sync.Mutex
	received []*telemetry.Report
	keys     []string
	rejectN  int   // answer the first N calls with an Unavailable error
	assignID int64 // machine id returned in every ack
}

func (m *mockServer) Report(ctx context.Context, rep *telemetry.Report) (*telemetry.Ack, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if rep.MachineName == "invalid" {
		return nil, status.Error(codes.InvalidArgument, "bad measurement")
	}
	if m.rejectN > 0 {
		m.rejectN--
		return nil, status.Error(codes.Unavailable, "try later")
	}

	if md, ok := metadata.FromIncomingContext(ctx); ok {
		m.keys = append(m.keys, md.Get("x-api-key")...)
	}
	m.received = append(m.received, rep)
	return &telemetry.Ack{OK: true, MachineID: m.assignID, Score: 80, Status: types.StatusGood}, nil
}

func (m *mockServer) reports() []*telemetry.Report {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]*telemetry.Report, len(m.received))
	copy(out, m.received)
	return out
}

// startTestServer starts an in-process gRPC server and returns a dial
// function that connects to it.
func startTestServer(t *testing.T, srv *mockServer) dialFunc {
	t.Helper()

	lis, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("listen: %v", err)
	}

	gs := grpc.NewServer()
	telemetry.Register(gs, srv)
	go gs.Serve(lis) //nolint:errcheck
	t.Cleanup(gs.Stop)

	addr := lis.Addr().String()
	return func(ctx context.Context, _ string) (*grpc.ClientConn, error) {
		return grpc.DialContext(ctx, addr, //nolint:staticcheck
			grpc.WithTransportCredentials(insecure.NewCredentials()))
	}
}

func makeResult(machine string, production float64) *compute.Result {
	return &compute.Result{
		Machine:    machine,
		ObservedAt: time.Date(2026, 3, 1, 8, 0, 0, 0, time.UTC),
		Window:     time.Hour,
		Measurement: types.Measurement{
			DailyProduction:     production,
			ErrorMargin:         2,
			MaintenanceInterval: 30,
			StandbyTime:         45,
			EnergyConsumption:   60,
		},
	}
}

func agentCfg() config.AgentConfig {
	return config.AgentConfig{
		ServerEndpoint: "unused-overridden-by-dialFn",
		BufferSize:     10,
	}
}

// waitFor polls until srv holds n reports or two seconds pass.
func waitFor(srv *mockServer, n int) []*telemetry.Report {
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if got := srv.reports(); len(got) >= n {
			return got
		}
		time.Sleep(20 * time.Millisecond)
	}
	return srv.reports()
}

func run(t *testing.T, s *Shipper) {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
	t.Cleanup(cancel)
	go s.Run(ctx)
}

func TestShipper_DeliversReport(t *testing.T) {
	srv := &mockServer{}
	s := New(agentCfg())
	s.dialFn = startTestServer(t, srv)
	run(t, s)

	s.Ship(makeResult("press-1", 640))

	got := waitFor(srv, 1)
	if len(got) != 1 {
		t.Fatalf("server received %d reports, want 1", len(got))
	}
	if got[0].MachineName != "press-1" {
		t.Errorf("MachineName = %q, want press-1", got[0].MachineName)
	}
	if got[0].Measurement.DailyProduction != 640 {
		t.Errorf("DailyProduction = %v, want 640", got[0].Measurement.DailyProduction)
	}
}

func TestShipper_MultipleReports(t *testing.T) {
	srv := &mockServer{}
	s := New(agentCfg())
	s.dialFn = startTestServer(t, srv)
	run(t, s)

	for i := 0; i < 5; i++ {
		s.Ship(makeResult("press-1", float64(i)))
	}
	if got := len(waitFor(srv, 5)); got != 5 {
		t.Errorf("server received %d reports, want 5", got)
	}
}

func TestShipper_RemembersAssignedID(t *testing.T) {
	srv := &mockServer{assignID: 42}
	s := New(agentCfg())
	s.dialFn = startTestServer(t, srv)
	run(t, s)

	s.Ship(makeResult("press-1", 1))
	waitFor(srv, 1)
	s.Ship(makeResult("press-1", 2))

	got := waitFor(srv, 2)
	if len(got) != 2 {
		t.Fatalf("server received %d reports, want 2", len(got))
	}
	if got[0].MachineID != 0 {
		t.Errorf("first report MachineID = %d, want 0", got[0].MachineID)
	}
	if got[1].MachineID != 42 {
		t.Errorf("second report MachineID = %d, want 42", got[1].MachineID)
	}
}

func TestShipper_AttachesAPIKey(t *testing.T) {
	t.Setenv("TEST_SERVER_KEY", "s3cret")

	srv := &mockServer{}
	cfg := agentCfg()
	cfg.ServerAuth = config.AuthConfig{Mode: "apikey", KeyEnv: "TEST_SERVER_KEY"}
	s := New(cfg)
	s.dialFn = startTestServer(t, srv)
	run(t, s)

	s.Ship(makeResult("press-1", 1))
	waitFor(srv, 1)

	srv.mu.Lock()
	defer srv.mu.Unlock()
	if len(srv.keys) != 1 || srv.keys[0] != "s3cret" {
		t.Errorf("keys = %v, want [s3cret]", srv.keys)
	}
}

func TestShipper_PermanentErrorDiscards(t *testing.T) {
	srv := &mockServer{}
	s := New(agentCfg())
	s.dialFn = startTestServer(t, srv)
	run(t, s)

	s.Ship(makeResult("invalid", 1))
	s.Ship(makeResult("press-1", 2))

	got := waitFor(srv, 1)
	if len(got) != 1 || got[0].MachineName != "press-1" {
		t.Fatalf("received %+v, want only press-1", got)
	}
	if s.Pending() != 0 {
		t.Errorf("Pending = %d, want 0", s.Pending())
	}
}

func TestShipper_TransientErrorRetries(t *testing.T) {
	srv := &mockServer{rejectN: 1}
	s := New(agentCfg())
	s.dialFn = startTestServer(t, srv)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	go s.Run(ctx)

	s.Ship(makeResult("press-1", 7))

	// The first attempt fails, the shipper reconnects after ~1s and resends.
	deadline := time.Now().Add(4 * time.Second)
	for time.Now().Before(deadline) && len(srv.reports()) == 0 {
		time.Sleep(50 * time.Millisecond)
	}
	got := srv.reports()
	if len(got) != 1 || got[0].Measurement.DailyProduction != 7 {
		t.Fatalf("received %+v, want the retried report", got)
	}
}

func TestShipper_BufferEvictsOldest(t *testing.T) {
	// BufferSize=3; Ship 5 items while the shipper is not running.
	s := New(config.AgentConfig{BufferSize: 3})

	for i := 0; i < 5; i++ {
		s.Ship(makeResult("press-1", float64(i)))
	}
	if s.Pending() != 3 {
		t.Fatalf("Pending = %d, want 3", s.Pending())
	}

	for i, want := range []float64{2, 3, 4} {
		rep := <-s.buf
		if rep.Measurement.DailyProduction != want {
			t.Errorf("buf[%d] = %.0f, want %.0f", i, rep.Measurement.DailyProduction, want)
		}
	}
}

func TestToReport(t *testing.T) {
	res := makeResult("lathe-2", 300)
	res.MachineID = 9
	res.ObservedAt = time.Date(2026, 3, 1, 9, 0, 0, 0, time.FixedZone("CET", 3600))

	rep := toReport(res)
	if rep.MachineID != 9 || rep.MachineName != "lathe-2" {
		t.Errorf("identity = %d/%q", rep.MachineID, rep.MachineName)
	}
	if rep.Measurement != res.Measurement {
		t.Errorf("Measurement = %+v, want %+v", rep.Measurement, res.Measurement)
	}
	if rep.ObservedAt.Location() != time.UTC || !rep.ObservedAt.Equal(res.ObservedAt) {
		t.Errorf("ObservedAt = %v, want %v in UTC", rep.ObservedAt, res.ObservedAt)
	}
}

func TestIsPermanentError(t *testing.T) {
	tests := []struct {
		code codes.Code
		want bool
	}{
		{codes.InvalidArgument, true},
		{codes.NotFound, true},
		{codes.Unauthenticated, true},
		{codes.PermissionDenied, true},
		{codes.Unavailable, false},
		{codes.DeadlineExceeded, false},
		{codes.Internal, false},
	}
	for _, tc := range tests {
		if got := isPermanentError(status.Error(tc.code, "x")); got != tc.want {
			t.Errorf("isPermanentError(%v) = %v, want %v", tc.code, got, tc.want)
		}
	}
}

func TestShipper_BackoffResets(t *testing.T) {
	b := newBackoff()
	if first := b.next(); first > 2*time.Second {
		t.Errorf("first backoff too large: %v", first)
	}
	for i := 0; i < 10; i++ {
		b.next()
	}
	b.reset()
	if after := b.next(); after > 2*time.Second {
		t.Errorf("backoff after reset too large: %v", after)
	}
}

func TestBackoff_NeverExceedsMax(t *testing.T) {
	b := newBackoff()
	for i := 0; i < 50; i++ {
		if d := b.next(); d > backoffMax*5/4 {
			t.Errorf("backoff[%d] = %v, exceeds max plus jitter", i, d)
		}
	}
}

func TestShipper_GracefulShutdown(t *testing.T) {
	srv := &mockServer{}
	s := New(agentCfg())
	s.dialFn = startTestServer(t, srv)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		s.Run(ctx)
		close(done)
	}()

	time.Sleep(50 * time.Millisecond)
	cancel()

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("Run() did not return after context cancellation")
	}
}
