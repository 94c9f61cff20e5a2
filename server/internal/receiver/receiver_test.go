package receiver_test

import (
	"context"
	"net"
	"sync"
	"testing"

	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/credentials/insecure"
	"google.golang.org/grpc/metadata"
	"google.golang.org/grpc/status"

	"github.com/fuzzymachine/efficiency/pkg/telemetry"
	"github.com/fuzzymachine/efficiency/pkg/types"
	"github.com/fuzzymachine/efficiency/server/internal/auth"
	"github.com/fuzzymachine/efficiency/server/internal/fuzzy"
	"github.com/fuzzymachine/efficiency/server/internal/receiver"
	"github.com/fuzzymachine/efficiency/server/internal/store"
)

// recordingAlerter remembers every evaluation it is given.
type recordingAlerter struct {
	mu   sync.Mutex
	seen []types.Machine
}

func (a *recordingAlerter) Evaluate(m types.Machine, _ fuzzy.Evaluation) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.seen = append(a.seen, m)
}

func (a *recordingAlerter) count() int {
	a.mu.Lock()
	defer a.mu.Unlock()
	return len(a.seen)
}

// startServer starts a gRPC server with the given interceptor on a random
// TCP port and returns a connected client plus the backing store.
func startServer(t *testing.T, interceptor grpc.UnaryServerInterceptor) (*telemetry.Client, *store.Memory, *recordingAlerter) {
	t.Helper()

	model, err := fuzzy.NewModel(fuzzy.DefaultDefinition())
	if err != nil {
		t.Fatalf("model: %v", err)
	}
	st := store.NewMemory()
	al := &recordingAlerter{}
	rec := receiver.New(st, fuzzy.NewEngine(model), al)

	srv := grpc.NewServer(grpc.UnaryInterceptor(interceptor))
	telemetry.Register(srv, rec)

	lis, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("listen: %v", err)
	}

	go srv.Serve(lis) //nolint:errcheck

	t.Cleanup(func() {
		srv.Stop()
		lis.Close()
	})

	conn, err := grpc.Dial(lis.Addr().String(),
		grpc.WithTransportCredentials(insecure.NewCredentials()),
	) //nolint:staticcheck
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	t.Cleanup(func() { conn.Close() })

	return telemetry.NewClient(conn), st, al
}

// allowAll is a no-op interceptor that passes every call through.
func allowAll(ctx context.Context, req any, _ *grpc.UnaryServerInfo, handler grpc.UnaryHandler) (any, error) {
	return handler(ctx, req)
}

var reference = types.Measurement{
	DailyProduction:     500,
	ErrorMargin:         3,
	MaintenanceInterval: 20,
	StandbyTime:         40,
	EnergyConsumption:   60,
}

func TestReport_RegistersByName(t *testing.T) {
	client, st, al := startServer(t, allowAll)

	ack, err := client.Report(context.Background(), &telemetry.Report{MachineName: "press-1", Measurement: reference})
	if err != nil {
		t.Fatalf("Report: %v", err)
	}
	if !ack.OK || ack.MachineID != 1 {
		t.Errorf("ack: got %+v", ack)
	}
	if ack.Status != fuzzy.Classify(ack.Score) {
		t.Errorf("status %q does not match score %v", ack.Status, ack.Score)
	}

	m, err := st.Get(context.Background(), 1)
	if err != nil {
		t.Fatalf("store.Get: %v", err)
	}
	if m.Name != "press-1" || m.Measurement != reference {
		t.Errorf("stored machine: %+v", m)
	}
	if al.count() != 1 {
		t.Errorf("alerter calls: got %d, want 1", al.count())
	}
}

func TestReport_UpdatesExistingMachine(t *testing.T) {
	client, st, _ := startServer(t, allowAll)
	ctx := context.Background()

	if _, err := client.Report(ctx, &telemetry.Report{MachineName: "lathe", Measurement: reference}); err != nil {
		t.Fatalf("first Report: %v", err)
	}
	next := reference
	next.StandbyTime = 200
	ack, err := client.Report(ctx, &telemetry.Report{MachineName: "lathe", Measurement: next})
	if err != nil {
		t.Fatalf("second Report: %v", err)
	}

	if n, _ := st.Count(ctx); n != 1 {
		t.Errorf("store.Count: got %d, want 1 (updates, not appends)", n)
	}
	m, _ := st.Get(ctx, ack.MachineID)
	if m.StandbyTime != 200 {
		t.Errorf("StandbyTime: got %v, want 200", m.StandbyTime)
	}
}

func TestReport_ConcurrentFirstReportsRegisterOnce(t *testing.T) {
	client, st, al := startServer(t, allowAll)
	ctx := context.Background()

	const agents = 16
	var wg sync.WaitGroup
	acks := make([]*telemetry.Ack, agents)
	for i := range agents {
		wg.Add(1)
		go func() {
			defer wg.Done()
			ack, err := client.Report(ctx, &telemetry.Report{MachineName: "press-new", Measurement: reference})
			if err != nil {
				t.Errorf("Report %d: %v", i, err)
				return
			}
			acks[i] = ack
		}()
	}
	wg.Wait()

	if n, _ := st.Count(ctx); n != 1 {
		t.Fatalf("store.Count: got %d, want 1", n)
	}
	for i, ack := range acks {
		if ack != nil && ack.MachineID != 1 {
			t.Errorf("ack %d: machine id %d, want 1", i, ack.MachineID)
		}
	}
	if al.count() != agents {
		t.Errorf("alerter calls: got %d, want %d", al.count(), agents)
	}
}

func TestReport_ByID(t *testing.T) {
	client, st, _ := startServer(t, allowAll)
	ctx := context.Background()

	m, err := st.Create(ctx, types.Machine{Name: "mill", Measurement: reference})
	if err != nil {
		t.Fatal(err)
	}
	next := reference
	next.EnergyConsumption = 120
	if _, err := client.Report(ctx, &telemetry.Report{MachineID: m.ID, Measurement: next}); err != nil {
		t.Fatalf("Report: %v", err)
	}
	got, _ := st.Get(ctx, m.ID)
	if got.Name != "mill" || got.EnergyConsumption != 120 {
		t.Errorf("stored machine: %+v", got)
	}

	_, err = client.Report(ctx, &telemetry.Report{MachineID: 99, Measurement: reference})
	if code := status.Code(err); code != codes.NotFound {
		t.Errorf("unknown id code: got %v, want NotFound", code)
	}
}

func TestReport_InvalidArgument(t *testing.T) {
	client, _, al := startServer(t, allowAll)

	bad := reference
	bad.ErrorMargin = 120
	tests := []struct {
		name string
		rep  *telemetry.Report
	}{
		{"no id or name", &telemetry.Report{Measurement: reference}},
		{"blank name", &telemetry.Report{MachineName: "  ", Measurement: reference}},
		{"error margin above 100", &telemetry.Report{MachineName: "x", Measurement: bad}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := client.Report(context.Background(), tt.rep)
			if code := status.Code(err); code != codes.InvalidArgument {
				t.Errorf("code: got %v, want InvalidArgument", code)
			}
		})
	}
	if al.count() != 0 {
		t.Errorf("alerter called for rejected reports")
	}
}

func TestReport_WithAPIKeyInterceptor(t *testing.T) {
	i := auth.APIKeyInterceptor("apikey", "x-api-key", "testkey")
	client, st, _ := startServer(t, i)

	tests := []struct {
		name string
		key  string
		want codes.Code
	}{
		{"correct key", "testkey", codes.OK},
		{"wrong key", "wrongkey", codes.Unauthenticated},
		{"missing key", "", codes.Unauthenticated},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ctx := context.Background()
			if tt.key != "" {
				ctx = metadata.AppendToOutgoingContext(ctx, "x-api-key", tt.key)
			}
			_, err := client.Report(ctx, &telemetry.Report{MachineName: "src", Measurement: reference})
			if code := status.Code(err); code != tt.want {
				t.Errorf("code: got %v, want %v", code, tt.want)
			}
		})
	}
	if n, _ := st.Count(context.Background()); n != 1 {
		t.Errorf("store.Count: got %d, want 1", n)
	}
}
