package telemetry

import (
	"context"
	"time"

	"google.golang.org/grpc"

	"github.com/fuzzymachine/efficiency/pkg/types"
)

// Method names.
const (
	ServiceName  = "efficiency.v1.MeasurementService"
	ReportMethod = "/" + ServiceName + "/Report"
)

// Report carries one measurement for one machine. A zero MachineID asks the
// server to resolve the machine by MachineName, creating it if needed.
type Report struct {
	MachineID   int64             `json:"machine_id,omitempty"`
	MachineName string            `json:"machine_name"`
	Measurement types.Measurement `json:"measurement"`
	ObservedAt  time.Time         `json:"observed_at"`
}

// Ack is the server's answer to a Report.
type Ack struct {
	OK        bool         `json:"ok"`
	MachineID int64        `json:"machine_id"`
	Score     float64      `json:"score"`
	Status    types.Status `json:"status"`
	Message   string       `json:"message,omitempty"`
}

// MeasurementServiceServer is implemented by the server-side receiver.
type MeasurementServiceServer interface {
	Report(context.Context, *Report) (*Ack, error)
}

// ServiceDesc describes the measurement service for grpc.Server.RegisterService.
var ServiceDesc = grpc.ServiceDesc{
	ServiceName: ServiceName,
	HandlerType: (*MeasurementServiceServer)(nil),
	Methods: []grpc.MethodDesc{
		{MethodName: "Report", Handler: reportHandler},
	},
	Streams:  []grpc.StreamDesc{},
	Metadata: "efficiency/v1/measurement",
}

// Register attaches srv to s.
func Register(s grpc.ServiceRegistrar, srv MeasurementServiceServer) {
	s.RegisterService(&ServiceDesc, srv)
}

func reportHandler(srv any, ctx context.Context, dec func(any) error, interceptor grpc.UnaryServerInterceptor) (any, error) {
	in := new(Report)
	if err := dec(in); err != nil {
		return nil, err
	}
	if interceptor == nil {
		return srv.(MeasurementServiceServer).Report(ctx, in)
	}
	info := &grpc.UnaryServerInfo{Server: srv, FullMethod: ReportMethod}
	handler := func(ctx context.Context, req any) (any, error) {
		return srv.(MeasurementServiceServer).Report(ctx, req.(*Report))
	}
	return interceptor(ctx, in, info, handler)
}

// Client calls the measurement service over a connection.
type Client struct {
	cc grpc.ClientConnInterface
}

// NewClient returns a Client using cc.
func NewClient(cc grpc.ClientConnInterface) *Client {
	return &Client{cc: cc}
}

// Report sends one measurement.
func (c *Client) Report(ctx context.Context, in *Report, opts ...grpc.CallOption) (*Ack, error) {
	out := new(Ack)
	opts = append([]grpc.CallOption{grpc.CallContentSubtype(CodecName)}, opts...)
	if err := c.cc.Invoke(ctx, ReportMethod, in, out, opts...); err != nil {
		return nil, err
	}
	return out, nil
}
