// Package telemetry defines the agent-to-server measurement protocol: a
// single unary gRPC method, efficiency.v1.MeasurementService/Report, whose
// messages are carried as JSON instead of protobuf.
//
// Importing the package registers the "json" codec with grpc. Clients select
// it per call through NewClient; servers pick it up from the request's
// content subtype.
package telemetry
