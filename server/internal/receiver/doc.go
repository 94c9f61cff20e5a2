// Package receiver implements telemetry.MeasurementServiceServer, the gRPC
// endpoint that accepts measurements from efficiency agents.
//
// Each Report is validated (codes.InvalidArgument on bad input), applied to
// the machine catalog, scored, and passed to the alert engine. A report with
// a zero machine id is matched by name and creates the machine when no match
// exists. Authentication is enforced upstream by the gRPC server interceptor
// (see package auth).
package receiver
