// Package types defines shared Go types used by both the agent and server.
// These are the canonical in-memory representations of machine measurements
// and efficiency status, separate from the gRPC wire format in pkg/telemetry.
package types
