// Package shipper sends machine measurements to efficiency-server over the
// telemetry gRPC service.
//
// Shipper.Ship() is non-blocking: results are converted to telemetry.Report
// and placed in an in-memory channel (default capacity 1000). When the buffer
// is full the oldest entry is evicted so the latest measurements survive.
//
// Shipper.Run() drains the buffer in a loop, reconnecting with truncated
// exponential backoff (1s to 60s, ±25% jitter) on connection or send errors.
// Permanent gRPC errors (InvalidArgument, NotFound, Unauthenticated,
// PermissionDenied) discard the report instead of retrying it.
//
// Machine ids assigned by the server are remembered per machine name and
// attached to later reports.
//
// The dialFn field is injectable for testing.
package shipper
