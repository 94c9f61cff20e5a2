// Package compute derives the five crisp machine measurements from exporter
// counters.
//
// Derive is the pure delta-to-per-day conversion. Engine keeps one baseline
// sample per machine and calls Derive on each new sample; the first sample of
// a machine yields nothing, and a counter reset counts as a zero delta.
// Engine.Process takes the sample time explicitly so tests control the clock.
package compute
