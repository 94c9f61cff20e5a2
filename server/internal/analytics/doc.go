// Package analytics layers deterministic business calculations on top of the
// fuzzy efficiency score: cost simulation, optimization suggestions,
// multi-factor comparison, target-based recommendation, fleet statistics,
// ranking helpers and maintenance scheduling.
//
// Every method is value-in/value-out. Machines are passed in by the caller;
// the package never reads from storage.
package analytics
