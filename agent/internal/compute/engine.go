package compute

import (
	"log/slog"
	"sync"
	"time"

	"github.com/fuzzymachine/efficiency/agent/internal/scraper"
	"github.com/fuzzymachine/efficiency/pkg/types"
)

// Result is a derived measurement for one machine, ready to ship.
type Result struct {
	Machine     string
	MachineID   int64
	ObservedAt  time.Time
	Window      time.Duration
	Measurement types.Measurement
}

// Engine keeps the previous sample of every machine and derives measurements
// from the delta to the next one.
//
// All exported methods are safe for concurrent use.
type Engine struct {
	mu     sync.Mutex
	states map[string]*machineState
}

type machineState struct {
	prev     *scraper.Sample
	prevTime time.Time
}

// NewEngine returns a ready-to-use Engine.
func NewEngine() *Engine {
	return &Engine{states: make(map[string]*machineState)}
}

// Process ingests a sample taken at now and returns the derived measurement,
// or nil when none can be derived yet.
//
// The first successful sample of a machine only records the baseline. A
// failed sample is skipped and leaves the baseline untouched, so the next
// successful sample spans the whole gap.
func (e *Engine) Process(s *scraper.Sample, now time.Time) *Result {
	e.mu.Lock()
	defer e.mu.Unlock()

	if s.Err != nil {
		slog.Warn("compute: scrape failed, skipping", "machine", s.Machine, "err", s.Err)
		return nil
	}

	st, ok := e.states[s.Machine]
	if !ok {
		e.states[s.Machine] = &machineState{prev: s, prevTime: now}
		slog.Debug("compute: baseline recorded", "machine", s.Machine)
		return nil
	}

	elapsed := now.Sub(st.prevTime)
	m, ok := Derive(st.prev, s, elapsed)
	if !ok {
		slog.Warn("compute: non-positive scrape window, skipping", "machine", s.Machine, "elapsed", elapsed)
		return nil
	}
	st.prev, st.prevTime = s, now

	return &Result{
		Machine:     s.Machine,
		MachineID:   s.MachineID,
		ObservedAt:  now,
		Window:      elapsed,
		Measurement: m,
	}
}

// Forget drops the baseline of a machine, e.g. after it was removed from the
// configuration.
func (e *Engine) Forget(machine string) {
	e.mu.Lock()
	defer e.mu.Unlock()
	delete(e.states, machine)
}
