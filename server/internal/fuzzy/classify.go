package fuzzy

import "github.com/fuzzymachine/efficiency/pkg/types"

// Band is one row of the classification table: scores at or above Min (and
// below the previous band's Min) map to Status.
type Band struct {
	Status types.Status `json:"status"`
	Min    float64      `json:"min"`
}

// bands is the single score-to-status table, ordered from the highest band
// down. The last band starts at 0 so every score in [0, 100] is covered.
var bands = []Band{
	{Status: types.StatusVeryGood, Min: 90},
	{Status: types.StatusGood, Min: 75},
	{Status: types.StatusMedium, Min: 50},
	{Status: types.StatusBad, Min: 25},
	{Status: types.StatusVeryBad, Min: 0},
}

// Bands returns a copy of the classification table, highest band first.
func Bands() []Band {
	return append([]Band(nil), bands...)
}

// Classify maps score to its status. Scores below 0 are very_bad.
func Classify(score float64) types.Status {
	for _, b := range bands {
		if score >= b.Min {
			return b.Status
		}
	}
	return types.StatusVeryBad
}

// Range returns the half-open score interval [lo, hi) of status. The top band
// is closed at 100.
func Range(status types.Status) (lo, hi float64, ok bool) {
	hi = 100
	for _, b := range bands {
		if b.Status == status {
			return b.Min, hi, true
		}
		hi = b.Min
	}
	return 0, 0, false
}
