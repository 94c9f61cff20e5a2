package types

// Status is the categorical efficiency label derived from a score.
type Status string

// Efficiency statuses, best first.
const (
	StatusVeryGood Status = "very_good"
	StatusGood     Status = "good"
	StatusMedium   Status = "medium"
	StatusBad      Status = "bad"
	StatusVeryBad  Status = "very_bad"
)

// Statuses lists every status from best to worst.
var Statuses = []Status{StatusVeryGood, StatusGood, StatusMedium, StatusBad, StatusVeryBad}

// Valid reports whether s is one of the known statuses.
func (s Status) Valid() bool {
	for _, v := range Statuses {
		if s == v {
			return true
		}
	}
	return false
}
