package fuzzy

import "github.com/fuzzymachine/efficiency/pkg/types"

// Degrees holds the membership degree of every term of every input variable
// for one measurement: Degrees[variable][term].
type Degrees map[string]map[string]float64

// Fuzzify computes the degree of each input term for rec. Each crisp value is
// saturated into its variable's domain first, so readings beyond the declared
// range count as the nearest domain edge.
func (m *Model) Fuzzify(rec types.Measurement) Degrees {
	d := make(Degrees, len(m.inputs))
	for _, v := range m.inputs {
		x := clamp(inputFields[v.Name](rec), v.Min, v.Max)
		terms := make(map[string]float64, len(v.Terms))
		for _, t := range v.Terms {
			terms[t.Name] = t.Degree(x)
		}
		d[v.Name] = terms
	}
	return d
}

func clamp(v, lo, hi float64) float64 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
