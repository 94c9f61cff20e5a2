package fuzzy

// Firing is the strength with which one rule fired for one evaluation.
type Firing struct {
	Rule       string  `json:"rule"`
	Consequent string  `json:"consequent"`
	Strength   float64 `json:"strength"`
}

// strengths returns the firing strength of every rule, in rule order.
func (m *Model) strengths(d Degrees) []float64 {
	out := make([]float64, len(m.rules))
	for i, r := range m.rules {
		out[i] = r.antecedent.eval(d) * r.weight
	}
	return out
}

// aggregate clips each fired rule's consequent at its strength and folds the
// results with pointwise max. Rules that did not fire contribute nothing.
// max is commutative and associative, so rule order never changes the result.
func (m *Model) aggregate(rules []Rule, strengths []float64) []float64 {
	agg := make([]float64, len(m.xs))
	for i, r := range rules {
		s := strengths[i]
		if s <= 0 {
			continue
		}
		shape := m.shapes[r.Then]
		for j := range agg {
			agg[j] = max(agg[j], min(s, shape[j]))
		}
	}
	return agg
}
