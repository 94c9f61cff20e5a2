package fuzzy

// centroid returns Σ xᵢ·μᵢ / Σ μᵢ. ok is false when μ is zero everywhere.
func centroid(xs, mu []float64) (score float64, ok bool) {
	var num, den float64
	for i, x := range xs {
		num += x * mu[i]
		den += mu[i]
	}
	if den == 0 {
		return 0, false
	}
	return num / den, true
}

// defuzzify reduces an aggregated output set to a crisp value inside the
// output domain, using the model fallback when nothing fired.
func (m *Model) defuzzify(agg []float64) (score float64, fallback bool) {
	score, ok := centroid(m.xs, agg)
	if !ok {
		return m.fallback, true
	}
	return clamp(score, m.output.Min, m.output.Max), false
}
