// Package fuzzy turns five crisp machine measurements into an efficiency
// score using a Mamdani inference model.
//
// model.go holds the immutable Model: linguistic variables, their
// piecewise-linear terms and the rule list. NewModel validates a Definition
// once at startup and fails with a configuration fault when a rule references
// an unknown variable or term, or a term has non-monotonic breakpoints.
//
// rules.go parses rule antecedents of the form
//
//	daily_production IS high AND (error_margin IS low OR error_margin IS medium)
//
// AND binds tighter than OR; AND evaluates to min, OR to max.
//
// fuzzify.go computes the degree of every (variable, term) pair for a
// measurement. inference.go derives each rule's firing strength, clips its
// consequent and folds the clipped sets with pointwise max. defuzzify.go takes
// the centroid of the aggregate over a fixed number of samples and falls back
// to a single configured value when no rule fired. classify.go maps a score to
// a status through one band table:
//
//	very_good ≥90, good 75–89, medium 50–74, bad 25–49, very_bad <25
//
// Engine.Evaluate runs the whole pipeline. The Model is never mutated after
// construction, so one Engine is shared by every goroutine without locking.
package fuzzy
