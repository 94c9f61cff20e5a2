package analytics

import (
	"sort"

	"github.com/samber/lo"

	"github.com/fuzzymachine/efficiency/pkg/types"
)

// DefaultTopLimit is the number of machines TopPerformers returns when the
// caller does not ask for a specific count.
const DefaultTopLimit = 5

// improvementBelow is the score under which a machine needs improvement.
const improvementBelow = 50.0

// TopPerformers returns up to limit machines ordered by score, best first.
// A non-positive limit selects DefaultTopLimit.
func (s *Service) TopPerformers(machines []types.Machine, limit int) ([]Scored, error) {
	if limit <= 0 {
		limit = DefaultTopLimit
	}
	scored, err := s.ScoreAll(machines)
	if err != nil {
		return nil, err
	}
	sort.SliceStable(scored, func(i, j int) bool { return scored[i].Score > scored[j].Score })
	if len(scored) > limit {
		scored = scored[:limit]
	}
	return scored, nil
}

// NeedingImprovement returns the machines scoring below 50, in input order.
func (s *Service) NeedingImprovement(machines []types.Machine) ([]Scored, error) {
	scored, err := s.ScoreAll(machines)
	if err != nil {
		return nil, err
	}
	return lo.Filter(scored, func(m Scored, _ int) bool { return m.Score < improvementBelow }), nil
}

// FilterByEfficiency returns the machines whose score lies in
// [minScore, maxScore]. A nil bound is open.
func (s *Service) FilterByEfficiency(machines []types.Machine, minScore, maxScore *float64) ([]Scored, error) {
	scored, err := s.ScoreAll(machines)
	if err != nil {
		return nil, err
	}
	return lo.Filter(scored, func(m Scored, _ int) bool {
		return (minScore == nil || m.Score >= *minScore) && (maxScore == nil || m.Score <= *maxScore)
	}), nil
}
