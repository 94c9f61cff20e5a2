package analytics_test

import (
	"sort"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fuzzymachine/efficiency/pkg/types"
	"github.com/fuzzymachine/efficiency/server/internal/analytics"
)

func TestRecommend(t *testing.T) {
	svc := analytics.New(constScore(50), analytics.Config{})
	x := machine(1, "X", 100, 0, 10, 0, 50)
	y := machine(2, "Y", 50, 0, 10, 0, 90)
	z := machine(3, "Z", 0, 0, 10, 0, 10)

	recs, err := svc.Recommend([]types.Machine{z, y, x}, analytics.TargetParams{
		DailyProductionTarget: 500,
		DeadlineDays:          10,
		MaxBudget:             10000,
	})
	require.NoError(t, err)
	require.Len(t, recs, 3)

	assert.Equal(t, []int64{1, 2, 3}, []int64{recs[0].MachineID, recs[1].MachineID, recs[2].MachineID})

	rx := recs[0]
	assert.Equal(t, 5, rx.EstimatedDays)
	assert.Equal(t, 6250.0, rx.EstimatedCost)
	assert.True(t, rx.CanMeetDeadline)
	assert.True(t, rx.WithinBudget)
	assert.Equal(t, 85.0, rx.MatchScore)
	assert.Contains(t, rx.Strengths, "Low error margin")
	assert.Contains(t, rx.Strengths, "Energy efficient")

	ry := recs[1]
	assert.Equal(t, 10, ry.EstimatedDays)
	assert.Equal(t, 14500.0, ry.EstimatedCost)
	assert.True(t, ry.CanMeetDeadline)
	assert.False(t, ry.WithinBudget)
	assert.Equal(t, 55.0, ry.MatchScore)
	assert.Contains(t, ry.Limitations, "Exceeds the budget")
	assert.Contains(t, ry.Limitations, "High energy consumption")

	rz := recs[2]
	assert.False(t, rz.CanMeetDeadline)
	assert.False(t, rz.WithinBudget)
	assert.Zero(t, rz.EstimatedDays)
	assert.Equal(t, 15.0, rz.MatchScore)
}

func TestRecommend_Priorities(t *testing.T) {
	svc := analytics.New(constScore(0), analytics.Config{})
	m := machine(1, "fast", 1000, 1, 10, 0, 20)
	recs, err := svc.Recommend([]types.Machine{m}, analytics.TargetParams{
		DailyProductionTarget:  100,
		DeadlineDays:           1,
		MaxBudget:              1e6,
		PrioritizeQuality:      true,
		PrioritizeSpeed:        true,
		PrioritizeEnergySaving: true,
	})
	require.NoError(t, err)
	assert.Equal(t, 40.0+30+10+10+10, recs[0].MatchScore)
	assert.Contains(t, recs[0].Strengths, "Effective daily output exceeds the target")
}

func TestRecommend_SortedDescending(t *testing.T) {
	svc := realService(t)
	ms := []types.Machine{
		machine(1, "a", 200, 12, 60, 150, 120),
		machine(2, "b", 900, 1, 10, 10, 20),
		machine(3, "c", 500, 3, 20, 40, 60),
		machine(4, "d", 350, 6, 35, 90, 85),
	}
	recs, err := svc.Recommend(ms, analytics.TargetParams{DailyProductionTarget: 2000, DeadlineDays: 5, MaxBudget: 20000, PrioritizeQuality: true})
	require.NoError(t, err)
	assert.True(t, sort.SliceIsSorted(recs, func(i, j int) bool { return recs[i].MatchScore > recs[j].MatchScore }))
}

func TestRecommend_TiesKeepInputOrder(t *testing.T) {
	svc := analytics.New(constScore(60), analytics.Config{})
	a := machine(7, "a", 100, 0, 10, 0, 50)
	b := machine(8, "b", 100, 0, 10, 0, 50)
	recs, err := svc.Recommend([]types.Machine{a, b}, analytics.TargetParams{DailyProductionTarget: 100, DeadlineDays: 1, MaxBudget: 1})
	require.NoError(t, err)
	assert.Equal(t, int64(7), recs[0].MachineID)
	assert.Equal(t, int64(8), recs[1].MachineID)
}
