package analytics_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fuzzymachine/efficiency/pkg/types"
	"github.com/fuzzymachine/efficiency/server/internal/analytics"
)

func TestStatistics_Empty(t *testing.T) {
	svc := analytics.New(constScore(50), analytics.Config{})
	st, err := svc.Statistics(nil)
	require.NoError(t, err)

	assert.Zero(t, st.TotalMachines)
	assert.Zero(t, st.AverageEfficiencyScore)
	assert.Zero(t, st.AverageEnergyConsumption)
	assert.Nil(t, st.MostEfficient)
	assert.Len(t, st.Distribution, 5)
	for _, s := range types.Statuses {
		assert.Equal(t, 0, st.Distribution[s], s)
	}
}

func TestStatistics(t *testing.T) {
	svc := analytics.New(byProduction(map[float64]float64{100: 95, 200: 60, 300: 10, 400: 95}), analytics.Config{})
	ms := []types.Machine{
		machine(1, "a", 100, 0, 10, 0, 40),
		machine(2, "b", 200, 0, 20, 0, 60),
		machine(3, "c", 300, 0, 30, 0, 80),
		machine(4, "d", 400, 0, 40, 0, 100),
	}
	st, err := svc.Statistics(ms)
	require.NoError(t, err)

	assert.Equal(t, 4, st.TotalMachines)
	assert.Equal(t, 65.0, st.AverageEfficiencyScore)
	assert.Equal(t, 25.0, st.AverageMaintenanceInterval)
	assert.Equal(t, 70.0, st.AverageEnergyConsumption)
	require.NotNil(t, st.MostEfficient)
	assert.Equal(t, int64(1), st.MostEfficient.ID, "first machine wins a tie")
	assert.Equal(t, int64(3), st.LeastEfficient.ID)
	assert.Equal(t, map[types.Status]int{
		types.StatusVeryGood: 2,
		types.StatusGood:     0,
		types.StatusMedium:   1,
		types.StatusBad:      0,
		types.StatusVeryBad:  1,
	}, st.Distribution)
	assert.Len(t, st.ProductionVsEfficiency, 4)
}

func TestRanking(t *testing.T) {
	svc := analytics.New(byProduction(map[float64]float64{1: 30, 2: 80, 3: 49.99, 4: 50, 5: 95, 6: 70}), analytics.Config{})
	var ms []types.Machine
	for i := 1; i <= 6; i++ {
		ms = append(ms, machine(int64(i), "m", float64(i), 0, 10, 0, 10))
	}

	top, err := svc.TopPerformers(ms, 3)
	require.NoError(t, err)
	assert.Equal(t, []int64{5, 2, 6}, ids(top))

	top, err = svc.TopPerformers(ms, 0)
	require.NoError(t, err)
	assert.Len(t, top, analytics.DefaultTopLimit)

	low, err := svc.NeedingImprovement(ms)
	require.NoError(t, err)
	assert.Equal(t, []int64{1, 3}, ids(low))

	lo, hi := 50.0, 80.0
	mid, err := svc.FilterByEfficiency(ms, &lo, &hi)
	require.NoError(t, err)
	assert.Equal(t, []int64{2, 4, 6}, ids(mid))

	all, err := svc.FilterByEfficiency(ms, nil, nil)
	require.NoError(t, err)
	assert.Len(t, all, 6)
}

func ids(ms []analytics.Scored) []int64 {
	out := make([]int64, len(ms))
	for i, m := range ms {
		out[i] = m.ID
	}
	return out
}
