package analytics_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fuzzymachine/efficiency/pkg/types"
	"github.com/fuzzymachine/efficiency/server/internal/analytics"
)

func byProduction(scores map[float64]float64) fakeEval {
	return func(m types.Measurement) float64 { return scores[m.DailyProduction] }
}

func TestCompare(t *testing.T) {
	svc := analytics.New(byProduction(map[float64]float64{80: 90, 60: 40}), analytics.Config{})
	a := machine(1, "A", 80, 2, 30, 0, 20)
	b := machine(2, "B", 60, 10, 90, 0, 50)

	res, err := svc.Compare([]types.Machine{a, b}, []string{"efficiency", "production", "errorRate", "production", "uptime"})
	require.NoError(t, err)

	assert.Equal(t, []string{"efficiency", "production", "errorRate", "uptime"}, res.Factors)
	require.Len(t, res.Items, 2)

	ia := res.Items[0]
	assert.Equal(t, map[string]float64{"efficiency": 90, "production": 80, "errorRate": 98, "uptime": 50}, ia.FactorScores)
	assert.InDelta(t, (90+80+98+50)/4.0, ia.OverallScore, 1e-9)
	assert.ElementsMatch(t, []string{"efficiency (90.0)", "production (80.0)", "errorRate (98.0)"}, ia.Strengths)
	assert.Empty(t, ia.Weaknesses)

	ib := res.Items[1]
	assert.ElementsMatch(t, []string{"efficiency (40.0)"}, ib.Weaknesses)
	assert.ElementsMatch(t, []string{"errorRate (90.0)"}, ib.Strengths)

	require.NotNil(t, res.BestOverall)
	assert.Equal(t, int64(1), res.BestOverall.MachineID)
	for _, f := range res.Factors {
		best := res.BestPerFactor[f]
		for _, it := range res.Items {
			assert.GreaterOrEqual(t, best.FactorScores[f], it.FactorScores[f], f)
		}
	}
	assert.Equal(t, int64(1), res.BestPerFactor["uptime"].MachineID, "ties go to the first machine")
}

func TestCompare_DefaultFactorsAndCharts(t *testing.T) {
	svc := analytics.New(constScore(70), analytics.Config{})
	ms := []types.Machine{machine(1, "A", 80, 2, 30, 0, 20), machine(2, "B", 60, 10, 90, 0, 50)}

	res, err := svc.Compare(ms, nil)
	require.NoError(t, err)
	assert.Equal(t, analytics.Factors(), res.Factors)

	require.Len(t, res.Charts, 2)
	radar, bar := res.Charts[0], res.Charts[1]
	assert.Equal(t, "radar", radar.Type)
	assert.Equal(t, analytics.Factors(), radar.Labels)
	require.Len(t, radar.Datasets, 2)
	assert.NotEqual(t, radar.Datasets[0].BorderColor, radar.Datasets[1].BorderColor)
	assert.Equal(t, "bar", bar.Type)
	assert.Equal(t, []string{"A", "B"}, bar.Labels)

	again, err := svc.Compare(ms, nil)
	require.NoError(t, err)
	assert.Equal(t, res.Charts, again.Charts, "charts must be deterministic")
}

func TestCompare_TieKeepsFirst(t *testing.T) {
	svc := analytics.New(constScore(70), analytics.Config{})
	ms := []types.Machine{machine(5, "first", 80, 2, 30, 0, 20), machine(6, "second", 80, 2, 30, 0, 20)}
	res, err := svc.Compare(ms, []string{"efficiency"})
	require.NoError(t, err)
	assert.Equal(t, int64(5), res.BestOverall.MachineID)
	assert.Equal(t, int64(5), res.BestPerFactor["efficiency"].MachineID)
}

func TestCompare_Empty(t *testing.T) {
	svc := analytics.New(constScore(70), analytics.Config{})
	res, err := svc.Compare(nil, []string{"efficiency"})
	require.NoError(t, err)
	assert.Nil(t, res.BestOverall)
	assert.Empty(t, res.Items)
}

func TestFactors_ReturnsCopy(t *testing.T) {
	f := analytics.Factors()
	f[0] = "bogus"
	assert.Equal(t, analytics.FactorEfficiency, analytics.Factors()[0])

	svc := analytics.New(constScore(70), analytics.Config{})
	res, err := svc.Compare([]types.Machine{machine(1, "A", 80, 2, 30, 0, 20)}, nil)
	require.NoError(t, err)
	assert.NotContains(t, res.Factors, "bogus")

	// The result owns its slice too.
	res.Factors[0] = "bogus"
	assert.Equal(t, analytics.FactorEfficiency, analytics.Factors()[0])
}
