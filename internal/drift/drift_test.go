package drift

import (
	"testing"
	"time"

	"github.com/scouter-ml/scouter/internal/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEvaluateSpc_SingleFeatureControlLimitBreach(t *testing.T) {
	profile := types.SpcProfile{
		Features: map[string]types.SpcFeatureLimits{
			"x": {Center: 0.0, LCL: -3.0, UCL: 3.0, N: 25, C4: 1.0},
		},
	}
	values := make([]float64, 0, 25)
	now := time.Now()
	ts := make([]time.Time, 0, 25)
	for i := 0; i < 24; i++ {
		values = append(values, 0.0)
		ts = append(ts, now.Add(time.Duration(i)*time.Minute))
	}
	values = append(values, 4.0)
	ts = append(ts, now.Add(24*time.Minute))

	series := map[string]types.SpcFeatureSeries{"x": {CreatedAt: ts, Values: values}}
	alerts := EvaluateSpc(profile, series)

	require.Len(t, alerts, 1)
	assert.Equal(t, "x", alerts[0].FeatureOrMetric)
	assert.Equal(t, "OutOfBounds3Sigma", alerts[0].Kind)
	assert.Equal(t, "upper", alerts[0].Zone)
}

func TestEvaluateSpc_EightConsecutiveAboveCenter(t *testing.T) {
	profile := types.SpcProfile{
		Features: map[string]types.SpcFeatureLimits{
			"x": {Center: 0.0, LCL: -3.0, UCL: 3.0},
		},
	}
	values := make([]float64, 8)
	for i := range values {
		values[i] = 0.5
	}
	series := map[string]types.SpcFeatureSeries{"x": {Values: values}}
	alerts := EvaluateSpc(profile, series)

	found := false
	for _, a := range alerts {
		if a.Kind == "EightConsecutiveOneSide" {
			found = true
		}
	}
	assert.True(t, found, "eight consecutive points above center must trigger a rule-4 alert")
}

func TestEvaluatePsi_DivergenceMatchesClosedForm(t *testing.T) {
	profile := types.PsiProfile{
		Features: map[string]types.PsiFeatureBins{
			"f": {BaselineProportions: []float64{0.5, 0.5}},
		},
		PsiThreshold: 0.25,
	}
	observed := map[string]map[int64]float64{
		"f": {0: 0.1, 1: 0.9},
	}
	alerts := EvaluatePsi(profile, observed)
	require.Len(t, alerts, 1)
	assert.InDelta(t, 0.87889, alerts[0].DriftValue, 1e-3)
}

func TestEvaluateCustom_AboveWithDelta(t *testing.T) {
	delta := 1.0
	profile := types.CustomProfile{
		Metrics: map[string]types.CustomMetricConfig{
			"accuracy": {Baseline: 12.02, Direction: types.DirectionAbove, Delta: &delta},
		},
	}

	alerts := EvaluateCustom(profile, map[string]float64{"accuracy": 14.0})
	require.Len(t, alerts, 1)

	alerts = EvaluateCustom(profile, map[string]float64{"accuracy": 12.5})
	assert.Empty(t, alerts)
}

func TestEvaluateCustom_EmptyWindowReturnsNoAlerts(t *testing.T) {
	profile := types.CustomProfile{Metrics: map[string]types.CustomMetricConfig{"m": {Baseline: 1, Direction: types.DirectionAbove}}}
	alerts := EvaluateCustom(profile, map[string]float64{})
	assert.Empty(t, alerts)
}
