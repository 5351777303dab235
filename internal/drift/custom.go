package drift

import (
	"math"
	"sort"

	"github.com/scouter-ml/scouter/internal/types"
)

// EvaluateCustom checks each metric's mean observed value against its
// threshold condition, per spec.md §4.J.
func EvaluateCustom(profile types.CustomProfile, means map[string]float64) []Alert {
	var out []Alert
	for metric, cfg := range profile.Metrics {
		observed, ok := means[metric]
		if !ok {
			continue
		}
		if conditionTriggered(cfg, observed) {
			out = append(out, Alert{FeatureOrMetric: metric, Kind: "CustomThresholdExceeded", Zone: string(cfg.Direction), DriftValue: observed})
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].FeatureOrMetric < out[j].FeatureOrMetric })
	return out
}

func conditionTriggered(cfg types.CustomMetricConfig, observed float64) bool {
	delta := 0.0
	if cfg.Delta != nil {
		delta = *cfg.Delta
	}
	switch cfg.Direction {
	case types.DirectionAbove:
		return observed > cfg.Baseline+delta
	case types.DirectionBelow:
		return observed < cfg.Baseline-delta
	case types.DirectionOutside:
		if cfg.Delta == nil {
			return false
		}
		return math.Abs(observed-cfg.Baseline) > delta
	default:
		return false
	}
}
