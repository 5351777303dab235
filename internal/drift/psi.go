package drift

import (
	"math"
	"sort"

	"github.com/scouter-ml/scouter/internal/types"
)

// psiFloor is the small constant floored onto zero-proportion bins so the
// PSI log term never diverges, per spec.md §4.J.
const psiFloor = 1e-4

// EvaluatePsi computes population stability index per feature from the
// observed bin proportions against each feature's baseline, emitting an
// alert when PSI meets or exceeds the profile's threshold.
func EvaluatePsi(profile types.PsiProfile, observed map[string]map[int64]float64) []Alert {
	var out []Alert
	for feature, bins := range profile.Features {
		obs, ok := observed[feature]
		if !ok || len(obs) == 0 {
			continue
		}
		score := computePSI(bins.BaselineProportions, obs)
		if score >= profile.PsiThreshold {
			out = append(out, Alert{FeatureOrMetric: feature, Kind: "PsiThresholdExceeded", DriftValue: score})
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].FeatureOrMetric < out[j].FeatureOrMetric })
	return out
}

// computePSI evaluates Σᵢ (oᵢ - eᵢ) · ln(oᵢ/eᵢ) over the baseline's bin
// cardinality, flooring zero proportions at psiFloor on both sides.
func computePSI(baseline []float64, observed map[int64]float64) float64 {
	var total float64
	for i, e := range baseline {
		o := observed[int64(i)]
		if o <= 0 {
			o = psiFloor
		}
		if e <= 0 {
			e = psiFloor
		}
		total += (o - e) * math.Log(o/e)
	}
	return total
}
