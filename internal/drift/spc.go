// Package drift implements the three Drift Evaluator families of
// spec.md §4.J. Each evaluator is pure: given a time series and a profile,
// it returns dispatch-ready alert fields and never touches storage itself.
package drift

import (
	"math"
	"sort"

	"github.com/scouter-ml/scouter/internal/types"
)

// Alert is one dispatch-ready finding, mirroring the
// "Vec<BTreeMap<String,String>>" shape of spec.md §4.J: a flat field set
// the dispatcher can render without knowing the evaluator that produced it.
type Alert struct {
	FeatureOrMetric string
	Kind            string
	Zone            string
	DriftValue      float64
}

// EvaluateSpc applies Western-Electric-style run rules to each feature's
// series against its profile control limits, pivoting multiple rule hits
// on the same feature/kind into a single alert.
func EvaluateSpc(profile types.SpcProfile, series map[string]types.SpcFeatureSeries) []Alert {
	seen := map[[2]string]Alert{}
	for feature, limits := range profile.Features {
		s, ok := series[feature]
		if !ok || len(s.Values) == 0 {
			continue
		}
		sigma := (limits.UCL - limits.Center) / 3
		if sigma <= 0 {
			continue
		}
		for _, a := range spcRuleViolations(feature, limits.Center, sigma, s.Values) {
			seen[[2]string{a.FeatureOrMetric, a.Kind}] = a
		}
	}
	out := make([]Alert, 0, len(seen))
	for _, a := range seen {
		out = append(out, a)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].FeatureOrMetric != out[j].FeatureOrMetric {
			return out[i].FeatureOrMetric < out[j].FeatureOrMetric
		}
		return out[i].Kind < out[j].Kind
	})
	return out
}

func zoneOf(v, center, sigma float64) string {
	if v >= center {
		return "upper"
	}
	return "lower"
}

// spcRuleViolations checks the four Western Electric rules, in the order
// they are defined in spec.md §4.J. Rule 1 scans the whole series; rules
// 2-4 look only at the most recent 3, 5, and 8 values respectively.
func spcRuleViolations(feature string, center, sigma float64, values []float64) []Alert {
	var out []Alert

	// Rule 1: any point beyond 3 sigma.
	for _, v := range values {
		if math.Abs(v-center) >= 3*sigma {
			out = append(out, Alert{FeatureOrMetric: feature, Kind: "OutOfBounds3Sigma", Zone: zoneOf(v, center, sigma), DriftValue: v})
			break
		}
	}

	// Rule 2: two of three consecutive points beyond 2 sigma on the same side.
	if windowHasRule(values, 3, 2, center, 2*sigma) {
		out = append(out, Alert{FeatureOrMetric: feature, Kind: "TwoOfThreeBeyond2Sigma", Zone: tailZone(values, center), DriftValue: values[len(values)-1]})
	}

	// Rule 3: four of five consecutive points beyond 1 sigma on the same side.
	if windowHasRule(values, 5, 4, center, sigma) {
		out = append(out, Alert{FeatureOrMetric: feature, Kind: "FourOfFiveBeyond1Sigma", Zone: tailZone(values, center), DriftValue: values[len(values)-1]})
	}

	// Rule 4: eight consecutive points on one side of center.
	if len(values) >= 8 {
		tail := values[len(values)-8:]
		above, below := true, true
		for _, v := range tail {
			if v <= center {
				above = false
			}
			if v >= center {
				below = false
			}
		}
		if above || below {
			out = append(out, Alert{FeatureOrMetric: feature, Kind: "EightConsecutiveOneSide", Zone: tailZone(values, center), DriftValue: tail[len(tail)-1]})
		}
	}

	return out
}

// windowHasRule reports whether, among the last `window` values, at least
// `minHits` fall beyond `limit` from center on the same side.
func windowHasRule(values []float64, window, minHits int, center, limit float64) bool {
	if len(values) < window {
		return false
	}
	tail := values[len(values)-window:]
	above, below := 0, 0
	for _, v := range tail {
		if v-center >= limit {
			above++
		}
		if center-v >= limit {
			below++
		}
	}
	return above >= minHits || below >= minHits
}

func tailZone(values []float64, center float64) string {
	return zoneOf(values[len(values)-1], center, 0)
}
