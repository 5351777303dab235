package familyqueue

import (
	"sort"

	"github.com/scouter-ml/scouter/internal/types"
	"go.uber.org/zap"
)

// PsiQueue implements the PSI batching rule of spec.md §4.A: bucket each
// sample into its baseline bin and emit one record per (feature, bin_id)
// carrying the observed count.
type PsiQueue struct {
	profile types.PsiProfile
	log     *zap.Logger
	now     Clock
}

func (q *PsiQueue) Convert(batch []types.Sample) (types.ServerRecords, error) {
	counts := make(map[string]map[int64]int64, len(q.profile.Features))
	for name := range q.profile.Features {
		counts[name] = make(map[int64]int64)
	}

	for _, sample := range batch {
		for _, feat := range sample.Features {
			bins, monitored := q.profile.Features[feat.Name]
			if !monitored {
				if q.log != nil {
					q.log.Debug("feature not monitored by profile, discarding", zap.String("feature", feat.Name))
				}
				continue
			}
			binID, ok := q.resolveBin(feat, bins)
			if !ok {
				continue
			}
			counts[feat.Name][binID]++
		}
	}

	ts := q.now()
	var out types.ServerRecords
	out.RecordType = types.RecordPsi
	// deterministic ordering: features sorted by name, bins ascending.
	for _, feature := range sortedKeys(q.profile.Features) {
		binCounts := counts[feature]
		for _, binID := range sortedInt64Keys(binCounts) {
			out.Psi = append(out.Psi, types.PsiRecord{
				CreatedAt:  ts,
				Ts:         ts,
				Space:      q.profile.Header.Space,
				Name:       q.profile.Header.Name,
				Version:    q.profile.Header.Version,
				ProfileUID: q.profile.Header.UID,
				Feature:    feature,
				BinID:      binID,
				BinCount:   binCounts[binID],
			})
		}
	}
	return out, nil
}

// resolveBin maps a feature value into its baseline bin id. Numeric values
// bucket against ascending edges via sort.SearchFloat64s, so a value equal
// to edges[i] lands in bin i and values above the last usable edge land in
// the last bin; categorical values resolve through the profile's FeatureMap,
// falling back to the "missing" ordinal for unseen categories, per
// spec.md §3/§4.A and §8's boundary behavior.
func (q *PsiQueue) resolveBin(feat types.Feature, bins types.PsiFeatureBins) (int64, bool) {
	nBins := int64(len(bins.BaselineProportions))
	if nBins == 0 {
		return 0, false
	}
	if !feat.Value.IsString {
		idx := sort.SearchFloat64s(bins.Edges, feat.Value.Number)
		if int64(idx) >= nBins {
			idx = int(nBins) - 1
		}
		return int64(idx), true
	}
	ord, ok := q.profile.Header.FeatureMap.Resolve(feat.Name, feat.Value.String)
	if !ok {
		return 0, false
	}
	if ord < 0 || ord >= nBins {
		return 0, false
	}
	return ord, true
}

func sortedKeys(m map[string]types.PsiFeatureBins) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

func sortedInt64Keys(m map[int64]int64) []int64 {
	keys := make([]int64, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Slice(keys, func(i, j int) bool { return keys[i] < keys[j] })
	return keys
}
