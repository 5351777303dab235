package reader

import (
	"context"
	"fmt"
	"io"
	"sort"
	"time"

	"github.com/scouter-ml/scouter/internal/types"
)

// psiFeatureBuckets maps bucket start time -> bin_id -> observed proportion
// for one feature, the intermediate shape computed independently for the
// hot-store half and the archived half of a window before they are merged.
type psiFeatureBuckets map[time.Time]map[int64]float64

// Psi answers a DriftRequest over PSI records, producing per-bucket observed
// bin proportions per feature. The hot-store half and the archived half are
// aggregated independently, then merged per feature/bucket, averaging
// matching overall_proportions when both halves contributed to the same
// bucket, per spec.md §4.H step 6.
func (r *Reader) Psi(ctx context.Context, req types.DriftRequest, now time.Time) (types.BinnedPsiFeatureMetrics, error) {
	start, end := req.Window(now)
	width := bucketWidth(start, end, req.MaxDataPoints)
	activeStart, activeEnd, archivedStart, archivedEnd, hasActive, hasArchived := r.splitWindow(start, end, now)

	active := map[string]psiFeatureBuckets{}
	archived := map[string]psiFeatureBuckets{}

	if hasActive {
		var rows []types.PsiRecord
		err := r.db.SelectContext(ctx, &rows, `
			SELECT created_at, ts, space, name, version, profile_uid, feature, bin_id, bin_count, archived
			FROM scouter_psi_drift WHERE profile_uid = $1 AND ts >= $2 AND ts <= $3 ORDER BY ts
		`, req.EntityID, activeStart, activeEnd)
		if err != nil {
			return types.BinnedPsiFeatureMetrics{}, fmt.Errorf("reader: querying psi hot store: %w", err)
		}
		active = psiBuckets(rows, start, width)
	}

	if hasArchived {
		rows, err := r.archivedPsi(ctx, req.EntityID, archivedStart, archivedEnd)
		if err != nil {
			return types.BinnedPsiFeatureMetrics{}, err
		}
		archived = psiBuckets(rows, start, width)
	}

	return types.BinnedPsiFeatureMetrics{Features: mergePsiBuckets(active, archived)}, nil
}

// psiBuckets aggregates one half's rows into per-feature, per-bucket
// observed bin proportions.
func psiBuckets(rows []types.PsiRecord, origin time.Time, width time.Duration) map[string]psiFeatureBuckets {
	type bucketKey struct {
		feature string
		bucket  time.Time
	}
	counts := map[bucketKey]map[int64]int64{}
	totals := map[bucketKey]int64{}
	for _, row := range rows {
		b := bucketStart(row.Ts, origin, width)
		k := bucketKey{feature: row.Feature, bucket: b}
		if counts[k] == nil {
			counts[k] = map[int64]int64{}
		}
		counts[k][row.BinID] += row.BinCount
		totals[k] += row.BinCount
	}

	out := map[string]psiFeatureBuckets{}
	for k, bins := range counts {
		feat, ok := out[k.feature]
		if !ok {
			feat = psiFeatureBuckets{}
			out[k.feature] = feat
		}
		props := make(map[int64]float64, len(bins))
		total := totals[k]
		for binID, count := range bins {
			if total > 0 {
				props[binID] = float64(count) / float64(total)
			}
		}
		feat[k.bucket] = props
	}
	return out
}

// mergePsiBuckets combines the active and archived per-feature bucket maps
// into the final series: a bucket present on only one side is carried
// through as-is; a bucket present on both sides has its proportions
// averaged per bin_id, per spec.md §4.H step 6.
func mergePsiBuckets(active, archived map[string]psiFeatureBuckets) map[string]types.PsiFeatureSeries {
	features := map[string]struct{}{}
	for f := range active {
		features[f] = struct{}{}
	}
	for f := range archived {
		features[f] = struct{}{}
	}

	out := make(map[string]types.PsiFeatureSeries, len(features))
	for feature := range features {
		a := active[feature]
		b := archived[feature]

		buckets := map[time.Time]struct{}{}
		for ts := range a {
			buckets[ts] = struct{}{}
		}
		for ts := range b {
			buckets[ts] = struct{}{}
		}

		ordered := make([]time.Time, 0, len(buckets))
		for ts := range buckets {
			ordered = append(ordered, ts)
		}
		sort.Slice(ordered, func(i, j int) bool { return ordered[i].Before(ordered[j]) })

		var series types.PsiFeatureSeries
		for _, ts := range ordered {
			ap, aOK := a[ts]
			bp, bOK := b[ts]
			series.CreatedAt = append(series.CreatedAt, ts)
			series.OverallProportions = append(series.OverallProportions, averageProportions(ap, aOK, bp, bOK))
		}
		out[feature] = series
	}
	return out
}

// averageProportions merges one bucket's two candidate proportion maps,
// averaging per bin_id when both sides contributed and passing the single
// side through unchanged otherwise.
func averageProportions(a map[int64]float64, aOK bool, b map[int64]float64, bOK bool) map[int64]float64 {
	if aOK && !bOK {
		return a
	}
	if bOK && !aOK {
		return b
	}
	bins := map[int64]struct{}{}
	for bin := range a {
		bins[bin] = struct{}{}
	}
	for bin := range b {
		bins[bin] = struct{}{}
	}
	merged := make(map[int64]float64, len(bins))
	for bin := range bins {
		av, aHas := a[bin]
		bv, bHas := b[bin]
		switch {
		case aHas && bHas:
			merged[bin] = (av + bv) / 2
		case aHas:
			merged[bin] = av
		default:
			merged[bin] = bv
		}
	}
	return merged
}

func (r *Reader) archivedPsi(ctx context.Context, entityID string, start, end time.Time) ([]types.PsiRecord, error) {
	objs, err := r.store.List(ctx, fmt.Sprintf("%s/psi/", entityID))
	if err != nil {
		return nil, fmt.Errorf("reader: listing archived psi objects: %w", err)
	}
	var out []types.PsiRecord
	for _, obj := range objs {
		rc, err := r.store.Get(ctx, obj.Key)
		if err != nil {
			return nil, fmt.Errorf("reader: fetching archived object %s: %w", obj.Key, err)
		}
		data, err := io.ReadAll(rc)
		rc.Close()
		if err != nil {
			return nil, err
		}
		rows, err := r.parquet.ReadPsi(ctx, data)
		if err != nil {
			return nil, fmt.Errorf("reader: decoding archived object %s: %w", obj.Key, err)
		}
		for _, row := range rows {
			if !row.Ts.Before(start) && !row.Ts.After(end) {
				out = append(out, row)
			}
		}
	}
	return out, nil
}
