package reader

import (
	"context"
	"fmt"
	"io"
	"time"

	"github.com/scouter-ml/scouter/internal/types"
)

// Custom answers a DriftRequest over Custom metric records.
func (r *Reader) Custom(ctx context.Context, req types.DriftRequest, now time.Time) (types.BinnedCustomMetrics, error) {
	start, end := req.Window(now)
	width := bucketWidth(start, end, req.MaxDataPoints)
	activeStart, activeEnd, archivedStart, archivedEnd, hasActive, hasArchived := r.splitWindow(start, end, now)

	out := types.BinnedCustomMetrics{Metrics: map[string]types.CustomMetricSeries{}}

	if hasActive {
		var rows []types.CustomRecord
		err := r.db.SelectContext(ctx, &rows, `
			SELECT created_at, ts, space, name, version, profile_uid, metric, value, archived
			FROM scouter_custom_drift WHERE profile_uid = $1 AND ts >= $2 AND ts <= $3 ORDER BY ts
		`, req.EntityID, activeStart, activeEnd)
		if err != nil {
			return out, fmt.Errorf("reader: querying custom hot store: %w", err)
		}
		appendCustomBuckets(out.Metrics, rows, start, width)
	}

	if hasArchived {
		rows, err := r.archivedCustom(ctx, req.EntityID, archivedStart, archivedEnd)
		if err != nil {
			return out, err
		}
		appendCustomBuckets(out.Metrics, rows, start, width)
	}

	return out, nil
}

func appendCustomBuckets(dst map[string]types.CustomMetricSeries, rows []types.CustomRecord, origin time.Time, width time.Duration) {
	type acc struct {
		sum   float64
		count int
		ts    time.Time
	}
	buckets := map[string]map[time.Time]*acc{}
	for _, row := range rows {
		b := bucketStart(row.Ts, origin, width)
		m, ok := buckets[row.Metric]
		if !ok {
			m = map[time.Time]*acc{}
			buckets[row.Metric] = m
		}
		a, ok := m[b]
		if !ok {
			a = &acc{ts: b}
			m[b] = a
		}
		a.sum += row.Value
		a.count++
	}
	for metric, m := range buckets {
		series := dst[metric]
		for _, a := range m {
			series.CreatedAt = append(series.CreatedAt, a.ts)
			series.Values = append(series.Values, a.sum/float64(a.count))
		}
		dst[metric] = series
	}
}

func (r *Reader) archivedCustom(ctx context.Context, entityID string, start, end time.Time) ([]types.CustomRecord, error) {
	objs, err := r.store.List(ctx, fmt.Sprintf("%s/custom/", entityID))
	if err != nil {
		return nil, fmt.Errorf("reader: listing archived custom objects: %w", err)
	}
	var out []types.CustomRecord
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
		rows, err := r.parquet.ReadCustom(ctx, data)
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
