// Package reader implements the Unified Reader of spec.md §4.H: it answers
// a DriftRequest by splitting the requested window at the retention
// boundary, querying the hot store for the recent side and the archived
// parquet tree for the aged side, and merging the two into one binned
// per-feature time series. The hot-store side selects the window's raw rows
// through sqlx; the archived side hand-rolls an Arrow/parquet scan, since
// no DataFusion-equivalent SQL-over-parquet engine exists in the Go
// ecosystem reachable from this pack (documented in DESIGN.md). Both sides
// are bucketed and aggregated in Go.
package reader

import (
	"context"
	"fmt"
	"io"
	"sort"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/scouter-ml/scouter/internal/archive"
	"github.com/scouter-ml/scouter/internal/objstore"
	"github.com/scouter-ml/scouter/internal/types"
)

// Reader answers DriftRequests by stitching the hot store and the archived
// parquet tree.
type Reader struct {
	db        *sqlx.DB
	store     objstore.Store
	retention time.Duration
	parquet   *archive.ParquetReader
}

func New(db *sqlx.DB, store objstore.Store, retention time.Duration) *Reader {
	return &Reader{db: db, store: store, retention: retention, parquet: archive.NewParquetReader()}
}

// splitWindow divides [start, end] at now-retention into the hot-store
// range and the archived range. Either half may be empty.
func (r *Reader) splitWindow(start, end, now time.Time) (activeStart, activeEnd, archivedStart, archivedEnd time.Time, hasActive, hasArchived bool) {
	cutoff := now.Add(-r.retention)
	if end.Before(cutoff) {
		return time.Time{}, time.Time{}, start, end, false, true
	}
	if start.After(cutoff) || start.Equal(cutoff) {
		return start, end, time.Time{}, time.Time{}, true, false
	}
	return cutoff, end, start, cutoff, true, true
}

func bucketWidth(start, end time.Time, maxDataPoints int) time.Duration {
	if maxDataPoints <= 0 {
		maxDataPoints = 1
	}
	total := end.Sub(start)
	width := total / time.Duration(maxDataPoints)
	if width <= 0 {
		width = time.Minute
	}
	return width
}

func bucketStart(ts time.Time, origin time.Time, width time.Duration) time.Time {
	offset := ts.Sub(origin)
	n := offset / width
	return origin.Add(n * width)
}

// Spc answers a DriftRequest over SPC records.
func (r *Reader) Spc(ctx context.Context, req types.DriftRequest, now time.Time) (types.SpcDriftFeatures, error) {
	start, end := req.Window(now)
	width := bucketWidth(start, end, req.MaxDataPoints)

	activeStart, activeEnd, archivedStart, archivedEnd, hasActive, hasArchived := r.splitWindow(start, end, now)

	out := types.SpcDriftFeatures{Features: map[string]types.SpcFeatureSeries{}}

	if hasActive {
		var rows []types.SpcRecord
		err := r.db.SelectContext(ctx, &rows, `
			SELECT created_at, ts, space, name, version, profile_uid, feature, value, archived
			FROM scouter_spc_drift WHERE profile_uid = $1 AND ts >= $2 AND ts <= $3 ORDER BY ts
		`, req.EntityID, activeStart, activeEnd)
		if err != nil {
			return out, fmt.Errorf("reader: querying spc hot store: %w", err)
		}
		appendSpcBuckets(out.Features, rows, start, width)
	}

	if hasArchived {
		rows, err := r.archivedSpc(ctx, req.EntityID, archivedStart, archivedEnd)
		if err != nil {
			return out, err
		}
		appendSpcBuckets(out.Features, rows, start, width)
	}

	for name, series := range out.Features {
		sortSpcSeries(series)
		out.Features[name] = series
	}
	return out, nil
}

func appendSpcBuckets(dst map[string]types.SpcFeatureSeries, rows []types.SpcRecord, origin time.Time, width time.Duration) {
	type acc struct {
		sum   float64
		count int
		ts    time.Time
	}
	buckets := map[string]map[time.Time]*acc{}
	for _, row := range rows {
		b := bucketStart(row.Ts, origin, width)
		feat, ok := buckets[row.Feature]
		if !ok {
			feat = map[time.Time]*acc{}
			buckets[row.Feature] = feat
		}
		a, ok := feat[b]
		if !ok {
			a = &acc{ts: b}
			feat[b] = a
		}
		a.sum += row.Value
		a.count++
	}
	for feature, feat := range buckets {
		series := dst[feature]
		for _, a := range feat {
			series.CreatedAt = append(series.CreatedAt, a.ts)
			series.Values = append(series.Values, a.sum/float64(a.count))
		}
		dst[feature] = series
	}
}

func sortSpcSeries(s types.SpcFeatureSeries) {
	idx := make([]int, len(s.CreatedAt))
	for i := range idx {
		idx[i] = i
	}
	sort.Slice(idx, func(i, j int) bool { return s.CreatedAt[idx[i]].Before(s.CreatedAt[idx[j]]) })
	ts := make([]time.Time, len(idx))
	vals := make([]float64, len(idx))
	for i, j := range idx {
		ts[i] = s.CreatedAt[j]
		vals[i] = s.Values[j]
	}
	copy(s.CreatedAt, ts)
	copy(s.Values, vals)
}

func (r *Reader) archivedSpc(ctx context.Context, entityID string, start, end time.Time) ([]types.SpcRecord, error) {
	objs, err := r.store.List(ctx, fmt.Sprintf("%s/spc/", entityID))
	if err != nil {
		return nil, fmt.Errorf("reader: listing archived spc objects: %w", err)
	}
	var out []types.SpcRecord
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
		rows, err := r.parquet.ReadSpc(ctx, data)
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
