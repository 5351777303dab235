package archive

import (
	"time"

	"github.com/apache/arrow/go/v16/arrow"
	"github.com/apache/arrow/go/v16/arrow/array"
)

// The helpers below flatten a table's chunked columns into plain Go slices.
// Archived parquet files are small per-entity batches, so materializing a
// full column is cheap; the unified reader never holds more than one
// archived range in memory at a time.

func columnStrings(tbl arrow.Table, idxs []int) [][]string {
	out := make([][]string, len(idxs))
	for i, idx := range idxs {
		col := tbl.Column(idx)
		vals := make([]string, 0, tbl.NumRows())
		for _, chunk := range col.Data().Chunks() {
			sa := chunk.(*array.String)
			for j := 0; j < sa.Len(); j++ {
				vals = append(vals, sa.Value(j))
			}
		}
		out[i] = vals
	}
	return out
}

func columnFloat64(tbl arrow.Table, idx int) []float64 {
	col := tbl.Column(idx)
	vals := make([]float64, 0, tbl.NumRows())
	for _, chunk := range col.Data().Chunks() {
		fa := chunk.(*array.Float64)
		vals = append(vals, fa.Float64Values()...)
	}
	return vals
}

func columnInt64(tbl arrow.Table, idx int) []int64 {
	col := tbl.Column(idx)
	vals := make([]int64, 0, tbl.NumRows())
	for _, chunk := range col.Data().Chunks() {
		ia := chunk.(*array.Int64)
		vals = append(vals, ia.Int64Values()...)
	}
	return vals
}

func columnTimestamps(tbl arrow.Table, idxs []int) [][]time.Time {
	out := make([][]time.Time, len(idxs))
	for i, idx := range idxs {
		col := tbl.Column(idx)
		vals := make([]time.Time, 0, tbl.NumRows())
		for _, chunk := range col.Data().Chunks() {
			ta := chunk.(*array.Timestamp)
			for j := 0; j < ta.Len(); j++ {
				vals = append(vals, toGoTime(ta.Value(j)))
			}
		}
		out[i] = vals
	}
	return out
}
