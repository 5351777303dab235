package archive

import (
	"bytes"
	"context"
	"fmt"
	"time"

	"github.com/apache/arrow/go/v16/arrow"
	"github.com/apache/arrow/go/v16/arrow/memory"
	"github.com/apache/arrow/go/v16/parquet/file"
	"github.com/apache/arrow/go/v16/parquet/pqarrow"
	"github.com/scouter-ml/scouter/internal/types"
)

// ParquetReader decodes one archived parquet file back into typed rows,
// mirroring WriteSpc/WritePsi/WriteCustom's column layout.
type ParquetReader struct {
	mem memory.Allocator
}

func NewParquetReader() *ParquetReader {
	return &ParquetReader{mem: memory.NewGoAllocator()}
}

func (r *ParquetReader) openTable(ctx context.Context, data []byte) (arrow.Table, error) {
	pf, err := file.NewParquetReader(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("archive: opening parquet file: %w", err)
	}
	fr, err := pqarrow.NewFileReader(pf, pqarrow.ArrowReadProperties{}, r.mem)
	if err != nil {
		return nil, fmt.Errorf("archive: opening arrow reader: %w", err)
	}
	tbl, err := fr.ReadTable(ctx)
	if err != nil {
		return nil, fmt.Errorf("archive: reading table: %w", err)
	}
	return tbl, nil
}

func (r *ParquetReader) ReadSpc(ctx context.Context, data []byte) ([]types.SpcRecord, error) {
	tbl, err := r.openTable(ctx, data)
	if err != nil {
		return nil, err
	}
	defer tbl.Release()

	n := int(tbl.NumRows())
	out := make([]types.SpcRecord, 0, n)
	cols := columnStrings(tbl, []int{2, 3, 4, 5, 6})
	times := columnTimestamps(tbl, []int{0, 1})
	values := columnFloat64(tbl, 7)
	for i := 0; i < n; i++ {
		out = append(out, types.SpcRecord{
			CreatedAt:  times[0][i],
			Ts:         times[1][i],
			Space:      cols[0][i],
			Name:       cols[1][i],
			Version:    cols[2][i],
			ProfileUID: cols[3][i],
			Feature:    cols[4][i],
			Value:      values[i],
			Archived:   true,
		})
	}
	return out, nil
}

func (r *ParquetReader) ReadPsi(ctx context.Context, data []byte) ([]types.PsiRecord, error) {
	tbl, err := r.openTable(ctx, data)
	if err != nil {
		return nil, err
	}
	defer tbl.Release()

	n := int(tbl.NumRows())
	out := make([]types.PsiRecord, 0, n)
	cols := columnStrings(tbl, []int{2, 3, 4, 5, 6})
	times := columnTimestamps(tbl, []int{0, 1})
	binIDs := columnInt64(tbl, 7)
	binCounts := columnInt64(tbl, 8)
	for i := 0; i < n; i++ {
		out = append(out, types.PsiRecord{
			CreatedAt:  times[0][i],
			Ts:         times[1][i],
			Space:      cols[0][i],
			Name:       cols[1][i],
			Version:    cols[2][i],
			ProfileUID: cols[3][i],
			Feature:    cols[4][i],
			BinID:      binIDs[i],
			BinCount:   binCounts[i],
			Archived:   true,
		})
	}
	return out, nil
}

func (r *ParquetReader) ReadCustom(ctx context.Context, data []byte) ([]types.CustomRecord, error) {
	tbl, err := r.openTable(ctx, data)
	if err != nil {
		return nil, err
	}
	defer tbl.Release()

	n := int(tbl.NumRows())
	out := make([]types.CustomRecord, 0, n)
	cols := columnStrings(tbl, []int{2, 3, 4, 5, 6})
	times := columnTimestamps(tbl, []int{0, 1})
	values := columnFloat64(tbl, 7)
	for i := 0; i < n; i++ {
		out = append(out, types.CustomRecord{
			CreatedAt:  times[0][i],
			Ts:         times[1][i],
			Space:      cols[0][i],
			Name:       cols[1][i],
			Version:    cols[2][i],
			ProfileUID: cols[3][i],
			Metric:     cols[4][i],
			Value:      values[i],
			Archived:   true,
		})
	}
	return out, nil
}

func toGoTime(ts arrow.Timestamp) time.Time {
	return time.UnixMicro(int64(ts)).UTC()
}
