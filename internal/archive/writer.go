// Package archive implements the Archiver of spec.md §4.G: it moves rows
// old enough to leave the retention window out of the hot store and into
// parquet files in object storage, then flips their archived flag. The
// parquet encode/decode shape follows the teacher's directory-and-rotation
// parquet writer/reader pattern (comp/anomalydetection/recorder), adapted
// from per-metric columns to Scouter's drift-record columns.
package archive

import (
	"bytes"
	"fmt"
	"time"

	"github.com/apache/arrow/go/v16/arrow"
	"github.com/apache/arrow/go/v16/arrow/array"
	"github.com/apache/arrow/go/v16/arrow/memory"
	"github.com/apache/arrow/go/v16/parquet"
	"github.com/apache/arrow/go/v16/parquet/pqarrow"
	"github.com/scouter-ml/scouter/internal/types"
)

// ParquetWriter encodes one record batch into an in-memory parquet file,
// ready to hand to an object store Put call.
type ParquetWriter struct {
	mem memory.Allocator
}

func NewParquetWriter() *ParquetWriter {
	return &ParquetWriter{mem: memory.NewGoAllocator()}
}

func (w *ParquetWriter) WriteSpc(rows []types.SpcRecord) ([]byte, error) {
	b := array.NewRecordBuilder(w.mem, spcSchema)
	defer b.Release()
	for _, r := range rows {
		b.Field(0).(*array.TimestampBuilder).Append(toArrowTs(r.CreatedAt))
		b.Field(1).(*array.TimestampBuilder).Append(toArrowTs(r.Ts))
		b.Field(2).(*array.StringBuilder).Append(r.Space)
		b.Field(3).(*array.StringBuilder).Append(r.Name)
		b.Field(4).(*array.StringBuilder).Append(r.Version)
		b.Field(5).(*array.StringBuilder).Append(r.ProfileUID)
		b.Field(6).(*array.StringBuilder).Append(r.Feature)
		b.Field(7).(*array.Float64Builder).Append(r.Value)
	}
	rec := b.NewRecord()
	defer rec.Release()
	return encodeRecord(spcSchema, rec)
}

func (w *ParquetWriter) WritePsi(rows []types.PsiRecord) ([]byte, error) {
	b := array.NewRecordBuilder(w.mem, psiSchema)
	defer b.Release()
	for _, r := range rows {
		b.Field(0).(*array.TimestampBuilder).Append(toArrowTs(r.CreatedAt))
		b.Field(1).(*array.TimestampBuilder).Append(toArrowTs(r.Ts))
		b.Field(2).(*array.StringBuilder).Append(r.Space)
		b.Field(3).(*array.StringBuilder).Append(r.Name)
		b.Field(4).(*array.StringBuilder).Append(r.Version)
		b.Field(5).(*array.StringBuilder).Append(r.ProfileUID)
		b.Field(6).(*array.StringBuilder).Append(r.Feature)
		b.Field(7).(*array.Int64Builder).Append(r.BinID)
		b.Field(8).(*array.Int64Builder).Append(r.BinCount)
	}
	rec := b.NewRecord()
	defer rec.Release()
	return encodeRecord(psiSchema, rec)
}

func (w *ParquetWriter) WriteCustom(rows []types.CustomRecord) ([]byte, error) {
	b := array.NewRecordBuilder(w.mem, customSchema)
	defer b.Release()
	for _, r := range rows {
		b.Field(0).(*array.TimestampBuilder).Append(toArrowTs(r.CreatedAt))
		b.Field(1).(*array.TimestampBuilder).Append(toArrowTs(r.Ts))
		b.Field(2).(*array.StringBuilder).Append(r.Space)
		b.Field(3).(*array.StringBuilder).Append(r.Name)
		b.Field(4).(*array.StringBuilder).Append(r.Version)
		b.Field(5).(*array.StringBuilder).Append(r.ProfileUID)
		b.Field(6).(*array.StringBuilder).Append(r.Metric)
		b.Field(7).(*array.Float64Builder).Append(r.Value)
	}
	rec := b.NewRecord()
	defer rec.Release()
	return encodeRecord(customSchema, rec)
}

func toArrowTs(t time.Time) arrow.Timestamp {
	return arrow.Timestamp(t.UnixMicro())
}

func encodeRecord(schema *arrow.Schema, rec arrow.Record) ([]byte, error) {
	var buf bytes.Buffer
	props := parquet.NewWriterProperties(parquet.WithCompression(parquet.Codecs.Zstd))
	fw, err := pqarrow.NewFileWriter(schema, &buf, props, pqarrow.DefaultWriterProps())
	if err != nil {
		return nil, fmt.Errorf("archive: opening parquet writer: %w", err)
	}
	if err := fw.Write(rec); err != nil {
		_ = fw.Close()
		return nil, fmt.Errorf("archive: writing parquet batch: %w", err)
	}
	if err := fw.Close(); err != nil {
		return nil, fmt.Errorf("archive: closing parquet writer: %w", err)
	}
	return buf.Bytes(), nil
}
