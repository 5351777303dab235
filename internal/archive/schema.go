package archive

import "github.com/apache/arrow/go/v16/arrow"

// Arrow schemas mirror the hot-store column layout minus the id and
// archived columns, so the unified reader can treat an archived parquet
// file and a live hot-store row set as the same shape, per spec.md §4.H.

var spcSchema = arrow.NewSchema([]arrow.Field{
	{Name: "created_at", Type: arrow.FixedWidthTypes.Timestamp_us},
	{Name: "ts", Type: arrow.FixedWidthTypes.Timestamp_us},
	{Name: "space", Type: arrow.BinaryTypes.String},
	{Name: "name", Type: arrow.BinaryTypes.String},
	{Name: "version", Type: arrow.BinaryTypes.String},
	{Name: "profile_uid", Type: arrow.BinaryTypes.String},
	{Name: "feature", Type: arrow.BinaryTypes.String},
	{Name: "value", Type: arrow.PrimitiveTypes.Float64},
}, nil)

var psiSchema = arrow.NewSchema([]arrow.Field{
	{Name: "created_at", Type: arrow.FixedWidthTypes.Timestamp_us},
	{Name: "ts", Type: arrow.FixedWidthTypes.Timestamp_us},
	{Name: "space", Type: arrow.BinaryTypes.String},
	{Name: "name", Type: arrow.BinaryTypes.String},
	{Name: "version", Type: arrow.BinaryTypes.String},
	{Name: "profile_uid", Type: arrow.BinaryTypes.String},
	{Name: "feature", Type: arrow.BinaryTypes.String},
	{Name: "bin_id", Type: arrow.PrimitiveTypes.Int64},
	{Name: "bin_count", Type: arrow.PrimitiveTypes.Int64},
}, nil)

var customSchema = arrow.NewSchema([]arrow.Field{
	{Name: "created_at", Type: arrow.FixedWidthTypes.Timestamp_us},
	{Name: "ts", Type: arrow.FixedWidthTypes.Timestamp_us},
	{Name: "space", Type: arrow.BinaryTypes.String},
	{Name: "name", Type: arrow.BinaryTypes.String},
	{Name: "version", Type: arrow.BinaryTypes.String},
	{Name: "profile_uid", Type: arrow.BinaryTypes.String},
	{Name: "metric", Type: arrow.BinaryTypes.String},
	{Name: "value", Type: arrow.PrimitiveTypes.Float64},
}, nil)
