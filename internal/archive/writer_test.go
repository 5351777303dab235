package archive

import (
	"context"
	"testing"
	"time"

	"github.com/scouter-ml/scouter/internal/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParquetWriterReaderRoundTripsSpc(t *testing.T) {
	w := NewParquetWriter()
	now := time.Now().UTC().Truncate(time.Microsecond)
	rows := []types.SpcRecord{
		{CreatedAt: now, Ts: now, Space: "space", Name: "model", Version: "1.0.0", ProfileUID: "uid-1", Feature: "f1", Value: 1.5},
		{CreatedAt: now, Ts: now.Add(time.Second), Space: "space", Name: "model", Version: "1.0.0", ProfileUID: "uid-1", Feature: "f2", Value: -2.25},
	}

	data, err := w.WriteSpc(rows)
	require.NoError(t, err)
	require.NotEmpty(t, data)

	r := NewParquetReader()
	got, err := r.ReadSpc(context.Background(), data)
	require.NoError(t, err)
	require.Len(t, got, 2)
	assert.Equal(t, "f1", got[0].Feature)
	assert.Equal(t, 1.5, got[0].Value)
	assert.True(t, got[0].Archived)
	assert.Equal(t, "f2", got[1].Feature)
	assert.Equal(t, -2.25, got[1].Value)
}

func TestParquetWriterReaderRoundTripsPsi(t *testing.T) {
	w := NewParquetWriter()
	now := time.Now().UTC().Truncate(time.Microsecond)
	rows := []types.PsiRecord{
		{CreatedAt: now, Ts: now, Space: "space", Name: "model", Version: "1.0.0", ProfileUID: "uid-1", Feature: "f1", BinID: 0, BinCount: 42},
	}

	data, err := w.WritePsi(rows)
	require.NoError(t, err)

	r := NewParquetReader()
	got, err := r.ReadPsi(context.Background(), data)
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, int64(42), got[0].BinCount)
}

func TestParquetWriterReaderRoundTripsCustom(t *testing.T) {
	w := NewParquetWriter()
	now := time.Now().UTC().Truncate(time.Microsecond)
	rows := []types.CustomRecord{
		{CreatedAt: now, Ts: now, Space: "space", Name: "model", Version: "1.0.0", ProfileUID: "uid-1", Metric: "accuracy", Value: 0.97},
	}

	data, err := w.WriteCustom(rows)
	require.NoError(t, err)

	r := NewParquetReader()
	got, err := r.ReadCustom(context.Background(), data)
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, "accuracy", got[0].Metric)
	assert.InDelta(t, 0.97, got[0].Value, 1e-9)
}
