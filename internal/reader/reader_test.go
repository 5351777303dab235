package reader

import (
	"bytes"
	"context"
	"testing"
	"time"

	sqlmock "github.com/DATA-DOG/go-sqlmock"
	"github.com/jmoiron/sqlx"
	"github.com/scouter-ml/scouter/internal/archive"
	"github.com/scouter-ml/scouter/internal/objstore"
	"github.com/scouter-ml/scouter/internal/types"
	"github.com/stretchr/testify/require"
)

func TestReader_SpcMergesHotStoreAndArchived(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	store, err := objstore.NewLocal(t.TempDir())
	require.NoError(t, err)

	now := time.Now().UTC().Truncate(time.Minute)
	retention := time.Hour

	// Seed one archived batch older than the retention cutoff.
	w := archive.NewParquetWriter()
	archivedTs := now.Add(-2 * time.Hour)
	data, err := w.WriteSpc([]types.SpcRecord{
		{CreatedAt: archivedTs, Ts: archivedTs, Space: "s", Name: "n", Version: "v", ProfileUID: "uid-1", Feature: "f1", Value: 10},
	})
	require.NoError(t, err)
	require.NoError(t, store.Put(context.Background(), "uid-1/spc/old.parquet", bytes.NewReader(data), int64(len(data))))

	cols := []string{"created_at", "ts", "space", "name", "version", "profile_uid", "feature", "value", "archived"}
	mock.ExpectQuery("SELECT created_at, ts, space, name, version, profile_uid, feature, value, archived").
		WillReturnRows(sqlmock.NewRows(cols).
			AddRow(now, now, "s", "n", "v", "uid-1", "f1", 20.0, false))

	rd := New(sqlx.NewDb(db, "sqlmock"), store, retention)

	req := types.DriftRequest{
		EntityID:      "uid-1",
		RecordType:    types.RecordSpc,
		Interval:      types.CustomInterval,
		MaxDataPoints: 10,
		CustomRange:   &types.CustomRange{Start: now.Add(-3 * time.Hour), End: now},
	}

	got, err := rd.Spc(context.Background(), req, now)
	require.NoError(t, err)
	require.Contains(t, got.Features, "f1")
	series := got.Features["f1"]
	require.Len(t, series.Values, 2)
	require.NoError(t, mock.ExpectationsWereMet())
}
