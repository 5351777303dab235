package scheduler

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	sqlmock "github.com/DATA-DOG/go-sqlmock"
	"github.com/jmoiron/sqlx"
	"github.com/scouter-ml/scouter/internal/alert"
	"github.com/scouter-ml/scouter/internal/objstore"
	"github.com/scouter-ml/scouter/internal/reader"
	"github.com/scouter-ml/scouter/internal/registry"
	"github.com/scouter-ml/scouter/internal/types"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func TestScheduler_TickIdleWhenNoDueTask(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	sqlxDB := sqlx.NewDb(db, "sqlmock")
	reg := registry.New(sqlxDB)
	store, err := objstore.NewLocal(t.TempDir())
	require.NoError(t, err)
	rd := reader.New(sqlxDB, store, 24*time.Hour)
	dispatcher := alert.New(reg, zap.NewNop(), map[alert.DispatchType]alert.Sink{alert.DispatchConsole: alert.NewConsoleSink(zap.NewNop())})
	s := New(reg, rd, dispatcher, nil, zap.NewNop(), 1)

	mock.ExpectBegin()
	mock.ExpectQuery("SELECT uid, space, name, version, drift_type, active, body, next_run_at, previous_run_at FROM drift_profile").
		WillReturnRows(sqlmock.NewRows([]string{"uid", "space", "name", "version", "drift_type", "active", "body", "next_run_at", "previous_run_at"}))
	mock.ExpectRollback()

	processed, err := s.tick(context.Background())
	require.NoError(t, err)
	require.False(t, processed)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestScheduler_TickProcessesCustomProfileWithEmptyWindow(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	sqlxDB := sqlx.NewDb(db, "sqlmock")
	reg := registry.New(sqlxDB)
	store, err := objstore.NewLocal(t.TempDir())
	require.NoError(t, err)
	rd := reader.New(sqlxDB, store, 24*time.Hour)
	dispatcher := alert.New(reg, zap.NewNop(), map[alert.DispatchType]alert.Sink{alert.DispatchConsole: alert.NewConsoleSink(zap.NewNop())})
	s := New(reg, rd, dispatcher, nil, zap.NewNop(), 1)

	delta := 1.0
	profile := types.CustomProfile{
		Header: types.Header{
			UID: "uid-1", DriftType: types.DriftCustom,
			AlertConfig: types.AlertConfig{Cron: "0 0 * * * * *", DispatchType: "Console"},
		},
		Metrics: map[string]types.CustomMetricConfig{
			"accuracy": {Baseline: 12.02, Direction: types.DirectionAbove, Delta: &delta},
		},
	}
	body, err := json.Marshal(profile)
	require.NoError(t, err)

	now := time.Now().UTC()
	cols := []string{"uid", "space", "name", "version", "drift_type", "active", "body", "next_run_at", "previous_run_at"}
	mock.ExpectBegin()
	mock.ExpectQuery("SELECT uid, space, name, version, drift_type, active, body, next_run_at, previous_run_at FROM drift_profile").
		WillReturnRows(sqlmock.NewRows(cols).AddRow("uid-1", "space", "model", "1.0.0", "custom", true, body, now, nil))
	mock.ExpectQuery("SELECT created_at, ts, space, name, version, profile_uid, metric, value, archived").
		WillReturnRows(sqlmock.NewRows([]string{"created_at", "ts", "space", "name", "version", "profile_uid", "metric", "value", "archived"}))
	mock.ExpectExec("UPDATE drift_profile SET previous_run_at").WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()

	processed, err := s.tick(context.Background())
	require.NoError(t, err)
	require.True(t, processed)
	require.NoError(t, mock.ExpectationsWereMet())
}
