package registry

import (
	"context"
	"testing"
	"time"

	sqlmock "github.com/DATA-DOG/go-sqlmock"
	"github.com/jmoiron/sqlx"
	"github.com/scouter-ml/scouter/internal/scoutererr"
	"github.com/scouter-ml/scouter/internal/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newMockRegistry(t *testing.T) (*Registry, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })
	return New(sqlx.NewDb(db, "sqlmock")), mock
}

func TestRegistry_RegisterTwiceSignalsAlreadyExists(t *testing.T) {
	r, mock := newMockRegistry(t)
	ctx := context.Background()

	rows := sqlmock.NewRows([]string{"uid", "space", "name", "version", "drift_type", "active", "body", "next_run_at", "previous_run_at"}).
		AddRow("existing-uid", "space", "model", "1.0.0", "spc", true, []byte(`{}`), time.Now(), nil)

	mock.ExpectExec("INSERT INTO drift_profile").WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectQuery("SELECT uid, space, name, version, drift_type, active, body, next_run_at, previous_run_at FROM drift_profile WHERE space").
		WillReturnRows(rows)

	uid, err := r.Register(ctx, "space", "model", "1.0.0", types.DriftSpc, map[string]any{}, "0 0 * * * * *")
	assert.ErrorIs(t, err, scoutererr.ErrAlreadyExists)
	assert.Equal(t, "existing-uid", uid)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestRegistry_GetByUIDNotFound(t *testing.T) {
	r, mock := newMockRegistry(t)
	ctx := context.Background()

	mock.ExpectQuery("SELECT uid, space, name, version, drift_type, active, body, next_run_at, previous_run_at FROM drift_profile WHERE uid").
		WillReturnRows(sqlmock.NewRows([]string{"uid", "space", "name", "version", "drift_type", "active", "body", "next_run_at", "previous_run_at"}))

	_, err := r.GetByUID(ctx, "missing")
	assert.ErrorIs(t, err, scoutererr.ErrNotFound)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestRegistry_ClaimDueTaskNoneAvailable(t *testing.T) {
	r, mock := newMockRegistry(t)
	ctx := context.Background()

	mock.ExpectBegin()
	mock.ExpectQuery("SELECT uid, space, name, version, drift_type, active, body, next_run_at, previous_run_at FROM drift_profile").
		WillReturnRows(sqlmock.NewRows([]string{"uid", "space", "name", "version", "drift_type", "active", "body", "next_run_at", "previous_run_at"}))
	mock.ExpectRollback()

	tx, _, ok, err := r.ClaimDueTask(ctx, time.Now())
	require.NoError(t, err)
	assert.False(t, ok)
	assert.Nil(t, tx)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestRegistry_ClaimDueTaskReturnsOpenTxForCaller(t *testing.T) {
	r, mock := newMockRegistry(t)
	ctx := context.Background()

	rows := sqlmock.NewRows([]string{"uid", "space", "name", "version", "drift_type", "active", "body", "next_run_at", "previous_run_at"}).
		AddRow("uid-1", "space", "model", "1.0.0", "psi", true, []byte(`{}`), time.Now(), nil)

	mock.ExpectBegin()
	mock.ExpectQuery("SELECT uid, space, name, version, drift_type, active, body, next_run_at, previous_run_at FROM drift_profile").
		WillReturnRows(rows)
	mock.ExpectCommit()

	tx, row, ok, err := r.ClaimDueTask(ctx, time.Now())
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, "uid-1", row.UID)
	assert.Equal(t, types.DriftPsi, row.DriftType)
	require.NoError(t, tx.Commit())
	require.NoError(t, mock.ExpectationsWereMet())
}
