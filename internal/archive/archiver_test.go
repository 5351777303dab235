package archive

import (
	"context"
	"testing"
	"time"

	sqlmock "github.com/DATA-DOG/go-sqlmock"
	"github.com/jmoiron/sqlx"
	"github.com/scouter-ml/scouter/internal/objstore"
	"github.com/scouter-ml/scouter/internal/types"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func TestArchiver_RunOnceSpcUploadsAndMarksArchived(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	store, err := objstore.NewLocal(t.TempDir())
	require.NoError(t, err)

	a := New(sqlx.NewDb(db, "sqlmock"), store, zap.NewNop(), 24*time.Hour, 1, nil)

	now := time.Now().UTC().Truncate(time.Microsecond)
	cols := []string{"created_at", "ts", "space", "name", "version", "profile_uid", "feature", "value", "archived"}
	mock.ExpectQuery("SELECT DISTINCT profile_uid FROM scouter_spc_drift").
		WillReturnRows(sqlmock.NewRows([]string{"profile_uid"}).AddRow("uid-1"))
	mock.ExpectQuery("SELECT created_at, ts, space, name, version, profile_uid, feature, value, archived").
		WillReturnRows(sqlmock.NewRows(cols).
			AddRow(now, now, "space", "model", "1.0.0", "uid-1", "f1", 1.0, false))
	mock.ExpectExec("UPDATE scouter_spc_drift SET archived = TRUE").
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectQuery("SELECT created_at, ts, space, name, version, profile_uid, feature, value, archived").
		WillReturnRows(sqlmock.NewRows(cols))

	err = a.RunOnce(context.Background(), types.RecordSpc)
	require.NoError(t, err)
	require.NoError(t, mock.ExpectationsWereMet())

	objs, err := store.List(context.Background(), "uid-1/spc/")
	require.NoError(t, err)
	require.Len(t, objs, 1)
}
