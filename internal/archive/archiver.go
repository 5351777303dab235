package archive

import (
	"bytes"
	"context"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/scouter-ml/scouter/internal/metrics"
	"github.com/scouter-ml/scouter/internal/objstore"
	"github.com/scouter-ml/scouter/internal/types"
	"go.uber.org/zap"
)

// Archiver periodically moves rows older than retention out of the hot
// store and into object storage as parquet, then flips their archived
// flag, per spec.md §4.G. It runs one pass per call to RunOnce so the
// caller (a cron-style loop in cmd/scouter-server) controls cadence.
type Archiver struct {
	db        *sqlx.DB
	store     objstore.Store
	log       *zap.Logger
	retention time.Duration
	batchSize int
	metrics   *metrics.Registry

	writer *ParquetWriter
}

func New(db *sqlx.DB, store objstore.Store, log *zap.Logger, retention time.Duration, batchSize int, m *metrics.Registry) *Archiver {
	return &Archiver{
		db:        db,
		store:     store,
		log:       log,
		retention: retention,
		batchSize: batchSize,
		metrics:   m,
		writer:    NewParquetWriter(),
	}
}

func (a *Archiver) recordBatch(recordType types.RecordType, rows int) {
	if a.metrics == nil {
		return
	}
	a.metrics.ArchiverBatches.WithLabelValues(string(recordType)).Inc()
	a.metrics.ArchiverRows.WithLabelValues(string(recordType)).Add(float64(rows))
}

// RunOnce archives one record_type's eligible rows: for each entity
// (profile_uid) with unarchived rows at or before cutoff, everything in
// that entity's range is written as its own parquet object and marked
// archived, per spec.md §4.G's "get_entities_to_archive" / per-entity
// loop — one object never mixes rows from more than one entity.
func (a *Archiver) RunOnce(ctx context.Context, recordType types.RecordType) error {
	cutoff := time.Now().Add(-a.retention)
	switch recordType {
	case types.RecordSpc:
		return a.archiveSpc(ctx, cutoff)
	case types.RecordPsi:
		return a.archivePsi(ctx, cutoff)
	case types.RecordCustom:
		return a.archiveCustom(ctx, cutoff)
	default:
		return fmt.Errorf("archive: unknown record_type %q", recordType)
	}
}

// entitiesToArchive lists the distinct profile_uids with at least one
// unarchived row at or before cutoff in table, per spec.md §4.G step 1.
func (a *Archiver) entitiesToArchive(ctx context.Context, table string, cutoff time.Time) ([]string, error) {
	var ids []string
	err := a.db.SelectContext(ctx, &ids, fmt.Sprintf(`
		SELECT DISTINCT profile_uid FROM %s WHERE NOT archived AND ts <= $1
	`, table), cutoff)
	if err != nil {
		return nil, fmt.Errorf("archive: listing entities to archive: %w", err)
	}
	return ids, nil
}

func (a *Archiver) archiveSpc(ctx context.Context, cutoff time.Time) error {
	entities, err := a.entitiesToArchive(ctx, "scouter_spc_drift", cutoff)
	if err != nil {
		return err
	}
	for _, entityID := range entities {
		if err := a.archiveSpcEntity(ctx, entityID, cutoff); err != nil {
			a.log.Error("archiving spc entity failed", zap.String("entity_id", entityID), zap.Error(err))
		}
	}
	return nil
}

func (a *Archiver) archiveSpcEntity(ctx context.Context, entityID string, cutoff time.Time) error {
	for {
		var rows []types.SpcRecord
		err := a.db.SelectContext(ctx, &rows, `
			SELECT created_at, ts, space, name, version, profile_uid, feature, value, archived
			FROM scouter_spc_drift WHERE NOT archived AND ts <= $1 AND profile_uid = $2 ORDER BY ts LIMIT $3
		`, cutoff, entityID, a.batchSize)
		if err != nil {
			return fmt.Errorf("archive: selecting spc rows: %w", err)
		}
		if len(rows) == 0 {
			return nil
		}

		data, err := a.writer.WriteSpc(rows)
		if err != nil {
			return err
		}
		key := objectKey(entityID, "spc", rows[0].Ts, rows[len(rows)-1].Ts)
		if err := a.store.Put(ctx, key, bytes.NewReader(data), int64(len(data))); err != nil {
			return fmt.Errorf("archive: uploading spc batch: %w", err)
		}

		if _, err := a.db.ExecContext(ctx, `
			UPDATE scouter_spc_drift SET archived = TRUE
			WHERE NOT archived AND ts <= $1 AND ts >= $2 AND profile_uid = $3
		`, rows[len(rows)-1].Ts, rows[0].Ts, entityID); err != nil {
			return fmt.Errorf("archive: marking spc rows archived: %w", err)
		}
		a.log.Info("archived spc batch", zap.String("key", key), zap.Int("rows", len(rows)))
		a.recordBatch(types.RecordSpc, len(rows))

		if len(rows) < a.batchSize {
			return nil
		}
	}
}

func (a *Archiver) archivePsi(ctx context.Context, cutoff time.Time) error {
	entities, err := a.entitiesToArchive(ctx, "scouter_psi_drift", cutoff)
	if err != nil {
		return err
	}
	for _, entityID := range entities {
		if err := a.archivePsiEntity(ctx, entityID, cutoff); err != nil {
			a.log.Error("archiving psi entity failed", zap.String("entity_id", entityID), zap.Error(err))
		}
	}
	return nil
}

func (a *Archiver) archivePsiEntity(ctx context.Context, entityID string, cutoff time.Time) error {
	for {
		var rows []types.PsiRecord
		err := a.db.SelectContext(ctx, &rows, `
			SELECT created_at, ts, space, name, version, profile_uid, feature, bin_id, bin_count, archived
			FROM scouter_psi_drift WHERE NOT archived AND ts <= $1 AND profile_uid = $2 ORDER BY ts LIMIT $3
		`, cutoff, entityID, a.batchSize)
		if err != nil {
			return fmt.Errorf("archive: selecting psi rows: %w", err)
		}
		if len(rows) == 0 {
			return nil
		}

		data, err := a.writer.WritePsi(rows)
		if err != nil {
			return err
		}
		key := objectKey(entityID, "psi", rows[0].Ts, rows[len(rows)-1].Ts)
		if err := a.store.Put(ctx, key, bytes.NewReader(data), int64(len(data))); err != nil {
			return fmt.Errorf("archive: uploading psi batch: %w", err)
		}

		if _, err := a.db.ExecContext(ctx, `
			UPDATE scouter_psi_drift SET archived = TRUE
			WHERE NOT archived AND ts <= $1 AND ts >= $2 AND profile_uid = $3
		`, rows[len(rows)-1].Ts, rows[0].Ts, entityID); err != nil {
			return fmt.Errorf("archive: marking psi rows archived: %w", err)
		}
		a.log.Info("archived psi batch", zap.String("key", key), zap.Int("rows", len(rows)))
		a.recordBatch(types.RecordPsi, len(rows))

		if len(rows) < a.batchSize {
			return nil
		}
	}
}

func (a *Archiver) archiveCustom(ctx context.Context, cutoff time.Time) error {
	entities, err := a.entitiesToArchive(ctx, "scouter_custom_drift", cutoff)
	if err != nil {
		return err
	}
	for _, entityID := range entities {
		if err := a.archiveCustomEntity(ctx, entityID, cutoff); err != nil {
			a.log.Error("archiving custom entity failed", zap.String("entity_id", entityID), zap.Error(err))
		}
	}
	return nil
}

func (a *Archiver) archiveCustomEntity(ctx context.Context, entityID string, cutoff time.Time) error {
	for {
		var rows []types.CustomRecord
		err := a.db.SelectContext(ctx, &rows, `
			SELECT created_at, ts, space, name, version, profile_uid, metric, value, archived
			FROM scouter_custom_drift WHERE NOT archived AND ts <= $1 AND profile_uid = $2 ORDER BY ts LIMIT $3
		`, cutoff, entityID, a.batchSize)
		if err != nil {
			return fmt.Errorf("archive: selecting custom rows: %w", err)
		}
		if len(rows) == 0 {
			return nil
		}

		data, err := a.writer.WriteCustom(rows)
		if err != nil {
			return err
		}
		key := objectKey(entityID, "custom", rows[0].Ts, rows[len(rows)-1].Ts)
		if err := a.store.Put(ctx, key, bytes.NewReader(data), int64(len(data))); err != nil {
			return fmt.Errorf("archive: uploading custom batch: %w", err)
		}

		if _, err := a.db.ExecContext(ctx, `
			UPDATE scouter_custom_drift SET archived = TRUE
			WHERE NOT archived AND ts <= $1 AND ts >= $2 AND profile_uid = $3
		`, rows[len(rows)-1].Ts, rows[0].Ts, entityID); err != nil {
			return fmt.Errorf("archive: marking custom rows archived: %w", err)
		}
		a.log.Info("archived custom batch", zap.String("key", key), zap.Int("rows", len(rows)))
		a.recordBatch(types.RecordCustom, len(rows))

		if len(rows) < a.batchSize {
			return nil
		}
	}
}

// objectKey builds the parquet path partitioned first by entity_id, then
// by record_type, then by the entity's time range, per spec.md §6.
func objectKey(entityID, family string, begin, end time.Time) string {
	return fmt.Sprintf("%s/%s/%d-%d.parquet", entityID, family, begin.Unix(), end.Unix())
}
