// Package storage implements the Record Writer of spec.md §4.E: typed,
// column-array batch inserts into the hot store, one table per
// record_type. Batching goes through pgx's CopyFrom so every row of a
// batch is shipped in one round trip, per spec.md's "amortize round trips"
// requirement.
package storage

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/scouter-ml/scouter/internal/types"
)

// RecordWriter persists ServerRecords batches into the hot store. It is
// idempotent only at the natural-uniqueness row level; duplicate batches
// are tolerated as independent observations, per spec.md §4.E.
type RecordWriter struct {
	pool *pgxpool.Pool
}

func NewRecordWriter(pool *pgxpool.Pool) *RecordWriter {
	return &RecordWriter{pool: pool}
}

var spcColumns = []string{"created_at", "ts", "space", "name", "version", "profile_uid", "feature", "value", "archived"}
var psiColumns = []string{"created_at", "ts", "space", "name", "version", "profile_uid", "feature", "bin_id", "bin_count", "archived"}
var customColumns = []string{"created_at", "ts", "space", "name", "version", "profile_uid", "metric", "value", "archived"}

// WriteBatch dispatches to the table matching records.RecordType.
func (w *RecordWriter) WriteBatch(ctx context.Context, records types.ServerRecords) error {
	switch records.RecordType {
	case types.RecordSpc:
		return w.writeSpc(ctx, records.Spc)
	case types.RecordPsi:
		return w.writePsi(ctx, records.Psi)
	case types.RecordCustom:
		return w.writeCustom(ctx, records.Custom)
	default:
		return fmt.Errorf("storage: unknown record_type %q", records.RecordType)
	}
}

func (w *RecordWriter) writeSpc(ctx context.Context, rows []types.SpcRecord) error {
	if len(rows) == 0 {
		return nil
	}
	src := &spcSource{rows: rows, idx: -1}
	_, err := w.pool.CopyFrom(ctx, pgx.Identifier{"scouter_spc_drift"}, spcColumns, src)
	if err != nil {
		return fmt.Errorf("storage: inserting spc batch: %w", err)
	}
	return nil
}

func (w *RecordWriter) writePsi(ctx context.Context, rows []types.PsiRecord) error {
	if len(rows) == 0 {
		return nil
	}
	src := &psiSource{rows: rows, idx: -1}
	_, err := w.pool.CopyFrom(ctx, pgx.Identifier{"scouter_psi_drift"}, psiColumns, src)
	if err != nil {
		return fmt.Errorf("storage: inserting psi batch: %w", err)
	}
	return nil
}

func (w *RecordWriter) writeCustom(ctx context.Context, rows []types.CustomRecord) error {
	if len(rows) == 0 {
		return nil
	}
	src := &customSource{rows: rows, idx: -1}
	_, err := w.pool.CopyFrom(ctx, pgx.Identifier{"scouter_custom_drift"}, customColumns, src)
	if err != nil {
		return fmt.Errorf("storage: inserting custom batch: %w", err)
	}
	return nil
}

// spcSource adapts a []SpcRecord to pgx.CopyFromSource for column-array
// binding.
type spcSource struct {
	rows []types.SpcRecord
	idx  int
}

func (s *spcSource) Next() bool { s.idx++; return s.idx < len(s.rows) }
func (s *spcSource) Values() ([]any, error) {
	r := s.rows[s.idx]
	return []any{r.CreatedAt, r.Ts, r.Space, r.Name, r.Version, r.ProfileUID, r.Feature, r.Value, r.Archived}, nil
}
func (s *spcSource) Err() error { return nil }

type psiSource struct {
	rows []types.PsiRecord
	idx  int
}

func (s *psiSource) Next() bool { s.idx++; return s.idx < len(s.rows) }
func (s *psiSource) Values() ([]any, error) {
	r := s.rows[s.idx]
	return []any{r.CreatedAt, r.Ts, r.Space, r.Name, r.Version, r.ProfileUID, r.Feature, r.BinID, r.BinCount, r.Archived}, nil
}
func (s *psiSource) Err() error { return nil }

type customSource struct {
	rows []types.CustomRecord
	idx  int
}

func (s *customSource) Next() bool { s.idx++; return s.idx < len(s.rows) }
func (s *customSource) Values() ([]any, error) {
	r := s.rows[s.idx]
	return []any{r.CreatedAt, r.Ts, r.Space, r.Name, r.Version, r.ProfileUID, r.Metric, r.Value, r.Archived}, nil
}
func (s *customSource) Err() error { return nil }
