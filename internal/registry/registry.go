// Package registry implements the Profile Registry of spec.md §4.F:
// insert/update/activate profiles, resolve by identity, and claim due
// scheduled tasks with SELECT ... FOR UPDATE SKIP LOCKED semantics so only
// one scheduler worker processes a given due profile per tick.
package registry

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/scouter-ml/scouter/internal/scoutererr"
	"github.com/scouter-ml/scouter/internal/types"
)

// Registry is backed by the same Postgres database the hot store uses,
// queried through sqlx for struct-scan ergonomics, per spec.md §4.F.
type Registry struct {
	db *sqlx.DB
}

func New(db *sqlx.DB) *Registry {
	return &Registry{db: db}
}

type profileRecord struct {
	UID           string         `db:"uid"`
	Space         string         `db:"space"`
	Name          string         `db:"name"`
	Version       string         `db:"version"`
	DriftType     string         `db:"drift_type"`
	Active        bool           `db:"active"`
	Body          []byte         `db:"body"`
	NextRunAt     sql.NullTime   `db:"next_run_at"`
	PreviousRunAt sql.NullTime   `db:"previous_run_at"`
}

func toRow(r profileRecord) types.ProfileRow {
	row := types.ProfileRow{
		UID:       r.UID,
		Space:     r.Space,
		Name:      r.Name,
		Version:   r.Version,
		DriftType: types.DriftType(r.DriftType),
		Active:    r.Active,
		Body:      json.RawMessage(r.Body),
	}
	if r.NextRunAt.Valid {
		row.NextRunAt = r.NextRunAt.Time.Unix()
	}
	if r.PreviousRunAt.Valid {
		row.PrevRunAt = r.PreviousRunAt.Time.Unix()
	}
	return row
}

// Register inserts a new profile. A second Register call for the same
// (space, name, version) returns ErrAlreadyExists rather than inserting a
// duplicate, per spec.md §8's idempotence property.
func (r *Registry) Register(ctx context.Context, space, name, version string, driftType types.DriftType, body any, cronExpr string) (string, error) {
	uid := uuid.NewString()
	payload, err := json.Marshal(body)
	if err != nil {
		return "", fmt.Errorf("registry: marshaling profile body: %w", err)
	}

	next, err := types.Next(cronExpr, time.Now().UTC())
	if err != nil {
		return "", fmt.Errorf("registry: computing first run: %w", err)
	}

	_, err = r.db.ExecContext(ctx, `
		INSERT INTO drift_profile (uid, space, name, version, drift_type, active, body, next_run_at, previous_run_at)
		VALUES ($1, $2, $3, $4, $5, TRUE, $6, $7, NULL)
		ON CONFLICT (space, name, version) DO NOTHING
	`, uid, space, name, version, string(driftType), payload, next)
	if err != nil {
		return "", fmt.Errorf("registry: inserting profile: %w", err)
	}

	existing, err := r.GetByIdentity(ctx, space, name, version)
	if err != nil {
		return "", err
	}
	if existing.UID != uid {
		return existing.UID, scoutererr.ErrAlreadyExists
	}
	return uid, nil
}

// GetByUID resolves a profile by its globally unique uid.
func (r *Registry) GetByUID(ctx context.Context, uid string) (types.ProfileRow, error) {
	var rec profileRecord
	err := r.db.GetContext(ctx, &rec, `SELECT uid, space, name, version, drift_type, active, body, next_run_at, previous_run_at FROM drift_profile WHERE uid = $1`, uid)
	if errors.Is(err, sql.ErrNoRows) {
		return types.ProfileRow{}, scoutererr.ErrNotFound
	}
	if err != nil {
		return types.ProfileRow{}, fmt.Errorf("registry: GetByUID: %w", err)
	}
	return toRow(rec), nil
}

// GetByIdentity resolves a profile by its unique (space, name, version).
func (r *Registry) GetByIdentity(ctx context.Context, space, name, version string) (types.ProfileRow, error) {
	var rec profileRecord
	err := r.db.GetContext(ctx, &rec, `SELECT uid, space, name, version, drift_type, active, body, next_run_at, previous_run_at FROM drift_profile WHERE space=$1 AND name=$2 AND version=$3`, space, name, version)
	if errors.Is(err, sql.ErrNoRows) {
		return types.ProfileRow{}, scoutererr.ErrNotFound
	}
	if err != nil {
		return types.ProfileRow{}, fmt.Errorf("registry: GetByIdentity: %w", err)
	}
	return toRow(rec), nil
}

// UpdateBody replaces a profile's JSON body.
func (r *Registry) UpdateBody(ctx context.Context, uid string, body any) error {
	payload, err := json.Marshal(body)
	if err != nil {
		return fmt.Errorf("registry: marshaling profile body: %w", err)
	}
	_, err = r.db.ExecContext(ctx, `UPDATE drift_profile SET body = $1 WHERE uid = $2`, payload, uid)
	if err != nil {
		return fmt.Errorf("registry: updating profile body: %w", err)
	}
	return nil
}

// SetActive toggles a profile's active flag.
func (r *Registry) SetActive(ctx context.Context, uid string, active bool) error {
	_, err := r.db.ExecContext(ctx, `UPDATE drift_profile SET active = $1 WHERE uid = $2`, active, uid)
	if err != nil {
		return fmt.Errorf("registry: setting active: %w", err)
	}
	return nil
}

// ListDue returns every active profile whose next_run_at is due.
func (r *Registry) ListDue(ctx context.Context, now time.Time) ([]types.ProfileRow, error) {
	var recs []profileRecord
	err := r.db.SelectContext(ctx, &recs, `
		SELECT uid, space, name, version, drift_type, active, body, next_run_at, previous_run_at
		FROM drift_profile
		WHERE active AND next_run_at <= $1
	`, now)
	if err != nil {
		return nil, fmt.Errorf("registry: listing due profiles: %w", err)
	}
	rows := make([]types.ProfileRow, len(recs))
	for i, rec := range recs {
		rows[i] = toRow(rec)
	}
	return rows, nil
}

// ClaimDueTask atomically claims at most one due, active profile using
// SELECT ... FOR UPDATE SKIP LOCKED, so concurrent scheduler workers never
// claim the same profile in the same tick, per spec.md §4.F/§8 scenario 6.
// ok is false when no due task is currently available. The caller must
// invoke tx.Commit or tx.Rollback.
func (r *Registry) ClaimDueTask(ctx context.Context, now time.Time) (tx *sqlx.Tx, row types.ProfileRow, ok bool, err error) {
	tx, err = r.db.BeginTxx(ctx, nil)
	if err != nil {
		return nil, types.ProfileRow{}, false, fmt.Errorf("registry: beginning claim tx: %w", err)
	}

	var rec profileRecord
	err = tx.GetContext(ctx, &rec, `
		SELECT uid, space, name, version, drift_type, active, body, next_run_at, previous_run_at
		FROM drift_profile
		WHERE active AND next_run_at <= $1
		ORDER BY next_run_at
		FOR UPDATE SKIP LOCKED
		LIMIT 1
	`, now)
	if errors.Is(err, sql.ErrNoRows) {
		_ = tx.Rollback()
		return nil, types.ProfileRow{}, false, nil
	}
	if err != nil {
		_ = tx.Rollback()
		return nil, types.ProfileRow{}, false, fmt.Errorf("registry: claiming due task: %w", err)
	}
	return tx, toRow(rec), true, nil
}

// CompleteTask records a successful evaluation: previous_run_at becomes
// now, and next_run_at advances per the profile's cron schedule.
func (r *Registry) CompleteTask(ctx context.Context, tx *sqlx.Tx, uid, cronExpr string, now time.Time) error {
	next, err := types.Next(cronExpr, now)
	if err != nil {
		return fmt.Errorf("registry: computing next run: %w", err)
	}
	_, err = tx.ExecContext(ctx, `UPDATE drift_profile SET previous_run_at = $1, next_run_at = $2 WHERE uid = $3`, now, next, uid)
	if err != nil {
		return fmt.Errorf("registry: completing task: %w", err)
	}
	return nil
}

// PersistAlert stores a dispatched alert row, independent of dispatch
// success, per spec.md §4.K.
func (r *Registry) PersistAlert(ctx context.Context, alert types.DriftAlert) error {
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO drift_alert (id, ts, profile_uid, feature_or_metric, kind, zone, details_json, active)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
	`, alert.ID, alert.Ts, alert.ProfileUID, alert.FeatureOrMetric, alert.Kind, alert.Zone, alert.DetailsJSON, alert.Active)
	if err != nil {
		return fmt.Errorf("registry: persisting alert: %w", err)
	}
	return nil
}
