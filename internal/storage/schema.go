package storage

// Schema holds the DDL for the hot-store tables, one per record_type plus
// drift_profile and drift_alert, per spec.md §6's persisted state layout.
// scouter_users is owned by the HTTP/auth surface, which spec.md treats as
// an external collaborator, so it is not defined here.
const Schema = `
CREATE TABLE IF NOT EXISTS scouter_spc_drift (
	id BIGSERIAL PRIMARY KEY,
	created_at TIMESTAMPTZ NOT NULL,
	ts TIMESTAMPTZ NOT NULL,
	space TEXT NOT NULL,
	name TEXT NOT NULL,
	version TEXT NOT NULL,
	profile_uid TEXT NOT NULL,
	feature TEXT NOT NULL,
	value DOUBLE PRECISION NOT NULL,
	archived BOOLEAN NOT NULL DEFAULT FALSE
);
CREATE INDEX IF NOT EXISTS idx_spc_profile_ts ON scouter_spc_drift (profile_uid, ts);

CREATE TABLE IF NOT EXISTS scouter_psi_drift (
	id BIGSERIAL PRIMARY KEY,
	created_at TIMESTAMPTZ NOT NULL,
	ts TIMESTAMPTZ NOT NULL,
	space TEXT NOT NULL,
	name TEXT NOT NULL,
	version TEXT NOT NULL,
	profile_uid TEXT NOT NULL,
	feature TEXT NOT NULL,
	bin_id BIGINT NOT NULL,
	bin_count BIGINT NOT NULL,
	archived BOOLEAN NOT NULL DEFAULT FALSE
);
CREATE INDEX IF NOT EXISTS idx_psi_profile_ts ON scouter_psi_drift (profile_uid, ts);

CREATE TABLE IF NOT EXISTS scouter_custom_drift (
	id BIGSERIAL PRIMARY KEY,
	created_at TIMESTAMPTZ NOT NULL,
	ts TIMESTAMPTZ NOT NULL,
	space TEXT NOT NULL,
	name TEXT NOT NULL,
	version TEXT NOT NULL,
	profile_uid TEXT NOT NULL,
	metric TEXT NOT NULL,
	value DOUBLE PRECISION NOT NULL,
	archived BOOLEAN NOT NULL DEFAULT FALSE
);
CREATE INDEX IF NOT EXISTS idx_custom_profile_ts ON scouter_custom_drift (profile_uid, ts);

CREATE TABLE IF NOT EXISTS drift_profile (
	uid TEXT PRIMARY KEY,
	space TEXT NOT NULL,
	name TEXT NOT NULL,
	version TEXT NOT NULL,
	drift_type TEXT NOT NULL,
	active BOOLEAN NOT NULL DEFAULT TRUE,
	body JSONB NOT NULL,
	next_run_at TIMESTAMPTZ,
	previous_run_at TIMESTAMPTZ,
	UNIQUE (space, name, version)
);
CREATE INDEX IF NOT EXISTS idx_profile_due ON drift_profile (next_run_at) WHERE active;

CREATE TABLE IF NOT EXISTS drift_alert (
	id TEXT PRIMARY KEY,
	ts TIMESTAMPTZ NOT NULL,
	profile_uid TEXT NOT NULL,
	feature_or_metric TEXT NOT NULL,
	kind TEXT NOT NULL,
	zone TEXT,
	details_json JSONB NOT NULL,
	active BOOLEAN NOT NULL DEFAULT TRUE
);
CREATE INDEX IF NOT EXISTS idx_alert_profile ON drift_alert (profile_uid);
`
