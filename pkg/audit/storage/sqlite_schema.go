package storage

// SchemaVersion is the current database schema version.
const SchemaVersion = 1

// Schema contains the SQL statements to create the audit database schema.
// Timestamps are stored as Unix nanoseconds so range filters compare
// numerically.
const Schema = `
CREATE TABLE IF NOT EXISTS audit_records (
    id TEXT PRIMARY KEY,
    correlation_id TEXT NOT NULL,

    tenant_id TEXT NOT NULL,
    action TEXT NOT NULL,
    plan TEXT,
    feature TEXT,
    quota TEXT,

    outcome TEXT NOT NULL,
    reason TEXT,
    attempts INTEGER NOT NULL DEFAULT 0,
    error_class TEXT,
    error TEXT,

    duration_ms INTEGER NOT NULL DEFAULT 0,
    timestamp_ns INTEGER NOT NULL
);

CREATE TABLE IF NOT EXISTS schema_version (
    version INTEGER PRIMARY KEY,
    applied_at TIMESTAMP NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_audit_timestamp ON audit_records(timestamp_ns);
CREATE INDEX IF NOT EXISTS idx_audit_tenant ON audit_records(tenant_id);
CREATE INDEX IF NOT EXISTS idx_audit_outcome ON audit_records(outcome);
CREATE INDEX IF NOT EXISTS idx_audit_correlation ON audit_records(correlation_id);
`

// InsertSchemaVersion inserts the schema version into the schema_version table.
const InsertSchemaVersion = `
INSERT INTO schema_version (version, applied_at)
VALUES (?, datetime('now'))
ON CONFLICT(version) DO NOTHING;
`

// GetSchemaVersion retrieves the current schema version from the database.
const GetSchemaVersion = `
SELECT version FROM schema_version ORDER BY version DESC LIMIT 1;
`

const selectColumns = `id, correlation_id, tenant_id, action, plan, feature, quota,
outcome, reason, attempts, error_class, error, duration_ms, timestamp_ns`
