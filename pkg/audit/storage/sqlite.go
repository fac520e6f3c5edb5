package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	_ "github.com/mattn/go-sqlite3"

	"mercator-hq/tollgate/pkg/audit"
)

// SQLiteConfig contains configuration for the SQLite audit store.
type SQLiteConfig struct {
	// Path is the database file path.
	Path string `yaml:"path"`

	// MaxOpenConns is the maximum number of open connections to the database.
	// Default: 10
	MaxOpenConns int `yaml:"max_open_conns"`

	// MaxIdleConns is the maximum number of idle connections.
	// Default: 5
	MaxIdleConns int `yaml:"max_idle_conns"`

	// WALMode enables Write-Ahead Logging mode for better concurrency.
	// Default: true
	WALMode bool `yaml:"wal_mode"`

	// BusyTimeout is the duration to wait when the database is locked.
	// Default: 5 seconds
	BusyTimeout time.Duration `yaml:"busy_timeout"`
}

// DefaultSQLiteConfig returns the default SQLite configuration.
func DefaultSQLiteConfig() *SQLiteConfig {
	return &SQLiteConfig{
		Path:         "data/audit.db",
		MaxOpenConns: 10,
		MaxIdleConns: 5,
		WALMode:      true,
		BusyTimeout:  5 * time.Second,
	}
}

// SQLiteStore implements audit.Store using SQLite.
type SQLiteStore struct {
	db     *sql.DB
	config *SQLiteConfig
	logger *slog.Logger
}

// NewSQLiteStore opens the database at config.Path and applies the schema.
func NewSQLiteStore(config *SQLiteConfig) (*SQLiteStore, error) {
	if config == nil {
		config = DefaultSQLiteConfig()
	}
	if config.Path == "" {
		return nil, audit.NewStorageError("sqlite", "open", errors.New("path is required"))
	}
	if config.MaxOpenConns <= 0 {
		config.MaxOpenConns = 10
	}
	if config.MaxIdleConns <= 0 {
		config.MaxIdleConns = 5
	}
	if config.BusyTimeout <= 0 {
		config.BusyTimeout = 5 * time.Second
	}

	logger := slog.Default().With("component", "audit.storage.sqlite")

	db, err := sql.Open("sqlite3", config.Path)
	if err != nil {
		return nil, audit.NewStorageError("sqlite", "open", err)
	}
	db.SetMaxOpenConns(config.MaxOpenConns)
	db.SetMaxIdleConns(config.MaxIdleConns)

	s := &SQLiteStore{
		db:     db,
		config: config,
		logger: logger,
	}

	if err := s.initialize(); err != nil {
		db.Close()
		return nil, err
	}

	logger.Info("SQLite audit store initialized",
		"path", config.Path,
		"wal_mode", config.WALMode,
		"max_open_conns", config.MaxOpenConns,
	)

	return s, nil
}

func (s *SQLiteStore) initialize() error {
	if s.config.WALMode {
		if _, err := s.db.Exec("PRAGMA journal_mode=WAL;"); err != nil {
			return audit.NewStorageError("sqlite", "enable_wal", err)
		}
	}

	if _, err := s.db.Exec(fmt.Sprintf("PRAGMA busy_timeout=%d;", s.config.BusyTimeout.Milliseconds())); err != nil {
		return audit.NewStorageError("sqlite", "set_busy_timeout", err)
	}

	if _, err := s.db.Exec(Schema); err != nil {
		return audit.NewStorageError("sqlite", "create_schema", err)
	}

	if _, err := s.db.Exec(InsertSchemaVersion, SchemaVersion); err != nil {
		return audit.NewStorageError("sqlite", "insert_schema_version", err)
	}

	var version int
	err := s.db.QueryRow(GetSchemaVersion).Scan(&version)
	if err != nil && err != sql.ErrNoRows {
		return audit.NewStorageError("sqlite", "get_schema_version", err)
	}
	if version != SchemaVersion {
		return audit.NewStorageError("sqlite", "schema_version_mismatch",
			fmt.Errorf("expected schema version %d, got %d", SchemaVersion, version))
	}

	s.logger.Debug("schema version verified", "version", version)
	return nil
}

// Write persists a record.
func (s *SQLiteStore) Write(ctx context.Context, record *audit.Record) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO audit_records (`+selectColumns+`)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		record.ID, record.CorrelationID,
		record.TenantID, record.Action, nullString(record.Plan), nullString(record.Feature), nullString(record.Quota),
		string(record.Outcome), nullString(record.Reason), record.Attempts, nullString(record.ErrorClass), nullString(record.Error),
		record.Duration.Milliseconds(), record.Timestamp.UnixNano(),
	)
	if err != nil {
		return audit.NewStorageError("sqlite", "write", err)
	}
	return nil
}

// Query returns records matching the query, newest first unless SortOrder
// is "asc".
func (s *SQLiteStore) Query(ctx context.Context, query *audit.Query) ([]*audit.Record, error) {
	if query == nil {
		query = &audit.Query{}
	}
	whereClause, args := buildWhereClause(query)

	sqlQuery := "SELECT " + selectColumns + " FROM audit_records"
	if whereClause != "" {
		sqlQuery += " WHERE " + whereClause
	}

	sortOrder := "DESC"
	if strings.EqualFold(query.SortOrder, "asc") {
		sortOrder = "ASC"
	}
	sqlQuery += fmt.Sprintf(" ORDER BY timestamp_ns %s, id %s", sortOrder, sortOrder)

	if query.Limit > 0 {
		sqlQuery += fmt.Sprintf(" LIMIT %d", query.Limit)
		if query.Offset > 0 {
			sqlQuery += fmt.Sprintf(" OFFSET %d", query.Offset)
		}
	} else if query.Offset > 0 {
		sqlQuery += fmt.Sprintf(" LIMIT -1 OFFSET %d", query.Offset)
	}

	rows, err := s.db.QueryContext(ctx, sqlQuery, args...)
	if err != nil {
		return nil, audit.NewStorageError("sqlite", "query", err)
	}
	defer rows.Close()

	records := []*audit.Record{}
	for rows.Next() {
		record, err := scanRow(rows)
		if err != nil {
			return nil, audit.NewStorageError("sqlite", "scan", err)
		}
		records = append(records, record)
	}
	if err := rows.Err(); err != nil {
		return nil, audit.NewStorageError("sqlite", "query", err)
	}

	return records, nil
}

// Count returns the number of records matching the query filters.
func (s *SQLiteStore) Count(ctx context.Context, query *audit.Query) (int64, error) {
	if query == nil {
		query = &audit.Query{}
	}
	whereClause, args := buildWhereClause(query)

	sqlQuery := "SELECT COUNT(*) FROM audit_records"
	if whereClause != "" {
		sqlQuery += " WHERE " + whereClause
	}

	var count int64
	if err := s.db.QueryRowContext(ctx, sqlQuery, args...).Scan(&count); err != nil {
		return 0, audit.NewStorageError("sqlite", "count", err)
	}
	return count, nil
}

// Delete removes records matching the query filters and returns the number
// removed.
func (s *SQLiteStore) Delete(ctx context.Context, query *audit.Query) (int64, error) {
	if query == nil {
		query = &audit.Query{}
	}
	whereClause, args := buildWhereClause(query)

	sqlQuery := "DELETE FROM audit_records"
	if whereClause != "" {
		sqlQuery += " WHERE " + whereClause
	}

	result, err := s.db.ExecContext(ctx, sqlQuery, args...)
	if err != nil {
		return 0, audit.NewStorageError("sqlite", "delete", err)
	}
	count, err := result.RowsAffected()
	if err != nil {
		return 0, audit.NewStorageError("sqlite", "delete", err)
	}
	return count, nil
}

// Prune deletes records older than cutoff.
func (s *SQLiteStore) Prune(ctx context.Context, cutoff time.Time) (int64, error) {
	// EndTime is inclusive; step back one nanosecond so records stamped
	// exactly at cutoff survive.
	end := cutoff.Add(-time.Nanosecond)
	return s.Delete(ctx, &audit.Query{EndTime: &end})
}

// Close releases the database handle.
func (s *SQLiteStore) Close() error {
	if err := s.db.Close(); err != nil {
		return audit.NewStorageError("sqlite", "close", err)
	}
	s.logger.Info("SQLite audit store closed")
	return nil
}

// buildWhereClause builds a SQL WHERE clause (without the keyword) from the
// query filters.
func buildWhereClause(query *audit.Query) (string, []any) {
	var conditions []string
	var args []any

	if query.StartTime != nil {
		conditions = append(conditions, "timestamp_ns >= ?")
		args = append(args, query.StartTime.UnixNano())
	}
	if query.EndTime != nil {
		conditions = append(conditions, "timestamp_ns <= ?")
		args = append(args, query.EndTime.UnixNano())
	}
	if query.TenantID != "" {
		conditions = append(conditions, "tenant_id = ?")
		args = append(args, query.TenantID)
	}
	if query.Action != "" {
		conditions = append(conditions, "action = ?")
		args = append(args, query.Action)
	}
	if query.Outcome != "" {
		conditions = append(conditions, "outcome = ?")
		args = append(args, string(query.Outcome))
	}
	if query.CorrelationID != "" {
		conditions = append(conditions, "correlation_id = ?")
		args = append(args, query.CorrelationID)
	}

	return strings.Join(conditions, " AND "), args
}

func scanRow(rows *sql.Rows) (*audit.Record, error) {
	var record audit.Record
	var plan, feature, quota, reason, errorClass, errorVal sql.NullString
	var outcome string
	var durationMs, timestampNs int64

	err := rows.Scan(
		&record.ID, &record.CorrelationID,
		&record.TenantID, &record.Action, &plan, &feature, &quota,
		&outcome, &reason, &record.Attempts, &errorClass, &errorVal,
		&durationMs, &timestampNs,
	)
	if err != nil {
		return nil, err
	}

	record.Plan = plan.String
	record.Feature = feature.String
	record.Quota = quota.String
	record.Outcome = audit.Outcome(outcome)
	record.Reason = reason.String
	record.ErrorClass = errorClass.String
	record.Error = errorVal.String
	record.Duration = time.Duration(durationMs) * time.Millisecond
	record.Timestamp = time.Unix(0, timestampNs).UTC()

	return &record, nil
}

// nullString converts empty strings to NULL for optional columns.
func nullString(s string) any {
	if s == "" {
		return nil
	}
	return s
}
