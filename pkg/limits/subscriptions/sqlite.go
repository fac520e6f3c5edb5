package subscriptions

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"mercator-hq/tollgate/pkg/limits/plans"

	_ "modernc.org/sqlite" // SQLite driver
)

// SQLiteSource reads subscription rows and resource counts from SQLite.
//
// The tables are normally populated by the system of record; Upsert and
// SetResourceCount exist for seeding and tests. The database is opened in WAL
// mode so reads do not block the writer.
type SQLiteSource struct {
	db        *sql.DB
	dbPath    string
	closeOnce sync.Once
	logger    *slog.Logger

	listStmt   *sql.Stmt
	upsertStmt *sql.Stmt
	countStmt  *sql.Stmt
	setStmt    *sql.Stmt
	adjustStmt *sql.Stmt
}

// SQLiteConfig configures the SQLite source.
type SQLiteConfig struct {
	// DBPath is the path to the SQLite database file.
	DBPath string

	// BusyTimeout is how long to wait for locks before failing.
	// Default: 5 seconds
	BusyTimeout time.Duration
}

// NewSQLiteSource opens (and if needed creates) the database at dbPath.
func NewSQLiteSource(dbPath string) (*SQLiteSource, error) {
	return NewSQLiteSourceWithConfig(SQLiteConfig{DBPath: dbPath})
}

// NewSQLiteSourceWithConfig opens the database with custom configuration.
func NewSQLiteSourceWithConfig(cfg SQLiteConfig) (*SQLiteSource, error) {
	if cfg.DBPath == "" {
		return nil, fmt.Errorf("db path cannot be empty")
	}
	if cfg.BusyTimeout == 0 {
		cfg.BusyTimeout = 5 * time.Second
	}

	dsn := fmt.Sprintf("file:%s?_pragma=busy_timeout(%d)&_pragma=journal_mode(WAL)&_pragma=synchronous(NORMAL)",
		cfg.DBPath, cfg.BusyTimeout.Milliseconds())

	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	// SQLite only supports a single writer.
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)
	db.SetConnMaxLifetime(0)

	s := &SQLiteSource{
		db:     db,
		dbPath: cfg.DBPath,
		logger: slog.Default().With("component", "limits.subscriptions.sqlite"),
	}

	if err := s.initSchema(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to initialize schema: %w", err)
	}
	if err := s.prepareStatements(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to prepare statements: %w", err)
	}

	s.logger.Info("subscription source opened", "path", cfg.DBPath)
	return s, nil
}

func (s *SQLiteSource) initSchema() error {
	schema := `
	CREATE TABLE IF NOT EXISTS subscriptions (
		tenant_id TEXT NOT NULL,
		tier TEXT NOT NULL,
		status TEXT NOT NULL,
		started_at INTEGER NOT NULL,
		trial_expiry INTEGER,
		PRIMARY KEY (tenant_id, started_at)
	);

	CREATE TABLE IF NOT EXISTS resource_counts (
		tenant_id TEXT NOT NULL,
		quota TEXT NOT NULL,
		count INTEGER NOT NULL DEFAULT 0,
		updated_at INTEGER NOT NULL,
		PRIMARY KEY (tenant_id, quota)
	);
	`
	_, err := s.db.Exec(schema)
	return err
}

func (s *SQLiteSource) prepareStatements() error {
	var err error

	s.listStmt, err = s.db.Prepare(`
		SELECT tenant_id, tier, status, started_at, trial_expiry
		FROM subscriptions
		WHERE tenant_id = ?
		ORDER BY started_at DESC
	`)
	if err != nil {
		return fmt.Errorf("prepare list: %w", err)
	}

	s.upsertStmt, err = s.db.Prepare(`
		INSERT INTO subscriptions (tenant_id, tier, status, started_at, trial_expiry)
		VALUES (?, ?, ?, ?, ?)
		ON CONFLICT (tenant_id, started_at) DO UPDATE SET
			tier = excluded.tier,
			status = excluded.status,
			trial_expiry = excluded.trial_expiry
	`)
	if err != nil {
		return fmt.Errorf("prepare upsert: %w", err)
	}

	s.countStmt, err = s.db.Prepare(`
		SELECT count FROM resource_counts WHERE tenant_id = ? AND quota = ?
	`)
	if err != nil {
		return fmt.Errorf("prepare count: %w", err)
	}

	s.setStmt, err = s.db.Prepare(`
		INSERT INTO resource_counts (tenant_id, quota, count, updated_at)
		VALUES (?, ?, ?, ?)
		ON CONFLICT (tenant_id, quota) DO UPDATE SET
			count = excluded.count,
			updated_at = excluded.updated_at
	`)
	if err != nil {
		return fmt.Errorf("prepare set count: %w", err)
	}

	s.adjustStmt, err = s.db.Prepare(`
		INSERT INTO resource_counts (tenant_id, quota, count, updated_at)
		VALUES (?, ?, MAX(?, 0), ?)
		ON CONFLICT (tenant_id, quota) DO UPDATE SET
			count = MAX(resource_counts.count + ?, 0),
			updated_at = excluded.updated_at
		RETURNING count
	`)
	if err != nil {
		return fmt.Errorf("prepare adjust count: %w", err)
	}

	return nil
}

// Subscriptions implements Source. Rows are returned newest first.
func (s *SQLiteSource) Subscriptions(ctx context.Context, tenantID string) ([]plans.Subscription, error) {
	if tenantID == "" {
		return nil, ErrEmptyTenant
	}

	rows, err := s.listStmt.QueryContext(ctx, tenantID)
	if err != nil {
		return nil, fmt.Errorf("query subscriptions: %w", err)
	}
	defer rows.Close()

	var subs []plans.Subscription
	for rows.Next() {
		var (
			sub         plans.Subscription
			tier        string
			status      string
			startedAt   int64
			trialExpiry sql.NullInt64
		)
		if err := rows.Scan(&sub.TenantID, &tier, &status, &startedAt, &trialExpiry); err != nil {
			return nil, fmt.Errorf("scan subscription: %w", err)
		}
		sub.Tier = plans.Tier(tier)
		sub.Status = plans.Status(status)
		sub.StartedAt = time.Unix(0, startedAt).UTC()
		if trialExpiry.Valid {
			expiry := time.Unix(0, trialExpiry.Int64).UTC()
			sub.TrialExpiry = &expiry
		}
		subs = append(subs, sub)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate subscriptions: %w", err)
	}
	return subs, nil
}

// Upsert inserts sub, replacing an existing row with the same start time.
func (s *SQLiteSource) Upsert(ctx context.Context, sub plans.Subscription) error {
	if sub.TenantID == "" {
		return ErrEmptyTenant
	}

	var trialExpiry sql.NullInt64
	if sub.TrialExpiry != nil {
		trialExpiry = sql.NullInt64{Int64: sub.TrialExpiry.UnixNano(), Valid: true}
	}

	_, err := s.upsertStmt.ExecContext(ctx,
		sub.TenantID,
		string(sub.Tier),
		string(sub.Status),
		sub.StartedAt.UnixNano(),
		trialExpiry,
	)
	if err != nil {
		return fmt.Errorf("upsert subscription: %w", err)
	}
	return nil
}

// CountResource implements ResourceCounter. Missing rows count as zero.
func (s *SQLiteSource) CountResource(ctx context.Context, tenantID string, quota plans.Quota) (int64, error) {
	if tenantID == "" {
		return 0, ErrEmptyTenant
	}

	var count int64
	err := s.countStmt.QueryRowContext(ctx, tenantID, string(quota)).Scan(&count)
	if err == sql.ErrNoRows {
		return 0, nil
	}
	if err != nil {
		return 0, fmt.Errorf("count %s: %w", quota, err)
	}
	return count, nil
}

// SetResourceCount sets the count for a tenant and quota.
func (s *SQLiteSource) SetResourceCount(ctx context.Context, tenantID string, quota plans.Quota, n int64) error {
	if tenantID == "" {
		return ErrEmptyTenant
	}

	if _, err := s.setStmt.ExecContext(ctx, tenantID, string(quota), n, time.Now().UnixNano()); err != nil {
		return fmt.Errorf("set %s count: %w", quota, err)
	}
	return nil
}

// AdjustResourceCount adds delta to the count, never going below zero, and
// returns the new value.
func (s *SQLiteSource) AdjustResourceCount(ctx context.Context, tenantID string, quota plans.Quota, delta int64) (int64, error) {
	if tenantID == "" {
		return 0, ErrEmptyTenant
	}

	var count int64
	err := s.adjustStmt.QueryRowContext(ctx, tenantID, string(quota), delta, time.Now().UnixNano(), delta).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("adjust %s count: %w", quota, err)
	}
	return count, nil
}

// Close closes the prepared statements and the database.
func (s *SQLiteSource) Close() error {
	var err error
	s.closeOnce.Do(func() {
		for _, stmt := range []*sql.Stmt{s.listStmt, s.upsertStmt, s.countStmt, s.setStmt, s.adjustStmt} {
			if stmt != nil {
				stmt.Close()
			}
		}
		err = s.db.Close()
	})
	return err
}
