package retention

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"mercator-hq/tollgate/pkg/audit"
	"mercator-hq/tollgate/pkg/audit/export"
)

// Config contains configuration for the retention pruner.
type Config struct {
	// RetentionDays is the number of days to retain audit records.
	// 0 means keep records forever (no age-based pruning).
	RetentionDays int `yaml:"retention_days"`

	// PruneSchedule is a cron expression for scheduling pruning.
	// Example: "0 3 * * *" (daily at 3 AM)
	PruneSchedule string `yaml:"prune_schedule"`

	// ArchiveBeforeDelete enables archiving records before deletion.
	ArchiveBeforeDelete bool `yaml:"archive_before_delete"`

	// ArchivePath is the directory to store archived records.
	ArchivePath string `yaml:"archive_path"`

	// MaxRecords is the maximum number of records to keep.
	// 0 means unlimited.
	MaxRecords int64 `yaml:"max_records"`
}

// DefaultConfig returns the default retention configuration.
func DefaultConfig() *Config {
	return &Config{
		RetentionDays: 90,
		PruneSchedule: "0 3 * * *",
		ArchivePath:   "data/archives/",
	}
}

// Trigger names what started a pruning run.
const (
	TriggerSchedule = "schedule"
	TriggerManual   = "manual"
)

// Report summarizes one pruning run. A failed run still reports what was
// removed before the failure.
type Report struct {
	Trigger   string        `json:"trigger"`
	StartedAt time.Time     `json:"started_at"`
	Duration  time.Duration `json:"duration"`

	// ExpiredByAge and OverCapacity split Deleted by phase.
	Deleted      int64 `json:"deleted"`
	ExpiredByAge int64 `json:"expired_by_age"`
	OverCapacity int64 `json:"over_capacity"`

	// Archived counts records written to ArchiveFiles before deletion.
	Archived     int64    `json:"archived"`
	ArchiveFiles []string `json:"archive_files,omitempty"`

	Error string `json:"error,omitempty"`
}

// Observer receives the outcome of each pruning run, typically for metrics.
type Observer interface {
	ObservePrune(trigger string, deleted, archived int64, duration time.Duration, err error)
}

type noopObserver struct{}

func (noopObserver) ObservePrune(string, int64, int64, time.Duration, error) {}

// Option customizes a Pruner.
type Option func(*Pruner)

// WithObserver reports every run to o.
func WithObserver(o Observer) Option {
	return func(p *Pruner) {
		if o != nil {
			p.observer = o
		}
	}
}

// WithLogger sets the logger.
func WithLogger(logger *slog.Logger) Option {
	return func(p *Pruner) {
		if logger != nil {
			p.logger = logger
		}
	}
}

// Pruner enforces retention on an audit store.
type Pruner struct {
	store     audit.Store
	config    *Config
	now       func() time.Time
	logger    *slog.Logger
	observer  Observer
	scheduler *Scheduler
}

// NewPruner creates a retention pruner. Its schedule is started with Start.
func NewPruner(store audit.Store, config *Config, opts ...Option) *Pruner {
	if config == nil {
		config = DefaultConfig()
	}

	p := &Pruner{
		store:    store,
		config:   config,
		now:      time.Now,
		logger:   slog.Default().With("component", "audit.retention"),
		observer: noopObserver{},
	}
	for _, opt := range opts {
		opt(p)
	}
	p.scheduler = newScheduler(p)
	return p
}

// Prune runs one manual pruning pass and returns the number of deleted
// records.
func (p *Pruner) Prune(ctx context.Context) (int64, error) {
	report, err := p.Run(ctx, TriggerManual)
	return report.Deleted, err
}

// Run deletes records older than the retention period, then the oldest
// records beyond MaxRecords, and reports the result to the observer.
// The report is never nil.
func (p *Pruner) Run(ctx context.Context, trigger string) (*Report, error) {
	report := &Report{Trigger: trigger, StartedAt: p.now()}

	err := p.run(ctx, report)
	report.Duration = p.now().Sub(report.StartedAt)
	if err != nil {
		report.Error = err.Error()
	}
	p.observer.ObservePrune(trigger, report.Deleted, report.Archived, report.Duration, err)

	switch {
	case err != nil:
		p.logger.Error("audit pruning failed",
			"trigger", trigger,
			"deleted", report.Deleted,
			"error", err,
		)
	case report.Deleted > 0:
		p.logger.Info("audit pruning completed",
			"trigger", trigger,
			"expired_by_age", report.ExpiredByAge,
			"over_capacity", report.OverCapacity,
			"archived", report.Archived,
		)
	default:
		p.logger.Debug("no audit records pruned", "trigger", trigger)
	}
	return report, err
}

func (p *Pruner) run(ctx context.Context, report *Report) error {
	if p.config.RetentionDays > 0 {
		cutoff := p.now().AddDate(0, 0, -p.config.RetentionDays)
		n, err := p.prune(ctx, report, "age", &audit.Query{EndTime: &cutoff, SortOrder: "asc"})
		report.ExpiredByAge = n
		if err != nil {
			return audit.NewRetentionError(p.config.RetentionDays, err)
		}
	}

	if p.config.MaxRecords > 0 {
		excess, err := p.excess(ctx)
		if err != nil {
			return fmt.Errorf("prune by count: %w", err)
		}
		if excess > 0 {
			n, err := p.pruneOldest(ctx, report, excess)
			report.OverCapacity = n
			if err != nil {
				return fmt.Errorf("prune by count: %w", err)
			}
		}
	}
	return nil
}

// excess returns how many records exceed MaxRecords.
func (p *Pruner) excess(ctx context.Context) (int64, error) {
	count, err := p.store.Count(ctx, &audit.Query{})
	if err != nil {
		return 0, fmt.Errorf("count records: %w", err)
	}
	if count <= p.config.MaxRecords {
		return 0, nil
	}
	p.logger.Info("audit record count exceeds limit",
		"count", count,
		"max_records", p.config.MaxRecords,
	)
	return count - p.config.MaxRecords, nil
}

// pruneOldest deletes the n oldest records. Records sharing the last
// timestamp go with them.
func (p *Pruner) pruneOldest(ctx context.Context, report *Report, n int64) (int64, error) {
	oldest, err := p.store.Query(ctx, &audit.Query{SortOrder: "asc", Limit: int(n)})
	if err != nil {
		return 0, fmt.Errorf("query oldest records: %w", err)
	}
	if len(oldest) == 0 {
		return 0, nil
	}
	cutoff := oldest[len(oldest)-1].Timestamp
	return p.prune(ctx, report, "count", &audit.Query{EndTime: &cutoff, SortOrder: "asc"})
}

// prune archives (when enabled) and deletes the records matching q.
func (p *Pruner) prune(ctx context.Context, report *Report, kind string, q *audit.Query) (int64, error) {
	if p.config.ArchiveBeforeDelete {
		records, err := p.store.Query(ctx, q)
		if err != nil {
			return 0, fmt.Errorf("query records to archive: %w", err)
		}
		if len(records) > 0 {
			file, err := p.archive(ctx, kind, records)
			if err != nil {
				return 0, err
			}
			report.Archived += int64(len(records))
			report.ArchiveFiles = append(report.ArchiveFiles, file)
		}
	}

	deleted, err := p.store.Delete(ctx, q)
	if err != nil {
		return 0, fmt.Errorf("delete records: %w", err)
	}
	report.Deleted += deleted
	return deleted, nil
}

// archive writes records to a JSON file under ArchivePath and returns its
// path.
func (p *Pruner) archive(ctx context.Context, kind string, records []*audit.Record) (string, error) {
	if err := os.MkdirAll(p.config.ArchivePath, 0o755); err != nil {
		return "", fmt.Errorf("create archive directory: %w", err)
	}

	path := filepath.Join(p.config.ArchivePath,
		fmt.Sprintf("audit-%s-%s.json", kind, p.now().UTC().Format("2006-01-02-150405")))
	f, err := os.Create(path)
	if err != nil {
		return "", fmt.Errorf("create archive file: %w", err)
	}
	defer f.Close()

	if err := export.NewJSONExporter(true).Export(ctx, records, f); err != nil {
		return "", fmt.Errorf("write archive: %w", err)
	}

	p.logger.Info("audit records archived",
		"file", path,
		"records", len(records),
	)
	return path, nil
}

// Start schedules pruning on PruneSchedule until ctx is done or Stop is
// called. An empty schedule makes it a no-op.
func (p *Pruner) Start(ctx context.Context) error {
	return p.scheduler.Start(ctx)
}

// Stop stops scheduled pruning and waits for a running pass to finish.
func (p *Pruner) Stop() {
	p.scheduler.Stop()
}

// NextPruning returns the time of the next scheduled run, or nil when the
// schedule is not running.
func (p *Pruner) NextPruning() *time.Time {
	return p.scheduler.NextRun()
}

// LastReport returns the report of the most recent scheduled run, or nil.
func (p *Pruner) LastReport() *Report {
	return p.scheduler.LastReport()
}
