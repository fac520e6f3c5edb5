package retention

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/robfig/cron/v3"
)

// Scheduler runs a Pruner's scheduled passes. A pass that is still running
// when the next one is due causes that one to be skipped.
type Scheduler struct {
	pruner *Pruner
	logger *slog.Logger

	mu     sync.Mutex
	cron   *cron.Cron
	entry  cron.EntryID
	cancel context.CancelFunc
	last   *Report
}

func newScheduler(p *Pruner) *Scheduler {
	return &Scheduler{
		pruner: p,
		logger: p.logger.With("scope", "scheduler"),
	}
}

// Start parses the pruner's schedule and begins running passes. It is a
// no-op when the schedule is empty or the scheduler is already running.
//
// Common schedules:
//   - "0 3 * * *"    daily at 03:00
//   - "0 */6 * * *"  every six hours
//   - "@weekly"      Sunday at midnight
func (s *Scheduler) Start(ctx context.Context) error {
	spec := s.pruner.config.PruneSchedule
	if spec == "" {
		s.logger.Info("audit prune schedule not configured")
		return nil
	}

	schedule, err := cron.ParseStandard(spec)
	if err != nil {
		return fmt.Errorf("invalid prune schedule %q: %w", spec, err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.cron != nil {
		return nil
	}

	runCtx, cancel := context.WithCancel(ctx)
	c := cron.New(cron.WithChain(cron.SkipIfStillRunning(cronLogger{s.logger})))
	s.entry = c.Schedule(schedule, cron.FuncJob(func() { s.runScheduled(runCtx) }))
	s.cron = c
	s.cancel = cancel
	c.Start()

	s.logger.Info("audit retention scheduled",
		"schedule", spec,
		"next", c.Entry(s.entry).Next,
		"retention_days", s.pruner.config.RetentionDays,
		"max_records", s.pruner.config.MaxRecords,
	)

	go func() {
		<-runCtx.Done()
		s.Stop()
	}()
	return nil
}

func (s *Scheduler) runScheduled(ctx context.Context) {
	// Errors are logged and observed by Run.
	report, _ := s.pruner.Run(ctx, TriggerSchedule)

	s.mu.Lock()
	s.last = report
	s.mu.Unlock()
}

// Stop halts the schedule and waits for a running pass to finish.
func (s *Scheduler) Stop() {
	s.mu.Lock()
	c, cancel := s.cron, s.cancel
	s.cron, s.cancel = nil, nil
	s.mu.Unlock()

	if c == nil {
		return
	}
	cancel()
	<-c.Stop().Done()
	s.logger.Info("audit retention schedule stopped")
}

// IsRunning reports whether passes are scheduled.
func (s *Scheduler) IsRunning() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.cron != nil
}

// NextRun returns the next scheduled pass, or nil when not running.
func (s *Scheduler) NextRun() *time.Time {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.cron == nil {
		return nil
	}
	next := s.cron.Entry(s.entry).Next
	if next.IsZero() {
		return nil
	}
	return &next
}

// LastReport returns the report of the most recent scheduled pass.
func (s *Scheduler) LastReport() *Report {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.last
}

// cronLogger routes cron's own messages (skipped overlapping runs, panics)
// to slog.
type cronLogger struct {
	logger *slog.Logger
}

func (l cronLogger) Info(msg string, keysAndValues ...any) {
	l.logger.Debug(msg, keysAndValues...)
}

func (l cronLogger) Error(err error, msg string, keysAndValues ...any) {
	l.logger.Error(msg, append(keysAndValues, "error", err)...)
}
