package recorder

import (
	"context"
	"log/slog"
	"sync"
	"time"
	"unicode/utf8"

	"github.com/google/uuid"

	"mercator-hq/tollgate/pkg/audit"
)

// Config contains configuration for the audit recorder.
type Config struct {
	// Enabled enables audit recording.
	Enabled bool `yaml:"enabled"`

	// BufferSize is the size of the async write channel buffer.
	// Default: 1000
	BufferSize int `yaml:"buffer_size"`

	// WriteTimeout bounds each sink write.
	// Default: 5 seconds
	WriteTimeout time.Duration `yaml:"write_timeout"`

	// MaxFieldLength is the maximum length of free-text fields (Reason,
	// Error) before truncation.
	// Default: 500
	MaxFieldLength int `yaml:"max_field_length"`
}

// DefaultConfig returns the default recorder configuration.
func DefaultConfig() *Config {
	return &Config{
		Enabled:        true,
		BufferSize:     1000,
		WriteTimeout:   5 * time.Second,
		MaxFieldLength: 500,
	}
}

// Observer receives recorder events, typically for metrics.
type Observer interface {
	ObserveAuditWritten(outcome audit.Outcome)
	ObserveAuditDropped()
	ObserveAuditWriteFailed()
}

type noopObserver struct{}

func (noopObserver) ObserveAuditWritten(audit.Outcome) {}
func (noopObserver) ObserveAuditDropped()              {}
func (noopObserver) ObserveAuditWriteFailed()          {}

// Option configures a Recorder.
type Option func(*Recorder)

// WithObserver sets the observer notified of writes and drops.
func WithObserver(o Observer) Option {
	return func(r *Recorder) {
		if o != nil {
			r.observer = o
		}
	}
}

// WithLogger sets the logger.
func WithLogger(l *slog.Logger) Option {
	return func(r *Recorder) {
		if l != nil {
			r.logger = l
		}
	}
}

// WithClock sets the clock used to stamp records without a timestamp.
func WithClock(now func() time.Time) Option {
	return func(r *Recorder) {
		if now != nil {
			r.now = now
		}
	}
}

// Recorder writes audit records to a sink on a background goroutine so the
// request path never waits on storage.
type Recorder struct {
	sink       audit.Sink
	config     *Config
	recordChan chan *audit.Record
	wg         sync.WaitGroup
	done       chan struct{}
	mu         sync.RWMutex
	closed     bool
	now        func() time.Time
	observer   Observer
	logger     *slog.Logger
}

// New creates a recorder writing to sink and starts its worker.
func New(sink audit.Sink, config *Config, opts ...Option) *Recorder {
	if config == nil {
		config = DefaultConfig()
	}
	if config.BufferSize <= 0 {
		config.BufferSize = 1000
	}
	if config.WriteTimeout <= 0 {
		config.WriteTimeout = 5 * time.Second
	}
	if config.MaxFieldLength <= 0 {
		config.MaxFieldLength = 500
	}

	r := &Recorder{
		sink:       sink,
		config:     config,
		recordChan: make(chan *audit.Record, config.BufferSize),
		done:       make(chan struct{}),
		now:        time.Now,
		observer:   noopObserver{},
		logger:     slog.Default().With("component", "audit.recorder"),
	}
	for _, opt := range opts {
		opt(r)
	}

	r.wg.Add(1)
	go r.worker()

	r.logger.Info("audit recorder initialized",
		"enabled", config.Enabled,
		"buffer_size", config.BufferSize,
		"write_timeout", config.WriteTimeout,
	)

	return r
}

// Record enqueues a record for writing and returns immediately. Missing IDs,
// correlation IDs and timestamps are filled in. When the buffer is full the
// record is dropped and a *audit.RecorderError wrapping audit.ErrBufferFull
// is returned.
func (r *Recorder) Record(record *audit.Record) error {
	if r == nil || record == nil || !r.config.Enabled {
		return nil
	}

	r.prepare(record)

	r.mu.RLock()
	defer r.mu.RUnlock()
	if r.closed {
		return audit.NewRecorderError(record.ID, audit.ErrRecorderClosed)
	}

	select {
	case r.recordChan <- record:
		return nil
	default:
		r.observer.ObserveAuditDropped()
		r.logger.Warn("audit buffer full, dropping record",
			"record_id", record.ID,
			"tenant_id", record.TenantID,
			"action", record.Action,
			"outcome", record.Outcome,
			"buffer_size", r.config.BufferSize,
		)
		return audit.NewRecorderError(record.ID, audit.ErrBufferFull)
	}
}

func (r *Recorder) prepare(record *audit.Record) {
	if record.ID == "" {
		record.ID = uuid.NewString()
	}
	if record.CorrelationID == "" {
		record.CorrelationID = record.ID
	}
	if record.Timestamp.IsZero() {
		record.Timestamp = r.now().UTC()
	}
	record.Reason = truncate(record.Reason, r.config.MaxFieldLength)
	record.Error = truncate(record.Error, r.config.MaxFieldLength)
}

// Pending returns the number of records waiting to be written.
func (r *Recorder) Pending() int {
	return len(r.recordChan)
}

// Close stops accepting records, drains the buffer and closes the sink.
// Close is idempotent.
func (r *Recorder) Close() error {
	r.mu.Lock()
	if r.closed {
		r.mu.Unlock()
		return nil
	}
	r.closed = true
	close(r.done)
	r.mu.Unlock()

	r.logger.Info("shutting down audit recorder")
	r.wg.Wait()

	if r.sink == nil {
		return nil
	}
	return r.sink.Close()
}

func (r *Recorder) worker() {
	defer r.wg.Done()

	for {
		select {
		case record := <-r.recordChan:
			r.writeRecord(record)

		case <-r.done:
			r.logger.Info("draining audit channel before shutdown",
				"pending_count", len(r.recordChan),
			)
			for {
				select {
				case record := <-r.recordChan:
					r.writeRecord(record)
				default:
					r.logger.Info("audit channel drained")
					return
				}
			}
		}
	}
}

func (r *Recorder) writeRecord(record *audit.Record) {
	if r.sink == nil {
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), r.config.WriteTimeout)
	defer cancel()

	start := time.Now()
	if err := r.sink.Write(ctx, record); err != nil {
		r.observer.ObserveAuditWriteFailed()
		r.logger.Error("failed to write audit record",
			"record_id", record.ID,
			"tenant_id", record.TenantID,
			"error", err,
		)
		return
	}
	r.observer.ObserveAuditWritten(record.Outcome)

	duration := time.Since(start)
	r.logger.Debug("audit record written",
		"record_id", record.ID,
		"tenant_id", record.TenantID,
		"action", record.Action,
		"outcome", record.Outcome,
		"duration_ms", duration.Milliseconds(),
	)

	if duration > r.config.WriteTimeout/2 {
		r.logger.Warn("slow audit write",
			"record_id", record.ID,
			"duration_ms", duration.Milliseconds(),
		)
	}
}

// truncate shortens s to at most limit bytes, marking the cut with "...".
// The cut never splits a multi-byte rune.
func truncate(s string, limit int) string {
	if limit <= 0 || len(s) <= limit {
		return s
	}
	if limit <= 3 {
		return s[:runeBoundary(s, limit)]
	}
	return s[:runeBoundary(s, limit-3)] + "..."
}

// runeBoundary returns the largest n <= i at which s can be cut without
// splitting a rune.
func runeBoundary(s string, i int) int {
	for i > 0 && !utf8.RuneStart(s[i]) {
		i--
	}
	return i
}
