package storage

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"strings"
	"time"

	"github.com/nats-io/nats.go"

	"mercator-hq/tollgate/pkg/audit"
)

// DefaultSubjectPrefix is the subject prefix audit records are published under.
const DefaultSubjectPrefix = "tollgate.audit"

// NATSConfig configures the NATS audit sink.
type NATSConfig struct {
	// URL of the NATS server, e.g. nats://localhost:4222.
	URL string `yaml:"url"`

	// SubjectPrefix is prepended to the tenant ID to form the subject.
	// Default: tollgate.audit
	SubjectPrefix string `yaml:"subject_prefix"`

	// Name identifies the connection to the server.
	// Default: tollgate-audit
	Name string `yaml:"name"`
}

// publisher is the subset of *nats.Conn the sink uses.
type publisher interface {
	Publish(subject string, data []byte) error
	FlushWithContext(ctx context.Context) error
	Drain() error
}

// NATSSink publishes JSON-encoded audit records onto
// <prefix>.<tenant>.<outcome>. Downstream consumers subscribe with
// wildcards, e.g. tollgate.audit.*.plan_denied.
type NATSSink struct {
	conn   publisher
	prefix string
	logger *slog.Logger
}

// NewNATSSink dials NATS and returns a sink that publishes to it.
func NewNATSSink(config *NATSConfig) (*NATSSink, error) {
	if config == nil || config.URL == "" {
		return nil, audit.NewStorageError("nats", "connect", errors.New("url is required"))
	}
	name := config.Name
	if name == "" {
		name = "tollgate-audit"
	}

	logger := slog.Default().With("component", "audit.storage.nats")

	opts := []nats.Option{
		nats.Name(name),
		nats.MaxReconnects(-1),
		nats.ReconnectWait(2 * time.Second),
		nats.DisconnectErrHandler(func(nc *nats.Conn, err error) {
			logger.Warn("disconnected from NATS", "error", err)
		}),
		nats.ReconnectHandler(func(nc *nats.Conn) {
			logger.Info("reconnected to NATS", "url", nc.ConnectedUrl())
		}),
		nats.ClosedHandler(func(nc *nats.Conn) {
			logger.Info("NATS connection closed")
		}),
	}

	nc, err := nats.Connect(config.URL, opts...)
	if err != nil {
		return nil, audit.NewStorageError("nats", "connect", err)
	}

	return newNATSSink(nc, config.SubjectPrefix, logger), nil
}

func newNATSSink(conn publisher, prefix string, logger *slog.Logger) *NATSSink {
	if prefix == "" {
		prefix = DefaultSubjectPrefix
	}
	return &NATSSink{
		conn:   conn,
		prefix: strings.TrimSuffix(prefix, "."),
		logger: logger,
	}
}

// Subject returns the subject a record is published on.
func (s *NATSSink) Subject(record *audit.Record) string {
	return s.prefix + "." + subjectToken(record.TenantID) + "." + subjectToken(string(record.Outcome))
}

// Write publishes the record.
func (s *NATSSink) Write(ctx context.Context, record *audit.Record) error {
	data, err := json.Marshal(record)
	if err != nil {
		return audit.NewStorageError("nats", "encode", err)
	}
	if err := s.conn.Publish(s.Subject(record), data); err != nil {
		return audit.NewStorageError("nats", "publish", err)
	}
	return nil
}

// Close flushes pending publishes and drains the connection.
func (s *NATSSink) Close() error {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := s.conn.FlushWithContext(ctx); err != nil {
		s.logger.Warn("failed to flush NATS audit sink", "error", err)
	}
	if err := s.conn.Drain(); err != nil {
		return audit.NewStorageError("nats", "close", err)
	}
	return nil
}

// subjectToken makes s safe to use as a single NATS subject token.
func subjectToken(s string) string {
	if s == "" {
		return "_"
	}
	return strings.Map(func(r rune) rune {
		switch r {
		case '.', '*', '>', ' ', '\t', '\n', '\r':
			return '_'
		}
		return r
	}, s)
}
