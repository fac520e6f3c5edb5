package storage

import (
	"context"
	"errors"

	"mercator-hq/tollgate/pkg/audit"
)

// MultiSink fans a record out to several sinks. A failing sink does not
// stop the others; their errors are joined.
type MultiSink struct {
	sinks []audit.Sink
}

// NewMultiSink returns a sink writing to every non-nil sink given.
func NewMultiSink(sinks ...audit.Sink) *MultiSink {
	m := &MultiSink{}
	for _, s := range sinks {
		if s != nil {
			m.sinks = append(m.sinks, s)
		}
	}
	return m
}

// Write writes the record to every sink.
func (m *MultiSink) Write(ctx context.Context, record *audit.Record) error {
	var errs []error
	for _, s := range m.sinks {
		if err := s.Write(ctx, record); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// Close closes every sink.
func (m *MultiSink) Close() error {
	var errs []error
	for _, s := range m.sinks {
		if err := s.Close(); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// Len returns the number of sinks.
func (m *MultiSink) Len() int {
	return len(m.sinks)
}
