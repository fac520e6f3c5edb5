package storage

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"sync"
	"testing"

	"mercator-hq/tollgate/pkg/audit"
)

type fakePublisher struct {
	mu       sync.Mutex
	subjects []string
	payloads [][]byte
	err      error
	flushed  bool
	drained  bool
}

func (p *fakePublisher) Publish(subject string, data []byte) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.err != nil {
		return p.err
	}
	p.subjects = append(p.subjects, subject)
	p.payloads = append(p.payloads, data)
	return nil
}

func (p *fakePublisher) FlushWithContext(ctx context.Context) error {
	p.flushed = true
	return nil
}

func (p *fakePublisher) Drain() error {
	p.drained = true
	return nil
}

func TestNATSSink_Write(t *testing.T) {
	pub := &fakePublisher{}
	sink := newNATSSink(pub, "", slog.Default())

	record := sampleRecords()[1]
	if err := sink.Write(context.Background(), record); err != nil {
		t.Fatalf("Write failed: %v", err)
	}

	if len(pub.subjects) != 1 || pub.subjects[0] != "tollgate.audit.t1.plan_denied" {
		t.Fatalf("Unexpected subjects: %v", pub.subjects)
	}

	var decoded audit.Record
	if err := json.Unmarshal(pub.payloads[0], &decoded); err != nil {
		t.Fatalf("Payload is not JSON: %v", err)
	}
	if decoded.ID != record.ID || decoded.Reason != record.Reason {
		t.Errorf("Decoded record mismatch: %+v", decoded)
	}
}

func TestNATSSink_Subject(t *testing.T) {
	sink := newNATSSink(&fakePublisher{}, "acme.audit.", slog.Default())

	tests := []struct {
		tenant string
		want   string
	}{
		{"t1", "acme.audit.t1.success"},
		{"a.b", "acme.audit.a_b.success"},
		{"we*rd>", "acme.audit.we_rd_.success"},
		{"", "acme.audit._.success"},
	}
	for _, tt := range tests {
		got := sink.Subject(&audit.Record{TenantID: tt.tenant, Outcome: audit.OutcomeSuccess})
		if got != tt.want {
			t.Errorf("Subject(%q) = %q, want %q", tt.tenant, got, tt.want)
		}
	}
}

func TestNATSSink_PublishError(t *testing.T) {
	sink := newNATSSink(&fakePublisher{err: errors.New("nats: connection closed")}, "", slog.Default())

	err := sink.Write(context.Background(), sampleRecords()[0])
	var se *audit.StorageError
	if !errors.As(err, &se) || se.Operation != "publish" {
		t.Errorf("Expected publish StorageError, got %v", err)
	}
}

func TestNATSSink_Close(t *testing.T) {
	pub := &fakePublisher{}
	sink := newNATSSink(pub, "", slog.Default())
	if err := sink.Close(); err != nil {
		t.Fatalf("Close failed: %v", err)
	}
	if !pub.flushed || !pub.drained {
		t.Errorf("Expected flush and drain, got flushed=%v drained=%v", pub.flushed, pub.drained)
	}
}

func TestNewNATSSink_RequiresURL(t *testing.T) {
	if _, err := NewNATSSink(&NATSConfig{}); err == nil {
		t.Error("Expected error for missing URL")
	}
}

type failingSink struct{ closed bool }

func (s *failingSink) Write(ctx context.Context, r *audit.Record) error {
	return errors.New("disk full")
}

func (s *failingSink) Close() error {
	s.closed = true
	return nil
}

func TestMultiSink(t *testing.T) {
	mem := NewMemoryStore()
	bad := &failingSink{}
	multi := NewMultiSink(bad, nil, mem)

	if multi.Len() != 2 {
		t.Fatalf("Expected nil sinks to be skipped, got %d", multi.Len())
	}

	err := multi.Write(context.Background(), sampleRecords()[0])
	if err == nil {
		t.Error("Expected the failing sink's error")
	}
	if mem.Size() != 1 {
		t.Errorf("Healthy sink should still receive the record, got %d", mem.Size())
	}

	if err := multi.Close(); err != nil {
		t.Errorf("Close failed: %v", err)
	}
	if !bad.closed {
		t.Error("Expected every sink to be closed")
	}
}
