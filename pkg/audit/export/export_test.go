package export

import (
	"bytes"
	"context"
	"encoding/csv"
	"encoding/json"
	"errors"
	"strings"
	"testing"
	"time"

	"mercator-hq/tollgate/pkg/audit"
)

func testRecords() []*audit.Record {
	ts := time.Date(2026, 10, 18, 9, 30, 0, 0, time.UTC)
	return []*audit.Record{
		{
			ID:            "rec-1",
			CorrelationID: "corr-1",
			TenantID:      "tenant-a",
			Action:        "collab.CreateSite",
			Quota:         "clientSpaces",
			Outcome:       audit.OutcomeSuccess,
			Attempts:      2,
			Duration:      1500 * time.Millisecond,
			Timestamp:     ts,
		},
		{
			ID:            "rec-2",
			CorrelationID: "corr-2",
			TenantID:      "tenant-a",
			Action:        "collab.BulkMove",
			Plan:          "starter",
			Feature:       "bulkOperations",
			Outcome:       audit.OutcomePlanDenied,
			Reason:        "feature_not_included",
			Error:         "upgrade required, \"starter\" lacks it",
			Timestamp:     ts.Add(time.Minute),
		},
	}
}

func TestJSONExporter(t *testing.T) {
	var buf bytes.Buffer
	exporter := NewJSONExporter(false)

	if err := exporter.Export(context.Background(), testRecords(), &buf); err != nil {
		t.Fatalf("Export failed: %v", err)
	}
	if exporter.ContentType() != "application/json" {
		t.Errorf("content type = %s", exporter.ContentType())
	}

	var decoded []map[string]any
	if err := json.Unmarshal(buf.Bytes(), &decoded); err != nil {
		t.Fatalf("output is not a JSON array: %v", err)
	}
	if len(decoded) != 2 {
		t.Fatalf("decoded %d records, want 2", len(decoded))
	}
	if decoded[1]["outcome"] != "plan_denied" || decoded[1]["reason"] != "feature_not_included" {
		t.Errorf("unexpected second record: %v", decoded[1])
	}
	if _, ok := decoded[0]["feature"]; ok {
		t.Error("empty feature should be omitted")
	}
}

func TestJSONExporter_EmptyAndPretty(t *testing.T) {
	var buf bytes.Buffer
	if err := NewJSONExporter(false).Export(context.Background(), nil, &buf); err != nil {
		t.Fatalf("Export failed: %v", err)
	}
	if buf.String() != "[]" {
		t.Errorf("empty export = %q, want []", buf.String())
	}

	buf.Reset()
	if err := NewJSONExporter(true).Export(context.Background(), testRecords()[:1], &buf); err != nil {
		t.Fatalf("Export failed: %v", err)
	}
	if !strings.Contains(buf.String(), "\n  {") {
		t.Errorf("expected indented output, got %s", buf.String())
	}
}

func TestJSONExporter_CancelledContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	err := NewJSONExporter(false).Export(ctx, testRecords(), &bytes.Buffer{})
	if !errors.Is(err, context.Canceled) {
		t.Errorf("expected context.Canceled, got %v", err)
	}
}

func TestCSVExporter(t *testing.T) {
	var buf bytes.Buffer
	exporter := NewCSVExporter(true)

	if err := exporter.Export(context.Background(), testRecords(), &buf); err != nil {
		t.Fatalf("Export failed: %v", err)
	}
	if exporter.ContentType() != "text/csv" {
		t.Errorf("content type = %s", exporter.ContentType())
	}

	rows, err := csv.NewReader(&buf).ReadAll()
	if err != nil {
		t.Fatalf("output is not valid CSV: %v", err)
	}
	if len(rows) != 3 {
		t.Fatalf("rows = %d, want header plus 2", len(rows))
	}

	header := rows[0]
	if header[0] != "id" || header[len(header)-1] != "timestamp" {
		t.Errorf("unexpected header: %v", header)
	}
	for i, row := range rows {
		if len(row) != len(header) {
			t.Errorf("row %d has %d columns, want %d", i, len(row), len(header))
		}
	}

	first := rows[1]
	if first[9] != "2" {
		t.Errorf("attempts = %s, want 2", first[9])
	}
	if first[12] != "1500" {
		t.Errorf("duration_ms = %s, want 1500", first[12])
	}
	if first[13] != "2026-10-18T09:30:00Z" {
		t.Errorf("timestamp = %s", first[13])
	}
	if rows[2][11] != "upgrade required, \"starter\" lacks it" {
		t.Errorf("error column not round-tripped: %q", rows[2][11])
	}
}

func TestCSVExporter_NoHeader(t *testing.T) {
	var buf bytes.Buffer
	if err := NewCSVExporter(false).Export(context.Background(), testRecords()[:1], &buf); err != nil {
		t.Fatalf("Export failed: %v", err)
	}
	if strings.HasPrefix(buf.String(), "id,") {
		t.Error("header written although disabled")
	}
	if !strings.HasPrefix(buf.String(), "rec-1,") {
		t.Errorf("unexpected output: %s", buf.String())
	}
}
