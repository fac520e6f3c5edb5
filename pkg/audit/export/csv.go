package export

import (
	"context"
	"encoding/csv"
	"io"
	"strconv"
	"time"

	"mercator-hq/tollgate/pkg/audit"
)

// CSVExporter exports audit records to CSV format.
type CSVExporter struct {
	// IncludeHeader includes a header row with column names.
	IncludeHeader bool
}

// NewCSVExporter creates a new CSV exporter.
func NewCSVExporter(includeHeader bool) *CSVExporter {
	return &CSVExporter{
		IncludeHeader: includeHeader,
	}
}

// ContentType returns the MIME type of the output.
func (e *CSVExporter) ContentType() string {
	return "text/csv"
}

// Export writes records to w, one row per record.
func (e *CSVExporter) Export(ctx context.Context, records []*audit.Record, w io.Writer) error {
	writer := csv.NewWriter(w)

	if e.IncludeHeader {
		if err := writer.Write(headerRow()); err != nil {
			return audit.NewExportError("csv", len(records), err)
		}
	}

	for i, record := range records {
		if i%100 == 0 {
			if err := ctx.Err(); err != nil {
				return err
			}
		}
		if err := writer.Write(recordToRow(record)); err != nil {
			return audit.NewExportError("csv", len(records), err)
		}
	}

	writer.Flush()
	if err := writer.Error(); err != nil {
		return audit.NewExportError("csv", len(records), err)
	}
	return nil
}

func headerRow() []string {
	return []string{
		"id", "correlation_id",
		"tenant_id", "action", "plan", "feature", "quota",
		"outcome", "reason", "attempts", "error_class", "error",
		"duration_ms", "timestamp",
	}
}

func recordToRow(r *audit.Record) []string {
	timestamp := ""
	if !r.Timestamp.IsZero() {
		timestamp = r.Timestamp.UTC().Format(time.RFC3339Nano)
	}

	return []string{
		r.ID,
		r.CorrelationID,
		r.TenantID,
		r.Action,
		r.Plan,
		r.Feature,
		r.Quota,
		string(r.Outcome),
		r.Reason,
		strconv.Itoa(r.Attempts),
		r.ErrorClass,
		r.Error,
		strconv.FormatInt(r.Duration.Milliseconds(), 10),
		timestamp,
	}
}
