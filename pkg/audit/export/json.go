package export

import (
	"context"
	"encoding/json"
	"io"

	"mercator-hq/tollgate/pkg/audit"
)

// JSONExporter exports audit records as a JSON array.
type JSONExporter struct {
	// Pretty enables pretty-printing with indentation.
	Pretty bool
}

// NewJSONExporter creates a new JSON exporter.
func NewJSONExporter(pretty bool) *JSONExporter {
	return &JSONExporter{
		Pretty: pretty,
	}
}

// ContentType returns the MIME type of the output.
func (e *JSONExporter) ContentType() string {
	return "application/json"
}

// Export writes records to w as a JSON array. An empty slice is written as [].
func (e *JSONExporter) Export(ctx context.Context, records []*audit.Record, w io.Writer) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if records == nil {
		records = []*audit.Record{}
	}

	var data []byte
	var err error
	if e.Pretty {
		data, err = json.MarshalIndent(records, "", "  ")
	} else {
		data, err = json.Marshal(records)
	}
	if err != nil {
		return audit.NewExportError("json", len(records), err)
	}

	if _, err := w.Write(data); err != nil {
		return audit.NewExportError("json", len(records), err)
	}
	return nil
}
