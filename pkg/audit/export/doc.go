// Package export renders audit records as JSON or CSV.
//
// Exports back the tenant-facing audit export endpoint (gated by the
// auditExport plan feature) and the retention archive.
//
//	exporter := export.NewCSVExporter(true)
//	w.Header().Set("Content-Type", exporter.ContentType())
//	exporter.Export(ctx, records, w)
package export
