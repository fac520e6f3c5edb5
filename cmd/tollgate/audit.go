package main

import (
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"mercator-hq/tollgate/pkg/audit"
	"mercator-hq/tollgate/pkg/audit/export"
	"mercator-hq/tollgate/pkg/audit/query"
	"mercator-hq/tollgate/pkg/audit/retention"
	"mercator-hq/tollgate/pkg/cli"
)

// exportBatchSize is how many records audit export reads per query.
const exportBatchSize = 1000

var auditFlags struct {
	tenant    string
	action    string
	outcome   string
	timeRange string
	format    string
	output    string
	limit     int
	dryRun    bool
}

var auditCmd = &cobra.Command{
	Use:   "audit",
	Short: "Inspect and maintain the audit trail",
	Long: `Query, export and prune the audit trail of governed operations.

Subcommands:
  export  - Export audit records as JSON or CSV
  prune   - Apply the configured retention policy now

Time Range Format:
  RFC3339 interval format: "start/end"
  Example: "2026-10-01T00:00:00Z/2026-10-18T00:00:00Z"`,
}

var auditExportCmd = &cobra.Command{
	Use:   "export",
	Short: "Export audit records",
	Long: `Export audit records matching the filters, oldest first.

Examples:
  # Everything for one tenant as CSV
  tollgate audit export --tenant acme --format csv --output acme.csv

  # Plan denials in a time range as JSON
  tollgate audit export --outcome plan_denied --time-range "2026-10-01T00:00:00Z/2026-10-18T00:00:00Z"`,
	RunE: exportAudit,
}

var auditPruneCmd = &cobra.Command{
	Use:   "prune",
	Short: "Prune audit records past retention",
	Long: `Delete audit records older than audit.retention.days and, when
audit.retention.max_records is set, the oldest records beyond that cap.

Examples:
  # Show how many records would be pruned
  tollgate audit prune --dry-run

  # Prune now
  tollgate audit prune`,
	RunE: pruneAudit,
}

func init() {
	rootCmd.AddCommand(auditCmd)
	auditCmd.AddCommand(auditExportCmd, auditPruneCmd)

	auditExportCmd.Flags().StringVar(&auditFlags.tenant, "tenant", "", "filter by tenant ID")
	auditExportCmd.Flags().StringVar(&auditFlags.action, "action", "", "filter by action, e.g. collab.CreateSite")
	auditExportCmd.Flags().StringVar(&auditFlags.outcome, "outcome", "", "filter by outcome: success, rate_limited, plan_denied, failed")
	auditExportCmd.Flags().StringVar(&auditFlags.timeRange, "time-range", "", "time range (RFC3339 interval: start/end)")
	auditExportCmd.Flags().StringVar(&auditFlags.format, "format", "json", "output format: json, csv")
	auditExportCmd.Flags().StringVarP(&auditFlags.output, "output", "o", "", "output file (default: stdout)")
	auditExportCmd.Flags().IntVar(&auditFlags.limit, "limit", 0, "maximum records to export (0 = all)")

	auditPruneCmd.Flags().BoolVar(&auditFlags.dryRun, "dry-run", false, "count records past retention without deleting them")
}

func exportAudit(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}

	q := &audit.Query{
		TenantID:  auditFlags.tenant,
		Action:    auditFlags.action,
		Outcome:   audit.Outcome(auditFlags.outcome),
		SortOrder: "asc",
	}
	if err := parseTimeRange(auditFlags.timeRange, q); err != nil {
		return err
	}
	if err := query.Validate(q); err != nil {
		return err
	}

	var exporter audit.Exporter
	switch auditFlags.format {
	case "json":
		exporter = export.NewJSONExporter(true)
	case "csv":
		exporter = export.NewCSVExporter(true)
	default:
		return fmt.Errorf("unsupported format %q (must be json or csv)", auditFlags.format)
	}

	store, err := openAuditStore(&cfg.Audit)
	if err != nil {
		return cli.NewCommandError("audit export", err)
	}
	defer store.Close()

	ctx := cmd.Context()
	total, err := store.Count(ctx, q)
	if err != nil {
		return cli.NewCommandError("audit export", fmt.Errorf("count failed: %w", err))
	}
	if auditFlags.limit > 0 && int64(auditFlags.limit) < total {
		total = int64(auditFlags.limit)
	}

	progress := cli.NewProgressReporter(cmd.ErrOrStderr(), "records")
	progress.Start(total)

	records := make([]*audit.Record, 0, total)
	for int64(len(records)) < total {
		q.Offset = len(records)
		q.Limit = int(min(int64(exportBatchSize), total-int64(len(records))))
		batch, err := store.Query(ctx, q)
		if err != nil {
			progress.Error(err)
			return cli.NewCommandError("audit export", fmt.Errorf("query failed: %w", err))
		}
		if len(batch) == 0 {
			break
		}
		records = append(records, batch...)
		progress.Update(int64(len(records)))
	}
	progress.Finish()

	var out io.Writer = cmd.OutOrStdout()
	if auditFlags.output != "" {
		f, err := os.Create(auditFlags.output)
		if err != nil {
			return fmt.Errorf("failed to create output file: %w", err)
		}
		defer f.Close()
		out = f
	}

	if err := exporter.Export(ctx, records, out); err != nil {
		return cli.NewCommandError("audit export", err)
	}
	if auditFlags.output != "" {
		fmt.Fprintf(cmd.ErrOrStderr(), "✓ Exported %d records to %s\n", len(records), auditFlags.output)
	}
	return nil
}

func pruneAudit(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}

	store, err := openAuditStore(&cfg.Audit)
	if err != nil {
		return cli.NewCommandError("audit prune", err)
	}
	defer store.Close()

	ctx := cmd.Context()
	out := cmd.OutOrStdout()

	if auditFlags.dryRun {
		if cfg.Audit.Retention.Days <= 0 {
			fmt.Fprintln(out, "Retention is disabled (audit.retention.days = 0)")
			return nil
		}
		cutoff := time.Now().AddDate(0, 0, -cfg.Audit.Retention.Days)
		n, err := store.Count(ctx, &audit.Query{EndTime: &cutoff})
		if err != nil {
			return cli.NewCommandError("audit prune", err)
		}
		fmt.Fprintf(out, "%d records older than %s would be pruned\n", n, cutoff.Format(time.RFC3339))
		return nil
	}

	report, err := retention.NewPruner(store, retentionConfig(&cfg.Audit.Retention)).Run(ctx, retention.TriggerManual)
	if err != nil {
		return cli.NewCommandError("audit prune", err)
	}
	fmt.Fprintf(out, "✓ Pruned %d records (%d by age, %d over max_records)\n",
		report.Deleted, report.ExpiredByAge, report.OverCapacity)
	for _, file := range report.ArchiveFiles {
		fmt.Fprintf(out, "  archived to %s\n", file)
	}
	return nil
}

// parseTimeRange sets q's time bounds from a "start/end" RFC 3339 interval.
func parseTimeRange(s string, q *audit.Query) error {
	if s == "" {
		return nil
	}
	start, end, ok := strings.Cut(s, "/")
	if !ok {
		return fmt.Errorf("invalid time range format (expected: start/end)")
	}

	startTime, err := time.Parse(time.RFC3339, start)
	if err != nil {
		return fmt.Errorf("invalid start time: %w", err)
	}
	endTime, err := time.Parse(time.RFC3339, end)
	if err != nil {
		return fmt.Errorf("invalid end time: %w", err)
	}
	q.StartTime = &startTime
	q.EndTime = &endTime
	return nil
}
