package main

import (
	"bytes"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"mercator-hq/tollgate/pkg/audit"
	"mercator-hq/tollgate/pkg/cli"
	"mercator-hq/tollgate/pkg/limits/plans"
)

func TestVersionCommand(t *testing.T) {
	var buf bytes.Buffer
	versionCmd.SetOut(&buf)
	defer versionCmd.SetOut(nil)

	versionCmd.Run(versionCmd, nil)

	if !strings.Contains(buf.String(), "Tollgate "+Version) {
		t.Errorf("unexpected output:\n%s", buf.String())
	}
}

func TestCatalogTable(t *testing.T) {
	table := catalogTable(plans.DefaultCatalog().Definitions())

	header := table.Header()
	if header[0] != "TIER" || header[len(header)-1] != "FEATURES" {
		t.Errorf("unexpected header %v", header)
	}

	rows := table.Rows()
	if len(rows) != 4 {
		t.Fatalf("got %d rows, want 4", len(rows))
	}
	for _, row := range rows {
		if len(row) != len(header) {
			t.Errorf("row %v has %d cells, want %d", row, len(row), len(header))
		}
	}
	if rows[0][0] != string(plans.TierStarter) {
		t.Errorf("first row = %v, want starter", rows[0])
	}
	if last := rows[3]; !strings.Contains(last[len(last)-1], string(plans.FeatureAuditExport)) {
		t.Errorf("enterprise features = %q", last[len(last)-1])
	}

	var buf bytes.Buffer
	if err := cli.NewFormatter(cli.FormatCSV).FormatTo(&buf, table); err != nil {
		t.Fatalf("csv output failed: %v", err)
	}
	if lines := strings.Count(buf.String(), "\n"); lines != 5 {
		t.Errorf("csv has %d lines, want 5", lines)
	}
}

func TestPrintPlans(t *testing.T) {
	var buf bytes.Buffer
	plansCmd.SetOut(&buf)
	defer plansCmd.SetOut(nil)
	plansFlags.format = "json"
	defer func() { plansFlags.format = "text" }()

	if err := printPlans(plansCmd, nil); err != nil {
		t.Fatalf("printPlans failed: %v", err)
	}
	if !strings.Contains(buf.String(), `"tier": "enterprise"`) {
		t.Errorf("unexpected output:\n%s", buf.String())
	}
}

func TestCheckConfig(t *testing.T) {
	dir := t.TempDir()
	writeFile := func(name, content string) string {
		path := filepath.Join(dir, name)
		if err := os.WriteFile(path, []byte(content), 0o600); err != nil {
			t.Fatalf("WriteFile failed: %v", err)
		}
		return path
	}

	good := writeFile("good.yaml", "server:\n  listen_address: 127.0.0.1:9090\n")
	bad := writeFile("bad.yaml", "rate_limit:\n  backend: etcd\n")
	missingTier := writeFile("tier.yaml", "plans:\n  fallback_tier: platinum\n")

	tests := []struct {
		name     string
		path     string
		wantErr  bool
		wantCode int
	}{
		{name: "valid", path: good},
		{name: "invalid backend", path: bad, wantErr: true, wantCode: cli.ExitConfig},
		{name: "unknown fallback tier", path: missingTier, wantErr: true, wantCode: cli.ExitConfig},
		{name: "missing file", path: filepath.Join(dir, "nope.yaml"), wantErr: true, wantCode: cli.ExitConfig},
	}

	origCfgFile := cfgFile
	defer func() { cfgFile = origCfgFile }()

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfgFile = tt.path
			var buf bytes.Buffer
			checkCmd.SetOut(&buf)
			defer checkCmd.SetOut(nil)

			err := checkConfig(checkCmd, nil)
			if (err != nil) != tt.wantErr {
				t.Fatalf("checkConfig() error = %v, wantErr %v", err, tt.wantErr)
			}
			if err != nil {
				if code := cli.ExitCode(err); code != tt.wantCode {
					t.Errorf("exit code = %d, want %d", code, tt.wantCode)
				}
				return
			}
			if !strings.Contains(buf.String(), "Plan catalog valid: built-in (4 tiers)") {
				t.Errorf("unexpected output:\n%s", buf.String())
			}
		})
	}
}

func TestParseTimeRange(t *testing.T) {
	tests := []struct {
		in      string
		wantErr bool
	}{
		{in: ""},
		{in: "2026-10-01T00:00:00Z/2026-10-18T00:00:00Z"},
		{in: "2026-10-01T00:00:00Z", wantErr: true},
		{in: "yesterday/today", wantErr: true},
		{in: "2026-10-01T00:00:00Z/tomorrow", wantErr: true},
	}

	for _, tt := range tests {
		q := &audit.Query{}
		err := parseTimeRange(tt.in, q)
		if (err != nil) != tt.wantErr {
			t.Errorf("parseTimeRange(%q) error = %v, wantErr %v", tt.in, err, tt.wantErr)
			continue
		}
		if tt.in != "" && !tt.wantErr {
			want := time.Date(2026, 10, 1, 0, 0, 0, 0, time.UTC)
			if q.StartTime == nil || !q.StartTime.Equal(want) || q.EndTime == nil {
				t.Errorf("parseTimeRange(%q) = %v..%v", tt.in, q.StartTime, q.EndTime)
			}
		}
	}
}
