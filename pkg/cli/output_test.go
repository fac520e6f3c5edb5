package cli

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strings"
	"testing"
)

type testTable struct {
	header []string
	rows   [][]string
}

func (t testTable) Header() []string { return t.header }
func (t testTable) Rows() [][]string { return t.rows }

var tiers = testTable{
	header: []string{"TIER", "CLIENT SPACES"},
	rows: [][]string{
		{"starter", "3"},
		{"enterprise", "unlimited"},
	},
}

func TestTextFormatter(t *testing.T) {
	formatter := &TextFormatter{}

	output, err := formatter.Format("test message")
	if err != nil {
		t.Fatalf("Format() error = %v", err)
	}
	if string(output) != "test message\n" {
		t.Errorf("Format() = %q, want %q", string(output), "test message\n")
	}
}

func TestTextFormatter_Table(t *testing.T) {
	buf := &bytes.Buffer{}
	if err := (&TextFormatter{}).FormatTo(buf, tiers); err != nil {
		t.Fatalf("FormatTo() error = %v", err)
	}

	lines := strings.Split(strings.TrimRight(buf.String(), "\n"), "\n")
	if len(lines) != 3 {
		t.Fatalf("got %d lines, want 3:\n%s", len(lines), buf.String())
	}
	if !strings.HasPrefix(lines[0], "TIER") {
		t.Errorf("header = %q", lines[0])
	}
	// Columns are aligned: the second column starts at the same offset.
	if strings.Index(lines[1], "3") != strings.Index(lines[2], "unlimited") {
		t.Errorf("columns not aligned:\n%s", buf.String())
	}
}

func TestJSONFormatter(t *testing.T) {
	tests := []struct {
		name   string
		data   any
		indent bool
	}{
		{name: "simple string", data: "test"},
		{name: "map with indent", data: map[string]string{"key": "value"}, indent: true},
		{
			name: "struct",
			data: struct {
				Name  string `json:"name"`
				Value int    `json:"value"`
			}{Name: "test", Value: 42},
			indent: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			output, err := (&JSONFormatter{Indent: tt.indent}).Format(tt.data)
			if err != nil {
				t.Fatalf("Format() error = %v", err)
			}
			var result any
			if err := json.Unmarshal(output, &result); err != nil {
				t.Errorf("Format() produced invalid JSON: %v", err)
			}
		})
	}
}

func TestCSVFormatter(t *testing.T) {
	output, err := (&CSVFormatter{}).Format(tiers)
	if err != nil {
		t.Fatalf("Format() error = %v", err)
	}
	want := "TIER,CLIENT SPACES\nstarter,3\nenterprise,unlimited\n"
	if string(output) != want {
		t.Errorf("Format() = %q, want %q", string(output), want)
	}

	output, err = (&CSVFormatter{OmitHeader: true}).Format(tiers)
	if err != nil {
		t.Fatalf("Format() error = %v", err)
	}
	if strings.Contains(string(output), "TIER") {
		t.Errorf("expected no header, got %q", string(output))
	}
}

func TestCSVFormatter_RequiresTable(t *testing.T) {
	if _, err := (&CSVFormatter{}).Format(map[string]int{"a": 1}); err == nil {
		t.Error("expected error for non-tabular data")
	}
}

func TestNewFormatter(t *testing.T) {
	tests := []struct {
		format OutputFormat
		want   string
	}{
		{format: FormatText, want: "*cli.TextFormatter"},
		{format: FormatJSON, want: "*cli.JSONFormatter"},
		{format: FormatCSV, want: "*cli.CSVFormatter"},
		{format: "unknown", want: "*cli.TextFormatter"},
	}

	for _, tt := range tests {
		if got := fmt.Sprintf("%T", NewFormatter(tt.format)); got != tt.want {
			t.Errorf("NewFormatter(%q) type = %v, want %v", tt.format, got, tt.want)
		}
	}
}

func TestParseFormat(t *testing.T) {
	tests := []struct {
		in      string
		want    OutputFormat
		wantErr bool
	}{
		{in: "", want: FormatText},
		{in: "JSON", want: FormatJSON},
		{in: "csv", want: FormatCSV},
		{in: "junit", wantErr: true},
	}

	for _, tt := range tests {
		got, err := ParseFormat(tt.in)
		if (err != nil) != tt.wantErr {
			t.Errorf("ParseFormat(%q) error = %v, wantErr %v", tt.in, err, tt.wantErr)
			continue
		}
		if got != tt.want {
			t.Errorf("ParseFormat(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}
