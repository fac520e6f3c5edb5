package query

import (
	"errors"
	"testing"
	"time"

	"mercator-hq/tollgate/pkg/audit"
)

func TestValidate(t *testing.T) {
	now := time.Now()
	earlier := now.Add(-time.Hour)

	tests := []struct {
		name    string
		query   *audit.Query
		wantErr bool
	}{
		{"empty", &audit.Query{}, false},
		{"full", &audit.Query{TenantID: "t1", Outcome: audit.OutcomeFailed, Limit: 10, Offset: 5, SortOrder: "asc", StartTime: &earlier, EndTime: &now}, false},
		{"negative limit", &audit.Query{Limit: -1}, true},
		{"limit too large", &audit.Query{Limit: MaxLimit + 1}, true},
		{"negative offset", &audit.Query{Offset: -1}, true},
		{"bad sort order", &audit.Query{SortOrder: "sideways"}, true},
		{"inverted time range", &audit.Query{StartTime: &now, EndTime: &earlier}, true},
		{"unknown outcome", &audit.Query{Outcome: "exploded"}, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := Validate(tt.query)
			if (err != nil) != tt.wantErr {
				t.Fatalf("Validate() error = %v, wantErr %v", err, tt.wantErr)
			}
			if err != nil {
				var qe *audit.QueryError
				if !errors.As(err, &qe) {
					t.Errorf("Expected *audit.QueryError, got %T", err)
				}
			}
		})
	}
}

func TestApplyDefaults(t *testing.T) {
	q := &audit.Query{}
	ApplyDefaults(q)
	if q.Limit != DefaultLimit {
		t.Errorf("Expected limit %d, got %d", DefaultLimit, q.Limit)
	}
	if q.SortOrder != "desc" {
		t.Errorf("Expected desc sort order, got %q", q.SortOrder)
	}

	q = &audit.Query{Limit: 5, SortOrder: "asc"}
	ApplyDefaults(q)
	if q.Limit != 5 || q.SortOrder != "asc" {
		t.Errorf("Explicit values should be kept, got %+v", q)
	}
}
