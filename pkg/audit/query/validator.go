package query

import (
	"fmt"

	"mercator-hq/tollgate/pkg/audit"
)

const (
	// DefaultLimit is the default number of records to return if not specified.
	DefaultLimit = 100

	// MaxLimit is the maximum number of records that can be returned in a single query.
	MaxLimit = 10000
)

// ValidSortOrders contains the valid sort orders.
var ValidSortOrders = map[string]bool{
	"asc":  true,
	"desc": true,
}

// Validate validates a query and returns an error if any parameters are invalid.
func Validate(q *audit.Query) error {
	if q.Limit < 0 {
		return audit.NewQueryError(q, fmt.Errorf("limit must be >= 0, got %d", q.Limit))
	}
	if q.Limit > MaxLimit {
		return audit.NewQueryError(q, fmt.Errorf("limit must be <= %d, got %d", MaxLimit, q.Limit))
	}

	if q.Offset < 0 {
		return audit.NewQueryError(q, fmt.Errorf("offset must be >= 0, got %d", q.Offset))
	}

	if q.SortOrder != "" && !ValidSortOrders[q.SortOrder] {
		return audit.NewQueryError(q, fmt.Errorf("invalid sort order: %s (must be 'asc' or 'desc')", q.SortOrder))
	}

	if q.StartTime != nil && q.EndTime != nil && q.StartTime.After(*q.EndTime) {
		return audit.NewQueryError(q, fmt.Errorf("start_time must be before end_time"))
	}

	if q.Outcome != "" && !q.Outcome.Valid() {
		return audit.NewQueryError(q, fmt.Errorf("invalid outcome: %s", q.Outcome))
	}

	return nil
}

// ApplyDefaults applies default values to a query.
func ApplyDefaults(q *audit.Query) {
	if q.Limit == 0 {
		q.Limit = DefaultLimit
	}
	if q.SortOrder == "" {
		q.SortOrder = "desc"
	}
}
