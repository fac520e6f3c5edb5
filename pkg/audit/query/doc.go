// Package query validates audit queries coming from the HTTP surface.
//
// The validator ensures query parameters are valid before execution:
//
//   - 0 <= Limit <= MaxLimit
//   - Offset >= 0
//   - Sort order is asc or desc
//   - Time range is valid (start <= end)
//   - Outcome is a known outcome
//
// # Basic Usage
//
//	q := &audit.Query{TenantID: "t1", Outcome: audit.OutcomePlanDenied}
//	if err := query.Validate(q); err != nil {
//	    return err
//	}
//	query.ApplyDefaults(q)
//	records, err := store.Query(ctx, q)
package query
