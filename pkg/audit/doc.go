// Package audit records the outcome of every governed operation for
// compliance and support.
//
// # Architecture
//
// The audit system consists of four layers:
//
//  1. Recorder - accepts records on the request path without blocking
//  2. Sinks - persist or forward records (SQLite, NATS, memory, fan-out)
//  3. Query and export - read records back and render them as JSON or CSV
//  4. Retention - prune old records on a cron schedule
//
// # Audit Records
//
// Each record captures:
//   - Tenant, action (operation name) and correlation ID
//   - Resolved plan and the feature or quota that was checked
//   - Outcome: success, rate_limited, plan_denied or failed
//   - External call attempts and the retry classification of the failure
//   - Duration and timestamp
//
// # Recording Flow
//
//	Governance pipeline → outcome known
//	     ↓
//	Recorder.Record (non-blocking, drops when the buffer is full)
//	     ↓
//	Background worker
//	     ↓
//	Sink.Write (SQLite / NATS / both)
//
// # Basic Usage
//
//	store, err := storage.NewSQLiteStore(&storage.SQLiteConfig{Path: "data/audit.db"})
//	if err != nil {
//	    log.Fatal(err)
//	}
//	rec := recorder.New(store, nil)
//	defer rec.Close()
//
//	rec.Record(&audit.Record{TenantID: "t1", Action: "collab.CreateSite", Outcome: audit.OutcomeSuccess})
//
// # Thread Safety
//
// Recorder, every Sink and every Store are safe for concurrent use.
package audit
