// Package retention prunes old audit records.
//
// Pruning runs in two phases: records older than RetentionDays are deleted,
// then the oldest records are deleted while the total exceeds MaxRecords.
// Either limit may be zero to disable it. When ArchiveBeforeDelete is set,
// records are written to a JSON file under ArchivePath first.
//
// # Basic Usage
//
//	pruner := retention.NewPruner(store, &retention.Config{
//	    RetentionDays: 90,
//	    PruneSchedule: "0 3 * * *", // Daily at 3 AM
//	})
//	if err := pruner.Start(ctx); err != nil {
//	    log.Fatal(err)
//	}
//	defer pruner.Stop()
//
// If PruneSchedule is empty, Start does nothing and returns nil. Every run,
// scheduled or manual, produces a Report and is passed to the Observer set
// with WithObserver.
package retention
