// Package subscriptions provides read access to tenant subscription rows and
// live resource counts.
//
// Two implementations are provided:
//
//   - MemorySource: in-process maps, for tests and demos
//   - SQLiteSource: a SQLite database (modernc.org/sqlite, no cgo)
//
// Both satisfy Source, which the plan enforcer uses to resolve plans, and
// ResourceCounter, which backs quota counters:
//
//	src, _ := subscriptions.NewSQLiteSource("data/tenants.db")
//	enforcer := enforcement.NewEnforcer(catalog, src, cfg)
//	enforcer.RegisterCounter(plans.QuotaClientSpaces,
//	    subscriptions.CounterFor(src, plans.QuotaClientSpaces))
package subscriptions
