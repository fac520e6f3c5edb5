// Package storage provides sinks and stores for audit records.
//
// # Backends
//
//   - SQLiteStore: embedded durable store, queryable and prunable
//   - MemoryStore: in-memory store for tests and development
//   - NATSSink: publishes records to NATS for downstream consumers
//   - MultiSink: fans a record out to several sinks
//
// # SQLite Backend
//
// The SQLite store provides:
//
//   - WAL mode for concurrent reads/writes
//   - Indexes on timestamp, tenant, outcome and correlation ID
//   - A schema_version table checked on open
//   - Busy timeout for handling locks
//
// # Basic Usage
//
//	store, err := storage.NewSQLiteStore(&storage.SQLiteConfig{Path: "data/audit.db", WALMode: true})
//	if err != nil {
//	    log.Fatal(err)
//	}
//	bus, err := storage.NewNATSSink(&storage.NATSConfig{URL: "nats://localhost:4222"})
//	if err != nil {
//	    log.Fatal(err)
//	}
//	sink := storage.NewMultiSink(store, bus)
//	defer sink.Close()
package storage
