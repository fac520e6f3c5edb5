// Package storage provides the key-value backends that hold rate windows and
// metered usage counters.
//
// # Overview
//
// Window state is derived, recreatable data. It is never durably persisted:
// losing it on restart only hands tenants a fresh window. Two backends are
// provided:
//
//   - Memory: sharded in-process maps (default, single instance)
//   - Redis: shared state for multi-instance deployments
//
// # Usage
//
//	backend := storage.NewMemoryBackend()
//	defer backend.Close()
//
//	state, admitted, err := backend.Admit(ctx, "tenant:42", 100, time.Minute, 90*time.Second, time.Now())
//
// # Thread Safety
//
// Admit performs the window reset, the limit comparison and the increment as
// one atomic unit per key. The memory backend locks one shard per key, so
// unrelated tenants do not contend. The Redis backend runs the same logic as
// a single Lua script.
package storage
