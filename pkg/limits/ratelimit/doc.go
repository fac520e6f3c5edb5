// Package ratelimit enforces a per-tenant request ceiling over fixed time windows.
//
// # Algorithm
//
// Each tenant key owns one window {WindowStart, Count}. On every check the
// window is reset when now-WindowStart >= Window, then the request is admitted
// and counted only while Count < limit. Rejections are not counted. A client
// can therefore get up to twice the limit through across a window boundary;
// that burst is accepted.
//
//	limiter := ratelimit.NewLimiter(backend, ratelimit.Config{DefaultLimit: 100})
//	result, err := limiter.CheckRateLimit(ctx, tenantID, 0)
//	if err == nil && !result.Allowed {
//	    // respond 429 with result.RetryAfter
//	}
//
// # Storage
//
// Windows live in a storage.Backend. The reset, comparison and increment are
// a single atomic Admit call: a shard lock for the memory backend or a Lua
// script for Redis. Idle windows expire after Window+Grace.
//
// # Failure Handling
//
// The limiter fails open. An empty tenant key, a missing limit or a backend
// error lets the request through with a warning. Set StrictTenantKey to reject
// requests that carry no tenant key instead.
package ratelimit
