package storage

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"
)

const (
	defaultRedisURL    = "redis://localhost:6379"
	defaultRedisPrefix = "tollgate"
)

// admitScript performs the fixed-window reset, limit comparison and
// increment in one round trip. Times are unix milliseconds.
//
// KEYS[1] window hash
// ARGV[1] limit, ARGV[2] window ms, ARGV[3] ttl ms, ARGV[4] now ms
const admitScript = `
local key = KEYS[1]
local limit = tonumber(ARGV[1])
local window = tonumber(ARGV[2])
local ttl = tonumber(ARGV[3])
local now = tonumber(ARGV[4])

local start = tonumber(redis.call('HGET', key, 'start') or '0')
local count = tonumber(redis.call('HGET', key, 'count') or '0')

if start == 0 or now - start >= window then
  start = now
  count = 0
end

local admitted = 0
if count < limit then
  count = count + 1
  admitted = 1
end

redis.call('HSET', key, 'start', start, 'count', count, 'limit', limit)
redis.call('PEXPIRE', key, ttl)
return {admitted, count, start}
`

// RedisBackend implements Backend on Redis so that several instances share
// one set of windows.
type RedisBackend struct {
	client *redis.Client
	prefix string
	owned  bool
}

// RedisConfig configures the Redis backend.
type RedisConfig struct {
	// URL is a redis:// or rediss:// connection URL.
	// Default: redis://localhost:6379
	URL string

	// KeyPrefix namespaces all keys.
	// Default: "tollgate"
	KeyPrefix string

	// DialTimeout bounds the initial connectivity check.
	// Default: 2 seconds
	DialTimeout time.Duration
}

// NewRedisBackend connects to Redis and verifies connectivity.
func NewRedisBackend(cfg RedisConfig) (*RedisBackend, error) {
	if cfg.URL == "" {
		cfg.URL = defaultRedisURL
	}
	if cfg.DialTimeout <= 0 {
		cfg.DialTimeout = 2 * time.Second
	}

	opts, err := redis.ParseURL(cfg.URL)
	if err != nil {
		return nil, fmt.Errorf("parse redis url: %w", err)
	}
	client := redis.NewClient(opts)

	ctx, cancel := context.WithTimeout(context.Background(), cfg.DialTimeout)
	defer cancel()
	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("connect redis: %w", err)
	}

	backend := NewRedisBackendFromClient(client, cfg.KeyPrefix)
	backend.owned = true
	return backend, nil
}

// NewRedisBackendFromClient wraps an existing client. Close does not close
// a client that was passed in.
func NewRedisBackendFromClient(client *redis.Client, prefix string) *RedisBackend {
	prefix = strings.Trim(prefix, ":")
	if prefix == "" {
		prefix = defaultRedisPrefix
	}
	return &RedisBackend{client: client, prefix: prefix}
}

// Admit implements Backend.
func (r *RedisBackend) Admit(ctx context.Context, key string, limit int64, window, ttl time.Duration, now time.Time) (*WindowState, bool, error) {
	if key == "" {
		return nil, false, ErrEmptyKey
	}

	res, err := r.client.Eval(ctx, admitScript, []string{r.windowKey(key)},
		limit,
		window.Milliseconds(),
		ttl.Milliseconds(),
		now.UnixMilli(),
	).Result()
	if err != nil {
		return nil, false, fmt.Errorf("redis admit: %w", err)
	}

	values, ok := res.([]interface{})
	if !ok || len(values) != 3 {
		return nil, false, fmt.Errorf("redis admit: unexpected reply %T", res)
	}
	admitted, err1 := toInt64(values[0])
	count, err2 := toInt64(values[1])
	start, err3 := toInt64(values[2])
	if err := errors.Join(err1, err2, err3); err != nil {
		return nil, false, fmt.Errorf("redis admit: %w", err)
	}

	return &WindowState{
		Key:         key,
		WindowStart: time.UnixMilli(start),
		Count:       count,
		Limit:       limit,
	}, admitted == 1, nil
}

// Window implements Backend.
func (r *RedisBackend) Window(ctx context.Context, key string) (*WindowState, error) {
	if key == "" {
		return nil, ErrEmptyKey
	}

	values, err := r.client.HMGet(ctx, r.windowKey(key), "start", "count", "limit").Result()
	if err != nil {
		return nil, fmt.Errorf("redis window: %w", err)
	}
	if len(values) != 3 || values[0] == nil {
		return nil, nil
	}

	start, err1 := toInt64(values[0])
	count, err2 := toInt64(values[1])
	limit, err3 := toInt64(values[2])
	if err := errors.Join(err1, err2, err3); err != nil {
		return nil, fmt.Errorf("redis window: %w", err)
	}

	return &WindowState{
		Key:         key,
		WindowStart: time.UnixMilli(start),
		Count:       count,
		Limit:       limit,
	}, nil
}

// IncrementCounter implements Backend.
func (r *RedisBackend) IncrementCounter(ctx context.Context, key string, delta int64, expireAt time.Time) (int64, error) {
	if key == "" {
		return 0, ErrEmptyKey
	}

	counterKey := r.counterKey(key)
	pipe := r.client.TxPipeline()
	incr := pipe.IncrBy(ctx, counterKey, delta)
	if !expireAt.IsZero() {
		pipe.PExpireAt(ctx, counterKey, expireAt)
	}
	if _, err := pipe.Exec(ctx); err != nil {
		return 0, fmt.Errorf("redis increment: %w", err)
	}
	return incr.Val(), nil
}

// Counter implements Backend.
func (r *RedisBackend) Counter(ctx context.Context, key string) (int64, error) {
	if key == "" {
		return 0, ErrEmptyKey
	}

	value, err := r.client.Get(ctx, r.counterKey(key)).Int64()
	if errors.Is(err, redis.Nil) {
		return 0, nil
	}
	if err != nil {
		return 0, fmt.Errorf("redis counter: %w", err)
	}
	return value, nil
}

// Delete implements Backend.
func (r *RedisBackend) Delete(ctx context.Context, key string) error {
	if key == "" {
		return ErrEmptyKey
	}
	if err := r.client.Del(ctx, r.windowKey(key), r.counterKey(key)).Err(); err != nil {
		return fmt.Errorf("redis delete: %w", err)
	}
	return nil
}

// Close closes the client if the backend created it.
func (r *RedisBackend) Close() error {
	if r == nil || r.client == nil || !r.owned {
		return nil
	}
	return r.client.Close()
}

func (r *RedisBackend) windowKey(key string) string {
	return r.prefix + ":window:" + key
}

func (r *RedisBackend) counterKey(key string) string {
	return r.prefix + ":counter:" + key
}

func toInt64(v interface{}) (int64, error) {
	switch t := v.(type) {
	case int64:
		return t, nil
	case string:
		return strconv.ParseInt(t, 10, 64)
	case nil:
		return 0, nil
	default:
		return 0, fmt.Errorf("unexpected value type %T", v)
	}
}
