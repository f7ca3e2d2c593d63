package cache

import (
	"context"
	"errors"
	"fmt"
	"sync/atomic"
	"time"

	"github.com/redis/go-redis/v9"
)

// RedisConfig controls connection setup for [NewRedis].
type RedisConfig struct {
	URL          string
	Password     string
	DB           int
	PoolSize     int
	MaxRetries   int
	DialTimeout  time.Duration
	ReadTimeout  time.Duration
	WriteTimeout time.Duration
	// HealthCheckInterval caches the PING result used by Available.
	// Zero pings on every call.
	HealthCheckInterval time.Duration
}

// Redis is a cache backed by a go-redis client.
type Redis struct {
	client         redis.UniversalClient
	healthInterval time.Duration
	pingTimeout    time.Duration

	lastCheck atomic.Int64
	healthy   atomic.Bool
}

// NewRedis parses cfg.URL, applies timeouts and verifies the server with a PING.
func NewRedis(ctx context.Context, cfg RedisConfig) (*Redis, error) {
	opts, err := redis.ParseURL(cfg.URL)
	if err != nil {
		return nil, fmt.Errorf("invalid redis URL: %w", err)
	}
	if cfg.Password != "" {
		opts.Password = cfg.Password
	}
	if cfg.DB > 0 {
		opts.DB = cfg.DB
	}
	if cfg.PoolSize > 0 {
		opts.PoolSize = cfg.PoolSize
	}
	if cfg.MaxRetries > 0 {
		opts.MaxRetries = cfg.MaxRetries
	}
	opts.DialTimeout = orDefault(cfg.DialTimeout, 5*time.Second)
	opts.ReadTimeout = orDefault(cfg.ReadTimeout, 3*time.Second)
	opts.WriteTimeout = orDefault(cfg.WriteTimeout, 3*time.Second)

	client := redis.NewClient(opts)

	pingCtx, cancel := context.WithTimeout(ctx, opts.DialTimeout)
	defer cancel()
	if err := client.Ping(pingCtx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("failed to connect to redis: %w", err)
	}

	r := NewRedisFromClient(client, cfg.HealthCheckInterval)
	r.pingTimeout = opts.ReadTimeout
	return r, nil
}

// NewRedisFromClient wraps an existing client. The caller keeps ownership of
// client unless Close is called on the returned value.
func NewRedisFromClient(client redis.UniversalClient, healthCheckInterval time.Duration) *Redis {
	r := &Redis{
		client:         client,
		healthInterval: healthCheckInterval,
		pingTimeout:    time.Second,
	}
	r.healthy.Store(true)
	return r
}

// Client exposes the underlying client for health probes and tooling.
func (r *Redis) Client() redis.UniversalClient {
	return r.client
}

func (r *Redis) Get(ctx context.Context, key string) (string, bool, error) {
	v, err := r.client.Get(ctx, key).Result()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return "", false, nil
		}
		return "", false, r.fail(err)
	}
	return v, true, nil
}

func (r *Redis) Set(ctx context.Context, key, value string, ttl time.Duration) error {
	if ttl < 0 {
		ttl = 0
	}
	if err := r.client.Set(ctx, key, value, ttl).Err(); err != nil {
		return r.fail(err)
	}
	return nil
}

func (r *Redis) Increment(ctx context.Context, key string) (int64, error) {
	n, err := r.client.Incr(ctx, key).Result()
	if err != nil {
		if isValueError(err) {
			return 0, fmt.Errorf("%w: %v", ErrNotInteger, err)
		}
		return 0, r.fail(err)
	}
	return n, nil
}

func (r *Redis) Expire(ctx context.Context, key string, ttl time.Duration) error {
	if err := r.client.Expire(ctx, key, ttl).Err(); err != nil {
		return r.fail(err)
	}
	return nil
}

func (r *Redis) Exists(ctx context.Context, key string) (bool, error) {
	n, err := r.client.Exists(ctx, key).Result()
	if err != nil {
		return false, r.fail(err)
	}
	return n > 0, nil
}

func (r *Redis) Delete(ctx context.Context, key string) error {
	if err := r.client.Del(ctx, key).Err(); err != nil {
		return r.fail(err)
	}
	return nil
}

// Available reports whether the server answered the most recent PING.
func (r *Redis) Available(ctx context.Context) bool {
	if r == nil || r.client == nil {
		return false
	}
	now := time.Now().UnixNano()
	if r.healthInterval > 0 && now-r.lastCheck.Load() < int64(r.healthInterval) {
		return r.healthy.Load()
	}

	pingCtx, cancel := context.WithTimeout(ctx, r.pingTimeout)
	defer cancel()
	ok := r.client.Ping(pingCtx).Err() == nil
	r.healthy.Store(ok)
	r.lastCheck.Store(now)
	return ok
}

// Close closes the underlying client.
func (r *Redis) Close() error {
	return r.client.Close()
}

func (r *Redis) fail(err error) error {
	r.healthy.Store(false)
	r.lastCheck.Store(time.Now().UnixNano())
	return fmt.Errorf("%w: %v", ErrUnavailable, err)
}

// Redis replies with an ERR for INCR on a non-integer value; that is a
// data problem, not an outage.
func isValueError(err error) bool {
	var rerr redis.Error
	return errors.As(err, &rerr)
}

func orDefault(d, fallback time.Duration) time.Duration {
	if d > 0 {
		return d
	}
	return fallback
}
