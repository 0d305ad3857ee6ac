// Package redisalloc allocates path ids from a shared Redis counter.
//
// Multiple engine processes pointed at the same key draw from one id space,
// so paths written by different processes never collide. INCR is atomic and
// never reissues a value; ids handed to a transaction that later rolls back
// are burned, which the engine's id contract requires anyway.
package redisalloc

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// DefaultKey is the counter key used when none is configured.
const DefaultKey = "pathdag:next_path_id"

// Config holds the connection settings for an allocator.
type Config struct {
	// Addr is the host:port of the Redis server.
	Addr string

	// Password is optional.
	Password string

	// DB selects the logical database. Defaults to 0.
	DB int

	// Key is the counter key. Defaults to DefaultKey.
	Key string

	// DialTimeout bounds the initial connection check. Defaults to 5s.
	DialTimeout time.Duration
}

// Allocator is a redis-backed pathdag.PathAllocator.
type Allocator struct {
	client *redis.Client
	key    string
}

// New connects to Redis and verifies the connection.
func New(ctx context.Context, cfg Config) (*Allocator, error) {
	if cfg.Addr == "" {
		return nil, errors.New("redisalloc: addr required")
	}
	if cfg.Key == "" {
		cfg.Key = DefaultKey
	}
	if cfg.DialTimeout <= 0 {
		cfg.DialTimeout = 5 * time.Second
	}

	client := redis.NewClient(&redis.Options{
		Addr:        cfg.Addr,
		Password:    cfg.Password,
		DB:          cfg.DB,
		DialTimeout: cfg.DialTimeout,
	})

	ctx, cancel := context.WithTimeout(ctx, cfg.DialTimeout)
	defer cancel()
	if err := client.Ping(ctx).Err(); err != nil {
		client.Close()
		return nil, fmt.Errorf("ping %s: %w", cfg.Addr, err)
	}
	return &Allocator{client: client, key: cfg.Key}, nil
}

// NextPathID returns the next id from the shared counter.
func (a *Allocator) NextPathID(ctx context.Context) (int64, error) {
	id, err := a.client.Incr(ctx, a.key).Result()
	if err != nil {
		return 0, fmt.Errorf("incr %s: %w", a.key, err)
	}
	return id, nil
}

// Close releases the client's connection pool.
func (a *Allocator) Close() error {
	return a.client.Close()
}
