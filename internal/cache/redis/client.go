// Package redis implements the fan-out signal bus on go-redis/v9. Redis
// Pub/Sub gives each dashboard subscriber its own delivery queue, so a slow
// consumer never back-pressures the detection path.
package redis

import (
	"context"
	"crypto/tls"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// Publishes come from a single dedicated goroutine; tight dial and write
// timeouts keep a hung Redis from pinning it.
const (
	dialTimeout  = 5 * time.Second
	writeTimeout = 3 * time.Second
)

// ClientConfig holds the connection parameters for the signal-bus Redis.
type ClientConfig struct {
	Addr       string
	Password   string
	DB         int
	PoolSize   int
	MaxRetries int
	TLSEnabled bool
}

// Client wraps the driver so the bus shares one verified connection pool.
type Client struct {
	rdb *redis.Client
}

// New connects and round-trips a PING, so an unreachable bus fails at
// wiring time rather than as silently dropped broadcasts.
func New(ctx context.Context, cfg ClientConfig) (*Client, error) {
	opts := &redis.Options{
		Addr:         cfg.Addr,
		Password:     cfg.Password,
		DB:           cfg.DB,
		PoolSize:     cfg.PoolSize,
		MaxRetries:   cfg.MaxRetries,
		DialTimeout:  dialTimeout,
		WriteTimeout: writeTimeout,
	}
	if cfg.TLSEnabled {
		opts.TLSConfig = &tls.Config{MinVersion: tls.VersionTLS12}
	}

	rdb := redis.NewClient(opts)
	if err := rdb.Ping(ctx).Err(); err != nil {
		_ = rdb.Close()
		return nil, fmt.Errorf("redis: connect %s: %w", cfg.Addr, err)
	}
	return &Client{rdb: rdb}, nil
}

// Close releases the connection pool.
func (c *Client) Close() error {
	return c.rdb.Close()
}

// Underlying returns the raw driver client for the signal bus.
func (c *Client) Underlying() *redis.Client {
	return c.rdb
}
