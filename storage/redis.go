package storage

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/0xmhha/blockstream-go/internal/constants"
)

// Common errors for the cache service client
var (
	// ErrNotFound indicates a missing key; a valid outcome for lookups
	ErrNotFound = errors.New("key not found")

	// ErrConnectionFailed indicates the initial connection could not be established
	ErrConnectionFailed = errors.New("failed to connect to cache service")
)

// Client is a thin handle over the shared Redis-compatible service used for
// the receipt cache and the per-indexer work streams. The handle is cheaply
// copyable and safe for concurrent use; construct once in main and inject.
type Client struct {
	rdb    *redis.Client
	logger *zap.Logger
}

// Config holds cache service connection configuration.
type Config struct {
	// URL is the redis:// connection string
	URL string

	// DialTimeout bounds the initial connection attempt
	DialTimeout time.Duration

	// ReadTimeout bounds individual read commands
	ReadTimeout time.Duration

	// WriteTimeout bounds individual write commands
	WriteTimeout time.Duration
}

// Connect opens a client and verifies the connection with a ping.
func Connect(ctx context.Context, cfg Config, logger *zap.Logger) (*Client, error) {
	opts, err := redis.ParseURL(cfg.URL)
	if err != nil {
		return nil, fmt.Errorf("invalid redis URL: %w", err)
	}
	if cfg.DialTimeout > 0 {
		opts.DialTimeout = cfg.DialTimeout
	}
	if cfg.ReadTimeout > 0 {
		opts.ReadTimeout = cfg.ReadTimeout
	}
	if cfg.WriteTimeout > 0 {
		opts.WriteTimeout = cfg.WriteTimeout
	}

	rdb := redis.NewClient(opts)
	if err := rdb.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrConnectionFailed, err)
	}

	return &Client{rdb: rdb, logger: logger}, nil
}

// Close releases the underlying connection pool.
func (c *Client) Close() error {
	return c.rdb.Close()
}

// Healthy reports whether the service answers a ping within one second.
func (c *Client) Healthy(ctx context.Context) bool {
	ctx, cancel := context.WithTimeout(ctx, time.Second)
	defer cancel()
	return c.rdb.Ping(ctx).Err() == nil
}

// Get reads a binary value. Returns ErrNotFound for missing keys.
func (c *Client) Get(ctx context.Context, key string) ([]byte, error) {
	val, err := c.rdb.Get(ctx, key).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("GET %s: %w", key, err)
	}
	return val, nil
}

// Set writes a binary value with no expiry.
func (c *Client) Set(ctx context.Context, key string, value []byte) error {
	if err := c.rdb.Set(ctx, key, value, 0).Err(); err != nil {
		return fmt.Errorf("SET %s: %w", key, err)
	}
	return nil
}

// SetWithTTL writes a binary value that expires after ttl.
func (c *Client) SetWithTTL(ctx context.Context, key string, value []byte, ttl time.Duration) error {
	if err := c.rdb.Set(ctx, key, value, ttl).Err(); err != nil {
		return fmt.Errorf("SET %s: %w", key, err)
	}
	return nil
}

// SetNX writes the value only if the key does not exist yet. Returns whether
// the write happened.
func (c *Client) SetNX(ctx context.Context, key string, value []byte, ttl time.Duration) (bool, error) {
	ok, err := c.rdb.SetNX(ctx, key, value, ttl).Result()
	if err != nil {
		return false, fmt.Errorf("SETNX %s: %w", key, err)
	}
	return ok, nil
}

// Del removes a key. Missing keys are not an error.
func (c *Client) Del(ctx context.Context, key string) error {
	if err := c.rdb.Del(ctx, key).Err(); err != nil {
		return fmt.Errorf("DEL %s: %w", key, err)
	}
	return nil
}

// IncrBy adjusts a counter key and returns the new value.
func (c *Client) IncrBy(ctx context.Context, key string, delta int64) (int64, error) {
	val, err := c.rdb.IncrBy(ctx, key, delta).Result()
	if err != nil {
		return 0, fmt.Errorf("INCRBY %s: %w", key, err)
	}
	return val, nil
}

// XAdd appends a field-value record to a work stream. The broker guarantees
// append order per key.
func (c *Client) XAdd(ctx context.Context, stream string, fields map[string]interface{}) error {
	err := c.rdb.XAdd(ctx, &redis.XAddArgs{
		Stream: stream,
		Values: fields,
	}).Err()
	if err != nil {
		return fmt.Errorf("XADD %s: %w", stream, err)
	}

	if c.logger != nil {
		c.logger.Debug("appended to stream", zap.String("stream", stream))
	}
	return nil
}

// SetLastIndexedBlock persists the resume height.
func (c *Client) SetLastIndexedBlock(ctx context.Context, height uint64) error {
	return c.Set(ctx, constants.LastIndexedBlockKey, []byte(fmt.Sprintf("%d", height)))
}

// GetLastIndexedBlock reads the resume height. Returns ErrNotFound when the
// pipeline has never persisted one.
func (c *Client) GetLastIndexedBlock(ctx context.Context) (uint64, error) {
	raw, err := c.Get(ctx, constants.LastIndexedBlockKey)
	if err != nil {
		return 0, err
	}
	var height uint64
	if _, err := fmt.Sscanf(string(raw), "%d", &height); err != nil {
		return 0, fmt.Errorf("malformed %s value %q: %w", constants.LastIndexedBlockKey, raw, err)
	}
	return height, nil
}
