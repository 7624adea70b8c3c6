package constants

import "time"

// Stream Worker Constants
const (
	// DefaultPrefetchDepth is the default number of blocks fetched ahead of the reducer
	DefaultPrefetchDepth = 8

	// DefaultFetchMaxRetries is the default retry budget for a single object fetch
	DefaultFetchMaxRetries = 5

	// DefaultFetchRetryBase is the base delay for exponential backoff on fetch errors
	DefaultFetchRetryBase = time.Second

	// DefaultFetchRetryCap is the maximum delay between fetch retries
	DefaultFetchRetryCap = 30 * time.Second

	// DefaultLiveTailInterval is how often the live phase polls for new blocks
	DefaultLiveTailInterval = time.Second

	// DefaultMissingTxRetryDelay is the pause before re-reading the cache for a
	// receipt whose parent transaction has not been observed yet
	DefaultMissingTxRetryDelay = 250 * time.Millisecond

	// DefaultStopTimeout bounds how long the controller waits for a worker join
	DefaultStopTimeout = 30 * time.Second

	// DefaultRestartMaxAttempts bounds restarts of a failed worker
	DefaultRestartMaxAttempts = 5
)

// Cache Constants
const (
	// DefaultReceiptTTL is the fallback eviction TTL for receipt -> tx entries
	DefaultReceiptTTL = 2 * time.Hour

	// DefaultHotCacheSize is the size of the in-process LRU in front of Redis
	DefaultHotCacheSize = 65536

	// LastIndexedBlockKey is the persisted resume-height key
	LastIndexedBlockKey = "last_indexed_block"
)

// Bitmap Service Constants
const (
	// DefaultBitmapPageSize is the per-day row page size for bitmap queries
	DefaultBitmapPageSize = 1000

	// DefaultBitmapRequestsPerSecond rate-limits the bitmap service client
	DefaultBitmapRequestsPerSecond = 10

	// DefaultBitmapTimeout is the per-request timeout against the bitmap service
	DefaultBitmapTimeout = 30 * time.Second
)

// Server Constants
const (
	// DefaultGRPCPort is the default control RPC port
	DefaultGRPCPort = 10000

	// DefaultMetricsPort is the default metrics HTTP port
	DefaultMetricsPort = 9180

	// DefaultShutdownTimeout is the default graceful shutdown timeout
	DefaultShutdownTimeout = 30 * time.Second
)

// Registry Constants
const (
	// DefaultRegistryPollInterval is how often the registry snapshot is refreshed
	DefaultRegistryPollInterval = 10 * time.Second
)
