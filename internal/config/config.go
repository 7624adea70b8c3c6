package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/0xmhha/blockstream-go/internal/constants"
)

// Config holds all configuration for the block streamer
type Config struct {
	Redis    RedisConfig    `yaml:"redis"`
	Lake     LakeConfig     `yaml:"lake"`
	Bitmap   BitmapConfig   `yaml:"bitmap"`
	Server   ServerConfig   `yaml:"server"`
	Stream   StreamConfig   `yaml:"stream"`
	Cache    CacheConfig    `yaml:"cache"`
	Registry RegistryConfig `yaml:"registry"`
	Log      LogConfig      `yaml:"log"`
}

// RedisConfig holds cache service connection configuration
type RedisConfig struct {
	URL          string        `yaml:"url"`
	DialTimeout  time.Duration `yaml:"dial_timeout"`
	ReadTimeout  time.Duration `yaml:"read_timeout"`
	WriteTimeout time.Duration `yaml:"write_timeout"`
}

// LakeConfig holds object-store configuration
type LakeConfig struct {
	// Bucket is the lake bucket name
	Bucket string `yaml:"bucket"`
	// RequestPayer enables requester-pays access
	RequestPayer bool `yaml:"request_payer"`
	// PrefetchDepth bounds blocks in flight ahead of the reducer
	PrefetchDepth int `yaml:"prefetch_depth"`
	// MaxRetries is the per-block retry budget
	MaxRetries int `yaml:"max_retries"`
	// RetryBase is the backoff base delay
	RetryBase time.Duration `yaml:"retry_base"`
	// RetryCap is the backoff delay ceiling
	RetryCap time.Duration `yaml:"retry_cap"`
	// TailInterval is the live-phase poll interval
	TailInterval time.Duration `yaml:"tail_interval"`
}

// BitmapConfig holds bitmap service configuration
type BitmapConfig struct {
	Endpoint          string `yaml:"endpoint"`
	HasuraRole        string `yaml:"hasura_role"`
	RequestsPerSecond int    `yaml:"requests_per_second"`
	PageSize          int    `yaml:"page_size"`
}

// ServerConfig holds the control RPC and metrics ports
type ServerConfig struct {
	GRPCPort    int `yaml:"grpc_port"`
	MetricsPort int `yaml:"metrics_port"`
}

// StreamConfig holds worker behavior configuration
type StreamConfig struct {
	// OnMissingTx is "drop" or "emit": what to do with a match whose parent
	// transaction is unknown after the retry
	OnMissingTx string `yaml:"on_missing_tx"`
	// StopTimeout bounds worker joins on Stop
	StopTimeout time.Duration `yaml:"stop_timeout"`
	// RestartMaxAttempts bounds restarts of failed workers
	RestartMaxAttempts int `yaml:"restart_max_attempts"`
}

// CacheConfig holds receipt cache configuration
type CacheConfig struct {
	// TTL is the fallback eviction window
	TTL time.Duration `yaml:"ttl"`
	// HotCacheSize is the in-process LRU capacity
	HotCacheSize int `yaml:"hot_cache_size"`
}

// RegistryConfig holds registry sync configuration
type RegistryConfig struct {
	// Endpoint of the registry fetcher; empty disables the syncer and
	// leaves lifecycle to the control RPC alone
	Endpoint string `yaml:"endpoint"`
	// PollInterval between registry refreshes
	PollInterval time.Duration `yaml:"poll_interval"`
}

// LogConfig holds logging configuration
type LogConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
}

// NewConfig returns a config with defaults applied
func NewConfig() *Config {
	return &Config{
		Redis: RedisConfig{
			DialTimeout:  5 * time.Second,
			ReadTimeout:  3 * time.Second,
			WriteTimeout: 3 * time.Second,
		},
		Lake: LakeConfig{
			PrefetchDepth: constants.DefaultPrefetchDepth,
			MaxRetries:    constants.DefaultFetchMaxRetries,
			RetryBase:     constants.DefaultFetchRetryBase,
			RetryCap:      constants.DefaultFetchRetryCap,
			TailInterval:  constants.DefaultLiveTailInterval,
		},
		Bitmap: BitmapConfig{
			RequestsPerSecond: constants.DefaultBitmapRequestsPerSecond,
			PageSize:          constants.DefaultBitmapPageSize,
		},
		Server: ServerConfig{
			GRPCPort:    constants.DefaultGRPCPort,
			MetricsPort: constants.DefaultMetricsPort,
		},
		Stream: StreamConfig{
			OnMissingTx:        "drop",
			StopTimeout:        constants.DefaultStopTimeout,
			RestartMaxAttempts: constants.DefaultRestartMaxAttempts,
		},
		Cache: CacheConfig{
			TTL:          constants.DefaultReceiptTTL,
			HotCacheSize: constants.DefaultHotCacheSize,
		},
		Registry: RegistryConfig{
			PollInterval: constants.DefaultRegistryPollInterval,
		},
		Log: LogConfig{
			Level:  "info",
			Format: "json",
		},
	}
}

// Load reads configuration from an optional YAML file, then applies
// environment overrides.
func Load(path string) (*Config, error) {
	cfg := NewConfig()

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("failed to read config file %s: %w", path, err)
		}
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("failed to parse config file %s: %w", path, err)
		}
	}

	if err := cfg.applyEnv(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// applyEnv overrides configuration from the environment.
func (c *Config) applyEnv() error {
	if v := os.Getenv("REDIS_URL"); v != "" {
		c.Redis.URL = v
	}
	if v := os.Getenv("GRAPHQL_ENDPOINT"); v != "" {
		c.Bitmap.Endpoint = v
	}
	if v := os.Getenv("HASURA_ROLE"); v != "" {
		c.Bitmap.HasuraRole = v
	}
	if v := os.Getenv("LAKE_BUCKET"); v != "" {
		c.Lake.Bucket = v
	}
	if v := os.Getenv("GRPC_PORT"); v != "" {
		port, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("GRPC_PORT is not a valid number: %q", v)
		}
		c.Server.GRPCPort = port
	}
	if v := os.Getenv("METRICS_PORT"); v != "" {
		port, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("METRICS_PORT is not a valid number: %q", v)
		}
		c.Server.MetricsPort = port
	}
	if v := os.Getenv("REGISTRY_ENDPOINT"); v != "" {
		c.Registry.Endpoint = v
	}
	return nil
}

// Validate checks required settings. Failures here are fatal at startup.
func (c *Config) Validate() error {
	if c.Redis.URL == "" {
		return fmt.Errorf("redis URL is required (set REDIS_URL or redis.url)")
	}
	if c.Bitmap.Endpoint == "" {
		return fmt.Errorf("bitmap service endpoint is required (set GRAPHQL_ENDPOINT or bitmap.endpoint)")
	}
	if c.Lake.Bucket == "" {
		return fmt.Errorf("lake bucket is required (set LAKE_BUCKET or lake.bucket)")
	}
	if c.Server.GRPCPort <= 0 || c.Server.GRPCPort > 65535 {
		return fmt.Errorf("grpc port %d out of range", c.Server.GRPCPort)
	}
	if c.Server.MetricsPort <= 0 || c.Server.MetricsPort > 65535 {
		return fmt.Errorf("metrics port %d out of range", c.Server.MetricsPort)
	}
	if c.Stream.OnMissingTx != "drop" && c.Stream.OnMissingTx != "emit" {
		return fmt.Errorf("stream.on_missing_tx must be \"drop\" or \"emit\", got %q", c.Stream.OnMissingTx)
	}
	if c.Lake.PrefetchDepth < 0 {
		return fmt.Errorf("lake prefetch depth must not be negative")
	}
	return nil
}
