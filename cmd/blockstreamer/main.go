package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/joho/godotenv"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"golang.org/x/sync/errgroup"

	"github.com/0xmhha/blockstream-go/bitmap"
	"github.com/0xmhha/blockstream-go/cache"
	"github.com/0xmhha/blockstream-go/internal/config"
	"github.com/0xmhha/blockstream-go/internal/constants"
	"github.com/0xmhha/blockstream-go/internal/logger"
	"github.com/0xmhha/blockstream-go/lake"
	"github.com/0xmhha/blockstream-go/metrics"
	"github.com/0xmhha/blockstream-go/registry"
	"github.com/0xmhha/blockstream-go/server"
	"github.com/0xmhha/blockstream-go/storage"
	"github.com/0xmhha/blockstream-go/stream"
)

var (
	// Version information (injected at build time)
	version   = "dev"
	commit    = "none"
	buildTime = "unknown"
)

func main() {
	var (
		configFile  = flag.String("config", "", "Path to configuration file (YAML)")
		showVersion = flag.Bool("version", false, "Show version information and exit")
		logLevel    = flag.String("log-level", "", "Log level (debug, info, warn, error)")
		logFormat   = flag.String("log-format", "", "Log format (json, console)")
		grpcPort    = flag.Int("grpc-port", 0, "Control RPC port")
		metricsPort = flag.Int("metrics-port", 0, "Metrics HTTP port")
	)

	flag.Parse()

	if *showVersion {
		fmt.Printf("blockstreamer version %s\n", version)
		fmt.Printf("  commit: %s\n", commit)
		fmt.Printf("  built:  %s\n", buildTime)
		os.Exit(0)
	}

	cfg, err := loadConfig(*configFile)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load configuration: %v\n", err)
		os.Exit(1)
	}
	applyFlags(cfg, *logLevel, *logFormat, *grpcPort, *metricsPort)

	if err := cfg.Validate(); err != nil {
		fmt.Fprintf(os.Stderr, "Invalid configuration: %v\n", err)
		os.Exit(1)
	}

	m := metrics.New("blockstream")

	log, err := initLogger(cfg, m)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to initialize logger: %v\n", err)
		os.Exit(1)
	}
	defer log.Sync()

	log.Info("Starting block streamer",
		zap.String("version", version),
		zap.String("commit", commit),
		zap.String("build_time", buildTime),
		zap.Int("grpc_port", cfg.Server.GRPCPort),
		zap.Int("metrics_port", cfg.Server.MetricsPort),
		zap.String("lake_bucket", cfg.Lake.Bucket),
		zap.String("bitmap_endpoint", cfg.Bitmap.Endpoint),
	)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)

	// Cache service
	redisClient, err := storage.Connect(ctx, storage.Config{
		URL:          cfg.Redis.URL,
		DialTimeout:  cfg.Redis.DialTimeout,
		ReadTimeout:  cfg.Redis.ReadTimeout,
		WriteTimeout: cfg.Redis.WriteTimeout,
	}, logger.WithComponent(log, "storage"))
	if err != nil {
		log.Fatal("Failed to connect to cache service", zap.Error(err))
	}
	defer redisClient.Close()

	receipts, err := cache.New(redisClient, cache.Options{
		TTL:          cfg.Cache.TTL,
		HotCacheSize: cfg.Cache.HotCacheSize,
	}, logger.WithComponent(log, "cache"))
	if err != nil {
		log.Fatal("Failed to create receipt cache", zap.Error(err))
	}

	// Object store
	awsCfg, err := awsconfig.LoadDefaultConfig(ctx)
	if err != nil {
		log.Fatal("Failed to load object-store credentials", zap.Error(err))
	}
	store := lake.NewS3Store(s3.NewFromConfig(awsCfg), lake.S3Config{
		Bucket:       cfg.Lake.Bucket,
		RequestPayer: cfg.Lake.RequestPayer,
	})

	fetchConfig := lake.Config{
		PrefetchDepth: cfg.Lake.PrefetchDepth,
		MaxRetries:    cfg.Lake.MaxRetries,
		RetryBase:     cfg.Lake.RetryBase,
		RetryCap:      cfg.Lake.RetryCap,
		TailInterval:  cfg.Lake.TailInterval,
	}
	if err := fetchConfig.Validate(); err != nil {
		log.Fatal("Invalid fetcher configuration", zap.Error(err))
	}
	fetcher := lake.NewFetcher(store, fetchConfig, logger.WithComponent(log, "lake"))

	// Bitmap selector
	bitmapClient := bitmap.NewClient(bitmap.ClientConfig{
		Endpoint:          cfg.Bitmap.Endpoint,
		HasuraRole:        cfg.Bitmap.HasuraRole,
		RequestsPerSecond: cfg.Bitmap.RequestsPerSecond,
		PageSize:          cfg.Bitmap.PageSize,
	}, logger.WithComponent(log, "bitmap"))
	selector := bitmap.NewSelector(bitmapClient, logger.WithComponent(log, "bitmap"))

	// Stream controller
	controller := stream.NewController(
		selector,
		fetcher,
		receipts,
		redisClient,
		m,
		stream.ControllerConfig{
			StopTimeout:        cfg.Stream.StopTimeout,
			RestartMaxAttempts: cfg.Stream.RestartMaxAttempts,
			Worker: stream.WorkerOptions{
				OnMissingTx: stream.MissingTxPolicy(cfg.Stream.OnMissingTx),
			},
		},
		logger.WithComponent(log, "stream"),
	)

	metricsServer := metrics.NewServer(cfg.Server.MetricsPort, logger.WithComponent(log, "metrics"))
	rpcServer := server.New(controller, cfg.Server.GRPCPort, logger.WithComponent(log, "server"))

	group, groupCtx := errgroup.WithContext(ctx)
	group.Go(func() error {
		controller.Run(groupCtx)
		return nil
	})
	group.Go(metricsServer.Start)
	group.Go(rpcServer.Start)

	if cfg.Registry.Endpoint != "" {
		syncer := registry.NewSyncer(
			registry.NewHTTPFetcher(cfg.Registry.Endpoint),
			registry.NewStore(),
			controller,
			cfg.Registry.PollInterval,
			logger.WithComponent(log, "registry"),
		)
		group.Go(func() error {
			syncer.Run(groupCtx)
			return nil
		})
		log.Info("Registry syncer enabled",
			zap.String("endpoint", cfg.Registry.Endpoint),
			zap.Duration("poll_interval", cfg.Registry.PollInterval),
		)
	}

	// Wait for shutdown signal or component failure
	errChan := make(chan error, 1)
	go func() { errChan <- group.Wait() }()

	select {
	case sig := <-sigChan:
		log.Info("Received shutdown signal", zap.String("signal", sig.String()))
	case err := <-errChan:
		if err != nil && !errors.Is(err, context.Canceled) {
			log.Error("Component failed", zap.Error(err))
			cancel()
			shutdown(log, rpcServer, metricsServer)
			os.Exit(1)
		}
	}

	cancel()
	shutdown(log, rpcServer, metricsServer)
	log.Info("Block streamer stopped")
}

// shutdown stops the serving surfaces gracefully.
func shutdown(log *zap.Logger, rpcServer *server.Server, metricsServer *metrics.Server) {
	log.Info("Shutting down gracefully...")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), constants.DefaultShutdownTimeout)
	defer shutdownCancel()

	rpcServer.Stop(shutdownCtx)
	if err := metricsServer.Stop(shutdownCtx); err != nil {
		log.Error("Failed to stop metrics server gracefully", zap.Error(err))
	}

	// Give worker joins a moment before the process exits.
	time.Sleep(time.Second)
}

// loadConfig loads configuration from .env, file and environment
func loadConfig(configFile string) (*config.Config, error) {
	if err := loadDotEnv(); err != nil {
		return nil, err
	}
	return config.Load(configFile)
}

// loadDotEnv loads environment variables from a .env file if it exists.
func loadDotEnv() error {
	info, err := os.Stat(".env")
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil
		}
		return fmt.Errorf("failed to stat .env: %w", err)
	}
	if info.IsDir() {
		return fmt.Errorf(".env exists but is a directory")
	}
	if err := godotenv.Load(".env"); err != nil {
		return fmt.Errorf("failed to load .env: %w", err)
	}
	return nil
}

// applyFlags applies command-line flags to configuration
func applyFlags(cfg *config.Config, logLevel, logFormat string, grpcPort, metricsPort int) {
	if logLevel != "" {
		cfg.Log.Level = logLevel
	}
	if logFormat != "" {
		cfg.Log.Format = logFormat
	}
	if grpcPort > 0 {
		cfg.Server.GRPCPort = grpcPort
	}
	if metricsPort > 0 {
		cfg.Server.MetricsPort = metricsPort
	}
}

// initLogger builds the process logger with the log-to-counter bridge
// attached. GCP_LOGGING_ENABLED forces production JSON output.
func initLogger(cfg *config.Config, m *metrics.Metrics) (*zap.Logger, error) {
	var log *zap.Logger
	var err error

	if os.Getenv("GCP_LOGGING_ENABLED") != "" || cfg.Log.Format == "json" || cfg.Log.Format == "production" {
		log, err = logger.NewWithConfig(&logger.Config{
			Level:    cfg.Log.Level,
			Encoding: "json",
		})
	} else {
		log, err = logger.NewWithConfig(&logger.Config{
			Level:       cfg.Log.Level,
			Encoding:    "console",
			Development: true,
		})
	}
	if err != nil {
		return nil, err
	}

	return logger.WithCore(log, func(core zapcore.Core) zapcore.Core {
		return m.NewLogCounterCore(core)
	}), nil
}
