package stream

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/0xmhha/blockstream-go/cache"
	"github.com/0xmhha/blockstream-go/internal/constants"
	"github.com/0xmhha/blockstream-go/metrics"
	"github.com/0xmhha/blockstream-go/registry"
)

// Controller errors
var (
	// ErrControllerStopped indicates a command arrived after shutdown
	ErrControllerStopped = errors.New("stream controller is stopped")

	// ErrJoinTimeout indicates a worker did not stop within the bound
	ErrJoinTimeout = errors.New("timed out waiting for worker to stop")
)

// ControllerConfig tunes the controller.
type ControllerConfig struct {
	// StopTimeout bounds how long Stop waits for a worker join
	StopTimeout time.Duration

	// RestartMaxAttempts bounds restarts of a failed worker
	RestartMaxAttempts int

	// RestartBase is the base delay of the restart backoff
	RestartBase time.Duration

	// Worker carries the per-worker options
	Worker WorkerOptions
}

func (c *ControllerConfig) withDefaults() {
	if c.StopTimeout <= 0 {
		c.StopTimeout = constants.DefaultStopTimeout
	}
	if c.RestartMaxAttempts <= 0 {
		c.RestartMaxAttempts = constants.DefaultRestartMaxAttempts
	}
	if c.RestartBase <= 0 {
		c.RestartBase = time.Second
	}
}

// handle tracks one spawned worker.
type handle struct {
	id     string
	config registry.IndexerConfig
	worker *Worker
	cancel context.CancelFunc
	done   chan struct{}
}

// Controller owns the registry of running workers. All mutations of the
// active map happen inside its single run loop; external callers talk to it
// through a serialized command queue, so the map needs no lock. A stream id
// has at most one active worker.
type Controller struct {
	selector HeightSelector
	source   BlockSource
	receipts *cache.ReceiptCache
	broker   Broker
	metrics  *metrics.Metrics
	logger   *zap.Logger
	config   ControllerConfig

	commands chan func()
	stopped  chan struct{}
	active   map[string]*handle

	// runCtx parents every worker context so controller shutdown cancels
	// all of them
	runCtx context.Context
}

// NewController wires a controller. Run must be called before commands are
// accepted.
func NewController(
	selector HeightSelector,
	source BlockSource,
	receipts *cache.ReceiptCache,
	broker Broker,
	m *metrics.Metrics,
	config ControllerConfig,
	logger *zap.Logger,
) *Controller {
	config.withDefaults()
	return &Controller{
		selector: selector,
		source:   source,
		receipts: receipts,
		broker:   broker,
		metrics:  m,
		logger:   logger,
		config:   config,
		commands: make(chan func()),
		stopped:  make(chan struct{}),
		active:   make(map[string]*handle),
	}
}

// Run processes commands until the context is cancelled, then stops every
// worker and returns.
func (c *Controller) Run(ctx context.Context) {
	c.runCtx = ctx
	defer close(c.stopped)

	for {
		select {
		case cmd := <-c.commands:
			cmd()
		case <-ctx.Done():
			c.shutdown()
			return
		}
	}
}

// shutdown cancels all workers and waits for their joins, bounded by the
// stop timeout each.
func (c *Controller) shutdown() {
	c.logger.Info("stopping all stream workers", zap.Int("count", len(c.active)))
	for streamID, h := range c.active {
		h.cancel()
		select {
		case <-h.done:
		case <-time.After(c.config.StopTimeout):
			c.logger.Error("worker did not stop in time",
				zap.String("stream_id", streamID),
			)
		}
		delete(c.active, streamID)
	}
}

// do runs fn on the control loop and waits for it.
func (c *Controller) do(ctx context.Context, fn func()) error {
	wrapped := make(chan struct{})
	cmd := func() {
		defer close(wrapped)
		fn()
	}

	select {
	case c.commands <- cmd:
	case <-c.stopped:
		return ErrControllerStopped
	case <-ctx.Done():
		return ctx.Err()
	}

	select {
	case <-wrapped:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// StartStream starts a worker for the config. Starting an identity that is
// already running at the same version succeeds idempotently with the same
// stream id; a different version stops the old worker first. The rule is
// validated before any worker is spawned.
func (c *Controller) StartStream(ctx context.Context, cfg registry.IndexerConfig) (string, error) {
	var streamID string
	var startErr error
	if err := c.do(ctx, func() {
		streamID, startErr = c.start(cfg)
	}); err != nil {
		return "", err
	}
	return streamID, startErr
}

// StopStream stops the worker of a stream id. Stopping an unknown stream is
// a no-op success.
func (c *Controller) StopStream(ctx context.Context, streamID string) error {
	var stopErr error
	if err := c.do(ctx, func() {
		stopErr = c.stop(streamID)
	}); err != nil {
		return err
	}
	return stopErr
}

// ListStreams snapshots the active workers.
func (c *Controller) ListStreams(ctx context.Context) ([]registry.StreamInfo, error) {
	var infos []registry.StreamInfo
	if err := c.do(ctx, func() {
		infos = make([]registry.StreamInfo, 0, len(c.active))
		for streamID, h := range c.active {
			infos = append(infos, registry.StreamInfo{
				StreamID:            streamID,
				Identity:            h.config.Identity,
				Version:             h.config.Version,
				LastPublishedHeight: h.worker.LastPublishedHeight(),
			})
		}
	}); err != nil {
		return nil, err
	}
	return infos, nil
}

// start runs on the control loop.
func (c *Controller) start(cfg registry.IndexerConfig) (string, error) {
	if err := cfg.Rule.Validate(); err != nil {
		return "", err
	}

	streamID := cfg.Identity.StreamID()
	if existing, ok := c.active[streamID]; ok {
		if existing.config.Version == cfg.Version {
			c.logger.Debug("stream already running",
				zap.String("stream_id", streamID),
				zap.Uint64("version", cfg.Version),
			)
			return streamID, nil
		}

		c.logger.Info("restarting stream for new registry version",
			zap.String("stream_id", streamID),
			zap.Uint64("old_version", existing.config.Version),
			zap.Uint64("new_version", cfg.Version),
		)
		if err := c.stop(streamID); err != nil {
			return "", err
		}
	}

	worker, err := NewWorker(cfg, c.selector, c.source, c.receipts, c.broker, c.metrics, c.config.Worker, c.logger)
	if err != nil {
		return "", err
	}

	wctx, cancel := context.WithCancel(c.runCtx)
	h := &handle{
		id:     uuid.NewString(),
		config: cfg,
		worker: worker,
		cancel: cancel,
		done:   make(chan struct{}),
	}
	c.active[streamID] = h
	c.metrics.WorkersActive.Inc()

	go c.supervise(wctx, h)

	c.logger.Info("started stream worker",
		zap.String("stream_id", streamID),
		zap.String("worker_id", h.id),
		zap.String("indexer", cfg.Identity.FullName()),
		zap.Uint64("start_block", cfg.StartBlock),
		zap.Uint64("version", cfg.Version),
	)
	return streamID, nil
}

// supervise runs the worker, restarting failed runs with bounded
// exponential backoff. Cancellation always wins.
func (c *Controller) supervise(ctx context.Context, h *handle) {
	defer close(h.done)
	defer c.metrics.WorkersActive.Dec()

	for attempt := 0; ; attempt++ {
		err := h.worker.Run(ctx)
		if err == nil || ctx.Err() != nil {
			return
		}

		if attempt+1 >= c.config.RestartMaxAttempts {
			c.logger.Error("worker failed permanently",
				zap.String("worker_id", h.id),
				zap.String("stream_id", h.config.Identity.StreamID()),
				zap.Int("attempts", attempt+1),
				zap.Error(err),
			)
			return
		}

		delay := c.config.RestartBase * time.Duration(1<<uint(attempt))
		if delay > c.config.StopTimeout {
			delay = c.config.StopTimeout
		}
		c.logger.Warn("restarting failed worker",
			zap.String("worker_id", h.id),
			zap.Int("attempt", attempt+1),
			zap.Duration("delay", delay),
			zap.Error(err),
		)

		select {
		case <-time.After(delay):
		case <-ctx.Done():
			return
		}
	}
}

// stop runs on the control loop.
func (c *Controller) stop(streamID string) error {
	h, ok := c.active[streamID]
	if !ok {
		return nil
	}

	h.worker.state.Store(StateStopping)
	h.cancel()

	select {
	case <-h.done:
	case <-time.After(c.config.StopTimeout):
		// Abandon the join; the worker is marked failed and will exit when
		// its in-flight fetch returns.
		h.worker.failReason.Store(ErrJoinTimeout.Error())
		h.worker.state.Store(StateFailed)
		delete(c.active, streamID)
		c.logger.Error("abandoned worker after stop timeout",
			zap.String("stream_id", streamID),
			zap.String("worker_id", h.id),
		)
		return fmt.Errorf("%w: stream %s", ErrJoinTimeout, streamID)
	}

	delete(c.active, streamID)
	c.logger.Info("stopped stream worker",
		zap.String("stream_id", streamID),
		zap.String("worker_id", h.id),
	)
	return nil
}
