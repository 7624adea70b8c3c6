package stream

import (
	"context"
	"errors"
	"fmt"
	"sync/atomic"
	"time"

	lru "github.com/hashicorp/golang-lru/v2"
	"go.uber.org/zap"

	"github.com/0xmhha/blockstream-go/bitmap"
	"github.com/0xmhha/blockstream-go/cache"
	"github.com/0xmhha/blockstream-go/internal/constants"
	"github.com/0xmhha/blockstream-go/lake"
	"github.com/0xmhha/blockstream-go/metrics"
	"github.com/0xmhha/blockstream-go/registry"
	"github.com/0xmhha/blockstream-go/rules"
	"github.com/0xmhha/blockstream-go/storage"
	"github.com/0xmhha/blockstream-go/types"
)

// State is the lifecycle phase of a worker.
type State string

const (
	StateStarting State = "starting"
	StateRunning  State = "running"
	StateStopping State = "stopping"
	StateStopped  State = "stopped"
	StateFailed   State = "failed"
)

// MissingTxPolicy decides what happens to a match whose parent transaction
// is still unknown after the retry. Fixed per deployment.
type MissingTxPolicy string

const (
	// MissingTxDrop drops the match with a warning
	MissingTxDrop MissingTxPolicy = "drop"

	// MissingTxEmit emits the match without a transaction hash
	MissingTxEmit MissingTxPolicy = "emit"
)

// HeightSelector narrows a height range to candidate blocks.
type HeightSelector interface {
	Heights(ctx context.Context, pattern string, startBlock, endBlock uint64, startDate, endDate time.Time) ([]uint64, error)
}

// BlockSource provides ordered block streams over a height range and a live
// tail.
type BlockSource interface {
	Stream(ctx context.Context, heights <-chan uint64) <-chan lake.BlockResult
	Tail(ctx context.Context, from uint64) <-chan lake.BlockResult
	Block(ctx context.Context, height uint64) (*types.Block, error)
	LatestHeight(ctx context.Context, hint uint64) (uint64, error)
}

// Broker appends match records to work streams and holds the persisted
// resume height.
type Broker interface {
	XAdd(ctx context.Context, stream string, fields map[string]interface{}) error
	SetLastIndexedBlock(ctx context.Context, height uint64) error
	GetLastIndexedBlock(ctx context.Context) (uint64, error)
}

// WorkerOptions tunes per-worker behavior.
type WorkerOptions struct {
	// OnMissingTx is the deployment-wide policy for unenrichable matches
	OnMissingTx MissingTxPolicy

	// MissingTxRetryDelay is the pause before the single cache re-read
	MissingTxRetryDelay time.Duration

	// DedupWindow bounds the per-stream receipt dedup memory
	DedupWindow int
}

func (o *WorkerOptions) withDefaults() {
	if o.OnMissingTx == "" {
		o.OnMissingTx = MissingTxDrop
	}
	if o.MissingTxRetryDelay <= 0 {
		o.MissingTxRetryDelay = constants.DefaultMissingTxRetryDelay
	}
	if o.DedupWindow <= 0 {
		o.DedupWindow = 1 << 17
	}
}

// Worker drives one indexer's two-phase pipeline: a bitmap-narrowed
// historical backfill into the historical stream, then a live tail into the
// real-time stream. Within the stream, emitted matches are strictly ordered
// by (block_height, shard_index, receipt_index) and appear at most once per
// receipt.
type Worker struct {
	config   registry.IndexerConfig
	streamID string

	selector HeightSelector
	source   BlockSource
	receipts *cache.ReceiptCache
	broker   Broker
	metrics  *metrics.Metrics
	logger   *zap.Logger
	opts     WorkerOptions

	state         atomic.Value // State
	failReason    atomic.Value // string
	lastPublished atomic.Uint64
	seen          *lru.Cache[string, struct{}]
}

// NewWorker builds a worker for one indexer config.
func NewWorker(
	config registry.IndexerConfig,
	selector HeightSelector,
	source BlockSource,
	receipts *cache.ReceiptCache,
	broker Broker,
	m *metrics.Metrics,
	opts WorkerOptions,
	logger *zap.Logger,
) (*Worker, error) {
	if err := config.Rule.Validate(); err != nil {
		return nil, fmt.Errorf("invalid rule for %s: %w", config.Identity.FullName(), err)
	}
	opts.withDefaults()

	seen, err := lru.New[string, struct{}](opts.DedupWindow)
	if err != nil {
		return nil, err
	}

	w := &Worker{
		config:   config,
		streamID: config.Identity.StreamID(),
		selector: selector,
		source:   source,
		receipts: receipts,
		broker:   broker,
		metrics:  m,
		opts:     opts,
		seen:     seen,
		logger: logger.With(
			zap.String("stream_id", config.Identity.StreamID()),
			zap.String("indexer", config.Identity.FullName()),
		),
	}
	w.state.Store(StateStarting)
	return w, nil
}

// State returns the current lifecycle phase.
func (w *Worker) State() State {
	return w.state.Load().(State)
}

// FailReason returns the terminal failure reason, if any.
func (w *Worker) FailReason() string {
	if reason, ok := w.failReason.Load().(string); ok {
		return reason
	}
	return ""
}

// LastPublishedHeight returns the height of the last block whose matches
// were appended.
func (w *Worker) LastPublishedHeight() uint64 {
	return w.lastPublished.Load()
}

// Run executes both phases until the block stream is exhausted or the
// context is cancelled. Cancellation interrupts at the next block boundary;
// nothing is appended after it fires.
func (w *Worker) Run(ctx context.Context) error {
	w.state.Store(StateRunning)
	err := w.run(ctx)

	switch {
	case err == nil || errors.Is(err, context.Canceled):
		w.state.Store(StateStopped)
		return nil
	default:
		w.failReason.Store(err.Error())
		w.state.Store(StateFailed)
		return err
	}
}

func (w *Worker) run(ctx context.Context) error {
	start := w.config.StartBlock
	if start == 0 {
		// Resume from interruption: fall back to the persisted height.
		resumed, err := w.broker.GetLastIndexedBlock(ctx)
		if err != nil {
			return fmt.Errorf("no start block and no persisted resume height: %w", err)
		}
		start = resumed
	}

	tip, err := w.source.LatestHeight(ctx, start)
	if err != nil {
		return fmt.Errorf("failed to resolve chain tip: %w", err)
	}

	w.logger.Info("starting stream worker",
		zap.Uint64("start_block", start),
		zap.Uint64("tip", tip),
		zap.Uint64("version", w.config.Version),
	)

	if start < tip {
		if err := w.runHistorical(ctx, start, tip-1); err != nil {
			return err
		}
	}
	return w.runLive(ctx, tip)
}

// runHistorical backfills [start, end] into the historical stream, narrowed
// by the bitmap index where it is available.
func (w *Worker) runHistorical(ctx context.Context, start, end uint64) error {
	heights, err := w.selectHeights(ctx, start, end)
	if err != nil {
		return err
	}

	w.logger.Info("historical phase",
		zap.Uint64("from", start),
		zap.Uint64("to", end),
	)

	streamKey := storage.HistoricalStreamKey(w.streamID)
	for result := range w.source.Stream(ctx, heights) {
		if err := ctx.Err(); err != nil {
			return err
		}
		if err := w.processResult(ctx, result, streamKey, false); err != nil {
			return err
		}
	}
	return ctx.Err()
}

// runLive tails the object store from the given height into the real-time
// stream. The live phase also feeds the receipt cache and persists the
// resume height.
func (w *Worker) runLive(ctx context.Context, from uint64) error {
	w.logger.Info("live phase", zap.Uint64("from", from))

	streamKey := storage.RealTimeStreamKey(w.streamID)
	for result := range w.source.Tail(ctx, from) {
		if err := ctx.Err(); err != nil {
			return err
		}
		if err := w.processResult(ctx, result, streamKey, true); err != nil {
			return err
		}
	}
	return ctx.Err()
}

// selectHeights asks the bitmap selector for candidate heights; when the
// service is unavailable it degrades to scanning every height in the range.
func (w *Worker) selectHeights(ctx context.Context, start, end uint64) (<-chan uint64, error) {
	startDate, endDate, err := w.dateRange(ctx, start)
	if err != nil {
		return nil, err
	}

	selected, err := w.selector.Heights(ctx, w.config.Rule.AccountPattern(), start, end, startDate, endDate)
	if err != nil {
		if !errors.Is(err, bitmap.ErrServiceUnavailable) {
			return nil, err
		}
		w.metrics.SelectorFallbacks.WithLabelValues(w.streamID).Inc()
		w.logger.Warn("bitmap service unavailable, scanning full range",
			zap.Uint64("from", start),
			zap.Uint64("to", end),
			zap.Error(err),
		)
		return rangeHeights(ctx, start, end), nil
	}

	w.logger.Info("bitmap selection complete",
		zap.Int("candidate_blocks", len(selected)),
		zap.Uint64("range", end-start+1),
	)

	out := make(chan uint64)
	go func() {
		defer close(out)
		for _, h := range selected {
			select {
			case out <- h:
			case <-ctx.Done():
				return
			}
		}
	}()
	return out, nil
}

// dateRange resolves the UTC dates the backfill covers. The start block's
// own timestamp anchors the first bitmap day.
func (w *Worker) dateRange(ctx context.Context, start uint64) (time.Time, time.Time, error) {
	block, err := w.source.Block(ctx, start)
	if err != nil {
		if errors.Is(err, lake.ErrBlockNotFound) {
			// The configured start predates retention or sits in a gap; the
			// first retained day still covers it.
			return time.Unix(0, 0).UTC(), time.Now().UTC(), nil
		}
		return time.Time{}, time.Time{}, fmt.Errorf("failed to read start block %d: %w", start, err)
	}
	startDate := time.Unix(0, int64(block.Header.Timestamp)).UTC()
	return startDate, time.Now().UTC(), nil
}

// processResult handles one element of the ordered block stream.
func (w *Worker) processResult(ctx context.Context, result lake.BlockResult, streamKey string, live bool) error {
	if result.Err != nil {
		if errors.Is(result.Err, lake.ErrMalformedBlock) {
			// One bad block does not stop a stream.
			w.metrics.FetchErrors.WithLabelValues(w.streamID).Inc()
			w.logger.Error("skipping malformed block",
				zap.Uint64("height", result.Height),
				zap.Error(result.Err),
			)
			return nil
		}
		w.metrics.FetchErrors.WithLabelValues(w.streamID).Inc()
		return result.Err
	}

	block := result.Block

	if live {
		// Feed the correlation cache before enrichment so receipts created
		// and matched in the same block resolve.
		if err := w.receipts.CollectBlock(ctx, block); err != nil {
			w.logger.Error("failed to collect block into receipt cache",
				zap.Uint64("height", block.Height()),
				zap.Error(err),
			)
		}
	}

	matches := rules.Reduce(&w.config.Rule, block)
	for i := range matches {
		if err := w.publish(ctx, &matches[i], streamKey); err != nil {
			return err
		}
	}

	w.metrics.ProcessedBlocks.WithLabelValues(w.streamID).Inc()
	w.metrics.LastProcessedHeight.WithLabelValues(w.streamID).Set(float64(block.Height()))
	w.lastPublished.Store(block.Height())

	if live {
		if err := w.broker.SetLastIndexedBlock(ctx, block.Height()); err != nil {
			w.logger.Warn("failed to persist last indexed block",
				zap.Uint64("height", block.Height()),
				zap.Error(err),
			)
		}
	}
	return nil
}

// publish enriches one raw match and appends it. Appends are sequentially
// awaited: the next block is not processed until this one's matches are
// durable in the broker.
func (w *Worker) publish(ctx context.Context, raw *rules.RawMatch, streamKey string) error {
	// At most one emission per (stream, receipt).
	if _, dup := w.seen.Get(raw.ReceiptID); dup {
		return nil
	}

	txHash, ok := w.resolveTx(ctx, raw.ReceiptID)
	if !ok && w.opts.OnMissingTx == MissingTxDrop {
		w.logger.Warn("dropping match without parent transaction",
			zap.String("receipt_id", raw.ReceiptID),
			zap.Uint64("block_height", raw.BlockHeight),
		)
		return nil
	}

	match := Match{
		StreamID:        w.streamID,
		BlockHeight:     raw.BlockHeight,
		BlockHash:       raw.BlockHash,
		ReceiptID:       raw.ReceiptID,
		TransactionHash: txHash,
		Kind:            raw.Kind,
		Event:           raw.Event,
		Standard:        raw.Standard,
		Version:         raw.Version,
		Data:            raw.Data,
	}

	if err := w.broker.XAdd(ctx, streamKey, match.Fields()); err != nil {
		return fmt.Errorf("failed to append match for receipt %s: %w", raw.ReceiptID, err)
	}

	w.seen.Add(raw.ReceiptID, struct{}{})
	w.metrics.PublishedMatches.WithLabelValues(w.streamID).Inc()
	return nil
}

// resolveTx looks up the parent transaction, retrying once after a short
// backoff for receipts inside the race window.
func (w *Worker) resolveTx(ctx context.Context, receiptID string) (string, bool) {
	txHash, err := w.receipts.Lookup(ctx, receiptID)
	if err == nil {
		return txHash, true
	}
	if !errors.Is(err, cache.ErrMissing) {
		w.logger.Error("receipt cache lookup failed",
			zap.String("receipt_id", receiptID),
			zap.Error(err),
		)
		return "", false
	}

	select {
	case <-time.After(w.opts.MissingTxRetryDelay):
	case <-ctx.Done():
		return "", false
	}

	txHash, err = w.receipts.Lookup(ctx, receiptID)
	if err == nil {
		return txHash, true
	}

	w.metrics.CacheMisses.WithLabelValues(w.streamID).Inc()
	return "", false
}

// rangeHeights generates every height in [start, end].
func rangeHeights(ctx context.Context, start, end uint64) <-chan uint64 {
	out := make(chan uint64)
	go func() {
		defer close(out)
		for h := start; h <= end; h++ {
			select {
			case out <- h:
			case <-ctx.Done():
				return
			}
		}
	}()
	return out
}
