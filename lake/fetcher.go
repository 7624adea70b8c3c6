package lake

import (
	"context"
	"errors"
	"fmt"
	"math/rand"
	"time"

	"go.uber.org/zap"

	"github.com/0xmhha/blockstream-go/internal/constants"
	"github.com/0xmhha/blockstream-go/types"
)

// BlockResult is one element of an ordered block stream. Exactly one of
// Block and Err is set.
type BlockResult struct {
	Height uint64
	Block  *types.Block
	Err    error
}

// Config holds fetcher configuration.
type Config struct {
	// PrefetchDepth bounds how many blocks are fetched ahead of the consumer
	PrefetchDepth int

	// MaxRetries is the retry budget per block before the error is surfaced
	MaxRetries int

	// RetryBase is the base delay for exponential backoff
	RetryBase time.Duration

	// RetryCap is the maximum backoff delay
	RetryCap time.Duration

	// TailInterval is the poll interval of the live tail
	TailInterval time.Duration
}

// Validate normalizes the configuration, applying defaults for zero values.
func (c *Config) Validate() error {
	if c.PrefetchDepth < 0 {
		return fmt.Errorf("prefetch depth must not be negative")
	}
	if c.PrefetchDepth == 0 {
		c.PrefetchDepth = constants.DefaultPrefetchDepth
	}
	if c.MaxRetries == 0 {
		c.MaxRetries = constants.DefaultFetchMaxRetries
	}
	if c.RetryBase <= 0 {
		c.RetryBase = constants.DefaultFetchRetryBase
	}
	if c.RetryCap <= 0 {
		c.RetryCap = constants.DefaultFetchRetryCap
	}
	if c.TailInterval <= 0 {
		c.TailInterval = constants.DefaultLiveTailInterval
	}
	return nil
}

// Fetcher provides ordered asynchronous block streams over the object store.
type Fetcher struct {
	store  ObjectStore
	config Config
	logger *zap.Logger
}

// NewFetcher creates a fetcher. The config must have been validated.
func NewFetcher(store ObjectStore, config Config, logger *zap.Logger) *Fetcher {
	return &Fetcher{store: store, config: config, logger: logger}
}

// Stream fetches each height from the input channel lazily and emits blocks
// on the returned channel in input order. At most PrefetchDepth fetches run
// at once, and at most PrefetchDepth+1 blocks are in flight or buffered (the
// queued jobs plus the one awaiting delivery); when the consumer stalls,
// fetching defers.
// Transient fetch failures are retried with jittered exponential backoff;
// a permanently absent object surfaces as a BlockResult error.
func (f *Fetcher) Stream(ctx context.Context, heights <-chan uint64) <-chan BlockResult {
	type job struct {
		height uint64
		result chan BlockResult
	}

	depth := f.config.PrefetchDepth
	jobs := make(chan job)
	ordered := make(chan job, depth)
	out := make(chan BlockResult)

	// Dispatcher: assigns heights to workers while recording input order.
	// The ordered queue's capacity is the prefetch bound.
	go func() {
		defer close(jobs)
		defer close(ordered)
		for {
			select {
			case <-ctx.Done():
				return
			case height, ok := <-heights:
				if !ok {
					return
				}
				j := job{height: height, result: make(chan BlockResult, 1)}
				select {
				case ordered <- j:
				case <-ctx.Done():
					return
				}
				select {
				case jobs <- j:
				case <-ctx.Done():
					return
				}
			}
		}
	}()

	for i := 0; i < depth; i++ {
		go func() {
			for j := range jobs {
				j.result <- f.fetchWithRetry(ctx, j.height)
			}
		}()
	}

	// Reorder: deliver results strictly in input order.
	go func() {
		defer close(out)
		for j := range ordered {
			var r BlockResult
			select {
			case r = <-j.result:
			case <-ctx.Done():
				return
			}
			select {
			case out <- r:
			case <-ctx.Done():
				return
			}
		}
	}()

	return out
}

// Tail polls the object store tip and streams every block from the given
// height onward, in order.
func (f *Fetcher) Tail(ctx context.Context, from uint64) <-chan BlockResult {
	heights := make(chan uint64)

	go func() {
		defer close(heights)
		next := from
		for {
			// List from just before next, so that a tip equal to the hint
			// is only reported when next itself is present.
			hint := next
			if hint > 0 {
				hint--
			}
			tip, err := LatestHeight(ctx, f.store, hint)
			if err != nil && !errors.Is(err, ErrBlockNotFound) {
				f.logger.Warn("failed to read object store tip",
					zap.Uint64("next_height", next),
					zap.Error(err),
				)
			}
			if err == nil {
				for next <= tip {
					select {
					case heights <- next:
						next++
					case <-ctx.Done():
						return
					}
				}
			}

			select {
			case <-time.After(f.config.TailInterval):
			case <-ctx.Done():
				return
			}
		}
	}()

	return f.Stream(ctx, heights)
}

// fetchWithRetry reads one block, retrying transient failures with jittered
// exponential backoff (base doubled per attempt, capped). Absent objects are
// permanent and returned immediately.
func (f *Fetcher) fetchWithRetry(ctx context.Context, height uint64) BlockResult {
	var lastErr error
	for attempt := 0; attempt <= f.config.MaxRetries; attempt++ {
		if attempt > 0 {
			delay := f.backoff(attempt)
			f.logger.Warn("retrying block fetch",
				zap.Uint64("height", height),
				zap.Int("attempt", attempt),
				zap.Int("max_retries", f.config.MaxRetries),
				zap.Duration("backoff_delay", delay),
			)
			select {
			case <-time.After(delay):
			case <-ctx.Done():
				return BlockResult{Height: height, Err: ctx.Err()}
			}
		}

		block, err := ReadBlock(ctx, f.store, height)
		if err == nil {
			return BlockResult{Height: height, Block: block}
		}
		if errors.Is(err, ErrBlockNotFound) || errors.Is(err, context.Canceled) {
			return BlockResult{Height: height, Err: err}
		}
		lastErr = err
	}

	return BlockResult{
		Height: height,
		Err:    fmt.Errorf("fetch of block %d exhausted %d retries: %w", height, f.config.MaxRetries, lastErr),
	}
}

// backoff computes the jittered delay for the given attempt: full jitter over
// [0, min(cap, base*2^(attempt-1))].
func (f *Fetcher) backoff(attempt int) time.Duration {
	max := f.config.RetryBase * time.Duration(1<<uint(attempt-1))
	if max > f.config.RetryCap {
		max = f.config.RetryCap
	}
	return time.Duration(rand.Int63n(int64(max)) + 1)
}

// Block reads a single block synchronously, with the same retry policy as
// the stream path.
func (f *Fetcher) Block(ctx context.Context, height uint64) (*types.Block, error) {
	res := f.fetchWithRetry(ctx, height)
	return res.Block, res.Err
}

// LatestHeight returns the object-store tip, walking forward from the hint.
func (f *Fetcher) LatestHeight(ctx context.Context, hint uint64) (uint64, error) {
	return LatestHeight(ctx, f.store, hint)
}
