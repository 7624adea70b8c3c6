package cache

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"

	lru "github.com/hashicorp/golang-lru/v2"
	"go.uber.org/zap"

	"github.com/0xmhha/blockstream-go/internal/constants"
	"github.com/0xmhha/blockstream-go/storage"
	"github.com/0xmhha/blockstream-go/types"
)

// ErrMissing indicates the parent transaction of a receipt has not been
// observed (yet). Reads during the race window legitimately return this;
// callers must handle it.
var ErrMissing = errors.New("receipt not found in cache")

// KV is the slice of the cache service the receipt cache needs.
type KV interface {
	Get(ctx context.Context, key string) ([]byte, error)
	Set(ctx context.Context, key string, value []byte) error
	SetWithTTL(ctx context.Context, key string, value []byte, ttl time.Duration) error
	SetNX(ctx context.Context, key string, value []byte, ttl time.Duration) (bool, error)
	Del(ctx context.Context, key string) error
	IncrBy(ctx context.Context, key string, delta int64) (int64, error)
}

// ReceiptCache maintains the eventually-complete receipt -> transaction map
// plus a per-transaction pending-receipt counter. The mapping is monotone:
// once set for a receipt id it never changes. Entries fall back to TTL
// eviction when a transaction never completes.
type ReceiptCache struct {
	kv     KV
	hot    *lru.Cache[string, string]
	ttl    time.Duration
	logger *zap.Logger
}

// Options tunes the receipt cache.
type Options struct {
	// TTL is the fallback eviction window for mapping entries
	TTL time.Duration

	// HotCacheSize is the in-process LRU capacity in front of the service
	HotCacheSize int
}

// New creates a receipt cache over the given service handle.
func New(kv KV, opts Options, logger *zap.Logger) (*ReceiptCache, error) {
	if opts.TTL <= 0 {
		opts.TTL = constants.DefaultReceiptTTL
	}
	if opts.HotCacheSize <= 0 {
		opts.HotCacheSize = constants.DefaultHotCacheSize
	}

	hot, err := lru.New[string, string](opts.HotCacheSize)
	if err != nil {
		return nil, fmt.Errorf("failed to create hot cache: %w", err)
	}

	return &ReceiptCache{
		kv:     kv,
		hot:    hot,
		ttl:    opts.TTL,
		logger: logger,
	}, nil
}

// RecordTransaction writes the receipt -> tx mapping for every child receipt
// of a freshly converted transaction and sets the pending counter to the
// child count. Idempotent: re-recording the same transaction rewrites equal
// values.
func (c *ReceiptCache) RecordTransaction(ctx context.Context, txHash string, childReceiptIDs []string) error {
	for _, receiptID := range childReceiptIDs {
		if err := c.writeMapping(ctx, receiptID, txHash); err != nil {
			return err
		}
	}

	counter := []byte(strconv.Itoa(len(childReceiptIDs)))
	if err := c.kv.SetWithTTL(ctx, storage.TxPendingKey(txHash), counter, c.ttl); err != nil {
		return fmt.Errorf("failed to set pending counter for %s: %w", txHash, err)
	}
	return nil
}

// Lookup resolves the parent transaction hash of a receipt. Returns
// ErrMissing when the mapping has not been written; lookups never block
// beyond the service read deadline.
func (c *ReceiptCache) Lookup(ctx context.Context, receiptID string) (string, error) {
	if txHash, ok := c.hot.Get(receiptID); ok {
		return txHash, nil
	}

	raw, err := c.kv.Get(ctx, storage.ReceiptKey(receiptID))
	if errors.Is(err, storage.ErrNotFound) {
		return "", ErrMissing
	}
	if err != nil {
		return "", err
	}

	txHash, err := decodeReceiptRecord(raw)
	if err != nil {
		return "", fmt.Errorf("receipt %s: %w", receiptID, err)
	}

	c.hot.Add(receiptID, txHash)
	return txHash, nil
}

// ObserveOutcome advances the correlation when a receipt's execution outcome
// is seen: every spawned child receipt inherits the parent's transaction,
// and the pending counter is adjusted. When the counter reaches zero the
// transaction is collected and its counter is dropped; mapping entries are
// left to TTL eviction.
func (c *ReceiptCache) ObserveOutcome(ctx context.Context, receiptID string, newChildReceiptIDs []string) error {
	txHash, err := c.Lookup(ctx, receiptID)
	if err != nil {
		return err
	}

	for _, child := range newChildReceiptIDs {
		if err := c.writeMapping(ctx, child, txHash); err != nil {
			return err
		}
	}

	counterKey := storage.TxPendingKey(txHash)
	delta := int64(len(newChildReceiptIDs)) - 1
	remaining, err := c.kv.IncrBy(ctx, counterKey, delta)
	if err != nil {
		return fmt.Errorf("failed to adjust pending counter for %s: %w", txHash, err)
	}

	if remaining <= 0 {
		// Transaction collected: every child outcome has been observed.
		if err := c.kv.Del(ctx, counterKey); err != nil {
			return err
		}
		c.logger.Debug("transaction collected",
			zap.String("tx_hash", txHash),
			zap.String("receipt_id", receiptID),
		)
	}
	return nil
}

// CollectBlock feeds the cache from one block: shard transactions seed new
// mappings, receipt outcomes propagate them to spawned children. Outcomes
// whose parent transaction is outside the retention window are skipped with
// a warning; one orphan does not stop the block.
func (c *ReceiptCache) CollectBlock(ctx context.Context, block *types.Block) error {
	for shardIdx := range block.Shards {
		shard := &block.Shards[shardIdx]

		for i := range shard.Transactions {
			tx := &shard.Transactions[i]
			if err := c.RecordTransaction(ctx, tx.Transaction.Hash, tx.Outcome.ReceiptIDs); err != nil {
				return fmt.Errorf("block %d: %w", block.Header.Height, err)
			}
		}

		for i := range shard.ReceiptExecutionOutcomes {
			outcome := &shard.ReceiptExecutionOutcomes[i]
			err := c.ObserveOutcome(ctx, outcome.Receipt.ReceiptID, outcome.ExecutionOutcome.ReceiptIDs)
			if errors.Is(err, ErrMissing) {
				c.logger.Warn("receipt outcome without known parent transaction",
					zap.String("receipt_id", outcome.Receipt.ReceiptID),
					zap.Uint64("block_height", block.Header.Height),
				)
				continue
			}
			if err != nil {
				return fmt.Errorf("block %d: %w", block.Header.Height, err)
			}
		}
	}
	return nil
}

// writeMapping writes receipt -> tx once. A concurrent writer racing on the
// same receipt must carry the same transaction; a conflicting existing value
// is kept and reported, preserving monotonicity.
func (c *ReceiptCache) writeMapping(ctx context.Context, receiptID, txHash string) error {
	key := storage.ReceiptKey(receiptID)
	record := encodeReceiptRecord(txHash)

	wrote, err := c.kv.SetNX(ctx, key, record, c.ttl)
	if err != nil {
		return fmt.Errorf("failed to write mapping for %s: %w", receiptID, err)
	}

	if !wrote {
		existing, err := c.kv.Get(ctx, key)
		if err != nil {
			return err
		}
		existingTx, err := decodeReceiptRecord(existing)
		if err != nil {
			return fmt.Errorf("receipt %s: %w", receiptID, err)
		}
		if existingTx != txHash {
			c.logger.Error("conflicting receipt mapping ignored",
				zap.String("receipt_id", receiptID),
				zap.String("existing_tx", existingTx),
				zap.String("rejected_tx", txHash),
			)
		}
		return nil
	}

	c.hot.Add(receiptID, txHash)
	return nil
}
