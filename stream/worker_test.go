package stream

import (
	"context"
	"fmt"
	"strconv"
	"sync"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/0xmhha/blockstream-go/bitmap"
	"github.com/0xmhha/blockstream-go/cache"
	"github.com/0xmhha/blockstream-go/internal/testutil"
	"github.com/0xmhha/blockstream-go/lake"
	"github.com/0xmhha/blockstream-go/metrics"
	"github.com/0xmhha/blockstream-go/registry"
	"github.com/0xmhha/blockstream-go/rules"
	"github.com/0xmhha/blockstream-go/storage"
	"github.com/0xmhha/blockstream-go/types"
)

// fakeSelector returns a fixed height set, or fails like the bitmap service.
type fakeSelector struct {
	heights     []uint64
	unavailable bool
}

func (f *fakeSelector) Heights(_ context.Context, _ string, start, end uint64, _, _ time.Time) ([]uint64, error) {
	if f.unavailable {
		return nil, bitmap.ErrServiceUnavailable
	}
	var clipped []uint64
	for _, h := range f.heights {
		if h >= start && h <= end {
			clipped = append(clipped, h)
		}
	}
	return clipped, nil
}

// fakeSource serves blocks from memory. Tail emits up to tip and then either
// closes (finite mode) or blocks until cancellation.
type fakeSource struct {
	blocks   map[uint64]*types.Block
	tip      uint64
	tailOpen bool // keep the live phase running until cancel
}

func (f *fakeSource) Stream(ctx context.Context, heights <-chan uint64) <-chan lake.BlockResult {
	out := make(chan lake.BlockResult)
	go func() {
		defer close(out)
		for {
			select {
			case h, ok := <-heights:
				if !ok {
					return
				}
				select {
				case out <- f.result(h):
				case <-ctx.Done():
					return
				}
			case <-ctx.Done():
				return
			}
		}
	}()
	return out
}

func (f *fakeSource) Tail(ctx context.Context, from uint64) <-chan lake.BlockResult {
	out := make(chan lake.BlockResult)
	go func() {
		defer close(out)
		for h := from; h <= f.tip; h++ {
			if _, ok := f.blocks[h]; !ok {
				continue
			}
			select {
			case out <- f.result(h):
			case <-ctx.Done():
				return
			}
		}
		if f.tailOpen {
			<-ctx.Done()
		}
	}()
	return out
}

func (f *fakeSource) Block(_ context.Context, height uint64) (*types.Block, error) {
	block, ok := f.blocks[height]
	if !ok {
		return nil, lake.ErrBlockNotFound
	}
	return block, nil
}

func (f *fakeSource) LatestHeight(_ context.Context, _ uint64) (uint64, error) {
	return f.tip, nil
}

func (f *fakeSource) result(h uint64) lake.BlockResult {
	block, ok := f.blocks[h]
	if !ok {
		return lake.BlockResult{Height: h, Err: lake.ErrBlockNotFound}
	}
	return lake.BlockResult{Height: h, Block: block}
}

// fakeBroker records appended records in order.
type fakeBroker struct {
	mu      sync.Mutex
	appends []brokerAppend
	last    uint64
}

type brokerAppend struct {
	stream string
	fields map[string]interface{}
}

func (f *fakeBroker) XAdd(_ context.Context, stream string, fields map[string]interface{}) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.appends = append(f.appends, brokerAppend{stream: stream, fields: fields})
	return nil
}

func (f *fakeBroker) SetLastIndexedBlock(_ context.Context, height uint64) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.last = height
	return nil
}

func (f *fakeBroker) GetLastIndexedBlock(context.Context) (uint64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.last == 0 {
		return 0, storage.ErrNotFound
	}
	return f.last, nil
}

func (f *fakeBroker) records() []brokerAppend {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]brokerAppend(nil), f.appends...)
}

// fakeKV is the in-memory cache service used for worker tests.
type fakeKV struct {
	mu   sync.Mutex
	data map[string][]byte
}

func newFakeKV() *fakeKV { return &fakeKV{data: map[string][]byte{}} }

func (f *fakeKV) Get(_ context.Context, key string) ([]byte, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	v, ok := f.data[key]
	if !ok {
		return nil, storage.ErrNotFound
	}
	return v, nil
}

func (f *fakeKV) Set(_ context.Context, key string, value []byte) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.data[key] = value
	return nil
}

func (f *fakeKV) SetWithTTL(_ context.Context, key string, value []byte, _ time.Duration) error {
	return f.Set(context.Background(), key, value)
}

func (f *fakeKV) SetNX(_ context.Context, key string, value []byte, _ time.Duration) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if _, ok := f.data[key]; ok {
		return false, nil
	}
	f.data[key] = value
	return true, nil
}

func (f *fakeKV) Del(_ context.Context, key string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	delete(f.data, key)
	return nil
}

func (f *fakeKV) IncrBy(_ context.Context, key string, delta int64) (int64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	current := int64(0)
	if raw, ok := f.data[key]; ok {
		parsed, _ := strconv.ParseInt(string(raw), 10, 64)
		current = parsed
	}
	current += delta
	f.data[key] = []byte(strconv.FormatInt(current, 10))
	return current, nil
}

func testMetrics() *metrics.Metrics {
	return metrics.NewWith("test", prometheus.NewRegistry())
}

func testCache(t *testing.T) *cache.ReceiptCache {
	t.Helper()
	c, err := cache.New(newFakeKV(), cache.Options{}, zap.NewNop())
	require.NoError(t, err)
	return c
}

func testIndexerConfig(rule rules.Rule, start uint64) registry.IndexerConfig {
	return registry.IndexerConfig{
		Identity:   registry.Identity{AccountID: "morgs.near", FunctionName: "test"},
		Rule:       rule,
		StartBlock: start,
		Version:    1,
	}
}

// matchedBlock builds a block with one matching action receipt and the
// transaction that spawned it, so enrichment resolves.
func matchedBlock(height uint64, receiptID string) *types.Block {
	block := testutil.NewTestBlockWithOutcomes(height,
		testutil.NewActionOutcome(receiptID, "payer.near", "token.sweat",
			testutil.SuccessValue(), testutil.Transfer("1")),
	)
	block.Shards[0].Transactions = []types.IndexerTransaction{{
		Transaction: types.Transaction{Hash: "tx-" + receiptID, SignerID: "payer.near"},
		Outcome:     types.ExecutionOutcome{ReceiptIDs: []string{receiptID}},
	}}
	return block
}

func TestWorkerTwoPhasePipeline(t *testing.T) {
	blocks := map[uint64]*types.Block{
		100: matchedBlock(100, "r-100"),
		101: testutil.NewTestBlock(101), // no matches
		102: matchedBlock(102, "r-102"),
		103: matchedBlock(103, "r-103"), // live phase
	}
	source := &fakeSource{blocks: blocks, tip: 103}
	selector := &fakeSelector{heights: []uint64{100, 101, 102}}
	broker := &fakeBroker{}
	receipts := testCache(t)

	// Seed the historical receipts into the cache the way an earlier live
	// pass would have.
	ctx := context.Background()
	require.NoError(t, receipts.RecordTransaction(ctx, "tx-r-100", []string{"r-100"}))
	require.NoError(t, receipts.RecordTransaction(ctx, "tx-r-102", []string{"r-102"}))

	cfg := testIndexerConfig(rules.ActionAny("token.sweat", rules.StatusSuccess), 100)
	worker, err := NewWorker(cfg, selector, source, receipts, broker, testMetrics(),
		WorkerOptions{MissingTxRetryDelay: time.Millisecond}, zap.NewNop())
	require.NoError(t, err)

	require.NoError(t, worker.Run(ctx))
	assert.Equal(t, StateStopped, worker.State())

	records := broker.records()
	require.Len(t, records, 3)

	streamID := cfg.Identity.StreamID()
	assert.Equal(t, storage.HistoricalStreamKey(streamID), records[0].stream)
	assert.Equal(t, storage.HistoricalStreamKey(streamID), records[1].stream)
	assert.Equal(t, storage.RealTimeStreamKey(streamID), records[2].stream)

	assert.Equal(t, "r-100", records[0].fields["receipt_id"])
	assert.Equal(t, "tx-r-100", records[0].fields["transaction_hash"])
	assert.Equal(t, "r-102", records[1].fields["receipt_id"])
	// The live phase collected block 103 itself before matching.
	assert.Equal(t, "r-103", records[2].fields["receipt_id"])
	assert.Equal(t, "tx-r-103", records[2].fields["transaction_hash"])

	assert.Equal(t, uint64(103), worker.LastPublishedHeight())
	assert.Equal(t, uint64(103), broker.last)
}

func TestWorkerOrderingInvariant(t *testing.T) {
	blocks := map[uint64]*types.Block{}
	var wantOrder []string
	for h := uint64(10); h <= 30; h++ {
		receiptID := fmt.Sprintf("r-%d", h)
		blocks[h] = matchedBlock(h, receiptID)
		wantOrder = append(wantOrder, receiptID)
	}
	source := &fakeSource{blocks: blocks, tip: 31}
	selector := &fakeSelector{heights: rangeSlice(10, 30)}
	broker := &fakeBroker{}

	cfg := testIndexerConfig(rules.ActionAny("token.sweat", rules.StatusAny), 10)
	worker, err := NewWorker(cfg, selector, source, testCache(t), broker, testMetrics(),
		WorkerOptions{OnMissingTx: MissingTxEmit, MissingTxRetryDelay: time.Millisecond}, zap.NewNop())
	require.NoError(t, err)
	require.NoError(t, worker.Run(context.Background()))

	records := broker.records()
	require.Len(t, records, len(wantOrder))

	var lastHeight uint64
	for i, rec := range records {
		assert.Equal(t, wantOrder[i], rec.fields["receipt_id"])
		height := rec.fields["block_height"].(uint64)
		assert.GreaterOrEqual(t, height, lastHeight, "heights must be non-decreasing")
		lastHeight = height
	}
}

func TestWorkerDedupPerReceipt(t *testing.T) {
	// The same receipt appears in the historical tail and again in a live
	// block; it must be emitted once per stream.
	blocks := map[uint64]*types.Block{
		100: matchedBlock(100, "r-dup"),
		101: matchedBlock(101, "r-dup"),
	}
	source := &fakeSource{blocks: blocks, tip: 101}
	selector := &fakeSelector{heights: []uint64{100}}
	broker := &fakeBroker{}

	cfg := testIndexerConfig(rules.ActionAny("token.sweat", rules.StatusAny), 100)
	worker, err := NewWorker(cfg, selector, source, testCache(t), broker, testMetrics(),
		WorkerOptions{OnMissingTx: MissingTxEmit, MissingTxRetryDelay: time.Millisecond}, zap.NewNop())
	require.NoError(t, err)
	require.NoError(t, worker.Run(context.Background()))

	assert.Len(t, broker.records(), 1)
}

func TestWorkerMissingTxDropPolicy(t *testing.T) {
	blocks := map[uint64]*types.Block{100: matchedBlock(100, "r-orphan")}
	source := &fakeSource{blocks: blocks, tip: 101}
	selector := &fakeSelector{heights: []uint64{100}}
	broker := &fakeBroker{}

	// Cache deliberately not seeded: the receipt has no known parent.
	cfg := testIndexerConfig(rules.ActionAny("token.sweat", rules.StatusAny), 100)
	worker, err := NewWorker(cfg, selector, source, testCache(t), broker, testMetrics(),
		WorkerOptions{OnMissingTx: MissingTxDrop, MissingTxRetryDelay: time.Millisecond}, zap.NewNop())
	require.NoError(t, err)
	require.NoError(t, worker.Run(context.Background()))

	assert.Empty(t, broker.records())
}

func TestWorkerMissingTxEmitPolicy(t *testing.T) {
	blocks := map[uint64]*types.Block{100: matchedBlock(100, "r-orphan")}
	source := &fakeSource{blocks: blocks, tip: 101}
	selector := &fakeSelector{heights: []uint64{100}}
	broker := &fakeBroker{}

	cfg := testIndexerConfig(rules.ActionAny("token.sweat", rules.StatusAny), 100)
	worker, err := NewWorker(cfg, selector, source, testCache(t), broker, testMetrics(),
		WorkerOptions{OnMissingTx: MissingTxEmit, MissingTxRetryDelay: time.Millisecond}, zap.NewNop())
	require.NoError(t, err)
	require.NoError(t, worker.Run(context.Background()))

	records := broker.records()
	require.Len(t, records, 1)
	_, hasTx := records[0].fields["transaction_hash"]
	assert.False(t, hasTx, "transaction_hash must be absent when unresolved")
}

func TestWorkerSelectorFallback(t *testing.T) {
	blocks := map[uint64]*types.Block{
		100: matchedBlock(100, "r-100"),
		101: matchedBlock(101, "r-101"),
	}
	source := &fakeSource{blocks: blocks, tip: 102}
	selector := &fakeSelector{unavailable: true}
	broker := &fakeBroker{}

	cfg := testIndexerConfig(rules.ActionAny("token.sweat", rules.StatusAny), 100)
	worker, err := NewWorker(cfg, selector, source, testCache(t), broker, testMetrics(),
		WorkerOptions{OnMissingTx: MissingTxEmit, MissingTxRetryDelay: time.Millisecond}, zap.NewNop())
	require.NoError(t, err)
	require.NoError(t, worker.Run(context.Background()))

	// Correctness preserved: every height in range was scanned.
	assert.Len(t, broker.records(), 2)
}

func TestWorkerCancellation(t *testing.T) {
	blocks := map[uint64]*types.Block{100: matchedBlock(100, "r-100")}
	source := &fakeSource{blocks: blocks, tip: 101, tailOpen: true}
	selector := &fakeSelector{heights: []uint64{100}}
	broker := &fakeBroker{}

	cfg := testIndexerConfig(rules.ActionAny("token.sweat", rules.StatusAny), 100)
	worker, err := NewWorker(cfg, selector, source, testCache(t), broker, testMetrics(),
		WorkerOptions{OnMissingTx: MissingTxEmit, MissingTxRetryDelay: time.Millisecond}, zap.NewNop())
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- worker.Run(ctx) }()

	// Wait for the historical match to land, then cancel mid-live.
	require.Eventually(t, func() bool { return len(broker.records()) == 1 }, time.Second, time.Millisecond)
	cancel()

	require.NoError(t, <-done)
	assert.Equal(t, StateStopped, worker.State())
	// No output after cancellation.
	assert.Len(t, broker.records(), 1)
}

func TestWorkerRejectsInvalidRule(t *testing.T) {
	cfg := testIndexerConfig(rules.Rule{Kind: rules.Kind("BOGUS")}, 0)
	_, err := NewWorker(cfg, &fakeSelector{}, &fakeSource{}, testCache(t), &fakeBroker{}, testMetrics(),
		WorkerOptions{}, zap.NewNop())
	assert.ErrorIs(t, err, rules.ErrUnknownRuleKind)
}

func rangeSlice(from, to uint64) []uint64 {
	out := make([]uint64, 0, to-from+1)
	for h := from; h <= to; h++ {
		out = append(out, h)
	}
	return out
}

func TestWorkerResumesFromPersistedHeight(t *testing.T) {
	blocks := map[uint64]*types.Block{105: matchedBlock(105, "r-105")}
	source := &fakeSource{blocks: blocks, tip: 106}
	selector := &fakeSelector{heights: []uint64{105}}
	broker := &fakeBroker{last: 105}

	// Start block zero requests resume-from-interruption.
	cfg := testIndexerConfig(rules.ActionAny("token.sweat", rules.StatusAny), 0)
	worker, err := NewWorker(cfg, selector, source, testCache(t), broker, testMetrics(),
		WorkerOptions{OnMissingTx: MissingTxEmit, MissingTxRetryDelay: time.Millisecond}, zap.NewNop())
	require.NoError(t, err)
	require.NoError(t, worker.Run(context.Background()))

	records := broker.records()
	require.Len(t, records, 1)
	assert.Equal(t, "r-105", records[0].fields["receipt_id"])
}

func TestWorkerResumeWithoutPersistedHeightFails(t *testing.T) {
	cfg := testIndexerConfig(rules.ActionAny("token.sweat", rules.StatusAny), 0)
	worker, err := NewWorker(cfg, &fakeSelector{}, &fakeSource{blocks: map[uint64]*types.Block{}}, testCache(t),
		&fakeBroker{}, testMetrics(), WorkerOptions{MissingTxRetryDelay: time.Millisecond}, zap.NewNop())
	require.NoError(t, err)

	err = worker.Run(context.Background())
	require.Error(t, err)
	assert.Equal(t, StateFailed, worker.State())
	assert.NotEmpty(t, worker.FailReason())
}
