package lake

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/0xmhha/blockstream-go/types"
)

// fakeStore serves objects from memory, with optional per-key transient
// failures.
type fakeStore struct {
	mu        sync.Mutex
	objects   map[string][]byte
	failures  map[string]int // remaining transient failures per key
	getCalls  int
	listCalls int
}

func newFakeStore() *fakeStore {
	return &fakeStore{
		objects:  make(map[string][]byte),
		failures: make(map[string]int),
	}
}

func (f *fakeStore) addBlock(t *testing.T, height uint64, shardCount int) {
	t.Helper()
	f.mu.Lock()
	defer f.mu.Unlock()

	manifest := map[string]interface{}{
		"header": types.BlockHeader{
			Height:    height,
			Hash:      fmt.Sprintf("hash-%d", height),
			PrevHash:  fmt.Sprintf("hash-%d", height-1),
			Timestamp: uint64(time.Date(2024, 3, 21, 0, 0, 0, 0, time.UTC).UnixNano()),
		},
		"chunks": func() []map[string]uint64 {
			chunks := make([]map[string]uint64, shardCount)
			for i := range chunks {
				chunks[i] = map[string]uint64{"shard_id": uint64(i)}
			}
			return chunks
		}(),
	}
	raw, err := json.Marshal(manifest)
	require.NoError(t, err)
	f.objects[HeightKey(height)+"/block.json"] = raw

	for i := 0; i < shardCount; i++ {
		shard, err := json.Marshal(types.Shard{ShardID: uint64(i)})
		require.NoError(t, err)
		f.objects[fmt.Sprintf("%s/shard_%d.json", HeightKey(height), i)] = shard
	}
}

func (f *fakeStore) GetObjectBytes(_ context.Context, key string) ([]byte, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.getCalls++

	if remaining := f.failures[key]; remaining > 0 {
		f.failures[key] = remaining - 1
		return nil, fmt.Errorf("transient: connection reset")
	}

	obj, ok := f.objects[key]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrBlockNotFound, key)
	}
	return obj, nil
}

func (f *fakeStore) ListCommonPrefixes(_ context.Context, startAfter string) ([]string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.listCalls++

	seen := map[string]bool{}
	for key := range f.objects {
		prefix := strings.SplitN(key, "/", 2)[0]
		if prefix+"/" > startAfter && prefix > strings.TrimSuffix(startAfter, "/") {
			seen[prefix] = true
		}
	}
	prefixes := make([]string, 0, len(seen))
	for p := range seen {
		prefixes = append(prefixes, p)
	}
	sort.Strings(prefixes)
	return prefixes, nil
}

func testConfig() Config {
	cfg := Config{
		PrefetchDepth: 4,
		MaxRetries:    3,
		RetryBase:     time.Millisecond,
		RetryCap:      5 * time.Millisecond,
		TailInterval:  5 * time.Millisecond,
	}
	return cfg
}

func heightChan(heights ...uint64) <-chan uint64 {
	ch := make(chan uint64, len(heights))
	for _, h := range heights {
		ch <- h
	}
	close(ch)
	return ch
}

func TestReadBlockAssemblesShards(t *testing.T) {
	store := newFakeStore()
	store.addBlock(t, 100, 3)

	block, err := ReadBlock(context.Background(), store, 100)
	require.NoError(t, err)
	assert.Equal(t, uint64(100), block.Header.Height)
	require.Len(t, block.Shards, 3)
	for i, shard := range block.Shards {
		assert.Equal(t, uint64(i), shard.ShardID)
	}
}

func TestStreamPreservesOrder(t *testing.T) {
	store := newFakeStore()
	for h := uint64(100); h <= 120; h++ {
		store.addBlock(t, h, 1)
	}

	fetcher := NewFetcher(store, testConfig(), zap.NewNop())

	var got []uint64
	for res := range fetcher.Stream(context.Background(), heightChan(rangeHeightsSlice(100, 120)...)) {
		require.NoError(t, res.Err)
		got = append(got, res.Block.Header.Height)
	}
	assert.Equal(t, rangeHeightsSlice(100, 120), got)
}

func TestStreamSparseHeights(t *testing.T) {
	store := newFakeStore()
	for _, h := range []uint64{5, 9, 42} {
		store.addBlock(t, h, 1)
	}

	fetcher := NewFetcher(store, testConfig(), zap.NewNop())

	var got []uint64
	for res := range fetcher.Stream(context.Background(), heightChan(5, 9, 42)) {
		require.NoError(t, res.Err)
		got = append(got, res.Height)
	}
	assert.Equal(t, []uint64{5, 9, 42}, got)
}

func TestStreamRetriesTransientFailures(t *testing.T) {
	store := newFakeStore()
	store.addBlock(t, 7, 1)
	store.failures[HeightKey(7)+"/block.json"] = 2

	fetcher := NewFetcher(store, testConfig(), zap.NewNop())

	results := collect(fetcher.Stream(context.Background(), heightChan(7)))
	require.Len(t, results, 1)
	require.NoError(t, results[0].Err)
	assert.Equal(t, uint64(7), results[0].Block.Header.Height)
}

func TestStreamSurfacesPermanentAbsence(t *testing.T) {
	store := newFakeStore()

	fetcher := NewFetcher(store, testConfig(), zap.NewNop())

	results := collect(fetcher.Stream(context.Background(), heightChan(999)))
	require.Len(t, results, 1)
	assert.ErrorIs(t, results[0].Err, ErrBlockNotFound)
}

func TestStreamExhaustedRetries(t *testing.T) {
	store := newFakeStore()
	store.addBlock(t, 7, 1)
	store.failures[HeightKey(7)+"/block.json"] = 100

	fetcher := NewFetcher(store, testConfig(), zap.NewNop())

	results := collect(fetcher.Stream(context.Background(), heightChan(7)))
	require.Len(t, results, 1)
	require.Error(t, results[0].Err)
	assert.NotErrorIs(t, results[0].Err, ErrBlockNotFound)
}

func TestStreamCancellation(t *testing.T) {
	store := newFakeStore()
	store.addBlock(t, 1, 1)

	ctx, cancel := context.WithCancel(context.Background())
	fetcher := NewFetcher(store, testConfig(), zap.NewNop())

	heights := make(chan uint64)
	out := fetcher.Stream(ctx, heights)

	heights <- 1
	<-out
	cancel()

	// The stream drains and closes after cancellation.
	for range out {
	}
}

func TestLatestHeight(t *testing.T) {
	store := newFakeStore()
	for _, h := range []uint64{100, 101, 102, 250} {
		store.addBlock(t, h, 1)
	}

	tip, err := LatestHeight(context.Background(), store, 0)
	require.NoError(t, err)
	assert.Equal(t, uint64(250), tip)

	tip, err = LatestHeight(context.Background(), store, 101)
	require.NoError(t, err)
	assert.Equal(t, uint64(250), tip)

	// Nothing after the hint: the hint is the tip.
	tip, err = LatestHeight(context.Background(), store, 250)
	require.NoError(t, err)
	assert.Equal(t, uint64(250), tip)
}

func TestHeightKey(t *testing.T) {
	assert.Equal(t, "000000000042", HeightKey(42))
	assert.Equal(t, "000115130287", HeightKey(115130287))
}

func collect(ch <-chan BlockResult) []BlockResult {
	var out []BlockResult
	for res := range ch {
		out = append(out, res)
	}
	return out
}

func rangeHeightsSlice(from, to uint64) []uint64 {
	out := make([]uint64, 0, to-from+1)
	for h := from; h <= to; h++ {
		out = append(out, h)
	}
	return out
}
