package registry

import (
	"context"
	"hash/fnv"
	"strconv"
	"sync/atomic"

	"github.com/0xmhha/blockstream-go/rules"
)

// Identity names a user-defined indexer function.
type Identity struct {
	AccountID    string `json:"account_id"`
	FunctionName string `json:"function_name"`
}

// FullName renders the canonical account_id/function_name form.
func (i Identity) FullName() string {
	return i.AccountID + "/" + i.FunctionName
}

// StreamID derives the work-stream key of the identity: a deterministic
// 64-bit FNV-1a hash of the full name, in decimal.
func (i Identity) StreamID() string {
	h := fnv.New64a()
	_, _ = h.Write([]byte(i.FullName()))
	return strconv.FormatUint(h.Sum64(), 10)
}

// IndexerConfig is one registry entry: who, what to match, and where to
// start. Version is the monotonic registry generation; a version bump on an
// existing identity restarts its worker.
type IndexerConfig struct {
	Identity   Identity   `json:"identity"`
	Rule       rules.Rule `json:"rule"`
	StartBlock uint64     `json:"start_block"`
	Version    uint64     `json:"version"`
}

// Fetcher lists the registry's current indexer configs. The concrete
// implementation lives with the registry service; the pipeline sees only
// this contract.
type Fetcher interface {
	Fetch(ctx context.Context) ([]IndexerConfig, error)
}

// Snapshot is an immutable view of the registry, keyed by stream id.
type Snapshot struct {
	Configs map[string]IndexerConfig
}

// Lookup returns the config of a stream id, if registered.
func (s *Snapshot) Lookup(streamID string) (IndexerConfig, bool) {
	cfg, ok := s.Configs[streamID]
	return cfg, ok
}

// Store publishes registry snapshots through an atomic pointer swap.
// Readers always see a complete snapshot; updates are copy-on-write.
type Store struct {
	current atomic.Pointer[Snapshot]
}

// NewStore creates a store holding an empty snapshot.
func NewStore() *Store {
	s := &Store{}
	s.current.Store(&Snapshot{Configs: map[string]IndexerConfig{}})
	return s
}

// Load returns the current snapshot.
func (s *Store) Load() *Snapshot {
	return s.current.Load()
}

// Replace swaps in a new snapshot built from the given configs.
func (s *Store) Replace(configs []IndexerConfig) *Snapshot {
	next := &Snapshot{Configs: make(map[string]IndexerConfig, len(configs))}
	for _, cfg := range configs {
		next.Configs[cfg.Identity.StreamID()] = cfg
	}
	s.current.Store(next)
	return next
}
