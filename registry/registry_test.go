package registry

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/0xmhha/blockstream-go/rules"
)

func TestIdentityFullName(t *testing.T) {
	id := Identity{AccountID: "morgs.near", FunctionName: "test"}
	assert.Equal(t, "morgs.near/test", id.FullName())
}

func TestStreamIDIsDeterministic(t *testing.T) {
	id := Identity{AccountID: "morgs.near", FunctionName: "test"}
	first := id.StreamID()
	second := id.StreamID()

	assert.Equal(t, first, second)
	assert.NotEmpty(t, first)

	other := Identity{AccountID: "morgs.near", FunctionName: "other"}
	assert.NotEqual(t, first, other.StreamID())
}

func TestStoreReplaceAndLookup(t *testing.T) {
	store := NewStore()
	assert.Empty(t, store.Load().Configs)

	cfg := IndexerConfig{
		Identity:   Identity{AccountID: "a.near", FunctionName: "fn"},
		Rule:       rules.ActionAny("*", rules.StatusAny),
		StartBlock: 100,
		Version:    1,
	}
	store.Replace([]IndexerConfig{cfg})

	snapshot := store.Load()
	got, ok := snapshot.Lookup(cfg.Identity.StreamID())
	require.True(t, ok)
	assert.Equal(t, cfg, got)

	// A replace publishes a fresh snapshot; the old one is untouched.
	store.Replace(nil)
	assert.Empty(t, store.Load().Configs)
	_, stillThere := snapshot.Lookup(cfg.Identity.StreamID())
	assert.True(t, stillThere)
}
