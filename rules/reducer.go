package rules

import (
	"github.com/0xmhha/blockstream-go/types"
)

// MatchKind distinguishes the payload shape of a raw match.
type MatchKind string

const (
	MatchKindActions MatchKind = "actions"
	MatchKindEvents  MatchKind = "events"
)

// RawMatch is one rule hit on one receipt, before transaction enrichment.
type RawMatch struct {
	ReceiptID    string
	Kind         MatchKind
	BlockHash    string
	BlockHeight  uint64
	ShardIndex   int
	ReceiptIndex int

	// Event rule hits carry the tag fields of the first matching decoded
	// event, for downstream payload enrichment.
	Event    string
	Standard string
	Version  string
	Data     string
}

// Reduce evaluates the rule against every receipt execution outcome of the
// block and returns the hits in shard-then-index order. Pure and
// deterministic: two invocations on the same inputs return equal results.
func Reduce(rule *Rule, block *types.Block) []RawMatch {
	var matches []RawMatch

	for shardIdx := range block.Shards {
		shard := &block.Shards[shardIdx]
		for receiptIdx := range shard.ReceiptExecutionOutcomes {
			outcome := &shard.ReceiptExecutionOutcomes[receiptIdx]
			if !Matches(rule, outcome) {
				continue
			}

			m := RawMatch{
				ReceiptID:    outcome.Receipt.ReceiptID,
				BlockHash:    block.Header.Hash,
				BlockHeight:  block.Header.Height,
				ShardIndex:   shardIdx,
				ReceiptIndex: receiptIdx,
			}

			switch rule.Kind {
			case KindEvent:
				m.Kind = MatchKindEvents
				if ev := firstMatchingEvent(rule, outcome); ev != nil {
					m.Event = ev.Event
					m.Standard = ev.Standard
					m.Version = ev.Version
					m.Data = string(ev.Data)
				}
			default:
				m.Kind = MatchKindActions
			}

			matches = append(matches, m)
		}
	}

	return matches
}

// firstMatchingEvent re-decodes the outcome logs and returns the first event
// whose tag fields match the rule globs.
func firstMatchingEvent(rule *Rule, outcome *types.ReceiptOutcome) *types.Event {
	for _, log := range outcome.ExecutionOutcome.Logs {
		decoded, ok := types.DecodeEventLog(log)
		if !ok {
			continue
		}
		if WildcardMatch(rule.Event, decoded.Event) &&
			WildcardMatch(rule.Standard, decoded.Standard) &&
			WildcardMatch(rule.Version, decoded.Version) {
			return decoded
		}
	}
	return nil
}
