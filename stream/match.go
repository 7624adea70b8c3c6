package stream

import (
	"github.com/0xmhha/blockstream-go/rules"
)

// Match is the enriched record appended to a work stream: one rule hit on
// one receipt, with the parent transaction attached when it has been
// observed.
type Match struct {
	StreamID        string
	BlockHeight     uint64
	BlockHash       string
	ReceiptID       string
	TransactionHash string
	Kind            rules.MatchKind

	// Event matches carry the decoded tag fields
	Event    string
	Standard string
	Version  string
	Data     string
}

// Fields renders the record as the field-value pairs of a stream append.
// TransactionHash is present iff the parent transaction has been observed.
func (m *Match) Fields() map[string]interface{} {
	fields := map[string]interface{}{
		"stream_id":    m.StreamID,
		"block_height": m.BlockHeight,
		"block_hash":   m.BlockHash,
		"receipt_id":   m.ReceiptID,
		"kind":         string(m.Kind),
	}
	if m.TransactionHash != "" {
		fields["transaction_hash"] = m.TransactionHash
	}
	if m.Kind == rules.MatchKindEvents {
		fields["event"] = m.Event
		fields["standard"] = m.Standard
		fields["version"] = m.Version
		if m.Data != "" {
			fields["data"] = m.Data
		}
	}
	return fields
}
