package types

import (
	"encoding/json"
	"fmt"
	"time"
)

// BlockHeader holds the chain-level metadata of a block.
type BlockHeader struct {
	Height    uint64 `json:"height"`
	Hash      string `json:"hash"`
	PrevHash  string `json:"prev_hash"`
	Timestamp uint64 `json:"timestamp"` // nanoseconds since epoch
}

// Block is one unit of chain advance as materialized from the object store.
// Blocks are totally ordered by height; the pipeline observes at most one
// block per height.
type Block struct {
	Header BlockHeader `json:"header"`
	Shards []Shard     `json:"shards"`
}

// Height returns the block height.
func (b *Block) Height() uint64 {
	return b.Header.Height
}

// Date returns the UTC calendar date of the block timestamp, formatted as
// YYYY-MM-DD. The bitmap index partitions by this date.
func (b *Block) Date() string {
	return time.Unix(0, int64(b.Header.Timestamp)).UTC().Format("2006-01-02")
}

// Shard groups the transactions and receipt execution outcomes that landed
// in one chunk of a block.
type Shard struct {
	ShardID                  uint64               `json:"shard_id"`
	Transactions             []IndexerTransaction `json:"transactions"`
	ReceiptExecutionOutcomes []ReceiptOutcome     `json:"receipt_execution_outcomes"`
}

// IndexerTransaction pairs a signed transaction with its conversion outcome.
// The outcome's receipt ids seed the receipt -> transaction correlation.
type IndexerTransaction struct {
	Transaction Transaction      `json:"transaction"`
	Outcome     ExecutionOutcome `json:"outcome"`
}

// Transaction is the originating transaction of a receipt tree.
type Transaction struct {
	Hash       string `json:"hash"`
	SignerID   string `json:"signer_id"`
	ReceiverID string `json:"receiver_id"`
}

// ReceiptOutcome pairs a receipt with its execution outcome. This is the unit
// the rule evaluator runs against.
type ReceiptOutcome struct {
	Receipt          Receipt          `json:"receipt"`
	ExecutionOutcome ExecutionOutcome `json:"execution_outcome"`
}

// Receipt is a unit of cross-account execution internal to a transaction.
type Receipt struct {
	ReceiptID     string         `json:"receipt_id"`
	PredecessorID string         `json:"predecessor_id"`
	ReceiverID    string         `json:"receiver_id"`
	Payload       ReceiptPayload `json:"receipt"`
}

// ReceiptPayload is the receipt body: exactly one of Action or Data is set.
type ReceiptPayload struct {
	Action *ActionPayload `json:"Action,omitempty"`
	Data   *DataPayload   `json:"Data,omitempty"`
}

// IsAction reports whether the receipt carries actions.
func (p *ReceiptPayload) IsAction() bool {
	return p.Action != nil
}

// ActionPayload holds the actions of an action receipt.
type ActionPayload struct {
	SignerID string   `json:"signer_id"`
	Actions  []Action `json:"actions"`
}

// DataPayload holds a data receipt body.
type DataPayload struct {
	DataID string `json:"data_id"`
	Data   []byte `json:"data,omitempty"`
}

// Action is one action of an action receipt. The wire form is either a bare
// string for parameterless kinds ("CreateAccount") or a single-key object
// ({"FunctionCall": {...}}).
type Action struct {
	Kind         ActionKind
	FunctionCall *FunctionCallAction
	Transfer     *TransferAction
}

// ActionKind enumerates the action variants the pipeline distinguishes.
type ActionKind string

const (
	ActionKindCreateAccount ActionKind = "CreateAccount"
	ActionKindDeployCode    ActionKind = "DeployContract"
	ActionKindFunctionCall  ActionKind = "FunctionCall"
	ActionKindTransfer      ActionKind = "Transfer"
	ActionKindStake         ActionKind = "Stake"
	ActionKindAddKey        ActionKind = "AddKey"
	ActionKindDeleteKey     ActionKind = "DeleteKey"
	ActionKindDeleteAccount ActionKind = "DeleteAccount"
)

// FunctionCallAction is a contract method invocation.
type FunctionCallAction struct {
	MethodName string `json:"method_name"`
	Args       []byte `json:"args,omitempty"`
	Gas        uint64 `json:"gas,omitempty"`
	Deposit    string `json:"deposit,omitempty"`
}

// TransferAction is a balance transfer.
type TransferAction struct {
	Deposit string `json:"deposit"`
}

// MarshalJSON emits the single-key object form, or a bare string for
// parameterless kinds.
func (a Action) MarshalJSON() ([]byte, error) {
	switch a.Kind {
	case ActionKindFunctionCall:
		return json.Marshal(map[string]*FunctionCallAction{string(a.Kind): a.FunctionCall})
	case ActionKindTransfer:
		return json.Marshal(map[string]*TransferAction{string(a.Kind): a.Transfer})
	default:
		return json.Marshal(string(a.Kind))
	}
}

// UnmarshalJSON accepts both the bare-string and single-key object forms.
func (a *Action) UnmarshalJSON(data []byte) error {
	var kind string
	if err := json.Unmarshal(data, &kind); err == nil {
		a.Kind = ActionKind(kind)
		return nil
	}

	var obj map[string]json.RawMessage
	if err := json.Unmarshal(data, &obj); err != nil {
		return fmt.Errorf("malformed action: %w", err)
	}
	if len(obj) != 1 {
		return fmt.Errorf("malformed action: expected one variant, got %d", len(obj))
	}

	for kind, raw := range obj {
		a.Kind = ActionKind(kind)
		switch a.Kind {
		case ActionKindFunctionCall:
			a.FunctionCall = &FunctionCallAction{}
			return json.Unmarshal(raw, a.FunctionCall)
		case ActionKindTransfer:
			a.Transfer = &TransferAction{}
			return json.Unmarshal(raw, a.Transfer)
		default:
			// Variants the pipeline does not inspect keep only their kind.
			return nil
		}
	}
	return nil
}

// ExecutionOutcome is the result of executing a receipt or transaction.
type ExecutionOutcome struct {
	Status     ExecutionStatus `json:"status"`
	Logs       []string        `json:"logs"`
	ReceiptIDs []string        `json:"receipt_ids"`
}

// StatusKind enumerates execution status variants.
type StatusKind string

const (
	StatusSuccessValue     StatusKind = "SuccessValue"
	StatusSuccessReceiptID StatusKind = "SuccessReceiptId"
	StatusFailure          StatusKind = "Failure"
	StatusUnknown          StatusKind = "Unknown"
)

// ExecutionStatus is the status sum type. Value carries the success payload
// (base64 value or receipt id) or the failure description.
type ExecutionStatus struct {
	Kind  StatusKind
	Value string
}

// Succeeded reports whether the status is one of the success variants.
func (s ExecutionStatus) Succeeded() bool {
	return s.Kind == StatusSuccessValue || s.Kind == StatusSuccessReceiptID
}

// MarshalJSON emits "Unknown" as a bare string and the other variants as
// single-key objects.
func (s ExecutionStatus) MarshalJSON() ([]byte, error) {
	if s.Kind == StatusUnknown || s.Kind == "" {
		return json.Marshal(string(StatusUnknown))
	}
	return json.Marshal(map[string]string{string(s.Kind): s.Value})
}

// UnmarshalJSON accepts both the bare-string and single-key object forms.
// Unrecognized variants decode as Unknown rather than failing the block.
func (s *ExecutionStatus) UnmarshalJSON(data []byte) error {
	var kind string
	if err := json.Unmarshal(data, &kind); err == nil {
		s.Kind = StatusKind(kind)
		if s.Kind != StatusSuccessValue && s.Kind != StatusSuccessReceiptID && s.Kind != StatusFailure {
			s.Kind = StatusUnknown
		}
		return nil
	}

	var obj map[string]json.RawMessage
	if err := json.Unmarshal(data, &obj); err != nil {
		return fmt.Errorf("malformed execution status: %w", err)
	}

	for kind, raw := range obj {
		s.Kind = StatusKind(kind)
		switch s.Kind {
		case StatusSuccessValue, StatusSuccessReceiptID:
			var v string
			if err := json.Unmarshal(raw, &v); err == nil {
				s.Value = v
			}
		case StatusFailure:
			s.Value = string(raw)
		default:
			s.Kind = StatusUnknown
		}
		return nil
	}

	s.Kind = StatusUnknown
	return nil
}
