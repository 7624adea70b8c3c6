package testutil

import (
	"fmt"
	"testing"
	"time"

	"go.uber.org/zap"

	"github.com/0xmhha/blockstream-go/types"
)

// NewTestLogger creates a test logger that fails the test on construction
// errors.
func NewTestLogger(t *testing.T) *zap.Logger {
	t.Helper()
	logger, err := zap.NewDevelopment()
	if err != nil {
		t.Fatalf("Failed to create test logger: %v", err)
	}
	return logger
}

// NewTestBlock creates an empty block at the given height.
func NewTestBlock(height uint64) *types.Block {
	return &types.Block{
		Header: types.BlockHeader{
			Height:    height,
			Hash:      fmt.Sprintf("hash-%d", height),
			PrevHash:  fmt.Sprintf("hash-%d", height-1),
			Timestamp: uint64(time.Date(2024, 3, 21, 12, 0, 0, 0, time.UTC).UnixNano()),
		},
	}
}

// NewTestBlockWithOutcomes creates a block with one shard holding the given
// receipt execution outcomes.
func NewTestBlockWithOutcomes(height uint64, outcomes ...types.ReceiptOutcome) *types.Block {
	block := NewTestBlock(height)
	block.Shards = []types.Shard{{
		ShardID:                  0,
		ReceiptExecutionOutcomes: outcomes,
	}}
	return block
}

// NewActionOutcome creates an action receipt outcome with the given parties,
// actions and status.
func NewActionOutcome(receiptID, predecessor, receiver string, status types.ExecutionStatus, actions ...types.Action) types.ReceiptOutcome {
	return types.ReceiptOutcome{
		Receipt: types.Receipt{
			ReceiptID:     receiptID,
			PredecessorID: predecessor,
			ReceiverID:    receiver,
			Payload: types.ReceiptPayload{
				Action: &types.ActionPayload{
					SignerID: predecessor,
					Actions:  actions,
				},
			},
		},
		ExecutionOutcome: types.ExecutionOutcome{Status: status},
	}
}

// NewDataOutcome creates a data receipt outcome.
func NewDataOutcome(receiptID, predecessor, receiver string) types.ReceiptOutcome {
	return types.ReceiptOutcome{
		Receipt: types.Receipt{
			ReceiptID:     receiptID,
			PredecessorID: predecessor,
			ReceiverID:    receiver,
			Payload: types.ReceiptPayload{
				Data: &types.DataPayload{DataID: "data-" + receiptID},
			},
		},
		ExecutionOutcome: types.ExecutionOutcome{Status: SuccessValue()},
	}
}

// WithLogs attaches log lines to an outcome.
func WithLogs(outcome types.ReceiptOutcome, logs ...string) types.ReceiptOutcome {
	outcome.ExecutionOutcome.Logs = logs
	return outcome
}

// FunctionCall builds a function-call action.
func FunctionCall(method string) types.Action {
	return types.Action{
		Kind:         types.ActionKindFunctionCall,
		FunctionCall: &types.FunctionCallAction{MethodName: method},
	}
}

// Transfer builds a transfer action.
func Transfer(deposit string) types.Action {
	return types.Action{
		Kind:     types.ActionKindTransfer,
		Transfer: &types.TransferAction{Deposit: deposit},
	}
}

// SuccessValue builds a SuccessValue execution status.
func SuccessValue() types.ExecutionStatus {
	return types.ExecutionStatus{Kind: types.StatusSuccessValue, Value: "aGk="}
}

// Failure builds a Failure execution status.
func Failure() types.ExecutionStatus {
	return types.ExecutionStatus{Kind: types.StatusFailure, Value: `{"error":"boom"}`}
}
