package types

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestActionJSON(t *testing.T) {
	t.Run("function call round trip", func(t *testing.T) {
		in := Action{
			Kind:         ActionKindFunctionCall,
			FunctionCall: &FunctionCallAction{MethodName: "mint", Gas: 100},
		}
		data, err := json.Marshal(in)
		require.NoError(t, err)

		var out Action
		require.NoError(t, json.Unmarshal(data, &out))
		assert.Equal(t, ActionKindFunctionCall, out.Kind)
		require.NotNil(t, out.FunctionCall)
		assert.Equal(t, "mint", out.FunctionCall.MethodName)
	})

	t.Run("bare string kind", func(t *testing.T) {
		var out Action
		require.NoError(t, json.Unmarshal([]byte(`"CreateAccount"`), &out))
		assert.Equal(t, ActionKindCreateAccount, out.Kind)
		assert.Nil(t, out.FunctionCall)
	})

	t.Run("uninspected variant keeps kind only", func(t *testing.T) {
		var out Action
		require.NoError(t, json.Unmarshal([]byte(`{"Stake":{"stake":"100","public_key":"ed25519:xxx"}}`), &out))
		assert.Equal(t, ActionKindStake, out.Kind)
	})

	t.Run("malformed action", func(t *testing.T) {
		var out Action
		assert.Error(t, json.Unmarshal([]byte(`42`), &out))
	})
}

func TestExecutionStatusJSON(t *testing.T) {
	tests := []struct {
		name      string
		input     string
		wantKind  StatusKind
		succeeded bool
	}{
		{"success value", `{"SuccessValue":"aGk="}`, StatusSuccessValue, true},
		{"success receipt id", `{"SuccessReceiptId":"receipt-1"}`, StatusSuccessReceiptID, true},
		{"failure", `{"Failure":{"error":"boom"}}`, StatusFailure, false},
		{"bare unknown", `"Unknown"`, StatusUnknown, false},
		{"unrecognized variant", `{"SomethingNew":"x"}`, StatusUnknown, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var status ExecutionStatus
			require.NoError(t, json.Unmarshal([]byte(tt.input), &status))
			assert.Equal(t, tt.wantKind, status.Kind)
			assert.Equal(t, tt.succeeded, status.Succeeded())
		})
	}
}

func TestBlockDate(t *testing.T) {
	// 2024-03-21T23:59:59Z in nanoseconds
	block := &Block{Header: BlockHeader{Height: 1, Timestamp: 1711065599000000000}}
	assert.Equal(t, "2024-03-21", block.Date())
}

func TestShardJSON(t *testing.T) {
	raw := `{
		"shard_id": 3,
		"transactions": [
			{
				"transaction": {"hash": "tx-1", "signer_id": "alice.near", "receiver_id": "token.near"},
				"outcome": {"status": {"SuccessReceiptId": "r-1"}, "logs": [], "receipt_ids": ["r-1"]}
			}
		],
		"receipt_execution_outcomes": [
			{
				"receipt": {
					"receipt_id": "r-1",
					"predecessor_id": "alice.near",
					"receiver_id": "token.near",
					"receipt": {"Action": {"signer_id": "alice.near", "actions": [{"FunctionCall": {"method_name": "ft_transfer"}}]}}
				},
				"execution_outcome": {"status": {"SuccessValue": ""}, "logs": ["plain"], "receipt_ids": []}
			}
		]
	}`

	var shard Shard
	require.NoError(t, json.Unmarshal([]byte(raw), &shard))

	assert.Equal(t, uint64(3), shard.ShardID)
	require.Len(t, shard.Transactions, 1)
	assert.Equal(t, "tx-1", shard.Transactions[0].Transaction.Hash)
	assert.Equal(t, []string{"r-1"}, shard.Transactions[0].Outcome.ReceiptIDs)

	require.Len(t, shard.ReceiptExecutionOutcomes, 1)
	outcome := shard.ReceiptExecutionOutcomes[0]
	assert.True(t, outcome.Receipt.Payload.IsAction())
	require.Len(t, outcome.Receipt.Payload.Action.Actions, 1)
	assert.Equal(t, "ft_transfer", outcome.Receipt.Payload.Action.Actions[0].FunctionCall.MethodName)
	assert.True(t, outcome.ExecutionOutcome.Status.Succeeded())
}
