package rules

import (
	"github.com/0xmhha/blockstream-go/types"
)

// Matches evaluates the rule against one receipt execution outcome. Pure:
// no I/O, no suspension.
func Matches(rule *Rule, outcome *types.ReceiptOutcome) bool {
	switch rule.Kind {
	case KindActionAny:
		return matchActionAny(rule.AffectedAccountID, rule.Status, outcome)
	case KindActionFunctionCall:
		return matchActionFunctionCall(rule.AffectedAccountID, rule.Status, rule.Function, outcome)
	case KindEvent:
		return matchEvent(rule.ContractAccountID, rule.Event, rule.Standard, rule.Version, outcome)
	default:
		return false
	}
}

func matchActionAny(pattern string, status Status, outcome *types.ReceiptOutcome) bool {
	if !matchAccount(pattern, outcome) {
		return false
	}
	// Data-only receipts never match action rules.
	if !outcome.Receipt.Payload.IsAction() {
		return false
	}
	return matchStatus(status, outcome.ExecutionOutcome.Status)
}

func matchActionFunctionCall(pattern string, status Status, function string, outcome *types.ReceiptOutcome) bool {
	if !matchAccount(pattern, outcome) {
		return false
	}

	// Data-only receipts never match action rules.
	action := outcome.Receipt.Payload.Action
	if action == nil {
		return false
	}

	matched := 0
	for i := range action.Actions {
		fc := action.Actions[i].FunctionCall
		if fc != nil && fc.MethodName == function {
			matched++
		}
	}
	// At least one matching function-call action is required.
	if matched == 0 {
		return false
	}

	return matchStatus(status, outcome.ExecutionOutcome.Status)
}

func matchEvent(pattern, event, standard, version string, outcome *types.ReceiptOutcome) bool {
	if !matchAccount(pattern, outcome) {
		return false
	}

	for _, log := range outcome.ExecutionOutcome.Logs {
		decoded, ok := types.DecodeEventLog(log)
		if !ok {
			// Undecodable or non-event logs are skipped silently.
			continue
		}
		if WildcardMatch(event, decoded.Event) &&
			WildcardMatch(standard, decoded.Standard) &&
			WildcardMatch(version, decoded.Version) {
			return true
		}
	}
	return false
}

// matchAccount gates every rule kind: the pattern must match the receiver or
// the predecessor of the receipt.
func matchAccount(pattern string, outcome *types.ReceiptOutcome) bool {
	return WildcardMatch(pattern, outcome.Receipt.ReceiverID) ||
		WildcardMatch(pattern, outcome.Receipt.PredecessorID)
}

func matchStatus(status Status, outcomeStatus types.ExecutionStatus) bool {
	switch status {
	case StatusAny:
		return true
	case StatusSuccess:
		return outcomeStatus.Succeeded()
	case StatusFail:
		return !outcomeStatus.Succeeded()
	default:
		return false
	}
}
