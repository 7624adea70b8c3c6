package rules

import (
	"encoding/json"
	"errors"
	"fmt"
)

// Rule evaluation errors
var (
	// ErrUnknownRuleKind indicates a rule tag outside the supported set
	ErrUnknownRuleKind = errors.New("unknown rule kind")

	// ErrUnknownStatus indicates a status outside {ANY, SUCCESS, FAIL}
	ErrUnknownStatus = errors.New("unknown status")

	// ErrEmptyAccountPattern indicates a rule with no account pattern
	ErrEmptyAccountPattern = errors.New("account pattern must not be empty")

	// ErrEmptyFunction indicates a function-call rule with no method name
	ErrEmptyFunction = errors.New("function name must not be empty")
)

// Status filters receipts by execution outcome.
type Status string

const (
	StatusAny     Status = "ANY"
	StatusSuccess Status = "SUCCESS"
	StatusFail    Status = "FAIL"
)

// Valid reports whether the status is one of the three known values.
func (s Status) Valid() bool {
	return s == StatusAny || s == StatusSuccess || s == StatusFail
}

// Kind tags the rule variants.
type Kind string

const (
	KindActionAny          Kind = "ACTION_ANY"
	KindActionFunctionCall Kind = "ACTION_FUNCTION_CALL"
	KindEvent              Kind = "EVENT"
)

// Rule is the polymorphic matching rule attached to an indexer. Exactly the
// fields of the tagged variant are meaningful; the registry wire form is a
// tagged JSON object.
type Rule struct {
	Kind Kind

	// ActionAny / ActionFunctionCall
	AffectedAccountID string
	Status            Status

	// ActionFunctionCall
	Function string

	// Event
	ContractAccountID string
	Event             string
	Standard          string
	Version           string
}

// ruleWire is the registry JSON representation.
type ruleWire struct {
	Rule              Kind   `json:"rule"`
	AffectedAccountID string `json:"affected_account_id,omitempty"`
	Status            Status `json:"status,omitempty"`
	Function          string `json:"function,omitempty"`
	ContractAccountID string `json:"contract_account_id,omitempty"`
	Event             string `json:"event,omitempty"`
	Standard          string `json:"standard,omitempty"`
	Version           string `json:"version,omitempty"`
}

// MarshalJSON emits the tagged registry form.
func (r Rule) MarshalJSON() ([]byte, error) {
	return json.Marshal(ruleWire{
		Rule:              r.Kind,
		AffectedAccountID: r.AffectedAccountID,
		Status:            r.Status,
		Function:          r.Function,
		ContractAccountID: r.ContractAccountID,
		Event:             r.Event,
		Standard:          r.Standard,
		Version:           r.Version,
	})
}

// UnmarshalJSON parses the tagged registry form and validates it.
func (r *Rule) UnmarshalJSON(data []byte) error {
	var w ruleWire
	if err := json.Unmarshal(data, &w); err != nil {
		return err
	}

	*r = Rule{
		Kind:              w.Rule,
		AffectedAccountID: w.AffectedAccountID,
		Status:            w.Status,
		Function:          w.Function,
		ContractAccountID: w.ContractAccountID,
		Event:             w.Event,
		Standard:          w.Standard,
		Version:           w.Version,
	}
	return r.Validate()
}

// Validate checks the rule for structural soundness.
func (r *Rule) Validate() error {
	switch r.Kind {
	case KindActionAny:
		if r.AffectedAccountID == "" {
			return ErrEmptyAccountPattern
		}
		if !r.Status.Valid() {
			return fmt.Errorf("%w: %q", ErrUnknownStatus, r.Status)
		}
	case KindActionFunctionCall:
		if r.AffectedAccountID == "" {
			return ErrEmptyAccountPattern
		}
		if r.Function == "" {
			return ErrEmptyFunction
		}
		if !r.Status.Valid() {
			return fmt.Errorf("%w: %q", ErrUnknownStatus, r.Status)
		}
	case KindEvent:
		if r.ContractAccountID == "" {
			return ErrEmptyAccountPattern
		}
	default:
		return fmt.Errorf("%w: %q", ErrUnknownRuleKind, r.Kind)
	}
	return nil
}

// AccountPattern returns the account glob the rule gates on, independent of
// variant. The bitmap selector narrows blocks by this pattern.
func (r *Rule) AccountPattern() string {
	if r.Kind == KindEvent {
		return r.ContractAccountID
	}
	return r.AffectedAccountID
}

// ActionAny builds an ACTION_ANY rule.
func ActionAny(affectedAccountID string, status Status) Rule {
	return Rule{Kind: KindActionAny, AffectedAccountID: affectedAccountID, Status: status}
}

// ActionFunctionCall builds an ACTION_FUNCTION_CALL rule.
func ActionFunctionCall(affectedAccountID, function string, status Status) Rule {
	return Rule{Kind: KindActionFunctionCall, AffectedAccountID: affectedAccountID, Status: status, Function: function}
}

// EventRule builds an EVENT rule. The three tag fields are globs.
func EventRule(contractAccountID, event, standard, version string) Rule {
	return Rule{Kind: KindEvent, ContractAccountID: contractAccountID, Event: event, Standard: standard, Version: version}
}
