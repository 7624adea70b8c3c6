package types

import (
	"encoding/json"
	"strings"
)

// EventLogPrefix is the fixed log-line prefix of structured contract events.
// The format is a wire contract and must be honored byte-for-byte.
const EventLogPrefix = "EVENT_JSON:"

// Event is a structured contract event decoded from a receipt log line.
type Event struct {
	Event    string          `json:"event"`
	Standard string          `json:"standard"`
	Version  string          `json:"version"`
	Data     json.RawMessage `json:"data,omitempty"`
}

// DecodeEventLog parses a log line in the EVENT_JSON format. Lines without
// the prefix, or with a payload that is not a JSON object carrying the three
// required string tags, yield (nil, false) — not-an-event is common and is
// not an error.
func DecodeEventLog(log string) (*Event, bool) {
	if !strings.HasPrefix(log, EventLogPrefix) {
		return nil, false
	}

	payload := strings.TrimSpace(log[len(EventLogPrefix):])

	var raw struct {
		Event    *string         `json:"event"`
		Standard *string         `json:"standard"`
		Version  *string         `json:"version"`
		Data     json.RawMessage `json:"data"`
	}
	if err := json.Unmarshal([]byte(payload), &raw); err != nil {
		return nil, false
	}
	if raw.Event == nil || raw.Standard == nil || raw.Version == nil {
		return nil, false
	}

	return &Event{
		Event:    *raw.Event,
		Standard: *raw.Standard,
		Version:  *raw.Version,
		Data:     raw.Data,
	}, true
}

// EncodeEventLog renders an event back into its wire log-line form.
func EncodeEventLog(e *Event) (string, error) {
	payload, err := json.Marshal(e)
	if err != nil {
		return "", err
	}
	return EventLogPrefix + string(payload), nil
}
