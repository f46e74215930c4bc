package realtime

import (
	"encoding/json"
	"errors"
	"strings"
)

// Client to server events.
const (
	EventJoinPoll  = "join_poll"
	EventLeavePoll = "leave_poll"
)

// Server to client events.
const (
	EventPollUpdate   = "poll_update"
	EventJoined       = "joined"
	EventLeft         = "left"
	EventJoinRejected = "join_rejected"
	EventError        = "error"
)

// Rejection codes share the HTTP error vocabulary.
const (
	CodeValidation    = "validation_error"
	CodeNotFound      = "not_found"
	CodeQuotaExceeded = "rate_limited"
	CodeInternal      = "internal_error"
)

// Inbound is a message received from a client.
type Inbound struct {
	Event string          `json:"event"`
	Data  json.RawMessage `json:"data"`
}

// Outbound is a message sent to a client.
type Outbound struct {
	Event string `json:"event"`
	Data  any    `json:"data"`
}

// Joined acknowledges a join_poll or leave_poll request.
type Joined struct {
	PollID string `json:"pollId"`
}

// JoinRejected explains why a join_poll request was refused.
type JoinRejected struct {
	PollID string `json:"pollId"`
	Code   string `json:"code"`
	Reason string `json:"reason"`
}

// ErrorData is the payload of the generic error event.
type ErrorData struct {
	Code   string `json:"code"`
	Reason string `json:"reason"`
}

var errBadPayload = errors.New("data must be a poll id")

// pollIDFromData accepts either a bare JSON string or {"pollId": "..."}.
func pollIDFromData(raw json.RawMessage) (string, error) {
	var s string
	if err := json.Unmarshal(raw, &s); err == nil {
		return strings.TrimSpace(s), nil
	}
	var obj struct {
		PollID string `json:"pollId"`
	}
	if err := json.Unmarshal(raw, &obj); err != nil {
		return "", errBadPayload
	}
	return strings.TrimSpace(obj.PollID), nil
}
