package realtime

import (
	"encoding/json"
	"errors"
	"fmt"
)

// Event names on the live channel. Inbound and outbound frames share the
// same envelope: {"event": <name>, "payload": <event-specific body>}.
const (
	EventSetup      = "setup"
	EventJoinChat   = "join chat"
	EventTyping     = "typing"
	EventStopTyping = "stop typing"
	EventNewMessage = "new message"

	EventConnected       = "connected"
	EventMessageReceived = "message received"
)

var ErrMalformedEvent = errors.New("malformed event payload")

type InboundEvent struct {
	Event   string          `json:"event"`
	Payload json.RawMessage `json:"payload,omitempty"`
}

type OutgoingEvent struct {
	Event   string      `json:"event"`
	Payload interface{} `json:"payload,omitempty"`
}

// SetupPayload is the user object the client presents to identify its
// connection. Only the id matters to the relay.
type SetupPayload struct {
	UserID string `json:"_id"`
}

// NewMessagePayload is the slice of the client-reported message the gateway
// actually reads. The persisted record is re-fetched by id before fan-out,
// so the rest of the payload is deliberately ignored.
type NewMessagePayload struct {
	MessageID string `json:"_id"`
	Chat      struct {
		ChatID string `json:"_id"`
	} `json:"chat"`
}

func decodeSetup(raw json.RawMessage) (SetupPayload, error) {
	var payload SetupPayload
	if err := json.Unmarshal(raw, &payload); err != nil {
		return payload, fmt.Errorf("%w: %v", ErrMalformedEvent, err)
	}
	if payload.UserID == "" {
		return payload, fmt.Errorf("%w: setup requires a user id", ErrMalformedEvent)
	}
	return payload, nil
}

func decodeRoom(raw json.RawMessage) (string, error) {
	var room string
	if err := json.Unmarshal(raw, &room); err != nil {
		return "", fmt.Errorf("%w: %v", ErrMalformedEvent, err)
	}
	if room == "" {
		return "", fmt.Errorf("%w: room key must not be empty", ErrMalformedEvent)
	}
	return room, nil
}

func decodeNewMessage(raw json.RawMessage) (NewMessagePayload, error) {
	var payload NewMessagePayload
	if err := json.Unmarshal(raw, &payload); err != nil {
		return payload, fmt.Errorf("%w: %v", ErrMalformedEvent, err)
	}
	if payload.MessageID == "" {
		return payload, fmt.Errorf("%w: new message requires a message id", ErrMalformedEvent)
	}
	return payload, nil
}
