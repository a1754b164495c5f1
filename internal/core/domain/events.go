package domain

import (
	"bytes"
	"encoding/json"
	"fmt"

	apperrors "github.com/lorrc/severino-relay/internal/core/errors"
	"github.com/lorrc/severino-relay/internal/core/validation"
)

// EventKind defines the type of real-time event.
type EventKind string

const (
	EventTicketAssigned      EventKind = "ticket:assigned"
	EventTicketNew           EventKind = "ticket:new"
	EventExecutionRegistered EventKind = "ticket:execution_registered"
	EventTicketClosed        EventKind = "ticket:closed"
)

// Relay-originated frames. These never arrive through ingress.
const (
	EventConnectionReady = "connection:ready"
	EventPong            = "pong"
)

// MaxRoomLength bounds the room name accepted at ingress.
const MaxRoomLength = 256

var eventKinds = []EventKind{
	EventTicketAssigned,
	EventTicketNew,
	EventExecutionRegistered,
	EventTicketClosed,
}

// Valid reports whether k is one of the known kinds.
func (k EventKind) Valid() bool {
	for _, known := range eventKinds {
		if k == known {
			return true
		}
	}
	return false
}

// EventKindNames lists the known kinds as strings.
func EventKindNames() []string {
	names := make([]string, len(eventKinds))
	for i, k := range eventKinds {
		names[i] = string(k)
	}
	return names
}

// Payload is implemented by the four kind-specific payload types.
type Payload interface {
	Kind() EventKind
	Validate(v *validation.Validator)
}

// Event is a validated ingress event addressed to a room.
type Event struct {
	Room    string
	Kind    EventKind
	Payload Payload
}

// Message is the frame written to a browser connection.
type Message struct {
	Event   string `json:"event"`
	Payload any    `json:"payload,omitempty"`
}

// Frame encodes the event as the outbound connection message.
func (e *Event) Frame() ([]byte, error) {
	data, err := json.Marshal(Message{Event: string(e.Kind), Payload: e.Payload})
	if err != nil {
		return nil, fmt.Errorf("encode %s frame: %w", e.Kind, err)
	}
	return data, nil
}

type eventEnvelope struct {
	Room    string          `json:"room"`
	Event   EventKind       `json:"event"`
	Payload json.RawMessage `json:"payload"`
}

// NewPayload returns an empty payload value for kind.
func NewPayload(kind EventKind) (Payload, error) {
	switch kind {
	case EventTicketAssigned:
		return &TicketAssignedPayload{}, nil
	case EventTicketNew:
		return &TicketNewPayload{}, nil
	case EventExecutionRegistered:
		return &ExecutionRegisteredPayload{}, nil
	case EventTicketClosed:
		return &TicketClosedPayload{}, nil
	default:
		return nil, fmt.Errorf("%w: %q", apperrors.ErrUnknownEvent, kind)
	}
}

// DecodeEvent parses and validates an ingress body. It either returns a fully
// valid event or an error; there is no partially decoded result.
func DecodeEvent(data []byte) (*Event, error) {
	var env eventEnvelope
	if err := json.Unmarshal(data, &env); err != nil {
		return nil, fmt.Errorf("%w: %v", apperrors.ErrMalformedBody, err)
	}

	v := validation.NewValidator()
	v.Required("room", env.Room).
		MaxLength("room", env.Room, MaxRoomLength).
		Required("event", string(env.Event))
	if v.HasErrors() {
		return nil, v.Err()
	}

	payload, err := NewPayload(env.Event)
	if err != nil {
		return nil, err
	}

	raw := bytes.TrimSpace(env.Payload)
	if len(raw) == 0 || bytes.Equal(raw, []byte("null")) {
		v.Custom("payload", false, "This field is required")
		return nil, v.Err()
	}
	if err := json.Unmarshal(raw, payload); err != nil {
		return nil, fmt.Errorf("%w: payload: %v", apperrors.ErrMalformedBody, err)
	}

	payload.Validate(v)
	if err := v.Err(); err != nil {
		return nil, err
	}

	return &Event{Room: env.Room, Kind: env.Event, Payload: payload}, nil
}
