package protocol

import (
	"encoding/json"
	"errors"
	"fmt"
)

const (
	// TypeInvalidate tells the client its cached room state is stale; the
	// payload carries nothing beyond the tag.
	TypeInvalidate = "invalidate"
	// TypeChatMessage carries the full serialized chat message so the client
	// can append it without a re-fetch.
	TypeChatMessage = "chat_message"
)

// Keepalive frames are bare text, not JSON. A client that tries to decode a
// pong gets an error and ignores it, which is the intended path.
var (
	PingFrame = []byte("ping")
	PongFrame = []byte("pong")
)

var ErrUnknownEvent = errors.New("unknown event type")

// Event is the closed set of payloads crossing a room connection. Anything
// that does not decode into one of the known tags is a decode error to be
// ignored by the receiver, never a reason to drop the connection.
type Event struct {
	Type string          `json:"type"`
	Data json.RawMessage `json:"data,omitempty"`
}

func Invalidate() Event {
	return Event{Type: TypeInvalidate}
}

func ChatMessage(data json.RawMessage) Event {
	return Event{Type: TypeChatMessage, Data: data}
}

func (e Event) Encode() ([]byte, error) {
	return json.Marshal(e)
}

func Decode(raw []byte) (Event, error) {
	var e Event
	if err := json.Unmarshal(raw, &e); err != nil {
		return Event{}, err
	}
	switch e.Type {
	case TypeInvalidate, TypeChatMessage:
		return e, nil
	default:
		return Event{}, fmt.Errorf("%w: %q", ErrUnknownEvent, e.Type)
	}
}
