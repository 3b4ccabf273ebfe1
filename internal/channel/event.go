package channel

import "encoding/json"

// Event names understood by the message channel. Each connection speaks
// JSON frames of the form {"event": "...", "data": {...}}.
const (
	// Client -> server
	EventPresenceAnnounce = "presence-announce"
	EventEnvelopeSend     = "envelope-send"

	// Server -> client
	EventEnvelopeDeliver = "envelope-deliver"
	EventEnvelopeReject  = "envelope-reject"
	EventUserStatus      = "user-status"
)

// Event is one wire frame on the channel.
type Event struct {
	Name string          `json:"event"`
	Data json.RawMessage `json:"data,omitempty"`
}

// NewEvent marshals a payload into an event frame.
func NewEvent(name string, payload interface{}) Event {
	data, _ := json.Marshal(payload)
	return Event{Name: name, Data: data}
}

// AnnouncePayload is the body of a presence-announce frame.
type AnnouncePayload struct {
	UserID string `json:"userId"`
}

// RejectPayload is the body of an envelope-reject frame. Rejections go to
// the initiating connection only.
type RejectPayload struct {
	Reason string `json:"reason"`
}

// StatusPayload is the body of a user-status broadcast.
type StatusPayload struct {
	UserID string `json:"userId"`
	Status string `json:"status"` // "online" or "offline"
}
