package models

import (
	"errors"
	"fmt"
)

// ErrIncompleteEnvelope is returned when an envelope is missing one of its
// required fields. Partial envelopes are never persisted.
var ErrIncompleteEnvelope = errors.New("incomplete envelope")

// Envelope is one end-to-end-encrypted message. The server routes and
// stores envelopes but cannot read them: Ciphertext is the symmetric-cipher
// output over the plaintext, and the per-message symmetric key is wrapped
// once for each participant so that both can decrypt their shared history.
// All opaque fields are base64.
type Envelope struct {
	ID             string `json:"id,omitempty"`
	ConversationID string `json:"conversationId"`
	SenderID       string `json:"senderId"`
	ReceiverID     string `json:"receiverId"`
	Ciphertext     string `json:"ciphertext"`
	KeyForSender   string `json:"keyForSender"`
	KeyForReceiver string `json:"keyForReceiver"`
	IV             string `json:"iv"`
	CreatedAt      int64  `json:"createdAt,omitempty"` // unix millis
}

// Validate checks that every required field is present. An envelope is
// atomic: ciphertext, both wrapped keys and the IV must appear together.
func (e *Envelope) Validate() error {
	required := []struct{ name, value string }{
		{"conversationId", e.ConversationID},
		{"senderId", e.SenderID},
		{"receiverId", e.ReceiverID},
		{"ciphertext", e.Ciphertext},
		{"keyForSender", e.KeyForSender},
		{"keyForReceiver", e.KeyForReceiver},
		{"iv", e.IV},
	}
	for _, f := range required {
		if f.value == "" {
			return fmt.Errorf("%w: missing %s", ErrIncompleteEnvelope, f.name)
		}
	}
	return nil
}
