package models

import (
	"time"

	"github.com/google/uuid"
)

// User represents a registered user in the directory.
// PublicKey is the base64-encoded PKIX form of the user's RSA public key,
// empty until the user's client publishes one.
type User struct {
	ID        uuid.UUID `json:"id"`
	Name      string    `json:"name,omitempty"`
	Email     string    `json:"email,omitempty"`
	PublicKey string    `json:"public_key,omitempty"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}
