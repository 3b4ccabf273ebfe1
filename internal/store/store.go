package store

import (
	"context"

	"github.com/google/uuid"

	"github.com/Ashifo7/StudyBuddy/internal/models"
)

// DataStore defines the interface for persistent storage of users and
// envelopes. Both PostgresStore and SQLiteStore implement this interface.
// Envelope storage is append-only: stored envelopes are never mutated and
// are deleted only as part of whole-conversation deletion.
type DataStore interface {
	// Connection management
	Close()
	Ping(ctx context.Context) error

	// User directory operations
	CreateUser(ctx context.Context, name, email string) (*models.User, error)
	GetUserByID(ctx context.Context, id uuid.UUID) (*models.User, error)
	SetPublicKey(ctx context.Context, id uuid.UUID, publicKey string) error
	GetPublicKey(ctx context.Context, id uuid.UUID) (string, error)
	CountUsers(ctx context.Context) (int64, error)

	// Conversation log operations
	AppendEnvelope(ctx context.Context, env *models.Envelope) error
	ListEnvelopes(ctx context.Context, conversationID string) ([]models.Envelope, error)
	DeleteConversation(ctx context.Context, conversationID string) error
	CountEnvelopes(ctx context.Context) (int64, error)
	CountConversations(ctx context.Context) (int64, error)
}
