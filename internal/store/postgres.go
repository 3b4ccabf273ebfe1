package store

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/oklog/ulid/v2"

	"github.com/Ashifo7/StudyBuddy/internal/models"
)

// PostgresStore handles PostgreSQL database operations.
type PostgresStore struct {
	pool *pgxpool.Pool
}

// NewPostgresStore creates a new PostgreSQL store with a connection pool.
func NewPostgresStore(ctx context.Context, databaseURL string) (*PostgresStore, error) {
	pool, err := pgxpool.New(ctx, databaseURL)
	if err != nil {
		return nil, err
	}

	if err := pool.Ping(ctx); err != nil {
		return nil, err
	}

	return &PostgresStore{pool: pool}, nil
}

// Close closes the database connection pool.
func (s *PostgresStore) Close() {
	s.pool.Close()
}

// Ping checks the database connection.
func (s *PostgresStore) Ping(ctx context.Context) error {
	return s.pool.Ping(ctx)
}

// CreateUser creates a new user record.
func (s *PostgresStore) CreateUser(ctx context.Context, name, email string) (*models.User, error) {
	user := &models.User{}
	var publicKey *string
	err := s.pool.QueryRow(ctx, `
		INSERT INTO users (name, email)
		VALUES ($1, $2)
		RETURNING id, name, email, public_key, created_at, updated_at
	`, name, email).Scan(
		&user.ID,
		&user.Name,
		&user.Email,
		&publicKey,
		&user.CreatedAt,
		&user.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	if publicKey != nil {
		user.PublicKey = *publicKey
	}
	return user, nil
}

// GetUserByID retrieves a user by ID.
func (s *PostgresStore) GetUserByID(ctx context.Context, id uuid.UUID) (*models.User, error) {
	user := &models.User{}
	var publicKey *string
	err := s.pool.QueryRow(ctx, `
		SELECT id, name, email, public_key, created_at, updated_at
		FROM users WHERE id = $1
	`, id).Scan(
		&user.ID,
		&user.Name,
		&user.Email,
		&publicKey,
		&user.CreatedAt,
		&user.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}
	if publicKey != nil {
		user.PublicKey = *publicKey
	}
	return user, nil
}

// SetPublicKey publishes a user's public key to the directory.
func (s *PostgresStore) SetPublicKey(ctx context.Context, id uuid.UUID, publicKey string) error {
	_, err := s.pool.Exec(ctx, `
		UPDATE users SET public_key = $2, updated_at = NOW() WHERE id = $1
	`, id, publicKey)
	return err
}

// GetPublicKey retrieves a user's published public key. Returns an empty
// string when the user has not published one.
func (s *PostgresStore) GetPublicKey(ctx context.Context, id uuid.UUID) (string, error) {
	var publicKey *string
	err := s.pool.QueryRow(ctx, `
		SELECT public_key FROM users WHERE id = $1
	`, id).Scan(&publicKey)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return "", nil
		}
		return "", err
	}
	if publicKey == nil {
		return "", nil
	}
	return *publicKey, nil
}

// CountUsers returns the total number of registered users.
func (s *PostgresStore) CountUsers(ctx context.Context) (int64, error) {
	var count int64
	err := s.pool.QueryRow(ctx, `SELECT COUNT(*) FROM users`).Scan(&count)
	return count, err
}

// AppendEnvelope inserts one envelope into the conversation log. Existing
// envelopes are never updated.
func (s *PostgresStore) AppendEnvelope(ctx context.Context, env *models.Envelope) error {
	if err := env.Validate(); err != nil {
		return err
	}
	if env.ID == "" {
		env.ID = ulid.Make().String()
	}
	if env.CreatedAt == 0 {
		env.CreatedAt = time.Now().UnixMilli()
	}

	_, err := s.pool.Exec(ctx, `
		INSERT INTO envelopes (id, conversation_id, sender_id, receiver_id,
			ciphertext, key_for_sender, key_for_receiver, iv, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
	`, env.ID, env.ConversationID, env.SenderID, env.ReceiverID,
		env.Ciphertext, env.KeyForSender, env.KeyForReceiver, env.IV, env.CreatedAt)
	return err
}

// ListEnvelopes returns all envelopes for a conversation in ascending
// creation-time order. Envelope IDs are ULIDs, so the id tiebreak keeps
// same-millisecond appends in insertion order.
func (s *PostgresStore) ListEnvelopes(ctx context.Context, conversationID string) ([]models.Envelope, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT id, conversation_id, sender_id, receiver_id,
			ciphertext, key_for_sender, key_for_receiver, iv, created_at
		FROM envelopes
		WHERE conversation_id = $1
		ORDER BY created_at ASC, id ASC
	`, conversationID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var envelopes []models.Envelope
	for rows.Next() {
		var env models.Envelope
		err := rows.Scan(
			&env.ID,
			&env.ConversationID,
			&env.SenderID,
			&env.ReceiverID,
			&env.Ciphertext,
			&env.KeyForSender,
			&env.KeyForReceiver,
			&env.IV,
			&env.CreatedAt,
		)
		if err != nil {
			return nil, err
		}
		envelopes = append(envelopes, env)
	}

	return envelopes, rows.Err()
}

// DeleteConversation removes every envelope in a conversation. Used by
// match-lifecycle cleanup, never for individual messages.
func (s *PostgresStore) DeleteConversation(ctx context.Context, conversationID string) error {
	_, err := s.pool.Exec(ctx, `
		DELETE FROM envelopes WHERE conversation_id = $1
	`, conversationID)
	return err
}

// CountEnvelopes returns the total number of stored envelopes.
func (s *PostgresStore) CountEnvelopes(ctx context.Context) (int64, error) {
	var count int64
	err := s.pool.QueryRow(ctx, `SELECT COUNT(*) FROM envelopes`).Scan(&count)
	return count, err
}

// CountConversations returns the number of distinct conversations.
func (s *PostgresStore) CountConversations(ctx context.Context) (int64, error) {
	var count int64
	err := s.pool.QueryRow(ctx, `SELECT COUNT(DISTINCT conversation_id) FROM envelopes`).Scan(&count)
	return count, err
}
