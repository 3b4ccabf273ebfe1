package store

import (
	"context"
	"database/sql"
	"errors"
	"os"
	"path/filepath"
	"time"

	"github.com/google/uuid"
	_ "github.com/mattn/go-sqlite3"
	"github.com/oklog/ulid/v2"

	"github.com/Ashifo7/StudyBuddy/internal/models"
)

// SQLiteStore handles SQLite database operations. It is the embedded
// alternative to Postgres for single-node and development deployments.
type SQLiteStore struct {
	db *sql.DB
}

// NewSQLiteStore creates a new SQLite store.
// If dbPath is empty, defaults to "./data/studybuddy.db".
func NewSQLiteStore(ctx context.Context, dbPath string) (*SQLiteStore, error) {
	if dbPath == "" {
		dbPath = "./data/studybuddy.db"
	}

	// Ensure directory exists, except for in-memory databases
	if dbPath != ":memory:" {
		dir := filepath.Dir(dbPath)
		if err := os.MkdirAll(dir, 0755); err != nil {
			return nil, err
		}
	}

	db, err := sql.Open("sqlite3", dbPath+"?_journal_mode=WAL&_foreign_keys=on")
	if err != nil {
		return nil, err
	}

	if err := db.PingContext(ctx); err != nil {
		return nil, err
	}

	store := &SQLiteStore{db: db}

	if err := store.initSchema(ctx); err != nil {
		return nil, err
	}

	return store, nil
}

// initSchema creates tables if they don't exist.
func (s *SQLiteStore) initSchema(ctx context.Context) error {
	schema := `
	CREATE TABLE IF NOT EXISTS users (
		id TEXT PRIMARY KEY,
		name TEXT DEFAULT '',
		email TEXT DEFAULT '',
		public_key TEXT,
		created_at DATETIME DEFAULT CURRENT_TIMESTAMP,
		updated_at DATETIME DEFAULT CURRENT_TIMESTAMP
	);

	CREATE TABLE IF NOT EXISTS envelopes (
		id TEXT PRIMARY KEY,
		conversation_id TEXT NOT NULL,
		sender_id TEXT NOT NULL,
		receiver_id TEXT NOT NULL,
		ciphertext TEXT NOT NULL,
		key_for_sender TEXT NOT NULL,
		key_for_receiver TEXT NOT NULL,
		iv TEXT NOT NULL,
		created_at INTEGER NOT NULL
	);

	CREATE INDEX IF NOT EXISTS idx_envelopes_conversation
		ON envelopes(conversation_id, created_at);
	`

	_, err := s.db.ExecContext(ctx, schema)
	return err
}

// Close closes the database connection.
func (s *SQLiteStore) Close() {
	s.db.Close()
}

// Ping checks the database connection.
func (s *SQLiteStore) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

// CreateUser creates a new user record.
func (s *SQLiteStore) CreateUser(ctx context.Context, name, email string) (*models.User, error) {
	id := uuid.New().String()
	now := time.Now()

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO users (id, name, email, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?)
	`, id, name, email, now, now)
	if err != nil {
		return nil, err
	}

	return s.GetUserByID(ctx, uuid.MustParse(id))
}

// GetUserByID retrieves a user by ID.
func (s *SQLiteStore) GetUserByID(ctx context.Context, id uuid.UUID) (*models.User, error) {
	user := &models.User{}
	var idStr string
	var publicKey *string
	err := s.db.QueryRowContext(ctx, `
		SELECT id, name, email, public_key, created_at, updated_at
		FROM users WHERE id = ?
	`, id.String()).Scan(
		&idStr,
		&user.Name,
		&user.Email,
		&publicKey,
		&user.CreatedAt,
		&user.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}
	user.ID = uuid.MustParse(idStr)
	if publicKey != nil {
		user.PublicKey = *publicKey
	}
	return user, nil
}

// SetPublicKey publishes a user's public key to the directory.
func (s *SQLiteStore) SetPublicKey(ctx context.Context, id uuid.UUID, publicKey string) error {
	_, err := s.db.ExecContext(ctx, `
		UPDATE users SET public_key = ?, updated_at = CURRENT_TIMESTAMP WHERE id = ?
	`, publicKey, id.String())
	return err
}

// GetPublicKey retrieves a user's published public key. Returns an empty
// string when the user has not published one.
func (s *SQLiteStore) GetPublicKey(ctx context.Context, id uuid.UUID) (string, error) {
	var publicKey *string
	err := s.db.QueryRowContext(ctx, `
		SELECT public_key FROM users WHERE id = ?
	`, id.String()).Scan(&publicKey)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
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
func (s *SQLiteStore) CountUsers(ctx context.Context) (int64, error) {
	var count int64
	err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM users`).Scan(&count)
	return count, err
}

// AppendEnvelope inserts one envelope into the conversation log. Existing
// envelopes are never updated.
func (s *SQLiteStore) AppendEnvelope(ctx context.Context, env *models.Envelope) error {
	if err := env.Validate(); err != nil {
		return err
	}
	if env.ID == "" {
		env.ID = ulid.Make().String()
	}
	if env.CreatedAt == 0 {
		env.CreatedAt = time.Now().UnixMilli()
	}

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO envelopes (id, conversation_id, sender_id, receiver_id,
			ciphertext, key_for_sender, key_for_receiver, iv, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
	`, env.ID, env.ConversationID, env.SenderID, env.ReceiverID,
		env.Ciphertext, env.KeyForSender, env.KeyForReceiver, env.IV, env.CreatedAt)
	return err
}

// ListEnvelopes returns all envelopes for a conversation in ascending
// creation-time order, ULID id as tiebreak.
func (s *SQLiteStore) ListEnvelopes(ctx context.Context, conversationID string) ([]models.Envelope, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, conversation_id, sender_id, receiver_id,
			ciphertext, key_for_sender, key_for_receiver, iv, created_at
		FROM envelopes
		WHERE conversation_id = ?
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

// DeleteConversation removes every envelope in a conversation.
func (s *SQLiteStore) DeleteConversation(ctx context.Context, conversationID string) error {
	_, err := s.db.ExecContext(ctx, `
		DELETE FROM envelopes WHERE conversation_id = ?
	`, conversationID)
	return err
}

// CountEnvelopes returns the total number of stored envelopes.
func (s *SQLiteStore) CountEnvelopes(ctx context.Context) (int64, error) {
	var count int64
	err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM envelopes`).Scan(&count)
	return count, err
}

// CountConversations returns the number of distinct conversations.
func (s *SQLiteStore) CountConversations(ctx context.Context) (int64, error) {
	var count int64
	err := s.db.QueryRowContext(ctx, `SELECT COUNT(DISTINCT conversation_id) FROM envelopes`).Scan(&count)
	return count, err
}
