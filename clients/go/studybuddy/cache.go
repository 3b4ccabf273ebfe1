package studybuddy

import (
	"crypto/rsa"
	"sort"
	"sync"

	"github.com/Ashifo7/StudyBuddy/internal/models"
)

// DecryptedMessage is one cache entry: an envelope decoded exactly once.
// Undecryptable envelopes stay in the timeline as placeholders so one bad
// message never hides the rest of a conversation.
type DecryptedMessage struct {
	EnvelopeID     string
	ConversationID string
	SenderID       string
	ReceiverID     string
	Text           string
	SentAt         int64 // unix millis
	Undecryptable  bool
}

// SessionCache merges fetched history and live deliveries into per-
// conversation timelines of already-decrypted messages. Each envelope is
// decoded at most once; opening a cached conversation never re-fetches or
// re-decrypts.
type SessionCache struct {
	mu     sync.Mutex
	selfID string
	priv   *rsa.PrivateKey

	conversations map[string][]DecryptedMessage
	seen          map[string]bool // envelope ids already decoded
	decodes       int
}

// NewSessionCache creates a cache decoding as the given participant.
func NewSessionCache(selfID string, priv *rsa.PrivateKey) *SessionCache {
	return &SessionCache{
		selfID:        selfID,
		priv:          priv,
		conversations: make(map[string][]DecryptedMessage),
		seen:          make(map[string]bool),
	}
}

// LoadHistory populates a conversation from a history fetch. If the
// conversation is already cached the cached timeline is returned as-is —
// live messages that arrived since the fetch snapshot are already in it.
func (c *SessionCache) LoadHistory(conversationID string, envelopes []models.Envelope) []DecryptedMessage {
	c.mu.Lock()
	defer c.mu.Unlock()

	if cached, ok := c.conversations[conversationID]; ok {
		return copyMessages(cached)
	}

	for i := range envelopes {
		c.appendLocked(&envelopes[i])
	}
	// Make sure the entry exists even for an empty conversation, so the
	// next open is served from cache
	if _, ok := c.conversations[conversationID]; !ok {
		c.conversations[conversationID] = []DecryptedMessage{}
	}
	return copyMessages(c.conversations[conversationID])
}

// AddLive merges one live-delivered envelope, whether or not its
// conversation is open or cached. Duplicate envelope ids are ignored.
func (c *SessionCache) AddLive(env *models.Envelope) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.appendLocked(env)
}

// Conversation returns the cached timeline for a conversation, if any.
func (c *SessionCache) Conversation(conversationID string) ([]DecryptedMessage, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	cached, ok := c.conversations[conversationID]
	if !ok {
		return nil, false
	}
	return copyMessages(cached), true
}

// Decodes reports how many envelopes have been decrypted so far.
func (c *SessionCache) Decodes() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.decodes
}

// appendLocked decodes an envelope once and inserts it into its
// conversation's timeline, keeping time order even when a live frame
// races a history fetch.
func (c *SessionCache) appendLocked(env *models.Envelope) {
	if env.ID != "" && c.seen[env.ID] {
		return
	}

	msg := DecryptedMessage{
		EnvelopeID:     env.ID,
		ConversationID: env.ConversationID,
		SenderID:       env.SenderID,
		ReceiverID:     env.ReceiverID,
		SentAt:         env.CreatedAt,
	}

	text, err := Decode(env, c.selfID, c.priv)
	c.decodes++
	if err != nil {
		msg.Undecryptable = true
	} else {
		msg.Text = text
	}

	timeline := append(c.conversations[env.ConversationID], msg)
	if n := len(timeline); n > 1 && timeline[n-2].SentAt > msg.SentAt {
		sort.SliceStable(timeline, func(i, j int) bool {
			return timeline[i].SentAt < timeline[j].SentAt
		})
	}
	c.conversations[env.ConversationID] = timeline

	if env.ID != "" {
		c.seen[env.ID] = true
	}
}

func copyMessages(msgs []DecryptedMessage) []DecryptedMessage {
	out := make([]DecryptedMessage, len(msgs))
	copy(out, msgs)
	return out
}
