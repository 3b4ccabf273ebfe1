package channel

import "sync"

// Session is one live connection capable of receiving events. Deliver must
// not block: implementations enqueue and drop on a full or closed peer.
type Session interface {
	Deliver(ev Event)
}

// PresenceTable maps online user ids to their active session. It is owned
// by the hub and injected at construction; entries exist only while a
// connection is open. Exactly one session per user: a reconnect replaces
// the previous binding.
type PresenceTable struct {
	mu       sync.RWMutex
	sessions map[string]Session
}

// NewPresenceTable creates an empty presence table.
func NewPresenceTable() *PresenceTable {
	return &PresenceTable{sessions: make(map[string]Session)}
}

// Bind associates a user id with a session, replacing any prior session
// for that id. Last connection wins.
func (p *PresenceTable) Bind(userID string, s Session) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.sessions[userID] = s
}

// Unbind removes the entry owned by the given session and returns the
// user id it was bound to, or "" if the session was never bound (or was
// already replaced by a newer connection). The O(n) owner scan is fine at
// presence-table sizes; a reverse index would be needed at real scale.
func (p *PresenceTable) Unbind(s Session) string {
	p.mu.Lock()
	defer p.mu.Unlock()
	for userID, bound := range p.sessions {
		if bound == s {
			delete(p.sessions, userID)
			return userID
		}
	}
	return ""
}

// Lookup returns the session for an online user, or nil.
func (p *PresenceTable) Lookup(userID string) Session {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.sessions[userID]
}

// Online returns the ids of all currently bound users.
func (p *PresenceTable) Online() []string {
	p.mu.RLock()
	defer p.mu.RUnlock()
	ids := make([]string, 0, len(p.sessions))
	for userID := range p.sessions {
		ids = append(ids, userID)
	}
	return ids
}

// Count returns the number of online users.
func (p *PresenceTable) Count() int {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return len(p.sessions)
}

// each calls fn for every bound session.
func (p *PresenceTable) each(fn func(userID string, s Session)) {
	p.mu.RLock()
	defer p.mu.RUnlock()
	for userID, s := range p.sessions {
		fn(userID, s)
	}
}
