package handlers

import (
	"net/http"
	"time"
)

// StatsResponse represents aggregate service statistics. Counts only:
// the server cannot see inside envelopes, so there is nothing else to
// report.
type StatsResponse struct {
	Users         int64  `json:"users"`
	Conversations int64  `json:"conversations"`
	Envelopes     int64  `json:"envelopes"`
	Online        int    `json:"online"`
	Timestamp     string `json:"timestamp"`
}

// onlineCounter reports the size of the presence table. Implemented by
// the channel hub and injected so handlers stay transport-agnostic.
type onlineCounter interface {
	Count() int
}

// SetPresence wires the presence counter used by Stats.
func (h *Handler) SetPresence(p onlineCounter) {
	h.presence = p
}

// Stats handles the aggregate statistics endpoint.
func (h *Handler) Stats(w http.ResponseWriter, r *http.Request) {
	users, err := h.db.CountUsers(r.Context())
	if err != nil {
		h.Error(w, http.StatusInternalServerError, "database error")
		return
	}

	conversations, err := h.db.CountConversations(r.Context())
	if err != nil {
		h.Error(w, http.StatusInternalServerError, "database error")
		return
	}

	envelopes, err := h.db.CountEnvelopes(r.Context())
	if err != nil {
		h.Error(w, http.StatusInternalServerError, "database error")
		return
	}

	online := 0
	if h.presence != nil {
		online = h.presence.Count()
	}

	h.JSON(w, http.StatusOK, StatsResponse{
		Users:         users,
		Conversations: conversations,
		Envelopes:     envelopes,
		Online:        online,
		Timestamp:     time.Now().UTC().Format(time.RFC3339),
	})
}
