package handlers

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/Ashifo7/StudyBuddy/internal/api/middleware"
	"github.com/Ashifo7/StudyBuddy/internal/metrics"
	"github.com/Ashifo7/StudyBuddy/internal/models"
)

// CreateMessageResponse is returned after an envelope is appended.
type CreateMessageResponse struct {
	Success  bool             `json:"success"`
	Envelope *models.Envelope `json:"message"`
}

// MessageListResponse is the history-fetch response for a conversation.
type MessageListResponse struct {
	Success   bool              `json:"success"`
	Envelopes []models.Envelope `json:"messages"`
}

// CreateMessage appends one encrypted envelope over REST. Clients that
// cannot hold a channel connection open (or are retrying after a reject)
// use this path; the envelope shape and validation are identical to
// envelope-send on the channel.
func (h *Handler) CreateMessage(w http.ResponseWriter, r *http.Request) {
	user := middleware.GetUserFromContext(r.Context())
	if user == nil {
		h.Error(w, http.StatusUnauthorized, "authentication required")
		return
	}

	var env models.Envelope
	if err := json.NewDecoder(r.Body).Decode(&env); err != nil {
		h.Error(w, http.StatusBadRequest, "invalid JSON body")
		return
	}

	if env.SenderID == "" {
		env.SenderID = user.ID.String()
	}

	if err := env.Validate(); err != nil {
		metrics.EnvelopesRejected.WithLabelValues("validation").Inc()
		h.Error(w, http.StatusBadRequest, "missing required fields")
		return
	}

	if err := h.db.AppendEnvelope(r.Context(), &env); err != nil {
		if errors.Is(err, models.ErrIncompleteEnvelope) {
			h.Error(w, http.StatusBadRequest, "missing required fields")
			return
		}
		h.Error(w, http.StatusInternalServerError, "failed to store message")
		return
	}

	metrics.EnvelopesStored.WithLabelValues("rest").Inc()

	h.JSON(w, http.StatusCreated, CreateMessageResponse{Success: true, Envelope: &env})
}

// ListMessages returns every envelope in a conversation, oldest first.
// The fetch is restartable: there is no cursor, clients re-fetch from
// scratch and merge against their session cache.
func (h *Handler) ListMessages(w http.ResponseWriter, r *http.Request) {
	user := middleware.GetUserFromContext(r.Context())
	if user == nil {
		h.Error(w, http.StatusUnauthorized, "authentication required")
		return
	}

	conversationID := chi.URLParam(r, "conversationId")
	if conversationID == "" {
		h.Error(w, http.StatusBadRequest, "missing conversationId")
		return
	}

	envelopes, err := h.db.ListEnvelopes(r.Context(), conversationID)
	if err != nil {
		h.Error(w, http.StatusInternalServerError, "failed to fetch messages")
		return
	}
	if envelopes == nil {
		envelopes = []models.Envelope{}
	}

	h.JSON(w, http.StatusOK, MessageListResponse{Success: true, Envelopes: envelopes})
}

// DeleteConversation removes a whole conversation's envelopes. Individual
// envelopes are immutable; deletion only happens at conversation
// granularity when a match ends.
func (h *Handler) DeleteConversation(w http.ResponseWriter, r *http.Request) {
	user := middleware.GetUserFromContext(r.Context())
	if user == nil {
		h.Error(w, http.StatusUnauthorized, "authentication required")
		return
	}

	conversationID := chi.URLParam(r, "conversationId")
	if conversationID == "" {
		h.Error(w, http.StatusBadRequest, "missing conversationId")
		return
	}

	if err := h.db.DeleteConversation(r.Context(), conversationID); err != nil {
		h.Error(w, http.StatusInternalServerError, "failed to delete conversation")
		return
	}

	h.JSON(w, http.StatusOK, map[string]bool{"success": true})
}
