package channel

import (
	"context"
	"errors"

	"github.com/rs/zerolog"

	"github.com/Ashifo7/StudyBuddy/internal/metrics"
	"github.com/Ashifo7/StudyBuddy/internal/models"
	"github.com/Ashifo7/StudyBuddy/internal/store"
)

// Reject reasons surfaced on envelope-reject frames.
const (
	RejectValidation = "validation"
	RejectStorage    = "storage"
)

// Hub routes envelopes between connected clients and hands them to the
// conversation store. Crypto and validation failures are isolated per
// operation and surfaced to the initiating connection only; the hub
// itself never enters an error state.
type Hub struct {
	db       store.DataStore
	presence *PresenceTable
	logger   zerolog.Logger
}

// NewHub creates a hub using the given conversation store and presence
// table.
func NewHub(db store.DataStore, presence *PresenceTable, logger zerolog.Logger) *Hub {
	return &Hub{
		db:       db,
		presence: presence,
		logger:   logger.With().Str("component", "channel").Logger(),
	}
}

// Presence exposes the hub's presence table.
func (h *Hub) Presence() *PresenceTable {
	return h.presence
}

// Announce binds a user to a session and broadcasts that they are online.
func (h *Hub) Announce(userID string, s Session) {
	h.presence.Bind(userID, s)
	metrics.UsersOnline.Set(float64(h.presence.Count()))
	h.logger.Debug().Str("user_id", userID).Msg("user online")
	h.broadcastStatus(userID, "online")
}

// Disconnect removes a session's presence entry, if any, and broadcasts
// that the owning user went offline.
func (h *Hub) Disconnect(s Session) {
	userID := h.presence.Unbind(s)
	if userID == "" {
		return
	}
	metrics.UsersOnline.Set(float64(h.presence.Count()))
	h.logger.Debug().Str("user_id", userID).Msg("user offline")
	h.broadcastStatus(userID, "offline")
}

// Send handles one envelope-send from the given session. The envelope is
// validated, appended to the conversation store, echoed back to the
// sender as a delivery confirmation, and forwarded to the receiver if
// they are online. Offline receivers get nothing: the stored copy is
// picked up by their next history fetch.
func (h *Hub) Send(ctx context.Context, env *models.Envelope, sender Session) {
	if err := env.Validate(); err != nil {
		metrics.EnvelopesRejected.WithLabelValues(RejectValidation).Inc()
		h.logger.Warn().Err(err).Str("conversation_id", env.ConversationID).Msg("envelope rejected")
		sender.Deliver(NewEvent(EventEnvelopeReject, RejectPayload{Reason: RejectValidation}))
		return
	}

	if err := h.db.AppendEnvelope(ctx, env); err != nil {
		// Atomicity failures from the store count as validation too
		reason := RejectStorage
		if errors.Is(err, models.ErrIncompleteEnvelope) {
			reason = RejectValidation
		}
		metrics.EnvelopesRejected.WithLabelValues(reason).Inc()
		h.logger.Error().Err(err).Str("conversation_id", env.ConversationID).Msg("envelope append failed")
		sender.Deliver(NewEvent(EventEnvelopeReject, RejectPayload{Reason: reason}))
		return
	}
	metrics.EnvelopesStored.WithLabelValues("channel").Inc()

	deliver := NewEvent(EventEnvelopeDeliver, env)

	// Echo the persisted envelope (now carrying id and timestamp) back to
	// the sender as the send confirmation.
	sender.Deliver(deliver)

	// Forward to the receiver iff online. A receiver that disconnects
	// mid-send just misses the frame; the store already has the durable
	// copy.
	if receiver := h.presence.Lookup(env.ReceiverID); receiver != nil {
		receiver.Deliver(deliver)
		metrics.EnvelopesDelivered.Inc()
	}
}

// broadcastStatus tells every connected client about a presence change.
func (h *Hub) broadcastStatus(userID, status string) {
	ev := NewEvent(EventUserStatus, StatusPayload{UserID: userID, Status: status})
	h.presence.each(func(_ string, s Session) {
		s.Deliver(ev)
	})
}
