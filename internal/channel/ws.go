package channel

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"

	"github.com/Ashifo7/StudyBuddy/internal/metrics"
	"github.com/Ashifo7/StudyBuddy/internal/models"
)

const (
	writeWait      = 10 * time.Second
	pongWait       = 60 * time.Second
	pingPeriod     = (pongWait * 9) / 10
	maxFrameSize   = 64 * 1024
	sendQueueDepth = 32
)

// conn is one websocket connection bound to an authenticated user. It
// implements Session. Frames are dispatched through a handler table built
// once at accept time; handlers are never re-registered per event.
type conn struct {
	hub      *Hub
	ws       *websocket.Conn
	userID   string
	send     chan Event
	done     chan struct{}
	handlers map[string]func(data json.RawMessage)
	logger   zerolog.Logger
}

// Deliver enqueues an event for the client. It never blocks: if the
// connection is gone or its queue is full the frame is dropped, since the
// durable copy of any envelope already lives in the store.
func (c *conn) Deliver(ev Event) {
	select {
	case <-c.done:
	case c.send <- ev:
	default:
	}
}

// dispatch routes one inbound frame through the handler table.
func (c *conn) dispatch(ev Event) {
	handler, ok := c.handlers[ev.Name]
	if !ok {
		c.logger.Warn().Str("event", ev.Name).Msg("unknown event")
		return
	}
	handler(ev.Data)
}

// readPump consumes frames until the connection drops, then cleans up the
// presence entry.
func (c *conn) readPump() {
	defer func() {
		c.hub.Disconnect(c)
		close(c.done)
		c.ws.Close()
		metrics.ConnectionsOpen.Dec()
	}()

	c.ws.SetReadLimit(maxFrameSize)
	c.ws.SetReadDeadline(time.Now().Add(pongWait))
	c.ws.SetPongHandler(func(string) error {
		c.ws.SetReadDeadline(time.Now().Add(pongWait))
		return nil
	})

	for {
		var ev Event
		if err := c.ws.ReadJSON(&ev); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				c.logger.Debug().Err(err).Msg("connection closed unexpectedly")
			}
			return
		}
		c.dispatch(ev)
	}
}

// writePump drains the send queue onto the socket and keeps the
// connection alive with pings.
func (c *conn) writePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		c.ws.Close()
	}()

	for {
		select {
		case <-c.done:
			c.ws.WriteControl(websocket.CloseMessage, []byte{}, time.Now().Add(writeWait))
			return
		case ev := <-c.send:
			c.ws.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.ws.WriteJSON(ev); err != nil {
				return
			}
		case <-ticker.C:
			c.ws.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.ws.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

// handleAnnounce binds the connection in the presence table. The announced
// id must match the authenticated user; anything else is rejected.
func (c *conn) handleAnnounce(data json.RawMessage) {
	var payload AnnouncePayload
	if err := json.Unmarshal(data, &payload); err != nil || payload.UserID != c.userID {
		c.Deliver(NewEvent(EventEnvelopeReject, RejectPayload{Reason: RejectValidation}))
		return
	}
	c.hub.Announce(c.userID, c)
}

// handleSend parses an envelope-send frame and hands it to the hub.
func (c *conn) handleSend(data json.RawMessage) {
	var env models.Envelope
	if err := json.Unmarshal(data, &env); err != nil {
		metrics.EnvelopesRejected.WithLabelValues(RejectValidation).Inc()
		c.Deliver(NewEvent(EventEnvelopeReject, RejectPayload{Reason: RejectValidation}))
		return
	}
	// Stamp the sender from the authenticated identity if the client left
	// it out.
	if env.SenderID == "" {
		env.SenderID = c.userID
	}
	c.hub.Send(context.Background(), &env, c)
}

// ServeWS upgrades an authenticated HTTP request to a channel connection.
// userID is the identity established by the auth middleware.
func ServeWS(hub *Hub, logger zerolog.Logger, clientOrigin string) func(w http.ResponseWriter, r *http.Request, userID string) {
	upgrader := websocket.Upgrader{
		ReadBufferSize:  4096,
		WriteBufferSize: 4096,
		CheckOrigin: func(r *http.Request) bool {
			origin := r.Header.Get("Origin")
			return origin == "" || origin == clientOrigin
		},
	}

	return func(w http.ResponseWriter, r *http.Request, userID string) {
		ws, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			logger.Warn().Err(err).Msg("websocket upgrade failed")
			return
		}

		c := &conn{
			hub:    hub,
			ws:     ws,
			userID: userID,
			send:   make(chan Event, sendQueueDepth),
			done:   make(chan struct{}),
			logger: logger.With().Str("user_id", userID).Logger(),
		}
		// Dispatch table is fixed for the connection's lifetime.
		c.handlers = map[string]func(json.RawMessage){
			EventPresenceAnnounce: c.handleAnnounce,
			EventEnvelopeSend:     c.handleSend,
		}

		metrics.ConnectionsOpen.Inc()
		go c.writePump()
		go c.readPump()
	}
}
