package studybuddy

import (
	"context"
	"encoding/json"
	"fmt"
	"net/url"
	"strings"
	"sync"

	"github.com/gorilla/websocket"

	"github.com/Ashifo7/StudyBuddy/internal/channel"
	"github.com/Ashifo7/StudyBuddy/internal/models"
)

// SocketHandlers holds the callbacks for server-pushed frames. Nil
// callbacks drop their frames.
type SocketHandlers struct {
	OnDeliver func(env *models.Envelope)
	OnReject  func(reason string)
	OnStatus  func(userID, status string)
}

// Socket is a live connection to the message channel.
type Socket struct {
	ws       *websocket.Conn
	handlers SocketHandlers

	writeMu sync.Mutex
	done    chan struct{}
	closeMu sync.Once
}

// Dial opens the channel connection and announces presence. The bearer
// token rides the handshake query string since browser websocket clients
// cannot set headers.
func (c *Client) Dial(ctx context.Context, handlers SocketHandlers) (*Socket, error) {
	if c.Token == "" || c.UserID == "" {
		return nil, fmt.Errorf("not registered: no credentials loaded")
	}

	u, err := url.Parse(c.BaseURL)
	if err != nil {
		return nil, err
	}
	switch u.Scheme {
	case "https":
		u.Scheme = "wss"
	default:
		u.Scheme = "ws"
	}
	u.Path = strings.TrimSuffix(u.Path, "/") + "/ws"
	u.RawQuery = "token=" + url.QueryEscape(c.Token)

	ws, _, err := websocket.DefaultDialer.DialContext(ctx, u.String(), nil)
	if err != nil {
		return nil, fmt.Errorf("channel dial failed: %w", err)
	}

	s := &Socket{
		ws:       ws,
		handlers: handlers,
		done:     make(chan struct{}),
	}

	if err := s.write(channel.NewEvent(channel.EventPresenceAnnounce, channel.AnnouncePayload{UserID: c.UserID})); err != nil {
		ws.Close()
		return nil, err
	}

	go s.readLoop()
	return s, nil
}

// SendEnvelope pushes one envelope onto the channel. Delivery and
// rejection come back asynchronously through the handlers.
func (s *Socket) SendEnvelope(env *models.Envelope) error {
	return s.write(channel.NewEvent(channel.EventEnvelopeSend, env))
}

// Close tears down the connection.
func (s *Socket) Close() error {
	s.closeMu.Do(func() { close(s.done) })
	return s.ws.Close()
}

// Done is closed when the read loop exits, whether by Close or by the
// server dropping the connection.
func (s *Socket) Done() <-chan struct{} {
	return s.done
}

func (s *Socket) write(ev channel.Event) error {
	s.writeMu.Lock()
	defer s.writeMu.Unlock()
	return s.ws.WriteJSON(ev)
}

func (s *Socket) readLoop() {
	defer s.closeMu.Do(func() { close(s.done) })

	for {
		var ev channel.Event
		if err := s.ws.ReadJSON(&ev); err != nil {
			return
		}

		switch ev.Name {
		case channel.EventEnvelopeDeliver:
			if s.handlers.OnDeliver == nil {
				continue
			}
			var env models.Envelope
			if err := json.Unmarshal(ev.Data, &env); err != nil {
				continue
			}
			s.handlers.OnDeliver(&env)

		case channel.EventEnvelopeReject:
			if s.handlers.OnReject == nil {
				continue
			}
			var payload channel.RejectPayload
			if err := json.Unmarshal(ev.Data, &payload); err != nil {
				continue
			}
			s.handlers.OnReject(payload.Reason)

		case channel.EventUserStatus:
			if s.handlers.OnStatus == nil {
				continue
			}
			var payload channel.StatusPayload
			if err := json.Unmarshal(ev.Data, &payload); err != nil {
				continue
			}
			s.handlers.OnStatus(payload.UserID, payload.Status)
		}
	}
}
