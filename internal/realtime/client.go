package realtime

import (
	"context"
	"encoding/json"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/sirupsen/logrus"
)

const (
	// Time allowed to write a message to the peer.
	writeWait = 10 * time.Second

	// Time allowed to read the next pong message from the peer. Peers that
	// stop responding within this window are disconnected.
	pongWait = 60 * time.Second

	// Send pings to peer with this period. Must be less than pongWait.
	pingPeriod = (pongWait * 9) / 10

	// Maximum frame size allowed from peer. Rich message payloads carry a
	// full member list, so this is roomier than a bare chat line.
	maxMessageSize = 64 * 1024

	sendBufferSize = 256

	// Deadline for re-fetching a client-reported message from the store.
	fetchTimeout = 5 * time.Second
)

type client struct {
	hub  *Hub
	conn *websocket.Conn
	log  *logrus.Entry

	send      chan []byte
	closeOnce sync.Once
}

// ServeWS upgrades the request and hands the connection to the hub.
func (h *Hub) ServeWS(w http.ResponseWriter, r *http.Request) {
	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.log.WithError(err).Warning("websocket upgrade failed")
		return
	}

	c := &client{
		hub:  h,
		conn: conn,
		log:  h.log.WithField("remote_addr", conn.RemoteAddr().String()),
		send: make(chan []byte, sendBufferSize),
	}
	h.register <- c

	go c.writePump()
	go c.readPump()
}

// Send enqueues the event without blocking. A false return means the peer's
// buffer is full; the hub treats that as a dead connection.
func (c *client) Send(event OutgoingEvent) bool {
	data, err := json.Marshal(event)
	if err != nil {
		c.log.WithError(err).Error("can't marshal outgoing event")
		return true
	}
	select {
	case c.send <- data:
		return true
	default:
		return false
	}
}

func (c *client) Close() {
	c.closeOnce.Do(func() {
		close(c.send)
	})
}

func (c *client) readPump() {
	defer func() {
		c.hub.unregister <- c
		c.conn.Close()
	}()
	c.conn.SetReadLimit(maxMessageSize)
	_ = c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		return c.conn.SetReadDeadline(time.Now().Add(pongWait))
	})

	for {
		_, data, err := c.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				c.log.WithError(err).Warning("connection closed unexpectedly")
			}
			break
		}

		var evt InboundEvent
		if err := json.Unmarshal(data, &evt); err != nil {
			c.log.WithError(err).Warning("dropping undecodable frame")
			continue
		}

		// New message events need a store round-trip, which must not stall
		// the hub loop. Resolve it here, then post the verified record.
		if evt.Event == EventNewMessage {
			c.relayNewMessage(evt.Payload)
			continue
		}

		c.hub.events <- inbound{sub: c, evt: evt}
	}
}

// relayNewMessage re-fetches the persisted record by id and fans out the
// stored copy instead of trusting the payload reported by the client. An
// unverifiable broadcast is dropped with a diagnostic; it never surfaces to
// any peer and never affects the connection.
func (c *client) relayNewMessage(raw json.RawMessage) {
	ctx, cancel := context.WithTimeout(context.Background(), fetchTimeout)
	defer cancel()

	message, err := c.hub.verifyNewMessage(ctx, raw)
	if err != nil {
		c.log.WithError(err).Warning("dropping unverifiable message broadcast")
		return
	}

	c.hub.Deliver(message)
}

func (c *client) writePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		c.conn.Close()
	}()
	for {
		select {
		case data, ok := <-c.send:
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				// The hub closed the connection.
				_ = c.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := c.conn.WriteMessage(websocket.TextMessage, data); err != nil {
				return
			}
		case <-ticker.C:
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}
