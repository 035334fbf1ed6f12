package realtime

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"

	"github.com/gorilla/websocket"
	"github.com/pingit/chat-relay/internal/models"
	"github.com/sirupsen/logrus"
)

// MessageFetcher re-derives the enriched shape of a persisted message. The
// gateway uses it to verify client-reported broadcasts before emitting them.
type MessageFetcher interface {
	GetMessage(ctx context.Context, messageID string) (*models.RichMessage, error)
}

type inbound struct {
	sub Subscriber
	evt InboundEvent
}

// Hub is the relay gateway's event loop. All registry mutations and room
// emissions happen on the single goroutine running Run, so handlers execute
// to completion without locking. Store calls never run on the loop; the
// connection goroutines resolve them first and post the result.
type Hub struct {
	log      *logrus.Logger
	registry *Registry
	fetcher  MessageFetcher
	upgrader websocket.Upgrader

	register   chan Subscriber
	unregister chan Subscriber
	events     chan inbound
	deliver    chan *models.RichMessage
}

func NewHub(log *logrus.Logger, fetcher MessageFetcher, allowedOrigins []string) *Hub {
	return &Hub{
		log:      log,
		registry: NewRegistry(),
		fetcher:  fetcher,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin:     checkOrigin(allowedOrigins),
		},
		register:   make(chan Subscriber),
		unregister: make(chan Subscriber),
		events:     make(chan inbound),
		deliver:    make(chan *models.RichMessage),
	}
}

// Requests without an Origin header are non-browser clients and pass.
func checkOrigin(allowed []string) func(r *http.Request) bool {
	return func(r *http.Request) bool {
		origin := r.Header.Get("Origin")
		if origin == "" {
			return true
		}
		for _, o := range allowed {
			if strings.EqualFold(o, origin) {
				return true
			}
		}
		return false
	}
}

func (h *Hub) Run(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		case s := <-h.register:
			h.registry.Register(s)
		case s := <-h.unregister:
			h.drop(s)
		case in := <-h.events:
			h.handleEvent(in.sub, in.evt)
		case message := <-h.deliver:
			h.fanOut(message)
		}
	}
}

// Deliver implements the usecase delivery contract: every persisted message
// is posted here for fan-out.
func (h *Hub) Deliver(message *models.RichMessage) {
	h.deliver <- message
}

// verifyNewMessage resolves a client-reported broadcast to its persisted
// record. The stored copy is what gets fanned out; a payload whose chat
// disagrees with the record is rejected, as is a message id the store does
// not know.
func (h *Hub) verifyNewMessage(ctx context.Context, raw json.RawMessage) (*models.RichMessage, error) {
	payload, err := decodeNewMessage(raw)
	if err != nil {
		return nil, err
	}

	message, err := h.fetcher.GetMessage(ctx, payload.MessageID)
	if err != nil {
		return nil, err
	}

	if payload.Chat.ChatID != "" && payload.Chat.ChatID != message.ChatID {
		return nil, fmt.Errorf("%w: reported chat does not match the stored message", ErrMalformedEvent)
	}

	return message, nil
}

func (h *Hub) handleEvent(s Subscriber, evt InboundEvent) {
	switch evt.Event {
	case EventSetup:
		payload, err := decodeSetup(evt.Payload)
		if err != nil {
			h.log.WithError(err).Warning("dropping malformed setup event")
			return
		}
		if !h.registry.Identify(s, payload.UserID) {
			return
		}
		if !s.Send(OutgoingEvent{Event: EventConnected}) {
			h.drop(s)
		}
	case EventJoinChat:
		room, err := decodeRoom(evt.Payload)
		if err != nil {
			h.log.WithError(err).Warning("dropping malformed join chat event")
			return
		}
		h.registry.JoinRoom(s, ChatChannel(room))
	case EventTyping, EventStopTyping:
		room, err := decodeRoom(evt.Payload)
		if err != nil {
			h.log.WithError(err).WithField("event", evt.Event).Warning("dropping malformed typing event")
			return
		}
		// Typing indicators go to the chat-scoped room. Every subscriber
		// receives them, the emitting user's connections included.
		h.broadcastRoom(ChatChannel(room), OutgoingEvent{Event: evt.Event, Payload: room})
	default:
		h.log.WithField("event", evt.Event).Debug("ignoring unknown event")
	}
}

// fanOut emits the message into the personal inbox room of every chat
// member except the sender. Emission order across members is unspecified.
// A member who never identified a connection silently receives nothing.
func (h *Hub) fanOut(message *models.RichMessage) {
	if len(message.Chat.Users) == 0 {
		h.log.
			WithField("message_id", message.MessageID).
			Warning("message chat has no members, skipping fan-out")
		return
	}

	evt := OutgoingEvent{Event: EventMessageReceived, Payload: message}
	for _, member := range message.Chat.Users {
		if member.UserID == message.Sender.UserID {
			continue
		}
		h.broadcastRoom(UserInbox(member.UserID), evt)
	}
}

func (h *Hub) broadcastRoom(key RoomKey, evt OutgoingEvent) {
	var backlogged []Subscriber
	h.registry.ForEachInRoom(key, func(s Subscriber) {
		if !s.Send(evt) {
			backlogged = append(backlogged, s)
		}
	})
	for _, s := range backlogged {
		h.log.Warning("dropping connection that can't keep up")
		h.drop(s)
	}
}

func (h *Hub) drop(s Subscriber) {
	h.registry.Unregister(s)
	s.Close()
}
