package websocket

import (
	"context"
	"encoding/json"
	"log"
	"strings"

	"github.com/google/uuid"
	"github.com/microcosm-cc/bluemonday"

	"github.com/chatline/chatline/internal/apperr"
	"github.com/chatline/chatline/internal/model"
)

type sanitizer interface {
	Sanitize(s string) string
	SanitizeBytes(p []byte) []byte
}

// MessageStore is the slice of the persistence engine the hub drives:
// creating messages (with the delivered transition decided by
// connection state) and recomputing a viewer's roster counts.
type MessageStore interface {
	Create(ctx context.Context, sender, recipient uuid.UUID, content string, recipientOnline bool) (model.ChatMessage, error)
	Roster(ctx context.Context, viewer uuid.UUID) ([]model.RosterEntry, error)
}

type Registration struct {
	Client *Client
	Done   chan struct{}
}

// Submission is a message submit from a connected client. The sender
// is always the identity bound to the submitting connection.
type Submission struct {
	From      *Client
	Recipient uuid.UUID
	Content   string
}

// push is a marshaled event ready for fan-out: to every connection
// of an identity, or to a single connection when client is set.
type push struct {
	identity uuid.UUID
	client   *Client
	payload  []byte
}

// Hub owns the registry of live connections and bridges them to the
// message store. All registry access happens on the Run goroutine.
type Hub struct {
	store      MessageStore
	sanitizer  sanitizer
	clients    map[uuid.UUID]map[*Client]struct{}
	Register   chan Registration
	Unregister chan *Client
	Submit     chan Submission
	notify     chan []uuid.UUID
	pushes     chan push
}

// NewHub returns a new instance of Hub.
func NewHub(store MessageStore) *Hub {
	return &Hub{
		store:      store,
		sanitizer:  bluemonday.StrictPolicy(),
		clients:    make(map[uuid.UUID]map[*Client]struct{}),
		Register:   make(chan Registration),
		Unregister: make(chan *Client),
		Submit:     make(chan Submission, 1024),
		notify:     make(chan []uuid.UUID, 64),
		pushes:     make(chan push, 1024),
	}
}

// Run manages incoming and outgoing hub traffic until ctx is done.
func (h *Hub) Run(ctx context.Context) {
	for {
		select {
		case reg := <-h.Register:
			client := reg.Client
			set := h.clients[client.UserID]
			if set == nil {
				set = make(map[*Client]struct{})
				h.clients[client.UserID] = set
			}
			set[client] = struct{}{}
			client.Hub = h
			close(reg.Done)

		case client := <-h.Unregister:
			set := h.clients[client.UserID]
			if _, ok := set[client]; ok {
				delete(set, client)
				if len(set) == 0 {
					delete(h.clients, client.UserID)
				}
				close(client.MessageCh)
			}

		case sub := <-h.Submit:
			// We need to sanitize incoming messages to prevent XSS.
			content := strings.TrimSpace(h.sanitizer.Sanitize(sub.Content))
			if content == "" {
				err := &apperr.ValidationError{Field: "content", Reason: "must not be empty"}
				h.deliver(push{client: sub.From, payload: errorEvent(err)})
				continue
			}
			if sub.Recipient == uuid.Nil {
				err := &apperr.ValidationError{Field: "recipient", Reason: "missing user id"}
				h.deliver(push{client: sub.From, payload: errorEvent(err)})
				continue
			}

			// Whether the recipient counts as online is decided here,
			// on the goroutine that owns the registry. The store then
			// records sent vs delivered atomically with the insert.
			online := len(h.clients[sub.Recipient]) > 0
			go h.persist(ctx, sub.From, sub.Recipient, content, online)

		case ids := <-h.notify:
			go h.refreshRosters(ctx, ids)

		case p := <-h.pushes:
			h.deliver(p)

		case <-ctx.Done():
			log.Printf("context cancelled: %v", ctx.Err())
			return
		}
	}
}

// persist stores the message and, on success, queues the fan-out:
// the persisted message to sender and recipient connections, then a
// roster refresh for both. Runs off the hub goroutine so a slow
// store never stalls other connections.
func (h *Hub) persist(ctx context.Context, from *Client, recipient uuid.UUID, content string, online bool) {
	msg, err := h.store.Create(ctx, from.UserID, recipient, content, online)
	if err != nil {
		log.Printf("failed to store message from %s: %v", from.UserID, err)
		h.queue(push{client: from, payload: errorEvent(err)})
		return
	}

	payload, err := json.Marshal(msg)
	if err != nil {
		log.Printf("failed to encode message %d: %v", msg.ID, err)
		return
	}

	h.queue(push{identity: msg.SenderID, payload: payload})
	if msg.RecipientID != msg.SenderID {
		h.queue(push{identity: msg.RecipientID, payload: payload})
	}

	h.refreshRosters(ctx, []uuid.UUID{msg.SenderID, msg.RecipientID})
}

// refreshRosters recomputes the roster for each identity and pushes
// an updateUnreadCount event to that identity's connections only.
func (h *Hub) refreshRosters(ctx context.Context, ids []uuid.UUID) {
	seen := make(map[uuid.UUID]struct{}, len(ids))
	for _, id := range ids {
		if _, dup := seen[id]; dup || id == uuid.Nil {
			continue
		}
		seen[id] = struct{}{}

		entries, err := h.store.Roster(ctx, id)
		if err != nil {
			log.Printf("failed to compute roster for %s: %v", id, err)
			continue
		}

		payload, err := json.Marshal(model.UnreadCountEvent{
			Type: model.EventUnreadCount,
			Data: entries,
		})
		if err != nil {
			log.Printf("failed to encode roster event: %v", err)
			continue
		}

		h.queue(push{identity: id, payload: payload})
	}
}

// NotifyRosterChanged asks the hub to push fresh roster counts to
// the given identities. Used after a conversation open marks
// messages read over HTTP. Never blocks the caller.
func (h *Hub) NotifyRosterChanged(ids ...uuid.UUID) {
	select {
	case h.notify <- ids:
	default:
		log.Println("dropping roster refresh - hub busy")
	}
}

// queue hands a push to the hub goroutine, which alone may touch the
// registry and client channels.
func (h *Hub) queue(p push) {
	select {
	case h.pushes <- p:
	default:
		log.Println("dropping push - hub busy")
	}
}

// deliver fans a push out to its target connections. A full client
// channel drops the event for that connection only; one slow client
// never blocks the rest.
func (h *Hub) deliver(p push) {
	if p.client != nil {
		if _, ok := h.clients[p.client.UserID][p.client]; ok {
			p.client.trySend(p.payload)
		}
		return
	}
	for client := range h.clients[p.identity] {
		client.trySend(p.payload)
	}
}

func errorEvent(err error) []byte {
	payload, mErr := json.Marshal(model.ErrorEvent{
		Type:  model.EventError,
		Error: err.Error(),
	})
	if mErr != nil {
		return []byte(`{"type":"error","error":"internal error"}`)
	}
	return payload
}
