package model

import (
	"time"

	"github.com/google/uuid"
)

// ChatMessage is a persisted message as it travels over the wire,
// used for both HTTP history responses and websocket broadcasts.
type ChatMessage struct {
	ID          int64     `json:"id"`
	Content     string    `json:"content"`
	SenderID    uuid.UUID `json:"sender"`
	RecipientID uuid.UUID `json:"recipient"`
	Status      Status    `json:"status"`
	CreatedAt   time.Time `json:"createdAt"`
}

// Inbound is the payload a client sends over the websocket to submit
// a new message. The sender field is informational only; the server
// trusts the identity bound to the connection, never the payload.
type Inbound struct {
	Sender    uuid.UUID `json:"sender"`
	Recipient uuid.UUID `json:"recipient"`
	Content   string    `json:"content"`
}
