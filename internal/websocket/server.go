package websocket

import (
	"context"
	"encoding/json"
	"log"

	"github.com/coder/websocket"

	"github.com/chatline/chatline/internal/apperr"
	"github.com/chatline/chatline/internal/model"
)

// ReadMessage reads incoming submissions from the websocket stream
// and hands them to the hub. It returns when the connection drops or
// ctx is cancelled, deregistering the client on the way out.
func (c *Client) ReadMessage(ctx context.Context) {
	defer func() {
		c.Hub.Unregister <- c
		c.conn.CloseNow()
	}()

	for {
		msgType, p, err := c.conn.Read(ctx)
		if err != nil {
			status := websocket.CloseStatus(err)
			if status != websocket.StatusNormalClosure &&
				status != websocket.StatusGoingAway &&
				status != -1 {
				log.Printf("%v", err)
			}
			return
		}

		// The app only supports text frames.
		if msgType != websocket.MessageText {
			continue
		}

		var payload model.Inbound
		if err := json.Unmarshal(p, &payload); err != nil {
			log.Printf("failed to process payload from client: %v", err)
			continue
		}

		if c.messageLim != nil && !c.messageLim.Allow() {
			err := &apperr.ValidationError{Field: "rate", Reason: "too many messages, slow down"}
			c.trySend(errorEvent(err))
			continue
		}

		// The sender field of the payload is ignored; the identity
		// bound at connection time is authoritative.
		c.Hub.Submit <- Submission{
			From:      c,
			Recipient: payload.Recipient,
			Content:   payload.Content,
		}
	}
}
