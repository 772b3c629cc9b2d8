package websocket

import (
	"context"
	"log"
	"log/slog"
	"time"

	"github.com/coder/websocket"
	"github.com/google/uuid"
	"golang.org/x/time/rate"
)

// Client is one live websocket connection bound to an authenticated
// identity. An identity may hold several clients at once.
type Client struct {
	UserID     uuid.UUID
	Username   string
	conn       *websocket.Conn
	Hub        *Hub
	MessageCh  chan []byte
	messageLim *rate.Limiter
}

func NewClient(conn *websocket.Conn, userID uuid.UUID, username string) *Client {
	return &Client{
		conn:      conn,
		MessageCh: make(chan []byte, 64),
		UserID:    userID,
		Username:  username,
	}
}

func (c *Client) SetMessageLimiter(requests int, window time.Duration) {
	l := rate.NewLimiter(rate.Every(window/time.Duration(requests)), requests)
	c.messageLim = l
}

// trySend queues a payload for the write pump without ever blocking
// the hub. Only the hub goroutine calls this for registered clients,
// so it cannot race the channel close on unregister.
func (c *Client) trySend(payload []byte) {
	select {
	case c.MessageCh <- payload:
	default:
		log.Printf("skipping event for [%s] - channel full or client slow", c.Username)
	}
}

// WriteMessage pumps hub events out to the websocket stream.
func (c *Client) WriteMessage(ctx context.Context) {
	for {
		select {
		case payload, ok := <-c.MessageCh:
			// We don't want to continue processing when the channel
			// has already been closed.
			if !ok {
				c.conn.Close(websocket.StatusNormalClosure, "channel closed")
				return
			}

			writeCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
			err := c.conn.Write(writeCtx, websocket.MessageText, payload)
			cancel()
			if err != nil {
				slog.WarnContext(ctx, "failed to write to connection",
					"error", err,
					"user_id", c.UserID.String(),
					"username", c.Username)
				c.conn.CloseNow()
				return
			}

		case <-ctx.Done():
			c.conn.Close(websocket.StatusGoingAway, "context cancelled")
			return
		}
	}
}
