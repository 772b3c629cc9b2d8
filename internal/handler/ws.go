package handler

import (
	"context"
	"log"
	"net/http"
	"time"

	"github.com/coder/websocket"
	"github.com/google/uuid"

	"github.com/chatline/chatline/internal/auth"
	"github.com/chatline/chatline/internal/model"
	ws "github.com/chatline/chatline/internal/websocket"
)

// UserGetter resolves an authenticated id to its user record.
type UserGetter interface {
	GetUser(ctx context.Context, userID uuid.UUID) (model.User, error)
}

// ServeWs handles the client's websocket connection upgrade. The
// connection is bound to the authenticated identity before it may
// submit or receive anything; client-supplied sender ids are never
// trusted.
func ServeWs(h *ws.Hub, db UserGetter) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()

		userID, err := auth.GetUserFromContext(ctx)
		if err != nil {
			http.Error(w, "Unauthorized.", http.StatusUnauthorized)
			return
		}

		user, err := db.GetUser(ctx, userID)
		if err != nil {
			writeError(w, err)
			return
		}

		conn, err := websocket.Accept(w, r, &websocket.AcceptOptions{
			InsecureSkipVerify: true,
		})
		if err != nil {
			log.Printf("failed to upgrade connection: %v", err)
			return
		}

		log.Printf("upgraded connection for user %s", user.Username)

		// We'll register our new client to the central hub.
		c := ws.NewClient(conn, user.UserID, user.Username)
		c.SetMessageLimiter(30, time.Minute)
		reg := ws.Registration{
			Client: c,
			Done:   make(chan struct{}),
		}

		h.Register <- reg

		// Wait for registration to complete
		<-reg.Done

		// We block on c.ReadMessage() because the request context is
		// canceled as soon as we return from the handler.
		go c.WriteMessage(ctx)
		c.ReadMessage(ctx)
	}
}
