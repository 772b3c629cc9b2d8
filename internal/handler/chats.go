package handler

import (
	"context"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/chatline/chatline/internal/apperr"
	"github.com/chatline/chatline/internal/auth"
	"github.com/chatline/chatline/internal/model"
)

// ConversationOpener serves a two-party history and marks the peer's
// delivered messages read in the same transaction.
type ConversationOpener interface {
	OpenConversation(ctx context.Context, viewer, peer uuid.UUID) ([]model.ChatMessage, error)
}

// RosterNotifier pushes fresh unread counts to live connections.
type RosterNotifier interface {
	NotifyRosterChanged(ids ...uuid.UUID)
}

// ServeChats handles GET /chats/{viewer}/{peer}: the viewer opens
// the peer's thread, which marks every delivered message from the
// peer as read. The viewer path segment must match the
// authenticated identity.
func ServeChats(store ConversationOpener, hub RosterNotifier) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()

		caller, err := auth.GetUserFromContext(ctx)
		if err != nil {
			http.Error(w, "Unauthorized.", http.StatusUnauthorized)
			return
		}

		viewer, err := uuid.Parse(chi.URLParam(r, "viewer"))
		if err != nil {
			writeError(w, &apperr.ValidationError{Field: "viewer", Reason: "malformed user id"})
			return
		}
		peer, err := uuid.Parse(chi.URLParam(r, "peer"))
		if err != nil {
			writeError(w, &apperr.ValidationError{Field: "peer", Reason: "malformed user id"})
			return
		}

		if viewer != caller {
			http.Error(w, "Forbidden.", http.StatusForbidden)
			return
		}

		messages, err := store.OpenConversation(ctx, viewer, peer)
		if err != nil {
			writeError(w, err)
			return
		}

		writeJSON(w, http.StatusOK, messages)

		// Live clients of both parties get refreshed counts; the
		// peer's sent-items view may change too.
		hub.NotifyRosterChanged(viewer, peer)
	}
}
