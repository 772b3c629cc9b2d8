package handler

import (
	"context"
	"net/http"

	"github.com/google/uuid"

	"github.com/chatline/chatline/internal/auth"
	"github.com/chatline/chatline/internal/model"
)

// RosterReader computes a viewer's peer list with unread counts.
type RosterReader interface {
	Roster(ctx context.Context, viewer uuid.UUID) ([]model.RosterEntry, error)
}

// ServePeople handles GET /people: every known user except the
// caller, each with the caller's unread count for them.
func ServePeople(store RosterReader) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()

		viewer, err := auth.GetUserFromContext(ctx)
		if err != nil {
			http.Error(w, "Unauthorized.", http.StatusUnauthorized)
			return
		}

		entries, err := store.Roster(ctx, viewer)
		if err != nil {
			writeError(w, err)
			return
		}

		writeJSON(w, http.StatusOK, entries)
	}
}
