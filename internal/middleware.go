package internal

import (
	"context"
	"net/http"

	"github.com/chatline/chatline/internal/auth"
)

// Middleware validates the client's JWT and binds the authenticated
// user id to the request context. Everything behind it can trust
// that id without re-validating credentials.
func Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		jwtCookie, err := r.Cookie("jwt")
		if err != nil {
			http.Error(w, "Unauthorized.", http.StatusUnauthorized)
			return
		}

		userID, err := auth.ValidateJWT(jwtCookie.Value, auth.SessionSecret())
		if err != nil {
			http.Error(w, "Unauthorized.", http.StatusUnauthorized)
			return
		}

		r = r.WithContext(context.WithValue(r.Context(), auth.UserIDKey, userID))
		next.ServeHTTP(w, r)
	})
}
