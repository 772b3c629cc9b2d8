package handler

import (
	"context"
	"encoding/json"
	"errors"
	"log"
	"log/slog"
	"net/http"
	"time"

	"github.com/chatline/chatline/internal/apperr"
	"github.com/chatline/chatline/internal/auth"
	"github.com/chatline/chatline/internal/model"
)

const sessionTTL = 30 * 24 * time.Hour

// Accounts is the slice of the store the auth handlers need.
type Accounts interface {
	CreateUser(ctx context.Context, username, email, hashedPassword string) (model.User, error)
	Credentials(ctx context.Context, email string) (model.User, string, error)
}

type signupRequest struct {
	Username string `json:"username"`
	Email    string `json:"email"`
	Password string `json:"password"`
}

type loginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

// Signup handles user account creation.
func Signup(db Accounts) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()

		var req signupRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			writeError(w, &apperr.ValidationError{Field: "body", Reason: "malformed JSON"})
			return
		}

		if req.Password == "" {
			writeError(w, &apperr.ValidationError{Field: "password", Reason: "must not be empty"})
			return
		}

		hashedPw, err := auth.HashPassword(req.Password)
		if err != nil {
			log.Printf("argon2id hash creation failed: %v", err)
			writeError(w, err)
			return
		}

		user, err := db.CreateUser(ctx, req.Username, req.Email, hashedPw)
		if err != nil {
			writeError(w, err)
			return
		}

		writeJSON(w, http.StatusCreated, user)

		slog.InfoContext(ctx, "user signed up",
			slog.String("username", user.Username))
	}
}

// Login handles user login and issues the session cookie.
func Login(db Accounts) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()

		var req loginRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			writeError(w, &apperr.ValidationError{Field: "body", Reason: "malformed JSON"})
			return
		}

		user, hash, err := db.Credentials(ctx, req.Email)
		if err != nil {
			var notFoundErr *apperr.NotFoundError
			if errors.As(err, &notFoundErr) {
				writeJSON(w, http.StatusUnauthorized, errorResponse{Message: "Invalid email or password."})
				return
			}
			writeError(w, err)
			return
		}

		ok, err := auth.CheckPasswordHash(req.Password, hash)
		if err != nil {
			log.Printf("cannot verify password, hash may be corrupted: %v", err)
			writeError(w, err)
			return
		}
		if !ok {
			writeJSON(w, http.StatusUnauthorized, errorResponse{Message: "Invalid email or password."})
			return
		}

		token, err := auth.MakeJWT(user.UserID, auth.SessionSecret(), sessionTTL)
		if err != nil {
			log.Printf("failed to create JWT: %v", err)
			writeError(w, err)
			return
		}

		auth.SetSessionCookie(w, token, sessionTTL)
		writeJSON(w, http.StatusOK, user)

		slog.InfoContext(ctx, "user logged in",
			slog.String("username", user.Username))
	}
}

// Logout clears the session cookie.
func Logout() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		auth.ClearSessionCookie(w)
		w.WriteHeader(http.StatusOK)

		log.Printf("user logged out")
	}
}
