package store

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgtype"

	"github.com/chatline/chatline/internal/apperr"
	"github.com/chatline/chatline/internal/database"
	"github.com/chatline/chatline/internal/model"
)

// CreateUser registers a new identity and its credential hash in one
// transaction.
func (s *Store) CreateUser(ctx context.Context, username, email, hashedPassword string) (model.User, error) {
	username = strings.TrimSpace(username)
	email = strings.TrimSpace(email)
	if username == "" {
		return model.User{}, &apperr.ValidationError{Field: "username", Reason: "must not be empty"}
	}
	if email == "" {
		return model.User{}, &apperr.ValidationError{Field: "email", Reason: "must not be empty"}
	}
	if hashedPassword == "" {
		return model.User{}, &apperr.ValidationError{Field: "password", Reason: "must not be empty"}
	}

	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return model.User{}, &apperr.StoreError{Op: "create user", Err: err}
	}
	defer tx.Rollback(ctx)

	q := s.q.WithTx(tx)
	row, err := q.CreateUser(ctx, database.CreateUserParams{
		UserID:   pgUUID(uuid.New()),
		Username: username,
		Email:    email,
	})
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == "23505" {
			return model.User{}, &apperr.ValidationError{Field: "username", Reason: "username or email already taken"}
		}
		return model.User{}, &apperr.StoreError{Op: "create user", Err: err}
	}

	_, err = q.CreatePassword(ctx, database.CreatePasswordParams{
		UserID:         row.UserID,
		HashedPassword: hashedPassword,
		CreatedAt:      pgtype.Timestamptz{Time: time.Now().UTC(), Valid: true},
	})
	if err != nil {
		return model.User{}, &apperr.StoreError{Op: "create password", Err: err}
	}

	if err := tx.Commit(ctx); err != nil {
		return model.User{}, &apperr.StoreError{Op: "create user", Err: err}
	}

	return model.User{
		UserID:   row.UserID.Bytes,
		Username: row.Username,
		Email:    row.Email,
	}, nil
}

// GetUser looks up a user by id.
func (s *Store) GetUser(ctx context.Context, userID uuid.UUID) (model.User, error) {
	row, err := s.q.GetUserById(ctx, pgUUID(userID))
	if errors.Is(err, pgx.ErrNoRows) {
		return model.User{}, &apperr.NotFoundError{Kind: "user", ID: userID.String()}
	}
	if err != nil {
		return model.User{}, &apperr.StoreError{Op: "get user", Err: err}
	}
	return model.User{
		UserID:   row.UserID.Bytes,
		Username: row.Username,
		Email:    row.Email,
	}, nil
}

// Credentials returns the user and credential hash for a login
// attempt. A missing account surfaces as NotFoundError; the handler
// collapses it into a generic invalid-credentials response.
func (s *Store) Credentials(ctx context.Context, email string) (model.User, string, error) {
	row, err := s.q.GetUserWithPasswordByEmail(ctx, email)
	if errors.Is(err, pgx.ErrNoRows) {
		return model.User{}, "", &apperr.NotFoundError{Kind: "user", ID: email}
	}
	if err != nil {
		return model.User{}, "", &apperr.StoreError{Op: "get credentials", Err: err}
	}
	user := model.User{
		UserID:   row.UserID.Bytes,
		Username: row.Username,
		Email:    row.Email,
	}
	return user, row.HashedPassword, nil
}
