// Package store is the message delivery engine's persistence core.
// It owns every status transition a message can take and keeps the
// multi-step mutations (create + immediate delivery, bulk read
// marking) atomic under concurrent access.
package store

import (
	"context"
	"errors"
	"strconv"
	"strings"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgtype"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/chatline/chatline/internal/apperr"
	"github.com/chatline/chatline/internal/database"
	"github.com/chatline/chatline/internal/model"
)

type Store struct {
	pool *pgxpool.Pool
	q    *database.Queries
}

func New(pool *pgxpool.Pool) *Store {
	return &Store{
		pool: pool,
		q:    database.New(pool),
	}
}

// Create persists a new message for the (sender, recipient) pair.
// The message starts as "sent"; when recipientOnline is true it is
// advanced to "delivered" inside the same transaction, so a crash
// can never leave a pushed message recorded as unsent.
func (s *Store) Create(ctx context.Context, sender, recipient uuid.UUID, content string, recipientOnline bool) (model.ChatMessage, error) {
	content = strings.TrimSpace(content)
	if content == "" {
		return model.ChatMessage{}, &apperr.ValidationError{Field: "content", Reason: "must not be empty"}
	}
	if sender == uuid.Nil {
		return model.ChatMessage{}, &apperr.ValidationError{Field: "sender", Reason: "missing user id"}
	}
	if recipient == uuid.Nil {
		return model.ChatMessage{}, &apperr.ValidationError{Field: "recipient", Reason: "missing user id"}
	}

	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return model.ChatMessage{}, &apperr.StoreError{Op: "create message", Err: err}
	}
	defer tx.Rollback(ctx)

	q := s.q.WithTx(tx)
	row, err := q.CreateMessage(ctx, database.CreateMessageParams{
		SenderID:    pgUUID(sender),
		RecipientID: pgUUID(recipient),
		Content:     content,
	})
	if err != nil {
		return model.ChatMessage{}, mapPgErr("create message", err)
	}

	if recipientOnline {
		err = q.SetMessageStatus(ctx, database.SetMessageStatusParams{
			ID:     row.ID,
			Status: string(model.StatusDelivered),
		})
		if err != nil {
			return model.ChatMessage{}, &apperr.StoreError{Op: "mark delivered", Err: err}
		}
		row.Status = string(model.StatusDelivered)
	}

	if err := tx.Commit(ctx); err != nil {
		return model.ChatMessage{}, &apperr.StoreError{Op: "create message", Err: err}
	}

	return toModel(row), nil
}

// Conversation returns every message between the unordered pair,
// ascending by creation time. No messages is an empty slice, not an
// error.
func (s *Store) Conversation(ctx context.Context, userA, userB uuid.UUID) ([]model.ChatMessage, error) {
	rows, err := s.q.ListConversation(ctx, database.ListConversationParams{
		UserA: pgUUID(userA),
		UserB: pgUUID(userB),
	})
	if err != nil {
		return nil, &apperr.StoreError{Op: "list conversation", Err: err}
	}
	return toModels(rows), nil
}

// OpenConversation serves a viewer opening the peer's thread. The
// viewer's client is receiving the history, so messages from the
// peer still sitting at "sent" are first delivered, then everything
// delivered is marked read, then the full history is returned. All
// three steps share one transaction: each status moves exactly one
// step, the returned messages reflect the post-transition status,
// and a concurrent unread count sees all of the marking or none.
func (s *Store) OpenConversation(ctx context.Context, viewer, peer uuid.UUID) ([]model.ChatMessage, error) {
	if viewer == uuid.Nil || peer == uuid.Nil {
		return nil, &apperr.ValidationError{Field: "user", Reason: "missing user id"}
	}

	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return nil, &apperr.StoreError{Op: "open conversation", Err: err}
	}
	defer tx.Rollback(ctx)

	q := s.q.WithTx(tx)
	_, err = q.BulkAdvanceStatus(ctx, database.BulkAdvanceStatusParams{
		FromStatus:  string(model.StatusSent),
		ToStatus:    string(model.StatusDelivered),
		SenderID:    pgUUID(peer),
		RecipientID: pgUUID(viewer),
	})
	if err != nil {
		return nil, &apperr.StoreError{Op: "mark delivered", Err: err}
	}

	_, err = q.BulkAdvanceStatus(ctx, database.BulkAdvanceStatusParams{
		FromStatus:  string(model.StatusDelivered),
		ToStatus:    string(model.StatusRead),
		SenderID:    pgUUID(peer),
		RecipientID: pgUUID(viewer),
	})
	if err != nil {
		return nil, &apperr.StoreError{Op: "mark read", Err: err}
	}

	rows, err := q.ListConversation(ctx, database.ListConversationParams{
		UserA: pgUUID(viewer),
		UserB: pgUUID(peer),
	})
	if err != nil {
		return nil, &apperr.StoreError{Op: "list conversation", Err: err}
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, &apperr.StoreError{Op: "open conversation", Err: err}
	}

	return toModels(rows), nil
}

// BulkAdvance moves every message of the (sender, recipient) pair
// sitting at from to to. Zero matching messages is a successful
// no-op; an illegal step is rejected before touching the store.
func (s *Store) BulkAdvance(ctx context.Context, from, to model.Status, sender, recipient uuid.UUID) error {
	if !from.CanAdvanceTo(to) {
		return &apperr.InvalidTransitionError{From: string(from), To: string(to)}
	}

	_, err := s.q.BulkAdvanceStatus(ctx, database.BulkAdvanceStatusParams{
		FromStatus:  string(from),
		ToStatus:    string(to),
		SenderID:    pgUUID(sender),
		RecipientID: pgUUID(recipient),
	})
	if err != nil {
		return &apperr.StoreError{Op: "bulk advance", Err: err}
	}
	return nil
}

// Advance moves a single message to the given status. Re-applying
// the current status is a no-op; skipping or regressing a state is
// an InvalidTransitionError. The row is locked for the duration of
// the check so racing transitions serialize.
func (s *Store) Advance(ctx context.Context, messageID int64, to model.Status) error {
	if !to.Valid() {
		return &apperr.ValidationError{Field: "status", Reason: "unknown status " + strconv.Quote(string(to))}
	}

	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return &apperr.StoreError{Op: "advance status", Err: err}
	}
	defer tx.Rollback(ctx)

	q := s.q.WithTx(tx)
	row, err := q.GetMessageForUpdate(ctx, messageID)
	if errors.Is(err, pgx.ErrNoRows) {
		return &apperr.NotFoundError{Kind: "message", ID: strconv.FormatInt(messageID, 10)}
	}
	if err != nil {
		return &apperr.StoreError{Op: "advance status", Err: err}
	}

	current := model.Status(row.Status)
	if current == to {
		// Idempotent re-apply.
		if err := tx.Commit(ctx); err != nil {
			return &apperr.StoreError{Op: "advance status", Err: err}
		}
		return nil
	}
	if !current.CanAdvanceTo(to) {
		return &apperr.InvalidTransitionError{From: row.Status, To: string(to)}
	}

	err = q.SetMessageStatus(ctx, database.SetMessageStatusParams{
		ID:     messageID,
		Status: string(to),
	})
	if err != nil {
		return &apperr.StoreError{Op: "advance status", Err: err}
	}

	if err := tx.Commit(ctx); err != nil {
		return &apperr.StoreError{Op: "advance status", Err: err}
	}
	return nil
}

// UnreadCount is the number of delivered messages from peer to
// viewer the viewer has not read yet. Messages still "sent" are not
// counted; they become unread only once delivered.
func (s *Store) UnreadCount(ctx context.Context, viewer, peer uuid.UUID) (int64, error) {
	count, err := s.q.CountUnread(ctx, database.CountUnreadParams{
		ViewerID: pgUUID(viewer),
		PeerID:   pgUUID(peer),
	})
	if err != nil {
		return 0, &apperr.StoreError{Op: "count unread", Err: err}
	}
	return count, nil
}

// Roster returns every known user except the viewer with their
// unread count toward the viewer. A single statement, so it can
// never observe a bulk transition halfway through.
func (s *Store) Roster(ctx context.Context, viewer uuid.UUID) ([]model.RosterEntry, error) {
	rows, err := s.q.ListPeople(ctx, pgUUID(viewer))
	if err != nil {
		return nil, &apperr.StoreError{Op: "list people", Err: err}
	}
	entries := make([]model.RosterEntry, 0, len(rows))
	for _, r := range rows {
		entries = append(entries, model.RosterEntry{
			UserID:          r.UserID.Bytes,
			Username:        r.Username,
			Email:           r.Email,
			UnreadChatCount: r.UnreadChatCount,
		})
	}
	return entries, nil
}

func pgUUID(id uuid.UUID) pgtype.UUID {
	return pgtype.UUID{Bytes: id, Valid: true}
}

func toModel(m database.Message) model.ChatMessage {
	return model.ChatMessage{
		ID:          m.ID,
		Content:     m.Content,
		SenderID:    m.SenderID.Bytes,
		RecipientID: m.RecipientID.Bytes,
		Status:      model.Status(m.Status),
		CreatedAt:   m.CreatedAt.Time,
	}
}

func toModels(rows []database.Message) []model.ChatMessage {
	msgs := make([]model.ChatMessage, 0, len(rows))
	for _, m := range rows {
		msgs = append(msgs, toModel(m))
	}
	return msgs
}

func mapPgErr(op string, err error) error {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		switch pgErr.Code {
		case "23503": // foreign key: sender or recipient does not exist
			return &apperr.NotFoundError{Kind: "user", ID: pgErr.Detail}
		case "23514": // check constraint: empty content slipped past validation
			return &apperr.ValidationError{Field: "content", Reason: "must not be empty"}
		}
	}
	return &apperr.StoreError{Op: op, Err: err}
}
