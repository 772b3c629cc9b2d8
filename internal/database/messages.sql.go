package database

import (
	"context"

	"github.com/jackc/pgx/v5/pgtype"
)

const createMessage = `
INSERT INTO messages (sender_id, recipient_id, content)
VALUES ($1, $2, $3)
RETURNING id, sender_id, recipient_id, content, status, created_at
`

type CreateMessageParams struct {
	SenderID    pgtype.UUID
	RecipientID pgtype.UUID
	Content     string
}

func (q *Queries) CreateMessage(ctx context.Context, arg CreateMessageParams) (Message, error) {
	row := q.db.QueryRow(ctx, createMessage, arg.SenderID, arg.RecipientID, arg.Content)
	var m Message
	err := row.Scan(
		&m.ID,
		&m.SenderID,
		&m.RecipientID,
		&m.Content,
		&m.Status,
		&m.CreatedAt,
	)
	return m, err
}

const listConversation = `
SELECT id, sender_id, recipient_id, content, status, created_at
FROM messages
WHERE (sender_id = $1 AND recipient_id = $2)
   OR (sender_id = $2 AND recipient_id = $1)
ORDER BY created_at, id
`

type ListConversationParams struct {
	UserA pgtype.UUID
	UserB pgtype.UUID
}

func (q *Queries) ListConversation(ctx context.Context, arg ListConversationParams) ([]Message, error) {
	rows, err := q.db.Query(ctx, listConversation, arg.UserA, arg.UserB)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var items []Message
	for rows.Next() {
		var m Message
		if err := rows.Scan(
			&m.ID,
			&m.SenderID,
			&m.RecipientID,
			&m.Content,
			&m.Status,
			&m.CreatedAt,
		); err != nil {
			return nil, err
		}
		items = append(items, m)
	}
	return items, rows.Err()
}

const getMessageForUpdate = `
SELECT id, sender_id, recipient_id, content, status, created_at
FROM messages
WHERE id = $1
FOR UPDATE
`

// GetMessageForUpdate locks the row so a status check and the
// following update cannot interleave with a concurrent transition.
func (q *Queries) GetMessageForUpdate(ctx context.Context, id int64) (Message, error) {
	row := q.db.QueryRow(ctx, getMessageForUpdate, id)
	var m Message
	err := row.Scan(
		&m.ID,
		&m.SenderID,
		&m.RecipientID,
		&m.Content,
		&m.Status,
		&m.CreatedAt,
	)
	return m, err
}

const setMessageStatus = `
UPDATE messages
SET status = $2
WHERE id = $1
`

type SetMessageStatusParams struct {
	ID     int64
	Status string
}

func (q *Queries) SetMessageStatus(ctx context.Context, arg SetMessageStatusParams) error {
	_, err := q.db.Exec(ctx, setMessageStatus, arg.ID, arg.Status)
	return err
}

const bulkAdvanceStatus = `
UPDATE messages
SET status = $2
WHERE sender_id = $3
  AND recipient_id = $4
  AND status = $1
`

type BulkAdvanceStatusParams struct {
	FromStatus  string
	ToStatus    string
	SenderID    pgtype.UUID
	RecipientID pgtype.UUID
}

// BulkAdvanceStatus returns the number of rows advanced. Zero is not
// an error.
func (q *Queries) BulkAdvanceStatus(ctx context.Context, arg BulkAdvanceStatusParams) (int64, error) {
	tag, err := q.db.Exec(ctx, bulkAdvanceStatus,
		arg.FromStatus, arg.ToStatus, arg.SenderID, arg.RecipientID)
	if err != nil {
		return 0, err
	}
	return tag.RowsAffected(), nil
}

const countUnread = `
SELECT count(*)
FROM messages
WHERE sender_id = $2
  AND recipient_id = $1
  AND status = 'delivered'
`

type CountUnreadParams struct {
	ViewerID pgtype.UUID
	PeerID   pgtype.UUID
}

func (q *Queries) CountUnread(ctx context.Context, arg CountUnreadParams) (int64, error) {
	row := q.db.QueryRow(ctx, countUnread, arg.ViewerID, arg.PeerID)
	var count int64
	err := row.Scan(&count)
	return count, err
}
