package database

import (
	"context"

	"github.com/jackc/pgx/v5/pgtype"
)

const createUser = `
INSERT INTO users (user_id, username, email)
VALUES ($1, $2, $3)
RETURNING user_id, username, email
`

type CreateUserParams struct {
	UserID   pgtype.UUID
	Username string
	Email    string
}

func (q *Queries) CreateUser(ctx context.Context, arg CreateUserParams) (User, error) {
	row := q.db.QueryRow(ctx, createUser, arg.UserID, arg.Username, arg.Email)
	var u User
	err := row.Scan(&u.UserID, &u.Username, &u.Email)
	return u, err
}

const getUserById = `
SELECT user_id, username, email
FROM users
WHERE user_id = $1
`

func (q *Queries) GetUserById(ctx context.Context, userID pgtype.UUID) (User, error) {
	row := q.db.QueryRow(ctx, getUserById, userID)
	var u User
	err := row.Scan(&u.UserID, &u.Username, &u.Email)
	return u, err
}

const getUserWithPasswordByEmail = `
SELECT u.user_id, u.username, u.email, p.hashed_password
FROM users u
JOIN passwords p ON p.user_id = u.user_id
WHERE u.email = $1
`

type GetUserWithPasswordByEmailRow struct {
	UserID         pgtype.UUID
	Username       string
	Email          string
	HashedPassword string
}

func (q *Queries) GetUserWithPasswordByEmail(ctx context.Context, email string) (GetUserWithPasswordByEmailRow, error) {
	row := q.db.QueryRow(ctx, getUserWithPasswordByEmail, email)
	var r GetUserWithPasswordByEmailRow
	err := row.Scan(&r.UserID, &r.Username, &r.Email, &r.HashedPassword)
	return r, err
}

const createPassword = `
INSERT INTO passwords (user_id, hashed_password, created_at)
VALUES ($1, $2, $3)
RETURNING user_id, hashed_password, created_at
`

type CreatePasswordParams struct {
	UserID         pgtype.UUID
	HashedPassword string
	CreatedAt      pgtype.Timestamptz
}

func (q *Queries) CreatePassword(ctx context.Context, arg CreatePasswordParams) (Password, error) {
	row := q.db.QueryRow(ctx, createPassword, arg.UserID, arg.HashedPassword, arg.CreatedAt)
	var p Password
	err := row.Scan(&p.UserID, &p.HashedPassword, &p.CreatedAt)
	return p, err
}

const listPeople = `
SELECT u.user_id, u.username, u.email,
       (SELECT count(*)
        FROM messages m
        WHERE m.sender_id = u.user_id
          AND m.recipient_id = $1
          AND m.status = 'delivered') AS unread_chat_count
FROM users u
WHERE u.user_id <> $1
ORDER BY u.username
`

type ListPeopleRow struct {
	UserID          pgtype.UUID
	Username        string
	Email           string
	UnreadChatCount int64
}

// ListPeople returns every known user except the viewer, each with
// the count of delivered messages they have sent the viewer that the
// viewer has not yet read.
func (q *Queries) ListPeople(ctx context.Context, viewerID pgtype.UUID) ([]ListPeopleRow, error) {
	rows, err := q.db.Query(ctx, listPeople, viewerID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var items []ListPeopleRow
	for rows.Next() {
		var r ListPeopleRow
		if err := rows.Scan(&r.UserID, &r.Username, &r.Email, &r.UnreadChatCount); err != nil {
			return nil, err
		}
		items = append(items, r)
	}
	return items, rows.Err()
}
