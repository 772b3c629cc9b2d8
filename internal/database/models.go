package database

import "github.com/jackc/pgx/v5/pgtype"

type User struct {
	UserID   pgtype.UUID
	Username string
	Email    string
}

type Password struct {
	UserID         pgtype.UUID
	HashedPassword string
	CreatedAt      pgtype.Timestamptz
}

type Message struct {
	ID          int64
	SenderID    pgtype.UUID
	RecipientID pgtype.UUID
	Content     string
	Status      string
	CreatedAt   pgtype.Timestamptz
}
