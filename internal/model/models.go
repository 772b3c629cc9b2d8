// Package model defines the data structures shared across the app.
package model

import "github.com/google/uuid"

// User holds the public identity of a registered user.
type User struct {
	UserID   uuid.UUID `json:"userId"`
	Username string    `json:"username"`
	Email    string    `json:"email"`
}

// RosterEntry is one row of a viewer's peer list: a known user plus
// the number of delivered-but-unread messages they have sent the
// viewer.
type RosterEntry struct {
	UserID          uuid.UUID `json:"userId"`
	Username        string    `json:"username"`
	Email           string    `json:"email"`
	UnreadChatCount int64     `json:"unreadChatCount"`
}
