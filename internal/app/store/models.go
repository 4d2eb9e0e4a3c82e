/*
Package store implements the durable storage contract for users, rooms,
memberships, and messages on top of PostgreSQL (pgx).

The rest of the application treats this package as an external collaborator:
every call may fail transiently and callers deny the requested operation
rather than failing open.
*/
package store

import (
	"errors"
	"time"

	"chatrelay/internal/app/user"
)

// ErrNotFound reports that the referenced row does not exist. Callers must
// distinguish it from transient store failures, which are any other error.
var ErrNotFound = errors.New("store: not found")

// Room represents a chat room row. InviteCode is set only for group rooms.
type Room struct {
	ID         int64     `json:"id"`
	Name       string    `json:"name"`
	IsGroup    bool      `json:"isGroup"`
	InviteCode *string   `json:"inviteCode,omitempty"`
	CreatedAt  time.Time `json:"createdAt"`
	UpdatedAt  time.Time `json:"updatedAt"`
}

// Message is a persisted chat message. ID and CreatedAt are store-issued;
// once returned, the message is the canonical form that gets broadcast.
type Message struct {
	ID        int64     `json:"id"`
	Text      string    `json:"text"`
	UserID    int64     `json:"userId"`
	RoomID    int64     `json:"roomId"`
	CreatedAt time.Time `json:"createdAt"`

	// Author is the message author's identity, joined in on reads and filled
	// from the sending connection on writes.
	Author user.User `json:"user"`
}

// RoomSummary is a room together with its member list and most recent
// message, as rendered in a user's room list.
type RoomSummary struct {
	Room
	Participants []user.User `json:"participants"`
	LastMessage  *Message    `json:"lastMessage,omitempty"`
}

// Credentials carries the identity and password hash needed for a login check.
type Credentials struct {
	User         user.User
	PasswordHash string
}
