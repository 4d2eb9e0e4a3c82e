package handler

import (
	"context"

	"chatrelay/internal/app/chat"
	"chatrelay/internal/app/store"
	"chatrelay/internal/app/user"
	"chatrelay/internal/configs"
)

// Datastore is the slice of the durable store the HTTP handlers consume.
// *store.Store satisfies it; tests substitute fakes.
type Datastore interface {
	CreateUser(ctx context.Context, username, passwordHash string) (user.User, error)
	UserByID(ctx context.Context, id int64) (user.User, error)
	CredentialsByUsername(ctx context.Context, username string) (store.Credentials, error)
	SearchUsers(ctx context.Context, query string, excludeID int64, limit int) ([]user.User, error)

	CreateRoom(ctx context.Context, name string, isGroup bool, inviteCode *string, creatorID int64) (store.Room, error)
	RoomByID(ctx context.Context, id int64) (store.Room, error)
	RoomByInviteCode(ctx context.Context, code string) (store.Room, error)
	RoomsForUser(ctx context.Context, userID int64) ([]store.RoomSummary, error)
	RoomMembers(ctx context.Context, roomID int64) ([]user.User, error)
	IsRoomMember(ctx context.Context, userID, roomID int64) (bool, error)
	AddParticipant(ctx context.Context, userID, roomID int64) (bool, error)
	FindPrivateRoom(ctx context.Context, a, b int64) (store.Room, error)
	CreatePrivateRoom(ctx context.Context, a, b int64) (store.Room, error)

	MessagesForRoom(ctx context.Context, roomID int64, limit, offset int) ([]store.Message, error)
}

// Notifier pushes an out-of-band event to every live connection of a user.
// The Gateway implements it; membership-changing handlers use it for
// addedToRoom fan-out without depending on the whole gateway surface.
type Notifier interface {
	NotifyUser(userID int64, event chat.ServerEvent)
}

// AppDeps bundles the dependencies injected into every handler.
type AppDeps struct {
	Config      *configs.AppConfig
	Store       Datastore
	Gateway     *chat.Gateway
	Coordinator *chat.Coordinator
	Notifier    Notifier
}
