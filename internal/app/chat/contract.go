package chat

import (
	"context"

	"chatrelay/internal/app/store"
	"chatrelay/internal/app/user"
)

// MembershipAuthority answers room membership questions against the durable
// store. Results are point-in-time snapshots: membership can change
// out-of-band while a session is open, so callers re-check on every
// membership-gated operation instead of caching the answer.
type MembershipAuthority interface {
	IsRoomMember(ctx context.Context, userID, roomID int64) (bool, error)
	RoomMembers(ctx context.Context, roomID int64) ([]user.User, error)
}

// MessageStore persists messages and issues their canonical id and timestamp.
type MessageStore interface {
	CreateMessage(ctx context.Context, text string, userID, roomID int64) (store.Message, error)
}
