/*
Package chat contains the core logic of the real-time session and delivery layer.

This file defines the Coordinator, which owns the persist-then-broadcast flow
for messages and the membership-gated typing broadcast. A message becomes
visible to room subscribers if and only if the store has already accepted it.
*/
package chat

import (
	"context"

	"github.com/rs/zerolog"

	"chatrelay/internal/app/store"
	"chatrelay/internal/app/user"
	"chatrelay/internal/pkg/errs"
	"chatrelay/internal/pkg/logx"
)

// Coordinator validates, persists, and broadcasts messages in strict order.
type Coordinator struct {
	membership MembershipAuthority
	messages   MessageStore
	gateway    *Gateway

	logger zerolog.Logger
}

// NewCoordinator wires the coordinator to its collaborators.
func NewCoordinator(membership MembershipAuthority, messages MessageStore, gateway *Gateway) *Coordinator {
	coordinatorLogger := logx.Logger().With().Str("component", "Coordinator").Logger()

	return &Coordinator{
		membership: membership,
		messages:   messages,
		gateway:    gateway,
		logger:     coordinatorLogger,
	}
}

// Send runs the send flow for one message:
//  1. reject empty or over-length text before touching the store;
//  2. re-check membership, closing the race where it was revoked after join;
//  3. persist, obtaining the canonical id and timestamp;
//  4. broadcast the canonical message to the room;
//  5. return the canonical message as the sender's acknowledgment.
//
// A failure at any step means no broadcast happened and the message is
// dropped entirely; retrying is the caller's decision with a fresh send.
func (co *Coordinator) Send(ctx context.Context, sender user.User, roomID int64, text string) (store.Message, *errs.CustomError) {
	if text == "" {
		return store.Message{}, errs.NewError(errs.ErrMessageEmpty)
	}
	if len(text) > MaxMessageBytes {
		return store.Message{}, errs.NewError(errs.ErrMessageTooLong)
	}

	isMember, err := co.membership.IsRoomMember(ctx, sender.ID, roomID)
	if err != nil {
		co.logger.Error().Err(err).
			Int64("user_id", sender.ID).
			Int64("room_id", roomID).
			Msg("Membership check failed during send.")
		return store.Message{}, errs.NewError(errs.ErrStoreUnavailable)
	}
	if !isMember {
		return store.Message{}, errs.NewError(errs.ErrRoomForbidden)
	}

	msg, err := co.messages.CreateMessage(ctx, text, sender.ID, roomID)
	if err != nil {
		co.logger.Error().Err(err).
			Int64("user_id", sender.ID).
			Int64("room_id", roomID).
			Msg("Message persistence failed.")
		return store.Message{}, errs.NewError(errs.ErrStoreUnavailable)
	}
	msg.Author = sender

	var exclude int64
	if !co.gateway.EchoSender() {
		exclude = sender.ID
	}
	co.gateway.Publish(roomID, NewServerEvent(EventNewMessage, msg), exclude)

	return msg, nil
}

// Typing broadcasts an ephemeral typing signal to the room, sender excluded.
// Membership is re-checked but nothing is persisted and no acknowledgment is
// produced; the signal is level-triggered state, so duplicates are harmless.
func (co *Coordinator) Typing(ctx context.Context, sender user.User, roomID int64, isTyping bool) *errs.CustomError {
	isMember, err := co.membership.IsRoomMember(ctx, sender.ID, roomID)
	if err != nil {
		co.logger.Error().Err(err).
			Int64("user_id", sender.ID).
			Int64("room_id", roomID).
			Msg("Membership check failed during typing.")
		return errs.NewError(errs.ErrStoreUnavailable)
	}
	if !isMember {
		return errs.NewError(errs.ErrRoomForbidden)
	}

	co.gateway.Publish(roomID, NewServerEvent(EventUserTyping, UserTypingPayload{
		RoomID:   roomID,
		UserID:   sender.ID,
		Username: sender.Username,
		IsTyping: isTyping,
	}), sender.ID)

	return nil
}
