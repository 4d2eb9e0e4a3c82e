/*
Package handler provides the HTTP handlers and routing setup for the chat relay.

This file contains the room CRUD surface: creation, listing, history, adding
members, invite-code redemption, and private room creation. Membership-changing
operations push an addedToRoom notification to the affected user's live
connections through the Notifier; notification failures never fail the
triggering request.
*/
package handler

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"chatrelay/internal/app/chat"
	"chatrelay/internal/app/store"
	"chatrelay/internal/pkg/errs"
	"chatrelay/internal/pkg/logx"
	"chatrelay/internal/pkg/randx"
	"chatrelay/internal/pkg/req"
	"chatrelay/internal/pkg/resp"
)

const (
	// defaultHistoryLimit caps one page of message history.
	defaultHistoryLimit = 50
	maxHistoryLimit     = 200

	// searchResultLimit caps user search results.
	searchResultLimit = 10
)

// notifyAddedToRoom pushes the out-of-band membership notification. Delivery
// is best-effort: a user with no live connections simply discovers the room
// on their next room-list fetch.
func notifyAddedToRoom(deps *AppDeps, userID, roomID int64) {
	deps.Notifier.NotifyUser(userID, chat.NewServerEvent(chat.EventAddedToRoom, chat.AddedToRoomPayload{
		RoomID: roomID,
	}))
}

func roomIDParam(r *http.Request) (int64, *errs.CustomError) {
	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil || id <= 0 {
		return 0, errs.NewError(errs.ErrInvalidParams)
	}
	return id, nil
}

type CreateRoomInput struct {
	Name    string `json:"name"`
	IsGroup bool   `json:"isGroup"`
}

// HandleCreateRoom creates a room with the caller auto-joined as its first
// member. Group rooms receive a unique invite code.
func HandleCreateRoom(deps *AppDeps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		identity, ok := requireUser(w, r)
		if !ok {
			return
		}

		var input CreateRoomInput
		if customErr := req.BindJSON(r, &input); customErr != nil {
			resp.RespondError(w, r, customErr)
			return
		}

		if input.Name == "" {
			resp.RespondError(w, r, errs.NewError(errs.ErrInvalidParams))
			return
		}

		var inviteCode *string
		if input.IsGroup {
			code, err := randx.InviteCode()
			if err != nil {
				resp.RespondError(w, r, errs.NewError(errs.ErrUnknown))
				return
			}
			inviteCode = &code
		}

		room, err := deps.Store.CreateRoom(r.Context(), input.Name, input.IsGroup, inviteCode, identity.UserID)
		if err != nil {
			logx.Error(err, "failed to create room", "user_id", identity.UserID)
			resp.RespondError(w, r, errs.NewError(errs.ErrStoreUnavailable))
			return
		}

		resp.RespondSuccess(w, r, room)
	}
}

// HandleListRooms lists the caller's rooms with members and latest message.
func HandleListRooms(deps *AppDeps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		identity, ok := requireUser(w, r)
		if !ok {
			return
		}

		rooms, err := deps.Store.RoomsForUser(r.Context(), identity.UserID)
		if err != nil {
			logx.Error(err, "failed to list rooms", "user_id", identity.UserID)
			resp.RespondError(w, r, errs.NewError(errs.ErrStoreUnavailable))
			return
		}

		resp.RespondSuccess(w, r, rooms)
	}
}

// HandleGetRoom returns one room with its member list. Non-members get
// NotFound rather than Forbidden so room existence is not leaked.
func HandleGetRoom(deps *AppDeps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		identity, ok := requireUser(w, r)
		if !ok {
			return
		}

		roomID, customErr := roomIDParam(r)
		if customErr != nil {
			resp.RespondError(w, r, customErr)
			return
		}

		isMember, err := deps.Store.IsRoomMember(r.Context(), identity.UserID, roomID)
		if err != nil {
			resp.RespondError(w, r, errs.NewError(errs.ErrStoreUnavailable))
			return
		}
		if !isMember {
			resp.RespondError(w, r, errs.NewError(errs.ErrRoomNotFound))
			return
		}

		room, err := deps.Store.RoomByID(r.Context(), roomID)
		if err != nil {
			if errors.Is(err, store.ErrNotFound) {
				resp.RespondError(w, r, errs.NewError(errs.ErrRoomNotFound))
				return
			}
			resp.RespondError(w, r, errs.NewError(errs.ErrStoreUnavailable))
			return
		}

		members, err := deps.Store.RoomMembers(r.Context(), roomID)
		if err != nil {
			resp.RespondError(w, r, errs.NewError(errs.ErrStoreUnavailable))
			return
		}

		resp.RespondSuccess(w, r, store.RoomSummary{Room: room, Participants: members})
	}
}

// HandleRoomMessages returns a page of room history in creation order.
func HandleRoomMessages(deps *AppDeps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		identity, ok := requireUser(w, r)
		if !ok {
			return
		}

		roomID, customErr := roomIDParam(r)
		if customErr != nil {
			resp.RespondError(w, r, customErr)
			return
		}

		isMember, err := deps.Store.IsRoomMember(r.Context(), identity.UserID, roomID)
		if err != nil {
			resp.RespondError(w, r, errs.NewError(errs.ErrStoreUnavailable))
			return
		}
		if !isMember {
			resp.RespondError(w, r, errs.NewError(errs.ErrRoomForbidden))
			return
		}

		limit := defaultHistoryLimit
		if limitStr := r.URL.Query().Get("limit"); limitStr != "" {
			parsed, err := strconv.Atoi(limitStr)
			if err != nil || parsed <= 0 || parsed > maxHistoryLimit {
				resp.RespondError(w, r, errs.NewError(errs.ErrInvalidParams))
				return
			}
			limit = parsed
		}

		offset := 0
		if offsetStr := r.URL.Query().Get("offset"); offsetStr != "" {
			parsed, err := strconv.Atoi(offsetStr)
			if err != nil || parsed < 0 {
				resp.RespondError(w, r, errs.NewError(errs.ErrInvalidParams))
				return
			}
			offset = parsed
		}

		messages, err := deps.Store.MessagesForRoom(r.Context(), roomID, limit, offset)
		if err != nil {
			logx.Error(err, "failed to fetch room history", "room_id", roomID)
			resp.RespondError(w, r, errs.NewError(errs.ErrStoreUnavailable))
			return
		}

		resp.RespondSuccess(w, r, messages)
	}
}

type AddUserInput struct {
	UserID int64 `json:"userId"`
}

// HandleAddUser adds another user to a room the caller belongs to, then
// notifies the added user on all their live connections.
func HandleAddUser(deps *AppDeps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		identity, ok := requireUser(w, r)
		if !ok {
			return
		}

		roomID, customErr := roomIDParam(r)
		if customErr != nil {
			resp.RespondError(w, r, customErr)
			return
		}

		var input AddUserInput
		if bindErr := req.BindJSON(r, &input); bindErr != nil {
			resp.RespondError(w, r, bindErr)
			return
		}

		isMember, err := deps.Store.IsRoomMember(r.Context(), identity.UserID, roomID)
		if err != nil {
			resp.RespondError(w, r, errs.NewError(errs.ErrStoreUnavailable))
			return
		}
		if !isMember {
			resp.RespondError(w, r, errs.NewError(errs.ErrRoomForbidden))
			return
		}

		if _, err := deps.Store.UserByID(r.Context(), input.UserID); err != nil {
			if errors.Is(err, store.ErrNotFound) {
				resp.RespondError(w, r, errs.NewError(errs.ErrUserNotFound))
				return
			}
			resp.RespondError(w, r, errs.NewError(errs.ErrStoreUnavailable))
			return
		}

		added, err := deps.Store.AddParticipant(r.Context(), input.UserID, roomID)
		if err != nil {
			logx.Error(err, "failed to add participant", "room_id", roomID, "target_user_id", input.UserID)
			resp.RespondError(w, r, errs.NewError(errs.ErrStoreUnavailable))
			return
		}
		if !added {
			resp.RespondError(w, r, errs.NewError(errs.ErrAlreadyParticipant))
			return
		}

		notifyAddedToRoom(deps, input.UserID, roomID)

		resp.RespondSuccess(w, r, map[string]any{
			"roomId": roomID,
			"userId": input.UserID,
		})
	}
}

type JoinByInviteCodeInput struct {
	InviteCode string `json:"inviteCode"`
}

// HandleJoinByInviteCode redeems an invite code. Redeeming a code the caller
// already used is a no-op that returns the room again; the addedToRoom
// notification fires only when a membership was actually created.
func HandleJoinByInviteCode(deps *AppDeps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		identity, ok := requireUser(w, r)
		if !ok {
			return
		}

		var input JoinByInviteCodeInput
		if customErr := req.BindJSON(r, &input); customErr != nil {
			resp.RespondError(w, r, customErr)
			return
		}

		if !randx.IsValidInviteCode(input.InviteCode) {
			resp.RespondError(w, r, errs.NewError(errs.ErrInviteCodeInvalid))
			return
		}

		room, err := deps.Store.RoomByInviteCode(r.Context(), input.InviteCode)
		if err != nil {
			if errors.Is(err, store.ErrNotFound) {
				resp.RespondError(w, r, errs.NewError(errs.ErrInviteCodeInvalid))
				return
			}
			resp.RespondError(w, r, errs.NewError(errs.ErrStoreUnavailable))
			return
		}

		added, err := deps.Store.AddParticipant(r.Context(), identity.UserID, room.ID)
		if err != nil {
			logx.Error(err, "failed to redeem invite code", "room_id", room.ID, "user_id", identity.UserID)
			resp.RespondError(w, r, errs.NewError(errs.ErrStoreUnavailable))
			return
		}

		if added {
			notifyAddedToRoom(deps, identity.UserID, room.ID)
		}

		resp.RespondSuccess(w, r, room)
	}
}

// HandleCreatePrivateRoom creates, or returns the existing, private room
// between the caller and the target user. At most one private room exists per
// unordered user pair; creating it notifies the target.
func HandleCreatePrivateRoom(deps *AppDeps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		identity, ok := requireUser(w, r)
		if !ok {
			return
		}

		targetID, err := strconv.ParseInt(chi.URLParam(r, "targetUserId"), 10, 64)
		if err != nil || targetID <= 0 {
			resp.RespondError(w, r, errs.NewError(errs.ErrInvalidParams))
			return
		}

		if targetID == identity.UserID {
			resp.RespondError(w, r, errs.NewError(errs.ErrPrivateRoomSelf))
			return
		}

		if _, err := deps.Store.UserByID(r.Context(), targetID); err != nil {
			if errors.Is(err, store.ErrNotFound) {
				resp.RespondError(w, r, errs.NewError(errs.ErrUserNotFound))
				return
			}
			resp.RespondError(w, r, errs.NewError(errs.ErrStoreUnavailable))
			return
		}

		existing, err := deps.Store.FindPrivateRoom(r.Context(), identity.UserID, targetID)
		if err == nil {
			resp.RespondSuccess(w, r, existing)
			return
		}
		if !errors.Is(err, store.ErrNotFound) {
			resp.RespondError(w, r, errs.NewError(errs.ErrStoreUnavailable))
			return
		}

		room, err := deps.Store.CreatePrivateRoom(r.Context(), identity.UserID, targetID)
		if err != nil {
			logx.Error(err, "failed to create private room", "user_id", identity.UserID, "target_user_id", targetID)
			resp.RespondError(w, r, errs.NewError(errs.ErrStoreUnavailable))
			return
		}

		notifyAddedToRoom(deps, targetID, room.ID)

		resp.RespondSuccess(w, r, room)
	}
}
