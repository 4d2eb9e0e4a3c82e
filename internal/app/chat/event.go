/*
Package chat contains the core logic of the real-time session and delivery
layer: presence tracking, room multicast, ordered persist-then-broadcast, and
cross-room notification fan-out.

This file defines the closed set of typed protocol events exchanged over a
WebSocket connection. Dispatch switches on the event tag rather than on
arbitrary runtime strings, so an unhandled event type is an explicit case.
*/
package chat

import (
	"encoding/json"

	"chatrelay/internal/app/store"
)

// EventType tags every protocol event.
type EventType string

// Client → server events.
const (
	EventJoinRoom    EventType = "joinRoom"
	EventLeaveRoom   EventType = "leaveRoom"
	EventSendMessage EventType = "sendMessage"
	EventTyping      EventType = "typing"
)

// Server → client events.
const (
	EventJoined      EventType = "joined"
	EventLeft        EventType = "left"
	EventNewMessage  EventType = "newMessage"
	EventUserTyping  EventType = "userTyping"
	EventAddedToRoom EventType = "addedToRoom"
	EventError       EventType = "error"
	EventAck         EventType = "ack"
)

// Envelope is the wire frame for inbound events. The payload is decoded per
// event type after the tag is matched.
type Envelope struct {
	Type    EventType       `json:"type"`
	Payload json.RawMessage `json:"payload,omitempty"`
}

// ServerEvent is an outbound event ready for marshaling.
type ServerEvent struct {
	Type    EventType `json:"type"`
	Payload any       `json:"payload,omitempty"`
}

// NewServerEvent constructs an outbound event.
func NewServerEvent(eventType EventType, payload any) ServerEvent {
	return ServerEvent{Type: eventType, Payload: payload}
}

// RoomPayload carries a bare room reference (joinRoom, leaveRoom, joined, left).
type RoomPayload struct {
	RoomID int64 `json:"roomId"`
}

// SendMessagePayload is the inbound sendMessage request. TempID is an
// optional client-local handle echoed back in the acknowledgment so the
// client can reconcile an optimistic entry with the canonical message.
type SendMessagePayload struct {
	RoomID int64  `json:"roomId"`
	Text   string `json:"text"`
	TempID string `json:"tempId,omitempty"`
}

// TypingPayload is the inbound typing signal. The flag is level-triggered
// state; repeating the same value is harmless.
type TypingPayload struct {
	RoomID   int64 `json:"roomId"`
	IsTyping bool  `json:"isTyping"`
}

// UserTypingPayload is the broadcast form of a typing signal.
type UserTypingPayload struct {
	RoomID   int64  `json:"roomId"`
	UserID   int64  `json:"userId"`
	Username string `json:"username"`
	IsTyping bool   `json:"isTyping"`
}

// AddedToRoomPayload notifies a user that they became a member of a room,
// delivered to every live connection of that user regardless of which rooms
// those connections have open.
type AddedToRoomPayload struct {
	RoomID int64 `json:"roomId"`
}

// AckPayload acknowledges a sendMessage request to its sender. On success it
// carries the canonical persisted message; on failure, the denial reason.
type AckPayload struct {
	Status  string         `json:"status"`
	TempID  string         `json:"tempId,omitempty"`
	Message *store.Message `json:"message,omitempty"`
	Reason  string         `json:"reason,omitempty"`
}

// Ack statuses.
const (
	AckStatusOK    = "ok"
	AckStatusError = "error"
)

// ErrorPayload reports an operation failure to the originating connection
// only. Errors are never broadcast.
type ErrorPayload struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
}
