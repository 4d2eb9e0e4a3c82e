/*
Package user contains the core data structure for user identity.

It defines the basic representation of a chat participant, used both internally
and in payloads sent to clients.
*/
package user

import "time"

// User represents the identity of a chat participant. The identity is issued
// by the store at registration and immutable afterwards.
type User struct {
	// ID is the stable unique identifier for the user.
	ID int64 `json:"id"`

	// Username is the display name of the user.
	Username string `json:"username"`

	// CreatedAt records when the account was created. Omitted in WebSocket
	// payloads where only identity matters.
	CreatedAt time.Time `json:"createdAt,omitempty"`
}
