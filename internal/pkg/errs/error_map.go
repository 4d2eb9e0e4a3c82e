/*
Package errs provides custom error types and application-level error code constants.

This file maps every error code to its CustomError template, standardizing HTTP
responses and internal error handling.
*/
package errs

import "net/http"

// errorMap stores the CustomError template for every application error code.
// A zero Status means HTTP 200 with a non-zero business code in the envelope.
var errorMap = map[int]CustomError{
	// 1xxx: General Request Handling Errors
	ErrInvalidParams:        {Code: ErrInvalidParams, Message: "Invalid request parameters."},
	ErrUnsupportedMediaType: {Code: ErrUnsupportedMediaType, Message: "Unsupported request format."},
	ErrInvalidJSONFormat:    {Code: ErrInvalidJSONFormat, Message: "Unsupported request format."},
	ErrExtraContentInBody:   {Code: ErrExtraContentInBody, Message: "Request contains unexpected data."},
	ErrRateLimitExceeded:    {Code: ErrRateLimitExceeded, Message: "Too many requests. Please try again later.", Status: http.StatusTooManyRequests},

	// 2xxx: Room, Membership, and Message Errors
	ErrRoomNotFound:       {Code: ErrRoomNotFound, Message: "Chat room not found.", Status: http.StatusNotFound},
	ErrInviteCodeInvalid:  {Code: ErrInviteCodeInvalid, Message: "Invite code is invalid.", Status: http.StatusNotFound},
	ErrRoomForbidden:      {Code: ErrRoomForbidden, Message: "You are not a participant of this room.", Status: http.StatusForbidden},
	ErrAlreadyParticipant: {Code: ErrAlreadyParticipant, Message: "User is already a participant of this room.", Status: http.StatusForbidden},
	ErrPrivateRoomSelf:    {Code: ErrPrivateRoomSelf, Message: "Cannot open a private room with yourself."},
	ErrMessageEmpty:       {Code: ErrMessageEmpty, Message: "Message is empty."},
	ErrMessageTooLong:     {Code: ErrMessageTooLong, Message: "Message is too long."},

	// 3xxx: Authentication Errors
	ErrUnauthenticated:    {Code: ErrUnauthenticated, Message: "Please sign in to continue.", Status: http.StatusUnauthorized},
	ErrInvalidCredentials: {Code: ErrInvalidCredentials, Message: "Incorrect username or password.", Status: http.StatusUnauthorized},
	ErrInvalidUsername:    {Code: ErrInvalidUsername, Message: "Invalid username."},
	ErrInvalidPassword:    {Code: ErrInvalidPassword, Message: "Invalid password."},
	ErrUserAlreadyExists:  {Code: ErrUserAlreadyExists, Message: "Username is already taken.", Status: http.StatusConflict},
	ErrUserNotFound:       {Code: ErrUserNotFound, Message: "Account not found.", Status: http.StatusNotFound},

	// 5xxx: Internal and Transient System Errors
	ErrUnknown:          {Code: ErrUnknown, Message: "Something went wrong. Please try again.", Status: http.StatusInternalServerError},
	ErrStoreUnavailable: {Code: ErrStoreUnavailable, Message: "Service temporarily unavailable. Please try again.", Status: http.StatusServiceUnavailable},
}
