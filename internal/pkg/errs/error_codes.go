/*
Package errs provides custom error types and application-level error code constants.

These codes identify specific business or system failures both internally and in
the payloads sent to clients (REST responses and WebSocket error events).
*/
package errs

// 1xxx: General Request Handling Errors
const (
	// ErrInvalidParams indicates that request parameter validation failed.
	ErrInvalidParams = 1001

	// ErrUnsupportedMediaType indicates that the request Content-Type is not supported.
	ErrUnsupportedMediaType = 1002

	// ErrInvalidJSONFormat indicates that the request body JSON is malformed.
	ErrInvalidJSONFormat = 1003

	// ErrExtraContentInBody indicates trailing content after valid JSON data.
	ErrExtraContentInBody = 1004

	// ErrRateLimitExceeded indicates that the request rate exceeded the limit.
	ErrRateLimitExceeded = 1005
)

// 2xxx: Room, Membership, and Message Errors
const (
	// ErrRoomNotFound indicates that the referenced room does not exist.
	ErrRoomNotFound = 2101

	// ErrInviteCodeInvalid indicates that the invite code resolves to no room.
	ErrInviteCodeInvalid = 2102

	// ErrRoomForbidden indicates the user is not a member of the target room.
	ErrRoomForbidden = 2103

	// ErrAlreadyParticipant indicates the target user is already a room member.
	ErrAlreadyParticipant = 2104

	// ErrPrivateRoomSelf indicates an attempt to open a private room with oneself.
	ErrPrivateRoomSelf = 2105

	// ErrMessageEmpty indicates an empty message body.
	ErrMessageEmpty = 2201

	// ErrMessageTooLong indicates the message content exceeded the length limit.
	ErrMessageTooLong = 2202
)

// 3xxx: Authentication Errors
const (
	// ErrUnauthenticated indicates a missing, malformed, or expired credential.
	ErrUnauthenticated = 3001

	// ErrInvalidCredentials indicates a failed username/password check.
	ErrInvalidCredentials = 3002

	// ErrInvalidUsername indicates the username does not meet format rules.
	ErrInvalidUsername = 3003

	// ErrInvalidPassword indicates the password does not meet length rules.
	ErrInvalidPassword = 3004

	// ErrUserAlreadyExists indicates the username is already taken.
	ErrUserAlreadyExists = 3005

	// ErrUserNotFound indicates the referenced user account does not exist.
	ErrUserNotFound = 3006
)

// 5xxx: Internal and Transient System Errors
const (
	// ErrUnknown represents an unclassified internal server error.
	ErrUnknown = 5000

	// ErrStoreUnavailable indicates a transient store failure. The requested
	// operation was denied, not partially applied; retrying later is safe.
	ErrStoreUnavailable = 5001
)
