package errs

import (
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewErrorKnownCode(t *testing.T) {
	err := NewError(ErrRoomForbidden)

	require.NotNil(t, err)
	assert.Equal(t, ErrRoomForbidden, err.Code)
	assert.Equal(t, http.StatusForbidden, err.Status)
	assert.NotEmpty(t, err.Message)
}

func TestNewErrorUnknownCodeFallsBack(t *testing.T) {
	err := NewError(-12345)

	require.NotNil(t, err)
	assert.Equal(t, ErrUnknown, err.Code)
	assert.Equal(t, http.StatusInternalServerError, err.Status)
}

func TestNewErrorDefaultsStatusToOK(t *testing.T) {
	// Codes without an explicit HTTP status surface as 200 with a non-zero
	// business code in the envelope.
	err := NewError(ErrMessageEmpty)

	require.NotNil(t, err)
	assert.Equal(t, http.StatusOK, err.Status)
}

func TestNewErrorReturnsCopy(t *testing.T) {
	first := NewError(ErrRoomNotFound)
	first.Message = "mutated"

	second := NewError(ErrRoomNotFound)
	assert.NotEqual(t, "mutated", second.Message)
}

func TestCustomErrorImplementsError(t *testing.T) {
	err := NewError(ErrUnauthenticated)

	assert.Contains(t, err.Error(), err.Message)
}

func TestEveryCodeHasMapEntry(t *testing.T) {
	codes := []int{
		ErrInvalidParams, ErrUnsupportedMediaType, ErrInvalidJSONFormat,
		ErrExtraContentInBody, ErrRateLimitExceeded,
		ErrRoomNotFound, ErrInviteCodeInvalid, ErrRoomForbidden,
		ErrAlreadyParticipant, ErrPrivateRoomSelf, ErrMessageEmpty, ErrMessageTooLong,
		ErrUnauthenticated, ErrInvalidCredentials, ErrInvalidUsername,
		ErrInvalidPassword, ErrUserAlreadyExists, ErrUserNotFound,
		ErrUnknown, ErrStoreUnavailable,
	}

	for _, code := range codes {
		err := NewError(code)
		require.NotNil(t, err)
		assert.Equal(t, code, err.Code, "code %d must map to itself", code)
	}
}
