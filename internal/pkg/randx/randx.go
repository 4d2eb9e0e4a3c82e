/*
Package randx provides cryptographically secure random identifiers.

It generates fixed-length Base62 invite codes for group rooms and UUID handles
for live WebSocket connections.
*/
package randx

import (
	"crypto/rand"
	"fmt"
	"math/big"
	"strings"

	"github.com/google/uuid"
)

const (
	// Base62Chars defines the character set used for Base62 encoding (0-9, A-Z, a-z).
	Base62Chars = "0123456789ABCDEFGHIJKLMNOPQRSTUVWXYZabcdefghijklmnopqrstuvwxyz"

	// Base62Len is the total number of characters in the Base62 character set (62).
	Base62Len = int64(len(Base62Chars))

	// InviteCodeLength is the fixed length of a generated room invite code.
	InviteCodeLength = 10
)

// InviteCode generates a Base62 invite code using crypto/rand.
// It returns a string of length InviteCodeLength.
func InviteCode() (string, error) {
	result := make([]byte, InviteCodeLength)

	for i := range InviteCodeLength {
		num, err := rand.Int(rand.Reader, big.NewInt(Base62Len))
		if err != nil {
			return "", fmt.Errorf("failed to generate random number for invite code: %v", err)
		}

		result[i] = Base62Chars[num.Int64()]
	}

	return string(result), nil
}

// IsValidInviteCode checks length and character set of an invite code.
func IsValidInviteCode(code string) bool {
	if len(code) != InviteCodeLength {
		return false
	}

	for _, char := range code {
		if !strings.ContainsRune(Base62Chars, char) {
			return false
		}
	}

	return true
}

// ConnectionID generates a UUID v4 string identifying one live transport session.
func ConnectionID() string {
	return uuid.New().String()
}
