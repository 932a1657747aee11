/*
Package randx generates and validates the identifiers used by the chat system: guest session IDs,
connection handles and chat message IDs.
*/
package randx

import (
	"crypto/rand"
	"fmt"
	"math/big"

	"github.com/google/uuid"
)

const (
	// Base62Chars defines the character set used for Base62 encoding (0-9, A-Z, a-z).
	Base62Chars = "0123456789ABCDEFGHIJKLMNOPQRSTUVWXYZabcdefghijklmnopqrstuvwxyz"

	// Base62Len is the total number of characters in the Base62 character set (62).
	Base62Len = int64(len(Base62Chars))

	// GuestIDPrefix is the prefix of server-issued guest IDs.
	GuestIDPrefix = "guest_"

	// GuestIDRawLength is the length of the random part of a server-issued guest ID.
	GuestIDRawLength = 12

	// MaxGuestIDLength bounds client-supplied guest IDs.
	MaxGuestIDLength = 64
)

// GuestID generates a new guest session ID ("guest_" + 12 Base62 characters).
func GuestID() (string, error) {
	result := make([]byte, GuestIDRawLength)

	for i := range GuestIDRawLength {
		num, err := rand.Int(rand.Reader, big.NewInt(Base62Len))
		if err != nil {
			return "", fmt.Errorf("failed to generate random number for guest id: %w", err)
		}

		result[i] = Base62Chars[num.Int64()]
	}

	return GuestIDPrefix + string(result), nil
}

// IsValidGuestID reports whether id is acceptable as a client-supplied guest ID.
// Clients generate their own IDs, so any 1-64 character string of letters, digits, '_' or '-' is accepted.
func IsValidGuestID(id string) bool {
	if id == "" || len(id) > MaxGuestIDLength {
		return false
	}

	for _, char := range id {
		switch {
		case char >= '0' && char <= '9':
		case char >= 'a' && char <= 'z':
		case char >= 'A' && char <= 'Z':
		case char == '_' || char == '-':
		default:
			return false
		}
	}

	return true
}

// ConnectionHandle returns a fresh, process-unique handle for a live connection.
func ConnectionHandle() string {
	return uuid.New().String()
}

// MessageID generates a UUID v4 string used as a chat message identifier.
func MessageID() string {
	return uuid.New().String()
}
