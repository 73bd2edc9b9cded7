// Package sharecode turns beat ids into the short codes used in storefront
// share links, and generates the provisional checkout references bound to an
// inventory lock before the processor session exists.
package sharecode

import (
	"crypto/rand"
	"fmt"
	"strings"
)

// Alphabet für die Umwandlung (62 Zeichen: 0-9, a-z, A-Z)
const alphabet = "0123456789abcdefghijklmnopqrstuvwxyzABCDEFGHIJKLMNOPQRSTUVWXYZ"

// CheckoutRefPrefix marks a lock row whose session binding is still the
// provisional reference from acquire time, not a processor session id.
const CheckoutRefPrefix = "ref_"

const checkoutRefLength = 24

// NewCheckoutRef creates a cryptographically secure random reference for a
// freshly acquired beat lock. The real processor session id replaces it once
// the session exists.
func NewCheckoutRef() (string, error) {
	slug, err := randomBase62(checkoutRefLength)
	if err != nil {
		return "", err
	}
	return CheckoutRefPrefix + slug, nil
}

// IsCheckoutRef reports whether a session binding is still provisional.
func IsCheckoutRef(sessionID string) bool {
	return strings.HasPrefix(sessionID, CheckoutRefPrefix)
}

// randomBase62 creates a cryptographically secure random Base62 string.
func randomBase62(length int) (string, error) {
	if length <= 0 {
		return "", fmt.Errorf("invalid code length: %d", length)
	}

	// Rejection sampling to avoid modulo bias.
	// 248 is the largest multiple of 62 below 256.
	const maxRandomByte = 248

	code := make([]byte, length)
	buf := make([]byte, length*2)
	written := 0

	for written < length {
		if _, err := rand.Read(buf); err != nil {
			return "", fmt.Errorf("failed to read secure random bytes: %w", err)
		}

		for _, b := range buf {
			if b >= maxRandomByte {
				continue
			}
			code[written] = alphabet[int(b)%len(alphabet)]
			written++
			if written == length {
				break
			}
		}
	}

	return string(code), nil
}

// ForBeat wandelt eine Beat-ID in einen kurzen alphanumerischen Share-Code um
// Ähnlich wie bei URL-Shortenern wird jede Zahl in eine Basis-62 Darstellung umgewandelt
func ForBeat(id uint) string {
	if id == 0 {
		return string(alphabet[0])
	}

	base := len(alphabet)
	encoded := strings.Builder{}

	for id > 0 {
		remained := id % uint(base)
		encoded.WriteByte(alphabet[remained])
		id = id / uint(base)
	}

	// Umkehren des Strings, da wir von rechts nach links gearbeitet haben
	reversed := make([]byte, encoded.Len())
	str := encoded.String()
	for i := 0; i < encoded.Len(); i++ {
		reversed[encoded.Len()-1-i] = str[i]
	}

	return string(reversed)
}

// ParseBeat wandelt einen Share-Code zurück in eine Beat-ID. Codes mit
// Zeichen außerhalb des Alphabets liefern 0, damit geratene Links sauber
// auf 404 laufen.
func ParseBeat(code string) uint {
	base := len(alphabet)
	var id uint = 0

	for i := 0; i < len(code); i++ {
		value := strings.IndexByte(alphabet, code[i])
		if value == -1 {
			return 0
		}
		id = id*uint(base) + uint(value)
	}

	return id
}
