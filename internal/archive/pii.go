package archive

import (
	"crypto/sha256"
	"encoding/hex"
	"strings"
)

// HashEmail returns the hex-encoded SHA-256 of the trimmed, lowercased address.
// Manifests carry this instead of the address so they can be shared for
// auditing without exposing contact data.
func HashEmail(email string) string {
	sum := sha256.Sum256([]byte(strings.ToLower(strings.TrimSpace(email))))
	return hex.EncodeToString(sum[:])
}
