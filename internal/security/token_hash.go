package security

import (
	"crypto/sha256"
	"crypto/subtle"
	"encoding/hex"
)

// HashToken returns the hex SHA-256 of an opaque token. Refresh and password-reset tokens
// are stored only in this form.
func HashToken(token string) string {
	h := sha256.Sum256([]byte(token))
	return hex.EncodeToString(h[:])
}

// TokenHashEqual performs constant-time comparison of the provided token's hash
// with the stored hash.
func TokenHashEqual(providedToken, storedHash string) bool {
	providedHash := HashToken(providedToken)
	return subtle.ConstantTimeCompare([]byte(providedHash), []byte(storedHash)) == 1
}
