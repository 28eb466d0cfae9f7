package security

import (
	"crypto/rand"
	"math/big"
)

const (
	alphanumeric = "ABCDEFGHIJKLMNOPQRSTUVWXYZabcdefghijklmnopqrstuvwxyz0123456789"
	digits       = "0123456789"

	DefaultSecureTokenLength  = 32
	DefaultNumericTokenLength = 6
)

// GenerateSecureToken returns a uniformly random [A-Za-z0-9] string. length <= 0 selects
// DefaultSecureTokenLength.
func GenerateSecureToken(length int) (string, error) {
	if length <= 0 {
		length = DefaultSecureTokenLength
	}
	return randomString(alphanumeric, length)
}

// GenerateNumericToken returns a random string of digits, such as a one-time code.
// length <= 0 selects DefaultNumericTokenLength.
func GenerateNumericToken(length int) (string, error) {
	if length <= 0 {
		length = DefaultNumericTokenLength
	}
	return randomString(digits, length)
}

func randomString(alphabet string, length int) (string, error) {
	max := big.NewInt(int64(len(alphabet)))
	out := make([]byte, length)
	for i := range out {
		n, err := rand.Int(rand.Reader, max)
		if err != nil {
			return "", err
		}
		out[i] = alphabet[n.Int64()]
	}
	return string(out), nil
}
