package domain

import (
	"time"

	"github.com/google/uuid"
)

// RefreshToken is a persisted opaque refresh credential. Only the hash of the raw value is stored.
type RefreshToken struct {
	ID        uuid.UUID
	TokenHash string
	UserID    uuid.UUID
	ExpiresAt time.Time
	IsRevoked bool
	RevokedAt *time.Time
	UserAgent string
	IPAddress string
	CreatedAt time.Time
}

// ValidAt reports whether the token is unrevoked and unexpired at now.
func (t *RefreshToken) ValidAt(now time.Time) bool {
	return !t.IsRevoked && now.Before(t.ExpiresAt)
}
