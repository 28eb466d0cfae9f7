package domain

import (
	"errors"
	"time"

	"github.com/google/uuid"
)

// User is the core account entity. Email is stored normalized (trimmed, lower-case).
type User struct {
	ID             uuid.UUID
	Email          string
	FullName       string
	HashedPassword string
	IsActive       bool
	IsVerified     bool
	LastLoginAt    *time.Time
	// Reset fields are set together and cleared together.
	PasswordResetTokenHash string
	PasswordResetExpires   *time.Time
	CreatedAt              time.Time
	UpdatedAt              time.Time
}

// Validate validates the user for persistence. Returns an error describing the first validation failure.
func (u *User) Validate() error {
	if u.ID == uuid.Nil {
		return errors.New("id is required")
	}
	if u.Email == "" {
		return errors.New("email is required")
	}
	if u.HashedPassword == "" {
		return errors.New("hashed password is required")
	}
	return nil
}

// HasPendingReset reports whether a reset token is outstanding and unexpired at now.
func (u *User) HasPendingReset(now time.Time) bool {
	return u.PasswordResetTokenHash != "" && u.PasswordResetExpires != nil && now.Before(*u.PasswordResetExpires)
}

// ClearReset drops any outstanding reset token.
func (u *User) ClearReset() {
	u.PasswordResetTokenHash = ""
	u.PasswordResetExpires = nil
}
