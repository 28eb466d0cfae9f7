package repository

import (
	"context"
	"time"

	"github.com/google/uuid"

	"auth-service/internal/user/domain"
)

// Repository defines persistence for users. Lookups return nil, nil when no row matches.
//
// There is no whole-row update: each write touches only the columns it owns, and password
// writes are conditional so a stale read can never restore an old hash or reset token.
type Repository interface {
	GetByID(ctx context.Context, id uuid.UUID) (*domain.User, error)
	GetByEmail(ctx context.Context, email string) (*domain.User, error)
	// GetByResetTokenHash returns the user holding the given password-reset token hash.
	GetByResetTokenHash(ctx context.Context, tokenHash string) (*domain.User, error)
	// Create fails with ErrDuplicateEmail when the email is taken.
	Create(ctx context.Context, u *domain.User) error
	// TouchLastLogin sets last_login_at. A missing row is not an error.
	TouchLastLogin(ctx context.Context, id uuid.UUID, at time.Time) error
	// RehashPassword replaces oldHash with newHash only while oldHash is still stored.
	// A pending reset token is kept.
	RehashPassword(ctx context.Context, id uuid.UUID, oldHash, newHash string, at time.Time) (bool, error)
	// SetPassword replaces oldHash with newHash and clears any pending reset token. It reports
	// false when the stored hash is no longer oldHash.
	SetPassword(ctx context.Context, id uuid.UUID, oldHash, newHash string, at time.Time) (bool, error)
	// SetResetToken stores a pending reset token hash and its expiry.
	SetResetToken(ctx context.Context, id uuid.UUID, tokenHash string, expires, at time.Time) error
	// ConsumeResetToken sets newHash for the holder of tokenHash if the token is unexpired at now,
	// clearing the token in the same statement. It returns uuid.Nil when no row matched, so of
	// concurrent calls with one token at most one succeeds.
	ConsumeResetToken(ctx context.Context, tokenHash, newHash string, now time.Time) (uuid.UUID, error)
}
