package repository

import (
	"context"
	"time"

	"github.com/google/uuid"

	"auth-service/internal/refreshtoken/domain"
)

// Repository defines persistence for refresh tokens.
type Repository interface {
	Create(ctx context.Context, t *domain.RefreshToken) error
	// GetByTokenHash returns the record for hash regardless of state, or nil if none exists.
	GetByTokenHash(ctx context.Context, hash string) (*domain.RefreshToken, error)
	// MarkRevoked revokes the record only if it is not already revoked. changed is true for
	// exactly one caller per record.
	MarkRevoked(ctx context.Context, hash string, at time.Time) (changed bool, err error)
	// ListActiveByUser returns the user's unrevoked records, expired ones included.
	ListActiveByUser(ctx context.Context, userID uuid.UUID) ([]*domain.RefreshToken, error)
}
