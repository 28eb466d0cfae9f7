package repository

import (
	"context"

	"github.com/google/uuid"

	"auth-service/internal/audit/domain"
)

// Repository defines persistence for audit logs.
type Repository interface {
	Create(ctx context.Context, a *domain.AuditLog) error
	// ListByUser returns the user's events, newest first.
	ListByUser(ctx context.Context, userID uuid.UUID, limit, offset int32) ([]*domain.AuditLog, error)
}
