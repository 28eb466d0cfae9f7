package repository

import (
	"context"
	"database/sql"

	"github.com/google/uuid"

	"auth-service/internal/audit/domain"
)

type PostgresRepository struct {
	db *sql.DB
}

// NewPostgresRepository returns an audit log repository that uses the given db for persistence.
func NewPostgresRepository(db *sql.DB) *PostgresRepository {
	return &PostgresRepository{db: db}
}

// Create persists the audit log. The audit log must have ID set.
func (r *PostgresRepository) Create(ctx context.Context, a *domain.AuditLog) error {
	var uid uuid.NullUUID
	if a.UserID != uuid.Nil {
		uid = uuid.NullUUID{UUID: a.UserID, Valid: true}
	}
	_, err := r.db.ExecContext(ctx,
		`INSERT INTO audit_logs (id, user_id, action, resource, ip, metadata, created_at) VALUES ($1, $2, $3, $4, $5, $6, $7)`,
		a.ID, uid, a.Action, a.Resource, a.IP, a.Metadata, a.CreatedAt.UTC())
	return err
}

// ListByUser returns audit logs for userID, newest first, paginated by limit and offset.
func (r *PostgresRepository) ListByUser(ctx context.Context, userID uuid.UUID, limit, offset int32) ([]*domain.AuditLog, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT id, user_id, action, resource, ip, metadata, created_at FROM audit_logs
		WHERE user_id = $1 ORDER BY created_at DESC LIMIT $2 OFFSET $3`, userID, limit, offset)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []*domain.AuditLog
	for rows.Next() {
		var (
			a   domain.AuditLog
			uid uuid.NullUUID
		)
		if err := rows.Scan(&a.ID, &uid, &a.Action, &a.Resource, &a.IP, &a.Metadata, &a.CreatedAt); err != nil {
			return nil, err
		}
		a.UserID = uid.UUID
		out = append(out, &a)
	}
	return out, rows.Err()
}
