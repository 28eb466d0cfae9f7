package sqlite

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/google/uuid"

	"auth-service/internal/audit/domain"
)

// AuditRepository implements the audit log repository on SQLite.
type AuditRepository struct {
	db *sql.DB
}

// Create appends one audit entry.
func (r *AuditRepository) Create(ctx context.Context, a *domain.AuditLog) error {
	var uid sql.NullString
	if a.UserID != uuid.Nil {
		uid = sql.NullString{String: a.UserID.String(), Valid: true}
	}
	_, err := r.db.ExecContext(ctx,
		`INSERT INTO audit_logs (id, user_id, action, resource, ip, metadata, created_at) VALUES (?, ?, ?, ?, ?, ?, ?)`,
		a.ID, uid, a.Action, a.Resource, a.IP, a.Metadata, a.CreatedAt.UTC())
	if err != nil {
		return fmt.Errorf("failed to save audit log: %w", err)
	}
	return nil
}

// ListByUser returns the user's audit entries, newest first.
func (r *AuditRepository) ListByUser(ctx context.Context, userID uuid.UUID, limit, offset int32) ([]*domain.AuditLog, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT id, user_id, action, resource, ip, metadata, created_at FROM audit_logs
		WHERE user_id = ? ORDER BY created_at DESC LIMIT ? OFFSET ?`, userID.String(), limit, offset)
	if err != nil {
		return nil, fmt.Errorf("failed to query audit logs: %w", err)
	}
	defer func() {
		_ = rows.Close()
	}()
	var out []*domain.AuditLog
	for rows.Next() {
		var (
			a   domain.AuditLog
			uid uuid.NullUUID
		)
		if err := rows.Scan(&a.ID, &uid, &a.Action, &a.Resource, &a.IP, &a.Metadata, &a.CreatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan audit log: %w", err)
		}
		a.UserID = uid.UUID
		a.CreatedAt = a.CreatedAt.UTC()
		out = append(out, &a)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("rows iteration error: %w", err)
	}
	return out, nil
}
