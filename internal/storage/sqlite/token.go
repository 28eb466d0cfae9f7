package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/google/uuid"

	"auth-service/internal/refreshtoken/domain"
)

const tokenColumns = `id, token_hash, user_id, expires_at, is_revoked, revoked_at, user_agent, ip_address, created_at`

// RefreshTokenRepository implements the refresh token repository on SQLite.
type RefreshTokenRepository struct {
	db *sql.DB
}

// Create stores a new refresh token record.
func (r *RefreshTokenRepository) Create(ctx context.Context, t *domain.RefreshToken) error {
	_, err := r.db.ExecContext(ctx, `INSERT INTO refresh_tokens (`+tokenColumns+`)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		t.ID, t.TokenHash, t.UserID, t.ExpiresAt.UTC(), t.IsRevoked, nullTime(t.RevokedAt),
		t.UserAgent, t.IPAddress, t.CreatedAt.UTC(),
	)
	if err != nil {
		return fmt.Errorf("failed to save refresh token: %w", err)
	}
	return nil
}

// GetByTokenHash returns the record for hash, or nil if not found.
func (r *RefreshTokenRepository) GetByTokenHash(ctx context.Context, hash string) (*domain.RefreshToken, error) {
	rows, err := r.db.QueryContext(ctx, `SELECT `+tokenColumns+` FROM refresh_tokens WHERE token_hash = ?`, hash)
	if err != nil {
		return nil, fmt.Errorf("failed to get refresh token: %w", err)
	}
	list, err := scanTokens(rows)
	if err != nil {
		return nil, err
	}
	if len(list) == 0 {
		return nil, nil
	}
	return list[0], nil
}

// MarkRevoked revokes an unrevoked record and reports whether this call changed it.
func (r *RefreshTokenRepository) MarkRevoked(ctx context.Context, hash string, at time.Time) (bool, error) {
	result, err := r.db.ExecContext(ctx,
		`UPDATE refresh_tokens SET is_revoked = 1, revoked_at = ? WHERE token_hash = ? AND is_revoked = 0`,
		at.UTC(), hash)
	if err != nil {
		return false, fmt.Errorf("failed to revoke refresh token: %w", err)
	}
	n, err := result.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("failed to get rows affected: %w", err)
	}
	return n == 1, nil
}

// ListActiveByUser returns all unrevoked records for userID, oldest first.
func (r *RefreshTokenRepository) ListActiveByUser(ctx context.Context, userID uuid.UUID) ([]*domain.RefreshToken, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT `+tokenColumns+` FROM refresh_tokens WHERE user_id = ? AND is_revoked = 0 ORDER BY created_at`, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to query user tokens: %w", err)
	}
	return scanTokens(rows)
}

func scanTokens(rows *sql.Rows) ([]*domain.RefreshToken, error) {
	defer func() {
		_ = rows.Close()
	}()
	var out []*domain.RefreshToken
	for rows.Next() {
		var (
			t         domain.RefreshToken
			revokedAt sql.NullTime
		)
		if err := rows.Scan(&t.ID, &t.TokenHash, &t.UserID, &t.ExpiresAt, &t.IsRevoked, &revokedAt,
			&t.UserAgent, &t.IPAddress, &t.CreatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan token: %w", err)
		}
		t.RevokedAt = timePtr(revokedAt)
		t.ExpiresAt = t.ExpiresAt.UTC()
		t.CreatedAt = t.CreatedAt.UTC()
		out = append(out, &t)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("rows iteration error: %w", err)
	}
	return out, nil
}
