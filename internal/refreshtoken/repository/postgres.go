package repository

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/google/uuid"

	"auth-service/internal/refreshtoken/domain"
)

const tokenColumns = `id, token_hash, user_id, expires_at, is_revoked, revoked_at, user_agent, ip_address, created_at`

type PostgresRepository struct {
	db *sql.DB
}

// NewPostgresRepository returns a refresh token repository that uses the given db for persistence.
func NewPostgresRepository(db *sql.DB) *PostgresRepository {
	return &PostgresRepository{db: db}
}

// Create persists the record. ID and TokenHash must be set.
func (r *PostgresRepository) Create(ctx context.Context, t *domain.RefreshToken) error {
	_, err := r.db.ExecContext(ctx, `INSERT INTO refresh_tokens (`+tokenColumns+`)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)`,
		t.ID, t.TokenHash, t.UserID, t.ExpiresAt.UTC(), t.IsRevoked, nullTime(t.RevokedAt),
		t.UserAgent, t.IPAddress, t.CreatedAt.UTC(),
	)
	return err
}

// GetByTokenHash returns the record for hash, or nil if not found.
// It returns an error only for database failures, not for missing rows.
func (r *PostgresRepository) GetByTokenHash(ctx context.Context, hash string) (*domain.RefreshToken, error) {
	t, err := scanToken(r.db.QueryRowContext(ctx, `SELECT `+tokenColumns+` FROM refresh_tokens WHERE token_hash = $1`, hash))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}
	return t, nil
}

// MarkRevoked sets is_revoked on an unrevoked record and reports whether this call changed it.
func (r *PostgresRepository) MarkRevoked(ctx context.Context, hash string, at time.Time) (bool, error) {
	res, err := r.db.ExecContext(ctx,
		`UPDATE refresh_tokens SET is_revoked = TRUE, revoked_at = $2 WHERE token_hash = $1 AND NOT is_revoked`,
		hash, at.UTC())
	if err != nil {
		return false, err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, err
	}
	return n == 1, nil
}

// ListActiveByUser returns all unrevoked records for userID, oldest first.
func (r *PostgresRepository) ListActiveByUser(ctx context.Context, userID uuid.UUID) ([]*domain.RefreshToken, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT `+tokenColumns+` FROM refresh_tokens WHERE user_id = $1 AND NOT is_revoked ORDER BY created_at`, userID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []*domain.RefreshToken
	for rows.Next() {
		t, err := scanToken(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, t)
	}
	return out, rows.Err()
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanToken(row rowScanner) (*domain.RefreshToken, error) {
	var (
		t         domain.RefreshToken
		revokedAt sql.NullTime
	)
	if err := row.Scan(&t.ID, &t.TokenHash, &t.UserID, &t.ExpiresAt, &t.IsRevoked, &revokedAt,
		&t.UserAgent, &t.IPAddress, &t.CreatedAt); err != nil {
		return nil, err
	}
	if revokedAt.Valid {
		at := revokedAt.Time.UTC()
		t.RevokedAt = &at
	}
	t.ExpiresAt = t.ExpiresAt.UTC()
	t.CreatedAt = t.CreatedAt.UTC()
	return &t, nil
}

func nullTime(t *time.Time) sql.NullTime {
	if t == nil {
		return sql.NullTime{}
	}
	return sql.NullTime{Time: t.UTC(), Valid: true}
}
