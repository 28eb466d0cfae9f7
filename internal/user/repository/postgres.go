package repository

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/google/uuid"

	"auth-service/internal/db"
	"auth-service/internal/user/domain"
)

const userColumns = `id, email, full_name, hashed_password, is_active, is_verified, last_login_at,
	password_reset_token_hash, password_reset_expires, created_at, updated_at`

var _ Repository = (*PostgresRepository)(nil)

type PostgresRepository struct {
	db *sql.DB
}

// NewPostgresRepository returns a user repository that uses the given db for persistence.
func NewPostgresRepository(db *sql.DB) *PostgresRepository {
	return &PostgresRepository{db: db}
}

// GetByID returns the user for id, or nil if not found.
// It returns an error only for database failures, not for missing rows.
func (r *PostgresRepository) GetByID(ctx context.Context, id uuid.UUID) (*domain.User, error) {
	return r.getOne(ctx, `SELECT `+userColumns+` FROM users WHERE id = $1`, id)
}

// GetByEmail returns the user with the given email, or nil if not found.
func (r *PostgresRepository) GetByEmail(ctx context.Context, email string) (*domain.User, error) {
	return r.getOne(ctx, `SELECT `+userColumns+` FROM users WHERE email = $1`, email)
}

// GetByResetTokenHash returns the user holding tokenHash, or nil if none does.
func (r *PostgresRepository) GetByResetTokenHash(ctx context.Context, tokenHash string) (*domain.User, error) {
	if tokenHash == "" {
		return nil, nil
	}
	return r.getOne(ctx, `SELECT `+userColumns+` FROM users WHERE password_reset_token_hash = $1`, tokenHash)
}

func (r *PostgresRepository) getOne(ctx context.Context, query string, arg any) (*domain.User, error) {
	u, err := scanUser(r.db.QueryRowContext(ctx, query, arg))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}
	return u, nil
}

// Create persists the user. The user must have ID set; it is not assigned by this method.
func (r *PostgresRepository) Create(ctx context.Context, u *domain.User) error {
	_, err := r.db.ExecContext(ctx, `INSERT INTO users (`+userColumns+`)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)`,
		u.ID, u.Email, u.FullName, u.HashedPassword, u.IsActive, u.IsVerified,
		nullTime(u.LastLoginAt), nullString(u.PasswordResetTokenHash), nullTime(u.PasswordResetExpires),
		u.CreatedAt, u.UpdatedAt,
	)
	if db.IsUniqueViolation(err) {
		return ErrDuplicateEmail
	}
	return err
}

// TouchLastLogin records a successful login at at.
func (r *PostgresRepository) TouchLastLogin(ctx context.Context, id uuid.UUID, at time.Time) error {
	_, err := r.db.ExecContext(ctx,
		`UPDATE users SET last_login_at = $2, updated_at = $2 WHERE id = $1`, id, at.UTC())
	return err
}

// RehashPassword swaps the hash only while oldHash is current; a pending reset survives.
func (r *PostgresRepository) RehashPassword(ctx context.Context, id uuid.UUID, oldHash, newHash string, at time.Time) (bool, error) {
	return r.execOne(ctx, `UPDATE users SET hashed_password = $3, updated_at = $4
		WHERE id = $1 AND hashed_password = $2`, id, oldHash, newHash, at.UTC())
}

// SetPassword swaps the hash while oldHash is current and drops any pending reset token.
func (r *PostgresRepository) SetPassword(ctx context.Context, id uuid.UUID, oldHash, newHash string, at time.Time) (bool, error) {
	return r.execOne(ctx, `UPDATE users SET hashed_password = $3,
		password_reset_token_hash = NULL, password_reset_expires = NULL, updated_at = $4
		WHERE id = $1 AND hashed_password = $2`, id, oldHash, newHash, at.UTC())
}

// SetResetToken stores a pending reset token, replacing any earlier one.
func (r *PostgresRepository) SetResetToken(ctx context.Context, id uuid.UUID, tokenHash string, expires, at time.Time) error {
	_, err := r.db.ExecContext(ctx, `UPDATE users SET
		password_reset_token_hash = $2, password_reset_expires = $3, updated_at = $4
		WHERE id = $1`, id, tokenHash, expires.UTC(), at.UTC())
	return err
}

// ConsumeResetToken sets newHash for the holder of an unexpired tokenHash and clears the token.
// It returns uuid.Nil when the token is unknown, expired or already used.
func (r *PostgresRepository) ConsumeResetToken(ctx context.Context, tokenHash, newHash string, now time.Time) (uuid.UUID, error) {
	if tokenHash == "" {
		return uuid.Nil, nil
	}
	var id uuid.UUID
	err := r.db.QueryRowContext(ctx, `UPDATE users SET hashed_password = $2,
		password_reset_token_hash = NULL, password_reset_expires = NULL, updated_at = $3
		WHERE password_reset_token_hash = $1 AND password_reset_expires > $3
		RETURNING id`, tokenHash, newHash, now.UTC()).Scan(&id)
	if errors.Is(err, sql.ErrNoRows) {
		return uuid.Nil, nil
	}
	if err != nil {
		return uuid.Nil, err
	}
	return id, nil
}

func (r *PostgresRepository) execOne(ctx context.Context, query string, args ...any) (bool, error) {
	res, err := r.db.ExecContext(ctx, query, args...)
	if err != nil {
		return false, err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, err
	}
	return n == 1, nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanUser(row rowScanner) (*domain.User, error) {
	var (
		u          domain.User
		lastLogin  sql.NullTime
		resetHash  sql.NullString
		resetUntil sql.NullTime
	)
	if err := row.Scan(&u.ID, &u.Email, &u.FullName, &u.HashedPassword, &u.IsActive, &u.IsVerified,
		&lastLogin, &resetHash, &resetUntil, &u.CreatedAt, &u.UpdatedAt); err != nil {
		return nil, err
	}
	u.LastLoginAt = timePtr(lastLogin)
	u.PasswordResetTokenHash = resetHash.String
	u.PasswordResetExpires = timePtr(resetUntil)
	return &u, nil
}

func nullString(s string) sql.NullString {
	return sql.NullString{String: s, Valid: s != ""}
}

func nullTime(t *time.Time) sql.NullTime {
	if t == nil {
		return sql.NullTime{}
	}
	return sql.NullTime{Time: t.UTC(), Valid: true}
}

func timePtr(nt sql.NullTime) *time.Time {
	if !nt.Valid {
		return nil
	}
	t := nt.Time.UTC()
	return &t
}
