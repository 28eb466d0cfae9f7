package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"auth-service/internal/user/domain"
	userrepo "auth-service/internal/user/repository"
)

const userColumns = `id, email, full_name, hashed_password, is_active, is_verified, last_login_at,
	password_reset_token_hash, password_reset_expires, created_at, updated_at`

var _ userrepo.Repository = (*UserRepository)(nil)

// UserRepository implements the user repository on SQLite.
type UserRepository struct {
	db *sql.DB
}

// GetByID returns the user for id, or nil if not found.
func (r *UserRepository) GetByID(ctx context.Context, id uuid.UUID) (*domain.User, error) {
	return r.getOne(ctx, `SELECT `+userColumns+` FROM users WHERE id = ?`, id)
}

// GetByEmail returns the user with the given email, or nil if not found.
func (r *UserRepository) GetByEmail(ctx context.Context, email string) (*domain.User, error) {
	return r.getOne(ctx, `SELECT `+userColumns+` FROM users WHERE email = ?`, email)
}

// GetByResetTokenHash returns the user holding tokenHash, or nil if none does.
func (r *UserRepository) GetByResetTokenHash(ctx context.Context, tokenHash string) (*domain.User, error) {
	if tokenHash == "" {
		return nil, nil
	}
	return r.getOne(ctx, `SELECT `+userColumns+` FROM users WHERE password_reset_token_hash = ?`, tokenHash)
}

func (r *UserRepository) getOne(ctx context.Context, query string, arg any) (*domain.User, error) {
	var (
		u          domain.User
		lastLogin  sql.NullTime
		resetHash  sql.NullString
		resetUntil sql.NullTime
	)
	err := r.db.QueryRowContext(ctx, query, arg).Scan(
		&u.ID, &u.Email, &u.FullName, &u.HashedPassword, &u.IsActive, &u.IsVerified,
		&lastLogin, &resetHash, &resetUntil, &u.CreatedAt, &u.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to get user: %w", err)
	}
	u.LastLoginAt = timePtr(lastLogin)
	u.PasswordResetTokenHash = resetHash.String
	u.PasswordResetExpires = timePtr(resetUntil)
	u.CreatedAt = u.CreatedAt.UTC()
	u.UpdatedAt = u.UpdatedAt.UTC()
	return &u, nil
}

// Create inserts the user; a taken email yields ErrDuplicateEmail.
func (r *UserRepository) Create(ctx context.Context, u *domain.User) error {
	_, err := r.db.ExecContext(ctx, `INSERT INTO users (`+userColumns+`)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		u.ID, u.Email, u.FullName, u.HashedPassword, u.IsActive, u.IsVerified,
		nullTime(u.LastLoginAt), nullString(u.PasswordResetTokenHash), nullTime(u.PasswordResetExpires),
		u.CreatedAt.UTC(), u.UpdatedAt.UTC(),
	)
	if err != nil {
		if isUniqueViolation(err) {
			return userrepo.ErrDuplicateEmail
		}
		return fmt.Errorf("failed to create user: %w", err)
	}
	return nil
}

// TouchLastLogin records a successful login at at.
func (r *UserRepository) TouchLastLogin(ctx context.Context, id uuid.UUID, at time.Time) error {
	_, err := r.db.ExecContext(ctx,
		`UPDATE users SET last_login_at = ?, updated_at = ? WHERE id = ?`, at.UTC(), at.UTC(), id)
	if err != nil {
		return fmt.Errorf("failed to record login: %w", err)
	}
	return nil
}

// RehashPassword swaps the hash only while oldHash is current; a pending reset survives.
func (r *UserRepository) RehashPassword(ctx context.Context, id uuid.UUID, oldHash, newHash string, at time.Time) (bool, error) {
	return r.execOne(ctx, `UPDATE users SET hashed_password = ?, updated_at = ?
		WHERE id = ? AND hashed_password = ?`, newHash, at.UTC(), id, oldHash)
}

// SetPassword swaps the hash while oldHash is current and drops any pending reset token.
func (r *UserRepository) SetPassword(ctx context.Context, id uuid.UUID, oldHash, newHash string, at time.Time) (bool, error) {
	return r.execOne(ctx, `UPDATE users SET hashed_password = ?,
		password_reset_token_hash = NULL, password_reset_expires = NULL, updated_at = ?
		WHERE id = ? AND hashed_password = ?`, newHash, at.UTC(), id, oldHash)
}

// SetResetToken stores a pending reset token, replacing any earlier one.
func (r *UserRepository) SetResetToken(ctx context.Context, id uuid.UUID, tokenHash string, expires, at time.Time) error {
	_, err := r.db.ExecContext(ctx, `UPDATE users SET
		password_reset_token_hash = ?, password_reset_expires = ?, updated_at = ?
		WHERE id = ?`, tokenHash, expires.UTC(), at.UTC(), id)
	if err != nil {
		return fmt.Errorf("failed to set reset token: %w", err)
	}
	return nil
}

// ConsumeResetToken sets newHash for the holder of an unexpired tokenHash and clears the token.
// Expiry is checked in Go; the UPDATE is conditional on the token hash, so only one caller
// can clear it.
func (r *UserRepository) ConsumeResetToken(ctx context.Context, tokenHash, newHash string, now time.Time) (uuid.UUID, error) {
	u, err := r.GetByResetTokenHash(ctx, tokenHash)
	if err != nil || u == nil || !u.HasPendingReset(now) {
		return uuid.Nil, err
	}
	ok, err := r.execOne(ctx, `UPDATE users SET hashed_password = ?,
		password_reset_token_hash = NULL, password_reset_expires = NULL, updated_at = ?
		WHERE id = ? AND password_reset_token_hash = ?`, newHash, now.UTC(), u.ID, tokenHash)
	if err != nil || !ok {
		return uuid.Nil, err
	}
	return u.ID, nil
}

func (r *UserRepository) execOne(ctx context.Context, query string, args ...any) (bool, error) {
	result, err := r.db.ExecContext(ctx, query, args...)
	if err != nil {
		return false, fmt.Errorf("failed to update user: %w", err)
	}
	n, err := result.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("failed to get rows affected: %w", err)
	}
	return n == 1, nil
}
