package repository

import (
	"context"
	"time"

	"github.com/google/uuid"

	"auth-service/internal/db"
	"auth-service/internal/user/domain"
)

const defaultTimeout = 5 * time.Second

var _ Repository = (*TimeoutRepository)(nil)

// TimeoutRepository bounds every call of the wrapped Repository and reports deadline and
// connection failures as db.ErrTransient.
type TimeoutRepository struct {
	next    Repository
	timeout time.Duration
}

// WithTimeout wraps next. Non-positive timeouts use five seconds.
func WithTimeout(next Repository, timeout time.Duration) *TimeoutRepository {
	if timeout <= 0 {
		timeout = defaultTimeout
	}
	return &TimeoutRepository{next: next, timeout: timeout}
}

func (r *TimeoutRepository) GetByID(ctx context.Context, id uuid.UUID) (*domain.User, error) {
	ctx, cancel := context.WithTimeout(ctx, r.timeout)
	defer cancel()
	u, err := r.next.GetByID(ctx, id)
	return u, db.MapTransient(err)
}

func (r *TimeoutRepository) GetByEmail(ctx context.Context, email string) (*domain.User, error) {
	ctx, cancel := context.WithTimeout(ctx, r.timeout)
	defer cancel()
	u, err := r.next.GetByEmail(ctx, email)
	return u, db.MapTransient(err)
}

func (r *TimeoutRepository) GetByResetTokenHash(ctx context.Context, tokenHash string) (*domain.User, error) {
	ctx, cancel := context.WithTimeout(ctx, r.timeout)
	defer cancel()
	u, err := r.next.GetByResetTokenHash(ctx, tokenHash)
	return u, db.MapTransient(err)
}

func (r *TimeoutRepository) Create(ctx context.Context, u *domain.User) error {
	ctx, cancel := context.WithTimeout(ctx, r.timeout)
	defer cancel()
	return db.MapTransient(r.next.Create(ctx, u))
}

func (r *TimeoutRepository) TouchLastLogin(ctx context.Context, id uuid.UUID, at time.Time) error {
	ctx, cancel := context.WithTimeout(ctx, r.timeout)
	defer cancel()
	return db.MapTransient(r.next.TouchLastLogin(ctx, id, at))
}

func (r *TimeoutRepository) RehashPassword(ctx context.Context, id uuid.UUID, oldHash, newHash string, at time.Time) (bool, error) {
	ctx, cancel := context.WithTimeout(ctx, r.timeout)
	defer cancel()
	ok, err := r.next.RehashPassword(ctx, id, oldHash, newHash, at)
	return ok, db.MapTransient(err)
}

func (r *TimeoutRepository) SetPassword(ctx context.Context, id uuid.UUID, oldHash, newHash string, at time.Time) (bool, error) {
	ctx, cancel := context.WithTimeout(ctx, r.timeout)
	defer cancel()
	ok, err := r.next.SetPassword(ctx, id, oldHash, newHash, at)
	return ok, db.MapTransient(err)
}

func (r *TimeoutRepository) SetResetToken(ctx context.Context, id uuid.UUID, tokenHash string, expires, at time.Time) error {
	ctx, cancel := context.WithTimeout(ctx, r.timeout)
	defer cancel()
	return db.MapTransient(r.next.SetResetToken(ctx, id, tokenHash, expires, at))
}

func (r *TimeoutRepository) ConsumeResetToken(ctx context.Context, tokenHash, newHash string, now time.Time) (uuid.UUID, error) {
	ctx, cancel := context.WithTimeout(ctx, r.timeout)
	defer cancel()
	id, err := r.next.ConsumeResetToken(ctx, tokenHash, newHash, now)
	return id, db.MapTransient(err)
}
