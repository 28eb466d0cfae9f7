// Package refreshtoken persists opaque refresh tokens. Raw values leave the store exactly once,
// from Create; only their SHA-256 hashes are stored.
package refreshtoken

import (
	"context"
	"time"

	"github.com/google/uuid"

	"auth-service/internal/db"
	"auth-service/internal/refreshtoken/domain"
	"auth-service/internal/refreshtoken/repository"
	"auth-service/internal/security"
)

const (
	tokenLength    = 48
	defaultTTLDays = 30
	defaultTimeout = 5 * time.Second
)

// ErrTransient is returned when the backing store timed out or lost its connection. Callers may retry.
var ErrTransient = db.ErrTransient

// ClientInfo is the optional client metadata recorded with a token.
type ClientInfo struct {
	UserAgent string
	IPAddress string
}

// Issued is the result of Create. Token is the raw value; it is not recoverable later.
type Issued struct {
	Record *domain.RefreshToken
	Token  string
}

// Option configures a Store.
type Option func(*Store)

// WithClock overrides the time source used for expiry and revocation timestamps.
func WithClock(now func() time.Time) Option {
	return func(s *Store) { s.nowF = now }
}

// WithTimeout bounds every repository call. Non-positive values keep the default.
func WithTimeout(d time.Duration) Option {
	return func(s *Store) {
		if d > 0 {
			s.timeout = d
		}
	}
}

// Store creates, looks up and revokes refresh tokens. Safe for concurrent use.
type Store struct {
	repo    repository.Repository
	nowF    func() time.Time
	timeout time.Duration
}

// NewStore returns a Store over repo.
func NewStore(repo repository.Repository, opts ...Option) *Store {
	s := &Store{
		repo:    repo,
		nowF:    func() time.Time { return time.Now().UTC() },
		timeout: defaultTimeout,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Create issues a new token for userID valid for ttlDays (30 when ttlDays <= 0).
func (s *Store) Create(ctx context.Context, userID uuid.UUID, ttlDays int, info ClientInfo) (*Issued, error) {
	if ttlDays <= 0 {
		ttlDays = defaultTTLDays
	}
	raw, err := security.GenerateSecureToken(tokenLength)
	if err != nil {
		return nil, err
	}
	now := s.nowF()
	rec := &domain.RefreshToken{
		ID:        uuid.New(),
		TokenHash: security.HashToken(raw),
		UserID:    userID,
		ExpiresAt: now.AddDate(0, 0, ttlDays),
		UserAgent: info.UserAgent,
		IPAddress: info.IPAddress,
		CreatedAt: now,
	}
	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()
	if err := s.repo.Create(ctx, rec); err != nil {
		return nil, mapErr(err)
	}
	return &Issued{Record: rec, Token: raw}, nil
}

// FindValid returns the record for token if it exists, is not revoked and has not expired.
// Otherwise it returns nil, nil.
func (s *Store) FindValid(ctx context.Context, token string) (*domain.RefreshToken, error) {
	if token == "" {
		return nil, nil
	}
	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()
	rec, err := s.repo.GetByTokenHash(ctx, security.HashToken(token))
	if err != nil {
		return nil, mapErr(err)
	}
	if rec == nil || !rec.ValidAt(s.nowF()) {
		return nil, nil
	}
	return rec, nil
}

// Revoke marks token revoked. It reports whether the token exists; revoking an already
// revoked token is a no-op that still reports true.
func (s *Store) Revoke(ctx context.Context, token string) (bool, error) {
	if token == "" {
		return false, nil
	}
	hash := security.HashToken(token)
	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()
	rec, err := s.repo.GetByTokenHash(ctx, hash)
	if err != nil {
		return false, mapErr(err)
	}
	if rec == nil {
		return false, nil
	}
	if _, err := s.repo.MarkRevoked(ctx, hash, s.nowF()); err != nil {
		return false, mapErr(err)
	}
	return true, nil
}

// RevokeFirst revokes token and reports whether this call was the one that revoked it.
// Of any number of concurrent callers, at most one sees true.
func (s *Store) RevokeFirst(ctx context.Context, token string) (bool, error) {
	if token == "" {
		return false, nil
	}
	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()
	changed, err := s.repo.MarkRevoked(ctx, security.HashToken(token), s.nowF())
	if err != nil {
		return false, mapErr(err)
	}
	return changed, nil
}

// RevokeAllForUser revokes every unrevoked token of userID and returns how many this call revoked.
func (s *Store) RevokeAllForUser(ctx context.Context, userID uuid.UUID) (int, error) {
	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()
	active, err := s.repo.ListActiveByUser(ctx, userID)
	if err != nil {
		return 0, mapErr(err)
	}
	now := s.nowF()
	revoked := 0
	for _, rec := range active {
		changed, err := s.repo.MarkRevoked(ctx, rec.TokenHash, now)
		if err != nil {
			return revoked, mapErr(err)
		}
		if changed {
			revoked++
		}
	}
	return revoked, nil
}

func mapErr(err error) error {
	return db.MapTransient(err)
}
