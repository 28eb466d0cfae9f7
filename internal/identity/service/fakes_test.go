package service

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"

	auditdomain "auth-service/internal/audit/domain"
	rtdomain "auth-service/internal/refreshtoken/domain"
	userdomain "auth-service/internal/user/domain"
	userrepo "auth-service/internal/user/repository"
)

type memUserRepo struct {
	mu        sync.Mutex
	byID      map[uuid.UUID]*userdomain.User
	updateErr error
}

func newMemUserRepo() *memUserRepo {
	return &memUserRepo{byID: make(map[uuid.UUID]*userdomain.User)}
}

func (r *memUserRepo) GetByID(ctx context.Context, id uuid.UUID) (*userdomain.User, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if u, ok := r.byID[id]; ok {
		cp := *u
		return &cp, nil
	}
	return nil, nil
}

func (r *memUserRepo) GetByEmail(ctx context.Context, email string) (*userdomain.User, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, u := range r.byID {
		if u.Email == email {
			cp := *u
			return &cp, nil
		}
	}
	return nil, nil
}

func (r *memUserRepo) GetByResetTokenHash(ctx context.Context, hash string) (*userdomain.User, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, u := range r.byID {
		if hash != "" && u.PasswordResetTokenHash == hash {
			cp := *u
			return &cp, nil
		}
	}
	return nil, nil
}

func (r *memUserRepo) Create(ctx context.Context, u *userdomain.User) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, existing := range r.byID {
		if existing.Email == u.Email {
			return userrepo.ErrDuplicateEmail
		}
	}
	cp := *u
	r.byID[u.ID] = &cp
	return nil
}

// write applies fn to the stored user under the lock. updateErr fails every write.
func (r *memUserRepo) write(id uuid.UUID, fn func(u *userdomain.User) bool) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.updateErr != nil {
		return false, r.updateErr
	}
	u, ok := r.byID[id]
	if !ok {
		return false, nil
	}
	return fn(u), nil
}

func (r *memUserRepo) TouchLastLogin(ctx context.Context, id uuid.UUID, at time.Time) error {
	_, err := r.write(id, func(u *userdomain.User) bool {
		u.LastLoginAt = &at
		u.UpdatedAt = at
		return true
	})
	return err
}

func (r *memUserRepo) RehashPassword(ctx context.Context, id uuid.UUID, oldHash, newHash string, at time.Time) (bool, error) {
	return r.write(id, func(u *userdomain.User) bool {
		if u.HashedPassword != oldHash {
			return false
		}
		u.HashedPassword = newHash
		u.UpdatedAt = at
		return true
	})
}

func (r *memUserRepo) SetPassword(ctx context.Context, id uuid.UUID, oldHash, newHash string, at time.Time) (bool, error) {
	return r.write(id, func(u *userdomain.User) bool {
		if u.HashedPassword != oldHash {
			return false
		}
		u.HashedPassword = newHash
		u.ClearReset()
		u.UpdatedAt = at
		return true
	})
}

func (r *memUserRepo) SetResetToken(ctx context.Context, id uuid.UUID, tokenHash string, expires, at time.Time) error {
	_, err := r.write(id, func(u *userdomain.User) bool {
		u.PasswordResetTokenHash = tokenHash
		u.PasswordResetExpires = &expires
		u.UpdatedAt = at
		return true
	})
	return err
}

func (r *memUserRepo) ConsumeResetToken(ctx context.Context, tokenHash, newHash string, now time.Time) (uuid.UUID, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.updateErr != nil {
		return uuid.Nil, r.updateErr
	}
	for _, u := range r.byID {
		if tokenHash != "" && u.PasswordResetTokenHash == tokenHash && u.HasPendingReset(now) {
			u.HashedPassword = newHash
			u.ClearReset()
			u.UpdatedAt = now
			return u.ID, nil
		}
	}
	return uuid.Nil, nil
}

func (r *memUserRepo) get(id uuid.UUID) *userdomain.User {
	u, _ := r.GetByID(context.Background(), id)
	return u
}

func (r *memUserRepo) put(u *userdomain.User) {
	r.mu.Lock()
	defer r.mu.Unlock()
	cp := *u
	r.byID[u.ID] = &cp
}

type memRefreshRepo struct {
	mu     sync.Mutex
	byHash map[string]*rtdomain.RefreshToken
}

func newMemRefreshRepo() *memRefreshRepo {
	return &memRefreshRepo{byHash: make(map[string]*rtdomain.RefreshToken)}
}

func (r *memRefreshRepo) Create(ctx context.Context, t *rtdomain.RefreshToken) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	cp := *t
	r.byHash[t.TokenHash] = &cp
	return nil
}

func (r *memRefreshRepo) GetByTokenHash(ctx context.Context, hash string) (*rtdomain.RefreshToken, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if t, ok := r.byHash[hash]; ok {
		cp := *t
		return &cp, nil
	}
	return nil, nil
}

func (r *memRefreshRepo) MarkRevoked(ctx context.Context, hash string, at time.Time) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	t, ok := r.byHash[hash]
	if !ok || t.IsRevoked {
		return false, nil
	}
	t.IsRevoked = true
	t.RevokedAt = &at
	return true, nil
}

func (r *memRefreshRepo) ListActiveByUser(ctx context.Context, userID uuid.UUID) ([]*rtdomain.RefreshToken, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []*rtdomain.RefreshToken
	for _, t := range r.byHash {
		if t.UserID == userID && !t.IsRevoked {
			cp := *t
			out = append(out, &cp)
		}
	}
	return out, nil
}

func (r *memRefreshRepo) count(userID uuid.UUID) int {
	r.mu.Lock()
	defer r.mu.Unlock()
	n := 0
	for _, t := range r.byHash {
		if t.UserID == userID {
			n++
		}
	}
	return n
}

type auditEntry struct {
	UserID   uuid.UUID
	Action   string
	Metadata string
}

type memAudit struct {
	mu      sync.Mutex
	entries []auditEntry
}

func (a *memAudit) LogEvent(ctx context.Context, userID uuid.UUID, action, metadata string) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.entries = append(a.entries, auditEntry{UserID: userID, Action: action, Metadata: metadata})
}

func (a *memAudit) actions() []string {
	a.mu.Lock()
	defer a.mu.Unlock()
	out := make([]string, len(a.entries))
	for i, e := range a.entries {
		out[i] = e.Action
	}
	return out
}

func (a *memAudit) last() auditEntry {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.entries[len(a.entries)-1]
}

func (a *memAudit) ListByUser(ctx context.Context, userID uuid.UUID, limit, offset int32) ([]*auditdomain.AuditLog, error) {
	a.mu.Lock()
	defer a.mu.Unlock()
	var out []*auditdomain.AuditLog
	for i := len(a.entries) - 1; i >= 0; i-- {
		e := a.entries[i]
		if e.UserID == userID {
			out = append(out, &auditdomain.AuditLog{UserID: e.UserID, Action: e.Action, Metadata: e.Metadata})
		}
	}
	if int(offset) >= len(out) {
		return nil, nil
	}
	out = out[offset:]
	if int(limit) < len(out) {
		out = out[:limit]
	}
	return out, nil
}

type recordingSender struct {
	mu     sync.Mutex
	tokens map[string]string
	err    error
}

func (s *recordingSender) SendResetToken(ctx context.Context, email, token string, expiresAt time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.err != nil {
		return s.err
	}
	if s.tokens == nil {
		s.tokens = make(map[string]string)
	}
	s.tokens[email] = token
	return nil
}

func (s *recordingSender) token(email string) string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.tokens[email]
}

// interleavingUsers runs an armed hook once, right after the next GetByEmail or GetByID
// returns, to land a write between a flow's read and its own write.
type interleavingUsers struct {
	*memUserRepo
	hookMu sync.Mutex
	hook   func()
}

func (r *interleavingUsers) arm(hook func()) {
	r.hookMu.Lock()
	defer r.hookMu.Unlock()
	r.hook = hook
}

func (r *interleavingUsers) fire() {
	r.hookMu.Lock()
	hook := r.hook
	r.hook = nil
	r.hookMu.Unlock()
	if hook != nil {
		hook()
	}
}

func (r *interleavingUsers) GetByEmail(ctx context.Context, email string) (*userdomain.User, error) {
	u, err := r.memUserRepo.GetByEmail(ctx, email)
	r.fire()
	return u, err
}

func (r *interleavingUsers) GetByID(ctx context.Context, id uuid.UUID) (*userdomain.User, error) {
	u, err := r.memUserRepo.GetByID(ctx, id)
	r.fire()
	return u, err
}
