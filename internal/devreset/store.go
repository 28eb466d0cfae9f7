// Package devreset keeps the latest password-reset token per email in memory so it can be read
// back over DevService. It is wired only when APP_ENV is development.
package devreset

import (
	"context"
	"strings"
	"sync"
	"time"
)

// Store holds plain reset tokens by email for dev-only retrieval. Not used in production.
type Store interface {
	// Get returns the latest token for email if present and not expired.
	Get(ctx context.Context, email string) (token string, expiresAt time.Time, ok bool)
}

type entry struct {
	token     string
	expiresAt time.Time
}

// Outbox is an in-memory Store that also acts as the reset token sender.
type Outbox struct {
	mu   sync.RWMutex
	m    map[string]entry
	nowF func() time.Time
}

// NewOutbox returns an empty dev outbox.
func NewOutbox() *Outbox {
	return &Outbox{
		m:    make(map[string]entry),
		nowF: func() time.Time { return time.Now().UTC() },
	}
}

func key(email string) string { return strings.ToLower(strings.TrimSpace(email)) }

// SendResetToken records token for email, replacing any earlier one.
func (o *Outbox) SendResetToken(ctx context.Context, email, token string, expiresAt time.Time) error {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.m[key(email)] = entry{token: token, expiresAt: expiresAt}
	return nil
}

// Get returns the token for email if present and not expired. Expired entries are dropped.
func (o *Outbox) Get(ctx context.Context, email string) (string, time.Time, bool) {
	k := key(email)
	o.mu.RLock()
	e, ok := o.m[k]
	o.mu.RUnlock()
	if !ok {
		return "", time.Time{}, false
	}
	if !e.expiresAt.After(o.nowF()) {
		o.mu.Lock()
		delete(o.m, k)
		o.mu.Unlock()
		return "", time.Time{}, false
	}
	return e.token, e.expiresAt, true
}
