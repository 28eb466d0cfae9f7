package interceptors

import (
	"context"

	"github.com/google/uuid"
)

type contextKey struct{ name string }

var (
	userIDKey = contextKey{"user_id"}
	emailKey  = contextKey{"email"}
)

// WithIdentity returns a context carrying the authenticated user id and email.
// Handlers read them back with GetUserID and GetEmail.
func WithIdentity(ctx context.Context, userID uuid.UUID, email string) context.Context {
	ctx = context.WithValue(ctx, userIDKey, userID)
	ctx = context.WithValue(ctx, emailKey, email)
	return ctx
}

// GetUserID returns the user id from context and true if set; otherwise uuid.Nil, false.
func GetUserID(ctx context.Context) (uuid.UUID, bool) {
	v, ok := ctx.Value(userIDKey).(uuid.UUID)
	if !ok || v == uuid.Nil {
		return uuid.Nil, false
	}
	return v, true
}

// GetEmail returns the email from context and true if set; otherwise "", false.
func GetEmail(ctx context.Context) (string, bool) {
	v, ok := ctx.Value(emailKey).(string)
	return v, ok
}
