package domain

import (
	"time"

	"github.com/google/uuid"
)

// Actions recorded by the auth flows.
const (
	ActionRegister               = "register"
	ActionLoginSuccess           = "login_success"
	ActionLoginFailure           = "login_failure"
	ActionTokenRefresh           = "token_refresh"
	ActionLogout                 = "logout"
	ActionLogoutAll              = "logout_all"
	ActionPasswordChange         = "password_change"
	ActionPasswordResetRequested = "password_reset_requested"
	ActionPasswordReset          = "password_reset"
)

// ResourceAuth is the resource recorded for every auth event.
const ResourceAuth = "auth"

// AuditLog represents an audit event. UserID is uuid.Nil when the actor is unknown.
type AuditLog struct {
	ID        uuid.UUID
	UserID    uuid.UUID
	Action    string
	Resource  string
	IP        string
	Metadata  string
	CreatedAt time.Time
}
