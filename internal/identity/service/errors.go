package service

import (
	"errors"

	"auth-service/internal/security"
)

// Sentinel errors for auth service; handler maps them to gRPC codes.
var (
	ErrDuplicateEmail = errors.New("email already registered")
	// ErrInvalidCredentials covers unknown email, wrong password and refused account alike.
	ErrInvalidCredentials = errors.New("invalid credentials")
	ErrInactiveAccount    = errors.New("account is inactive")
	// ErrInvalidRefreshToken does not say whether the token was unknown, expired or revoked.
	ErrInvalidRefreshToken   = errors.New("invalid or expired refresh token")
	ErrInvalidResetToken     = errors.New("invalid or expired reset token")
	ErrUserNotFound          = errors.New("user not found")
	ErrInvalidEmail          = errors.New("invalid email format")
	ErrAuditTrailUnavailable = errors.New("audit trail is not configured")

	// ErrWeakPassword is matched by every password policy failure.
	ErrWeakPassword = security.ErrWeakPassword
)
