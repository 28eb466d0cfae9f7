package service

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	auditdomain "auth-service/internal/audit/domain"
	"auth-service/internal/security"
)

// ResetTokenSender delivers a raw password-reset token to the account owner.
type ResetTokenSender interface {
	SendResetToken(ctx context.Context, email, token string, expiresAt time.Time) error
}

// LogResetSender is the default sender. It only logs that a token was issued, with the token redacted.
type LogResetSender struct {
	log *slog.Logger
}

func NewLogResetSender(log *slog.Logger) *LogResetSender {
	if log == nil {
		log = slog.Default()
	}
	return &LogResetSender{log: log}
}

func (s *LogResetSender) SendResetToken(ctx context.Context, email, token string, expiresAt time.Time) error {
	s.log.InfoContext(ctx, "auth: password reset token issued",
		"email", email, "token_prefix", redact(token), "expires_at", expiresAt)
	return nil
}

// ChangePassword replaces the password of userID after checking the current one.
func (s *AuthService) ChangePassword(ctx context.Context, userID uuid.UUID, current, next string) error {
	user, err := s.users.GetByID(ctx, userID)
	if err != nil {
		return err
	}
	if user == nil {
		return ErrUserNotFound
	}
	if !s.hasher.Verify(current, user.HashedPassword) {
		return ErrInvalidCredentials
	}
	if err := s.cfg.PasswordPolicy.Validate(next); err != nil {
		return err
	}
	hashed, err := s.hasher.Hash(next)
	if err != nil {
		return err
	}
	// Conditional on the verified hash: a reset or change that landed meanwhile wins.
	ok, err := s.users.SetPassword(ctx, user.ID, user.HashedPassword, hashed, s.nowF())
	if err != nil {
		return err
	}
	if !ok {
		return ErrInvalidCredentials
	}
	s.revokeAfterPasswordChange(ctx, user.ID)
	s.logEvent(ctx, user.ID, auditdomain.ActionPasswordChange, nil)
	return nil
}

// InitiatePasswordReset issues a reset token for email and hands it to the sender. The outcome
// is the same whether or not the account exists; an error means an infrastructure fault.
func (s *AuthService) InitiatePasswordReset(ctx context.Context, email string) error {
	email = NormalizeEmail(email)
	if !emailPattern.MatchString(email) {
		return nil
	}
	user, err := s.users.GetByEmail(ctx, email)
	if err != nil {
		return err
	}
	if user == nil {
		s.log.DebugContext(ctx, "auth: password reset for unknown email")
		return nil
	}
	token, err := security.GenerateSecureToken(resetTokenLength)
	if err != nil {
		return err
	}
	now := s.nowF()
	expires := now.Add(s.cfg.ResetTokenTTL)
	if err := s.users.SetResetToken(ctx, user.ID, security.HashToken(token), expires, now); err != nil {
		return err
	}
	if err := s.sender.SendResetToken(ctx, user.Email, token, expires); err != nil {
		return fmt.Errorf("send reset token: %w", err)
	}
	s.logEvent(ctx, user.ID, auditdomain.ActionPasswordResetRequested, nil)
	return nil
}

// CompletePasswordReset sets a new password for the holder of a reset token. The token is
// single-use: it is consumed in the same write that stores the new hash, so of concurrent
// completions with one token only the first succeeds.
func (s *AuthService) CompletePasswordReset(ctx context.Context, token, next string) error {
	if token == "" {
		return ErrInvalidResetToken
	}
	tokenHash := security.HashToken(token)
	user, err := s.users.GetByResetTokenHash(ctx, tokenHash)
	if err != nil {
		return err
	}
	if user == nil || !user.HasPendingReset(s.nowF()) {
		return ErrInvalidResetToken
	}
	if err := s.cfg.PasswordPolicy.Validate(next); err != nil {
		return err
	}
	hashed, err := s.hasher.Hash(next)
	if err != nil {
		return err
	}
	userID, err := s.users.ConsumeResetToken(ctx, tokenHash, hashed, s.nowF())
	if err != nil {
		return err
	}
	if userID == uuid.Nil {
		return ErrInvalidResetToken
	}
	s.revokeAfterPasswordChange(ctx, userID)
	s.logEvent(ctx, userID, auditdomain.ActionPasswordReset, nil)
	return nil
}

// revokeAfterPasswordChange runs after the new password is stored, so a failure is logged, not returned.
func (s *AuthService) revokeAfterPasswordChange(ctx context.Context, userID uuid.UUID) {
	if !s.cfg.RevokeSessionsOnPasswordChange {
		return
	}
	n, err := s.refresh.RevokeAllForUser(ctx, userID)
	if err != nil {
		s.log.WarnContext(ctx, "auth: revoke sessions after password change", "user_id", userID, "error", err)
		return
	}
	s.log.InfoContext(ctx, "auth: sessions revoked after password change", "user_id", userID, "revoked", n)
}
