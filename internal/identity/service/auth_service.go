// Package service implements account and session flows on top of the token service, the
// credential primitives and the refresh token store.
package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"regexp"
	"strings"
	"time"

	"github.com/google/uuid"

	"auth-service/internal/audit"
	auditdomain "auth-service/internal/audit/domain"
	policyengine "auth-service/internal/policy/engine"
	"auth-service/internal/refreshtoken"
	rtdomain "auth-service/internal/refreshtoken/domain"
	"auth-service/internal/security"
	userdomain "auth-service/internal/user/domain"
	userrepo "auth-service/internal/user/repository"
)

// TokenTypeBearer is the token_type reported with issued access tokens.
const TokenTypeBearer = "bearer"

const (
	defaultResetTokenTTL = time.Hour
	resetTokenLength     = 32
	defaultAuditPage     = 50
	maxAuditPage         = 100
)

var emailPattern = regexp.MustCompile(`^[a-zA-Z0-9._%+-]+@[a-zA-Z0-9.-]+\.[a-zA-Z]{2,}$`)

// RefreshTokenStore is the refresh token persistence the service needs. *refreshtoken.Store implements it.
type RefreshTokenStore interface {
	Create(ctx context.Context, userID uuid.UUID, ttlDays int, info refreshtoken.ClientInfo) (*refreshtoken.Issued, error)
	FindValid(ctx context.Context, token string) (*rtdomain.RefreshToken, error)
	Revoke(ctx context.Context, token string) (bool, error)
	RevokeFirst(ctx context.Context, token string) (bool, error)
	RevokeAllForUser(ctx context.Context, userID uuid.UUID) (int, error)
}

// KeyPublisher exposes the verification key for other services.
type KeyPublisher interface {
	PublicKeyPEM() string
	KeyID() string
}

// AuditReader reads a user's audit trail.
type AuditReader interface {
	ListByUser(ctx context.Context, userID uuid.UUID, limit, offset int32) ([]*auditdomain.AuditLog, error)
}

// Config is the behavior switchboard of AuthService.
type Config struct {
	// RefreshTTLDays is the lifetime of refresh token records; <= 0 means the store default.
	RefreshTTLDays int
	// ResetTokenTTL is the password-reset token lifetime; 0 means one hour.
	ResetTokenTTL time.Duration
	// RotateRefreshOnUse revokes a refresh token on use and returns a replacement.
	RotateRefreshOnUse bool
	// RevokeSessionsOnPasswordChange revokes every refresh token after a password change or reset.
	RevokeSessionsOnPasswordChange bool
	PasswordPolicy                 security.PasswordPolicy
}

// Deps are the collaborators of AuthService. Policy, Audit, AuditTrail and ResetSender are optional.
type Deps struct {
	Users         userrepo.Repository
	RefreshTokens RefreshTokenStore
	Tokens        *security.TokenService
	Keys          KeyPublisher
	Hasher        *security.Hasher
	Policy        policyengine.Evaluator
	Audit         audit.AuditLogger
	AuditTrail    AuditReader
	ResetSender   ResetTokenSender
	Logger        *slog.Logger
}

// TokenPair is the outcome of Login and RefreshAccessToken. RefreshToken is empty after a
// refresh without rotation.
type TokenPair struct {
	AccessToken  string
	RefreshToken string
	TokenType    string
	ExpiresIn    time.Duration
}

// PublicKeyInfo is what relying services need to verify access tokens.
type PublicKeyInfo struct {
	PEM       string
	Algorithm string
	KeyID     string
}

// AuthService implements register, login, refresh, logout and password flows.
type AuthService struct {
	users   userrepo.Repository
	refresh RefreshTokenStore
	tokens  *security.TokenService
	keys    KeyPublisher
	hasher  *security.Hasher
	policy  policyengine.Evaluator
	audit   audit.AuditLogger
	trail   AuditReader
	sender  ResetTokenSender
	log     *slog.Logger
	cfg     Config
	nowF    func() time.Time

	// dummyHash is compared against on unknown emails so they cost one bcrypt check too.
	dummyHash string
}

// NewAuthService returns an AuthService. Users, RefreshTokens, Tokens, Keys and Hasher are required.
func NewAuthService(deps Deps, cfg Config) (*AuthService, error) {
	switch {
	case deps.Users == nil:
		return nil, errors.New("auth service: user repository is required")
	case deps.RefreshTokens == nil:
		return nil, errors.New("auth service: refresh token store is required")
	case deps.Tokens == nil:
		return nil, errors.New("auth service: token service is required")
	case deps.Keys == nil:
		return nil, errors.New("auth service: key publisher is required")
	case deps.Hasher == nil:
		return nil, errors.New("auth service: hasher is required")
	}
	log := deps.Logger
	if log == nil {
		log = slog.Default()
	}
	if cfg.ResetTokenTTL <= 0 {
		cfg.ResetTokenTTL = defaultResetTokenTTL
	}
	if cfg.PasswordPolicy.MinLength <= 0 {
		cfg.PasswordPolicy = security.DefaultPasswordPolicy()
	}
	sender := deps.ResetSender
	if sender == nil {
		sender = NewLogResetSender(log)
	}
	dummyHash, err := deps.Hasher.Hash(uuid.NewString())
	if err != nil {
		return nil, fmt.Errorf("auth service: dummy hash: %w", err)
	}
	return &AuthService{
		users:   deps.Users,
		refresh: deps.RefreshTokens,
		tokens:  deps.Tokens,
		keys:    deps.Keys,
		hasher:  deps.Hasher,
		policy:  deps.Policy,
		audit:   deps.Audit,
		trail:   deps.AuditTrail,
		sender:  sender,
		log:     log,
		cfg:     cfg,
		nowF:    func() time.Time { return time.Now().UTC() },

		dummyHash: dummyHash,
	}, nil
}

// NormalizeEmail trims and lower-cases an address. Every entry point applies it.
func NormalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

// Register creates an active, unverified account.
func (s *AuthService) Register(ctx context.Context, email, password, fullName string) (*userdomain.User, error) {
	email = NormalizeEmail(email)
	if !emailPattern.MatchString(email) {
		return nil, ErrInvalidEmail
	}
	if err := s.cfg.PasswordPolicy.Validate(password); err != nil {
		return nil, err
	}
	existing, err := s.users.GetByEmail(ctx, email)
	if err != nil {
		return nil, err
	}
	if existing != nil {
		return nil, ErrDuplicateEmail
	}
	hashed, err := s.hasher.Hash(password)
	if err != nil {
		return nil, err
	}
	now := s.nowF()
	user := &userdomain.User{
		ID:             uuid.New(),
		Email:          email,
		FullName:       strings.TrimSpace(fullName),
		HashedPassword: hashed,
		IsActive:       true,
		IsVerified:     false,
		CreatedAt:      now,
		UpdatedAt:      now,
	}
	if err := user.Validate(); err != nil {
		return nil, err
	}
	if err := s.users.Create(ctx, user); err != nil {
		if errors.Is(err, userrepo.ErrDuplicateEmail) {
			return nil, ErrDuplicateEmail
		}
		return nil, err
	}
	s.logEvent(ctx, user.ID, auditdomain.ActionRegister, nil)
	return user, nil
}

// Login authenticates email and password and issues an access token plus a refresh token.
// Unknown email, wrong password and a refused account all yield ErrInvalidCredentials.
func (s *AuthService) Login(ctx context.Context, email, password string, info refreshtoken.ClientInfo) (*TokenPair, error) {
	email = NormalizeEmail(email)
	if email == "" || password == "" {
		return nil, ErrInvalidCredentials
	}
	user, err := s.users.GetByEmail(ctx, email)
	if err != nil {
		return nil, err
	}
	if user == nil {
		s.hasher.Verify(password, s.dummyHash)
		s.loginFailed(ctx, uuid.Nil, "unknown_email")
		return nil, ErrInvalidCredentials
	}
	if !s.hasher.Verify(password, user.HashedPassword) {
		s.loginFailed(ctx, user.ID, "bad_password")
		return nil, ErrInvalidCredentials
	}
	if decision := s.checkAccess(ctx, user); !decision.Allowed {
		s.loginFailed(ctx, user.ID, decision.Reason)
		return nil, ErrInvalidCredentials
	}

	now := s.nowF()
	if err := s.users.TouchLastLogin(ctx, user.ID, now); err != nil {
		return nil, err
	}
	if s.hasher.NeedsRehash(user.HashedPassword) {
		s.rehash(ctx, user, password, now)
	}

	access, err := s.tokens.IssueAccessToken(user.ID, user.Email, nil)
	if err != nil {
		return nil, err
	}
	issued, err := s.refresh.Create(ctx, user.ID, s.cfg.RefreshTTLDays, info)
	if err != nil {
		return nil, err
	}
	s.logEvent(ctx, user.ID, auditdomain.ActionLoginSuccess, nil)
	return &TokenPair{
		AccessToken:  access,
		RefreshToken: issued.Token,
		TokenType:    TokenTypeBearer,
		ExpiresIn:    s.tokens.AccessTTL(),
	}, nil
}

// RefreshAccessToken issues a new access token for a valid refresh token. With rotation
// enabled the presented token is revoked and a replacement is returned; of concurrent
// refreshes with the same token only one succeeds.
func (s *AuthService) RefreshAccessToken(ctx context.Context, token string, info refreshtoken.ClientInfo) (*TokenPair, error) {
	rec, err := s.refresh.FindValid(ctx, token)
	if err != nil {
		return nil, err
	}
	if rec == nil {
		return nil, ErrInvalidRefreshToken
	}
	user, err := s.users.GetByID(ctx, rec.UserID)
	if err != nil {
		return nil, err
	}
	if user == nil {
		return nil, ErrInvalidRefreshToken
	}
	if decision := s.checkAccess(ctx, user); !decision.Allowed {
		return nil, ErrInactiveAccount
	}

	pair := &TokenPair{TokenType: TokenTypeBearer, ExpiresIn: s.tokens.AccessTTL()}
	if s.cfg.RotateRefreshOnUse {
		first, err := s.refresh.RevokeFirst(ctx, token)
		if err != nil {
			return nil, err
		}
		if !first {
			return nil, ErrInvalidRefreshToken
		}
		issued, err := s.refresh.Create(ctx, user.ID, s.cfg.RefreshTTLDays, info)
		if err != nil {
			return nil, err
		}
		pair.RefreshToken = issued.Token
	}
	access, err := s.tokens.IssueAccessToken(user.ID, user.Email, nil)
	if err != nil {
		return nil, err
	}
	pair.AccessToken = access
	s.logEvent(ctx, user.ID, auditdomain.ActionTokenRefresh, map[string]any{"rotated": s.cfg.RotateRefreshOnUse})
	return pair, nil
}

// Logout revokes the refresh token. It never fails: an unknown token and a store error are
// both reported to the caller as success and only logged here.
func (s *AuthService) Logout(ctx context.Context, token string) {
	if token == "" {
		return
	}
	rec, err := s.refresh.FindValid(ctx, token)
	if err != nil {
		s.log.WarnContext(ctx, "auth: logout lookup failed", "error", err)
	}
	found, err := s.refresh.Revoke(ctx, token)
	if err != nil {
		s.log.WarnContext(ctx, "auth: logout revoke failed", "error", err)
		return
	}
	if !found {
		s.log.DebugContext(ctx, "auth: logout with unknown refresh token", "token_prefix", redact(token))
		return
	}
	if rec != nil {
		s.logEvent(ctx, rec.UserID, auditdomain.ActionLogout, nil)
	}
}

// LogoutAll revokes every refresh token of userID and returns how many were revoked.
func (s *AuthService) LogoutAll(ctx context.Context, userID uuid.UUID) (int, error) {
	n, err := s.refresh.RevokeAllForUser(ctx, userID)
	if err != nil {
		return n, err
	}
	s.logEvent(ctx, userID, auditdomain.ActionLogoutAll, map[string]any{"revoked": n})
	return n, nil
}

// CurrentUser returns the account of userID.
func (s *AuthService) CurrentUser(ctx context.Context, userID uuid.UUID) (*userdomain.User, error) {
	user, err := s.users.GetByID(ctx, userID)
	if err != nil {
		return nil, err
	}
	if user == nil {
		return nil, ErrUserNotFound
	}
	return user, nil
}

// PublicKey returns the verification key, its algorithm and key id.
func (s *AuthService) PublicKey() PublicKeyInfo {
	return PublicKeyInfo{
		PEM:       s.keys.PublicKeyPEM(),
		Algorithm: s.tokens.Algorithm(),
		KeyID:     s.keys.KeyID(),
	}
}

// AuditTrail returns a page of userID's audit events, newest first. limit defaults to 50 and is capped at 100.
func (s *AuthService) AuditTrail(ctx context.Context, userID uuid.UUID, limit, offset int32) ([]*auditdomain.AuditLog, error) {
	if s.trail == nil {
		return nil, ErrAuditTrailUnavailable
	}
	if limit <= 0 {
		limit = defaultAuditPage
	}
	if limit > maxAuditPage {
		limit = maxAuditPage
	}
	if offset < 0 {
		offset = 0
	}
	return s.trail.ListByUser(ctx, userID, limit, offset)
}

// rehash upgrades the stored hash to the current cost. It only replaces the hash Login
// verified, so a password changed meanwhile is kept; failures are logged, not returned.
func (s *AuthService) rehash(ctx context.Context, user *userdomain.User, password string, now time.Time) {
	rehashed, err := s.hasher.Hash(password)
	if err != nil {
		s.log.WarnContext(ctx, "auth: rehash failed", "user_id", user.ID, "error", err)
		return
	}
	ok, err := s.users.RehashPassword(ctx, user.ID, user.HashedPassword, rehashed, now)
	if err != nil {
		s.log.WarnContext(ctx, "auth: rehash failed", "user_id", user.ID, "error", err)
		return
	}
	if !ok {
		s.log.InfoContext(ctx, "auth: rehash skipped, password changed concurrently", "user_id", user.ID)
	}
}

// checkAccess asks the policy engine, falling back to is_active when none is configured.
func (s *AuthService) checkAccess(ctx context.Context, user *userdomain.User) policyengine.AccessDecision {
	if s.policy == nil {
		return policyengine.ActiveOnly(user)
	}
	decision, err := s.policy.EvaluateAccess(ctx, user)
	if err != nil {
		s.log.WarnContext(ctx, "auth: access policy failed, using fallback", "user_id", user.ID, "error", err)
	}
	return decision
}

func (s *AuthService) loginFailed(ctx context.Context, userID uuid.UUID, reason string) {
	s.log.InfoContext(ctx, "auth: login refused", "user_id", userID, "reason", reason)
	s.logEvent(ctx, userID, auditdomain.ActionLoginFailure, map[string]any{"reason": reason})
}

func (s *AuthService) logEvent(ctx context.Context, userID uuid.UUID, action string, meta map[string]any) {
	if s.audit == nil {
		return
	}
	var metadata string
	if len(meta) > 0 {
		if b, err := json.Marshal(meta); err == nil {
			metadata = string(b)
		}
	}
	s.audit.LogEvent(ctx, userID, action, metadata)
}

// redact keeps only a short prefix of a secret for logs.
func redact(secret string) string {
	const keep = 8
	if len(secret) <= keep {
		return "…"
	}
	return secret[:keep] + "…"
}
