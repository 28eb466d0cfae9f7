package security

import (
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

const (
	TokenTypeAccess  = "access"
	TokenTypeRefresh = "refresh"

	DefaultAlgorithm  = "RS256"
	DefaultAccessTTL  = 15 * time.Minute
	DefaultRefreshTTL = 30 * 24 * time.Hour
)

// Claim names the service sets itself. Caller-supplied extras never override them.
const (
	claimSubject   = "sub"
	claimEmail     = "email"
	claimIssuedAt  = "iat"
	claimExpiresAt = "exp"
	claimType      = "type"
	claimID        = "jti"
)

var allowedAlgorithms = map[string]bool{
	"RS256": true, "RS384": true, "RS512": true,
	"PS256": true, "PS384": true, "PS512": true,
}

// TokenConfig is the immutable token policy. Zero TTLs take the defaults; negative TTLs are
// accepted and yield tokens that are already expired.
type TokenConfig struct {
	Algorithm  string
	AccessTTL  time.Duration
	RefreshTTL time.Duration
}

// Claims is the verified content of a token.
type Claims struct {
	UserID    uuid.UUID
	Email     string
	Type      string
	ID        string
	IssuedAt  time.Time
	ExpiresAt time.Time
	// Raw holds every claim in the token, extras included.
	Raw jwt.MapClaims
}

// TokenService issues and verifies signed JWTs. It holds no mutable state.
type TokenService struct {
	keys       KeySource
	method     jwt.SigningMethod
	accessTTL  time.Duration
	refreshTTL time.Duration
	parser     *jwt.Parser
}

// NewTokenService returns a TokenService signing with keys. An unknown algorithm is an error.
func NewTokenService(keys KeySource, cfg TokenConfig) (*TokenService, error) {
	if keys == nil {
		return nil, errors.New("token service: key source is required")
	}
	alg := cfg.Algorithm
	if alg == "" {
		alg = DefaultAlgorithm
	}
	if !allowedAlgorithms[alg] {
		return nil, fmt.Errorf("token service: unsupported algorithm %q", alg)
	}
	if cfg.AccessTTL == 0 {
		cfg.AccessTTL = DefaultAccessTTL
	}
	if cfg.RefreshTTL == 0 {
		cfg.RefreshTTL = DefaultRefreshTTL
	}
	return &TokenService{
		keys:       keys,
		method:     jwt.GetSigningMethod(alg),
		accessTTL:  cfg.AccessTTL,
		refreshTTL: cfg.RefreshTTL,
		parser: jwt.NewParser(
			jwt.WithValidMethods([]string{alg}),
			jwt.WithExpirationRequired(),
			jwt.WithIssuedAt(),
		),
	}, nil
}

func (s *TokenService) Algorithm() string         { return s.method.Alg() }
func (s *TokenService) AccessTTL() time.Duration  { return s.accessTTL }
func (s *TokenService) RefreshTTL() time.Duration { return s.refreshTTL }

// IssueAccessToken signs a short-lived token carrying the user's email. extra is merged first
// so that sub, email, iat, exp, type and jti always hold the values set here.
func (s *TokenService) IssueAccessToken(userID uuid.UUID, email string, extra map[string]any) (string, error) {
	claims := make(jwt.MapClaims, len(extra)+6)
	for k, v := range extra {
		claims[k] = v
	}
	s.setStandardClaims(claims, userID, TokenTypeAccess, s.accessTTL)
	claims[claimEmail] = email
	return s.sign(claims)
}

// IssueRefreshToken signs a long-lived token. It carries no email.
func (s *TokenService) IssueRefreshToken(userID uuid.UUID) (string, error) {
	claims := make(jwt.MapClaims, 5)
	s.setStandardClaims(claims, userID, TokenTypeRefresh, s.refreshTTL)
	return s.sign(claims)
}

func (s *TokenService) setStandardClaims(claims jwt.MapClaims, userID uuid.UUID, typ string, ttl time.Duration) {
	now := time.Now().UTC()
	claims[claimSubject] = userID.String()
	claims[claimIssuedAt] = jwt.NewNumericDate(now)
	claims[claimExpiresAt] = jwt.NewNumericDate(now.Add(ttl))
	claims[claimType] = typ
	claims[claimID] = uuid.NewString()
}

func (s *TokenService) sign(claims jwt.MapClaims) (string, error) {
	priv := s.keys.PrivateKey()
	if priv == nil {
		return "", ErrMissingPrivateKey
	}
	t := jwt.NewWithClaims(s.method, claims)
	if kid := s.keys.KeyID(); kid != "" {
		t.Header["kid"] = kid
	}
	signed, err := t.SignedString(priv)
	if err != nil {
		return "", &TokenError{Kind: TokenSigningFailed, Err: err}
	}
	return signed, nil
}

// Verify checks the signature with the configured algorithm only, then exp and iat.
func (s *TokenService) Verify(token string) (*Claims, error) {
	pub := s.keys.PublicKey()
	if pub == nil {
		return nil, ErrMissingPublicKey
	}
	claims := jwt.MapClaims{}
	_, err := s.parser.ParseWithClaims(token, claims, func(*jwt.Token) (any, error) {
		return pub, nil
	})
	if err != nil {
		return nil, classifyParseError(err)
	}
	return claimsFromMap(claims)
}

// ExtractUserID returns the subject of a valid token, or uuid.Nil and false.
func (s *TokenService) ExtractUserID(token string) (uuid.UUID, bool) {
	c, err := s.Verify(token)
	if err != nil {
		return uuid.Nil, false
	}
	return c.UserID, true
}

func classifyParseError(err error) error {
	switch {
	case errors.Is(err, jwt.ErrTokenExpired):
		return &TokenError{Kind: TokenExpired, Claim: claimExpiresAt, Err: err}
	case errors.Is(err, jwt.ErrTokenSignatureInvalid), errors.Is(err, jwt.ErrTokenUnverifiable):
		return &TokenError{Kind: TokenInvalidSignature, Err: err}
	case errors.Is(err, jwt.ErrTokenRequiredClaimMissing):
		return &TokenError{Kind: TokenMalformed, Claim: claimExpiresAt, Err: err}
	case errors.Is(err, jwt.ErrTokenUsedBeforeIssued):
		return &TokenError{Kind: TokenMalformed, Claim: claimIssuedAt, Err: err}
	default:
		return &TokenError{Kind: TokenMalformed, Err: err}
	}
}

func claimsFromMap(m jwt.MapClaims) (*Claims, error) {
	sub, err := m.GetSubject()
	if err != nil {
		return nil, &TokenError{Kind: TokenMalformed, Claim: claimSubject, Err: err}
	}
	userID, err := uuid.Parse(sub)
	if err != nil {
		return nil, &TokenError{Kind: TokenMalformed, Claim: claimSubject, Err: err}
	}
	typ, _ := m[claimType].(string)
	if typ != TokenTypeAccess && typ != TokenTypeRefresh {
		return nil, &TokenError{Kind: TokenMalformed, Claim: claimType}
	}
	c := &Claims{UserID: userID, Type: typ, Raw: m}
	c.Email, _ = m[claimEmail].(string)
	c.ID, _ = m[claimID].(string)
	if iat, err := m.GetIssuedAt(); err == nil && iat != nil {
		c.IssuedAt = iat.Time
	}
	if exp, err := m.GetExpirationTime(); err == nil && exp != nil {
		c.ExpiresAt = exp.Time
	}
	return c, nil
}
