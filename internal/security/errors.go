package security

import (
	"errors"
	"fmt"
)

// ErrInvalidKey is returned when PEM or key type is invalid.
var ErrInvalidKey = errors.New("invalid key")

// KeyMaterialError reports an unreadable, unparsable, or missing key file. It is fatal: callers
// must not continue without key material.
type KeyMaterialError struct {
	Op   string // "read", "parse", "generate", "write", "config"
	Path string
	Err  error
}

func (e *KeyMaterialError) Error() string {
	if e.Path == "" {
		return fmt.Sprintf("key material: %s: %v", e.Op, e.Err)
	}
	return fmt.Sprintf("key material: %s %s: %v", e.Op, e.Path, e.Err)
}

func (e *KeyMaterialError) Unwrap() error { return e.Err }

// TokenErrorKind classifies token failures.
type TokenErrorKind int

const (
	TokenExpired TokenErrorKind = iota + 1
	TokenInvalidSignature
	TokenMalformed
	TokenMissingSigningKey
	TokenMissingVerificationKey
	// TokenSigningFailed is a signing error with a key present, such as a key too small for the algorithm.
	TokenSigningFailed
	// tokenInvalid only exists as a match target: it matches both InvalidSignature and Malformed.
	tokenInvalid
)

func (k TokenErrorKind) String() string {
	switch k {
	case TokenExpired:
		return "expired"
	case TokenInvalidSignature:
		return "invalid signature"
	case TokenMalformed:
		return "malformed"
	case TokenMissingSigningKey:
		return "missing private key"
	case TokenMissingVerificationKey:
		return "missing public key"
	case TokenSigningFailed:
		return "signing failed"
	case tokenInvalid:
		return "invalid"
	default:
		return "unknown"
	}
}

// TokenError is returned by TokenService. Claim names the offending claim when one is known.
type TokenError struct {
	Kind  TokenErrorKind
	Claim string
	Err   error
}

func (e *TokenError) Error() string {
	msg := "token " + e.Kind.String()
	if e.Claim != "" {
		msg += " (" + e.Claim + ")"
	}
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

func (e *TokenError) Unwrap() error { return e.Err }

// Is matches on Kind so sentinel values can be used with errors.Is.
func (e *TokenError) Is(target error) bool {
	t, ok := target.(*TokenError)
	if !ok {
		return false
	}
	if t.Kind == tokenInvalid {
		return e.Kind == TokenInvalidSignature || e.Kind == TokenMalformed || e.Kind == tokenInvalid
	}
	return t.Kind == e.Kind
}

var (
	ErrExpiredToken      = &TokenError{Kind: TokenExpired}
	ErrInvalidSignature  = &TokenError{Kind: TokenInvalidSignature}
	ErrMalformedToken    = &TokenError{Kind: TokenMalformed}
	ErrMissingPrivateKey = &TokenError{Kind: TokenMissingSigningKey}
	ErrMissingPublicKey  = &TokenError{Kind: TokenMissingVerificationKey}
	// ErrInvalidToken matches any signature or format failure.
	ErrInvalidToken = &TokenError{Kind: tokenInvalid}
)

// ErrWeakPassword is matched by every PasswordPolicyError.
var ErrWeakPassword = errors.New("password does not meet policy")

// PasswordPolicyError names the first policy rule a password failed.
type PasswordPolicyError struct {
	Rule string
}

func (e *PasswordPolicyError) Error() string {
	return "password must " + e.Rule
}

func (e *PasswordPolicyError) Is(target error) bool { return target == ErrWeakPassword }
