package engine

import (
	"context"

	userdomain "auth-service/internal/user/domain"
)

// Reasons an account may be refused.
const (
	ReasonInactive   = "inactive"
	ReasonUnverified = "unverified"
)

// AccessDecision is the outcome of an account-access evaluation. Reason is empty when Allowed.
type AccessDecision struct {
	Allowed bool
	Reason  string
}

// Evaluator decides whether an account may obtain tokens.
type Evaluator interface {
	EvaluateAccess(ctx context.Context, user *userdomain.User) (AccessDecision, error)
}

// ActiveOnly is the fallback policy: only the is_active flag counts.
func ActiveOnly(user *userdomain.User) AccessDecision {
	if user == nil || !user.IsActive {
		return AccessDecision{Allowed: false, Reason: ReasonInactive}
	}
	return AccessDecision{Allowed: true}
}
