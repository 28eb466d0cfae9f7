package engine

import (
	"context"
	"fmt"
	"log/slog"
	"os"

	"github.com/open-policy-agent/opa/v1/rego"

	userdomain "auth-service/internal/user/domain"
)

const accessQuery = "data.auth.access"

// DefaultAccessPolicy admits active accounts, and when require_verified is set only verified ones.
// A replacement module must define package auth.access with rules allow (bool) and reason (string).
const DefaultAccessPolicy = `package auth.access

default allow := false

allow if {
	input.user.is_active
	not verification_missing
}

verification_missing if {
	input.require_verified
	not input.user.is_verified
}

reason := "inactive" if {
	not input.user.is_active
} else := "unverified" if {
	verification_missing
} else := ""
`

// Options configures an OPAEvaluator.
type Options struct {
	// Module replaces DefaultAccessPolicy when non-empty.
	Module          string
	RequireVerified bool
}

// OPAEvaluator evaluates the account-access policy with an in-process OPA Rego engine.
// The module is compiled once at construction.
type OPAEvaluator struct {
	query           rego.PreparedEvalQuery
	requireVerified bool
	log             *slog.Logger
}

// NewOPAEvaluator compiles opts.Module (or the default policy). A module that does not compile is an error.
func NewOPAEvaluator(ctx context.Context, opts Options, log *slog.Logger) (*OPAEvaluator, error) {
	if log == nil {
		log = slog.Default()
	}
	module := opts.Module
	if module == "" {
		module = DefaultAccessPolicy
	}
	q, err := prepare(ctx, module)
	if err != nil {
		return nil, err
	}
	return &OPAEvaluator{query: q, requireVerified: opts.RequireVerified, log: log}, nil
}

// LoadModule reads a Rego module from path. An empty path yields "" so the default policy applies.
func LoadModule(path string) (string, error) {
	if path == "" {
		return "", nil
	}
	b, err := os.ReadFile(path)
	if err != nil {
		return "", fmt.Errorf("policy: read %s: %w", path, err)
	}
	return string(b), nil
}

func prepare(ctx context.Context, module string) (rego.PreparedEvalQuery, error) {
	q, err := rego.New(
		rego.Query(accessQuery),
		rego.Module("access.rego", module),
	).PrepareForEval(ctx)
	if err != nil {
		return rego.PreparedEvalQuery{}, fmt.Errorf("compile access policy: %w", err)
	}
	return q, nil
}

// HealthCheck verifies that the prepared policy still evaluates against a minimal input.
func (e *OPAEvaluator) HealthCheck(ctx context.Context) error {
	_, err := e.eval(ctx, map[string]any{
		"require_verified": false,
		"user":             map[string]any{"id": "", "is_active": true, "is_verified": true},
	})
	return err
}

// EvaluateAccess returns the policy decision for user. If evaluation fails the decision falls
// back to ActiveOnly and the error is returned alongside it.
func (e *OPAEvaluator) EvaluateAccess(ctx context.Context, user *userdomain.User) (AccessDecision, error) {
	if user == nil {
		return AccessDecision{Reason: ReasonInactive}, nil
	}
	d, err := e.eval(ctx, buildInput(user, e.requireVerified))
	if err != nil {
		e.log.WarnContext(ctx, "policy: evaluation failed, using is_active", "user_id", user.ID, "error", err)
		return ActiveOnly(user), err
	}
	return d, nil
}

func (e *OPAEvaluator) eval(ctx context.Context, input map[string]any) (AccessDecision, error) {
	rs, err := e.query.Eval(ctx, rego.EvalInput(input))
	if err != nil {
		return AccessDecision{}, fmt.Errorf("eval access policy: %w", err)
	}
	if len(rs) == 0 || len(rs[0].Expressions) == 0 {
		return AccessDecision{}, fmt.Errorf("policy query returned no result")
	}
	doc, ok := rs[0].Expressions[0].Value.(map[string]any)
	if !ok {
		return AccessDecision{}, fmt.Errorf("policy result is %T, want object", rs[0].Expressions[0].Value)
	}
	allowed, ok := doc["allow"].(bool)
	if !ok {
		return AccessDecision{}, fmt.Errorf("policy did not define allow")
	}
	reason, _ := doc["reason"].(string)
	if allowed {
		reason = ""
	} else if reason == "" {
		reason = "denied"
	}
	return AccessDecision{Allowed: allowed, Reason: reason}, nil
}

func buildInput(user *userdomain.User, requireVerified bool) map[string]any {
	return map[string]any{
		"require_verified": requireVerified,
		"user": map[string]any{
			"id":          user.ID.String(),
			"email":       user.Email,
			"is_active":   user.IsActive,
			"is_verified": user.IsVerified,
		},
	}
}
