package engine

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/google/uuid"

	userdomain "auth-service/internal/user/domain"
)

func newUser(active, verified bool) *userdomain.User {
	return &userdomain.User{ID: uuid.New(), Email: "a@example.com", IsActive: active, IsVerified: verified}
}

func TestOPAEvaluator_HealthCheck(t *testing.T) {
	e, err := NewOPAEvaluator(context.Background(), Options{}, nil)
	if err != nil {
		t.Fatalf("NewOPAEvaluator: %v", err)
	}
	if err := e.HealthCheck(context.Background()); err != nil {
		t.Fatalf("HealthCheck: %v", err)
	}
}

func TestOPAEvaluator_DefaultPolicy(t *testing.T) {
	tests := []struct {
		name            string
		requireVerified bool
		user            *userdomain.User
		want            AccessDecision
	}{
		{"active", false, newUser(true, false), AccessDecision{Allowed: true}},
		{"inactive", false, newUser(false, true), AccessDecision{Reason: ReasonInactive}},
		{"unverified allowed", false, newUser(true, false), AccessDecision{Allowed: true}},
		{"unverified required", true, newUser(true, false), AccessDecision{Reason: ReasonUnverified}},
		{"verified required", true, newUser(true, true), AccessDecision{Allowed: true}},
		{"inactive wins over unverified", true, newUser(false, false), AccessDecision{Reason: ReasonInactive}},
		{"nil user", false, nil, AccessDecision{Reason: ReasonInactive}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			e, err := NewOPAEvaluator(context.Background(), Options{RequireVerified: tt.requireVerified}, nil)
			if err != nil {
				t.Fatalf("NewOPAEvaluator: %v", err)
			}
			got, err := e.EvaluateAccess(context.Background(), tt.user)
			if err != nil {
				t.Fatalf("EvaluateAccess: %v", err)
			}
			if got != tt.want {
				t.Errorf("EvaluateAccess = %+v, want %+v", got, tt.want)
			}
		})
	}
}

func TestOPAEvaluator_CustomModule(t *testing.T) {
	module := `package auth.access

default allow := false

allow if {
	input.user.is_active
	endswith(input.user.email, "@example.com")
}

reason := "domain" if { not allow } else := ""
`
	path := filepath.Join(t.TempDir(), "access.rego")
	if err := os.WriteFile(path, []byte(module), 0o644); err != nil {
		t.Fatalf("WriteFile: %v", err)
	}
	loaded, err := LoadModule(path)
	if err != nil {
		t.Fatalf("LoadModule: %v", err)
	}
	e, err := NewOPAEvaluator(context.Background(), Options{Module: loaded}, nil)
	if err != nil {
		t.Fatalf("NewOPAEvaluator: %v", err)
	}

	ok, _ := e.EvaluateAccess(context.Background(), newUser(true, false))
	if !ok.Allowed {
		t.Errorf("example.com user should be allowed: %+v", ok)
	}
	other := newUser(true, false)
	other.Email = "a@other.org"
	denied, _ := e.EvaluateAccess(context.Background(), other)
	if denied.Allowed || denied.Reason != "domain" {
		t.Errorf("other domain = %+v", denied)
	}
}

func TestOPAEvaluator_UndefinedAllowFallsBack(t *testing.T) {
	module := "package auth.access\n\nreason := \"none\"\n"
	e, err := NewOPAEvaluator(context.Background(), Options{Module: module}, nil)
	if err != nil {
		t.Fatalf("NewOPAEvaluator: %v", err)
	}
	got, err := e.EvaluateAccess(context.Background(), newUser(true, true))
	if err == nil {
		t.Fatal("policy without allow should report an error")
	}
	if !got.Allowed {
		t.Errorf("fallback for active user should allow: %+v", got)
	}
	got, _ = e.EvaluateAccess(context.Background(), newUser(false, true))
	if got.Allowed || got.Reason != ReasonInactive {
		t.Errorf("fallback for inactive user = %+v", got)
	}
}

func TestNewOPAEvaluator_BadModule(t *testing.T) {
	if _, err := NewOPAEvaluator(context.Background(), Options{Module: "package auth.access\nallow if {"}, nil); err == nil {
		t.Fatal("malformed module should fail to compile")
	}
}

func TestLoadModule(t *testing.T) {
	if m, err := LoadModule(""); err != nil || m != "" {
		t.Errorf("LoadModule(\"\") = %q, %v", m, err)
	}
	if _, err := LoadModule(filepath.Join(t.TempDir(), "missing.rego")); err == nil {
		t.Error("missing file should error")
	}
}

func TestActiveOnly(t *testing.T) {
	if !ActiveOnly(newUser(true, false)).Allowed {
		t.Error("active user should be allowed")
	}
	if d := ActiveOnly(newUser(false, false)); d.Allowed || d.Reason != ReasonInactive {
		t.Errorf("inactive = %+v", d)
	}
	if ActiveOnly(nil).Allowed {
		t.Error("nil user should be denied")
	}
}
