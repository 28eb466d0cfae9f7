package security

import (
	"errors"
	"strings"
	"testing"
)

func TestPasswordPolicy_Validate(t *testing.T) {
	def := DefaultPasswordPolicy()
	withSymbol := def
	withSymbol.RequireSymbol = true

	tests := []struct {
		name     string
		policy   PasswordPolicy
		password string
		wantErr  bool
	}{
		{"valid", def, "Secret123", false},
		{"too short", def, "Sec1", true},
		{"no upper", def, "secret123", true},
		{"no lower", def, "SECRET123", true},
		{"no digit", def, "SecretPass", true},
		{"symbol not required", def, "Secret123", false},
		{"symbol required missing", withSymbol, "Secret123", true},
		{"symbol required present", withSymbol, "Secret123!", false},
		{"relaxed", PasswordPolicy{MinLength: 3}, "abc", false},
		{"72 bytes", def, "Secret123" + strings.Repeat("x", 63), false},
		{"73 bytes", def, "Secret123" + strings.Repeat("x", 64), true},
		{"multibyte over 72 bytes", def, "Secret123" + strings.Repeat("é", 32), true},
		{"too long for relaxed policy", PasswordPolicy{}, strings.Repeat("a", 100), true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.policy.Validate(tt.password)
			if (err != nil) != tt.wantErr {
				t.Fatalf("Validate(%q) err = %v, wantErr %v", tt.password, err, tt.wantErr)
			}
			if err == nil {
				return
			}
			if !errors.Is(err, ErrWeakPassword) {
				t.Errorf("err %v should match ErrWeakPassword", err)
			}
			var pe *PasswordPolicyError
			if !errors.As(err, &pe) || pe.Rule == "" {
				t.Errorf("err %v should be a *PasswordPolicyError with a rule", err)
			}
		})
	}
}

func TestPasswordPolicy_MaxLengthFitsBcrypt(t *testing.T) {
	h := NewHasher(4)
	longest := "Secret123" + strings.Repeat("x", MaxPasswordBytes-9)
	if err := DefaultPasswordPolicy().Validate(longest); err != nil {
		t.Fatalf("Validate(72 bytes) = %v", err)
	}
	if _, err := h.Hash(longest); err != nil {
		t.Fatalf("Hash(72 bytes) = %v", err)
	}
	err := DefaultPasswordPolicy().Validate(longest + "y")
	var pe *PasswordPolicyError
	if !errors.As(err, &pe) || pe.Rule != "be at most 72 bytes" {
		t.Errorf("Validate(73 bytes) = %v, want the max-length rule", err)
	}
}
