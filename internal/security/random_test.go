package security

import (
	"regexp"
	"testing"
)

var (
	alnumRe   = regexp.MustCompile(`^[A-Za-z0-9]+$`)
	numericRe = regexp.MustCompile(`^[0-9]+$`)
)

func TestGenerateSecureToken(t *testing.T) {
	tests := []struct {
		name   string
		length int
		want   int
	}{
		{"default", 0, DefaultSecureTokenLength},
		{"negative", -5, DefaultSecureTokenLength},
		{"explicit", 48, 48},
		{"single", 1, 1},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			tok, err := GenerateSecureToken(tt.length)
			if err != nil {
				t.Fatalf("GenerateSecureToken: %v", err)
			}
			if len(tok) != tt.want {
				t.Errorf("len = %d, want %d", len(tok), tt.want)
			}
			if !alnumRe.MatchString(tok) {
				t.Errorf("token %q has non-alphanumeric characters", tok)
			}
		})
	}
}

func TestGenerateSecureToken_Unique(t *testing.T) {
	seen := make(map[string]bool)
	for i := 0; i < 200; i++ {
		tok, err := GenerateSecureToken(32)
		if err != nil {
			t.Fatalf("GenerateSecureToken: %v", err)
		}
		if seen[tok] {
			t.Fatalf("duplicate token %q", tok)
		}
		seen[tok] = true
	}
}

func TestGenerateNumericToken(t *testing.T) {
	tok, err := GenerateNumericToken(0)
	if err != nil {
		t.Fatalf("GenerateNumericToken: %v", err)
	}
	if len(tok) != DefaultNumericTokenLength || !numericRe.MatchString(tok) {
		t.Errorf("got %q, want %d digits", tok, DefaultNumericTokenLength)
	}
	tok, _ = GenerateNumericToken(10)
	if len(tok) != 10 || !numericRe.MatchString(tok) {
		t.Errorf("got %q, want 10 digits", tok)
	}
}
