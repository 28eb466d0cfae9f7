package security

import (
	"strconv"
	"unicode"
)

// MaxPasswordBytes is the longest password bcrypt accepts. It applies whatever the policy says.
const MaxPasswordBytes = 72

// PasswordPolicy is the complexity rule set applied to new passwords.
type PasswordPolicy struct {
	MinLength        int
	RequireUppercase bool
	RequireLowercase bool
	RequireDigit     bool
	RequireSymbol    bool
}

// DefaultPasswordPolicy requires 8 characters with upper, lower and digit. Symbols are optional.
func DefaultPasswordPolicy() PasswordPolicy {
	return PasswordPolicy{
		MinLength:        8,
		RequireUppercase: true,
		RequireLowercase: true,
		RequireDigit:     true,
	}
}

// Validate returns a *PasswordPolicyError for the first rule password breaks, or nil.
func (p PasswordPolicy) Validate(password string) error {
	if len([]rune(password)) < p.MinLength {
		return &PasswordPolicyError{Rule: "be at least " + strconv.Itoa(p.MinLength) + " characters"}
	}
	if len(password) > MaxPasswordBytes {
		return &PasswordPolicyError{Rule: "be at most " + strconv.Itoa(MaxPasswordBytes) + " bytes"}
	}
	var upper, lower, digit, symbol bool
	for _, r := range password {
		switch {
		case unicode.IsUpper(r):
			upper = true
		case unicode.IsLower(r):
			lower = true
		case unicode.IsDigit(r):
			digit = true
		case unicode.IsPunct(r) || unicode.IsSymbol(r):
			symbol = true
		}
	}
	if p.RequireUppercase && !upper {
		return &PasswordPolicyError{Rule: "contain an uppercase letter"}
	}
	if p.RequireLowercase && !lower {
		return &PasswordPolicyError{Rule: "contain a lowercase letter"}
	}
	if p.RequireDigit && !digit {
		return &PasswordPolicyError{Rule: "contain a digit"}
	}
	if p.RequireSymbol && !symbol {
		return &PasswordPolicyError{Rule: "contain a symbol"}
	}
	return nil
}
