package domain

import (
	"testing"
	"time"

	"github.com/google/uuid"
)

func TestUser_Validate(t *testing.T) {
	tests := []struct {
		name    string
		user    User
		wantErr bool
	}{
		{"valid", User{ID: uuid.New(), Email: "a@example.com", HashedPassword: "h"}, false},
		{"missing id", User{Email: "a@example.com", HashedPassword: "h"}, true},
		{"missing email", User{ID: uuid.New(), HashedPassword: "h"}, true},
		{"missing hash", User{ID: uuid.New(), Email: "a@example.com"}, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if err := tt.user.Validate(); (err != nil) != tt.wantErr {
				t.Errorf("Validate() err = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}

func TestUser_HasPendingReset(t *testing.T) {
	now := time.Now()
	future := now.Add(time.Hour)
	past := now.Add(-time.Minute)

	u := User{PasswordResetTokenHash: "h", PasswordResetExpires: &future}
	if !u.HasPendingReset(now) {
		t.Error("unexpired reset should be pending")
	}
	u.PasswordResetExpires = &past
	if u.HasPendingReset(now) {
		t.Error("expired reset should not be pending")
	}
	u.PasswordResetExpires = &future
	u.ClearReset()
	if u.HasPendingReset(now) || u.PasswordResetExpires != nil {
		t.Error("ClearReset should drop both fields")
	}
}
