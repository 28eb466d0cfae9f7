package db

import (
	"context"
	"database/sql"
	"database/sql/driver"
	"errors"
	"fmt"
	"testing"
)

func TestMapTransient(t *testing.T) {
	tests := []struct {
		name      string
		err       error
		transient bool
	}{
		{"nil", nil, false},
		{"deadline", fmt.Errorf("query: %w", context.DeadlineExceeded), true},
		{"bad conn", driver.ErrBadConn, true},
		{"conn done", sql.ErrConnDone, true},
		{"already transient", ErrTransient, true},
		{"no rows", sql.ErrNoRows, false},
		{"other", errors.New("syntax error"), false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := MapTransient(tt.err)
			if errors.Is(got, ErrTransient) != tt.transient {
				t.Errorf("MapTransient(%v) = %v, transient want %v", tt.err, got, tt.transient)
			}
			if tt.err == nil && got != nil {
				t.Errorf("MapTransient(nil) = %v", got)
			}
		})
	}
}
