package audit

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/google/uuid"

	"auth-service/internal/audit/domain"
)

type mockAuditRepo struct {
	mu        sync.Mutex
	entries   []*domain.AuditLog
	createErr error
	ctxErr    error
}

func (m *mockAuditRepo) Create(ctx context.Context, entry *domain.AuditLog) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.ctxErr = ctx.Err()
	if m.createErr != nil {
		return m.createErr
	}
	m.entries = append(m.entries, entry)
	return nil
}

func (m *mockAuditRepo) ListByUser(ctx context.Context, userID uuid.UUID, limit, offset int32) ([]*domain.AuditLog, error) {
	return nil, nil
}

func TestLogger_LogEvent_Success(t *testing.T) {
	repo := &mockAuditRepo{}
	logger := NewLogger(repo, func(context.Context) string { return "192.168.1.1" }, nil)
	userID := uuid.New()

	logger.LogEvent(context.Background(), userID, domain.ActionLoginSuccess, "ua=curl")

	if len(repo.entries) != 1 {
		t.Fatalf("expected 1 entry, got %d", len(repo.entries))
	}
	entry := repo.entries[0]
	if entry.UserID != userID {
		t.Errorf("user_id = %v, want %v", entry.UserID, userID)
	}
	if entry.Action != domain.ActionLoginSuccess || entry.Resource != domain.ResourceAuth {
		t.Errorf("action/resource = %q/%q", entry.Action, entry.Resource)
	}
	if entry.IP != "192.168.1.1" {
		t.Errorf("ip = %q", entry.IP)
	}
	if entry.Metadata != "ua=curl" {
		t.Errorf("metadata = %q", entry.Metadata)
	}
	if entry.ID == uuid.Nil || entry.CreatedAt.IsZero() {
		t.Error("id and created_at must be set")
	}
}

func TestLogger_LogEvent_NoExtractor(t *testing.T) {
	repo := &mockAuditRepo{}
	NewLogger(repo, nil, nil).LogEvent(context.Background(), uuid.Nil, domain.ActionLoginFailure, "")
	if len(repo.entries) != 1 || repo.entries[0].IP != "unknown" {
		t.Fatalf("entries = %+v", repo.entries)
	}
	if repo.entries[0].UserID != uuid.Nil {
		t.Error("anonymous event should keep nil user id")
	}
}

func TestLogger_LogEvent_RepoErrorSwallowed(t *testing.T) {
	repo := &mockAuditRepo{createErr: errors.New("db down")}
	NewLogger(repo, nil, nil).LogEvent(context.Background(), uuid.New(), domain.ActionLogout, "")
	if len(repo.entries) != 0 {
		t.Error("failed create should not record")
	}
}

func TestLogger_LogEvent_CanceledRequest(t *testing.T) {
	repo := &mockAuditRepo{}
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	NewLogger(repo, nil, nil).LogEvent(ctx, uuid.New(), domain.ActionLogout, "")
	if repo.ctxErr != nil {
		t.Errorf("repo saw canceled context: %v", repo.ctxErr)
	}
	if len(repo.entries) != 1 {
		t.Error("event should be written after request cancellation")
	}
}

func TestLogger_NilSafe(t *testing.T) {
	var l *Logger
	l.LogEvent(context.Background(), uuid.New(), domain.ActionLogout, "")
	NewLogger(nil, nil, nil).LogEvent(context.Background(), uuid.New(), domain.ActionLogout, "")
}
