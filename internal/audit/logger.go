package audit

import (
	"context"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"auth-service/internal/audit/domain"
	auditrepo "auth-service/internal/audit/repository"
)

// IPExtractor returns the client IP from the request context (e.g. gRPC metadata or peer).
type IPExtractor func(context.Context) string

// AuditLogger writes a single auth audit event.
// LogEvent is best-effort: failures are logged and do not affect the caller.
type AuditLogger interface {
	LogEvent(ctx context.Context, userID uuid.UUID, action, metadata string)
}

// Logger implements AuditLogger using the audit repository and an optional IP extractor.
type Logger struct {
	repo        auditrepo.Repository
	ipExtractor IPExtractor
	log         *slog.Logger
}

// NewLogger returns an AuditLogger that persists to repo and uses ipExtractor for client IP.
// ipExtractor may be nil; then IP is recorded as "unknown".
func NewLogger(repo auditrepo.Repository, ipExtractor IPExtractor, log *slog.Logger) *Logger {
	if log == nil {
		log = slog.Default()
	}
	return &Logger{repo: repo, ipExtractor: ipExtractor, log: log}
}

// LogEvent writes one audit log entry on resource "auth".
func (l *Logger) LogEvent(ctx context.Context, userID uuid.UUID, action, metadata string) {
	if l == nil || l.repo == nil {
		return
	}
	ip := "unknown"
	if l.ipExtractor != nil {
		if v := l.ipExtractor(ctx); v != "" {
			ip = v
		}
	}
	entry := &domain.AuditLog{
		ID:        uuid.New(),
		UserID:    userID,
		Action:    action,
		Resource:  domain.ResourceAuth,
		IP:        ip,
		Metadata:  metadata,
		CreatedAt: time.Now().UTC(),
	}
	// The request may already be canceled; the entry should still land.
	if err := l.repo.Create(context.WithoutCancel(ctx), entry); err != nil {
		l.log.WarnContext(ctx, "audit: failed to log event", "action", action, "error", err)
	}
}
