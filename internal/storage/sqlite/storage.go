// Package sqlite is the single-file backend: users, refresh tokens and the audit trail in one
// SQLite database, migrated with goose on open.
package sqlite

import (
	"context"
	"database/sql"
	"embed"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/pressly/goose/v3"
	"modernc.org/sqlite"
	sqlite3 "modernc.org/sqlite/lib"
)

//go:embed migrations/*.sql
var embedMigrations embed.FS

// Storage owns the database handle. Its repositories share it.
type Storage struct {
	db *sql.DB
}

// New opens (creating if needed) the database at dbPath and applies pending migrations.
// Use ":memory:" only with care: each pooled connection would get its own database, so the
// pool is pinned to one connection.
func New(ctx context.Context, dbPath string) (*Storage, error) {
	dsn := dbPath
	if !strings.Contains(dsn, "?") {
		// RFC 3339-like text sorts chronologically, which ORDER BY created_at relies on.
		dsn += "?_time_format=sqlite"
	}
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	// One writer at a time; WAL lets readers proceed alongside it.
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)

	pragmas := []string{
		"PRAGMA journal_mode = WAL;",
		"PRAGMA synchronous = NORMAL;",
		"PRAGMA foreign_keys = ON;",
		"PRAGMA busy_timeout = 5000;",
	}
	for _, pragma := range pragmas {
		if _, err := db.ExecContext(ctx, pragma); err != nil {
			db.Close()
			return nil, fmt.Errorf("failed to set pragma: %w", err)
		}
	}

	s := &Storage{db: db}
	if err := s.runMigrations(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to run migrations: %w", err)
	}
	return s, nil
}

func (s *Storage) runMigrations(ctx context.Context) error {
	goose.SetBaseFS(embedMigrations)
	if err := goose.SetDialect("sqlite3"); err != nil {
		return err
	}
	if err := goose.UpContext(ctx, s.db, "migrations"); err != nil {
		return fmt.Errorf("goose up failed: %w", err)
	}
	return nil
}

// Close closes the database connection.
func (s *Storage) Close() error {
	return s.db.Close()
}

// PingContext checks the connection; used by the health checker.
func (s *Storage) PingContext(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

// DB returns the underlying database connection for testing purposes.
func (s *Storage) DB() *sql.DB {
	return s.db
}

func (s *Storage) Users() *UserRepository {
	return &UserRepository{db: s.db}
}

func (s *Storage) RefreshTokens() *RefreshTokenRepository {
	return &RefreshTokenRepository{db: s.db}
}

func (s *Storage) AuditLogs() *AuditRepository {
	return &AuditRepository{db: s.db}
}

func isUniqueViolation(err error) bool {
	var se *sqlite.Error
	if !errors.As(err, &se) {
		return false
	}
	return se.Code() == sqlite3.SQLITE_CONSTRAINT_UNIQUE || se.Code() == sqlite3.SQLITE_CONSTRAINT_PRIMARYKEY
}

func nullString(s string) sql.NullString {
	return sql.NullString{String: s, Valid: s != ""}
}

func nullTime(t *time.Time) sql.NullTime {
	if t == nil {
		return sql.NullTime{}
	}
	return sql.NullTime{Time: t.UTC(), Valid: true}
}

func timePtr(nt sql.NullTime) *time.Time {
	if !nt.Valid {
		return nil
	}
	t := nt.Time.UTC()
	return &t
}
