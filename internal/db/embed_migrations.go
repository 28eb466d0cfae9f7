package db

import "embed"

// MigrationFS embeds the Postgres schema (users, refresh_tokens, audit_logs).
// Applied by cmd/migrate through the migrate runner.
//
//go:embed migrations/*.sql
var MigrationFS embed.FS
