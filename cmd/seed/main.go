// seed inserts development accounts for local testing.
// Idempotent: an account whose email already exists is skipped.
package main

import (
	"context"
	"errors"
	"os"
	"time"

	"github.com/google/uuid"

	"auth-service/internal/config"
	"auth-service/internal/db"
	"auth-service/internal/db/migrate"
	"auth-service/internal/logger"
	"auth-service/internal/security"
	"auth-service/internal/storage/sqlite"
	"auth-service/internal/user/domain"
	userrepo "auth-service/internal/user/repository"
)

// devPassword satisfies the default password policy.
const devPassword = "Password123"

type seedUser struct {
	email    string
	fullName string
	verified bool
}

var seedUsers = []seedUser{
	{email: "dev@example.com", fullName: "Dev User", verified: true},
	{email: "member@example.com", fullName: "Member User", verified: false},
}

func main() {
	cfg, err := config.Load()
	if err != nil {
		logger.New("info").Error("seed: load config", "error", err)
		os.Exit(1)
	}
	log := logger.New(cfg.LogLevel)
	ctx := context.Background()

	var users userrepo.Repository
	switch {
	case cfg.DatabaseURL != "":
		if err := migrate.Run(cfg.DatabaseURL, "up"); err != nil && !errors.Is(err, migrate.ErrNoChange) {
			log.Error("seed: migrate", "error", err)
			os.Exit(1)
		}
		conn, err := db.Open(ctx, cfg.DatabaseURL)
		if err != nil {
			log.Error("seed: open postgres", "error", err)
			os.Exit(1)
		}
		defer conn.Close()
		users = userrepo.NewPostgresRepository(conn)
	case cfg.SQLitePath != "":
		store, err := sqlite.New(ctx, cfg.SQLitePath)
		if err != nil {
			log.Error("seed: open sqlite", "error", err)
			os.Exit(1)
		}
		defer store.Close()
		users = store.Users()
	default:
		log.Error("seed: set DATABASE_URL or SQLITE_PATH")
		os.Exit(1)
	}

	hash, err := security.NewHasher(cfg.BcryptCost).Hash(devPassword)
	if err != nil {
		log.Error("seed: hash password", "error", err)
		os.Exit(1)
	}

	now := time.Now().UTC()
	for _, su := range seedUsers {
		existing, err := users.GetByEmail(ctx, su.email)
		if err != nil {
			log.Error("seed: look up user", "email", su.email, "error", err)
			os.Exit(1)
		}
		if existing != nil {
			log.Info("seed: user exists, skipping", "email", su.email)
			continue
		}
		u := &domain.User{
			ID:             uuid.New(),
			Email:          su.email,
			FullName:       su.fullName,
			HashedPassword: hash,
			IsActive:       true,
			IsVerified:     su.verified,
			CreatedAt:      now,
			UpdatedAt:      now,
		}
		if err := users.Create(ctx, u); err != nil {
			log.Error("seed: create user", "email", su.email, "error", err)
			os.Exit(1)
		}
		log.Info("seed: created user", "email", su.email, "verified", su.verified)
	}
	log.Info("seed: done", "password", devPassword)
}
