// Server runs the auth gRPC service. Configuration comes from the environment and an optional .env.
package main

import (
	"context"
	"database/sql"
	"errors"
	"log/slog"
	"net"
	"os"
	"os/signal"
	"syscall"
	"time"

	"google.golang.org/grpc"
	"google.golang.org/grpc/health"

	authv1 "auth-service/api/auth/v1"
	devv1 "auth-service/api/dev/v1"
	"auth-service/internal/audit"
	auditrepo "auth-service/internal/audit/repository"
	"auth-service/internal/config"
	"auth-service/internal/db"
	"auth-service/internal/db/migrate"
	"auth-service/internal/devreset"
	devhandler "auth-service/internal/devreset/handler"
	healthcheck "auth-service/internal/health"
	"auth-service/internal/identity/service"
	"auth-service/internal/logger"
	policyengine "auth-service/internal/policy/engine"
	"auth-service/internal/refreshtoken"
	rtrepo "auth-service/internal/refreshtoken/repository"
	"auth-service/internal/security"
	"auth-service/internal/server"
	"auth-service/internal/server/interceptors"
	"auth-service/internal/storage/sqlite"
	"auth-service/internal/telemetry"
	telemetryotel "auth-service/internal/telemetry/otel"
	"auth-service/internal/telemetry/producer"
	userrepo "auth-service/internal/user/repository"
)

const healthInterval = 10 * time.Second

// repositories is the persistence backend selected by configuration.
type repositories struct {
	users   userrepo.Repository
	tokens  rtrepo.Repository
	audit   auditrepo.Repository
	pinger  healthcheck.Pinger
	closeFn func() error
}

func main() {
	cfg, err := config.Load()
	if err != nil {
		logger.New("info").Error("server: load config", "error", err)
		os.Exit(1)
	}
	log := logger.New(cfg.LogLevel)
	if err := run(cfg, log); err != nil {
		log.Error("server: exited with error", "error", err)
		os.Exit(1)
	}
}

func run(cfg *config.Config, log *slog.Logger) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	providers, err := telemetryotel.NewProviders(ctx, telemetryotel.Options{
		Endpoint:    cfg.OTELEndpoint,
		Insecure:    cfg.OTELInsecure,
		ServiceName: cfg.OTELService,
	}, log)
	if err != nil {
		return err
	}
	providers.SetGlobal()

	repos, err := openRepositories(ctx, cfg, log)
	if err != nil {
		return err
	}
	defer repos.closeFn()

	keys, err := security.NewKeyManager(cfg.KeyConfig())
	if err != nil {
		return err
	}
	log.Info("server: signing keys ready", "state", keys.State().String(), "kid", keys.KeyID())
	tokens, err := security.NewTokenService(keys, cfg.TokenConfig())
	if err != nil {
		return err
	}

	module, err := policyengine.LoadModule(cfg.AccessPolicyFile)
	if err != nil {
		return err
	}
	policy, err := policyengine.NewOPAEvaluator(ctx, policyengine.Options{
		Module:          module,
		RequireVerified: cfg.RequireVerifiedEmail,
	}, log)
	if err != nil {
		return err
	}

	auditLogger := audit.NewLogger(repos.audit, interceptors.ClientIP, log)

	var resetSender service.ResetTokenSender
	var devServer *devhandler.Server
	if cfg.IsDevelopment() {
		outbox := devreset.NewOutbox()
		resetSender = outbox
		devServer = devhandler.NewServer(outbox)
		log.Warn("server: development mode, DevService exposes password reset tokens")
	}

	authSvc, err := service.NewAuthService(service.Deps{
		Users:         userrepo.WithTimeout(repos.users, cfg.StoreTimeout),
		RefreshTokens: refreshtoken.NewStore(repos.tokens, refreshtoken.WithTimeout(cfg.StoreTimeout)),
		Tokens:        tokens,
		Keys:          keys,
		Hasher:        security.NewHasher(cfg.BcryptCost),
		Policy:        policy,
		Audit:         auditLogger,
		AuditTrail:    repos.audit,
		ResetSender:   resetSender,
		Logger:        log,
	}, service.Config{
		RefreshTTLDays:                 cfg.JWTRefreshTTLDays,
		ResetTokenTTL:                  cfg.ResetTokenTTL(),
		RotateRefreshOnUse:             cfg.RefreshRotateOnUse,
		RevokeSessionsOnPasswordChange: cfg.RevokeSessionsOnPasswordChange,
		PasswordPolicy:                 cfg.PasswordPolicy(),
	})
	if err != nil {
		return err
	}

	var emitters []telemetry.EventEmitter
	kafkaProducer := producer.NewKafkaProducer(cfg.TelemetryKafkaBrokersList(), cfg.TelemetryKafkaTopic)
	if kafkaProducer != nil {
		defer kafkaProducer.Close()
		emitters = append(emitters, kafkaProducer)
		log.Info("server: auth events to kafka", "topic", kafkaProducer.Topic())
	}
	if cfg.OTELEndpoint != "" {
		emitters = append(emitters, telemetryotel.NewEventEmitter(providers.LoggerProvider))
	}

	grpcServer := server.NewGRPCServer(server.Options{
		Tokens:  tokens,
		Audit:   auditLogger,
		Emitter: telemetry.NewMulti(emitters...),
		Logger:  log,
	})
	healthServer := health.NewServer()
	server.RegisterServices(grpcServer, server.Deps{
		Auth:   authSvc,
		Health: healthServer,
		Dev:    devServerOrNil(devServer),
	})
	go healthcheck.NewChecker(repos.pinger, policy, log).Run(ctx, healthServer, healthInterval, authv1.ServiceName)

	lis, err := net.Listen("tcp", cfg.GRPCAddr)
	if err != nil {
		return err
	}
	serveErr := make(chan error, 1)
	go func() {
		log.Info("server: gRPC listening", "addr", cfg.GRPCAddr)
		serveErr <- grpcServer.Serve(lis)
	}()

	select {
	case err := <-serveErr:
		if err != nil && !errors.Is(err, grpc.ErrServerStopped) {
			return err
		}
	case <-ctx.Done():
		log.Info("server: shutting down")
		healthServer.Shutdown()
		grpcServer.GracefulStop()
	}

	// Let in-flight async event emits finish before the exporters go away.
	time.Sleep(telemetry.ShutdownDrainDuration)
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := providers.Shutdown(shutdownCtx); err != nil {
		log.Warn("server: otel shutdown", "error", err)
	}
	log.Info("server: stopped")
	return nil
}

// devServerOrNil keeps a nil *Server from becoming a non-nil interface.
func devServerOrNil(s *devhandler.Server) devv1.DevServiceServer {
	if s == nil {
		return nil
	}
	return s
}

// openRepositories uses Postgres when DATABASE_URL is set and SQLite otherwise.
func openRepositories(ctx context.Context, cfg *config.Config, log *slog.Logger) (*repositories, error) {
	if cfg.DatabaseURL != "" {
		if err := migrate.Run(cfg.DatabaseURL, "up"); err != nil && !errors.Is(err, migrate.ErrNoChange) {
			return nil, err
		}
		conn, err := db.Open(ctx, cfg.DatabaseURL)
		if err != nil {
			return nil, err
		}
		log.Info("server: using postgres")
		return postgresRepositories(conn), nil
	}
	if cfg.SQLitePath == "" {
		return nil, errors.New("server: set DATABASE_URL or SQLITE_PATH")
	}
	store, err := sqlite.New(ctx, cfg.SQLitePath)
	if err != nil {
		return nil, err
	}
	log.Info("server: using sqlite", "path", cfg.SQLitePath)
	return &repositories{
		users:   store.Users(),
		tokens:  store.RefreshTokens(),
		audit:   store.AuditLogs(),
		pinger:  store,
		closeFn: store.Close,
	}, nil
}

func postgresRepositories(conn *sql.DB) *repositories {
	return &repositories{
		users:   userrepo.NewPostgresRepository(conn),
		tokens:  rtrepo.NewPostgresRepository(conn),
		audit:   auditrepo.NewPostgresRepository(conn),
		pinger:  conn,
		closeFn: conn.Close,
	}
}
