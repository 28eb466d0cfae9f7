// Package server assembles the gRPC server: interceptors, stats handler and service registration.
package server

import (
	"log/slog"

	"go.opentelemetry.io/contrib/instrumentation/google.golang.org/grpc/otelgrpc"
	"google.golang.org/grpc"
	"google.golang.org/grpc/health"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"

	authv1 "auth-service/api/auth/v1"
	devv1 "auth-service/api/dev/v1"
	"auth-service/internal/audit"
	identityhandler "auth-service/internal/identity/handler"
	identityservice "auth-service/internal/identity/service"
	"auth-service/internal/security"
	"auth-service/internal/server/interceptors"
	"auth-service/internal/telemetry"
)

// Deps holds optional service dependencies for gRPC handlers.
type Deps struct {
	// Auth backs AuthService. If nil, auth RPCs return Unimplemented.
	Auth *identityservice.AuthService
	// Health is the standard grpc.health.v1 server. If nil, the health service is not registered.
	Health *health.Server
	// Dev is the dev-only DevService (GetResetToken). If nil, DevService is not registered.
	// Set it only outside production.
	Dev devv1.DevServiceServer
}

// Options configures the interceptor chain of NewGRPCServer.
type Options struct {
	Tokens  *security.TokenService
	Audit   audit.AuditLogger
	Emitter telemetry.EventEmitter
	Logger  *slog.Logger
	// ServerOptions are appended after the built-in options.
	ServerOptions []grpc.ServerOption
}

// NewGRPCServer returns a server with the OTel stats handler and the interceptors chained as
// auth, audit, telemetry.
func NewGRPCServer(opts Options) *grpc.Server {
	log := opts.Logger
	if log == nil {
		log = slog.Default()
	}
	base := []grpc.ServerOption{
		grpc.StatsHandler(otelgrpc.NewServerHandler()),
		grpc.ChainUnaryInterceptor(
			interceptors.AuthUnary(opts.Tokens, PublicMethods()),
			interceptors.AuditUnary(opts.Audit, AuditSkipMethods()),
			interceptors.TelemetryUnary(opts.Emitter, TelemetrySkipMethods(), log),
		),
	}
	return grpc.NewServer(append(base, opts.ServerOptions...)...)
}

// RegisterServices registers AuthService and, when provided, the health and dev services.
func RegisterServices(s grpc.ServiceRegistrar, deps Deps) {
	authv1.RegisterAuthServiceServer(s, identityhandler.NewAuthServer(deps.Auth))
	if deps.Health != nil {
		healthpb.RegisterHealthServer(s, deps.Health)
	}
	if deps.Dev != nil {
		devv1.RegisterDevServiceServer(s, deps.Dev)
	}
}

// PublicMethods is the set of full method names that do not require a Bearer token.
func PublicMethods() map[string]bool {
	return map[string]bool{
		authv1.AuthService_Register_FullMethodName:       true,
		authv1.AuthService_Login_FullMethodName:          true,
		authv1.AuthService_Refresh_FullMethodName:        true,
		authv1.AuthService_Logout_FullMethodName:         true,
		authv1.AuthService_ForgotPassword_FullMethodName: true,
		authv1.AuthService_ResetPassword_FullMethodName:  true,
		authv1.AuthService_GetPublicKey_FullMethodName:   true,
		healthpb.Health_Check_FullMethodName:             true,
		healthpb.Health_Watch_FullMethodName:             true,
		devv1.DevService_GetResetToken_FullMethodName:    true,
	}
}

// AuditSkipMethods lists RPCs the audit interceptor ignores: health probes, RPCs whose service
// method writes its own audit event, and reads of the audit trail itself.
func AuditSkipMethods() map[string]bool {
	return map[string]bool{
		healthpb.Health_Check_FullMethodName:              true,
		healthpb.Health_Watch_FullMethodName:              true,
		authv1.AuthService_LogoutAll_FullMethodName:       true,
		authv1.AuthService_ChangePassword_FullMethodName:  true,
		authv1.AuthService_ListAuditEvents_FullMethodName: true,
	}
}

// TelemetrySkipMethods lists RPCs that emit no grpc_request event.
func TelemetrySkipMethods() map[string]bool {
	return map[string]bool{
		healthpb.Health_Check_FullMethodName: true,
		healthpb.Health_Watch_FullMethodName: true,
	}
}
