package server

import (
	"context"
	"net"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/credentials/insecure"
	"google.golang.org/grpc/health"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"
	"google.golang.org/grpc/metadata"
	"google.golang.org/grpc/status"
	"google.golang.org/grpc/test/bufconn"

	authv1 "auth-service/api/auth/v1"
	devv1 "auth-service/api/dev/v1"
	"auth-service/internal/audit"
	"auth-service/internal/devreset"
	devhandler "auth-service/internal/devreset/handler"
	identityservice "auth-service/internal/identity/service"
	"auth-service/internal/logger"
	"auth-service/internal/refreshtoken"
	"auth-service/internal/security"
	"auth-service/internal/server/interceptors"
	"auth-service/internal/storage/sqlite"
	"auth-service/internal/telemetry"
)

// mockServiceRegistrar implements grpc.ServiceRegistrar for testing.
type mockServiceRegistrar struct {
	services []string
}

func (m *mockServiceRegistrar) RegisterService(desc *grpc.ServiceDesc, impl any) {
	m.services = append(m.services, desc.ServiceName)
}

func TestRegisterServices(t *testing.T) {
	t.Run("auth only", func(t *testing.T) {
		reg := &mockServiceRegistrar{}
		RegisterServices(reg, Deps{})
		assert.Equal(t, []string{authv1.ServiceName}, reg.services)
	})
	t.Run("with health and dev", func(t *testing.T) {
		reg := &mockServiceRegistrar{}
		RegisterServices(reg, Deps{
			Health: health.NewServer(),
			Dev:    devhandler.NewServer(devreset.NewOutbox()),
		})
		assert.Equal(t, []string{authv1.ServiceName, "grpc.health.v1.Health", "dev.v1.DevService"}, reg.services)
	})
}

func TestMethodSets(t *testing.T) {
	public := PublicMethods()
	for _, m := range []string{
		authv1.AuthService_LogoutAll_FullMethodName,
		authv1.AuthService_Me_FullMethodName,
		authv1.AuthService_ChangePassword_FullMethodName,
		authv1.AuthService_ListAuditEvents_FullMethodName,
	} {
		assert.False(t, public[m], "%s must require a bearer token", m)
	}
	assert.True(t, public[authv1.AuthService_Login_FullMethodName])
	assert.True(t, public[healthpb.Health_Check_FullMethodName])
	assert.True(t, AuditSkipMethods()[authv1.AuthService_ChangePassword_FullMethodName])
	assert.False(t, TelemetrySkipMethods()[authv1.AuthService_Login_FullMethodName])
}

type recordingEmitter struct {
	events chan *telemetry.AuthEvent
}

func (r *recordingEmitter) Emit(ctx context.Context, e *telemetry.AuthEvent) error {
	select {
	case r.events <- e:
	default:
	}
	return nil
}

type e2e struct {
	auth   authv1.AuthServiceClient
	dev    devv1.DevServiceClient
	health healthpb.HealthClient
	events chan *telemetry.AuthEvent
}

func startServer(t *testing.T) *e2e {
	t.Helper()
	ctx := context.Background()
	store, err := sqlite.New(ctx, filepath.Join(t.TempDir(), "auth.db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = store.Close() })

	keys := security.NewTestKeyManager(t)
	tokens, err := security.NewTokenService(keys, security.TokenConfig{})
	require.NoError(t, err)
	auditLogger := audit.NewLogger(store.AuditLogs(), interceptors.ClientIP, logger.Discard())
	outbox := devreset.NewOutbox()
	svc, err := identityservice.NewAuthService(identityservice.Deps{
		Users:         store.Users(),
		RefreshTokens: refreshtoken.NewStore(store.RefreshTokens()),
		Tokens:        tokens,
		Keys:          keys,
		Hasher:        security.NewHasher(4),
		Audit:         auditLogger,
		AuditTrail:    store.AuditLogs(),
		ResetSender:   outbox,
		Logger:        logger.Discard(),
	}, identityservice.Config{RotateRefreshOnUse: true, RevokeSessionsOnPasswordChange: true})
	require.NoError(t, err)

	emitter := &recordingEmitter{events: make(chan *telemetry.AuthEvent, 64)}
	srv := NewGRPCServer(Options{Tokens: tokens, Audit: auditLogger, Emitter: emitter, Logger: logger.Discard()})
	healthSrv := health.NewServer()
	healthSrv.SetServingStatus("", healthpb.HealthCheckResponse_SERVING)
	RegisterServices(srv, Deps{Auth: svc, Health: healthSrv, Dev: devhandler.NewServer(outbox)})

	lis := bufconn.Listen(1 << 20)
	go func() { _ = srv.Serve(lis) }()
	t.Cleanup(srv.Stop)

	conn, err := grpc.NewClient("passthrough:///bufnet",
		grpc.WithContextDialer(func(ctx context.Context, _ string) (net.Conn, error) { return lis.DialContext(ctx) }),
		grpc.WithTransportCredentials(insecure.NewCredentials()),
	)
	require.NoError(t, err)
	t.Cleanup(func() { _ = conn.Close() })

	return &e2e{
		auth:   authv1.NewAuthServiceClient(conn),
		dev:    devv1.NewDevServiceClient(conn),
		health: healthpb.NewHealthClient(conn),
		events: emitter.events,
	}
}

func bearer(token string) context.Context {
	return metadata.AppendToOutgoingContext(context.Background(), "authorization", "Bearer "+token)
}

func TestEndToEnd_SessionLifecycle(t *testing.T) {
	c := startServer(t)
	ctx := context.Background()

	_, err := c.auth.Register(ctx, &authv1.RegisterRequest{Email: "e2e@example.com", Password: "Password123", FullName: "E2E"})
	require.NoError(t, err)

	login, err := c.auth.Login(ctx, &authv1.LoginRequest{Email: "E2E@example.com", Password: "Password123"})
	require.NoError(t, err)
	assert.Equal(t, "bearer", login.TokenType)
	assert.EqualValues(t, 900, login.ExpiresIn)

	me, err := c.auth.Me(bearer(login.AccessToken), &authv1.MeRequest{})
	require.NoError(t, err)
	assert.Equal(t, "e2e@example.com", me.User.Email)

	_, err = c.auth.Me(ctx, &authv1.MeRequest{})
	assert.Equal(t, codes.Unauthenticated, status.Code(err))
	_, err = c.auth.Me(bearer(login.RefreshToken), &authv1.MeRequest{})
	assert.Equal(t, codes.Unauthenticated, status.Code(err), "a refresh token is not a bearer credential")

	rotated, err := c.auth.Refresh(ctx, &authv1.RefreshRequest{RefreshToken: login.RefreshToken})
	require.NoError(t, err)
	require.NotEmpty(t, rotated.RefreshToken)
	_, err = c.auth.Refresh(ctx, &authv1.RefreshRequest{RefreshToken: login.RefreshToken})
	assert.Equal(t, codes.Unauthenticated, status.Code(err))

	out, err := c.auth.Logout(ctx, &authv1.LogoutRequest{RefreshToken: rotated.RefreshToken})
	require.NoError(t, err)
	assert.True(t, out.Success)
	_, err = c.auth.Refresh(ctx, &authv1.RefreshRequest{RefreshToken: rotated.RefreshToken})
	assert.Equal(t, codes.Unauthenticated, status.Code(err))

	trail, err := c.auth.ListAuditEvents(bearer(login.AccessToken), &authv1.ListAuditEventsRequest{Limit: 100})
	require.NoError(t, err)
	actions := make([]string, 0, len(trail.Events))
	for _, e := range trail.Events {
		actions = append(actions, e.Action)
	}
	assert.Contains(t, actions, "register")
	assert.Contains(t, actions, "login_success")
	assert.Contains(t, actions, "me", "authenticated RPCs are audited by the interceptor")
	assert.Contains(t, actions, "logout")

	select {
	case e := <-c.events:
		assert.Equal(t, telemetry.EventGRPCRequest, e.EventType)
	case <-time.After(2 * time.Second):
		t.Fatal("no telemetry event emitted")
	}
}

func TestEndToEnd_PasswordResetViaDevService(t *testing.T) {
	c := startServer(t)
	ctx := context.Background()

	_, err := c.auth.Register(ctx, &authv1.RegisterRequest{Email: "reset@example.com", Password: "Password123"})
	require.NoError(t, err)
	_, err = c.auth.ForgotPassword(ctx, &authv1.ForgotPasswordRequest{Email: "reset@example.com"})
	require.NoError(t, err)

	got, err := c.dev.GetResetToken(ctx, &devv1.GetResetTokenRequest{Email: "reset@example.com"})
	require.NoError(t, err)
	require.NotEmpty(t, got.Token)

	_, err = c.auth.ResetPassword(ctx, &authv1.ResetPasswordRequest{Token: got.Token, NewPassword: "Changed456x"})
	require.NoError(t, err)

	_, err = c.auth.Login(ctx, &authv1.LoginRequest{Email: "reset@example.com", Password: "Password123"})
	assert.Equal(t, codes.Unauthenticated, status.Code(err))
	_, err = c.auth.Login(ctx, &authv1.LoginRequest{Email: "reset@example.com", Password: "Changed456x"})
	assert.NoError(t, err)
}

func TestEndToEnd_PublicKeyAndHealth(t *testing.T) {
	c := startServer(t)
	ctx := context.Background()

	key, err := c.auth.GetPublicKey(ctx, &authv1.GetPublicKeyRequest{})
	require.NoError(t, err)
	verifierKeys, err := security.NewVerifierKeys(key.PublicKey)
	require.NoError(t, err)
	verifier, err := security.NewTokenService(verifierKeys, security.TokenConfig{Algorithm: key.Algorithm})
	require.NoError(t, err)

	_, err = c.auth.Register(ctx, &authv1.RegisterRequest{Email: "pk@example.com", Password: "Password123"})
	require.NoError(t, err)
	login, err := c.auth.Login(ctx, &authv1.LoginRequest{Email: "pk@example.com", Password: "Password123"})
	require.NoError(t, err)
	claims, err := verifier.Verify(login.AccessToken)
	require.NoError(t, err)
	assert.Equal(t, "pk@example.com", claims.Email)

	resp, err := c.health.Check(ctx, &healthpb.HealthCheckRequest{})
	require.NoError(t, err)
	assert.Equal(t, healthpb.HealthCheckResponse_SERVING, resp.Status)
}
