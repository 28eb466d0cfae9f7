// Package handler exposes AuthService over gRPC.
package handler

import (
	"context"
	"errors"
	"log/slog"
	"strings"
	"time"

	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"

	authv1 "auth-service/api/auth/v1"
	auditdomain "auth-service/internal/audit/domain"
	"auth-service/internal/identity/service"
	"auth-service/internal/refreshtoken"
	"auth-service/internal/security"
	"auth-service/internal/server/interceptors"
	userdomain "auth-service/internal/user/domain"
)

const forgotPasswordMessage = "if the email is registered, a reset token has been sent"

// AuthServer implements auth.v1.AuthService on top of service.AuthService.
type AuthServer struct {
	authv1.UnimplementedAuthServiceServer
	auth *service.AuthService
}

// NewAuthServer returns an Auth gRPC server. auth may be nil; then every RPC but Logout
// returns Unimplemented.
func NewAuthServer(auth *service.AuthService) *AuthServer {
	return &AuthServer{auth: auth}
}

func (s *AuthServer) Register(ctx context.Context, req *authv1.RegisterRequest) (*authv1.RegisterResponse, error) {
	if s.auth == nil {
		return nil, status.Error(codes.Unimplemented, "method Register not implemented")
	}
	user, err := s.auth.Register(ctx, req.Email, req.Password, req.FullName)
	if err != nil {
		return nil, authErr(err)
	}
	return &authv1.RegisterResponse{User: userToProto(user)}, nil
}

func (s *AuthServer) Login(ctx context.Context, req *authv1.LoginRequest) (*authv1.LoginResponse, error) {
	if s.auth == nil {
		return nil, status.Error(codes.Unimplemented, "method Login not implemented")
	}
	pair, err := s.auth.Login(ctx, req.Email, req.Password, clientInfo(ctx))
	if err != nil {
		return nil, authErr(err)
	}
	return &authv1.LoginResponse{
		AccessToken:  pair.AccessToken,
		RefreshToken: pair.RefreshToken,
		TokenType:    pair.TokenType,
		ExpiresIn:    seconds(pair.ExpiresIn),
	}, nil
}

func (s *AuthServer) Refresh(ctx context.Context, req *authv1.RefreshRequest) (*authv1.RefreshResponse, error) {
	if s.auth == nil {
		return nil, status.Error(codes.Unimplemented, "method Refresh not implemented")
	}
	token := strings.TrimSpace(req.RefreshToken)
	if token == "" {
		return nil, status.Error(codes.InvalidArgument, "refresh_token required")
	}
	pair, err := s.auth.RefreshAccessToken(ctx, token, clientInfo(ctx))
	if err != nil {
		return nil, authErr(err)
	}
	return &authv1.RefreshResponse{
		AccessToken:  pair.AccessToken,
		RefreshToken: pair.RefreshToken,
		TokenType:    pair.TokenType,
		ExpiresIn:    seconds(pair.ExpiresIn),
	}, nil
}

// Logout always reports success, whether or not the token was known.
func (s *AuthServer) Logout(ctx context.Context, req *authv1.LogoutRequest) (*authv1.LogoutResponse, error) {
	if s.auth != nil {
		s.auth.Logout(ctx, strings.TrimSpace(req.RefreshToken))
	}
	return &authv1.LogoutResponse{Message: "logged out", Success: true}, nil
}

func (s *AuthServer) LogoutAll(ctx context.Context, req *authv1.LogoutAllRequest) (*authv1.LogoutAllResponse, error) {
	if s.auth == nil {
		return nil, status.Error(codes.Unimplemented, "method LogoutAll not implemented")
	}
	userID, ok := interceptors.GetUserID(ctx)
	if !ok {
		return nil, status.Error(codes.Unauthenticated, "not authenticated")
	}
	n, err := s.auth.LogoutAll(ctx, userID)
	if err != nil {
		return nil, authErr(err)
	}
	return &authv1.LogoutAllResponse{Revoked: int32(n)}, nil
}

func (s *AuthServer) Me(ctx context.Context, req *authv1.MeRequest) (*authv1.MeResponse, error) {
	if s.auth == nil {
		return nil, status.Error(codes.Unimplemented, "method Me not implemented")
	}
	userID, ok := interceptors.GetUserID(ctx)
	if !ok {
		return nil, status.Error(codes.Unauthenticated, "not authenticated")
	}
	user, err := s.auth.CurrentUser(ctx, userID)
	if err != nil {
		return nil, authErr(err)
	}
	return &authv1.MeResponse{User: userToProto(user)}, nil
}

func (s *AuthServer) ChangePassword(ctx context.Context, req *authv1.ChangePasswordRequest) (*authv1.ChangePasswordResponse, error) {
	if s.auth == nil {
		return nil, status.Error(codes.Unimplemented, "method ChangePassword not implemented")
	}
	userID, ok := interceptors.GetUserID(ctx)
	if !ok {
		return nil, status.Error(codes.Unauthenticated, "not authenticated")
	}
	if err := s.auth.ChangePassword(ctx, userID, req.CurrentPassword, req.NewPassword); err != nil {
		return nil, authErr(err)
	}
	return &authv1.ChangePasswordResponse{Message: "password changed"}, nil
}

// ForgotPassword answers the same way for known and unknown emails. A failure to store or
// send the token is only logged: reporting it would tell the caller the email exists.
func (s *AuthServer) ForgotPassword(ctx context.Context, req *authv1.ForgotPasswordRequest) (*authv1.ForgotPasswordResponse, error) {
	if s.auth == nil {
		return nil, status.Error(codes.Unimplemented, "method ForgotPassword not implemented")
	}
	if err := s.auth.InitiatePasswordReset(ctx, req.Email); err != nil {
		slog.ErrorContext(ctx, "handler: password reset request failed", "error", err)
	}
	return &authv1.ForgotPasswordResponse{Message: forgotPasswordMessage}, nil
}

func (s *AuthServer) ResetPassword(ctx context.Context, req *authv1.ResetPasswordRequest) (*authv1.ResetPasswordResponse, error) {
	if s.auth == nil {
		return nil, status.Error(codes.Unimplemented, "method ResetPassword not implemented")
	}
	if err := s.auth.CompletePasswordReset(ctx, strings.TrimSpace(req.Token), req.NewPassword); err != nil {
		return nil, authErr(err)
	}
	return &authv1.ResetPasswordResponse{Message: "password reset"}, nil
}

func (s *AuthServer) GetPublicKey(ctx context.Context, req *authv1.GetPublicKeyRequest) (*authv1.GetPublicKeyResponse, error) {
	if s.auth == nil {
		return nil, status.Error(codes.Unimplemented, "method GetPublicKey not implemented")
	}
	info := s.auth.PublicKey()
	return &authv1.GetPublicKeyResponse{
		PublicKey: info.PEM,
		Algorithm: info.Algorithm,
		KeyId:     info.KeyID,
	}, nil
}

func (s *AuthServer) ListAuditEvents(ctx context.Context, req *authv1.ListAuditEventsRequest) (*authv1.ListAuditEventsResponse, error) {
	if s.auth == nil {
		return nil, status.Error(codes.Unimplemented, "method ListAuditEvents not implemented")
	}
	userID, ok := interceptors.GetUserID(ctx)
	if !ok {
		return nil, status.Error(codes.Unauthenticated, "not authenticated")
	}
	events, err := s.auth.AuditTrail(ctx, userID, req.Limit, req.Offset)
	if err != nil {
		return nil, authErr(err)
	}
	out := make([]*authv1.AuditEvent, 0, len(events))
	for _, e := range events {
		out = append(out, auditEventToProto(e))
	}
	return &authv1.ListAuditEventsResponse{Events: out}, nil
}

// authErr maps service errors to gRPC status codes. Unknown errors become Internal with a
// generic message so storage details never reach the client.
func authErr(err error) error {
	if err == nil {
		return nil
	}
	if _, ok := status.FromError(err); ok {
		return err
	}
	var policyErr *security.PasswordPolicyError
	switch {
	case errors.Is(err, service.ErrDuplicateEmail):
		return status.Error(codes.AlreadyExists, err.Error())
	case errors.Is(err, service.ErrInvalidCredentials),
		errors.Is(err, service.ErrInvalidRefreshToken),
		errors.Is(err, service.ErrInactiveAccount):
		return status.Error(codes.Unauthenticated, err.Error())
	case errors.As(err, &policyErr):
		return status.Error(codes.InvalidArgument, policyErr.Error())
	case errors.Is(err, service.ErrWeakPassword),
		errors.Is(err, service.ErrInvalidEmail),
		errors.Is(err, service.ErrInvalidResetToken):
		return status.Error(codes.InvalidArgument, err.Error())
	case errors.Is(err, service.ErrUserNotFound):
		return status.Error(codes.NotFound, err.Error())
	case errors.Is(err, service.ErrAuditTrailUnavailable):
		return status.Error(codes.Unimplemented, err.Error())
	case errors.Is(err, refreshtoken.ErrTransient),
		errors.Is(err, context.DeadlineExceeded):
		return status.Error(codes.Unavailable, "service temporarily unavailable")
	default:
		return status.Error(codes.Internal, "internal error")
	}
}

func clientInfo(ctx context.Context) refreshtoken.ClientInfo {
	return refreshtoken.ClientInfo{
		UserAgent: interceptors.UserAgent(ctx),
		IPAddress: interceptors.ClientIP(ctx),
	}
}

func seconds(d time.Duration) int64 {
	return int64(d / time.Second)
}

func userToProto(u *userdomain.User) *authv1.User {
	if u == nil {
		return nil
	}
	out := &authv1.User{
		Id:         u.ID.String(),
		Email:      u.Email,
		FullName:   u.FullName,
		IsActive:   u.IsActive,
		IsVerified: u.IsVerified,
		CreatedAt:  u.CreatedAt.UTC().Format(time.RFC3339),
	}
	if u.LastLoginAt != nil {
		out.LastLoginAt = u.LastLoginAt.UTC().Format(time.RFC3339)
	}
	return out
}

func auditEventToProto(e *auditdomain.AuditLog) *authv1.AuditEvent {
	return &authv1.AuditEvent{
		Id:        e.ID.String(),
		Action:    e.Action,
		Resource:  e.Resource,
		Ip:        e.IP,
		Metadata:  e.Metadata,
		CreatedAt: e.CreatedAt.UTC().Format(time.RFC3339),
	}
}
