// Package handler implements the dev-only gRPC DevService.
package handler

import (
	"context"
	"time"

	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"

	devv1 "auth-service/api/dev/v1"
	"auth-service/internal/devreset"
)

const devNote = "DEV MODE ONLY"

// Server implements DevService. Only registered when APP_ENV is development.
type Server struct {
	devv1.UnimplementedDevServiceServer
	store devreset.Store
}

// NewServer returns a DevService server that reads reset tokens from the given store.
func NewServer(store devreset.Store) *Server {
	return &Server{store: store}
}

// GetResetToken returns the latest reset token sent to email. Returns NotFound if missing or expired.
func (s *Server) GetResetToken(ctx context.Context, req *devv1.GetResetTokenRequest) (*devv1.GetResetTokenResponse, error) {
	if req == nil || req.Email == "" {
		return nil, status.Error(codes.InvalidArgument, "email is required")
	}
	token, expiresAt, ok := s.store.Get(ctx, req.Email)
	if !ok {
		return nil, status.Error(codes.NotFound, "reset token not found or expired")
	}
	return &devv1.GetResetTokenResponse{
		Token:     token,
		ExpiresAt: expiresAt.UTC().Format(time.RFC3339),
		Note:      devNote,
	}, nil
}
