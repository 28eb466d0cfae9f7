package interceptors

import (
	"context"
	"strings"

	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/metadata"
	"google.golang.org/grpc/status"

	"auth-service/internal/security"
)

const bearerPrefix = "bearer "

var errUnauthenticated = status.Error(codes.Unauthenticated, "missing or invalid authorization")

// AuthUnary returns a unary server interceptor that verifies the Bearer access token from gRPC
// metadata and puts the user id and email into the context.
// publicMethods is the set of full method names that do not require a token. On a public method
// a valid token still populates the context, and a bad one is ignored.
// Refresh tokens are refused: only tokens with type "access" authenticate a call.
func AuthUnary(tokens *security.TokenService, publicMethods map[string]bool) grpc.UnaryServerInterceptor {
	return func(ctx context.Context, req any, info *grpc.UnaryServerInfo, handler grpc.UnaryHandler) (any, error) {
		token := extractBearer(ctx)
		public := publicMethods[info.FullMethod]

		if token == "" {
			if public {
				return handler(ctx, req)
			}
			return nil, errUnauthenticated
		}

		claims, err := tokens.Verify(token)
		if err != nil || claims.Type != security.TokenTypeAccess {
			if public {
				return handler(ctx, req)
			}
			return nil, errUnauthenticated
		}

		ctx = WithIdentity(ctx, claims.UserID, claims.Email)
		return handler(ctx, req)
	}
}

// extractBearer returns the Bearer token from ctx metadata, or "" if missing or malformed.
func extractBearer(ctx context.Context) string {
	md, ok := metadata.FromIncomingContext(ctx)
	if !ok {
		return ""
	}
	vals := md.Get("authorization")
	if len(vals) == 0 {
		return ""
	}
	v := strings.TrimSpace(vals[0])
	if len(v) < len(bearerPrefix) {
		return ""
	}
	if !strings.EqualFold(v[:len(bearerPrefix)], bearerPrefix) {
		return ""
	}
	return strings.TrimSpace(v[len(bearerPrefix):])
}
