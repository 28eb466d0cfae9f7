package interceptors

import (
	"context"
	"encoding/json"
	"net"
	"strings"

	"google.golang.org/grpc"
	"google.golang.org/grpc/metadata"
	"google.golang.org/grpc/peer"
	"google.golang.org/grpc/status"

	"auth-service/internal/audit"
)

// rpcAuditMetadata is the JSON stored in AuditLog.Metadata for RPC entries.
type rpcAuditMetadata struct {
	Method   string `json:"method"`
	Resource string `json:"resource"`
	Code     string `json:"code"`
}

// AuditUnary returns a unary server interceptor that records an audit entry after each RPC.
// Only authenticated calls are recorded. skipMethods holds full method names not to audit,
// typically the health check and RPCs whose service method already writes its own event.
// The logger is best-effort, so an audit failure never fails the RPC.
func AuditUnary(logger audit.AuditLogger, skipMethods map[string]bool) grpc.UnaryServerInterceptor {
	return func(ctx context.Context, req any, info *grpc.UnaryServerInfo, handler grpc.UnaryHandler) (any, error) {
		resp, err := handler(ctx, req)
		if logger == nil || skipMethods[info.FullMethod] {
			return resp, err
		}
		userID, ok := GetUserID(ctx)
		if !ok {
			return resp, err
		}
		ar := audit.ParseFullMethod(info.FullMethod)
		meta, _ := json.Marshal(rpcAuditMetadata{
			Method:   info.FullMethod,
			Resource: ar.Resource,
			Code:     status.Code(err).String(),
		})
		logger.LogEvent(ctx, userID, ar.Action, string(meta))
		return resp, err
	}
}

// ClientIP returns the client IP from gRPC metadata (x-forwarded-for, x-real-ip) or peer, or "unknown".
func ClientIP(ctx context.Context) string {
	if md, ok := metadata.FromIncomingContext(ctx); ok {
		if vals := md.Get("x-forwarded-for"); len(vals) > 0 {
			if s := strings.TrimSpace(vals[0]); s != "" {
				if i := strings.Index(s, ","); i > 0 {
					s = strings.TrimSpace(s[:i])
				}
				return s
			}
		}
		if vals := md.Get("x-real-ip"); len(vals) > 0 {
			if s := strings.TrimSpace(vals[0]); s != "" {
				return s
			}
		}
	}
	if p, ok := peer.FromContext(ctx); ok && p.Addr != nil {
		if host, _, err := net.SplitHostPort(p.Addr.String()); err == nil {
			return host
		}
		return p.Addr.String()
	}
	return "unknown"
}

// UserAgent returns the first user-agent metadata value, or "".
func UserAgent(ctx context.Context) string {
	md, ok := metadata.FromIncomingContext(ctx)
	if !ok {
		return ""
	}
	if vals := md.Get("user-agent"); len(vals) > 0 {
		return vals[0]
	}
	return ""
}
