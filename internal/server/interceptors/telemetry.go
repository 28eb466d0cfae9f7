package interceptors

import (
	"context"
	"encoding/json"
	"log/slog"
	"time"

	"google.golang.org/grpc"
	"google.golang.org/grpc/status"

	"auth-service/internal/telemetry"
)

// grpcRequestMetadata is the JSON shape stored in AuthEvent.Metadata for grpc_request events.
type grpcRequestMetadata struct {
	DurationMs int64  `json:"duration_ms"`
	ClientIP   string `json:"client_ip"`
}

// TelemetryUnary returns a unary server interceptor that emits a grpc_request event after each RPC.
// Emission is asynchronous and best-effort. A nil emitter makes the interceptor a pass-through.
// skipMethods is the set of full method names to not emit (e.g. the health check).
func TelemetryUnary(emitter telemetry.EventEmitter, skipMethods map[string]bool, log *slog.Logger) grpc.UnaryServerInterceptor {
	return func(ctx context.Context, req any, info *grpc.UnaryServerInfo, handler grpc.UnaryHandler) (any, error) {
		start := time.Now()
		resp, err := handler(ctx, req)
		if emitter == nil || skipMethods[info.FullMethod] {
			return resp, err
		}
		meta, _ := json.Marshal(grpcRequestMetadata{
			DurationMs: time.Since(start).Milliseconds(),
			ClientIP:   ClientIP(ctx),
		})
		userID := ""
		if id, ok := GetUserID(ctx); ok {
			userID = id.String()
		}
		event := telemetry.NewAuthEvent(telemetry.EventGRPCRequest, userID)
		event.Method = info.FullMethod
		event.Code = status.Code(err).String()
		event.Metadata = meta
		telemetry.EmitAsync(ctx, emitter, event, log)
		return resp, err
	}
}
