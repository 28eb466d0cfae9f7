package interceptors

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/google/uuid"
	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"

	"auth-service/internal/logger"
	"auth-service/internal/telemetry"
)

type chanEmitter struct {
	events chan *telemetry.AuthEvent
}

func newChanEmitter() *chanEmitter {
	return &chanEmitter{events: make(chan *telemetry.AuthEvent, 4)}
}

func (c *chanEmitter) Emit(ctx context.Context, event *telemetry.AuthEvent) error {
	c.events <- event
	return nil
}

func (c *chanEmitter) next(t *testing.T) *telemetry.AuthEvent {
	t.Helper()
	select {
	case e := <-c.events:
		return e
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for event")
		return nil
	}
}

func TestTelemetryUnary_EmitsRequestEvent(t *testing.T) {
	emitter := newChanEmitter()
	interceptor := TelemetryUnary(emitter, nil, logger.Discard())
	userID := uuid.New()
	ctx := WithIdentity(context.Background(), userID, "user@example.com")

	_, err := interceptor(ctx, "request", &grpc.UnaryServerInfo{FullMethod: "/auth.v1.AuthService/Me"}, func(context.Context, any) (any, error) {
		return nil, status.Error(codes.NotFound, "user not found")
	})
	if status.Code(err) != codes.NotFound {
		t.Fatalf("err = %v", err)
	}

	event := emitter.next(t)
	if event.EventType != telemetry.EventGRPCRequest || event.Source != telemetry.SourceServer {
		t.Errorf("type/source = %q/%q", event.EventType, event.Source)
	}
	if event.UserID != userID.String() {
		t.Errorf("user_id = %q, want %q", event.UserID, userID)
	}
	if event.Method != "/auth.v1.AuthService/Me" || event.Code != "NotFound" {
		t.Errorf("method/code = %q/%q", event.Method, event.Code)
	}
	var meta grpcRequestMetadata
	if err := json.Unmarshal(event.Metadata, &meta); err != nil {
		t.Fatalf("metadata: %v", err)
	}
	if meta.ClientIP != "unknown" || meta.DurationMs < 0 {
		t.Errorf("metadata = %+v", meta)
	}
}

func TestTelemetryUnary_AnonymousHasNoUser(t *testing.T) {
	emitter := newChanEmitter()
	interceptor := TelemetryUnary(emitter, nil, logger.Discard())

	if _, err := interceptor(context.Background(), "request", &grpc.UnaryServerInfo{FullMethod: "/auth.v1.AuthService/Login"}, okHandler); err != nil {
		t.Fatalf("interceptor: %v", err)
	}
	if event := emitter.next(t); event.UserID != "" || event.Code != "OK" {
		t.Errorf("event = %+v", event)
	}
}

func TestTelemetryUnary_SkipAndNil(t *testing.T) {
	emitter := newChanEmitter()
	interceptor := TelemetryUnary(emitter, map[string]bool{"/grpc.health.v1.Health/Check": true}, logger.Discard())
	if _, err := interceptor(context.Background(), "request", &grpc.UnaryServerInfo{FullMethod: "/grpc.health.v1.Health/Check"}, okHandler); err != nil {
		t.Fatalf("interceptor: %v", err)
	}
	select {
	case e := <-emitter.events:
		t.Errorf("unexpected event %+v", e)
	case <-time.After(50 * time.Millisecond):
	}

	passthrough := TelemetryUnary(nil, nil, nil)
	resp, err := passthrough(context.Background(), "request", &grpc.UnaryServerInfo{FullMethod: "/x/Y"}, okHandler)
	if err != nil || resp != "success" {
		t.Fatalf("passthrough = %v, %v", resp, err)
	}
}
