package interceptors

import (
	"context"
	"encoding/json"
	"errors"
	"net"
	"sync"
	"testing"

	"github.com/google/uuid"
	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/metadata"
	"google.golang.org/grpc/peer"
	"google.golang.org/grpc/status"
)

type loggedEvent struct {
	userID   uuid.UUID
	action   string
	metadata string
}

// mockAuditLogger implements audit.AuditLogger for interceptor tests.
type mockAuditLogger struct {
	mu     sync.Mutex
	events []loggedEvent
}

func (m *mockAuditLogger) LogEvent(ctx context.Context, userID uuid.UUID, action, metadata string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.events = append(m.events, loggedEvent{userID: userID, action: action, metadata: metadata})
}

func okHandler(ctx context.Context, req any) (any, error) { return "success", nil }

func TestAuditUnary_SkipMethod(t *testing.T) {
	logger := &mockAuditLogger{}
	interceptor := AuditUnary(logger, map[string]bool{"/test.Service/HealthCheck": true})
	ctx := WithIdentity(context.Background(), uuid.New(), "user@example.com")

	resp, err := interceptor(ctx, "request", &grpc.UnaryServerInfo{FullMethod: "/test.Service/HealthCheck"}, okHandler)
	if err != nil || resp != "success" {
		t.Fatalf("interceptor = %v, %v", resp, err)
	}
	if len(logger.events) != 0 {
		t.Errorf("events = %d, want 0", len(logger.events))
	}
}

func TestAuditUnary_AnonymousNotRecorded(t *testing.T) {
	logger := &mockAuditLogger{}
	interceptor := AuditUnary(logger, nil)

	if _, err := interceptor(context.Background(), "request", &grpc.UnaryServerInfo{FullMethod: "/auth.v1.AuthService/Login"}, okHandler); err != nil {
		t.Fatalf("interceptor: %v", err)
	}
	if len(logger.events) != 0 {
		t.Errorf("events = %d, want 0", len(logger.events))
	}
}

func TestAuditUnary_RecordsAuthenticatedCall(t *testing.T) {
	logger := &mockAuditLogger{}
	interceptor := AuditUnary(logger, nil)
	userID := uuid.New()
	ctx := WithIdentity(context.Background(), userID, "user@example.com")

	if _, err := interceptor(ctx, "request", &grpc.UnaryServerInfo{FullMethod: "/auth.v1.AuthService/GetPublicKey"}, okHandler); err != nil {
		t.Fatalf("interceptor: %v", err)
	}
	if len(logger.events) != 1 {
		t.Fatalf("events = %d, want 1", len(logger.events))
	}
	got := logger.events[0]
	if got.userID != userID {
		t.Errorf("user_id = %v, want %v", got.userID, userID)
	}
	if got.action != "get_public_key" {
		t.Errorf("action = %q, want %q", got.action, "get_public_key")
	}
	var meta rpcAuditMetadata
	if err := json.Unmarshal([]byte(got.metadata), &meta); err != nil {
		t.Fatalf("metadata: %v", err)
	}
	if meta.Resource != "auth" || meta.Code != "OK" || meta.Method != "/auth.v1.AuthService/GetPublicKey" {
		t.Errorf("metadata = %+v", meta)
	}
}

func TestAuditUnary_RecordsFailureCodeAndKeepsError(t *testing.T) {
	logger := &mockAuditLogger{}
	interceptor := AuditUnary(logger, nil)
	ctx := WithIdentity(context.Background(), uuid.New(), "user@example.com")
	wantErr := status.Error(codes.NotFound, "user not found")

	_, err := interceptor(ctx, "request", &grpc.UnaryServerInfo{FullMethod: "/auth.v1.AuthService/Me"}, func(context.Context, any) (any, error) {
		return nil, wantErr
	})
	if !errors.Is(err, wantErr) {
		t.Fatalf("err = %v, want %v", err, wantErr)
	}
	if len(logger.events) != 1 {
		t.Fatalf("events = %d, want 1", len(logger.events))
	}
	var meta rpcAuditMetadata
	_ = json.Unmarshal([]byte(logger.events[0].metadata), &meta)
	if meta.Code != codes.NotFound.String() {
		t.Errorf("code = %q", meta.Code)
	}
}

func TestAuditUnary_NilLogger(t *testing.T) {
	interceptor := AuditUnary(nil, nil)
	ctx := WithIdentity(context.Background(), uuid.New(), "")
	resp, err := interceptor(ctx, "request", &grpc.UnaryServerInfo{FullMethod: "/auth.v1.AuthService/Me"}, okHandler)
	if err != nil || resp != "success" {
		t.Fatalf("interceptor = %v, %v", resp, err)
	}
}

func TestClientIP(t *testing.T) {
	tcpPeer := &peer.Peer{Addr: &net.TCPAddr{IP: net.ParseIP("10.0.0.7"), Port: 5555}}
	tests := []struct {
		name string
		ctx  context.Context
		want string
	}{
		{"nothing", context.Background(), "unknown"},
		{"forwarded for", metadata.NewIncomingContext(context.Background(), metadata.Pairs("x-forwarded-for", "203.0.113.9, 10.0.0.1")), "203.0.113.9"},
		{"real ip", metadata.NewIncomingContext(context.Background(), metadata.Pairs("x-real-ip", "198.51.100.4")), "198.51.100.4"},
		{"peer", peer.NewContext(context.Background(), tcpPeer), "10.0.0.7"},
		{"metadata wins over peer", metadata.NewIncomingContext(peer.NewContext(context.Background(), tcpPeer), metadata.Pairs("x-real-ip", "198.51.100.4")), "198.51.100.4"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := ClientIP(tt.ctx); got != tt.want {
				t.Errorf("ClientIP = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestUserAgent(t *testing.T) {
	if got := UserAgent(context.Background()); got != "" {
		t.Errorf("UserAgent = %q, want empty", got)
	}
	ctx := metadata.NewIncomingContext(context.Background(), metadata.Pairs("user-agent", "grpc-go/1.78"))
	if got := UserAgent(ctx); got != "grpc-go/1.78" {
		t.Errorf("UserAgent = %q", got)
	}
}
