// Package telemetry carries auth events out of the request path: to Kafka for the Loki worker
// and to OTel logs. Every sink is best-effort.
package telemetry

import (
	"encoding/json"
	"time"
)

// Event types emitted by the server.
const (
	EventGRPCRequest = "grpc_request"
)

// SourceServer marks events produced by the auth gRPC server.
const SourceServer = "auth-service"

// AuthEvent is the wire form of an event. It is encoded as JSON on the Kafka topic.
type AuthEvent struct {
	UserID    string          `json:"userId,omitempty"`
	EventType string          `json:"eventType"`
	Source    string          `json:"source"`
	Method    string          `json:"method,omitempty"`
	Code      string          `json:"code,omitempty"`
	Metadata  json.RawMessage `json:"metadata,omitempty"`
	CreatedAt time.Time       `json:"createdAt"`
}

// NewAuthEvent stamps an event with the current UTC time and the server source.
func NewAuthEvent(eventType, userID string) *AuthEvent {
	return &AuthEvent{
		UserID:    userID,
		EventType: eventType,
		Source:    SourceServer,
		CreatedAt: time.Now().UTC(),
	}
}
