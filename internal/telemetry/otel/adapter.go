package otel

import (
	"context"
	"time"

	otellog "go.opentelemetry.io/otel/log"
	sdklog "go.opentelemetry.io/otel/sdk/log"

	"auth-service/internal/telemetry"
)

const instrumentationName = "auth-service.events"

// recordEmitter is the part of an OTel logger the emitter needs.
type recordEmitter interface {
	Emit(ctx context.Context, rec otellog.Record)
}

// NewEventEmitter returns an EventEmitter that sends events as OTel log records via the given LoggerProvider.
// If provider is nil, returns a no-op emitter.
func NewEventEmitter(provider *sdklog.LoggerProvider) telemetry.EventEmitter {
	if provider == nil {
		return noopEmitter{}
	}
	return &otelEmitter{logger: provider.Logger(instrumentationName)}
}

// NewEventEmitterWithLogger wraps any record sink; used in tests.
func NewEventEmitterWithLogger(logger recordEmitter) telemetry.EventEmitter {
	return &otelEmitter{logger: logger}
}

type noopEmitter struct{}

func (noopEmitter) Emit(context.Context, *telemetry.AuthEvent) error { return nil }

type otelEmitter struct {
	logger recordEmitter
}

// Emit converts the event to an OTel log record. Metadata becomes the body; set fields become attributes.
func (e *otelEmitter) Emit(ctx context.Context, event *telemetry.AuthEvent) error {
	if event == nil {
		return nil
	}
	rec := otellog.Record{}
	if !event.CreatedAt.IsZero() {
		rec.SetTimestamp(event.CreatedAt)
	} else {
		rec.SetTimestamp(time.Now().UTC())
	}
	if len(event.Metadata) > 0 {
		rec.SetBody(otellog.BytesValue(event.Metadata))
	}
	addString(&rec, "user_id", event.UserID)
	addString(&rec, "event_type", event.EventType)
	addString(&rec, "source", event.Source)
	addString(&rec, "rpc_method", event.Method)
	addString(&rec, "rpc_code", event.Code)
	e.logger.Emit(ctx, rec)
	return nil
}

func addString(rec *otellog.Record, key, value string) {
	if value != "" {
		rec.AddAttributes(otellog.String(key, value))
	}
}
