package telemetry

import (
	"context"
	"log/slog"
	"time"
)

// emitTimeout is the max time allowed for a single async emit. Used by EmitAsync and by ShutdownDrainDuration.
const emitTimeout = 5 * time.Second

// ShutdownDrainDuration is how long to wait after gRPC GracefulStop before shutting down OTel providers,
// so in-flight async emits have time to complete. Must be >= emitTimeout.
const ShutdownDrainDuration = emitTimeout

// EmitAsync runs Emit in a goroutine with a short timeout so the caller is not blocked.
// emitter and event may be nil; EmitAsync then returns immediately without starting a goroutine.
// The request context's values are kept but its cancellation is not, so a finished RPC does not abort the emit.
func EmitAsync(ctx context.Context, emitter EventEmitter, event *AuthEvent, log *slog.Logger) {
	if emitter == nil || event == nil {
		return
	}
	if log == nil {
		log = slog.Default()
	}
	base := context.WithoutCancel(ctx)
	go func() {
		emitCtx, cancel := context.WithTimeout(base, emitTimeout)
		defer cancel()
		if err := emitter.Emit(emitCtx, event); err != nil {
			log.Warn("telemetry: async emit failed", "event_type", event.EventType, "error", err)
		}
	}()
}
