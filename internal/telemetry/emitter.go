package telemetry

import (
	"context"
	"errors"
)

// EventEmitter emits auth events (e.g. to Kafka or OTel Logs). Best-effort; callers log and ignore errors.
type EventEmitter interface {
	Emit(ctx context.Context, event *AuthEvent) error
}

// Multi fans an event out to every non-nil emitter. All emitters are tried; errors are joined.
type Multi []EventEmitter

// NewMulti drops nil emitters. It returns nil when none remain so callers can skip emission.
func NewMulti(emitters ...EventEmitter) EventEmitter {
	var m Multi
	for _, e := range emitters {
		if e != nil {
			m = append(m, e)
		}
	}
	if len(m) == 0 {
		return nil
	}
	return m
}

func (m Multi) Emit(ctx context.Context, event *AuthEvent) error {
	var errs []error
	for _, e := range m {
		if err := e.Emit(ctx, event); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}
