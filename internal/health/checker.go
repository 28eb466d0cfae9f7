// Package health derives the gRPC serving status from the database and the policy engine.
package health

import (
	"context"
	"log/slog"
	"time"

	"google.golang.org/grpc/health"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"
)

const checkTimeout = 2 * time.Second

// Pinger is implemented by the storage backend (*sql.DB, sqlite.Storage).
type Pinger interface {
	PingContext(ctx context.Context) error
}

// PolicyChecker is implemented by the OPA evaluator.
type PolicyChecker interface {
	HealthCheck(ctx context.Context) error
}

// Checker reports SERVING only when every configured dependency answers. Nil dependencies are skipped.
type Checker struct {
	pinger Pinger
	policy PolicyChecker
	log    *slog.Logger
}

// NewChecker returns a Checker. Either dependency may be nil.
func NewChecker(pinger Pinger, policy PolicyChecker, log *slog.Logger) *Checker {
	if log == nil {
		log = slog.Default()
	}
	return &Checker{pinger: pinger, policy: policy, log: log}
}

// Check returns the current serving status. It never returns an error: failures become NOT_SERVING.
func (c *Checker) Check(ctx context.Context) healthpb.HealthCheckResponse_ServingStatus {
	ctx, cancel := context.WithTimeout(ctx, checkTimeout)
	defer cancel()
	if c.pinger != nil {
		if err := c.pinger.PingContext(ctx); err != nil {
			c.log.WarnContext(ctx, "health: database ping failed", "error", err)
			return healthpb.HealthCheckResponse_NOT_SERVING
		}
	}
	if c.policy != nil {
		if err := c.policy.HealthCheck(ctx); err != nil {
			c.log.WarnContext(ctx, "health: policy engine check failed", "error", err)
			return healthpb.HealthCheckResponse_NOT_SERVING
		}
	}
	return healthpb.HealthCheckResponse_SERVING
}

// Run updates srv for each service name every interval until ctx is done. The first update is immediate.
func (c *Checker) Run(ctx context.Context, srv *health.Server, interval time.Duration, services ...string) {
	update := func() {
		st := c.Check(ctx)
		srv.SetServingStatus("", st)
		for _, name := range services {
			srv.SetServingStatus(name, st)
		}
	}
	update()
	t := time.NewTicker(interval)
	defer t.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-t.C:
			update()
		}
	}
}
