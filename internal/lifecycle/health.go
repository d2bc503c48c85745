package lifecycle

import (
	"context"
	"log/slog"
)

// HealthChecker exposes liveness and readiness probes.
type HealthChecker interface {
	Liveness(ctx context.Context) error
	Readiness(ctx context.Context) error
}

// ReadinessCheck reports whether every dependency needed to serve traffic is reachable.
type ReadinessCheck interface {
	Healthy(ctx context.Context) error
}

// Probes answers liveness unconditionally and delegates readiness to the dependency checks.
type Probes struct {
	log       *slog.Logger
	readiness ReadinessCheck
}

// NewProbes creates a new Probes instance. A nil readiness check reports ready.
func NewProbes(log *slog.Logger, readiness ReadinessCheck) *Probes {
	if log == nil {
		log = slog.Default()
	}
	return &Probes{log: log, readiness: readiness}
}

// Liveness reports that the process is running.
func (p *Probes) Liveness(ctx context.Context) error {
	p.log.Debug("liveness probe called")
	return nil
}

// Readiness runs the dependency checks.
func (p *Probes) Readiness(ctx context.Context) error {
	if p.readiness == nil {
		return nil
	}

	if err := p.readiness.Healthy(ctx); err != nil {
		p.log.Warn("readiness probe failed", slog.Any("error", err))
		return err
	}
	return nil
}
