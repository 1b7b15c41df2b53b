package application

import (
	"context"
	"errors"
	"time"

	domainerrors "basehub/contexts/platform-ops/health-monitor/domain/errors"
)

const defaultProbeInterval = 15 * time.Second

// Worker probes the constellation on a ticker until the context is
// cancelled.
type Worker struct {
	Service  *Service
	Interval time.Duration
}

func (w Worker) Run(ctx context.Context) error {
	interval := w.Interval
	if interval <= 0 {
		interval = defaultProbeInterval
	}

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		if _, err := w.Service.ProbeAll(ctx); err != nil && !errors.Is(err, domainerrors.ErrNoTargets) {
			resolveLogger(w.Service.Logger).Error("probe sweep failed",
				"event", "health_probe_sweep_failed",
				"module", "platform-ops/health-monitor",
				"layer", "application",
				"error", err.Error(),
			)
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
		}
	}
}
