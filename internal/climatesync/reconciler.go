package climatesync

import (
	"context"
	"time"
)

// PeriodicReconciler is the safety net behind event-based syncing.
//
// Events can be missed (broker restart, bridge hiccup), so a periodic
// sweep re-evaluates every actuator that has not synced recently.
type PeriodicReconciler struct {
	registry *Registry
	engine   *SyncEngine
	interval time.Duration
	logger   Logger
}

// NewPeriodicReconciler creates a reconciler over the registry.
func NewPeriodicReconciler(registry *Registry, engine *SyncEngine, interval time.Duration, logger Logger) *PeriodicReconciler {
	if logger == nil {
		logger = noopLogger{}
	}
	return &PeriodicReconciler{
		registry: registry,
		engine:   engine,
		interval: interval,
		logger:   logger,
	}
}

// Sweep evaluates every tracked actuator.
//
// Actuators whose last sync is within the interval are skipped unless
// force is set. Per-actuator failures are contained by the engine, so
// one bad valve never stops the sweep.
//
// Parameters:
//   - ctx: Context for the action calls
//   - now: The sweep's notion of current time
//   - force: Evaluate everything regardless of last sync
func (r *PeriodicReconciler) Sweep(ctx context.Context, now time.Time, force bool) {
	actuators := r.registry.All()

	evaluated := 0
	for _, actuator := range actuators {
		if !force && now.Sub(actuator.LastSync()) < r.interval {
			r.logger.Debug("recently synced, skipping",
				"device_id", actuator.DeviceID,
				"last_sync", actuator.LastSync(),
			)
			continue
		}
		r.engine.SyncActuator(ctx, actuator)
		evaluated++
	}

	r.logger.Debug("sweep complete",
		"actuators", len(actuators),
		"evaluated", evaluated,
		"forced", force,
	)
}
