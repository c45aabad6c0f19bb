package climatesync

import (
	"context"
	"math"
	"strconv"
	"strings"
	"time"
)

// Sync decision outcomes recorded to history.
const (
	outcomeWritten = "written"
	outcomeForced  = "forced"
	outcomeSkipped = "skipped"
	outcomeFailed  = "failed"
)

// SyncEngine evaluates one actuator at a time and pushes the zone
// sensor reading into the actuator's external temperature input.
//
// Failures never propagate: a jammed valve or offline bridge is logged
// against the one actuator and the rest of the fleet carries on.
type SyncEngine struct {
	states    StateReader
	invoker   ActionInvoker
	history   History // optional, nil disables history
	tolerance float64
	logger    Logger

	// now is swappable for tests.
	now func() time.Time
}

// NewSyncEngine creates a sync engine.
//
// Parameters:
//   - states: Entity state reads
//   - invoker: Acknowledged action calls
//   - history: Optional sync-decision recorder (nil to disable)
//   - tolerance: Minimum difference (degrees C) that justifies a write
func NewSyncEngine(states StateReader, invoker ActionInvoker, history History, tolerance float64, logger Logger) *SyncEngine {
	if logger == nil {
		logger = noopLogger{}
	}
	return &SyncEngine{
		states:    states,
		invoker:   invoker,
		history:   history,
		tolerance: tolerance,
		logger:    logger,
	}
}

// SyncActuator runs one sync evaluation for the actuator.
//
// Evaluations for the same actuator are serialized; concurrent calls
// queue on the actuator's mutex. The evaluation:
//
//  1. Reads the zone sensor. Missing, unavailable, or non-numeric
//     readings skip the cycle without touching last_sync.
//  2. Reads the actuator's current external input. A never-seen entity
//     skips with a warning; an unavailable or non-numeric value forces
//     a write regardless of tolerance.
//  3. Applies the tolerance gate: |target - current| < tolerance means
//     the actuator already tracks the sensor, so no write is issued but
//     last_sync is refreshed.
//  4. Issues one acknowledged set_value write. Success refreshes
//     last_sync; failure is logged and last_sync is left untouched so
//     the periodic sweep retries promptly.
func (e *SyncEngine) SyncActuator(ctx context.Context, actuator *TrackedActuator) {
	actuator.syncMu.Lock()
	defer actuator.syncMu.Unlock()

	target, ok := e.readSensor(actuator)
	if !ok {
		return
	}
	e.recordZoneTemperature(actuator, target)

	current, forced, ok := e.readWriter(actuator)
	if !ok {
		return
	}

	diff := math.Abs(target - current)
	if !forced && diff < e.tolerance {
		e.logger.Debug("within tolerance, skipping write",
			"device_id", actuator.DeviceID,
			"target", target,
			"current", current,
			"diff", diff,
		)
		actuator.markSynced(e.clock())
		e.record(actuator, outcomeSkipped, target, current, diff)
		return
	}

	if err := e.invoker.SetValue(ctx, actuator.NumberEntityID, target); err != nil {
		e.logger.Error("failed to write external temperature",
			"device_id", actuator.DeviceID,
			"entity_id", actuator.NumberEntityID,
			"target", target,
			"error", err,
		)
		e.record(actuator, outcomeFailed, target, current, diff)
		return
	}

	actuator.markSynced(e.clock())

	outcome := outcomeWritten
	if forced {
		outcome = outcomeForced
	}
	e.logger.Info("external temperature written",
		"device_id", actuator.DeviceID,
		"entity_id", actuator.NumberEntityID,
		"target", target,
		"forced", forced,
	)
	e.record(actuator, outcome, target, current, diff)
}

// readSensor returns the zone sensor reading for the actuator.
// ok=false means the cycle should be skipped.
func (e *SyncEngine) readSensor(actuator *TrackedActuator) (float64, bool) {
	raw, ok := e.states.Get(actuator.SensorEntityID)
	if !ok || !usable(raw) {
		e.logger.Debug("sensor reading unavailable, skipping cycle",
			"device_id", actuator.DeviceID,
			"entity_id", actuator.SensorEntityID,
			"value", raw,
		)
		return 0, false
	}

	target, err := parseTemperature(raw)
	if err != nil {
		e.logger.Warn("sensor reported non-numeric value, skipping cycle",
			"device_id", actuator.DeviceID,
			"entity_id", actuator.SensorEntityID,
			"value", raw,
		)
		return 0, false
	}
	return target, true
}

// readWriter returns the actuator's current external input value.
// forced=true means the value is unusable and a write must happen
// regardless of tolerance. ok=false means the entity has never
// reported state at all, which suggests a wiring problem.
func (e *SyncEngine) readWriter(actuator *TrackedActuator) (current float64, forced, ok bool) {
	raw, seen := e.states.Get(actuator.NumberEntityID)
	if !seen {
		e.logger.Warn("external input entity has no state, skipping cycle",
			"device_id", actuator.DeviceID,
			"entity_id", actuator.NumberEntityID,
		)
		return 0, false, false
	}

	if !usable(raw) {
		return 0, true, true
	}

	value, err := parseTemperature(raw)
	if err != nil {
		e.logger.Warn("external input reported non-numeric value, forcing write",
			"device_id", actuator.DeviceID,
			"entity_id", actuator.NumberEntityID,
			"value", raw,
		)
		return 0, true, true
	}
	return value, false, true
}

// record writes a sync decision to history if a recorder is attached.
func (e *SyncEngine) record(actuator *TrackedActuator, outcome string, target, current, diff float64) {
	if e.history == nil {
		return
	}
	e.history.WriteSyncDecision(actuator.DeviceID, actuator.ZoneID, outcome, target, current, diff)
}

// recordZoneTemperature writes the zone sensor reading to history so
// drift between sensor and actuator can be charted.
func (e *SyncEngine) recordZoneTemperature(actuator *TrackedActuator, temperature float64) {
	if e.history == nil {
		return
	}
	e.history.WriteZoneTemperature(actuator.ZoneID, temperature)
}

// clock returns the current time, honouring a test override.
func (e *SyncEngine) clock() time.Time {
	if e.now != nil {
		return e.now()
	}
	return time.Now()
}

// usable reports whether a state value carries a usable reading per
// the unknown/unavailable convention.
func usable(value string) bool {
	return value != "" && value != "unknown" && value != "unavailable"
}

// parseTemperature parses a state value as degrees C.
func parseTemperature(raw string) (float64, error) {
	return strconv.ParseFloat(strings.TrimSpace(raw), 64)
}
