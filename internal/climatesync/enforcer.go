package climatesync

import "context"

// ModeEnforcer keeps actuator mode selectors pinned to the external
// temperature option.
//
// TRVZB-class devices silently fall back to their internal probe when
// repaired or power-cycled; the enforcer detects the drift and switches
// the selector back.
type ModeEnforcer struct {
	states  StateReader
	invoker ActionInvoker
	option  string
	logger  Logger
}

// NewModeEnforcer creates a mode enforcer.
//
// Parameters:
//   - states: Entity state reads
//   - invoker: Acknowledged action calls
//   - option: The selector option that enables external input (e.g. "external")
func NewModeEnforcer(states StateReader, invoker ActionInvoker, option string, logger Logger) *ModeEnforcer {
	if logger == nil {
		logger = noopLogger{}
	}
	return &ModeEnforcer{
		states:  states,
		invoker: invoker,
		option:  option,
		logger:  logger,
	}
}

// EnsureExternal checks one actuator's mode selector and corrects it
// if it has drifted away from the external option.
//
// Behaviour:
//   - No state known for the selector: no-op (the entity may still be
//     warming up after a restart)
//   - Selector already on the external option: zero action calls
//   - Anything else: exactly one acknowledged select_option call
//
// Returns:
//   - error: Only when the corrective action call fails
func (e *ModeEnforcer) EnsureExternal(ctx context.Context, actuator *TrackedActuator) error {
	current, ok := e.states.Get(actuator.SelectEntityID)
	if !ok {
		e.logger.Debug("selector state unknown, skipping enforcement",
			"device_id", actuator.DeviceID,
			"entity_id", actuator.SelectEntityID,
		)
		return nil
	}

	if current == e.option {
		return nil
	}

	e.logger.Info("correcting sensor mode",
		"device_id", actuator.DeviceID,
		"entity_id", actuator.SelectEntityID,
		"from", current,
		"to", e.option,
	)

	if err := e.invoker.SelectOption(ctx, actuator.SelectEntityID, e.option); err != nil {
		e.logger.Error("failed to correct sensor mode",
			"device_id", actuator.DeviceID,
			"entity_id", actuator.SelectEntityID,
			"error", err,
		)
		return err
	}

	return nil
}
