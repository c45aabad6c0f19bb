package climatesync

import (
	"context"
	"sync"
)

// actuatorHandler reacts to state changes for one actuator.
//
// The handler holds the device ID and resolves the actuator through the
// registry on every event, so a discovery refresh that replaces the
// registry contents invalidates stale handlers naturally.
type actuatorHandler struct {
	deviceID string
	registry *Registry
	enforcer *ModeEnforcer
	engine   *SyncEngine
	logger   Logger
}

// handle processes one state change event.
//
// A selector change runs mode enforcement first (the change may be the
// drift itself), then every event ends in a sync evaluation. Work is
// dispatched to a goroutine so the event pipeline never blocks on
// acknowledged action calls.
func (h *actuatorHandler) handle(entityID, value string) {
	actuator, ok := h.registry.Get(h.deviceID)
	if !ok {
		// Registry was replaced and this device fell out of it.
		return
	}

	h.logger.Debug("state change",
		"device_id", h.deviceID,
		"entity_id", entityID,
		"value", value,
	)

	go func() {
		ctx := context.Background()
		if entityID == actuator.SelectEntityID {
			if err := h.enforcer.EnsureExternal(ctx, actuator); err != nil {
				// Already logged by the enforcer; sync still runs so the
				// temperature keeps flowing even if the mode is wrong.
				_ = err
			}
		}
		h.engine.SyncActuator(ctx, actuator)
	}()
}

// ListenerManager owns the event subscriptions that drive event-based
// syncing.
//
// One subscription is registered per actuator, covering its mode
// selector, external input, zone sensor, and thermostat mirror when
// present. Teardown is tracked per actuator and is idempotent.
type ListenerManager struct {
	registry *Registry
	events   Events
	enforcer *ModeEnforcer
	engine   *SyncEngine
	logger   Logger

	cancels map[string]func()
	mu      sync.Mutex
}

// NewListenerManager creates a listener manager.
func NewListenerManager(registry *Registry, events Events, enforcer *ModeEnforcer, engine *SyncEngine, logger Logger) *ListenerManager {
	if logger == nil {
		logger = noopLogger{}
	}
	return &ListenerManager{
		registry: registry,
		events:   events,
		enforcer: enforcer,
		engine:   engine,
		logger:   logger,
		cancels:  make(map[string]func()),
	}
}

// SetupAll registers listeners for every actuator currently in the
// registry. Existing listeners are torn down first, so the call is
// safe to repeat after a discovery refresh.
func (m *ListenerManager) SetupAll() {
	m.TeardownAll()

	actuators := m.registry.All()

	m.mu.Lock()
	defer m.mu.Unlock()

	for _, actuator := range actuators {
		handler := &actuatorHandler{
			deviceID: actuator.DeviceID,
			registry: m.registry,
			enforcer: m.enforcer,
			engine:   m.engine,
			logger:   m.logger,
		}
		m.cancels[actuator.DeviceID] = m.events.Subscribe(actuator.listenEntityIDs(), handler.handle)
	}

	m.logger.Info("listeners registered", "count", len(actuators))
}

// Teardown removes the listener for one actuator. Unknown device IDs
// are a no-op.
func (m *ListenerManager) Teardown(deviceID string) {
	m.mu.Lock()
	cancel, ok := m.cancels[deviceID]
	if ok {
		delete(m.cancels, deviceID)
	}
	m.mu.Unlock()

	if ok {
		cancel()
	}
}

// TeardownAll removes every listener. Idempotent.
func (m *ListenerManager) TeardownAll() {
	m.mu.Lock()
	cancels := m.cancels
	m.cancels = make(map[string]func())
	m.mu.Unlock()

	for _, cancel := range cancels {
		cancel()
	}
}

// Count returns the number of active listeners.
func (m *ListenerManager) Count() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.cancels)
}
