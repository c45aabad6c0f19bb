package climatesync

import (
	"context"
	"sync"
	"time"
)

// Logger defines the logging interface used throughout the package.
// This allows different logging implementations to be used.
type Logger interface {
	Debug(msg string, args ...any)
	Info(msg string, args ...any)
	Warn(msg string, args ...any)
	Error(msg string, args ...any)
}

// noopLogger is a logger that does nothing.
type noopLogger struct{}

func (noopLogger) Debug(string, ...any) {}
func (noopLogger) Info(string, ...any)  {}
func (noopLogger) Warn(string, ...any)  {}
func (noopLogger) Error(string, ...any) {}

// Zone is the minimal zone information discovery needs.
type Zone struct {
	ID             string
	Name           string
	SensorEntityID string
}

// Device is the minimal device information discovery needs.
type Device struct {
	ID     string
	ZoneID string
	Name   string
}

// Entity is the minimal entity information discovery needs.
type Entity struct {
	ID     string
	Domain string
}

// Inventory is the catalog capability the coordinator consumes.
// The inventory registry satisfies this through a thin adapter in main.
type Inventory interface {
	// ZonesWithSensor returns every zone that has a temperature sensor assigned.
	ZonesWithSensor(ctx context.Context) ([]Zone, error)

	// DevicesByZoneAndModel returns devices in a zone matching a model tag.
	DevicesByZoneAndModel(ctx context.Context, zoneID, model string) ([]Device, error)

	// EntitiesByDevice returns the entities a device exposes.
	EntitiesByDevice(ctx context.Context, deviceID string) ([]Entity, error)
}

// StateReader provides synchronous access to the latest entity state.
// A false second return means no state has ever been seen for the entity.
type StateReader interface {
	Get(entityID string) (value string, ok bool)
}

// Events delivers entity state change notifications.
// The returned cancel function removes the registration.
type Events interface {
	Subscribe(entityIDs []string, fn func(entityID, value string)) (cancel func())
}

// ActionInvoker issues acknowledged writes to actuator entities.
type ActionInvoker interface {
	// SelectOption switches a mode selector to the given option.
	SelectOption(ctx context.Context, entityID, option string) error

	// SetValue writes a numeric value to a number entity.
	SetValue(ctx context.Context, entityID string, value float64) error
}

// History records sync decisions and sensor readings for later
// analysis. Implementations must not block; the engine calls these on
// the sync path.
type History interface {
	WriteSyncDecision(deviceID, zoneID, outcome string, target, current, diff float64)
	WriteZoneTemperature(zoneID string, temperature float64)
}

// Scheduler abstracts periodic timer scheduling so tests can drive
// sweeps directly. Production uses TickerScheduler.
type Scheduler interface {
	// Every invokes fn at the given interval until stop is called.
	Every(interval time.Duration, fn func()) (stop func())
}

// TrackedActuator is one discovered thermostatic actuator and the
// entity wiring the sync loop needs.
//
// The mutex serializes sync evaluations for this actuator; lastSync is
// guarded separately so status reads never contend with a sync in flight.
type TrackedActuator struct {
	// DeviceID uniquely identifies the actuator's device.
	DeviceID string

	// Name is the human-readable device name, used in logs.
	Name string

	// ZoneID is the zone whose sensor drives this actuator.
	ZoneID string

	// SensorEntityID is the zone's ambient temperature sensor.
	SensorEntityID string

	// SelectEntityID is the mode selector entity.
	SelectEntityID string

	// NumberEntityID is the external temperature input entity.
	NumberEntityID string

	// ClimateEntityID is the optional thermostat mirror entity.
	// Empty when the device exposes none.
	ClimateEntityID string

	// syncMu serializes sync evaluations.
	syncMu sync.Mutex

	// lastSync is the time of the last completed evaluation.
	lastSync   time.Time
	lastSyncMu sync.RWMutex
}

// LastSync returns the time of the last completed sync evaluation.
// The zero time means the actuator has never been evaluated.
func (a *TrackedActuator) LastSync() time.Time {
	a.lastSyncMu.RLock()
	defer a.lastSyncMu.RUnlock()
	return a.lastSync
}

// markSynced records a completed evaluation.
func (a *TrackedActuator) markSynced(t time.Time) {
	a.lastSyncMu.Lock()
	a.lastSync = t
	a.lastSyncMu.Unlock()
}

// listenEntityIDs returns the entities whose state changes should
// trigger a sync of this actuator.
func (a *TrackedActuator) listenEntityIDs() []string {
	ids := []string{a.SelectEntityID, a.NumberEntityID, a.SensorEntityID}
	if a.ClimateEntityID != "" {
		ids = append(ids, a.ClimateEntityID)
	}
	return ids
}

// Registry holds the current set of tracked actuators, keyed by device ID.
//
// Discovery replaces the contents wholesale; readers always see a
// consistent set. All methods are safe for concurrent use.
type Registry struct {
	mu        sync.RWMutex
	actuators map[string]*TrackedActuator
}

// NewRegistry creates an empty actuator registry.
func NewRegistry() *Registry {
	return &Registry{
		actuators: make(map[string]*TrackedActuator),
	}
}

// Replace swaps the registry contents for the given actuators.
func (r *Registry) Replace(actuators []*TrackedActuator) {
	next := make(map[string]*TrackedActuator, len(actuators))
	for _, a := range actuators {
		next[a.DeviceID] = a
	}

	r.mu.Lock()
	r.actuators = next
	r.mu.Unlock()
}

// Get returns the actuator for a device ID.
func (r *Registry) Get(deviceID string) (*TrackedActuator, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	a, ok := r.actuators[deviceID]
	return a, ok
}

// All returns the current actuators in unspecified order.
func (r *Registry) All() []*TrackedActuator {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]*TrackedActuator, 0, len(r.actuators))
	for _, a := range r.actuators {
		out = append(out, a)
	}
	return out
}

// Count returns the number of tracked actuators.
func (r *Registry) Count() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.actuators)
}
