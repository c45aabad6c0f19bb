package inventory

import (
	"context"
	"fmt"
	"sync"
)

// Logger defines the logging interface used by the Registry.
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

// Registry provides catalog access with caching and thread safety.
// It wraps a Repository and adds an in-memory cache for fast lookups.
//
// The cache is populated on startup via RefreshCache() and rebuilt
// whenever the catalog changes. Discovery runs entirely against the
// cache, so a sweep over every zone and device costs no queries.
//
// All public methods are thread-safe.
type Registry struct {
	repo Repository

	zones    map[string]*Zone
	devices  map[string]*Device
	entities map[string][]Entity // keyed by device ID
	cacheMu  sync.RWMutex

	logger Logger
}

// NewRegistry creates a new inventory registry.
// The repository is used for persistence; the registry adds caching.
func NewRegistry(repo Repository) *Registry {
	return &Registry{
		repo:     repo,
		zones:    make(map[string]*Zone),
		devices:  make(map[string]*Device),
		entities: make(map[string][]Entity),
		logger:   noopLogger{},
	}
}

// SetLogger sets the logger for the registry.
func (r *Registry) SetLogger(logger Logger) {
	r.logger = logger
}

// RefreshCache reloads the full catalog from the repository into the cache.
// This should be called on application startup and after catalog edits.
func (r *Registry) RefreshCache(ctx context.Context) error {
	zones, err := r.repo.ListZones(ctx)
	if err != nil {
		return fmt.Errorf("loading zones: %w", err)
	}

	devices, err := r.repo.ListDevices(ctx)
	if err != nil {
		return fmt.Errorf("loading devices: %w", err)
	}

	entities := make(map[string][]Entity, len(devices))
	for i := range devices {
		list, err := r.repo.ListEntitiesByDevice(ctx, devices[i].ID)
		if err != nil {
			return fmt.Errorf("loading entities for device %s: %w", devices[i].ID, err)
		}
		entities[devices[i].ID] = list
	}

	r.cacheMu.Lock()
	defer r.cacheMu.Unlock()

	r.zones = make(map[string]*Zone, len(zones))
	for i := range zones {
		z := zones[i]
		r.zones[z.ID] = z.DeepCopy()
	}

	r.devices = make(map[string]*Device, len(devices))
	for i := range devices {
		d := devices[i]
		r.devices[d.ID] = d.DeepCopy()
	}

	r.entities = entities

	r.logger.Info("inventory cache refreshed",
		"zones", len(zones),
		"devices", len(devices),
	)
	return nil
}

// GetZone retrieves a zone by ID.
// Returns ErrZoneNotFound if the zone does not exist.
// The returned zone is a deep copy; callers can safely modify it.
func (r *Registry) GetZone(ctx context.Context, id string) (*Zone, error) {
	r.cacheMu.RLock()
	cached, ok := r.zones[id]
	r.cacheMu.RUnlock()

	if ok {
		return cached.DeepCopy(), nil
	}

	// Fall back to repository (might be a new zone not yet cached)
	zone, err := r.repo.GetZone(ctx, id)
	if err != nil {
		return nil, err
	}

	r.cacheMu.Lock()
	r.zones[id] = zone.DeepCopy()
	r.cacheMu.Unlock()

	return zone, nil
}

// ListZones retrieves all zones.
// The returned zones are deep copies; callers can safely modify them.
func (r *Registry) ListZones(ctx context.Context) ([]Zone, error) {
	r.cacheMu.RLock()
	defer r.cacheMu.RUnlock()

	if len(r.zones) > 0 {
		zones := make([]Zone, 0, len(r.zones))
		for _, z := range r.zones {
			zones = append(zones, *z.DeepCopy())
		}
		return zones, nil
	}

	return r.repo.ListZones(ctx)
}

// ListZonesWithSensor retrieves all zones that have a sensor assigned.
// These are the zones visible to discovery.
func (r *Registry) ListZonesWithSensor(ctx context.Context) ([]Zone, error) {
	zones, err := r.ListZones(ctx)
	if err != nil {
		return nil, err
	}

	filtered := zones[:0]
	for _, z := range zones {
		if z.HasSensor() {
			filtered = append(filtered, z)
		}
	}
	return filtered, nil
}

// GetDevice retrieves a device by ID.
// Returns ErrDeviceNotFound if the device does not exist.
func (r *Registry) GetDevice(ctx context.Context, id string) (*Device, error) {
	r.cacheMu.RLock()
	cached, ok := r.devices[id]
	r.cacheMu.RUnlock()

	if ok {
		return cached.DeepCopy(), nil
	}

	device, err := r.repo.GetDevice(ctx, id)
	if err != nil {
		return nil, err
	}

	r.cacheMu.Lock()
	r.devices[id] = device.DeepCopy()
	r.cacheMu.Unlock()

	return device, nil
}

// ListDevicesByZone retrieves all devices in a zone.
// The returned devices are deep copies; callers can safely modify them.
func (r *Registry) ListDevicesByZone(ctx context.Context, zoneID string) ([]Device, error) {
	r.cacheMu.RLock()
	defer r.cacheMu.RUnlock()

	if len(r.devices) > 0 {
		var devices []Device
		for _, d := range r.devices {
			if d.ZoneID == zoneID {
				devices = append(devices, *d.DeepCopy())
			}
		}
		return devices, nil
	}

	return r.repo.ListDevicesByZone(ctx, zoneID)
}

// ListDevicesByZoneAndModel retrieves devices in a zone matching a model tag.
// This is the discovery query: supported actuators in a sensored zone.
func (r *Registry) ListDevicesByZoneAndModel(ctx context.Context, zoneID, model string) ([]Device, error) {
	devices, err := r.ListDevicesByZone(ctx, zoneID)
	if err != nil {
		return nil, err
	}

	filtered := devices[:0]
	for _, d := range devices {
		if d.Model == model {
			filtered = append(filtered, d)
		}
	}
	return filtered, nil
}

// ListEntitiesByDevice retrieves all entities for a device.
// The returned entities are deep copies; callers can safely modify them.
func (r *Registry) ListEntitiesByDevice(ctx context.Context, deviceID string) ([]Entity, error) {
	r.cacheMu.RLock()
	cached, ok := r.entities[deviceID]
	r.cacheMu.RUnlock()

	if ok {
		entities := make([]Entity, 0, len(cached))
		for i := range cached {
			entities = append(entities, *cached[i].DeepCopy())
		}
		return entities, nil
	}

	return r.repo.ListEntitiesByDevice(ctx, deviceID)
}

// DeviceCount returns the number of cached devices.
func (r *Registry) DeviceCount() int {
	r.cacheMu.RLock()
	defer r.cacheMu.RUnlock()
	return len(r.devices)
}

// ZoneCount returns the number of cached zones.
func (r *Registry) ZoneCount() int {
	r.cacheMu.RLock()
	defer r.cacheMu.RUnlock()
	return len(r.zones)
}
