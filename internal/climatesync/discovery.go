package climatesync

import (
	"context"
	"fmt"
	"strings"

	"github.com/nerrad567/climate-sync-core/internal/infrastructure/config"
)

// Discoverer scans the inventory for actuators the sync loop can drive.
//
// A device qualifies when it sits in a zone with a temperature sensor,
// carries the configured model tag, and exposes both a mode selector
// and an external temperature input matching the naming conventions.
// The optional thermostat mirror entity is picked up when present.
type Discoverer struct {
	inventory Inventory
	cfg       config.SyncConfig
	logger    Logger
}

// NewDiscoverer creates a discoverer over the given inventory.
func NewDiscoverer(inventory Inventory, cfg config.SyncConfig, logger Logger) *Discoverer {
	if logger == nil {
		logger = noopLogger{}
	}
	return &Discoverer{
		inventory: inventory,
		cfg:       cfg,
		logger:    logger,
	}
}

// Discover performs one full discovery pass.
//
// It is idempotent: the same catalog always yields the same actuator
// set. Devices with incomplete entity wiring are skipped with a warning
// and never fail the pass.
//
// Returns:
//   - []*TrackedActuator: Every qualifying actuator
//   - error: Only when the inventory itself cannot be read
func (d *Discoverer) Discover(ctx context.Context) ([]*TrackedActuator, error) {
	zones, err := d.inventory.ZonesWithSensor(ctx)
	if err != nil {
		return nil, fmt.Errorf("%w: listing zones: %w", ErrDiscoveryFailed, err)
	}

	var actuators []*TrackedActuator
	for _, zone := range zones {
		devices, err := d.inventory.DevicesByZoneAndModel(ctx, zone.ID, d.cfg.Model)
		if err != nil {
			return nil, fmt.Errorf("%w: listing devices for zone %s: %w", ErrDiscoveryFailed, zone.ID, err)
		}

		for _, device := range devices {
			actuator, ok, err := d.buildActuator(ctx, zone, device)
			if err != nil {
				return nil, err
			}
			if !ok {
				continue
			}
			actuators = append(actuators, actuator)
		}
	}

	d.logger.Info("discovery complete",
		"zones", len(zones),
		"actuators", len(actuators),
	)
	return actuators, nil
}

// buildActuator assembles the entity wiring for one device.
// Returns ok=false when the device is missing a required entity.
func (d *Discoverer) buildActuator(ctx context.Context, zone Zone, device Device) (*TrackedActuator, bool, error) {
	entities, err := d.inventory.EntitiesByDevice(ctx, device.ID)
	if err != nil {
		return nil, false, fmt.Errorf("%w: listing entities for device %s: %w", ErrDiscoveryFailed, device.ID, err)
	}

	var selectID, numberID, climateID string
	for _, entity := range entities {
		switch {
		case entity.Domain == "select" && strings.HasSuffix(entity.ID, d.cfg.SelectorSuffix):
			selectID = entity.ID
		case entity.Domain == "number" && strings.HasSuffix(entity.ID, d.cfg.WriterSuffix):
			numberID = entity.ID
		case entity.Domain == "climate":
			climateID = entity.ID
		}
	}

	if selectID == "" || numberID == "" {
		d.logger.Warn("skipping device with incomplete entity wiring",
			"device_id", device.ID,
			"zone_id", zone.ID,
			"has_selector", selectID != "",
			"has_writer", numberID != "",
		)
		return nil, false, nil
	}

	return &TrackedActuator{
		DeviceID:        device.ID,
		Name:            device.Name,
		ZoneID:          zone.ID,
		SensorEntityID:  zone.SensorEntityID,
		SelectEntityID:  selectID,
		NumberEntityID:  numberID,
		ClimateEntityID: climateID,
	}, true, nil
}
