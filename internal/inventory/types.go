package inventory

import "time"

// Domain identifies the kind of control point an entity exposes.
type Domain string

// Entity domains recognised by the inventory.
const (
	// DomainSelect is a mode selector (enumerated options).
	DomainSelect Domain = "select"

	// DomainNumber is a writable numeric input.
	DomainNumber Domain = "number"

	// DomainClimate is a thermostat-style mirror entity.
	DomainClimate Domain = "climate"

	// DomainSensor is a read-only measurement source.
	DomainSensor Domain = "sensor"
)

// validDomains is the set of domains accepted by validation.
var validDomains = map[Domain]bool{
	DomainSelect:  true,
	DomainNumber:  true,
	DomainClimate: true,
	DomainSensor:  true,
}

// Valid reports whether the domain is one of the recognised values.
func (d Domain) Valid() bool {
	return validDomains[d]
}

// Zone is a physical area with an optional ambient temperature sensor.
//
// Zones without a sensor are still stored (they may gain one later) but
// are invisible to discovery.
type Zone struct {
	// ID uniquely identifies the zone.
	ID string `json:"id"`

	// Name is the human-readable zone name.
	Name string `json:"name"`

	// SensorEntityID references the zone's ambient temperature sensor.
	// Nil when the zone has no sensor assigned.
	SensorEntityID *string `json:"sensor_entity_id,omitempty"`

	// CreatedAt and UpdatedAt are maintained by the repository.
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// DeepCopy returns a full copy of the zone.
// Used by the registry to prevent external mutation of cached data.
func (z *Zone) DeepCopy() *Zone {
	if z == nil {
		return nil
	}
	cp := *z
	if z.SensorEntityID != nil {
		sensor := *z.SensorEntityID
		cp.SensorEntityID = &sensor
	}
	return &cp
}

// HasSensor reports whether the zone has a usable sensor reference.
func (z *Zone) HasSensor() bool {
	return z.SensorEntityID != nil && *z.SensorEntityID != ""
}

// Device is a physical device assigned to a zone.
//
// The Model tag is what discovery matches against; everything else is
// descriptive metadata.
type Device struct {
	// ID uniquely identifies the device.
	ID string `json:"id"`

	// ZoneID is the zone this device belongs to.
	ZoneID string `json:"zone_id"`

	// Name is the human-readable device name.
	Name string `json:"name"`

	// Model is the hardware model tag (e.g. "TRVZB").
	Model string `json:"model"`

	// Manufacturer is optional descriptive metadata.
	Manufacturer string `json:"manufacturer,omitempty"`

	// CreatedAt and UpdatedAt are maintained by the repository.
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// DeepCopy returns a full copy of the device.
func (d *Device) DeepCopy() *Device {
	if d == nil {
		return nil
	}
	cp := *d
	return &cp
}

// Entity is an addressable control point exposed by a device.
//
// Entity IDs follow the {domain}.{object} convention, e.g.
// "select.trv_living_temperature_sensor_select".
type Entity struct {
	// ID uniquely identifies the entity.
	ID string `json:"id"`

	// DeviceID is the device this entity belongs to.
	DeviceID string `json:"device_id"`

	// Domain is the entity's control-point kind.
	Domain Domain `json:"domain"`

	// Name is optional descriptive metadata.
	Name string `json:"name,omitempty"`

	// CreatedAt is maintained by the repository.
	CreatedAt time.Time `json:"created_at"`
}

// DeepCopy returns a full copy of the entity.
func (e *Entity) DeepCopy() *Entity {
	if e == nil {
		return nil
	}
	cp := *e
	return &cp
}

// ValidateZone checks zone fields before persistence.
func ValidateZone(z *Zone) error {
	if z.ID == "" {
		return ErrInvalidZone
	}
	if z.Name == "" {
		return ErrInvalidZone
	}
	return nil
}

// ValidateDevice checks device fields before persistence.
func ValidateDevice(d *Device) error {
	if d.ID == "" || d.ZoneID == "" {
		return ErrInvalidDevice
	}
	if d.Name == "" || d.Model == "" {
		return ErrInvalidDevice
	}
	return nil
}

// ValidateEntity checks entity fields before persistence.
func ValidateEntity(e *Entity) error {
	if e.ID == "" || e.DeviceID == "" {
		return ErrInvalidEntity
	}
	if !e.Domain.Valid() {
		return ErrInvalidDomain
	}
	return nil
}
