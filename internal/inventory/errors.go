package inventory

import "errors"

// Domain errors for the inventory package.
//
// These errors can be checked using errors.Is() for error handling:
//
//	if errors.Is(err, inventory.ErrZoneNotFound) {
//	    // handle not found case
//	}
var (
	// ErrZoneNotFound is returned when a zone ID does not exist.
	ErrZoneNotFound = errors.New("inventory: zone not found")

	// ErrZoneExists is returned when creating a zone with an ID that already exists.
	ErrZoneExists = errors.New("inventory: zone already exists")

	// ErrDeviceNotFound is returned when a device ID does not exist.
	ErrDeviceNotFound = errors.New("inventory: device not found")

	// ErrDeviceExists is returned when creating a device with an ID that already exists.
	ErrDeviceExists = errors.New("inventory: device already exists")

	// ErrEntityNotFound is returned when an entity ID does not exist.
	ErrEntityNotFound = errors.New("inventory: entity not found")

	// ErrEntityExists is returned when creating an entity with an ID that already exists.
	ErrEntityExists = errors.New("inventory: entity already exists")

	// ErrInvalidZone is returned when zone validation fails.
	ErrInvalidZone = errors.New("inventory: invalid zone")

	// ErrInvalidDevice is returned when device validation fails.
	ErrInvalidDevice = errors.New("inventory: invalid device")

	// ErrInvalidEntity is returned when entity validation fails.
	ErrInvalidEntity = errors.New("inventory: invalid entity")

	// ErrInvalidDomain is returned when an entity domain is not recognised.
	ErrInvalidDomain = errors.New("inventory: invalid domain")
)
