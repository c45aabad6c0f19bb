package climatesync

import "errors"

// Domain errors for the climatesync package.
// Use errors.Is() to check for these errors in calling code.
var (
	// ErrNotActive is returned when an operation requires an active coordinator.
	ErrNotActive = errors.New("climatesync: coordinator not active")

	// ErrUnloaded is returned when operating on an unloaded coordinator.
	ErrUnloaded = errors.New("climatesync: coordinator unloaded")

	// ErrDiscoveryFailed is returned when the discovery pass cannot complete.
	ErrDiscoveryFailed = errors.New("climatesync: discovery failed")
)
