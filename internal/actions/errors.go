package actions

import "errors"

// Domain errors for the actions package.
// Use errors.Is() to check for these errors in calling code.
var (
	// ErrAckTimeout is returned when the bridge does not acknowledge in time.
	ErrAckTimeout = errors.New("actions: acknowledgement timeout")

	// ErrRejected is returned when the bridge reports the action failed.
	ErrRejected = errors.New("actions: rejected by bridge")

	// ErrInvalidEntityID is returned for entity IDs without a domain prefix.
	ErrInvalidEntityID = errors.New("actions: invalid entity id")
)
