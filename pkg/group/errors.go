package group

import "errors"

var (
	// ErrCapacity is returned when a group's assigned PDI would exceed
	// its configured MaxPdi.
	ErrCapacity = errors.New("group: PDI exceeds configured capacity")
	// ErrInvalidState reports an operation attempted from a lifecycle
	// state that does not permit it. No function in this package
	// returns it.
	ErrInvalidState = errors.New("group: operation not valid in current state")
	// ErrNoDC is returned by TxRxDc when the group has no DC reference
	// device configured.
	ErrNoDC = errors.New("group: no DC reference configured")
)
