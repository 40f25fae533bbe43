package subdevice

import (
	"errors"
	"fmt"

	"github.com/ethercat-go/ethercat/pkg/wire"
)

var (
	// ErrNoMailbox reports a mailbox-dependent operation on a device
	// with no usable mailbox. No function in this package returns it:
	// ProbeIO falls back to the EEPROM categories for devices without
	// a CoE mailbox.
	ErrNoMailbox = errors.New("subdevice: no mailbox configured")
	// ErrNoFmmuSlot reports that no FMMU slot is free. No function in
	// this package returns it: AssignInputFmmu and AssignOutputFmmu
	// only use FMMU slots 0 and 1.
	ErrNoFmmuSlot = errors.New("subdevice: no free FMMU slot")
	// ErrTimeout is returned when a state transition does not
	// complete within the configured timeout.
	ErrTimeout = errors.New("subdevice: state transition timed out")
)

// StateError reports that a SubDevice's AL status carried the error
// bit during a requested state transition.
type StateError struct {
	Requested wire.AlState
	Reported  wire.AlState
	Code      wire.AlStatusCode
}

func (e *StateError) Error() string {
	return fmt.Sprintf("subdevice: state transition to %s failed, reported %s (status code 0x%04x)", e.Requested, e.Reported, uint16(e.Code))
}
