package ethercat

import "errors"

var (
	// ErrNoResponse is returned by Discover when the broadcast count
	// read comes back with working counter zero: nothing answered.
	ErrNoResponse = errors.New("ethercat: no SubDevice responded to discovery")
	// ErrTooManyDevices is returned by Discover when more devices
	// answered than MaxStationAddress allows.
	ErrTooManyDevices = errors.New("ethercat: discovered device count exceeds addressable range")
	// ErrNoGroups is returned by InitGroups when the assignment
	// callback placed no device into any group.
	ErrNoGroups = errors.New("ethercat: group assignment produced no groups")
)
