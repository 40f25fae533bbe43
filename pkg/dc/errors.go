package dc

import "errors"

var (
	// ErrNoForkParent is returned when walking backward through
	// previously discovered devices never finds a junction, but the
	// immediate predecessor is a LineEnd.
	ErrNoForkParent = errors.New("dc: no fork parent found for device")
	// ErrNoEntryPort is returned when a device has zero active ports,
	// which should be impossible for anything actually on the wire.
	ErrNoEntryPort = errors.New("dc: device has no entry port")
	// ErrNoReference reports DC configuration requested with no
	// DC-capable device in the group. No function in this module
	// returns it.
	ErrNoReference = errors.New("dc: no dc-capable reference device in group")
)
