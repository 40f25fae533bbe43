// Package pdu implements the lock-free frame allocator and completion
// engine at the heart of an EtherCAT MainDevice: a fixed pool of frame
// slots that multiplexes many logical PDUs into Ethernet frames, tracks
// their in-flight state, and matches responses back to waiters.
package pdu

import "errors"

var (
	// ErrSwapState is returned by AllocFrame when no slot is free
	// after scanning 2N candidates. Callers retry with their own
	// backoff governed by their timeout.
	ErrSwapState = errors.New("pdu: no free frame slot")
	// ErrTooLong is returned by PushPdu when the PDU would not fit in
	// the frame's remaining capacity. The caller must finalise the
	// current frame and allocate a new one.
	ErrTooLong = errors.New("pdu: pdu would exceed frame capacity")
	// ErrPduIndexInUse signals a PDU index collision: the global PDU
	// index table still maps this index to another in-flight frame.
	ErrPduIndexInUse = errors.New("pdu: pdu index already in flight")
	// ErrInvalidIndex is returned by ReadPdu when the handle's PDU
	// index is not among the PDUs packed into the received frame.
	ErrInvalidIndex = errors.New("pdu: unknown pdu index")
	// ErrCommandMismatch is returned when a received PDU's command
	// code does not match what was sent.
	ErrCommandMismatch = errors.New("pdu: command mismatch between sent and received pdu")
	// ErrDecode covers malformed incoming Ethernet/EtherCAT frames.
	ErrDecode = errors.New("pdu: failed to decode received frame")
	// ErrStale is returned when a handle refers to a frame slot that
	// has since been released and reused by another allocation.
	ErrStale = errors.New("pdu: handle refers to a reused frame slot")
	// ErrNotSendable guards PduLoop.Send against being called twice
	// or on a frame that never had a PDU pushed into it.
	ErrNotSendable = errors.New("pdu: frame is not in a sendable state")
	// ErrAlreadySplit guards PduStorage.Split against being called
	// more than once.
	ErrAlreadySplit = errors.New("pdu: storage already split")
	// ErrCapacity is returned by NewPduStorage for invalid N/DATA parameters.
	ErrCapacity = errors.New("pdu: invalid storage capacity")
)
