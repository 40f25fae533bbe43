// Package wire provides bit-exact pack/unpack of EtherCAT registers,
// headers and PDUs. Every on-wire type has a fixed packed length; all
// multi-byte integers are little-endian. No allocation happens on the
// pack/unpack path.
package wire

import "errors"

var (
	// ErrBufferTooShort is returned when a byte slice passed to Unpack
	// or a destination slice passed to Pack is smaller than PackedLen.
	ErrBufferTooShort = errors.New("wire: buffer too short")
	// ErrInvalidValue is returned when a packed field's value is out
	// of the range its wire representation allows.
	ErrInvalidValue = errors.New("wire: invalid value")
	// ErrInvalidEnum is returned when an on-wire enum byte/word does
	// not correspond to any known variant.
	ErrInvalidEnum = errors.New("wire: invalid enum value")
)
