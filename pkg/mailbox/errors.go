package mailbox

import (
	"errors"
	"fmt"
)

var (
	ErrBufferTooShort = errors.New("mailbox: buffer too short")
	ErrNoReadMailbox  = errors.New("mailbox: subdevice has no configured read mailbox")
	ErrNoWriteMailbox = errors.New("mailbox: subdevice has no configured write mailbox")
	ErrDecode         = errors.New("mailbox: malformed response")
	ErrTooLong        = errors.New("mailbox: value too long for expedited transfer")
	ErrTimeout        = errors.New("mailbox: timed out waiting for sync manager")
)

// EmergencyError wraps a CoE emergency message received in place of an
// expected SDO response.
type EmergencyError struct {
	ErrorCode     uint16
	ErrorRegister uint8
}

func (e *EmergencyError) Error() string {
	return fmt.Sprintf("mailbox: emergency code %#04x register %#02x", e.ErrorCode, e.ErrorRegister)
}

// AbortError wraps a CoE SDO abort response.
type AbortError struct {
	Code     AbortCode
	Index    uint16
	SubIndex uint8
}

func (e *AbortError) Error() string {
	return fmt.Sprintf("mailbox: sdo abort %#06x:%d: %s", e.Index, e.SubIndex, e.Code)
}

// ResponseMismatchError is returned, with Index and SubIndex left zero,
// when a response's mailbox type is not CoE. A response's index and
// sub-index are not compared with the request's.
type ResponseMismatchError struct {
	Index    uint16
	SubIndex uint8
}

func (e *ResponseMismatchError) Error() string {
	return fmt.Sprintf("mailbox: unexpected sdo response for %#06x:%d", e.Index, e.SubIndex)
}
