package mailbox

import "fmt"

// AbortCode is the 32-bit SDO abort code carried in an abort-transfer
// response (ETG1000.6 section 5.6.2.7.1 Table 40).
type AbortCode uint32

const (
	AbortToggleNotAlternated    AbortCode = 0x05030000
	AbortTimeout                AbortCode = 0x05040000
	AbortUnknownCommand         AbortCode = 0x05040001
	AbortOutOfMemory            AbortCode = 0x05040005
	AbortUnsupportedAccess      AbortCode = 0x06010000
	AbortWriteOnly              AbortCode = 0x06010001
	AbortReadOnly               AbortCode = 0x06010002
	AbortNotFound               AbortCode = 0x06020000
	AbortNotMappable            AbortCode = 0x06040041
	AbortLengthMismatch         AbortCode = 0x06040043
	AbortGeneralParameterError  AbortCode = 0x06040045
	AbortDeviceIncompatible     AbortCode = 0x06040047
	AbortHardwareFault          AbortCode = 0x06060000
	AbortLengthTypeMismatch     AbortCode = 0x06070010
	AbortLengthTooLong          AbortCode = 0x06070012
	AbortLengthTooShort         AbortCode = 0x06070013
	AbortSubIndexNotFound       AbortCode = 0x06090011
	AbortValueOutOfRange        AbortCode = 0x06090030
	AbortValueTooHigh           AbortCode = 0x06090031
	AbortValueTooLow            AbortCode = 0x06090032
	AbortGeneralError           AbortCode = 0x08000000
	AbortTransferFailed         AbortCode = 0x08000020
	AbortLocalControlFailed     AbortCode = 0x08000021
	AbortDeviceStateInvalid     AbortCode = 0x08000022
)

var abortNames = map[AbortCode]string{
	AbortToggleNotAlternated:   "toggle bit not alternated",
	AbortTimeout:               "SDO protocol timed out",
	AbortUnknownCommand:        "client/server command specifier not valid or unknown",
	AbortOutOfMemory:           "out of memory",
	AbortUnsupportedAccess:     "unsupported access to an object",
	AbortWriteOnly:             "attempt to read a write-only object",
	AbortReadOnly:              "attempt to write a read-only object",
	AbortNotFound:              "object does not exist in the object dictionary",
	AbortNotMappable:           "object cannot be mapped to the PDO",
	AbortLengthMismatch:        "number/length of mapped objects exceeds PDO length",
	AbortGeneralParameterError: "general parameter incompatibility reason",
	AbortDeviceIncompatible:    "general internal incompatibility in the device",
	AbortHardwareFault:         "access failed due to a hardware error",
	AbortLengthTypeMismatch:    "data type does not match, length of service parameter does not match",
	AbortLengthTooLong:         "data type does not match, length of service parameter too high",
	AbortLengthTooShort:        "data type does not match, length of service parameter too low",
	AbortSubIndexNotFound:      "sub-index does not exist",
	AbortValueOutOfRange:       "value range of parameter exceeded",
	AbortValueTooHigh:          "value of parameter written too high",
	AbortValueTooLow:           "value of parameter written too low",
	AbortGeneralError:          "general error",
	AbortTransferFailed:        "data cannot be transferred or stored to the application",
	AbortLocalControlFailed:    "data cannot be transferred because of local control",
	AbortDeviceStateInvalid:    "data cannot be transferred in the current device state",
}

func (c AbortCode) String() string {
	if name, ok := abortNames[c]; ok {
		return name
	}
	return fmt.Sprintf("unknown abort code %#08x", uint32(c))
}
