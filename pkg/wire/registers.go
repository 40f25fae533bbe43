package wire

// SubDevice register map. Values are ESC (EtherCAT Slave Controller)
// register addresses, accessed via APRD/APWR/FPRD/FPWR/BRD/BWR.
const (
	RegStationAddress              uint16 = 0x0010
	RegConfiguredStationAlias      uint16 = 0x0012
	RegAlControl                   uint16 = 0x0120
	RegAlStatus                    uint16 = 0x0130
	RegAlStatusCode                uint16 = 0x0134

	RegFmmuBase uint16 = 0x0600 // FMMU 0..15, 16 bytes each
	RegFmmuSize uint16 = 16
	RegSmBase   uint16 = 0x0800 // SM 0..15, 8 bytes each
	RegSmSize   uint16 = 8

	RegSiiControl uint16 = 0x0502
	RegSiiAddress uint16 = 0x0504
	RegSiiData    uint16 = 0x0508

	// RegDlStatus is the Data Link status register. Bits 8-11 report
	// whether a communication-capable link partner is present on ports
	// 0-3 respectively (hardware port order, not Ports' [0,3,1,2] slot
	// order).
	RegDlStatus uint16 = 0x0110

	RegDcTimePort0                 uint16 = 0x0900 // 4 consecutive u32 port receive times, hardware order [0,3,1,2]
	RegDcReceiveTime               uint16 = 0x0918 // u64 ECAT processing unit receive time
	RegDcSystemTime                uint16 = 0x0910
	RegDcSystemTimeOffset          uint16 = 0x0920
	RegDcSystemTimeTransmissionDelay uint16 = 0x0928
	RegDcSystemTimeDifference      uint16 = 0x092C
	RegDcCyclicUnitControl         uint16 = 0x0980
	RegDcSyncActive                uint16 = 0x0981
	RegDcSyncStartTime             uint16 = 0x0990
	RegDcSync0CycleTime            uint16 = 0x0998
	RegDcSync1CycleTime            uint16 = 0x099C
)

// FmmuRegister returns the base register address for FMMU slot n (0..15).
func FmmuRegister(n int) uint16 { return RegFmmuBase + uint16(n)*RegFmmuSize }

// SmRegister returns the base register address for Sync Manager slot n (0..15).
func SmRegister(n int) uint16 { return RegSmBase + uint16(n)*RegSmSize }

// SmStatusRegister returns the 1-byte status register of Sync Manager
// slot n: offset 5 within its 8-byte block (address, length, control,
// status, activate, pdi_control).
func SmStatusRegister(n int) uint16 { return SmRegister(n) + 5 }

// SmStatusMailboxFull is the bit of the Sync Manager status byte that
// is set while the buffer it backs holds unread data.
const SmStatusMailboxFull uint8 = 0x08

// AlState is the EtherCAT Application Layer state.
type AlState uint16

const (
	AlStateInit   AlState = 0x01
	AlStatePreOp  AlState = 0x02
	AlStateBootRS AlState = 0x03 // Bootstrap, relative to INIT
	AlStateSafeOp AlState = 0x04
	AlStateOp     AlState = 0x08
	// AlStateError is ORed into AlStatus/AlControl when a state change failed.
	AlStateError AlState = 0x10
)

func (s AlState) String() string {
	switch s &^ AlStateError {
	case AlStateInit:
		return "INIT"
	case AlStatePreOp:
		return "PRE-OP"
	case AlStateSafeOp:
		return "SAFE-OP"
	case AlStateOp:
		return "OP"
	case AlStateBootRS:
		return "BOOT"
	default:
		return "UNKNOWN"
	}
}

func (s AlState) HasError() bool { return s&AlStateError != 0 }

// AlControl is the 2-byte register written to request a state
// transition. Only the low byte (requested state) is meaningful on
// write; AlStatus additionally carries the error bit on read.
type AlControl struct {
	State AlState
}

const AlControlLen = 2

func (c AlControl) Pack(dst []byte) error {
	if len(dst) < AlControlLen {
		return ErrBufferTooShort
	}
	dst[0] = byte(c.State)
	dst[1] = 0
	return nil
}

func (c *AlControl) Unpack(src []byte) error {
	if len(src) < AlControlLen {
		return ErrBufferTooShort
	}
	c.State = AlState(src[0])
	return nil
}

// AlStatusCode enumerates the SubDevice error codes read from
// RegAlStatusCode when AlStateError is set.
type AlStatusCode uint16

const (
	AlStatusNoError                AlStatusCode = 0x0000
	AlStatusUnspecifiedError       AlStatusCode = 0x0001
	AlStatusInvalidRequestedState  AlStatusCode = 0x0011
	AlStatusInvalidMbxConfig       AlStatusCode = 0x0016
	AlStatusInvalidSMConfig        AlStatusCode = 0x0017
	AlStatusWatchdogTimeout        AlStatusCode = 0x001B
	AlStatusSyncManagerNotActive   AlStatusCode = 0x001D
	AlStatusSyncSignalsNotPresent  AlStatusCode = 0x0030
)
