package wire

import "encoding/binary"

// SyncManagerLen is the packed length of one Sync Manager
// configuration register block (ETG1000.4 Table 58).
const SyncManagerLen = 8

// SyncManagerControl bits (offset 4 within the register block).
const (
	SmControlDirectionWrite uint8 = 0x04 // bits 2-3 = 01: MainDevice writes (SubDevice reads)
	SmControlDirectionRead  uint8 = 0x00 // bits 2-3 = 00: MainDevice reads (SubDevice writes)
	SmControlMailbox        uint8 = 0x02 // bits 0-1 = 10: mailbox mode (00 is buffered)
)

// SyncManagerActivate bits (offset 6).
const SmActivateEnable uint8 = 0x01

// SyncManagerConfig is the writable configuration of one Sync
// Manager: start address, buffer length, control byte and activation
// byte. The status/pdi_control bytes are read-only on the wire and
// not part of this struct.
type SyncManagerConfig struct {
	StartAddr uint16
	Length    uint16
	Control   uint8
	Enable    bool
}

func (s SyncManagerConfig) Pack(dst []byte) error {
	if len(dst) < SyncManagerLen {
		return ErrBufferTooShort
	}
	binary.LittleEndian.PutUint16(dst[0:2], s.StartAddr)
	binary.LittleEndian.PutUint16(dst[2:4], s.Length)
	dst[4] = s.Control
	dst[5] = 0
	if s.Enable {
		dst[6] = SmActivateEnable
	} else {
		dst[6] = 0
	}
	dst[7] = 0
	return nil
}
