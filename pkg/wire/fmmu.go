package wire

import "encoding/binary"

// FmmuLen is the packed length of one FMMU configuration register
// block (ETG1000.4 Table 38).
const FmmuLen = 16

// Fmmu is one Fieldbus Memory Management Unit configuration: it maps
// a bit range of the logical process image to a bit range of a
// SubDevice's physical (sync manager) memory.
type Fmmu struct {
	LogicalStartAddress  uint32
	LengthBytes          uint16
	LogicalStartBit      uint8 // 0..7
	LogicalEndBit        uint8 // 0..7
	PhysicalStartAddress uint16
	PhysicalStartBit     uint8 // 0..7
	ReadEnable           bool
	WriteEnable          bool
	Enable               bool
}

func (f Fmmu) Pack(dst []byte) error {
	if len(dst) < FmmuLen {
		return ErrBufferTooShort
	}
	for i := range dst[:FmmuLen] {
		dst[i] = 0
	}
	binary.LittleEndian.PutUint32(dst[0:4], f.LogicalStartAddress)
	binary.LittleEndian.PutUint16(dst[4:6], f.LengthBytes)
	dst[6] = f.LogicalStartBit & 0x07
	dst[7] = f.LogicalEndBit & 0x07
	binary.LittleEndian.PutUint16(dst[8:10], f.PhysicalStartAddress)
	dst[10] = f.PhysicalStartBit & 0x07
	var typeOp uint8
	if f.ReadEnable {
		typeOp |= 0x01
	}
	if f.WriteEnable {
		typeOp |= 0x02
	}
	dst[11] = typeOp
	if f.Enable {
		dst[12] = 0x01
	}
	return nil
}

func (f *Fmmu) Unpack(src []byte) error {
	if len(src) < FmmuLen {
		return ErrBufferTooShort
	}
	f.LogicalStartAddress = binary.LittleEndian.Uint32(src[0:4])
	f.LengthBytes = binary.LittleEndian.Uint16(src[4:6])
	f.LogicalStartBit = src[6] & 0x07
	f.LogicalEndBit = src[7] & 0x07
	f.PhysicalStartAddress = binary.LittleEndian.Uint16(src[8:10])
	f.PhysicalStartBit = src[10] & 0x07
	f.ReadEnable = src[11]&0x01 != 0
	f.WriteEnable = src[11]&0x02 != 0
	f.Enable = src[12]&0x01 != 0
	return nil
}
