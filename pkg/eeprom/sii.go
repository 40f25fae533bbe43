package eeprom

// SiiControl is the two-byte SII control/status register (ETG1000.4
// 6.4.3). Byte 0 carries the request's access mode and read width;
// byte 1 reports the busy/error flags the read loop polls.
type SiiControl struct {
	AccessReadWrite bool
	EmulateSII      bool
	ReadSizeOctets8 bool
	AddressTypeU16  bool

	Read            bool
	Write           bool
	Reload          bool
	ChecksumError   bool
	DeviceInfoError bool
	CommandError    bool
	WriteError      bool
	Busy            bool
}

func (c SiiControl) HasError() bool {
	return c.ChecksumError || c.DeviceInfoError || c.WriteError
}

func (c SiiControl) pack() [2]byte {
	var b0, b1 byte
	if c.AccessReadWrite {
		b0 |= 0x01
	}
	if c.EmulateSII {
		b0 |= 0x20
	}
	if c.ReadSizeOctets8 {
		b0 |= 0x40
	}
	if c.AddressTypeU16 {
		b0 |= 0x80
	}
	if c.Read {
		b1 |= 0x01
	}
	if c.Write {
		b1 |= 0x02
	}
	if c.Reload {
		b1 |= 0x04
	}
	if c.ChecksumError {
		b1 |= 0x08
	}
	if c.DeviceInfoError {
		b1 |= 0x10
	}
	if c.CommandError {
		b1 |= 0x20
	}
	if c.WriteError {
		b1 |= 0x40
	}
	if c.Busy {
		b1 |= 0x80
	}
	return [2]byte{b0, b1}
}

func unpackSiiControl(buf []byte) SiiControl {
	b0, b1 := buf[0], buf[1]
	return SiiControl{
		AccessReadWrite: b0&0x01 != 0,
		EmulateSII:      b0&0x20 != 0,
		ReadSizeOctets8: b0&0x40 != 0,
		AddressTypeU16:  b0&0x80 != 0,
		Read:            b1&0x01 != 0,
		Write:           b1&0x02 != 0,
		Reload:          b1&0x04 != 0,
		ChecksumError:   b1&0x08 != 0,
		DeviceInfoError: b1&0x10 != 0,
		CommandError:    b1&0x20 != 0,
		WriteError:      b1&0x40 != 0,
		Busy:            b1&0x80 != 0,
	}
}

// siiReadRequest builds the 6-byte payload written to RegSiiControl to
// start a read at the given word address: 2 bytes control, 2 bytes
// address, 2 bytes padding for the unused high address word.
func siiReadRequest(address uint16) [6]byte {
	ctl := SiiControl{Read: true}.pack()
	var out [6]byte
	out[0], out[1] = ctl[0], ctl[1]
	out[2] = byte(address)
	out[3] = byte(address >> 8)
	return out
}
