package eeprom

import "context"

// crc8 computes the SII header checksum: CRC-8/ATM (polynomial 0x07,
// initial value 0xFF, no input/output reflection), covering the first
// 14 bytes (word addresses 0x00-0x06) of the EEPROM.
func crc8(data []byte) byte {
	var crc byte = 0xFF
	for _, b := range data {
		crc ^= b
		for i := 0; i < 8; i++ {
			if crc&0x80 != 0 {
				crc = (crc << 1) ^ 0x07
			} else {
				crc <<= 1
			}
		}
	}
	return crc
}

// VerifyChecksum reads the first 7 words of the EEPROM and checks
// their stored CRC-8 against a freshly computed one.
func (r *Reader) VerifyChecksum(ctx context.Context) (bool, error) {
	var header []byte
	for addr := uint16(0); addr < AddrChecksum; addr += 2 {
		word, err := r.readRaw(ctx, addr)
		if err != nil {
			return false, err
		}
		header = append(header, word[:4]...)
	}
	header = header[:14]

	stored, err := r.readRaw(ctx, AddrChecksum)
	if err != nil {
		return false, err
	}
	want := crc8(header)
	return want == stored[0], nil
}
