package eeprom

import (
	"context"
	"encoding/binary"
)

// General reads the SII "General" category.
func (r *Reader) General(ctx context.Context) (General, error) {
	cat, err := r.findCategory(ctx, CategoryGeneral)
	if err != nil {
		return General{}, err
	}
	sec := newSectionReader(r, cat)
	buf, err := sec.take(ctx, 18)
	if err != nil {
		return General{}, err
	}

	// Byte layout (ETG1000.6 Table 21): group/image/order/name string
	// indices, 1 reserved byte, coe_details, foe_enabled, eoe_enabled,
	// 3 reserved bytes (soe/ds402/sysman, unused here), flags,
	// ebus_current (i16), ports (u16 nibble-packed), physical_mem_addr.
	var ports [4]PortStatus
	portBits := binary.LittleEndian.Uint16(buf[14:16])
	for i := 0; i < 4; i++ {
		ports[i] = PortStatus((portBits >> (4 * i)) & 0x0F)
	}

	return General{
		GroupStringIdx: buf[0],
		ImageStringIdx: buf[1],
		OrderStringIdx: buf[2],
		NameStringIdx:  buf[3],
		CoeDetails:     CoeDetails(buf[5]),
		FoEEnabled:     buf[6] != 0,
		EoEEnabled:     buf[7] != 0,
		Ports:          ports,
		EBusCurrentMa:  int16(binary.LittleEndian.Uint16(buf[12:14])),
	}, nil
}

// DeviceName resolves the device's name string via the General
// category's name_string_idx and the Strings category.
func (r *Reader) DeviceName(ctx context.Context) (string, bool, error) {
	g, err := r.General(ctx)
	if err != nil {
		return "", false, err
	}
	return r.findString(ctx, g.NameStringIdx)
}

// findString resolves a 1-based EtherCAT string index (0 means "no
// string") against the Strings category.
func (r *Reader) findString(ctx context.Context, searchIndex uint8) (string, bool, error) {
	if searchIndex == 0 {
		return "", false, nil
	}
	searchIndex--

	cat, err := r.findCategory(ctx, CategoryStrings)
	if err == ErrNoCategory {
		return "", false, nil
	}
	if err != nil {
		return "", false, err
	}
	sec := newSectionReader(r, cat)

	numStringsBuf, err := sec.take(ctx, 1)
	if err != nil {
		return "", false, err
	}
	numStrings := numStringsBuf[0]
	if searchIndex >= numStrings {
		return "", false, nil
	}

	for i := uint8(0); i < searchIndex; i++ {
		lenBuf, err := sec.take(ctx, 1)
		if err != nil {
			return "", false, err
		}
		if err := sec.skip(ctx, uint16(lenBuf[0])); err != nil {
			return "", false, err
		}
	}

	lenBuf, err := sec.take(ctx, 1)
	if err != nil {
		return "", false, err
	}
	strBytes, err := sec.take(ctx, int(lenBuf[0]))
	if err != nil {
		return "", false, err
	}
	return string(strBytes), true, nil
}

// SyncManagers reads every entry of the SII SyncManager category.
func (r *Reader) SyncManagers(ctx context.Context) ([]SyncManager, error) {
	cat, err := r.findCategory(ctx, CategorySyncManager)
	if err == ErrNoCategory {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	sec := newSectionReader(r, cat)

	var out []SyncManager
	for {
		buf, ok, err := sec.tryTake(ctx, 8)
		if err != nil {
			return nil, err
		}
		if !ok {
			break
		}
		out = append(out, SyncManager{
			StartAddr: binary.LittleEndian.Uint16(buf[0:2]),
			Length:    binary.LittleEndian.Uint16(buf[2:4]),
			Control:   buf[4],
			Enable:    SyncManagerEnable(buf[6]),
			UsageType: SyncManagerUsage(buf[7]),
		})
	}
	return out, nil
}

// pdoCategory reads every Pdo entry of a TxPdo or RxPdo category.
func (r *Reader) pdoCategory(ctx context.Context, kind CategoryType) ([]Pdo, error) {
	cat, err := r.findCategory(ctx, kind)
	if err == ErrNoCategory {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	sec := newSectionReader(r, cat)

	var out []Pdo
	for {
		head, ok, err := sec.tryTake(ctx, 8)
		if err != nil {
			return nil, err
		}
		if !ok {
			break
		}
		pdo := Pdo{
			Index:         binary.LittleEndian.Uint16(head[0:2]),
			NumEntries:    head[2],
			SyncManager:   head[3],
			NameStringIdx: head[4],
		}
		for i := uint8(0); i < pdo.NumEntries; i++ {
			entryBuf, err := sec.take(ctx, 8)
			if err != nil {
				return nil, err
			}
			pdo.Entries = append(pdo.Entries, PdoEntry{
				Index:         binary.LittleEndian.Uint16(entryBuf[0:2]),
				SubIndex:      entryBuf[2],
				NameStringIdx: entryBuf[3],
				DataType:      entryBuf[4],
				BitLen:        entryBuf[5],
			})
		}
		out = append(out, pdo)
	}
	return out, nil
}

// TxPdos reads the SII TxPdo category (inputs, SubDevice to
// MainDevice).
func (r *Reader) TxPdos(ctx context.Context) ([]Pdo, error) { return r.pdoCategory(ctx, CategoryTxPdo) }

// RxPdos reads the SII RxPdo category (outputs, MainDevice to
// SubDevice).
func (r *Reader) RxPdos(ctx context.Context) ([]Pdo, error) { return r.pdoCategory(ctx, CategoryRxPdo) }
