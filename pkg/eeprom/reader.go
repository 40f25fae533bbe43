package eeprom

import (
	"context"
	"encoding/binary"
	"time"

	log "github.com/sirupsen/logrus"

	"github.com/ethercat-go/ethercat/pkg/command"
	"github.com/ethercat-go/ethercat/pkg/wire"
)

// PollInterval is how often Reader polls SiiControl.Busy while waiting
// for a read to complete.
var PollInterval = time.Millisecond

// BusyTimeout bounds how long Reader waits for a single SII read.
var BusyTimeout = 10 * time.Millisecond

// Reader reads the SII EEPROM of one SubDevice over APRD/APWR-style
// FPRD/FPWR commands against its configured station address.
type Reader struct {
	sender            command.Sender
	configuredAddress uint16
}

func NewReader(sender command.Sender, configuredAddress uint16) *Reader {
	return &Reader{sender: sender, configuredAddress: configuredAddress}
}

// readRaw performs one SII read cycle at the given word address,
// returning either 4 or 8 octets depending on what the SubDevice
// reports it wants to transfer at a time.
func (r *Reader) readRaw(ctx context.Context, address uint16) ([]byte, error) {
	req := siiReadRequest(address)
	wkc, err := command.Fpwr(r.configuredAddress, wire.RegSiiControl).Send(ctx, r.sender, req[:])
	if err != nil {
		return nil, err
	}
	if err := command.CheckWkc(wkc, 1, "sii read setup"); err != nil {
		return nil, err
	}

	deadline, cancel := context.WithTimeout(ctx, BusyTimeout)
	defer cancel()

	var readSize8 bool
	for {
		var ctlBuf [2]byte
		wkc, err := command.Fprd(r.configuredAddress, wire.RegSiiControl).Receive(deadline, r.sender, ctlBuf[:])
		if err != nil {
			return nil, err
		}
		if err := command.CheckWkc(wkc, 1, "sii busy wait"); err != nil {
			return nil, err
		}
		ctl := unpackSiiControl(ctlBuf[:])
		if ctl.HasError() {
			return nil, ErrDecode
		}
		if !ctl.Busy {
			readSize8 = ctl.ReadSizeOctets8
			break
		}
		select {
		case <-deadline.Done():
			return nil, ErrTimeout
		case <-time.After(PollInterval):
		}
	}

	size := 4
	if readSize8 {
		size = 8
	}
	data := make([]byte, size)
	wkc, err := command.Fprd(r.configuredAddress, wire.RegSiiData).Receive(ctx, r.sender, data)
	if err != nil {
		return nil, err
	}
	if err := command.CheckWkc(wkc, 1, "sii data"); err != nil {
		return nil, err
	}
	log.WithFields(log.Fields{"addr": address, "len": size}).Trace("eeprom: read raw")
	return data, nil
}

// ReadIdentity reads the fixed-address vendor/product/revision/serial
// block.
func (r *Reader) ReadIdentity(ctx context.Context) (Identity, error) {
	vendor, err := r.readRaw(ctx, AddrVendorID)
	if err != nil {
		return Identity{}, err
	}
	product, err := r.readRaw(ctx, AddrProductCode)
	if err != nil {
		return Identity{}, err
	}
	revision, err := r.readRaw(ctx, AddrRevisionNumber)
	if err != nil {
		return Identity{}, err
	}
	serial, err := r.readRaw(ctx, AddrSerialNumber)
	if err != nil {
		return Identity{}, err
	}
	return Identity{
		VendorID:       binary.LittleEndian.Uint32(vendor[:4]),
		ProductCode:    binary.LittleEndian.Uint32(product[:4]),
		RevisionNumber: binary.LittleEndian.Uint32(revision[:4]),
		SerialNumber:   binary.LittleEndian.Uint32(serial[:4]),
	}, nil
}

// ReadMailboxDefaults reads the standard (non-bootstrap) mailbox
// configuration block.
func (r *Reader) ReadMailboxDefaults(ctx context.Context) (DefaultMailboxConfig, error) {
	buf, err := r.readRaw(ctx, AddrStandardReceiveMailboxOffset)
	if err != nil {
		return DefaultMailboxConfig{}, err
	}
	recvOffset := binary.LittleEndian.Uint16(buf[0:2])
	recvSize := binary.LittleEndian.Uint16(buf[2:4])

	buf, err = r.readRaw(ctx, AddrStandardSendMailboxOffset)
	if err != nil {
		return DefaultMailboxConfig{}, err
	}
	sendOffset := binary.LittleEndian.Uint16(buf[0:2])
	sendSize := binary.LittleEndian.Uint16(buf[2:4])

	buf, err = r.readRaw(ctx, AddrMailboxProtocol)
	if err != nil {
		return DefaultMailboxConfig{}, err
	}
	protocols := MailboxProtocols(binary.LittleEndian.Uint16(buf[0:2]))

	return DefaultMailboxConfig{
		ReceiveOffset:      recvOffset,
		ReceiveSize:        recvSize,
		SendOffset:         sendOffset,
		SendSize:           sendSize,
		SupportedProtocols: protocols,
	}, nil
}
