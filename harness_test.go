package ethercat

import (
	"context"
	"encoding/binary"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/ethercat-go/ethercat/pkg/config"
	"github.com/ethercat-go/ethercat/pkg/pdu"
	"github.com/ethercat-go/ethercat/pkg/wire"
)

// ringLink simulates deviceCount devices on a single line: BRD reports
// deviceCount via working counter, APWR station-address assignment is
// acknowledged, and DL status/port-time reads answer as a simple daisy
// chain where every device but the last has ports 0 and 1 active (a
// Passthrough) and the last has only port 0 active (a LineEnd), so
// topology inference never exercises junction handling, already
// covered by pkg/dc's own tests.
type ringLink struct {
	ch          chan []byte
	mu          sync.Mutex
	deviceCount int
	recvTime    uint64

	fpwrLog []fpwrCall
}

type fpwrCall struct {
	station  uint16
	register uint16
	payload  []byte
}

func newRingLink(deviceCount int) *ringLink {
	return &ringLink{ch: make(chan []byte, 16), deviceCount: deviceCount, recvTime: 1_000_000}
}

func (l *ringLink) Send(frame []byte) error {
	cp := make([]byte, len(frame))
	copy(cp, frame)
	cp[6] |= 0x02 // Src[0]: mark as having traversed a SubDevice

	body := cp[wire.EthernetHeaderLen+wire.EtherCATHeaderLen:]
	off := 0
	for off < len(body) {
		var hdr wire.PduHeader
		if err := hdr.Unpack(body[off:]); err != nil {
			break
		}
		dataStart := off + wire.PduHeaderLen
		dataEnd := dataStart + int(hdr.Flags.Length)
		wkcOff := dataEnd
		payload := body[dataStart:dataEnd]

		wkc := l.handlePdu(hdr, payload)
		binary.LittleEndian.PutUint16(body[wkcOff:wkcOff+2], wkc)

		off = wkcOff + 2
		if !hdr.Flags.More {
			break
		}
	}
	l.ch <- cp
	return nil
}

func (l *ringLink) handlePdu(hdr wire.PduHeader, payload []byte) uint16 {
	l.mu.Lock()
	defer l.mu.Unlock()

	switch hdr.Command {
	case wire.CmdBRD:
		return uint16(l.deviceCount)
	case wire.CmdAPWR:
		return 1
	case wire.CmdFPRD:
		station, register := wire.SplitConfiguredAddress(hdr.Address)
		// Every device but the last forwards to the next one on port 1.
		hasNext := int(station-FirstStationAddress) < l.deviceCount-1
		switch register {
		case wire.RegDlStatus:
			status := uint16(1 << 8) // port 0
			if hasNext {
				status |= 1 << 9 // port 1
			}
			binary.LittleEndian.PutUint16(payload, status)
		case wire.RegDcTimePort0:
			binary.LittleEndian.PutUint32(payload[0:4], uint32(l.recvTime))
			if hasNext {
				binary.LittleEndian.PutUint32(payload[4:8], uint32(l.recvTime)+100)
			}
		case wire.RegDcReceiveTime:
			binary.LittleEndian.PutUint64(payload, l.recvTime)
		case wire.RegDcSystemTime:
			binary.LittleEndian.PutUint64(payload, l.recvTime+500)
		}
		return 1
	case wire.CmdFPWR:
		_, register := wire.SplitConfiguredAddress(hdr.Address)
		station, _ := wire.SplitConfiguredAddress(hdr.Address)
		cp := make([]byte, len(payload))
		copy(cp, payload)
		l.fpwrLog = append(l.fpwrLog, fpwrCall{station: station, register: register, payload: cp})
		return 1
	case wire.CmdFRMW:
		return 1
	default:
		return 0
	}
}

func (l *ringLink) Receive(buf []byte) (int, error) {
	data := <-l.ch
	return copy(buf, data), nil
}

func (l *ringLink) writesTo(register uint16) []fpwrCall {
	l.mu.Lock()
	defer l.mu.Unlock()
	var out []fpwrCall
	for _, c := range l.fpwrLog {
		if c.register == register {
			out = append(out, c)
		}
	}
	return out
}

func newTestMainDevice(t *testing.T, link pdu.Link) (*MainDevice, context.CancelFunc) {
	t.Helper()
	sto, err := pdu.NewPduStorage(8, 512)
	require.NoError(t, err)
	tx, rx, loop, err := sto.Split()
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	go func() { _ = tx.Run(ctx, link, time.Millisecond) }()
	go func() { _ = rx.Run(ctx, link) }()

	m := &MainDevice{loop: loop, tx: tx, rx: rx, cancel: cancel, logger: slog.Default(), Config: config.DefaultConfig()}
	return m, cancel
}
