package group

import (
	"context"
	"encoding/binary"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/ethercat-go/ethercat/pkg/pdu"
	"github.com/ethercat-go/ethercat/pkg/wire"
)

// scriptedLink simulates a group of devices: FPRD(AlStatus) returns
// the state recorded for that station in states; every write
// (BWR/FPWR/LRW/FRMW) is acknowledged with a working counter of
// wantWkc (or 1 for FRMW, since exactly one device is ever the DC
// reference).
type scriptedLink struct {
	ch      chan []byte
	states  map[uint16]wire.AlState
	wantWkc uint16
}

func (l *scriptedLink) Send(frame []byte) error {
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

		switch hdr.Command {
		case wire.CmdFPRD:
			station, register := wire.SplitConfiguredAddress(hdr.Address)
			if register == wire.RegAlStatus {
				binary.LittleEndian.PutUint16(body[dataStart:dataEnd], uint16(l.states[station]))
			}
			binary.LittleEndian.PutUint16(body[wkcOff:wkcOff+2], 1)
		case wire.CmdFRMW:
			binary.LittleEndian.PutUint16(body[wkcOff:wkcOff+2], 1)
		default:
			binary.LittleEndian.PutUint16(body[wkcOff:wkcOff+2], l.wantWkc)
		}

		off = wkcOff + 2
		if !hdr.Flags.More {
			break
		}
	}
	l.ch <- cp
	return nil
}

func (l *scriptedLink) Receive(buf []byte) (int, error) {
	data := <-l.ch
	return copy(buf, data), nil
}

type fakeSender struct{ loop *pdu.PduLoop }

func (f fakeSender) Loop() *pdu.PduLoop { return f.loop }

func newScriptedSender(t *testing.T, states map[uint16]wire.AlState, wantWkc uint16) (fakeSender, context.CancelFunc) {
	t.Helper()
	sto, err := pdu.NewPduStorage(8, 512)
	require.NoError(t, err)
	tx, rx, loop, err := sto.Split()
	require.NoError(t, err)
	link := &scriptedLink{ch: make(chan []byte, 16), states: states, wantWkc: wantWkc}
	ctx, cancel := context.WithCancel(context.Background())
	go func() { _ = tx.Run(ctx, link, time.Millisecond) }()
	go func() { _ = rx.Run(ctx, link) }()
	return fakeSender{loop: loop}, cancel
}
