package subdevice

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/ethercat-go/ethercat/pkg/pdu"
	"github.com/ethercat-go/ethercat/pkg/wire"
)

// echoLink simulates a SubDevice that acknowledges every PDU with
// working counter 1 and otherwise leaves the payload untouched, enough
// to drive writes (FPWR) where only the working counter is checked.
type echoLink struct {
	ch chan []byte
}

func newEchoLink() *echoLink { return &echoLink{ch: make(chan []byte, 8)} }

func (l *echoLink) Send(frame []byte) error {
	cp := make([]byte, len(frame))
	copy(cp, frame)
	cp[6] |= 0x02 // Src[0]: mark as having traversed a SubDevice

	body := cp[wire.EthernetHeaderLen+wire.EtherCATHeaderLen:]
	var hdr wire.PduHeader
	if err := hdr.Unpack(body); err == nil {
		dataEnd := wire.PduHeaderLen + int(hdr.Flags.Length)
		body[dataEnd] = 1
		body[dataEnd+1] = 0
	}
	l.ch <- cp
	return nil
}

func (l *echoLink) Receive(buf []byte) (int, error) {
	data := <-l.ch
	return copy(buf, data), nil
}

type fakeSender struct{ loop *pdu.PduLoop }

func (f fakeSender) Loop() *pdu.PduLoop { return f.loop }

func newFakeSender(t *testing.T) (fakeSender, context.CancelFunc) {
	t.Helper()
	sto, err := pdu.NewPduStorage(4, 64)
	require.NoError(t, err)
	tx, rx, loop, err := sto.Split()
	require.NoError(t, err)
	link := newEchoLink()
	ctx, cancel := context.WithCancel(context.Background())
	go func() { _ = tx.Run(ctx, link, time.Millisecond) }()
	go func() { _ = rx.Run(ctx, link) }()
	return fakeSender{loop: loop}, cancel
}
