package command

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ethercat-go/ethercat/pkg/pdu"
	"github.com/ethercat-go/ethercat/pkg/wire"
)

// echoLink simulates a single SubDevice that, for any FPRD/BRD style
// read, fills the PDU payload with a fixed pattern and increments the
// working counter by one, flipping the self-sent marker bit as a real
// device would.
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
		dataStart := wire.PduHeaderLen
		dataEnd := dataStart + int(hdr.Flags.Length)
		for i := dataStart; i < dataEnd; i++ {
			body[i] = 0x42
		}
		binaryPutWkc(body[dataEnd:dataEnd+wire.WorkingCounterLen], 1)
	}
	l.ch <- cp
	return nil
}

func binaryPutWkc(b []byte, wkc uint16) {
	b[0] = byte(wkc)
	b[1] = byte(wkc >> 8)
}

func (l *echoLink) Receive(buf []byte) (int, error) {
	data := <-l.ch
	return copy(buf, data), nil
}

type fakeSender struct{ loop *pdu.PduLoop }

func (f *fakeSender) Loop() *pdu.PduLoop { return f.loop }

func setupSender(t *testing.T) (*fakeSender, context.CancelFunc) {
	t.Helper()
	sto, err := pdu.NewPduStorage(4, 64)
	require.NoError(t, err)
	tx, rx, loop, err := sto.Split()
	require.NoError(t, err)
	link := newEchoLink()
	ctx, cancel := context.WithCancel(context.Background())
	go func() { _ = tx.Run(ctx, link, time.Millisecond) }()
	go func() { _ = rx.Run(ctx, link) }()
	return &fakeSender{loop: loop}, cancel
}

func TestFprdReceiveUint16(t *testing.T) {
	s, cancel := setupSender(t)
	defer cancel()

	ctx, done := context.WithTimeout(context.Background(), time.Second)
	defer done()

	val, wkc, err := Fprd(0x1000, wire.RegAlStatus).ReceiveUint16(ctx, s)
	require.NoError(t, err)
	assert.EqualValues(t, 1, wkc)
	assert.EqualValues(t, 0x4242, val)
}

func TestCheckWkcMismatch(t *testing.T) {
	err := CheckWkc(0, 1, "brd count")
	require.Error(t, err)
	var wkcErr *ErrWorkingCounter
	require.ErrorAs(t, err, &wkcErr)
	assert.Equal(t, uint16(0), wkcErr.Received)
	assert.Equal(t, uint16(1), wkcErr.Expected)
}

func TestReceiveWkcPropagatesError(t *testing.T) {
	s, cancel := setupSender(t)
	defer cancel()
	ctx, done := context.WithTimeout(context.Background(), time.Second)
	defer done()

	buf := make([]byte, 2)
	err := Fprd(0x1000, wire.RegAlStatus).ReceiveWkc(ctx, s, buf, 5, "expect 5 devices")
	require.Error(t, err)
}
