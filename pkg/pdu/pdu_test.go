package pdu

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ethercat-go/ethercat/pkg/wire"
)

// loopLink is a test double standing in for a chain of SubDevices: it
// accepts whatever the TxDriver sends, flips the self-sent marker bit
// exactly as a real first SubDevice would, and hands the (otherwise
// unmodified) bytes back to the RxDriver.
type loopLink struct {
	toDevice   chan []byte
	fromDevice chan []byte
}

func newLoopLink() *loopLink {
	l := &loopLink{
		toDevice:   make(chan []byte, 64),
		fromDevice: make(chan []byte, 64),
	}
	go l.run()
	return l
}

func (l *loopLink) run() {
	for frame := range l.toDevice {
		frame[6] |= 0x02 // Src[0]: flip bit 1 of src MAC upper byte
		l.fromDevice <- frame
	}
}

func (l *loopLink) Send(frame []byte) error {
	cp := make([]byte, len(frame))
	copy(cp, frame)
	l.toDevice <- cp
	return nil
}

func (l *loopLink) Receive(buf []byte) (int, error) {
	data := <-l.fromDevice
	return copy(buf, data), nil
}

func setup(t *testing.T, n, maxData int) (*PduLoop, *loopLink, context.CancelFunc) {
	t.Helper()
	sto, err := NewPduStorage(n, maxData)
	require.NoError(t, err)
	tx, rx, loop, err := sto.Split()
	require.NoError(t, err)

	link := newLoopLink()
	ctx, cancel := context.WithCancel(context.Background())
	go func() { _ = tx.Run(ctx, link, time.Millisecond) }()
	go func() { _ = rx.Run(ctx, link) }()
	return loop, link, cancel
}

func TestAllocPushAwaitRoundTrip(t *testing.T) {
	loop, _, cancel := setup(t, 4, 64)
	defer cancel()

	frame, err := loop.AllocFrame()
	require.NoError(t, err)

	payload := []byte{0xAA, 0xBB, 0xCC}
	h, err := loop.PushPdu(frame, wire.CmdBRD, wire.AddressBroadcast(0, wire.RegAlStatus), payload, 0)
	require.NoError(t, err)
	require.NoError(t, loop.Send(frame))

	ctx, done := context.WithTimeout(context.Background(), time.Second)
	defer done()
	rf, err := loop.Await(ctx, frame)
	require.NoError(t, err)
	defer rf.Release()

	data, _, err := rf.ReadPdu(h)
	require.NoError(t, err)
	assert.Equal(t, len(payload), h.Len())
	assert.Equal(t, payload, data)
	assert.Equal(t, h.PduIndex(), h.pduIndex)
}

func TestMultiPduFrame(t *testing.T) {
	loop, _, cancel := setup(t, 4, 128)
	defer cancel()

	frame, err := loop.AllocFrame()
	require.NoError(t, err)

	h1, err := loop.PushPdu(frame, wire.CmdFPRD, wire.AddressConfigured(0x1000, wire.RegAlStatus), make([]byte, 2), 0)
	require.NoError(t, err)
	h2, err := loop.PushPdu(frame, wire.CmdFPRD, wire.AddressConfigured(0x1001, wire.RegAlStatus), make([]byte, 2), 0)
	require.NoError(t, err)
	require.NoError(t, loop.Send(frame))

	ctx, done := context.WithTimeout(context.Background(), time.Second)
	defer done()
	rf, err := loop.Await(ctx, frame)
	require.NoError(t, err)
	defer rf.Release()

	_, _, err = rf.ReadPdu(h1)
	require.NoError(t, err)
	_, _, err = rf.ReadPdu(h2)
	require.NoError(t, err)
}

func TestPushPduTooLong(t *testing.T) {
	loop, _, cancel := setup(t, 4, wire.PduHeaderLen+wire.WorkingCounterLen+4)
	defer cancel()

	frame, err := loop.AllocFrame()
	require.NoError(t, err)
	_, err = loop.PushPdu(frame, wire.CmdBRD, 0, make([]byte, 100), 0)
	assert.ErrorIs(t, err, ErrTooLong)
}

func TestSelfSentFrameIsDropped(t *testing.T) {
	sto, err := NewPduStorage(2, 32)
	require.NoError(t, err)
	tx, rx, loop, err := sto.Split()
	require.NoError(t, err)

	// A link that echoes frames back completely unmodified, simulating
	// an empty ring (or the master hearing its own broadcast).
	toDevice := make(chan []byte, 8)
	link := &loopLinkNoFlip{ch: toDevice}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go func() { _ = tx.Run(ctx, link, time.Millisecond) }()
	go func() { _ = rx.Run(ctx, link) }()

	frame, err := loop.AllocFrame()
	require.NoError(t, err)
	_, err = loop.PushPdu(frame, wire.CmdBRD, 0, make([]byte, 1), 0)
	require.NoError(t, err)
	require.NoError(t, loop.Send(frame))

	shortCtx, done := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer done()
	_, err = loop.Await(shortCtx, frame)
	assert.ErrorIs(t, err, context.DeadlineExceeded)
}

type loopLinkNoFlip struct{ ch chan []byte }

func (l *loopLinkNoFlip) Send(frame []byte) error {
	cp := make([]byte, len(frame))
	copy(cp, frame)
	l.ch <- cp
	return nil
}
func (l *loopLinkNoFlip) Receive(buf []byte) (int, error) {
	data := <-l.ch
	return copy(buf, data), nil
}

// TestConcurrentAllocSendAwaitNeverDeadlocks checks that many
// goroutines allocating, sending and awaiting in a tight loop never
// deadlock and never see ErrSwapState while fewer than N frames are
// outstanding at once.
func TestConcurrentAllocSendAwaitNeverDeadlocks(t *testing.T) {
	const n = 8
	const workers = 4
	const itersPerWorker = 50

	loop, _, cancel := setup(t, n, 64)
	defer cancel()

	var wg sync.WaitGroup
	var swapStateSeen int32
	var mu sync.Mutex

	for w := 0; w < workers; w++ {
		wg.Add(1)
		go func(id int) {
			defer wg.Done()
			for i := 0; i < itersPerWorker; i++ {
				frame, err := loop.AllocFrame()
				if err != nil {
					mu.Lock()
					swapStateSeen++
					mu.Unlock()
					continue
				}
				h, err := loop.PushPdu(frame, wire.CmdBRD, 0, []byte{byte(id), byte(i)}, 0)
				require.NoError(t, err)
				require.NoError(t, loop.Send(frame))

				ctx, done := context.WithTimeout(context.Background(), 2*time.Second)
				rf, err := loop.Await(ctx, frame)
				done()
				require.NoError(t, err)
				_, _, err = rf.ReadPdu(h)
				require.NoError(t, err)
				rf.Release()
			}
		}(w)
	}
	wg.Wait()
	// workers (4) never exceeds n (8) in flight, so alloc should never
	// have needed to report exhaustion.
	assert.Zero(t, swapStateSeen)
}
