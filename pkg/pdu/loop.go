package pdu

import (
	"context"

	log "github.com/sirupsen/logrus"

	"github.com/ethercat-go/ethercat/pkg/wire"
)

// Link is the raw Ethernet I/O boundary the PDU loop is driven over.
// The integrator supplies an implementation; the core never spawns its
// own timer or owns the NIC. Send transmits exactly one Ethernet
// frame. Receive blocks until one Ethernet frame is available and
// copies it into buf, returning its length.
type Link interface {
	Send(frame []byte) error
	Receive(buf []byte) (int, error)
}

// PduLoop is the handle application code and the Command layer use to
// allocate frames, push PDUs and await their completion. It is safe
// for concurrent use: allocation, packing and awaiting may all happen
// on different goroutines.
type PduLoop struct {
	sto *PduStorage
}

// MaxPduData returns the per-frame payload capacity in bytes, the
// budget callers that pack multiple PDUs into one frame (e.g. a
// group's cyclic exchange) must track themselves.
func (l *PduLoop) MaxPduData() int { return l.sto.MaxPduData() }

// AllocFrame scans at most 2N slots for one in state None and claims
// it, transitioning it to Created. Returns ErrSwapState if none are
// free; callers retry with their own backoff.
func (l *PduLoop) AllocFrame() (*FrameRef, error) {
	n := len(l.sto.frames)
	start := int(l.sto.frameCounter.Add(1)) % n
	for i := 0; i < 2*n; i++ {
		idx := (start + i) % n
		f := l.sto.frames[idx]
		if f.casState(StateNone, StateCreated) {
			return &FrameRef{
				loop:       l,
				slot:       idx,
				generation: f.generation.Load(),
			}, nil
		}
	}
	return nil, ErrSwapState
}

// FrameRef is a claimed, not-yet-sent frame slot. Push one or more
// PDUs into it, then call Send, then Await the round trip.
type FrameRef struct {
	loop       *PduLoop
	slot       int
	generation uint32
}

func (r *FrameRef) elem() (*frameElement, error) {
	f := r.loop.sto.frames[r.slot]
	if f.generation.Load() != r.generation {
		return nil, ErrStale
	}
	return f, nil
}

// PduHandle is returned by PushPdu: it carries the PDU's offset within
// the frame payload, its PDU index, and its allocated size.
type PduHandle struct {
	slot      int
	gen       uint32
	pduIndex  uint8
	command   wire.CommandCode
	dataOff   int
	dataLen   int
}

func (h PduHandle) PduIndex() uint8 { return h.pduIndex }
func (h PduHandle) Len() int        { return h.dataLen }

// PushPdu packs one PDU (header + payload + trailing working counter
// placeholder) into the frame. data is copied in as the outgoing
// payload (for reads this is typically zero-filled). Returns
// ErrTooLong if the PDU would not fit in the frame's remaining
// capacity; the caller must finalise this frame and allocate a new
// one to continue.
func (l *PduLoop) PushPdu(r *FrameRef, cmd wire.CommandCode, address uint32, data []byte, irq uint16) (PduHandle, error) {
	f, err := r.elem()
	if err != nil {
		return PduHandle{}, err
	}
	if f.loadState() != StateCreated && f.loadState() != StateSendable {
		return PduHandle{}, ErrNotSendable
	}

	need := wire.PduHeaderLen + len(data) + wire.WorkingCounterLen
	f.mu.Lock()
	defer f.mu.Unlock()

	if f.length+need > len(f.buf) {
		return PduHandle{}, ErrTooLong
	}

	idx := uint8(l.sto.pduCounter.Add(1))
	if !l.sto.pduTable[idx].CompareAndSwap(pduUnusedSentinel, int32(r.slot)) {
		return PduHandle{}, ErrPduIndexInUse
	}

	// Mark the previous PDU in this frame (if any) as "more follows".
	if n := len(f.pdus); n > 0 {
		prev := &f.pdus[n-1]
		var flags wire.PduFlags
		_ = flags.Unpack(f.buf[prev.headerOff+6 : prev.headerOff+8])
		flags.More = true
		_ = flags.Pack(f.buf[prev.headerOff+6 : prev.headerOff+8])
	}

	headerOff := f.length
	hdr := wire.PduHeader{
		Command: cmd,
		Index:   idx,
		Address: address,
		Flags:   wire.PduFlags{Length: uint16(len(data)), More: false},
		IRQ:     irq,
	}
	if err := hdr.Pack(f.buf[headerOff : headerOff+wire.PduHeaderLen]); err != nil {
		l.sto.pduTable[idx].Store(pduUnusedSentinel)
		return PduHandle{}, err
	}
	dataOff := headerOff + wire.PduHeaderLen
	copy(f.buf[dataOff:dataOff+len(data)], data)
	_ = wire.PackWorkingCounter(f.buf[dataOff+len(data):dataOff+len(data)+wire.WorkingCounterLen], 0)

	f.pdus = append(f.pdus, pduSlot{
		pduIndex:  idx,
		command:   cmd,
		headerOff: headerOff,
		dataOff:   dataOff,
		dataLen:   len(data),
	})
	f.length = dataOff + len(data) + wire.WorkingCounterLen

	return PduHandle{
		slot:     r.slot,
		gen:      r.generation,
		pduIndex: idx,
		command:  cmd,
		dataOff:  dataOff,
		dataLen:  len(data),
	}, nil
}

// Send marks the frame ready for the TX driver to transmit, moving it
// from Created to Sendable.
func (l *PduLoop) Send(r *FrameRef) error {
	f, err := r.elem()
	if err != nil {
		return err
	}
	f.mu.Lock()
	empty := len(f.pdus) == 0
	f.mu.Unlock()
	if empty {
		return ErrNotSendable
	}
	if !f.casState(StateCreated, StateSendable) {
		return ErrNotSendable
	}
	l.sto.wakeTx()
	return nil
}

// ReceivedFrame is the result of Await: the whole frame's round trip
// completed and individual PDU payloads can be read out of it. The
// frame slot is not returned to the pool until Release is called —
// mirroring the Rust original's borrow-drops-the-claim discipline
// (original_source src/pdu_loop/frame_element/received_frame.rs).
type ReceivedFrame struct {
	loop *PduLoop
	slot int
	gen  uint32
}

// Await blocks until the frame completes (RxDone) or ctx is done. On
// timeout the slot remains reserved; call Abandon to force it back to
// None once the caller gives up on the retry.
func (l *PduLoop) Await(ctx context.Context, r *FrameRef) (*ReceivedFrame, error) {
	f, err := r.elem()
	if err != nil {
		return nil, err
	}
	f.mu.Lock()
	waiter := f.waiter
	f.mu.Unlock()

	select {
	case <-waiter:
	case <-ctx.Done():
		return nil, ctx.Err()
	}

	if f.generation.Load() != r.generation {
		return nil, ErrStale
	}
	if f.loadState() != StateRxDone {
		return nil, ErrDecode
	}
	if !f.casState(StateRxDone, StateRxProcessing) {
		return nil, ErrStale
	}
	f.refs.Store(1)
	if f.rxErr != nil {
		err := f.rxErr
		l.release(r.slot, r.generation)
		return nil, err
	}
	return &ReceivedFrame{loop: l, slot: r.slot, gen: r.generation}, nil
}

// ReadPdu extracts the sub-view over the payload for a previously
// pushed PDU, validating the index still matches, and returns the
// payload bytes alongside the working counter.
func (rf *ReceivedFrame) ReadPdu(h PduHandle) ([]byte, uint16, error) {
	f := rf.loop.sto.frames[rf.slot]
	if f.generation.Load() != rf.gen || h.gen != rf.gen {
		return nil, 0, ErrStale
	}
	var found *pduSlot
	f.mu.Lock()
	for i := range f.pdus {
		if f.pdus[i].pduIndex == h.pduIndex {
			found = &f.pdus[i]
			break
		}
	}
	f.mu.Unlock()
	if found == nil {
		return nil, 0, ErrInvalidIndex
	}
	if found.command != h.command || wire.CommandCode(f.buf[found.headerOff]) != found.command {
		return nil, 0, ErrCommandMismatch
	}
	data := f.buf[found.dataOff : found.dataOff+found.dataLen]
	wkc, err := wire.UnpackWorkingCounter(f.buf[found.dataOff+found.dataLen : found.dataOff+found.dataLen+wire.WorkingCounterLen])
	if err != nil {
		return nil, 0, err
	}
	return data, wkc, nil
}

// Release returns the frame slot to the pool. Must be called exactly
// once per ReceivedFrame.
func (rf *ReceivedFrame) Release() {
	rf.loop.release(rf.slot, rf.gen)
}

func (l *PduLoop) release(slot int, gen uint32) {
	f := l.sto.frames[slot]
	if f.generation.Load() != gen {
		return
	}
	f.mu.Lock()
	for _, p := range f.pdus {
		l.sto.pduTable[p.pduIndex].CompareAndSwap(int32(slot), pduUnusedSentinel)
	}
	f.mu.Unlock()
	f.reset()
}

// Abandon forces a frame slot back to None regardless of its current
// state. Callers invoke this from their own timeout handler after
// Await's context deadline expires and no retry will be attempted.
func (l *PduLoop) Abandon(r *FrameRef) {
	f := l.sto.frames[r.slot]
	if f.generation.Load() != r.generation {
		return
	}
	f.mu.Lock()
	for _, p := range f.pdus {
		l.sto.pduTable[p.pduIndex].CompareAndSwap(int32(r.slot), pduUnusedSentinel)
	}
	f.mu.Unlock()
	log.WithField("slot", r.slot).Debug("pdu: abandoning frame after caller timeout")
	f.reset()
}
