package pdu

import (
	"sync"
	"sync/atomic"

	"github.com/ethercat-go/ethercat/pkg/wire"
)

// FrameState is the monotonic lifecycle of a FrameElement within one
// send cycle: None -> Created -> Sendable -> Sending -> RxBusy ->
// RxDone -> RxProcessing -> None.
type FrameState int32

const (
	StateNone FrameState = iota
	StateCreated
	StateSendable
	StateSending
	StateRxBusy
	StateRxDone
	StateRxProcessing
)

func (s FrameState) String() string {
	switch s {
	case StateNone:
		return "None"
	case StateCreated:
		return "Created"
	case StateSendable:
		return "Sendable"
	case StateSending:
		return "Sending"
	case StateRxBusy:
		return "RxBusy"
	case StateRxDone:
		return "RxDone"
	case StateRxProcessing:
		return "RxProcessing"
	default:
		return "Unknown"
	}
}

// pduSlot records where one packed PDU lives within a frame's buffer.
type pduSlot struct {
	pduIndex  uint8
	command   wire.CommandCode
	headerOff int // offset of the PDU header within buf
	dataOff   int // offset of the PDU's data payload within buf
	dataLen   int
}

// frameElement is one slot in the PduStorage pool. Its payload buffer
// is reused across send cycles; state transitions are serialised by
// CAS on state, never by holding a lock across a pack or parse
// operation. The waiter channel and pdus slice are the only fields
// needing mutual exclusion, guarded by mu, held only for the swap.
type frameElement struct {
	state      atomic.Int32
	generation atomic.Uint32

	mu     sync.Mutex
	waiter chan struct{}
	pdus   []pduSlot
	length int // bytes of buf currently written (header space included)
	refs   atomic.Int32
	rxErr  error

	buf []byte // fixed-size payload area, len == PduStorage.numData
}

func newFrameElement(maxData int) *frameElement {
	f := &frameElement{buf: make([]byte, maxData)}
	f.waiter = make(chan struct{})
	return f
}

func (f *frameElement) casState(from, to FrameState) bool {
	return f.state.CompareAndSwap(int32(from), int32(to))
}

func (f *frameElement) loadState() FrameState {
	return FrameState(f.state.Load())
}

// reset returns the slot to None, bumps its generation so stale
// handles are rejected, and prepares it for the next allocation.
func (f *frameElement) reset() {
	f.mu.Lock()
	f.pdus = f.pdus[:0]
	f.length = 0
	f.rxErr = nil
	f.waiter = make(chan struct{})
	f.mu.Unlock()
	f.refs.Store(0)
	f.generation.Add(1)
	f.state.Store(int32(StateNone))
}
