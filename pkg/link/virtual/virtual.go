// Package virtual provides an in-process Link used by tests and by
// code exercising a MainDevice without a real NIC. A Pair wires two
// Links back to back so that frames sent on one side arrive, byte for
// byte, on the other.
package virtual

import (
	"fmt"
	"sync"
)

// Link is one end of a loopback pair.
type Link struct {
	out chan []byte
	in  chan []byte

	mu     sync.Mutex
	closed bool
}

// NewPair returns two Links, each other's peer: frames sent on a are
// received on b and vice versa.
func NewPair() (a, b *Link) {
	ab := make(chan []byte, 64)
	ba := make(chan []byte, 64)
	a = &Link{out: ab, in: ba}
	b = &Link{out: ba, in: ab}
	return a, b
}

// Send implements pdu.Link.
func (l *Link) Send(frame []byte) error {
	l.mu.Lock()
	closed := l.closed
	l.mu.Unlock()
	if closed {
		return fmt.Errorf("virtual link: send on closed link")
	}
	cp := make([]byte, len(frame))
	copy(cp, frame)
	l.out <- cp
	return nil
}

// Receive implements pdu.Link, blocking until a frame arrives or the
// peer Link is closed.
func (l *Link) Receive(buf []byte) (int, error) {
	data, ok := <-l.in
	if !ok {
		return 0, fmt.Errorf("virtual link: closed")
	}
	return copy(buf, data), nil
}

// Close closes this Link's outgoing direction: a pending or later
// Receive on the peer returns an error, and further Send calls on this
// Link fail. Receive on this Link is not affected. Safe to call once
// per Link.
func (l *Link) Close() error {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.closed {
		return nil
	}
	l.closed = true
	close(l.out)
	return nil
}
