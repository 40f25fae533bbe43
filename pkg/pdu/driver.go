package pdu

import (
	"context"
	"os"
	"time"

	log "github.com/sirupsen/logrus"

	"github.com/ethercat-go/ethercat/pkg/wire"
)

// TxDriver is the single task that pulls every Sendable frame and
// writes it to the Link. Exactly one TxDriver should run per
// PduStorage.
type TxDriver struct {
	sto *PduStorage
	// SourceMAC is written as the Ethernet source address of every
	// frame; the RX path uses it to drop self-sent broadcasts.
	SourceMAC [6]byte
	DestMAC   [6]byte
}

// Run scans for Sendable frames and transmits them over link until ctx
// is cancelled. pollInterval bounds how long Run can sleep between
// scans when txKick is not signalled promptly.
func (d *TxDriver) Run(ctx context.Context, link Link, pollInterval time.Duration) error {
	scratch := make([]byte, wire.EthernetHeaderLen+wire.EtherCATHeaderLen+d.sto.numData)
	timer := time.NewTimer(pollInterval)
	defer timer.Stop()

	for {
		sent := d.scanOnce(link, scratch)
		if ctx.Err() != nil {
			return ctx.Err()
		}
		if sent {
			continue
		}
		if !timer.Stop() {
			<-timer.C
		}
		timer.Reset(pollInterval)
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-d.sto.txKick:
		case <-timer.C:
		}
	}
}

func (d *TxDriver) scanOnce(link Link, scratch []byte) bool {
	sentAny := false
	for _, f := range d.sto.frames {
		if !f.casState(StateSendable, StateSending) {
			continue
		}
		f.mu.Lock()
		n := f.length
		eth := wire.EthernetHeader{Dst: d.DestMAC, Src: d.SourceMAC, EtherType: wire.EtherTypeEtherCAT}
		_ = eth.Pack(scratch[:wire.EthernetHeaderLen])
		ec := wire.EtherCATHeader{Length: uint16(n), Type: wire.FrameTypeEtherCAT}
		_ = ec.Pack(scratch[wire.EthernetHeaderLen : wire.EthernetHeaderLen+wire.EtherCATHeaderLen])
		copy(scratch[wire.EthernetHeaderLen+wire.EtherCATHeaderLen:], f.buf[:n])
		f.mu.Unlock()

		total := wire.EthernetHeaderLen + wire.EtherCATHeaderLen + n
		// Await the response before it can arrive, so a reply that the
		// RX driver handles before Send returns is not dropped.
		f.state.Store(int32(StateRxBusy))
		if err := link.Send(scratch[:total]); err != nil {
			log.WithError(err).Warn("pdu: link send failed")
			if f.casState(StateRxBusy, StateRxDone) {
				f.rxErr = err
				f.mu.Lock()
				close(f.waiter)
				f.mu.Unlock()
			}
			continue
		}
		sentAny = true
	}
	return sentAny
}

// RxDriver is the single task that consumes Ethernet frames off the
// Link and routes them back to the frame slot that sent the matching
// PDU index.
type RxDriver struct {
	sto *PduStorage
}

// Run consumes frames from link until ctx is cancelled or link.Receive
// returns an error other than a read timeout (os.IsTimeout).
func (d *RxDriver) Run(ctx context.Context, link Link) error {
	buf := make([]byte, wire.EthernetHeaderLen+wire.EtherCATHeaderLen+d.sto.numData)
	for {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		n, err := link.Receive(buf)
		if err != nil {
			if os.IsTimeout(err) {
				continue
			}
			return err
		}
		d.handleFrame(buf[:n])
	}
}

func (d *RxDriver) handleFrame(raw []byte) {
	var eth wire.EthernetHeader
	if err := eth.Unpack(raw); err != nil {
		return
	}
	if eth.EtherType != wire.EtherTypeEtherCAT {
		return
	}
	payload := raw[wire.EthernetHeaderLen:]
	var ec wire.EtherCATHeader
	if err := ec.Unpack(payload); err != nil {
		return
	}
	// A frame whose source MAC still has bit 1 of the upper byte clear
	// never reached a SubDevice: either the ring is empty or this is
	// our own transmission looping back on the link. Drop it.
	if eth.Src[0]&0x02 == 0 {
		return
	}

	body := payload[wire.EtherCATHeaderLen:]
	if int(ec.Length) > len(body) {
		return
	}
	body = body[:ec.Length]

	// Route by the first PDU header's index; every PDU packed into one
	// frame shares a slot, so one lookup suffices.
	if len(body) < wire.PduHeaderLen {
		return
	}
	var hdr wire.PduHeader
	if err := hdr.Unpack(body); err != nil {
		return
	}
	slotIdx := d.sto.pduTable[hdr.Index].Load()
	if slotIdx == pduUnusedSentinel {
		return
	}
	f := d.sto.frames[slotIdx]

	f.mu.Lock()
	n := f.length
	if n > len(body) {
		n = len(body)
	}
	copy(f.buf[:n], body[:n])
	f.mu.Unlock()

	if !f.casState(StateRxBusy, StateRxDone) {
		return
	}
	f.mu.Lock()
	close(f.waiter)
	f.mu.Unlock()
}
