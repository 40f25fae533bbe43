package group

import (
	"context"
	"encoding/binary"
	"time"

	"github.com/ethercat-go/ethercat/pkg/command"
	"github.com/ethercat-go/ethercat/pkg/pdu"
	"github.com/ethercat-go/ethercat/pkg/subdevice"
	"github.com/ethercat-go/ethercat/pkg/wire"
)

// maxStatusChecksPerFrame bounds how many FPRD(AlStatus) PDUs are
// packed into a single frame, leaving PDU-index room for other
// concurrent callers of the same PduLoop.
const maxStatusChecksPerFrame = 128

// RequestState broadcasts AlControl{want} to every device in the group
// without waiting for it to take effect. Used for SAFE-OP -> OP with
// DC, where devices only reach OP once process data is already
// cycling, so the caller must start tx_rx_dc before calling
// WaitForState.
func (g *Group) RequestState(ctx context.Context, sender command.Sender, want wire.AlState) error {
	if len(g.Devices) == 0 {
		g.mu.Lock()
		g.state = want
		g.mu.Unlock()
		return nil
	}
	wkc, err := command.Bwr(wire.RegAlControl).Send(ctx, sender, uint16(want))
	if err != nil {
		return err
	}
	return command.CheckWkc(wkc, uint16(len(g.Devices)), "group AlControl request")
}

// WaitForState polls group status (batched FPRD(AlStatus), up to 128
// per frame) until every device reports want or the group's
// StateTransition timeout elapses. On success every device's State and
// the group's own State are updated.
func (g *Group) WaitForState(ctx context.Context, sender command.Sender, want wire.AlState) error {
	if len(g.Devices) == 0 {
		g.mu.Lock()
		g.state = want
		g.mu.Unlock()
		return nil
	}
	deadline, cancel := context.WithTimeout(ctx, g.StateTransition)
	defer cancel()
	for {
		states, err := g.checkStatuses(deadline, sender)
		if err != nil {
			return err
		}
		allMatch := true
		for i, s := range states {
			if s.HasError() {
				code, _, err := command.Fprd(g.Devices[i].ConfiguredAddress, wire.RegAlStatusCode).ReceiveUint16(ctx, sender)
				if err != nil {
					return err
				}
				return &subdevice.StateError{Requested: want, Reported: s &^ wire.AlStateError, Code: wire.AlStatusCode(code)}
			}
			if s != want {
				allMatch = false
			}
		}
		if allMatch {
			for i, s := range states {
				g.Devices[i].State = s
			}
			g.mu.Lock()
			g.state = want
			g.mu.Unlock()
			return nil
		}
		select {
		case <-deadline.Done():
			return subdevice.ErrTimeout
		case <-time.After(g.PollInterval):
		}
	}
}

// TransitionTo is RequestState followed by WaitForState, the common
// case for every transition except SAFE-OP -> OP under DC.
func (g *Group) TransitionTo(ctx context.Context, sender command.Sender, want wire.AlState) error {
	if err := g.RequestState(ctx, sender, want); err != nil {
		return err
	}
	return g.WaitForState(ctx, sender, want)
}

// checkStatuses reads AlStatus from every device, splitting across as
// many frames as needed to respect maxStatusChecksPerFrame.
func (g *Group) checkStatuses(ctx context.Context, sender command.Sender) ([]wire.AlState, error) {
	loop := sender.Loop()
	n := len(g.Devices)
	states := make([]wire.AlState, n)

	for start := 0; start < n; {
		end := start + maxStatusChecksPerFrame
		if end > n {
			end = n
		}
		frame, err := loop.AllocFrame()
		if err != nil {
			return nil, err
		}
		handles := make([]handleEntry, 0, end-start)
		for i := start; i < end; i++ {
			addr := wire.AddressConfigured(g.Devices[i].ConfiguredAddress, wire.RegAlStatus)
			h, err := loop.PushPdu(frame, wire.CmdFPRD, addr, make([]byte, 2), 0)
			if err != nil {
				loop.Abandon(frame)
				return nil, err
			}
			handles = append(handles, handleEntry{index: i, handle: h})
		}
		if err := loop.Send(frame); err != nil {
			return nil, err
		}
		rf, err := loop.Await(ctx, frame)
		if err != nil {
			return nil, err
		}
		for _, he := range handles {
			data, wkc, err := rf.ReadPdu(he.handle)
			if err != nil {
				rf.Release()
				return nil, err
			}
			if err := command.CheckWkc(wkc, 1, "group AlStatus poll"); err != nil {
				rf.Release()
				return nil, err
			}
			states[he.index] = wire.AlState(binary.LittleEndian.Uint16(data))
		}
		rf.Release()
		start = end
	}
	return states, nil
}

type handleEntry struct {
	index  int
	handle pdu.PduHandle
}
