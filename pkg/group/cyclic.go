package group

import (
	"context"
	"encoding/binary"

	"github.com/ethercat-go/ethercat/pkg/command"
	"github.com/ethercat-go/ethercat/pkg/dc"
	"github.com/ethercat-go/ethercat/pkg/pdu"
	"github.com/ethercat-go/ethercat/pkg/wire"
)

// ExchangeResult is what one tx_rx/tx_rx_dc cycle hands back to the
// application.
type ExchangeResult struct {
	WorkingCounter uint16
	States         []wire.AlState

	// DcSystemTime and Timing are populated only by TxRxDc.
	DcSystemTime uint64
	Timing       dc.CycleTiming
}

type lrwPiece struct {
	offset int
	length int
	handle pdu.PduHandle
}

// TxRx exchanges the group's process image with no Distributed Clocks
// PDU, packing one or more LRW PDUs covering the whole PDI plus as
// many AlStatus checks as fit, splitting across frames as needed.
func (g *Group) TxRx(ctx context.Context, sender command.Sender) (ExchangeResult, error) {
	return g.exchange(ctx, sender, false)
}

// TxRxDc is TxRx with exactly one FRMW(dc_reference, DcSystemTime) PDU
// prefixed to the first frame, returning the current DC system time
// and the timing the caller should use to schedule its next cycle.
func (g *Group) TxRxDc(ctx context.Context, sender command.Sender) (ExchangeResult, error) {
	if g.dc == nil {
		return ExchangeResult{}, ErrNoDC
	}
	return g.exchange(ctx, sender, true)
}

func (g *Group) exchange(ctx context.Context, sender command.Sender, withDC bool) (ExchangeResult, error) {
	g.mu.Lock()
	defer g.mu.Unlock()

	loop := sender.Loop()
	maxData := loop.MaxPduData()
	pduOverhead := wire.PduHeaderLen + wire.WorkingCounterLen

	result := ExchangeResult{States: make([]wire.AlState, len(g.Devices))}

	pdiOff := 0
	pdiTotal := len(g.pdi)
	statusIdx := 0
	frameIndex := 0
	var dcRawTime uint64
	dcSeen := false

	for {
		needsFrame := (frameIndex == 0 && withDC) || pdiOff < pdiTotal || statusIdx < len(g.Devices)
		if !needsFrame {
			break
		}

		frame, err := loop.AllocFrame()
		if err != nil {
			return ExchangeResult{}, err
		}
		used := 0
		var dcHandle *pdu.PduHandle

		if frameIndex == 0 && withDC {
			h, err := loop.PushPdu(frame, wire.CmdFRMW, wire.AddressConfigured(g.dc.Address, wire.RegDcSystemTime), make([]byte, 8), 0)
			if err != nil {
				loop.Abandon(frame)
				return ExchangeResult{}, err
			}
			dcHandle = &h
			used += pduOverhead + 8
		}

		var lrwPieces []lrwPiece
		for pdiOff < pdiTotal {
			remain := maxData - used
			if remain <= pduOverhead {
				break
			}
			chunkLen := remain - pduOverhead
			if chunkLen > pdiTotal-pdiOff {
				chunkLen = pdiTotal - pdiOff
			}
			addr := wire.AddressLogical(g.PdiBase + uint32(pdiOff))
			h, err := loop.PushPdu(frame, wire.CmdLRW, addr, g.pdi[pdiOff:pdiOff+chunkLen], 0)
			if err != nil {
				loop.Abandon(frame)
				return ExchangeResult{}, err
			}
			lrwPieces = append(lrwPieces, lrwPiece{offset: pdiOff, length: chunkLen, handle: h})
			used += pduOverhead + chunkLen
			pdiOff += chunkLen
		}

		var statusHandles []handleEntry
		for statusIdx < len(g.Devices) && len(statusHandles) < maxStatusChecksPerFrame {
			need := pduOverhead + 2
			if maxData-used < need {
				break
			}
			addr := wire.AddressConfigured(g.Devices[statusIdx].ConfiguredAddress, wire.RegAlStatus)
			h, err := loop.PushPdu(frame, wire.CmdFPRD, addr, make([]byte, 2), 0)
			if err != nil {
				loop.Abandon(frame)
				return ExchangeResult{}, err
			}
			statusHandles = append(statusHandles, handleEntry{index: statusIdx, handle: h})
			used += need
			statusIdx++
		}

		if used == 0 {
			loop.Abandon(frame)
			break
		}

		if err := loop.Send(frame); err != nil {
			return ExchangeResult{}, err
		}
		rf, err := loop.Await(ctx, frame)
		if err != nil {
			return ExchangeResult{}, err
		}

		if dcHandle != nil {
			data, _, err := rf.ReadPdu(*dcHandle)
			if err != nil {
				rf.Release()
				return ExchangeResult{}, err
			}
			dcRawTime = binary.LittleEndian.Uint64(data)
			dcSeen = true
		}

		for _, p := range lrwPieces {
			data, wkc, err := rf.ReadPdu(p.handle)
			if err != nil {
				rf.Release()
				return ExchangeResult{}, err
			}
			result.WorkingCounter += wkc
			copyEnd := g.readLen - p.offset
			if copyEnd > p.length {
				copyEnd = p.length
			}
			if copyEnd > 0 {
				copy(g.pdi[p.offset:p.offset+copyEnd], data[:copyEnd])
			}
		}

		for _, he := range statusHandles {
			data, _, err := rf.ReadPdu(he.handle)
			if err != nil {
				rf.Release()
				return ExchangeResult{}, err
			}
			result.States[he.index] = wire.AlState(binary.LittleEndian.Uint16(data))
		}

		rf.Release()
		frameIndex++
	}

	if withDC && dcSeen {
		result.DcSystemTime = dcRawTime
		result.Timing = dc.ComputeCycleTiming(dcRawTime, g.dc.Sync0Period, g.dc.Sync0Shift)
	}
	return result, nil
}
