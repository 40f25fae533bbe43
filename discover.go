package ethercat

import (
	"context"
	"fmt"

	"github.com/ethercat-go/ethercat/pkg/command"
	"github.com/ethercat-go/ethercat/pkg/dc"
	"github.com/ethercat-go/ethercat/pkg/subdevice"
	"github.com/ethercat-go/ethercat/pkg/wire"
)

// MaxStationAddress bounds how many devices a single ring may have:
// configured addresses run FirstStationAddress..MaxStationAddress.
const MaxStationAddress = FirstStationAddress + 0x0FFF

// autoIncrementAddress returns the ADP value that addresses the
// device at chain position i by auto-increment addressing: position 0
// is ADP 0, each subsequent device decrements by one (wrapping).
func autoIncrementAddress(i int) uint16 {
	return uint16(0 - uint32(i))
}

// Discover counts the devices on the ring with a broadcast read,
// assigns each a configured station address starting at
// FirstStationAddress, and reads back each device's Distributed
// Clocks port activity so AssignTopology can compute propagation
// delays. It does not read EEPROM identity or configure mailboxes;
// call InitGroups afterwards for that.
func (m *MainDevice) Discover(ctx context.Context) ([]*subdevice.SubDevice, error) {
	countBuf := make([]byte, 2)
	wkc, err := command.Brd(wire.RegStationAddress).Receive(ctx, m, countBuf)
	if err != nil {
		return nil, fmt.Errorf("ethercat: discovery broadcast: %w", err)
	}
	if wkc == 0 {
		return nil, ErrNoResponse
	}
	count := int(wkc)
	if uint32(FirstStationAddress)+uint32(count)-1 > uint32(MaxStationAddress) {
		return nil, ErrTooManyDevices
	}

	devices := make([]*subdevice.SubDevice, count)
	for i := 0; i < count; i++ {
		addr := FirstStationAddress + uint16(i)
		awkc, err := command.Apwr(autoIncrementAddress(i), wire.RegStationAddress).Send(ctx, m, addr)
		if err != nil {
			return nil, fmt.Errorf("ethercat: assign station address to device %d: %w", i, err)
		}
		if err := command.CheckWkc(awkc, 1, "assign station address"); err != nil {
			return nil, err
		}
		devices[i] = subdevice.New(i, addr)
	}

	if err := m.latchDcTopology(ctx, devices); err != nil {
		return nil, fmt.Errorf("ethercat: DC topology latch: %w", err)
	}
	if err := dc.AssignTopology(dcNodes(devices)); err != nil {
		return nil, fmt.Errorf("ethercat: topology inference: %w", err)
	}

	m.mu.Lock()
	m.devices = devices
	m.mu.Unlock()
	m.logger.Info("discovery complete", "devices", count)
	return devices, nil
}

func dcNodes(devices []*subdevice.SubDevice) []*dc.DCNode {
	nodes := make([]*dc.DCNode, len(devices))
	for i, d := range devices {
		nodes[i] = d.DC
	}
	return nodes
}

// latchDcTopology broadcasts a write to DcTimePort0 (latching every
// device's four port receive timestamps at once), then reads back each
// device's port link status and receive times individually.
func (m *MainDevice) latchDcTopology(ctx context.Context, devices []*subdevice.SubDevice) error {
	if _, err := command.Bwr(wire.RegDcTimePort0).Send(ctx, m, uint32(0)); err != nil {
		return err
	}

	for _, d := range devices {
		dlStatus, _, err := command.Fprd(d.ConfiguredAddress, wire.RegDlStatus).ReceiveUint16(ctx, m)
		if err != nil {
			return fmt.Errorf("device %d: read DL status: %w", d.Index, err)
		}
		active0 := dlStatus&(1<<8) != 0
		active1 := dlStatus&(1<<9) != 0
		active2 := dlStatus&(1<<10) != 0
		active3 := dlStatus&(1<<11) != 0

		times := make([]byte, 16)
		if _, err := command.Fprd(d.ConfiguredAddress, wire.RegDcTimePort0).Receive(ctx, m, times); err != nil {
			return fmt.Errorf("device %d: read port times: %w", d.Index, err)
		}
		t0 := le32(times[0:4])
		t1 := le32(times[4:8])
		t2 := le32(times[8:12])
		t3 := le32(times[12:16])

		ports := dc.NewPorts(active0, active3, active1, active2)
		ports.SetReceiveTimes(t0, t3, t1, t2)
		d.DC.Ports = ports
	}
	return nil
}

func le32(b []byte) uint32 {
	return uint32(b[0]) | uint32(b[1])<<8 | uint32(b[2])<<16 | uint32(b[3])<<24
}
