package ethercat

import (
	"context"
	"fmt"
	"time"

	"github.com/ethercat-go/ethercat/pkg/command"
	"github.com/ethercat-go/ethercat/pkg/dc"
	"github.com/ethercat-go/ethercat/pkg/subdevice"
	"github.com/ethercat-go/ethercat/pkg/wire"
)

// DcReferenceDevice picks the device whose configured address serves
// as the FRMW reference clock for drift compensation: by convention,
// the first device discovered.
func DcReferenceDevice(devices []*subdevice.SubDevice) (*subdevice.SubDevice, bool) {
	if len(devices) == 0 {
		return nil, false
	}
	return devices[0], true
}

// InitDC writes each device's system-time offset and propagation
// delay, runs static drift compensation by sending
// Config.DcStaticSyncIterations FRMW passes against the reference
// device, then programs SYNC0/SYNC1 on every device that requested a
// sync mode via SubDevice.RequestDcSync.
func (m *MainDevice) InitDC(ctx context.Context, devices []*subdevice.SubDevice) error {
	reference, ok := DcReferenceDevice(devices)
	if !ok {
		return nil
	}

	for _, d := range devices {
		recvBuf := make([]byte, 8)
		if _, err := command.Fprd(d.ConfiguredAddress, wire.RegDcReceiveTime).Receive(ctx, m, recvBuf); err != nil {
			return fmt.Errorf("ethercat: device %d: read DC receive time: %w", d.Index, err)
		}
		recvTime := le64(recvBuf)
		offset := -int64(recvTime) + time.Now().UnixNano()

		if wkc, err := command.Fpwr(d.ConfiguredAddress, wire.RegDcSystemTimeOffset).Send(ctx, m, uint64(offset)); err != nil {
			return err
		} else if err := command.CheckWkc(wkc, 1, "write DcSystemTimeOffset"); err != nil {
			return err
		}
		if wkc, err := command.Fpwr(d.ConfiguredAddress, wire.RegDcSystemTimeTransmissionDelay).Send(ctx, m, d.DC.PropagationDelay); err != nil {
			return err
		} else if err := command.CheckWkc(wkc, 1, "write DcSystemTimeTransmissionDelay"); err != nil {
			return err
		}
		d.HasDC = true
	}

	for i := 0; i < m.Config.DcStaticSyncIterations; i++ {
		if _, err := command.Frmw(reference.ConfiguredAddress, wire.RegDcSystemTime).Send(ctx, m, uint64(0)); err != nil {
			return fmt.Errorf("ethercat: static drift compensation pass %d: %w", i, err)
		}
	}

	for _, d := range devices {
		cfg, wants := d.DcSyncConfig()
		if !wants {
			continue
		}
		if err := m.programSync(ctx, d, reference, cfg); err != nil {
			return fmt.Errorf("ethercat: device %d: program SYNC0/1: %w", d.Index, err)
		}
	}

	m.logger.Info("DC initialisation complete", "reference", reference.ConfiguredAddress, "devices", len(devices))
	return nil
}

// programSync writes DcSyncStartTime, DcSync0/1CycleTime and
// DcSyncActive for one device, reading the current system time from
// the reference device to compute the rounded-up start time.
func (m *MainDevice) programSync(ctx context.Context, d, reference *subdevice.SubDevice, cfg dc.Config) error {
	sysTimeBuf := make([]byte, 8)
	if _, err := command.Fprd(reference.ConfiguredAddress, wire.RegDcSystemTime).Receive(ctx, m, sysTimeBuf); err != nil {
		return err
	}
	systemTime := le64(sysTimeBuf)

	startTime := dc.SyncStartTime(systemTime, cfg.StartDelay, cfg.Sync0Period)
	if wkc, err := command.Fpwr(d.ConfiguredAddress, wire.RegDcSyncStartTime).Send(ctx, m, startTime); err != nil {
		return err
	} else if err := command.CheckWkc(wkc, 1, "write DcSyncStartTime"); err != nil {
		return err
	}

	if wkc, err := command.Fpwr(d.ConfiguredAddress, wire.RegDcSync0CycleTime).Send(ctx, m, cfg.Sync0Period); err != nil {
		return err
	} else if err := command.CheckWkc(wkc, 1, "write DcSync0CycleTime"); err != nil {
		return err
	}
	if cfg.Mode == dc.Sync01 {
		if wkc, err := command.Fpwr(d.ConfiguredAddress, wire.RegDcSync1CycleTime).Send(ctx, m, cfg.Sync1Period); err != nil {
			return err
		} else if err := command.CheckWkc(wkc, 1, "write DcSync1CycleTime"); err != nil {
			return err
		}
	}

	activation := dc.ActivationByte(cfg.Mode)
	wkc, err := command.Fpwr(d.ConfiguredAddress, wire.RegDcSyncActive).Send(ctx, m, activation)
	if err != nil {
		return err
	}
	return command.CheckWkc(wkc, 1, "write DcSyncActive")
}

func le64(b []byte) uint64 {
	var v uint64
	for i := 7; i >= 0; i-- {
		v = v<<8 | uint64(b[i])
	}
	return v
}
