// Package group implements the SubDevice group state machine and
// cyclic process-data exchange: PDI offset assignment across a set of
// configured SubDevices, INIT/PRE-OP/SAFE-OP/OP transitions with
// batched status polling, and the tx_rx/tx_rx_dc exchange that packs
// the group's process image plus optional Distributed Clocks sync
// into the minimum number of frames.
package group

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/ethercat-go/ethercat/pkg/eeprom"
	"github.com/ethercat-go/ethercat/pkg/subdevice"
	"github.com/ethercat-go/ethercat/pkg/wire"
)

// DefaultMaxPdi is the default capacity of a group's process image
// buffer when the caller does not override it.
const DefaultMaxPdi = 4096

// DcReference configures a group for DC-synchronised cyclic exchange:
// the station address FRMW targets each cycle, and the SYNC0 timing
// the application schedules its next iteration against.
type DcReference struct {
	Address     uint16
	Sync0Period uint32
	Sync0Shift  uint32
}

// Group is a typestated collection of SubDevices sharing one
// contiguous process image. The lifecycle (state field) moves
// monotonically INIT -> PRE-OP -> SAFE-OP -> OP or back; callers are
// expected to check State() before calling a phase-specific method,
// since this implementation tracks the typestate as a runtime enum
// rather than at the type level.
type Group struct {
	ID      int
	PdiBase uint32
	MaxPdi  int

	Devices []*subdevice.SubDevice

	PollInterval    time.Duration
	StateTransition time.Duration

	mu       sync.RWMutex
	pdi      []byte
	readLen  int
	totalLen int
	state    wire.AlState
	dc       *DcReference
	logger   *slog.Logger
}

// NewGroup builds an empty group anchored at pdiBase in the shared
// logical address space.
func NewGroup(id int, pdiBase uint32) *Group {
	return &Group{
		ID:              id,
		PdiBase:         pdiBase,
		MaxPdi:          DefaultMaxPdi,
		PollInterval:    time.Millisecond,
		StateTransition: 2 * time.Second,
		logger:          slog.Default(),
	}
}

// WithLogger overrides the default logger.
func (g *Group) WithLogger(l *slog.Logger) *Group {
	g.logger = l
	return g
}

// WithDC marks the group as DC-synchronised, required for TxRxDc.
func (g *Group) WithDC(ref DcReference) *Group {
	g.dc = &ref
	return g
}

func (g *Group) HasDC() bool { return g.dc != nil }

// State returns the group's current typestate.
func (g *Group) State() wire.AlState {
	g.mu.RLock()
	defer g.mu.RUnlock()
	return g.state
}

// PdiLen returns the total process image length and the length of its
// leading inputs region.
func (g *Group) PdiLen() (total, inputs int) {
	g.mu.RLock()
	defer g.mu.RUnlock()
	return g.totalLen, g.readLen
}

// Reader returns a copy of dev's input sub-range, taking the group's
// read lock. Safe to call concurrently with Writer on other devices.
func (g *Group) Reader(dev *subdevice.SubDevice) []byte {
	g.mu.RLock()
	defer g.mu.RUnlock()
	out := make([]byte, dev.Inputs.Length)
	copy(out, g.pdi[dev.Inputs.Offset-int(g.PdiBase):])
	return out
}

// Writer copies data into dev's output sub-range, taking the group's
// write lock. len(data) must equal dev.Outputs.Length.
func (g *Group) Writer(dev *subdevice.SubDevice, data []byte) {
	g.mu.Lock()
	defer g.mu.Unlock()
	copy(g.pdi[dev.Outputs.Offset-int(g.PdiBase):], data)
}

// Init drives every device in devices through ConfigureBasics and
// ProbeIO, then assigns FMMUs so that every device's input region
// precedes, and is contiguous with, every other device's input
// region, followed by the same for outputs. readers supplies the
// EEPROM reader for each device (by its index in devices).
func (g *Group) Init(ctx context.Context, devices []*subdevice.SubDevice, readers []*eeprom.Reader, cfg *subdevice.Configurator) error {
	g.Devices = devices
	demand := make([]subdevice.IoDemand, len(devices))

	for i, dev := range devices {
		if err := cfg.ConfigureBasics(ctx, dev, readers[i]); err != nil {
			return err
		}
	}
	for i, dev := range devices {
		d, err := cfg.ProbeIO(ctx, dev, readers[i])
		if err != nil {
			return err
		}
		demand[i] = d
	}

	inOffset := subdevice.NewOffset(g.PdiBase)
	for i, dev := range devices {
		if err := cfg.AssignInputFmmu(ctx, dev, demand[i], inOffset); err != nil {
			return err
		}
	}
	g.readLen = int(inOffset.Addr() - g.PdiBase)

	outOffset := subdevice.NewOffset(inOffset.Addr())
	for i, dev := range devices {
		if err := cfg.AssignOutputFmmu(ctx, dev, demand[i], outOffset); err != nil {
			return err
		}
	}
	g.totalLen = int(outOffset.Addr() - g.PdiBase)
	if g.totalLen > g.MaxPdi {
		return ErrCapacity
	}

	g.mu.Lock()
	g.pdi = make([]byte, g.totalLen)
	g.state = wire.AlStatePreOp
	g.mu.Unlock()

	g.logger.Info("group configured", "id", g.ID, "devices", len(devices), "pdi_len", g.totalLen, "inputs_len", g.readLen)
	return nil
}
