package subdevice

import (
	"context"
	"log/slog"
	"time"

	"github.com/ethercat-go/ethercat/pkg/command"
	"github.com/ethercat-go/ethercat/pkg/eeprom"
	"github.com/ethercat-go/ethercat/pkg/mailbox"
	"github.com/ethercat-go/ethercat/pkg/wire"
)

// Sync Manager slot conventions: 0/1 are mailbox write/read, 2/3 are
// the first process-data pair (outputs/inputs). Devices with more
// than one process-data pair use higher slots, discovered from
// 0x1C00 rather than assumed.
const (
	smMailboxWrite = 0
	smMailboxRead  = 1
)

// Offset is a byte-aligned, monotonically increasing cursor over a
// group's logical process image, advanced as each SubDevice's FMMUs
// are assigned.
type Offset struct {
	addr uint32
}

// NewOffset starts a cursor at the group's configured PDI base
// address.
func NewOffset(base uint32) *Offset { return &Offset{addr: base} }

// Advance reserves n bytes and returns the address they start at.
func (o *Offset) Advance(n int) uint32 {
	start := o.addr
	o.addr += uint32(n)
	return start
}

func (o *Offset) Addr() uint32 { return o.addr }

// Configurator drives one SubDevice from INIT through the sequence
// described by the group's PRE-OP configuration pass: mailbox setup,
// the PRE-OP transition, PDO discovery, and FMMU assignment.
type Configurator struct {
	Sender          command.Sender
	PollInterval    time.Duration
	StateTransition time.Duration
	logger          *slog.Logger
}

func NewConfigurator(sender command.Sender, stateTransition time.Duration) *Configurator {
	return &Configurator{Sender: sender, PollInterval: time.Millisecond, StateTransition: stateTransition, logger: slog.Default()}
}

// WithLogger overrides the default logger, mirroring the injection
// pattern used by the group and MainDevice layers above this one.
func (c *Configurator) WithLogger(l *slog.Logger) *Configurator {
	c.logger = l
	return c
}

// IoDemand is the bit-length of process data a device needs in each
// direction, discovered by ProbeIO and consumed by AssignInputFmmu/
// AssignOutputFmmu once every device in a group has been probed —
// this two-step split is what lets pkg/group lay logical addresses out
// as one contiguous inputs block followed by one contiguous outputs
// block, rather than interleaved per device.
type IoDemand struct {
	InputBits  uint32
	OutputBits uint32
}

// ConfigureBasics runs mailbox Sync Manager setup, identity/name
// reads and the PRE-OP transition — everything that does not depend
// on the group's PDI layout.
func (c *Configurator) ConfigureBasics(ctx context.Context, dev *SubDevice, reader *eeprom.Reader) error {
	mb, err := reader.ReadMailboxDefaults(ctx)
	if err != nil {
		return err
	}
	if mb.HasMailbox() {
		if err := c.configureMailbox(ctx, dev, mb); err != nil {
			return err
		}
	}

	identity, err := reader.ReadIdentity(ctx)
	if err != nil {
		return err
	}
	dev.Identity = identity
	if name, ok, err := reader.DeviceName(ctx); err == nil && ok {
		dev.Name = name
	}

	return c.transitionTo(ctx, dev, wire.AlStatePreOp)
}

// ProbeIO reads Sync Manager usage (CoE 0x1C00 if available, the
// EEPROM SyncManager category otherwise) and sums PDO bit lengths per
// direction. Call after ConfigureBasics.
func (c *Configurator) ProbeIO(ctx context.Context, dev *SubDevice, reader *eeprom.Reader) (IoDemand, error) {
	var (
		smUsage map[uint8]eeprom.SyncManagerUsage
		err     error
	)
	if dev.Mailbox.HasCoE() {
		client := mailbox.NewClient(c.Sender, dev.ConfiguredAddress, dev.Mailbox.Write, dev.Mailbox.Read)
		smUsage, err = c.probeSyncManagerTypes(ctx, client)
	} else {
		smUsage, err = eepromSyncManagerUsage(ctx, reader)
	}
	if err != nil {
		return IoDemand{}, err
	}

	inputBits, outputBits, err := c.discoverBitLengths(ctx, dev, reader, smUsage)
	if err != nil {
		return IoDemand{}, err
	}
	return IoDemand{InputBits: inputBits, OutputBits: outputBits}, nil
}

// AssignInputFmmu maps dev's input (SubDevice-to-MainDevice) process
// data onto FMMU slot 0 and advances offset. A zero-bit demand is a
// no-op.
func (c *Configurator) AssignInputFmmu(ctx context.Context, dev *SubDevice, demand IoDemand, offset *Offset) error {
	if demand.InputBits == 0 {
		return nil
	}
	lenBytes := int((demand.InputBits + 7) / 8)
	addr := offset.Advance(lenBytes)
	dev.Inputs = IoRange{Offset: int(addr), Length: lenBytes}
	return c.writeFmmu(ctx, dev, 0, wire.Fmmu{
		LogicalStartAddress: addr,
		LengthBytes:         uint16(lenBytes),
		LogicalEndBit:       7,
		ReadEnable:          true,
		Enable:              true,
	})
}

// AssignOutputFmmu maps dev's output (MainDevice-to-SubDevice) process
// data onto the next free FMMU slot and advances offset. A zero-bit
// demand is a no-op.
func (c *Configurator) AssignOutputFmmu(ctx context.Context, dev *SubDevice, demand IoDemand, offset *Offset) error {
	if demand.OutputBits == 0 {
		return nil
	}
	slot := 0
	if demand.InputBits > 0 {
		slot = 1
	}
	lenBytes := int((demand.OutputBits + 7) / 8)
	addr := offset.Advance(lenBytes)
	dev.Outputs = IoRange{Offset: int(addr), Length: lenBytes}
	return c.writeFmmu(ctx, dev, slot, wire.Fmmu{
		LogicalStartAddress: addr,
		LengthBytes:         uint16(lenBytes),
		LogicalEndBit:       7,
		WriteEnable:         true,
		Enable:              true,
	})
}

// configureMailbox writes SM0 (MainDevice-to-SubDevice, mailbox
// write) and SM1 (SubDevice-to-MainDevice, mailbox read) from the
// EEPROM-reported defaults.
func (c *Configurator) configureMailbox(ctx context.Context, dev *SubDevice, mb eeprom.DefaultMailboxConfig) error {
	write := wire.SyncManagerConfig{StartAddr: mb.ReceiveOffset, Length: mb.ReceiveSize, Control: wire.SmControlMailbox | wire.SmControlDirectionWrite, Enable: mb.ReceiveSize > 0}
	read := wire.SyncManagerConfig{StartAddr: mb.SendOffset, Length: mb.SendSize, Control: wire.SmControlMailbox | wire.SmControlDirectionRead, Enable: mb.SendSize > 0}

	buf := make([]byte, wire.SyncManagerLen)
	if err := write.Pack(buf); err != nil {
		return err
	}
	wkc, err := command.Fpwr(dev.ConfiguredAddress, wire.SmRegister(smMailboxWrite)).Send(ctx, c.Sender, append([]byte(nil), buf...))
	if err != nil {
		return err
	}
	if err := command.CheckWkc(wkc, 1, "configure mailbox write SM"); err != nil {
		return err
	}

	if err := read.Pack(buf); err != nil {
		return err
	}
	wkc, err = command.Fpwr(dev.ConfiguredAddress, wire.SmRegister(smMailboxRead)).Send(ctx, c.Sender, buf)
	if err != nil {
		return err
	}
	if err := command.CheckWkc(wkc, 1, "configure mailbox read SM"); err != nil {
		return err
	}

	dev.Mailbox = Mailbox{
		Write:      mailbox.Mailbox{Address: mb.ReceiveOffset, Length: mb.ReceiveSize, SyncManager: smMailboxWrite},
		Read:       mailbox.Mailbox{Address: mb.SendOffset, Length: mb.SendSize, SyncManager: smMailboxRead},
		Protocols:  mb.SupportedProtocols,
		Configured: true,
	}
	return nil
}

// transitionTo writes AlControl and polls AlStatus until it reports
// the requested state or the error bit, bounded by StateTransition.
func (c *Configurator) transitionTo(ctx context.Context, dev *SubDevice, want wire.AlState) error {
	ctl := wire.AlControl{State: want}
	buf := make([]byte, wire.AlControlLen)
	if err := ctl.Pack(buf); err != nil {
		return err
	}
	wkc, err := command.Fpwr(dev.ConfiguredAddress, wire.RegAlControl).Send(ctx, c.Sender, buf)
	if err != nil {
		return err
	}
	if err := command.CheckWkc(wkc, 1, "write AlControl"); err != nil {
		return err
	}

	deadline, cancel := context.WithTimeout(ctx, c.StateTransition)
	defer cancel()
	for {
		status, wkc, err := command.Fprd(dev.ConfiguredAddress, wire.RegAlStatus).ReceiveUint16(deadline, c.Sender)
		if err != nil {
			return err
		}
		if err := command.CheckWkc(wkc, 1, "read AlStatus"); err != nil {
			return err
		}
		state := wire.AlState(status)
		if state.HasError() {
			code, _, err := command.Fprd(dev.ConfiguredAddress, wire.RegAlStatusCode).ReceiveUint16(ctx, c.Sender)
			if err != nil {
				return err
			}
			return &StateError{Requested: want, Reported: state &^ wire.AlStateError, Code: wire.AlStatusCode(code)}
		}
		if state == want {
			dev.State = state
			c.logger.Debug("subdevice state transition complete", "address", dev.ConfiguredAddress, "state", state.String())
			return nil
		}
		select {
		case <-deadline.Done():
			return ErrTimeout
		case <-time.After(c.PollInterval):
		}
	}
}

// probeSyncManagerTypes reads CoE object 0x1C00: sub-index 0 is the
// count of Sync Managers, each sub-index 1..count its usage byte.
func (c *Configurator) probeSyncManagerTypes(ctx context.Context, client *mailbox.Client) (map[uint8]eeprom.SyncManagerUsage, error) {
	count, err := client.SdoReadUint8(ctx, 0x1C00, mailbox.Sub(0))
	if err != nil {
		return nil, err
	}
	out := make(map[uint8]eeprom.SyncManagerUsage, count)
	for i := uint8(1); i <= count; i++ {
		usage, err := client.SdoReadUint8(ctx, 0x1C00, mailbox.Sub(i))
		if err != nil {
			return nil, err
		}
		out[i-1] = eeprom.SyncManagerUsage(usage)
	}
	return out, nil
}

// eepromSyncManagerUsage falls back to the SII SyncManager category
// for devices without CoE.
func eepromSyncManagerUsage(ctx context.Context, reader *eeprom.Reader) (map[uint8]eeprom.SyncManagerUsage, error) {
	sms, err := reader.SyncManagers(ctx)
	if err != nil {
		return nil, err
	}
	out := make(map[uint8]eeprom.SyncManagerUsage, len(sms))
	for i, sm := range sms {
		out[uint8(i)] = sm.Usage()
	}
	return out, nil
}

// discoverBitLengths sums, per direction, the bit length of every PDO
// mapped to a process-data Sync Manager: via CoE 0x1C10+n assignment
// objects when CoE is available, via the EEPROM TxPdo/RxPdo
// categories otherwise.
func (c *Configurator) discoverBitLengths(ctx context.Context, dev *SubDevice, reader *eeprom.Reader, smUsage map[uint8]eeprom.SyncManagerUsage) (inputBits, outputBits uint32, err error) {
	if dev.Mailbox.HasCoE() {
		client := mailbox.NewClient(c.Sender, dev.ConfiguredAddress, dev.Mailbox.Write, dev.Mailbox.Read)
		for sm, usage := range smUsage {
			if usage != eeprom.SmUsageProcessDataRead && usage != eeprom.SmUsageProcessDataWrite {
				continue
			}
			bits, err := c.coePdoBitLength(ctx, client, sm)
			if err != nil {
				return 0, 0, err
			}
			if usage == eeprom.SmUsageProcessDataRead {
				inputBits += bits
			} else {
				outputBits += bits
			}
		}
		return inputBits, outputBits, nil
	}

	txPdos, err := reader.TxPdos(ctx)
	if err != nil {
		return 0, 0, err
	}
	for _, pdo := range txPdos {
		for _, e := range pdo.Entries {
			inputBits += uint32(e.BitLen)
		}
	}
	rxPdos, err := reader.RxPdos(ctx)
	if err != nil {
		return 0, 0, err
	}
	for _, pdo := range rxPdos {
		for _, e := range pdo.Entries {
			outputBits += uint32(e.BitLen)
		}
	}
	return inputBits, outputBits, nil
}

// coePdoBitLength reads the PDO assignment list at 0x1C10+sm (count
// at sub-index 0, one mapped PDO index per further sub-index), then
// for each assigned PDO reads its own mapping entries at the PDO's
// own object (count at sub-index 0, (index:u16, sub:u8, bitlen:u8)
// packed per entry sub-index) and sums bit lengths.
func (c *Configurator) coePdoBitLength(ctx context.Context, client *mailbox.Client, sm uint8) (uint32, error) {
	assignIndex := uint16(0x1C10) + uint16(sm)
	count, err := client.SdoReadUint8(ctx, assignIndex, mailbox.Sub(0))
	if err != nil {
		return 0, err
	}
	var total uint32
	for i := uint8(1); i <= count; i++ {
		pdoIndex, err := client.SdoReadUint16(ctx, assignIndex, mailbox.Sub(i))
		if err != nil {
			return 0, err
		}
		entryCount, err := client.SdoReadUint8(ctx, pdoIndex, mailbox.Sub(0))
		if err != nil {
			return 0, err
		}
		for j := uint8(1); j <= entryCount; j++ {
			packed, err := client.SdoReadUint32(ctx, pdoIndex, mailbox.Sub(j))
			if err != nil {
				return 0, err
			}
			total += uint32(packed & 0xFF)
		}
	}
	return total, nil
}

func (c *Configurator) writeFmmu(ctx context.Context, dev *SubDevice, slot int, f wire.Fmmu) error {
	buf := make([]byte, wire.FmmuLen)
	if err := f.Pack(buf); err != nil {
		return err
	}
	wkc, err := command.Fpwr(dev.ConfiguredAddress, wire.FmmuRegister(slot)).Send(ctx, c.Sender, buf)
	if err != nil {
		return err
	}
	return command.CheckWkc(wkc, 1, "write FMMU")
}
