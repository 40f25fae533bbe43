package subdevice

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ethercat-go/ethercat/pkg/dc"
	"github.com/ethercat-go/ethercat/pkg/eeprom"
	"github.com/ethercat-go/ethercat/pkg/wire"
)

var dcConfigFixture = dc.Config{Mode: dc.Sync0, Sync0Period: 1_000_000}

func TestOffsetAdvance(t *testing.T) {
	o := NewOffset(0x1000)
	a := o.Advance(4)
	b := o.Advance(2)
	assert.Equal(t, uint32(0x1000), a)
	assert.Equal(t, uint32(0x1004), b)
	assert.Equal(t, uint32(0x1006), o.Addr())
}

func TestMailboxHasCoE(t *testing.T) {
	m := Mailbox{Configured: true, Protocols: eeprom.MailboxCoE | eeprom.MailboxFoE}
	assert.True(t, m.HasCoE())

	m2 := Mailbox{Configured: true, Protocols: eeprom.MailboxFoE}
	assert.False(t, m2.HasCoE())

	m3 := Mailbox{Configured: false, Protocols: eeprom.MailboxCoE}
	assert.False(t, m3.HasCoE())
}

func TestDcSyncRequestRoundtrip(t *testing.T) {
	dev := New(2, 0x1002)
	_, ok := dev.DcSyncConfig()
	assert.False(t, ok)

	dev.RequestDcSync(dcConfigFixture)
	cfg, ok := dev.DcSyncConfig()
	assert.True(t, ok)
	assert.Equal(t, dcConfigFixture, cfg)
}

func TestAssignInputThenOutputFmmuAcrossDevices(t *testing.T) {
	// Two devices, each with input and output process data: verify the
	// inputs-then-outputs-across-all-devices PDI layout rule by driving
	// AssignInputFmmu for both devices on one cursor before
	// AssignOutputFmmu runs on a second cursor for either of them.
	sender, cancel := newFakeSender(t)
	defer cancel()
	c := &Configurator{Sender: sender, PollInterval: 0, StateTransition: 0}
	devA := New(0, 0x1000)
	devB := New(1, 0x1001)

	inOffset := NewOffset(0)
	outOffset := NewOffset(0)

	ctx, done := context.WithTimeout(context.Background(), time.Second)
	defer done()

	require.NoError(t, c.AssignInputFmmu(ctx, devA, IoDemand{InputBits: 16}, inOffset))
	require.NoError(t, c.AssignInputFmmu(ctx, devB, IoDemand{InputBits: 8}, inOffset))
	require.NoError(t, c.AssignOutputFmmu(ctx, devA, IoDemand{OutputBits: 8, InputBits: 16}, outOffset))
	require.NoError(t, c.AssignOutputFmmu(ctx, devB, IoDemand{OutputBits: 8, InputBits: 8}, outOffset))

	assert.Equal(t, IoRange{Offset: 0, Length: 2}, devA.Inputs)
	assert.Equal(t, IoRange{Offset: 2, Length: 1}, devB.Inputs)
	assert.Equal(t, IoRange{Offset: 0, Length: 1}, devA.Outputs)
	assert.Equal(t, IoRange{Offset: 1, Length: 1}, devB.Outputs)
}

func TestAssignFmmuSkipsZeroDemand(t *testing.T) {
	sender, cancel := newFakeSender(t)
	defer cancel()
	c := &Configurator{Sender: sender, PollInterval: 0, StateTransition: 0}
	dev := New(0, 0x1000)
	offset := NewOffset(4)

	require.NoError(t, c.AssignInputFmmu(context.Background(), dev, IoDemand{InputBits: 0}, offset))
	assert.Equal(t, IoRange{}, dev.Inputs)
	assert.Equal(t, uint32(4), offset.Addr())
}

func TestStateErrorMessage(t *testing.T) {
	err := &StateError{Requested: wire.AlStatePreOp, Reported: wire.AlStateInit, Code: wire.AlStatusInvalidMbxConfig}
	assert.Contains(t, err.Error(), "PRE-OP")
	assert.Contains(t, err.Error(), "INIT")
}
