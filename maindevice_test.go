package ethercat

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ethercat-go/ethercat/pkg/dc"
	"github.com/ethercat-go/ethercat/pkg/wire"
)

func TestAutoIncrementAddressWraps(t *testing.T) {
	assert.EqualValues(t, 0, autoIncrementAddress(0))
	assert.EqualValues(t, 0xFFFF, autoIncrementAddress(1))
	assert.EqualValues(t, 0xFFFE, autoIncrementAddress(2))
}

func TestDiscoverNoResponseReturnsErr(t *testing.T) {
	link := newRingLink(0)
	m, cancel := newTestMainDevice(t, link)
	defer cancel()

	ctx, done := context.WithTimeout(context.Background(), time.Second)
	defer done()
	_, err := m.Discover(ctx)
	assert.ErrorIs(t, err, ErrNoResponse)
}

func TestDiscoverAssignsAddressesAndTopology(t *testing.T) {
	link := newRingLink(2)
	m, cancel := newTestMainDevice(t, link)
	defer cancel()

	ctx, done := context.WithTimeout(context.Background(), 2*time.Second)
	defer done()
	devices, err := m.Discover(ctx)
	require.NoError(t, err)
	require.Len(t, devices, 2)

	assert.EqualValues(t, FirstStationAddress, devices[0].ConfiguredAddress)
	assert.EqualValues(t, FirstStationAddress+1, devices[1].ConfiguredAddress)

	// The first simulated device has ports 0 and 1 active, so it
	// resolves to Passthrough, and it has no parent.
	assert.Equal(t, dc.TopologyPassthrough, devices[0].DC.Ports.Topology())
	assert.Equal(t, -1, devices[0].DC.ParentIndex)
}

func TestInitDCWritesOffsetDelayAndRunsStaticSync(t *testing.T) {
	link := newRingLink(1)
	m, cancel := newTestMainDevice(t, link)
	defer cancel()
	m.Config.DcStaticSyncIterations = 3

	ctx, done := context.WithTimeout(context.Background(), 2*time.Second)
	defer done()
	devices, err := m.Discover(ctx)
	require.NoError(t, err)

	require.NoError(t, m.InitDC(ctx, devices))
	assert.True(t, devices[0].HasDC)
	assert.Len(t, link.writesTo(wire.RegDcSystemTimeOffset), 1)
	assert.Len(t, link.writesTo(wire.RegDcSystemTimeTransmissionDelay), 1)
}

func TestInitDCProgramsSync0(t *testing.T) {
	link := newRingLink(1)
	m, cancel := newTestMainDevice(t, link)
	defer cancel()
	m.Config.DcStaticSyncIterations = 1

	ctx, done := context.WithTimeout(context.Background(), 2*time.Second)
	defer done()
	devices, err := m.Discover(ctx)
	require.NoError(t, err)

	devices[0].RequestDcSync(dc.Config{Mode: dc.Sync0, Sync0Period: 1_000_000})
	require.NoError(t, m.InitDC(ctx, devices))

	assert.Len(t, link.writesTo(wire.RegDcSyncStartTime), 1)
	assert.Len(t, link.writesTo(wire.RegDcSync0CycleTime), 1)
	assert.Len(t, link.writesTo(wire.RegDcSyncActive), 1)
}
