package dc

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestDecodeSystemTimeDifference(t *testing.T) {
	assert.Equal(t, int64(-100), DecodeSystemTimeDifference(0x8000_0064))
	assert.Equal(t, int64(100), DecodeSystemTimeDifference(0x0000_0064))
	assert.Equal(t, int64(0), DecodeSystemTimeDifference(0x8000_0000))
	assert.Equal(t, int64(0), DecodeSystemTimeDifference(0))
}

func TestSyncStartTimeRoundsUpToNextPeriod(t *testing.T) {
	assert.Equal(t, uint64(1_000_000), SyncStartTime(500_000, 0, 1_000_000))
	assert.Equal(t, uint64(2_000_000), SyncStartTime(1_000_000, 1, 1_000_000))
	assert.Equal(t, uint64(1_000_000), SyncStartTime(0, 1_000_000, 1_000_000))
}

func TestSyncStartTimePanicsOnZeroPeriod(t *testing.T) {
	assert.Panics(t, func() { SyncStartTime(0, 0, 0) })
}

func TestActivationByte(t *testing.T) {
	assert.Equal(t, byte(0), ActivationByte(SyncNone))
	assert.Equal(t, byte(0x03), ActivationByte(Sync0))
	assert.Equal(t, byte(0x07), ActivationByte(Sync01))
}

func TestComputeCycleTiming(t *testing.T) {
	timing := ComputeCycleTiming(1_500_000, 1_000_000, 50_000)
	assert.Equal(t, uint32(500_000), timing.CycleStartOffset)
	assert.Equal(t, uint32(550_000), timing.NextCycleWait)
}
