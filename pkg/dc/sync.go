package dc

// DiffSignFlag is the bit marking a negative DcSystemTimeDifference
// value in the nonstandard sign-then-magnitude encoding used by that
// register: bit 31 set means negative, with the remaining bits holding
// the magnitude. This is NOT two's complement.
const DiffSignFlag uint32 = 0x8000_0000

// DecodeSystemTimeDifference decodes the DcSystemTimeDifference
// register. 0x8000_0000 (sign bit set, zero magnitude) decodes to 0.
func DecodeSystemTimeDifference(raw uint32) int64 {
	magnitude := int64(raw &^ DiffSignFlag)
	if raw&DiffSignFlag != 0 {
		return -magnitude
	}
	return magnitude
}

// SyncMode selects which hardware sync outputs a DC-capable device
// should run.
type SyncMode int

const (
	SyncNone SyncMode = iota
	Sync0
	Sync01
)

// Config is the per-device (or per-reference) SYNC0/1 configuration.
type Config struct {
	Mode         SyncMode
	Sync0Period  uint32 // ns, must fit in u32 (~4.29s max)
	Sync1Period  uint32 // ns, only meaningful when Mode == Sync01
	StartDelay   uint32 // ns, added before rounding to the next period boundary
}

// SyncStartTime rounds systemTime+startDelay up to the next whole
// multiple of period, returning the value to write to DcSyncStartTime.
// It panics if period is zero, a programmer error.
func SyncStartTime(systemTime uint64, startDelay, period uint32) uint64 {
	if period == 0 {
		panic("dc: sync0 period must be non-zero")
	}
	target := systemTime + uint64(startDelay)
	p := uint64(period)
	rem := target % p
	if rem == 0 {
		return target
	}
	return target + (p - rem)
}

// ActivationByte builds the DcSyncActive activation byte: bit 0
// (cyclic enable) | bit 1 (SYNC0) | bit 2 (SYNC1 if Sync01).
func ActivationByte(mode SyncMode) byte {
	switch mode {
	case Sync0:
		return 0x01 | 0x02
	case Sync01:
		return 0x01 | 0x02 | 0x04
	default:
		return 0
	}
}

// CycleTiming is the result a DC-synced cyclic exchange hands back to
// the application so it can schedule the next cycle aligned to the
// SYNC0 pulse.
type CycleTiming struct {
	CycleStartOffset uint32 // dc_system_time mod sync0_period
	NextCycleWait    uint32 // (sync0_period - cycle_start_offset) + sync0_shift
}

// ComputeCycleTiming implements the tx_rx_dc scheduling formula.
func ComputeCycleTiming(dcSystemTime uint64, sync0Period, sync0Shift uint32) CycleTiming {
	offset := uint32(dcSystemTime % uint64(sync0Period))
	wait := (sync0Period - offset) + sync0Shift
	return CycleTiming{CycleStartOffset: offset, NextCycleWait: wait}
}
