package driver

import (
	"testing"

	"github.com/NextDesignSolutions/ethminer-sqrl/types"

	"github.com/stretchr/testify/require"
)

func TestDecodeHBMStatus(t *testing.T) {
	h := decodeHBMStatus(0x3)
	require.True(t, h.LeftCalibrated)
	require.True(t, h.RightCalibrated)
	require.False(t, h.LeftCatastrophic)
	require.False(t, h.RightCatastrophic)
	require.True(t, h.healthy())

	h = decodeHBMStatus(0x00000404)
	require.True(t, h.LeftCatastrophic)
	require.True(t, h.RightCatastrophic)
	require.False(t, h.healthy())

	// Temps sit in bits [9:3] and [17:11].
	h = decodeHBMStatus(0x3 | 45<<3 | 52<<11)
	require.Equal(t, uint8(45), h.LeftTemp)
	require.Equal(t, uint8(52), h.RightTemp)
	require.True(t, h.healthy())
}

func TestTelemetryConversions(t *testing.T) {
	fake := newFakeAXI()
	sq, _ := newTestSQRL(t, testSettings(), fake)
	fake.regs[regHBMStatus] = 0x3

	// raw 40000 -> 40000*507.6/65536 - 279.43 = 30.38 C
	fake.regs[regDieTempRaw] = 40000
	// raw 18000 -> 18000*3/65536*1000 = 823 mV
	fake.regs[regVoltageRaw] = 18000

	tempC, fanPrct, powerW := sq.Telemetry()
	require.Equal(t, uint32(30), tempC)
	require.Equal(t, uint32(300), fanPrct, "fan slot carries the core clock")
	require.Equal(t, uint32(823), powerW, "power slot carries millivolts")
}

func TestTelemetryHBMCatastrophic(t *testing.T) {
	fake := newFakeAXI()
	sq, _ := newTestSQRL(t, testSettings(), fake)
	fake.regs[regHBMStatus] = 0x00000404

	sq.Telemetry()

	// Safety shutdown: DAGGEN powered off, hashcore reset, device
	// refuses work until reinit.
	require.Contains(t, fake.writesTo(regDagPower), uint32(0x0))
	require.Contains(t, fake.writesTo(regCoreCtrl), uint32(coreReset))
	require.True(t, sq.dagging.Load())
	require.True(t, sq.newWork.Load(), "miner must be kicked")
	require.Equal(t, types.HBMFault, sq.GetDriverStats().Status)
}

func TestTelemetryHBMCalibrationLoss(t *testing.T) {
	fake := newFakeAXI()
	sq, _ := newTestSQRL(t, testSettings(), fake)
	fake.regs[regHBMStatus] = 0x1 // right stack uncalibrated

	sq.Telemetry()
	require.True(t, sq.dagging.Load())
	require.Equal(t, types.HBMFault, sq.GetDriverStats().Status)
}

func TestTelemetryHBMReadFailureDefaultsCalibrated(t *testing.T) {
	fake := newFakeAXI()
	sq, _ := newTestSQRL(t, testSettings(), fake)
	fake.failRd[regHBMStatus] = true

	sq.Telemetry()
	require.False(t, sq.dagging.Load(), "transport hiccup must not trip the safety path")
}

func TestTelemetryUpdatesTemps(t *testing.T) {
	fake := newFakeAXI()
	sq, _ := newTestSQRL(t, testSettings(), fake)
	fake.regs[regHBMStatus] = 0x3 | 45<<3 | 52<<11
	fake.regs[regDieTempRaw] = 40000

	sq.Telemetry()
	require.Equal(t, [3]int{30, 45, 52}, sq.Temps())
}
