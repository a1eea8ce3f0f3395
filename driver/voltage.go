package driver

import (
	"math"
	"time"

	"go.uber.org/zap"
)

// Voltage control for the two VRM flavors found on SQRL boards: the
// FK wiper-style regulator and the JC PMBus PMIC behind an I2C
// bridge.

const (
	upperVoltLimit = 920 // mV
	lowerVoltLimit = 500 // mV
)

// initVoltageTbl fills the VID-to-volts table. Derived from the FK
// board's feedback divider:
//
//	V(VID) = 0.6 + 2.661 / (20 - 2048/(VID + 153.6))
//
// The table is monotonically decreasing in VID.
func (sq *SQRL) initVoltageTbl() {
	for vid := 0; vid <= 0xFF; vid++ {
		sq.voltageTbl[vid] = 0.6 + 2.661/(20-2048/(float64(vid)+153.6))
	}
}

// findClosestVIDToVoltage returns the VID whose table entry is the
// closest representable voltage to the request. Requests outside the
// table's range clamp to its ends.
func (sq *SQRL) findClosestVIDToVoltage(reqVoltage float64) uint8 {
	if reqVoltage <= sq.voltageTbl[0xFF] {
		return 0xFF
	}
	if reqVoltage >= sq.voltageTbl[0x00] {
		return 0x00
	}
	idx := 0x80
	for half := 0x40; half > 0; half >>= 1 {
		switch {
		case reqVoltage < sq.voltageTbl[idx]:
			idx += half
		case reqVoltage > sq.voltageTbl[idx]:
			idx -= half
		default:
			return uint8(idx)
		}
	}
	// The descent ends within one step of the request; settle on the
	// closest neighbour, preferring the lower VID on a tie.
	best := idx
	for _, c := range []int{idx + 1, idx - 1} {
		if c < 0 || c > 0xFF {
			continue
		}
		d := math.Abs(sq.voltageTbl[c] - reqVoltage)
		bd := math.Abs(sq.voltageTbl[best] - reqVoltage)
		if d < bd || (d == bd && c < best) {
			best = c
		}
	}
	return uint8(best)
}

func (sq *SQRL) lookupVID(vid uint8) float64 {
	return sq.voltageTbl[vid]
}

// setVoltage applies the VCCINT targets, in millivolts, to whichever
// regulators are present. A zero target leaves that rail alone;
// setpoints outside (500, 920] are rejected and logged. Caller holds
// axiMu.
func (sq *SQRL) setVoltage(fkVCCINT, jcVCCINT uint32) {
	if fkVCCINT != 0 {
		if fkVCCINT <= lowerVoltLimit || fkVCCINT > upperVoltLimit {
			sq.logger.Error("vrm",
				zap.String("Stat", "Asking to set fkVCCINT out of bounds!"),
				zap.Uint32("mV", fkVCCINT),
				zap.Int("Lower", lowerVoltLimit),
				zap.Int("Upper", upperVoltLimit))
		} else {
			tWiper := sq.findClosestVIDToVoltage(float64(fkVCCINT) / 1000.0)
			tmv := uint32(sq.lookupVID(tWiper) * 1000.0)
			sq.logger.Info("vrm",
				zap.String("Stat", "Instructing FK VRM, if present"),
				zap.Uint32("RequestedmV", fkVCCINT),
				zap.Uint8("Wiper", tWiper),
				zap.Uint32("ClosestmV", tmv))
			sq.conn.Write(0xA, regFKReset, false)
			sq.conn.Write(0x158, regFKTxFIFO, false)
			sq.conn.Write(0x00, regFKTxFIFO, false)
			sq.conn.Write(i2cStop|uint32(tWiper), regFKTxFIFO, false)
			sq.conn.Write(0x1, regFKControl, false)
		}
	}
	if jcVCCINT != 0 {
		if jcVCCINT <= lowerVoltLimit || jcVCCINT > upperVoltLimit {
			sq.logger.Error("vrm",
				zap.String("Stat", "Asking to set jcVCCINT out of bounds!"),
				zap.Uint32("mV", jcVCCINT),
				zap.Int("Lower", lowerVoltLimit),
				zap.Int("Upper", upperVoltLimit))
		} else {
			sq.logger.Info("vrm", zap.String("Stat", "Applying JC PMIC hot fix"))
			// PID loop parameters for the VCCBRAM and VCCINT rails.
			sq.jcTransaction([]uint32{0xD0, 0x04, 0x22, 0x08, 0x1C, i2cStop | 0x5C,
				i2cStart | (jcPMICAddr << 1), 0xD0, 0x04, 0x24, 0x08, 0x22, i2cStop | 0x2C})
			sq.jcTransaction([]uint32{0xD0, 0x04, 0xAA, 0x0A, 0xF3, i2cStop | 0xE0})
			sq.jcTransaction([]uint32{0xD0, 0x04, 0xAA, 0x06, 0xF3, i2cStop | 0xE0})

			sq.logger.Info("vrm",
				zap.String("Stat", "Asking JC VRM, if present, to target"),
				zap.Uint32("mV", jcVCCINT))
			vEnc := uint16(math.Round(float64(jcVCCINT) / 1000.0 * 256.0))
			sq.jcTransaction([]uint32{0xD0, 0x04, 0x21 << 1, 0x06,
				uint32(vEnc & 0xFF), i2cStop | uint32(vEnc>>8)&0xFF})
		}
	}
}

// jcTransaction soft-resets the I2C bridge, queues one addressed
// transaction in the TX FIFO, fires it, and waits for the PMIC to
// settle. Caller holds axiMu.
func (sq *SQRL) jcTransaction(body []uint32) {
	sq.conn.Write(0xA, regJCReset, false)
	sq.conn.Write(i2cStart|(jcPMICAddr<<1), regJCTxFIFO, false)
	for _, b := range body {
		sq.conn.Write(b, regJCTxFIFO, false)
	}
	sq.conn.Write(0x1, regJCControl, false)
	sq.sleep(time.Second)
}
