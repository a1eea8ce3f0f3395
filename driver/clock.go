package driver

import (
	"math"
	"time"

	"go.uber.org/zap"
)

// Clock control. A PLL relock clobbers the mining registers at
// 0x5040/0x5088/0xB000, so any actual change snapshots and restores
// them around the relock.
//
// Target conventions (shared with the tuner):
//
//	target > 0   program target MHz
//	target == -1 read-only query
//	target < -1  reset to the bitstream's stock clock

// getClockLocked reads the current core clock. Caller holds axiMu.
func (sq *SQRL) getClockLocked() float64 {
	return sq.setClockLocked(-1)
}

// setClockLocked programs (or queries) the core clock and returns the
// resulting frequency in MHz. Caller holds axiMu.
func (sq *SQRL) setClockLocked(targetClk float64) float64 {
	valueVCO, err := sq.conn.Read(regPLLVCO)
	if err != nil {
		sq.logger.Error("clk",
			zap.String("Stat", "Error checking current VCO - Aborting clock change"),
			zap.Error(err))
		return 0
	}
	mult := float64((valueVCO >> 8) & 0xFF)
	frac := 0.0
	if (valueVCO>>16)&0x2F != 0 {
		frac = float64((valueVCO>>16)&0x3FF) / 1000
	}
	gdiv := float64(valueVCO & 0xF)
	vco := 200.0 * (mult + frac) / gdiv

	valueClk0, err := sq.conn.Read(regPLLClk0)
	if err != nil {
		sq.logger.Error("clk",
			zap.String("Stat", "Error checking current clock - Aborting clock change"),
			zap.Error(err))
		return 0
	}
	clk0div := float64(valueClk0&0xF) + float64((valueClk0>>8)&0x3FF)/1000
	currentClk := vco / clk0div

	// A relock resets the mining registers; snapshot them first.
	var nItems, rnItems, daggenPwrState uint32
	if targetClk != -1 {
		nItems = sq.readOrSubst(regNItems, 0, "preserving settings for clock change")
		rnItems = sq.readOrSubst(regRNItems, 0, "preserving settings for clock change")
		daggenPwrState = sq.readOrSubst(regDagPower, 0, "preserving settings for clock change")
		sq.conn.Write(0xFFFFFFFF, regDagPower, true)
	}

	if targetClk > 0 {
		// The +1 handles rounding when the user sets a "UI" clock.
		desiredDiv := vco / (targetClk + 1)
		// Round up to a multiple of 1/8 (closest without going over).
		desiredDiv = math.Floor(desiredDiv*8+0.99) / 8.0
		if desiredDiv < 2.0 {
			sq.logger.Warn("clk", zap.String("Stat", "CoreClk would exceed limit"))
		} else {
			newDiv := uint32(uint8(desiredDiv)) |
				uint32(uint16((desiredDiv-math.Floor(desiredDiv))*1000.0))<<8
			sq.conn.Write(valueVCO, regPLLVCO, true)
			sq.conn.Write(newDiv, regPLLClk0, true)
			sq.conn.Write(0x7, regPLLControl, true)
			sq.conn.Write(0x3, regPLLControl, true)
			currentClk = vco / desiredDiv
			sq.logger.Info("clk", zap.Int("CoreClk", int(currentClk)))
			sq.lastClk.Store(math.Floor(currentClk))
		}
	} else if targetClk < -1 {
		sq.logger.Info("clk", zap.String("Stat", "Resetting CoreClk to Stock"))
		sq.conn.Write(0x5, regPLLControl, true)
		sq.conn.Write(0x1, regPLLControl, true)
		sq.sleep(10 * time.Millisecond)
		sq.conn.Write(0xA, regClkReset, true)
	}

	if targetClk != -1 {
		waitCnt := 1000
		for ; waitCnt > 0; waitCnt-- {
			locked, _ := sq.conn.Read(regClkLocked)
			if locked&1 == 1 {
				break
			}
		}
		if waitCnt == 0 {
			sq.logger.Warn("clk",
				zap.String("Stat", "Timed out waiting for clock change to re-lock"))
		}

		sq.conn.Write(nItems, regNItems, true)
		sq.conn.Write(rnItems, regRNItems, true)
		sq.conn.Write(daggenPwrState, regDagPower, true)
	}
	return currentClk
}

// readOrSubst reads a register, substituting def and logging on
// failure. Caller holds axiMu.
func (sq *SQRL) readOrSubst(addr, def uint32, what string) uint32 {
	v, err := sq.conn.Read(addr)
	if err != nil {
		sq.logger.Error("clk",
			zap.String("Stat", "Fatal error "+what),
			zap.Error(err))
		return def
	}
	return v
}
