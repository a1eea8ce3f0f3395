package driver

import (
	"github.com/NextDesignSolutions/ethminer-sqrl/types"

	"go.uber.org/zap"
)

// HBMStatus is the decoded 0x7008 status word.
type HBMStatus struct {
	LeftCalibrated    bool
	RightCalibrated   bool
	LeftCatastrophic  bool
	RightCatastrophic bool
	LeftTemp          uint8
	RightTemp         uint8
}

func decodeHBMStatus(raw uint32) HBMStatus {
	return HBMStatus{
		LeftCalibrated:    raw>>0&1 == 1,
		RightCalibrated:   raw>>1&1 == 1,
		LeftCatastrophic:  raw>>2&1 == 1,
		RightCatastrophic: raw>>10&1 == 1,
		LeftTemp:          uint8(raw >> 3 & 0x7F),
		RightTemp:         uint8(raw >> 11 & 0x7F),
	}
}

func (h HBMStatus) healthy() bool {
	return h.LeftCalibrated && h.RightCalibrated &&
		!h.LeftCatastrophic && !h.RightCatastrophic
}

// Telemetry samples die temperature, core voltage, clock and HBM
// stack status, emits the periodic status line, and trips the safety
// shutdown on an HBM fault. Called on an external timer.
//
// The returned tempC is in degrees C, fanPrct carries the core clock
// in MHz, and powerW carries the core voltage in millivolts; the
// slots mirror what the status surface expects.
func (sq *SQRL) Telemetry() (tempC, fanPrct, powerW uint32) {
	sq.axiMu.Lock()
	if sq.conn == nil {
		sq.axiMu.Unlock()
		return 0, 0, 0
	}
	if raw, err := sq.conn.Read(regDieTempRaw); err == nil {
		tempC = uint32(float64(raw)*507.6/65536.0 - 279.43)
	}
	fanPrct = uint32(sq.getClockLocked())
	if raw, err := sq.conn.Read(regVoltageRaw); err == nil {
		powerW = uint32(float64(raw) * 3.0 / 65536.0 * 1000.0)
	}

	// Force "calibrated" when the read fails, to avoid cascading a
	// transport hiccup into a safety shutdown.
	rawHBM := uint32(0x3)
	if v, err := sq.conn.Read(regHBMStatus); err == nil {
		rawHBM = v
	}
	hbm := decodeHBMStatus(rawHBM)

	if !hbm.healthy() {
		sq.stopHashcore(true)
		sq.conn.Write(0x0, regDagPower, true)
		if hbm.LeftCatastrophic || hbm.RightCatastrophic {
			sq.logger.Error("hbm",
				zap.String("Stat", "HBM STACK CATASTROPHIC TEMP - Powered off, refusing work"))
		} else {
			sq.logger.Error("hbm",
				zap.String("Stat", "HBM calibration failed - Refusing work"))
		}
	}
	sq.axiMu.Unlock()

	sq.tempMu.Lock()
	sq.fpgaTemps = [3]int{int(tempC), int(hbm.LeftTemp), int(hbm.RightTemp)}
	sq.voltage = float64(powerW) / 1000.0
	if !hbm.healthy() {
		sq.hwStatus = types.HBMFault
	}
	sq.tempMu.Unlock()

	if sq.settings.ShowHBMStats || hbm.LeftTemp > 70 || hbm.RightTemp > 70 ||
		hbm.LeftCatastrophic || hbm.RightCatastrophic {
		sq.logger.Info("hbm",
			zap.Bool("LCAL", hbm.LeftCalibrated),
			zap.Bool("RCAL", hbm.RightCalibrated),
			zap.Bool("LCATTRIP", hbm.LeftCatastrophic),
			zap.Bool("RCATTRIP", hbm.RightCatastrophic),
			zap.Uint8("LTempC", hbm.LeftTemp),
			zap.Uint8("RTempC", hbm.RightTemp))
	}

	avgs := sq.AverageHashrates()
	fields := []zap.Field{
		zap.String("Avg1m", format2decimal(avgs[0])),
		zap.String("Avg10m", format2decimal(avgs[1])),
		zap.String("Avg60m", format2decimal(avgs[2])),
		zap.String("ErrPct", format2decimal(avgs[3])),
		zap.Uint32("P", sq.settings.Patience),
		zap.Uint32("N", sq.settings.IntensityN),
		zap.Uint32("D", sq.settings.IntensityD),
		zap.Float64("MHz", sq.lastClk.Load()),
		zap.String("V", format2decimal(float64(powerW)/1000.0)),
		zap.Uint32("TempC", tempC),
	}
	if stage := sq.tuner.TuningStage(); stage > 0 {
		fields = append(fields, zap.Uint8("TuningStage", stage))
	}
	sq.logger.Info("sqrl-status", fields...)

	if !hbm.healthy() {
		// The device refuses further work until a reinit.
		sq.dagging.Store(true)
		sq.Kick()
	}
	return tempC, fanPrct, powerW
}
