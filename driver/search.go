package driver

import (
	"bytes"
	"time"

	"github.com/NextDesignSolutions/ethminer-sqrl/axi"
	"github.com/NextDesignSolutions/ethminer-sqrl/mining"

	"github.com/jinzhu/copier"
	"go.uber.org/zap"
)

// falseTarget is the floor for the boundary programmed into the
// hashcore. Boundaries below it are quietly raised to keep the
// solution rate inside what the interrupt path can deliver. Solutions
// go to the farm as found; neither this loop nor farm.Dispatcher
// checks them against the work's own boundary.
var falseTarget = [32]byte{0x00, 0x00, 0x00, 0x1F,
	0xFF, 0xFF, 0xFF, 0xFF, 0xFF, 0xFF, 0xFF, 0xFF, 0xFF, 0xFF, 0xFF, 0xFF,
	0xFF, 0xFF, 0xFF, 0xFF, 0xFF, 0xFF, 0xFF, 0xFF, 0xFF, 0xFF, 0xFF, 0xFF,
	0xFF, 0xFF, 0xFF, 0xFF}

// search mines one work package until new work arrives, stop is
// requested, or the stall detector fires.
func (sq *SQRL) search(w *mining.WorkPackage) {
	// Snapshot the package; the dispatcher may replace its copy while
	// the hashcore still runs against this one.
	var work mining.WorkPackage
	copier.Copy(&work, w)

	sq.newWork.Store(false)

	sq.axiMu.Lock()
	if err := sq.conn.WriteBulk(work.Header[:], regHeader, true); err != nil {
		sq.logger.Error("search", zap.String("Stat", "Failed setting ethcore header"), zap.Error(err))
	}
	target := work.Boundary
	if bytes.Compare(target[:], falseTarget[:]) < 0 {
		target = falseTarget
	}
	if err := sq.conn.WriteBulk(target[:], regBoundary, true); err != nil {
		sq.logger.Error("search", zap.String("Stat", "Failed setting ethcore target"), zap.Error(err))
	}
	if err := sq.conn.Write(uint32(work.StartNonce>>32), regNonceHi, false); err != nil {
		sq.logger.Error("search", zap.String("Stat", "Failed setting ethcore nonceStartHigh"), zap.Error(err))
	}
	if err := sq.conn.Write(uint32(work.StartNonce), regNonceLo, false); err != nil {
		sq.logger.Error("search", zap.String("Stat", "Failed setting ethcore nonceStartLow"), zap.Error(err))
	}

	// The tuner may have settled on a better triple.
	if intens := sq.tuner.GetIntensitySettings(); intens.IsSet() {
		sq.settings.Patience = intens.Patience
		sq.settings.IntensityN = intens.IntensityN
		sq.settings.IntensityD = intens.IntensityD
	}
	var flags uint32
	if sq.settings.Patience != 0 {
		flags |= 1<<6 | (sq.settings.Patience&0xFF)<<8
	}
	if sq.settings.IntensityN != 0 {
		flags |= 1<<0 | (sq.settings.IntensityN&0xFF)<<24
		flags |= ((sq.settings.IntensityD&0x3F)*8 - 1) << 16
	}
	if err := sq.conn.Write(flags, regCoreFlags, false); err != nil {
		sq.logger.Error("search", zap.String("Stat", "Failed setting ethcore debugFlags"), zap.Error(err))
		sq.dieOnError(err, "failed setting core flags")
	}

	// Start the core with nonce delivery via interrupt.
	if err := sq.conn.Write(coreStartIRQ, regCoreCtrl, false); err != nil {
		sq.logger.Error("search", zap.String("Stat", "Error starting hashcore"), zap.Error(err))
	}

	var (
		lastSCnt    uint32
		lastTChecks uint64
	)
	for {
		if sq.newWork.Load() {
			sq.newWork.Store(false)
			break
		}
		if sq.shouldStop() {
			break
		}

		sq.axiMu.Unlock()
		var (
			nonceValid bool
			nonce      uint64
		)
		res, payload := sq.conn.WaitForInterrupt(1<<0, time.Duration(sq.settings.WorkDelay)*time.Microsecond)
		switch res {
		case axi.ResultOK:
			nonceValid = true
			nonce = payload
		case axi.ResultTimedOut:
			// Normal, no solution this interval.
		default:
			sq.logger.Error("search", zap.String("Stat", "FPGA interrupt error"))
			if sq.settings.DieOnError {
				sq.logger.Fatal("search", zap.String("Stat", "Interrupt error with dieonerror set"))
			}
		}
		sq.axiMu.Lock()

		var sCnt uint32
		if !sq.settings.SkipStallDetection {
			sCnt = sq.readOrSubst(regStallCounter, 0, "checking for hashcore stall")
		}
		tChkLo := sq.readOrSubst(regTChecksLo, 0, "reading target check counter")
		tChkHi := sq.readOrSubst(regTChecksHi, 0, "reading target check counter")
		tChks := uint64(tChkHi)<<32 + uint64(tChkLo)

		var newTChks uint64
		if tChkLo != 0 || tChkHi != 0 {
			if tChks < lastTChecks {
				// The low word rolled over since the last sample.
				tChkHi++
				tChks = uint64(tChkHi)<<32 + uint64(tChkLo)
			}
			newTChks = tChks - lastTChecks
		}
		lastTChecks = tChks

		shouldReset := false
		if !sq.settings.SkipStallDetection && sCnt == lastSCnt {
			shouldReset = true
		}
		lastSCnt = sCnt

		// The tuner may relock the PLL from here; give up the
		// transport while it and the aggregators run.
		sq.axiMu.Unlock()
		if nonceValid {
			sol := mining.Solution{
				Nonce:      nonce,
				Work:       work,
				Found:      time.Now(),
				MinerIndex: sq.index,
			}
			sq.logger.Info("search",
				zap.String("Job", work.Abridged()),
				zap.Uint64("Sol", nonce))
			sq.farm.SubmitSolution(sol)
		}

		sq.tuner.Tune(newTChks)
		sq.processHashrateAverages(newTChks)
		sq.axiMu.Lock()

		if shouldReset {
			// Core stopped making progress; let it reset.
			break
		}
	}
	sq.stopHashcore(true)
	sq.axiMu.Unlock()
}
