package driver

import (
	"time"

	"github.com/NextDesignSolutions/ethminer-sqrl/mining"
	"github.com/NextDesignSolutions/ethminer-sqrl/types"

	"go.uber.org/zap"
)

// DAG geometry constants.
const (
	dagChunk     = 0x1000000 // 16 MiB swizzle granularity
	dagChunks    = 256
	dagStack1    = 0x100000000 // second HBM stack base
	copyBackSpan = 4 << 30
	// The copy-back is issued in pieces; some bridges reject a single
	// 4 GiB CDMA transfer.
	copyBackChunk = 256 << 20
)

// initEpoch stages the DAG for the epoch and leaves the board ready
// to mine: core parameters programmed, second DAG copy swizzled into
// place, epoch tag persisted, tuner started.
func (sq *SQRL) initEpoch(epoch int) error {
	return sq.initEpochContext(mining.NewEpochContext(epoch))
}

func (sq *SQRL) initEpochContext(ec mining.EpochContext) error {
	sq.dagging.Store(true)
	sq.tempMu.Lock()
	sq.hwStatus = types.Dagging
	sq.tempMu.Unlock()

	sq.axiMu.Lock()
	// Always drop to stock clock before touching the cores.
	sq.setClockLocked(-2)

	sq.logger.Info("epoch",
		zap.String("Stat", "Changing epoch"),
		zap.Int("Epoch", ec.EpochNumber),
		zap.Uint64("DagSize", ec.DagSize))

	sq.stopHashcore(true)
	// Power on DAGGEN, halt any running generation.
	sq.conn.Write(0xFFFFFFFF, regDagPower, true)
	sq.conn.Write(0x2, regDagCtrl, true)

	// Core parameters are set even when the DAG is already staged;
	// the core may have been reset since.
	nItems := uint32(ec.DagSize / 128)
	if err := sq.conn.Write(nItems, regNItems, true); err != nil {
		sq.logger.Error("epoch", zap.String("Stat", "Failed setting ethcore nItems"), zap.Error(err))
	}
	// Reciprocal adjusted to the core's optimized modulo.
	reciprocal := 1.0 / float64(nItems) * float64(uint64(1)<<60)
	rnItems := uint32(uint64(reciprocal) >> 4)
	if err := sq.conn.Write(rnItems, regRNItems, true); err != nil {
		sq.logger.Error("epoch", zap.String("Stat", "Failed setting ethcore rnItems"), zap.Error(err))
	}

	// A matching persisted epoch tag means the DAG survives from a
	// previous run.
	dagStatusWord := sq.readOrZero(regDagEpochTag, "current HW DAG version")
	if dagStatusWord>>31 == 1 && !sq.settings.ForceDAG {
		sq.logger.Info("epoch",
			zap.String("Stat", "Current HW DAG"),
			zap.Uint32("Epoch", dagStatusWord&0xFFFF))
		if dagStatusWord&0xFFFF == uint32(ec.EpochNumber) {
			sq.logger.Info("epoch", zap.String("Stat", "No DAG generation is needed"))
			sq.conn.Write(0x0, regDagPower, true)
			sq.finishEpoch(ec.EpochNumber)
			return nil
		}
	}

	// Pulse DAGGEN reset before regenerating.
	sq.conn.Write(0xFFFFFFFD, regDagPower, true)
	sq.conn.Write(0xFFFFFFFF, regDagPower, true)

	// Generation runs no faster than the DAG pipeline allows; only
	// keep an overclock if it is already below the target.
	if sq.getClockLocked() < sq.lastClk.Load() {
		sq.logger.Info("epoch",
			zap.String("Stat", "Resetting clock to bitstream default for DAG generation"))
		sq.setClockLocked(-2)
	} else {
		sq.setClockLocked(sq.lastClk.Load())
	}

	numParentNodes := uint32(ec.LightSize / 64)
	if err := sq.generateLightCache(&ec, numParentNodes); err != nil {
		sq.dagging.Store(false)
		sq.axiMu.Unlock()
		return err
	}

	// Mixer ranges partition the DAG across the generator's mixers;
	// the first one absorbs the remainder.
	numMixers := sq.settings.DagMixers
	mixerSize := uint32(ec.DagSize / 64 / uint64(numMixers))
	leftover := uint32(ec.DagSize/64) - mixerSize*numMixers
	sq.logger.Info("epoch",
		zap.Uint32("NumParentNodes", numParentNodes),
		zap.Uint32("NumMixers", numMixers),
		zap.Uint32("ItemsPerMixer", mixerSize),
		zap.Uint32("ItemsLeftover", leftover))

	sq.conn.Write(numParentNodes, regDagNumParents, true)
	dagPos := uint32(0)
	for i := uint32(0); i < numMixers; i++ {
		sq.conn.Write(dagPos, regMixerBase+8*i, true)
		mixerEnd := dagPos + mixerSize
		if i == 0 {
			mixerEnd += leftover
		}
		sq.conn.Write(mixerEnd, regMixerBase+4+8*i, true)
		dagPos = mixerEnd
	}

	sq.logger.Info("epoch", zap.String("Stat", "Generating DAG..."))
	startInit := time.Now()
	sq.conn.Write(0x1, regDagCtrl, true)
	status := sq.readOrZero(regDagCtrl, "DAG status")
	cnt := 0
	if !sq.settings.SkipDAG {
		for status&2 != 0x2 {
			sq.axiMu.Unlock()
			sq.sleep(time.Second)
			sq.axiMu.Lock()
			var err error
			status, err = sq.conn.Read(regDagCtrl)
			if err != nil {
				sq.logger.Error("epoch", zap.String("Stat", "Error checking DAG status"), zap.Error(err))
				sq.dieOnError(err, "DAG status poll failed")
				status = 0
			}
			cnt++
			if cnt%5 == 0 {
				dagProgress := sq.readOrZero(regDagNumParents, "DAG progress")
				progress := float64(dagProgress) / float64(mixerSize+leftover)
				sq.logger.Info("epoch", zap.Float64("DAGPercent", progress*100.0))
			}
		}
	} else {
		sq.logger.Warn("epoch", zap.String("Stat", "DEV - Skipping DAG, expect failed hashes"))
	}
	sq.logger.Info("epoch",
		zap.Uint32("FinalDAGStatus", status),
		zap.Duration("DAGTime", time.Since(startInit)))

	sq.swizzleDAG()

	// Only persist the tag once the second copy is in place.
	sq.conn.Write(uint32(1)<<31|uint32(ec.EpochNumber), regDagEpochTag, true)

	sq.logger.Info("epoch", zap.String("Stat", "Putting DAG generator in low power mode"))
	sq.conn.Write(0x0, regDagPower, true)

	sq.finishEpoch(ec.EpochNumber)
	return nil
}

// finishEpoch restores the target clock, releases the core for
// mining, and starts the tuner. Caller holds axiMu; released here.
func (sq *SQRL) finishEpoch(epoch int) {
	sq.dagging.Store(false)
	sq.currentEpoch.Store(int64(epoch))
	if clk := sq.lastClk.Load(); clk != 0 {
		sq.logger.Info("epoch",
			zap.String("Stat", "Restoring clock"),
			zap.Float64("Clk", clk))
		sq.setClockLocked(clk)
	}
	sq.tempMu.Lock()
	sq.hwStatus = types.Running
	sq.tempMu.Unlock()
	sq.axiMu.Unlock()

	sq.tuner.StartTune(sq.lastClk.Load())
}

// generateLightCache builds the light cache on-device from the
// reversed seed, falling back to a chunked host upload when the
// context carries the cache bytes. Caller holds axiMu.
func (sq *SQRL) generateLightCache(ec *mining.EpochContext, numParentNodes uint32) error {
	if ec.LightCache == nil {
		sq.logger.Info("epoch", zap.String("Stat", "Generating LightCache..."))
		startCache := time.Now()
		sq.conn.Write(0x2, regCacheCtrl, true)
		sq.conn.Write(numParentNodes, regDagNumParents, true)
		sq.conn.WriteBulk(revBytes(ec.Seed[:]), regCacheSeed, true)
		sq.conn.Write(0x1, regCacheCtrl, true)
		cstatus := uint32(0)
		for cstatus&2 != 0x2 {
			sq.axiMu.Unlock()
			sq.sleep(100 * time.Millisecond)
			sq.axiMu.Lock()
			var err error
			cstatus, err = sq.conn.Read(regCacheCtrl)
			if err != nil {
				sq.dieOnError(err, "LightCache status poll failed")
				cstatus = 0
			}
		}
		sq.logger.Info("epoch",
			zap.Uint32("FinalLightCacheStatus", cstatus),
			zap.Duration("CacheTime", time.Since(startCache)))
		return nil
	}

	// Host upload path for bitstreams without on-module cache
	// generation. Each chunk is retried once.
	sq.logger.Info("epoch", zap.String("Stat", "Uploading new LightCache... (this may take some time)"))
	uploadStart := time.Now()
	const chunkSize = 65536
	cache := ec.LightCache
	steps := 0
	for pos := 0; pos < len(cache); pos += chunkSize {
		end := pos + chunkSize
		if end > len(cache) {
			end = len(cache)
		}
		if err := sq.conn.CDMAWriteBytes(cache[pos:end], uint64(pos)); err != nil {
			sq.logger.Warn("epoch", zap.String("Stat", "Upload packet error, retrying..."))
			if err := sq.conn.CDMAWriteBytes(cache[pos:end], uint64(pos)); err != nil {
				sq.logger.Error("epoch", zap.String("Stat", "Cache upload failed"), zap.Error(err))
				return err
			}
		}
		if steps%100 == 0 {
			sq.logger.Info("epoch",
				zap.Float64("CacheUploadPercent", float64(end)/float64(len(cache))*100.0))
		}
		steps++
	}
	sq.logger.Info("epoch",
		zap.Uint64("CacheBytes", ec.LightSize),
		zap.Duration("UploadTime", time.Since(uploadStart)))
	return nil
}

// swizzleDAG duplicates the DAG into the layout the hashcore expects:
// 256 16-MiB chunks copied from stack 1 with their chunk index
// nibble-swapped, then the whole 4 GiB copied back to stack 1.
// Caller holds axiMu.
func (sq *SQRL) swizzleDAG() {
	sq.logger.Info("epoch", zap.String("Stat", "Duplicating DAG items for performance..."))
	startSwizzle := time.Now()
	var err error
	for i := uint64(0); i < dagChunks; i++ {
		src := dagStack1 | (i << 24)
		dst := ((i&0x0F)<<4 | (i&0xF0)>>4) << 24
		if err = sq.conn.CDMACopy(src, dst, dagChunk); err != nil {
			sq.logger.Error("epoch", zap.String("Stat", "Failed to swizzle DAG!"), zap.Error(err))
			break
		}
	}
	if err == nil {
		for off := uint64(0); off < copyBackSpan; off += copyBackChunk {
			if err = sq.conn.CDMACopy(off, dagStack1+off, copyBackChunk); err != nil {
				sq.logger.Error("epoch", zap.String("Stat", "Failed to copy DAG!"), zap.Error(err))
				break
			}
		}
	}
	sq.logger.Info("epoch", zap.Duration("SwizzleTime", time.Since(startSwizzle)))
}
