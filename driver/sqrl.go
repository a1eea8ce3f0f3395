// Package driver implements the per-device control-plane state
// machine for SQRL Ethash FPGA boards: epoch initialization, the
// nonce search loop, clock and voltage control, telemetry and safety
// interlocks.
package driver

import (
	"fmt"
	"math"
	"strconv"
	"sync"
	"time"

	"github.com/NextDesignSolutions/ethminer-sqrl/axi"
	"github.com/NextDesignSolutions/ethminer-sqrl/farm"
	"github.com/NextDesignSolutions/ethminer-sqrl/statistics"
	"github.com/NextDesignSolutions/ethminer-sqrl/tuner"
	"github.com/NextDesignSolutions/ethminer-sqrl/types"

	"go.uber.org/atomic"
	"go.uber.org/zap"
)

// DialFunc opens a transport to the board. Swapped for a fake in
// tests.
type DialFunc func(host string, port int) (axi.Client, error)

// SQRL drives one FPGA board. One mining goroutine runs Run; a
// telemetry caller and the farm dispatcher may call Telemetry and
// Kick concurrently.
type SQRL struct {
	index    int
	logger   *zap.Logger
	device   types.DeviceDescriptor
	settings *types.Settings
	farm     farm.Farm
	tuner    *tuner.AutoTuner
	dial     DialFunc
	sleep    func(time.Duration)

	// axiMu serializes every transport call. Long polling loops
	// release and reacquire it between iterations.
	axiMu sync.Mutex
	conn  axi.Client

	voltageTbl [256]float64
	settingID  string
	// Core clock in MHz to run at outside DAG work: the last clock
	// programmed by setClockLocked, or the configured target clock
	// until that is first applied. A stock reset leaves it unchanged.
	lastClk *atomic.Float64

	dagging *atomic.Bool
	newWork *atomic.Bool
	stopped *atomic.Bool

	// kickable mirrors conn for Kick's lock-free interrupt nudge, so
	// a kick never has to contend with a long-held axiMu.
	kickable atomic.Value

	// newWorkSignal wakes the idle work loop; Kick posts to it.
	newWorkSignal chan struct{}

	hashCounter  uint64
	avgHashTimer time.Time
	secCounter   uint64
	secTimer     time.Time
	hash10min    *statistics.Window
	hash60min    *statistics.Window
	avgMu        sync.Mutex
	avgValues    [4]float64
	hr           *statistics.HashRate

	tempMu    sync.Mutex
	fpgaTemps [3]int // die, HBM left, HBM right
	voltage   float64
	hwStatus  types.HardwareStats

	currentEpoch *atomic.Int64
}

// New creates a driver for one enumerated device.
func New(index int, device types.DeviceDescriptor, settings *types.Settings, fm farm.Farm, logger *zap.Logger) *SQRL {
	sq := &SQRL{
		index:         index,
		logger:        logger,
		device:        device,
		settings:      settings,
		farm:          fm,
		dial:          func(host string, port int) (axi.Client, error) { return axi.Dial(host, port) },
		sleep:         time.Sleep,
		lastClk:       atomic.NewFloat64(0),
		dagging:       atomic.NewBool(false),
		newWork:       atomic.NewBool(false),
		stopped:       atomic.NewBool(false),
		newWorkSignal: make(chan struct{}, 1),
		hash10min:     statistics.NewWindow(10),
		hash60min:     statistics.NewWindow(60),
		hr:            &statistics.HashRate{},
		avgHashTimer:  time.Now(),
		secTimer:      time.Now(),
		currentEpoch:  atomic.NewInt64(-1),
		hwStatus:      types.Connecting,
	}
	sq.tuner = tuner.New(logger, sq, settings)
	return sq
}

// SetDial overrides the transport dialer (tests).
func (sq *SQRL) SetDial(d DialFunc) { sq.dial = d }

// Tuner exposes the device's auto-tuner.
func (sq *SQRL) Tuner() *tuner.AutoTuner { return sq.tuner }

func (sq *SQRL) Name() string { return sq.device.Name }

// initDevice connects and brings the board to a known state: timeout,
// interrupt mask, identity readout, voltage targets, stock clock.
func (sq *SQRL) initDevice() error {
	sq.logger.Info("driver",
		zap.String("Stat", "Connecting"),
		zap.String("Device", sq.device.Name),
		zap.Uint64("Memory", sq.device.TotalMemory))

	conn, err := sq.dial(sq.device.Host, sq.device.Port)
	if err != nil {
		sq.logger.Error("driver",
			zap.String("Stat", "Failed to connect"),
			zap.String("Device", sq.device.Name),
			zap.Error(err))
		return err
	}

	sq.axiMu.Lock()
	sq.conn = conn
	sq.kickable.Store(conn)
	conn.SetTimeout(time.Duration(sq.settings.AXITimeoutMs) * time.Millisecond)
	// Only affects interrupts from the multi-client bridge.
	conn.EnableInterruptsWithMask(0x1)

	dnaLo := sq.readOrZero(regDNALo, "dna")
	dnaMid := sq.readOrZero(regDNAMid, "dna")
	dnaHi := sq.readOrZero(regDNAHi, "dna")
	device := sq.readOrZero(regDeviceMagic, "device type")
	bitstream := sq.readOrZero(regBitstreamVersion, "bitstream version")

	dna := fmt.Sprintf("%08x%08x%08x", dnaLo, dnaMid, dnaHi)
	sq.settingID = dna + "_" + fmt.Sprintf("%08x", bitstream) + "_" +
		format2decimal(float64(sq.settings.FkVCCINT)) +
		format2decimal(float64(sq.settings.JcVCCINT))
	sq.logger.Info("driver",
		zap.String("DNA", dna),
		zap.String("FPGA", magicString(device)),
		zap.String("Bitstream", fmt.Sprintf("%08x", bitstream)))

	sq.initVoltageTbl()
	sq.setVoltage(sq.settings.FkVCCINT, sq.settings.JcVCCINT)

	stock := sq.setClockLocked(-2)
	sq.logger.Info("driver", zap.Float64("StockClock", stock))
	if sq.device.TargetClk != 0 {
		// Applied after DAG generation.
		sq.lastClk.Store(sq.device.TargetClk)
		sq.logger.Info("driver", zap.Float64("TargetClock", sq.device.TargetClk))
	} else {
		sq.lastClk.Store(sq.setClockLocked(-1))
	}
	sq.hwStatus = types.Running
	sq.axiMu.Unlock()

	sq.tuner.SetSettingID(sq.settingID)
	sq.logger.Info("driver", zap.String("TuneID", sq.settingID))
	if sq.settings.TuneFile != "" && sq.settings.AutoTune > 0 {
		if sq.tuner.ReadSavedTunes(sq.settings.TuneFile, sq.settingID) {
			// Saved tune wins; no need to search again.
			sq.settings.AutoTune = 0
		}
	}

	sq.logger.Info("driver",
		zap.Uint32("WorkDelay", sq.settings.WorkDelay),
		zap.Uint32("Patience", sq.settings.Patience),
		zap.Uint32("IntensityN", sq.settings.IntensityN),
		zap.Uint32("IntensityD", sq.settings.IntensityD),
		zap.Bool("SkipStallDetect", sq.settings.SkipStallDetection))
	return nil
}

// readOrZero reads a register, substituting 0 and logging on failure.
// Caller holds axiMu.
func (sq *SQRL) readOrZero(addr uint32, what string) uint32 {
	v, err := sq.conn.Read(addr)
	if err != nil {
		sq.logger.Error("driver",
			zap.String("Stat", "Error reading "+what),
			zap.Error(err))
		return 0
	}
	return v
}

// stopHashcore halts the search engine. With soft set the intensity
// byte is ramped down in 8 steps first to limit the voltage swing.
// Caller holds axiMu.
func (sq *SQRL) stopHashcore(soft bool) error {
	if soft {
		dbg, err := sq.conn.Read(regCoreFlags)
		if err != nil {
			sq.logger.Error("driver",
				zap.String("Stat", "Error gracefully resetting core, using hard-reset"),
				zap.Error(err))
			return sq.conn.Write(coreReset, regCoreCtrl, false)
		}
		inn := int((dbg >> 24) & 0xFF)
		step := int(math.Ceil(float64(inn) / 8.0))
		for inn > 0 {
			dbg = (dbg & 0x00FFFFFF) | uint32(inn)<<24
			sq.conn.Write(dbg, regCoreFlags, false)
			inn -= step
		}
		if inn != 0 {
			sq.conn.Write(dbg&0x00FFFFFF, regCoreFlags, false)
		}
	}
	return sq.conn.Write(coreReset, regCoreCtrl, false)
}

// Kick interrupts both the idle wait and any in-progress search.
// Safe to call from any goroutine.
func (sq *SQRL) Kick() {
	sq.newWork.Store(true)
	if !sq.dagging.Load() {
		// Wake any outstanding interrupt wait immediately.
		if c, ok := sq.kickable.Load().(axi.Client); ok && c != nil {
			c.KickInterrupts()
		}
	}
	select {
	case sq.newWorkSignal <- struct{}{}:
	default:
	}
}

// Stop asks the work loop to exit and tears the transport down once
// it has.
func (sq *SQRL) Stop() {
	sq.stopped.Store(true)
	sq.Kick()
}

func (sq *SQRL) shouldStop() bool { return sq.stopped.Load() }

// Run is the device's mining thread: pull work, initialize epochs,
// search. Returns when stopped or on a fatal work-loop error.
func (sq *SQRL) Run() error {
	defer sq.teardown()

	if err := sq.initDevice(); err != nil {
		return err
	}

	for !sq.shouldStop() {
		w, ok := sq.farm.Work()
		if !ok || !w.Valid() {
			// Wait for work or 3 seconds, whichever first.
			select {
			case <-sq.newWorkSignal:
			case <-time.After(3 * time.Second):
			}
			continue
		}

		if w.Algo != "ethash" {
			return fmt.Errorf("driver: algo %q not implemented", w.Algo)
		}

		if int(sq.currentEpoch.Load()) != w.Epoch {
			if err := sq.initEpoch(w.Epoch); err != nil {
				return err
			}
			// DAG generation takes a while; make sure we pick up the
			// latest job, not the one that triggered the change.
			continue
		}

		sq.search(&w)
	}
	return nil
}

func (sq *SQRL) teardown() {
	sq.axiMu.Lock()
	defer sq.axiMu.Unlock()
	if sq.conn != nil {
		sq.logger.Info("driver",
			zap.String("Stat", "Disconnecting"),
			zap.String("Device", sq.device.Name))
		sq.conn.Close()
		sq.conn = nil
	}
	sq.tempMu.Lock()
	sq.hwStatus = types.Stopped
	sq.tempMu.Unlock()
}

// SetCoreClock programs the core clock; the tuner's entry point.
func (sq *SQRL) SetCoreClock(target float64) float64 {
	sq.axiMu.Lock()
	defer sq.axiMu.Unlock()
	if sq.conn == nil {
		return 0
	}
	return sq.setClockLocked(target)
}

// Temps returns the last telemetry temperatures (die, HBM left/right).
func (sq *SQRL) Temps() [3]int {
	sq.tempMu.Lock()
	defer sq.tempMu.Unlock()
	return sq.fpgaTemps
}

// GetDriverStats snapshots the device for the status API.
func (sq *SQRL) GetDriverStats() types.DriverStates {
	sq.tempMu.Lock()
	temps := sq.fpgaTemps
	volt := sq.voltage
	status := sq.hwStatus
	sq.tempMu.Unlock()
	sq.avgMu.Lock()
	avgs := sq.avgValues
	sq.avgMu.Unlock()

	return types.DriverStates{
		DriverName:  "sqrl",
		Status:      status,
		Temperature: temps[0],
		HBMTemps:    [2]int{temps[1], temps[2]},
		Voltage:     volt,
		CoreClk:     sq.lastClk.Load(),
		Hashrate:    avgs,
		RawMhs:      sq.hr.RecentNSum(60) / 60 / 1e6,
		Epoch:       int(sq.currentEpoch.Load()),
		Algo:        "ethash",
	}
}

// dieOnError escalates an unrecoverable transport failure when the
// operator asked for it.
func (sq *SQRL) dieOnError(err error, what string) {
	if err == nil {
		return
	}
	if sq.settings.DieOnError {
		sq.logger.Fatal("driver",
			zap.String("Stat", what),
			zap.Error(err))
	}
}

func format2decimal(v float64) string {
	return strconv.FormatFloat(v, 'f', 2, 64)
}

// magicString renders the device-type magic word as ASCII.
func magicString(magic uint32) string {
	return string([]byte{
		byte(magic >> 24), byte(magic >> 16), byte(magic >> 8), byte(magic),
	})
}
