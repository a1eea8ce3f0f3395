// Package tuner searches for the fastest stable core clock for a
// given board/bitstream/voltage combination and persists the result
// keyed by settings ID.
package tuner

import (
	"sync"
	"time"

	"github.com/NextDesignSolutions/ethminer-sqrl/types"

	"go.uber.org/zap"
)

// Device is the slice of the driver the tuner drives.
type Device interface {
	// SetCoreClock programs a new core clock and returns the clock
	// actually achieved. A negative target queries or resets, per the
	// clock controller's convention.
	SetCoreClock(target float64) float64
	// Temps returns the last telemetry snapshot: die, HBM left, HBM
	// right, in degrees C.
	Temps() [3]int
}

// IntensitySettings is the triple the tuner may impose on the search
// loop. The zero value means "no override".
type IntensitySettings struct {
	Patience   uint32
	IntensityN uint32
	IntensityD uint32
	set        bool
}

func (s IntensitySettings) IsSet() bool { return s.set }

const (
	stageIdle     = 0
	stageMeasure  = 1
	stageStepping = 2
	stageSettled  = 3

	clockStep    = 12.5 // MHz, one 1/8 divider notch at typical VCOs
	maxDieTemp   = 85
	maxHBMTemp   = 80
	sampleWindow = 90 // polls per candidate clock
)

// AutoTuner walks the clock up from the starting point while the
// measured hash rate improves and thermals stay inside limits.
type AutoTuner struct {
	logger   *zap.Logger
	dev      Device
	settings *types.Settings

	mu        sync.Mutex
	stage     uint8
	intensity IntensitySettings
	settingID string

	curClk   float64
	bestClk  float64
	bestRate float64

	windowTChecks uint64
	windowPolls   int
	zeroPolls     uint64
	totalPolls    uint64
	windowStart   time.Time
}

func New(logger *zap.Logger, dev Device, settings *types.Settings) *AutoTuner {
	return &AutoTuner{
		logger:   logger,
		dev:      dev,
		settings: settings,
	}
}

// StartTune begins (or restarts) the search from the given clock.
// Called by the epoch initializer once the DAG is staged. With
// auto-tune disabled this only records the clock for reporting.
func (t *AutoTuner) StartTune(clk float64) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.curClk = clk
	if t.settings.AutoTune <= 0 {
		t.stage = stageIdle
		return
	}
	t.stage = stageMeasure
	t.bestClk = clk
	t.bestRate = 0
	t.windowTChecks = 0
	t.windowPolls = 0
	t.windowStart = time.Now()
	t.logger.Info("tuner",
		zap.String("Stat", "Tune started"),
		zap.Float64("Clk", clk))
}

// Tune feeds one search-loop poll's target-check delta into the
// current measurement window. Called with the AXI mutex released.
func (t *AutoTuner) Tune(delta uint64) {
	t.mu.Lock()
	defer t.mu.Unlock()

	t.totalPolls++
	if delta == 0 {
		t.zeroPolls++
	}
	if t.stage == stageIdle || t.stage == stageSettled {
		return
	}

	t.windowTChecks += delta
	t.windowPolls++
	if t.windowPolls < sampleWindow {
		return
	}

	elapsed := time.Since(t.windowStart).Seconds()
	rate := 0.0
	if elapsed > 0 {
		rate = float64(t.windowTChecks) / elapsed / 1e6
	}
	temps := t.dev.Temps()
	tooHot := temps[0] >= maxDieTemp || temps[1] >= maxHBMTemp || temps[2] >= maxHBMTemp

	switch {
	case tooHot:
		t.logger.Warn("tuner",
			zap.String("Stat", "Thermal limit, backing off"),
			zap.Float64("Clk", t.curClk),
			zap.Int("DieC", temps[0]))
		t.settle(t.bestClk)
	case rate > t.bestRate:
		t.bestRate = rate
		t.bestClk = t.curClk
		t.curClk = t.dev.SetCoreClock(t.curClk + clockStep)
		t.stage = stageStepping
		t.logger.Info("tuner",
			zap.String("Stat", "Stepping clock"),
			zap.Float64("Clk", t.curClk),
			zap.Float64("Mhs", rate))
	default:
		// Faster clock did not hash faster; previous one wins.
		t.settle(t.bestClk)
	}

	t.windowTChecks = 0
	t.windowPolls = 0
	t.windowStart = time.Now()
}

// settle locks in clk and persists the tune. Caller holds t.mu.
func (t *AutoTuner) settle(clk float64) {
	t.stage = stageSettled
	t.curClk = t.dev.SetCoreClock(clk)
	t.logger.Info("tuner",
		zap.String("Stat", "Tune settled"),
		zap.Float64("Clk", t.curClk),
		zap.Float64("Mhs", t.bestRate))
	if t.settings.TuneFile != "" {
		rec := Record{
			Clk:        t.curClk,
			Patience:   t.settings.Patience,
			IntensityN: t.settings.IntensityN,
			IntensityD: t.settings.IntensityD,
		}
		if err := SaveTune(t.settings.TuneFile, t.settingID, rec); err != nil {
			t.logger.Warn("tuner",
				zap.String("Stat", "Failed saving tune"),
				zap.Error(err))
		}
	}
}

// SetSettingID records the tune-file key for this device; the driver
// calls this after reading the DNA and bitstream registers.
func (t *AutoTuner) SetSettingID(id string) {
	t.mu.Lock()
	t.settingID = id
	t.mu.Unlock()
}

// GetIntensitySettings returns a consistent triple; the search loop
// reads this once per work package.
func (t *AutoTuner) GetIntensitySettings() IntensitySettings {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.intensity
}

// HardwareErrorRate reports the fraction of polls that returned no
// hashing progress, a proxy for core instability.
func (t *AutoTuner) HardwareErrorRate() float64 {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.totalPolls == 0 {
		return 0
	}
	return float64(t.zeroPolls) / float64(t.totalPolls)
}

// TuningStage reports 0 when idle or settled, nonzero while the
// search is still running.
func (t *AutoTuner) TuningStage() uint8 {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.stage == stageSettled || t.stage == stageIdle {
		return 0
	}
	return t.stage
}

// ReadSavedTunes loads a persisted tune for settingID, applying the
// record to the device and settings. Returns true when found.
func (t *AutoTuner) ReadSavedTunes(path, settingID string) bool {
	rec, ok, err := LoadTune(path, settingID)
	if err != nil {
		t.logger.Warn("tuner",
			zap.String("Stat", "Failed reading tune file"),
			zap.Error(err))
		return false
	}
	if !ok {
		return false
	}
	t.mu.Lock()
	t.settingID = settingID
	t.intensity = IntensitySettings{
		Patience:   rec.Patience,
		IntensityN: rec.IntensityN,
		IntensityD: rec.IntensityD,
		set:        true,
	}
	t.curClk = rec.Clk
	t.stage = stageSettled
	t.mu.Unlock()
	t.dev.SetCoreClock(rec.Clk)
	t.logger.Info("tuner",
		zap.String("Stat", "Applied saved tune"),
		zap.Float64("Clk", rec.Clk))
	return true
}
