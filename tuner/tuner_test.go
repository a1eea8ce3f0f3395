package tuner

import (
	"path/filepath"
	"testing"

	"github.com/NextDesignSolutions/ethminer-sqrl/types"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

type fakeDev struct {
	clk   float64
	temps [3]int
}

func (d *fakeDev) SetCoreClock(target float64) float64 {
	if target > 0 {
		d.clk = target
	}
	return d.clk
}

func (d *fakeDev) Temps() [3]int { return d.temps }

func TestTuneFileRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "sqrl.tune")
	rec := Record{Clk: 525.0, Patience: 4, IntensityN: 12, IntensityD: 2}
	require.NoError(t, SaveTune(path, "dna1_bs1_0.65_0.00", rec))

	got, ok, err := LoadTune(path, "dna1_bs1_0.65_0.00")
	require.NoError(t, err)
	require.True(t, ok)
	require.Equal(t, rec, got)

	_, ok, err = LoadTune(path, "other")
	require.NoError(t, err)
	require.False(t, ok)
}

func TestSaveTuneReplaces(t *testing.T) {
	path := filepath.Join(t.TempDir(), "sqrl.tune")
	require.NoError(t, SaveTune(path, "k", Record{Clk: 500}))
	require.NoError(t, SaveTune(path, "k", Record{Clk: 550}))
	got, ok, err := LoadTune(path, "k")
	require.NoError(t, err)
	require.True(t, ok)
	require.Equal(t, 550.0, got.Clk)
}

func TestLoadTuneMissingFile(t *testing.T) {
	_, ok, err := LoadTune(filepath.Join(t.TempDir(), "nope"), "k")
	require.NoError(t, err)
	require.False(t, ok)
}

func TestReadSavedTunesAppliesClock(t *testing.T) {
	path := filepath.Join(t.TempDir(), "sqrl.tune")
	require.NoError(t, SaveTune(path, "id", Record{Clk: 540, Patience: 3, IntensityN: 10, IntensityD: 1}))

	dev := &fakeDev{}
	settings := &types.Settings{AutoTune: 1, TuneFile: path}
	tn := New(zap.NewNop(), dev, settings)
	require.True(t, tn.ReadSavedTunes(path, "id"))
	require.Equal(t, 540.0, dev.clk)

	is := tn.GetIntensitySettings()
	require.True(t, is.IsSet())
	require.Equal(t, uint32(3), is.Patience)
	require.Equal(t, uint8(0), tn.TuningStage())
}

func TestTuneStepsWhileImproving(t *testing.T) {
	dev := &fakeDev{clk: 500, temps: [3]int{60, 50, 50}}
	settings := &types.Settings{AutoTune: 1}
	tn := New(zap.NewNop(), dev, settings)
	tn.StartTune(500)
	require.NotZero(t, tn.TuningStage())

	// First full window measures a nonzero rate, so the tuner steps up.
	for i := 0; i < sampleWindow; i++ {
		tn.Tune(1_000_000)
	}
	require.Equal(t, 500+clockStep, dev.clk)

	// A dead window settles back on the best clock.
	for i := 0; i < sampleWindow; i++ {
		tn.Tune(0)
	}
	require.Equal(t, uint8(0), tn.TuningStage())
	require.Equal(t, 500.0, dev.clk)
}

func TestThermalLimitSettles(t *testing.T) {
	dev := &fakeDev{clk: 500, temps: [3]int{90, 50, 50}}
	settings := &types.Settings{AutoTune: 1}
	tn := New(zap.NewNop(), dev, settings)
	tn.StartTune(500)
	for i := 0; i < sampleWindow; i++ {
		tn.Tune(1_000_000)
	}
	require.Equal(t, uint8(0), tn.TuningStage())
	require.Equal(t, 500.0, dev.clk)
}

func TestHardwareErrorRate(t *testing.T) {
	dev := &fakeDev{}
	tn := New(zap.NewNop(), dev, &types.Settings{})
	require.Equal(t, 0.0, tn.HardwareErrorRate())
	tn.Tune(100)
	tn.Tune(0)
	require.InDelta(t, 0.5, tn.HardwareErrorRate(), 1e-9)
}
