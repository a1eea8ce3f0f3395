package miner

import (
	"encoding/json"
	"net/http/httptest"
	"testing"

	"github.com/NextDesignSolutions/ethminer-sqrl/types"

	"github.com/davecgh/go-spew/spew"
	"github.com/spf13/viper"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func TestSelectZapLevel(t *testing.T) {
	require.Equal(t, zap.DebugLevel, selectZapLevel("debug"))
	require.Equal(t, zap.InfoLevel, selectZapLevel("info"))
	require.Equal(t, zap.ErrorLevel, selectZapLevel("error"))
	require.Equal(t, zap.InfoLevel, selectZapLevel("bogus"))
}

func TestGetStatusJSON(t *testing.T) {
	m := &Miner{}
	rec := httptest.NewRecorder()
	m.GetStatus(rec, httptest.NewRequest("GET", "/sqrlminer/status", nil))

	require.Equal(t, "application/json", rec.Header().Get("Content-Type"))
	var status types.MinerStatus
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &status))
	require.True(t, status.MinerUp)
	require.NotZero(t, status.Time)
}

func TestSettingsUnmarshal(t *testing.T) {
	v := viper.New()
	v.Set("hosts", []string{"10.0.0.5:2000-2003"})
	v.Set("axitimeoutms", 1500)
	v.Set("workdelay", 100000)
	v.Set("dagmixers", 8)
	v.Set("forcedag", true)
	v.Set("fkvccint", 650)
	v.Set("tunefile", "/var/lib/sqrl.tune")

	var settings types.Settings
	require.NoError(t, v.Unmarshal(&settings))
	t.Log(spew.Sdump(settings))

	require.Equal(t, []string{"10.0.0.5:2000-2003"}, settings.Hosts)
	require.Equal(t, uint32(1500), settings.AXITimeoutMs)
	require.Equal(t, uint32(100000), settings.WorkDelay)
	require.Equal(t, uint32(8), settings.DagMixers)
	require.True(t, settings.ForceDAG)
	require.Equal(t, uint32(650), settings.FkVCCINT)
	require.Equal(t, "/var/lib/sqrl.tune", settings.TuneFile)
}
