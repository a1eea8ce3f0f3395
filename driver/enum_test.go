package driver

import (
	"fmt"
	"testing"

	"github.com/NextDesignSolutions/ethminer-sqrl/types"

	"github.com/stretchr/testify/require"
)

func TestEnumDevicesPortRange(t *testing.T) {
	settings := &types.Settings{Hosts: []string{"10.0.0.5:2000-2003"}, TargetClk: 550}
	devs := EnumDevices(settings)
	require.Len(t, devs, 4)
	for i, d := range devs {
		require.Equal(t, "10.0.0.5", d.Host)
		require.Equal(t, 2000+i, d.Port)
		require.Equal(t, fmt.Sprintf("sqrl-%d", i), d.UniqueID)
		require.Equal(t, types.DeviceTypeFpga, d.Type)
		require.Equal(t, uint64(8<<30), d.TotalMemory)
		require.Equal(t, 550.0, d.TargetClk)
	}
}

func TestEnumDevicesSingleHostDefaultPort(t *testing.T) {
	devs := EnumDevices(&types.Settings{Hosts: []string{"fpga.local"}})
	require.Len(t, devs, 1)
	require.Equal(t, "fpga.local", devs[0].Host)
	require.Equal(t, 2000, devs[0].Port)
	require.Equal(t, "SQRL TCP-FPGA (fpga.local:2000)", devs[0].Name)
}

func TestEnumDevicesMultipleHosts(t *testing.T) {
	devs := EnumDevices(&types.Settings{Hosts: []string{"a:2000", "b:2001"}})
	require.Len(t, devs, 2)
	require.Equal(t, "a", devs[0].Host)
	require.Equal(t, "b", devs[1].Host)
	require.Equal(t, 2001, devs[1].Port)
}
