package driver

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/NextDesignSolutions/ethminer-sqrl/types"
)

const (
	defaultPort = 2000
	// Boards carry 8 GiB of HBM; there is no way to query it over
	// the bridge, so enumeration reports a fixed hint.
	totalBoardMemory = 8 << 30
)

// EnumDevices expands the configured host specs into one logical
// device per board. A single spec of the form "host:start-end" fans
// out into one device per port in the range.
func EnumDevices(settings *types.Settings) []types.DeviceDescriptor {
	hosts := settings.Hosts
	if len(hosts) == 1 {
		s := hosts[0]
		colon := strings.Index(s, ":")
		dash := strings.Index(s, "-")
		if colon >= 0 && dash > colon {
			ip := s[:colon]
			ports := strings.SplitN(s[colon+1:], "-", 2)
			startPort, err1 := strconv.Atoi(ports[0])
			endPort, err2 := strconv.Atoi(ports[1])
			if err1 == nil && err2 == nil {
				hosts = nil
				for p := startPort; p <= endPort; p++ {
					hosts = append(hosts, fmt.Sprintf("%s:%d", ip, p))
				}
			}
		}
	}

	devices := make([]types.DeviceDescriptor, 0, len(hosts))
	for i, h := range hosts {
		host := h
		port := defaultPort
		if colon := strings.Index(h, ":"); colon >= 0 {
			host = h[:colon]
			if p, err := strconv.Atoi(h[colon+1:]); err == nil {
				port = p
			}
		}
		devices = append(devices, types.DeviceDescriptor{
			Host:        host,
			Port:        port,
			Name:        fmt.Sprintf("SQRL TCP-FPGA (%s:%d)", host, port),
			UniqueID:    fmt.Sprintf("sqrl-%d", i),
			Type:        types.DeviceTypeFpga,
			TotalMemory: totalBoardMemory,
			TargetClk:   settings.TargetClk,
		})
	}
	return devices
}
