package driver

import "github.com/NextDesignSolutions/ethminer-sqrl/types"

// Driver is the surface the miner lifecycle consumes; *SQRL is the
// only implementation.
type Driver interface {
	Run() error
	Stop()
	Kick()
	Telemetry() (tempC, fanPrct, powerW uint32)
	GetDriverStats() types.DriverStates
	Name() string
}

var _ Driver = (*SQRL)(nil)
