package types

// Settings is the full configuration surface for the SQRL driver.
// Patience, IntensityN and IntensityD may be overridden at runtime by
// the auto-tuner; everything else is immutable after startup.
type Settings struct {
	Hosts []string `json:"hosts" mapstructure:"hosts"`

	AXITimeoutMs uint32 `json:"axitimeoutms" mapstructure:"axitimeoutms"`
	WorkDelay    uint32 `json:"workdelay" mapstructure:"workdelay"` // microseconds

	Patience   uint32 `json:"patience" mapstructure:"patience"`
	IntensityN uint32 `json:"intensityn" mapstructure:"intensityn"`
	IntensityD uint32 `json:"intensityd" mapstructure:"intensityd"`

	// Fixed at bitstream generation time, carried for convenience.
	DagMixers uint32 `json:"dagmixers" mapstructure:"dagmixers"`

	ForceDAG           bool `json:"forcedag" mapstructure:"forcedag"`
	SkipDAG            bool `json:"skipdag" mapstructure:"skipdag"`
	SkipStallDetection bool `json:"skipstalldetection" mapstructure:"skipstalldetection"`
	DieOnError         bool `json:"dieonerror" mapstructure:"dieonerror"`
	ShowHBMStats       bool `json:"showhbmstats" mapstructure:"showhbmstats"`

	TargetClk float64 `json:"targetclk" mapstructure:"targetclk"` // MHz, applied after DAG
	TuneFile  string  `json:"tunefile" mapstructure:"tunefile"`
	AutoTune  int     `json:"autotune" mapstructure:"autotune"`

	FkVCCINT uint32 `json:"fkvccint" mapstructure:"fkvccint"` // mV
	JcVCCINT uint32 `json:"jcvccint" mapstructure:"jcvccint"` // mV
}

// DeviceType tags a logical mining device.
type DeviceType int

const (
	DeviceTypeUnknown DeviceType = iota
	DeviceTypeFpga
)

// DeviceDescriptor describes one logical device produced by
// enumeration. Immutable after creation.
type DeviceDescriptor struct {
	Host        string
	Port        int
	Name        string
	UniqueID    string
	Type        DeviceType
	TotalMemory uint64
	TargetClk   float64
}

type HardwareStats int

const (
	Connecting HardwareStats = iota + 1
	Dagging
	Running
	HBMFault
	Stopped
)

func (h HardwareStats) String() string {
	switch h {
	case Connecting:
		return "connecting"
	case Dagging:
		return "dagging"
	case Running:
		return "running"
	case HBMFault:
		return "hbmfault"
	case Stopped:
		return "stopped"
	}
	return "unknown"
}

// DriverStates is the per-device status snapshot exposed over the
// JSON API.
type DriverStates struct {
	DriverName  string        `json:"name"`
	Status      HardwareStats `json:"status"`
	Temperature int           `json:"temperature"`
	HBMTemps    [2]int        `json:"hbmtemps"`
	Voltage     float64       `json:"voltage"`
	CoreClk     float64       `json:"coreclk"`
	Hashrate    [4]float64    `json:"hashrate"` // 1m, 10m, 60m MH/s, err%
	RawMhs      float64       `json:"rawmhs"`   // last minute of raw target checks
	Epoch       int           `json:"epoch"`
	Algo        string        `json:"algo"`
}

type MinerStatus struct {
	Devs      []*DriverStates `json:"devs"`
	MinerUp   bool            `json:"minerUp"`
	MinerDown bool            `json:"minerDown"`
	Time      int64           `json:"time"`
}
