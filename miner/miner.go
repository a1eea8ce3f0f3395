package miner

import (
	j "encoding/json"
	"net/http"
	"os"
	"time"

	"github.com/NextDesignSolutions/ethminer-sqrl/driver"
	"github.com/NextDesignSolutions/ethminer-sqrl/farm"
	"github.com/NextDesignSolutions/ethminer-sqrl/types"

	"github.com/gorilla/mux"
	"github.com/gorilla/rpc"
	"github.com/gorilla/rpc/json"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"golang.org/x/sync/errgroup"
)

var atom = zap.NewAtomicLevel()

func selectZapLevel(loglevel string) zapcore.Level {
	switch loglevel {
	case "debug":
		return zap.DebugLevel
	case "info":
		return zap.InfoLevel
	case "error":
		return zap.ErrorLevel
	default:
		return zap.InfoLevel
	}
}

func initLogger(loglevel string) *zap.Logger {
	encoderCfg := zap.NewProductionEncoderConfig()
	logger := zap.New(zapcore.NewCore(
		zapcore.NewJSONEncoder(encoderCfg),
		zapcore.Lock(os.Stdout),
		atom,
	))
	atom.SetLevel(selectZapLevel(loglevel))
	return logger
}

// Miner owns the farm dispatcher and one driver per enumerated
// device.
type Miner struct {
	Settings types.Settings

	WebEnable bool
	WebListen string
	LogLevel  string

	// TelemetryInterval is how often every device's telemetry is
	// sampled; zero means the 5-second default.
	TelemetryInterval time.Duration

	logger  *zap.Logger
	farm    *farm.Dispatcher
	drivers []*driver.SQRL
	quit    chan struct{}
}

// Farm exposes the dispatcher so an upstream pool client can push
// work and drain solutions.
func (m *Miner) Farm() *farm.Dispatcher { return m.farm }

// MinerMain enumerates devices, starts one mining goroutine per
// device plus the telemetry ticker, and serves the status API.
// Blocks until every device's work loop has returned, either after
// Halt or on its own error; the first error is returned.
func (m *Miner) MinerMain() error {
	m.logger = initLogger(m.LogLevel)
	defer m.logger.Sync()

	m.quit = make(chan struct{})
	m.farm = farm.NewDispatcher(m.logger)

	devices := driver.EnumDevices(&m.Settings)
	if len(devices) == 0 {
		m.logger.Error("miner", zap.String("Stat", "No devices configured"))
		return nil
	}

	var g errgroup.Group
	for i, dev := range devices {
		sq := driver.New(i, dev, &m.Settings, m.farm, m.logger)
		m.farm.RegisterMiner(sq.Kick)
		m.drivers = append(m.drivers, sq)
		g.Go(sq.Run)
	}

	go m.telemetryLoop()

	if m.WebEnable {
		go m.serveStatus()
	}

	err := g.Wait()
	close(m.quit)
	return err
}

// Halt stops every device; MinerMain returns once their work loops
// have exited.
func (m *Miner) Halt() {
	for _, sq := range m.drivers {
		sq.Stop()
	}
	m.farm.Shutdown()
}

// telemetryLoop is the external caller of each device's telemetry
// sampling.
func (m *Miner) telemetryLoop() {
	interval := m.TelemetryInterval
	if interval == 0 {
		interval = 5 * time.Second
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-m.quit:
			return
		case <-ticker.C:
			for _, sq := range m.drivers {
				sq.Telemetry()
			}
		}
	}
}

func (m *Miner) serveStatus() {
	s := rpc.NewServer()
	s.RegisterCodec(json.NewCodec(), "application/json")
	s.RegisterCodec(json.NewCodec(), "application/json;charset=UTF-8")
	s.RegisterService(m, "miner")
	r := mux.NewRouter()
	r.Handle("/rpc", s)
	r.HandleFunc("/sqrlminer/status", m.GetStatus)

	listen := m.WebListen
	if listen == "" {
		listen = ":1234"
	}
	if err := http.ListenAndServe(listen, r); err != nil {
		m.logger.Error("miner", zap.String("Stat", "Status API failed"), zap.Error(err))
	}
}

type MinerRPCArgs struct {
	Who string
}

type DriverRPCReply struct {
	DriverInfo string
}

// GetHardwareStats is the JSON-RPC view of every device.
func (m *Miner) GetHardwareStats(r *http.Request, args *MinerRPCArgs, reply *DriverRPCReply) error {
	var devsInfo []*types.DriverStates
	for _, sq := range m.drivers {
		ds := sq.GetDriverStats()
		devsInfo = append(devsInfo, &ds)
	}
	res, _ := j.Marshal(devsInfo)
	reply.DriverInfo = string(res)
	return nil
}

// GetStatus is the plain HTTP status endpoint.
func (m *Miner) GetStatus(w http.ResponseWriter, r *http.Request) {
	var devsInfo []*types.DriverStates
	for _, sq := range m.drivers {
		ds := sq.GetDriverStats()
		devsInfo = append(devsInfo, &ds)
	}
	data := &types.MinerStatus{
		Devs:    devsInfo,
		MinerUp: true,
		Time:    time.Now().Unix(),
	}
	w.Header().Set("Content-Type", "application/json")
	j.NewEncoder(w).Encode(data)
}

// SetLogLevel adjusts the process log level at runtime (config
// reload).
func (m *Miner) SetLogLevel(loglevel string) {
	atom.SetLevel(selectZapLevel(loglevel))
}
