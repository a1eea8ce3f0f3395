// Package farm provides the contract between miners and the upstream
// work source, plus an in-process dispatcher that fans work out to
// registered devices and collects solutions.
package farm

import (
	"sync"

	"github.com/NextDesignSolutions/ethminer-sqrl/mining"

	"go.uber.org/zap"
)

// WorkProvider supplies the most recent work package for a miner to
// mine on.
type WorkProvider interface {
	// Work returns the current package; ok is false when no work has
	// arrived yet.
	Work() (w mining.WorkPackage, ok bool)
}

// SolutionSink receives candidate solutions found by a device.
type SolutionSink interface {
	SubmitSolution(sol mining.Solution)
}

// Farm is the combined surface a miner needs.
type Farm interface {
	WorkProvider
	SolutionSink
}

// KickFunc interrupts a miner's idle wait and any in-progress search.
type KickFunc func()

// Dispatcher is a process-local Farm. New work replaces the current
// package and kicks every registered miner.
type Dispatcher struct {
	logger *zap.Logger

	mu      sync.Mutex
	current mining.WorkPackage
	haveW   bool
	kicks   []KickFunc

	solMu     sync.Mutex
	solutions []mining.Solution
	onSol     func(mining.Solution)
}

func NewDispatcher(logger *zap.Logger) *Dispatcher {
	return &Dispatcher{logger: logger}
}

// RegisterMiner adds a kick callback invoked on every new work
// package and on shutdown.
func (d *Dispatcher) RegisterMiner(kick KickFunc) {
	d.mu.Lock()
	d.kicks = append(d.kicks, kick)
	d.mu.Unlock()
}

// OnSolution installs a callback for harvested solutions (e.g. the
// upstream pool client). Without one, solutions are retained for
// inspection.
func (d *Dispatcher) OnSolution(fn func(mining.Solution)) {
	d.solMu.Lock()
	d.onSol = fn
	d.solMu.Unlock()
}

// PushWork makes w the current package and kicks all miners.
func (d *Dispatcher) PushWork(w mining.WorkPackage) {
	d.mu.Lock()
	d.current = w
	d.haveW = true
	kicks := append([]KickFunc(nil), d.kicks...)
	d.mu.Unlock()

	d.logger.Info("farm",
		zap.String("Stat", "New work"),
		zap.String("Job", w.Abridged()),
		zap.Int("Epoch", w.Epoch))
	for _, kick := range kicks {
		kick()
	}
}

func (d *Dispatcher) Work() (mining.WorkPackage, bool) {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.current, d.haveW
}

// SubmitSolution accepts a candidate nonce. SQRL devices deliver no
// mix-hash, so sol.MixHash is zero here.
func (d *Dispatcher) SubmitSolution(sol mining.Solution) {
	d.logger.Info("farm",
		zap.String("Stat", "Solution"),
		zap.Uint64("Nonce", sol.Nonce),
		zap.String("Job", sol.Work.Abridged()),
		zap.Int("Miner", sol.MinerIndex))
	d.solMu.Lock()
	if d.onSol != nil {
		fn := d.onSol
		d.solMu.Unlock()
		fn(sol)
		return
	}
	d.solutions = append(d.solutions, sol)
	d.solMu.Unlock()
}

// Solutions drains the retained solutions.
func (d *Dispatcher) Solutions() []mining.Solution {
	d.solMu.Lock()
	defer d.solMu.Unlock()
	out := d.solutions
	d.solutions = nil
	return out
}

// Shutdown kicks every miner so their idle waits notice stop flags.
func (d *Dispatcher) Shutdown() {
	d.mu.Lock()
	kicks := append([]KickFunc(nil), d.kicks...)
	d.mu.Unlock()
	for _, kick := range kicks {
		kick()
	}
}

var _ Farm = (*Dispatcher)(nil)
