package driver

import "time"

// processHashrateAverages folds one poll's target-check delta into
// the rolling 1/10/60-minute averages. Samples outside (10, 100)
// MH/s are flukes (core resets, relocks) and are kept out of the
// long windows.
func (sq *SQRL) processHashrateAverages(newTChks uint64) {
	sq.hashCounter += newTChks

	// Per-second series behind the status API's raw rate.
	sq.secCounter += newTChks
	if time.Since(sq.secTimer) >= time.Second {
		sq.hr.Add(float64(sq.secCounter))
		sq.secCounter = 0
		sq.secTimer = time.Now()
	}

	if time.Since(sq.avgHashTimer) <= time.Minute {
		return
	}

	avg1min := float64(sq.hashCounter/60) / 1e6
	errorRate := sq.tuner.HardwareErrorRate() * 100

	sq.avgMu.Lock()
	if avg1min > 10 && avg1min < 100 {
		sq.hash10min.Push(avg1min)
		sq.hash60min.Push(avg1min)
	}
	sq.avgValues[0] = avg1min
	sq.avgValues[1] = sq.hash10min.Mean()
	sq.avgValues[2] = sq.hash60min.Mean()
	sq.avgValues[3] = errorRate
	sq.avgMu.Unlock()

	sq.avgHashTimer = time.Now()
	sq.hashCounter = 0
}

// AverageHashrates returns the four public average slots: 1m, 10m,
// 60m MH/s and the tuner's error rate in percent.
func (sq *SQRL) AverageHashrates() [4]float64 {
	sq.avgMu.Lock()
	defer sq.avgMu.Unlock()
	return sq.avgValues
}
