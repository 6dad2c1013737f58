// Package traffic turns interface byte counters into bandwidth rates and
// polls the router for them.
package traffic

import (
	"sync"
	"time"
)

// Sample is the last counter reading of one interface
type Sample struct {
	Interface string
	Timestamp time.Time
	RxBytes   uint64
	TxBytes   uint64
}

// Rate is a bandwidth estimate in megabits per second
type Rate struct {
	Download float64 `json:"download"`
	Upload   float64 `json:"upload"`
}

// Estimator keeps one sample per interface and derives rates from the
// difference between consecutive observations. Samples live in memory only.
type Estimator struct {
	mu      sync.Mutex
	samples map[string]Sample
	now     func() time.Time
}

// NewEstimator creates an estimator using the wall clock
func NewEstimator() *Estimator {
	return NewEstimatorWithClock(time.Now)
}

// NewEstimatorWithClock creates an estimator reading time from now
func NewEstimatorWithClock(now func() time.Time) *Estimator {
	return &Estimator{
		samples: make(map[string]Sample),
		now:     now,
	}
}

// Observe records the counters of name and returns the rate since the
// previous observation. The first observation of an interface is zero.
func (e *Estimator) Observe(name string, rxBytes, txBytes uint64) Rate {
	current := Sample{Interface: name, Timestamp: e.now(), RxBytes: rxBytes, TxBytes: txBytes}

	e.mu.Lock()
	prior, ok := e.samples[name]
	e.samples[name] = current
	e.mu.Unlock()

	if !ok {
		return Rate{}
	}

	elapsed := current.Timestamp.Sub(prior.Timestamp).Seconds()
	if elapsed <= 0 {
		return Rate{}
	}

	return Rate{
		Download: mbps(prior.RxBytes, current.RxBytes, elapsed),
		Upload:   mbps(prior.TxBytes, current.TxBytes, elapsed),
	}
}

// Last returns the stored sample of name
func (e *Estimator) Last(name string) (Sample, bool) {
	e.mu.Lock()
	defer e.mu.Unlock()
	s, ok := e.samples[name]
	return s, ok
}

// Forget drops the sample of name
func (e *Estimator) Forget(name string) {
	e.mu.Lock()
	delete(e.samples, name)
	e.mu.Unlock()
}

// mbps clamps counter resets to zero
func mbps(prior, current uint64, seconds float64) float64 {
	if current <= prior {
		return 0
	}
	return float64(current-prior) * 8 / seconds / 1_000_000
}
