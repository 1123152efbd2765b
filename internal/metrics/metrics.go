package metrics

import (
	"sync"
	"time"
)

// Recorder is the instrumentation surface used by ingestion, retrieval and
// the tool server. The default recorder discards everything.
type Recorder interface {
	// ObserveIngest records nodes written per label and edges written per
	// relationship description for one import.
	ObserveIngest(nodes, edges map[string]int)
	IncCounter(name string, success bool)
	ObserveDuration(op string, success bool, seconds float64)
}

type noopRecorder struct{}

func (noopRecorder) ObserveIngest(map[string]int, map[string]int) {}
func (noopRecorder) IncCounter(string, bool)                      {}
func (noopRecorder) ObserveDuration(string, bool, float64)        {}

var (
	recMu    sync.RWMutex
	recorder Recorder = noopRecorder{}
)

// Default returns the current recorder.
func Default() Recorder {
	recMu.RLock()
	defer recMu.RUnlock()
	return recorder
}

// SetRecorder swaps the global recorder. A nil recorder restores the no-op.
func SetRecorder(r Recorder) {
	recMu.Lock()
	defer recMu.Unlock()
	if r == nil {
		r = noopRecorder{}
	}
	recorder = r
}

// Time starts timing op; call the returned func with the outcome.
func Time(op string) func(success bool) {
	start := time.Now()
	return func(success bool) {
		r := Default()
		r.IncCounter(op, success)
		r.ObserveDuration(op, success, time.Since(start).Seconds())
	}
}
