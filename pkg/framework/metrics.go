package framework

import (
	"math"
	"runtime"
	"sync"
	"sync/atomic"
	"time"
)

// StageMetrics collects run-time bookkeeping of a single stage.
// All methods are safe on a nil receiver.
type StageMetrics struct {
	name     string
	priority int
	cpu      int

	busy       atomic.Int64
	iterations atomic.Uint64
	highWater  atomic.Int64
}

// Name returns the stage name.
func (m *StageMetrics) Name() string {
	if m == nil {
		return ""
	}
	return m.name
}

// Priority returns the stage priority label.
func (m *StageMetrics) Priority() int {
	if m == nil {
		return PrLvIdle
	}
	return m.priority
}

// CPU returns the stage CPU affinity.
func (m *StageMetrics) CPU() int {
	if m == nil {
		return NoAffinity
	}
	return m.cpu
}

// Track accounts one iteration which started at start.
func (m *StageMetrics) Track(start time.Time) {
	if m == nil {
		return
	}
	m.busy.Add(int64(time.Since(start)))
	m.iterations.Add(1)
}

// Mark records an observed backlog depth.
func (m *StageMetrics) Mark(depth int) {
	if m == nil {
		return
	}
	for {
		cur := m.highWater.Load()
		if int64(depth) <= cur || m.highWater.CompareAndSwap(cur, int64(depth)) {
			return
		}
	}
}

// Busy returns the accumulated busy time.
func (m *StageMetrics) Busy() time.Duration {
	if m == nil {
		return 0
	}
	return time.Duration(m.busy.Load())
}

// Iterations returns the number of tracked iterations.
func (m *StageMetrics) Iterations() uint64 {
	if m == nil {
		return 0
	}
	return m.iterations.Load()
}

// HighWater returns the largest backlog depth marked.
func (m *StageMetrics) HighWater() int {
	if m == nil {
		return 0
	}
	return int(m.highWater.Load())
}

// StageRecord is a point in time view of a stage, or of the idle
// time when Idle is set.
type StageRecord struct {
	Name       string
	Idle       bool
	RunTime    uint32 // microseconds, wraps
	Percent    uint32
	HighWater  uint32
	Iterations uint64
}

// Metrics holds StageMetrics of all stages in registration order.
type Metrics struct {
	start   time.Time
	lock    sync.RWMutex
	stages  []*StageMetrics
	minFree atomic.Uint64
}

// NewMetrics creates Metrics with uptime starting now.
func NewMetrics() *Metrics {
	m := &Metrics{start: time.Now()}
	m.minFree.Store(math.MaxUint64)
	return m
}

// Stage registers a stage and returns its StageMetrics.
func (m *Metrics) Stage(name string, priority, cpu int) *StageMetrics {
	s := &StageMetrics{name: name, priority: priority, cpu: cpu}
	m.lock.Lock()
	m.stages = append(m.stages, s)
	m.lock.Unlock()
	return s
}

// Len returns the number of registered stages.
func (m *Metrics) Len() int {
	m.lock.RLock()
	defer m.lock.RUnlock()
	return len(m.stages)
}

// At returns the stage at index i, or nil.
func (m *Metrics) At(i int) *StageMetrics {
	m.lock.RLock()
	defer m.lock.RUnlock()
	if i < 0 || i >= len(m.stages) {
		return nil
	}
	return m.stages[i]
}

// Uptime returns the time since NewMetrics.
func (m *Metrics) Uptime() time.Duration {
	return time.Since(m.start)
}

// SampleMemory updates the minimum free heap observed.
func (m *Metrics) SampleMemory() uint64 {
	var ms runtime.MemStats
	runtime.ReadMemStats(&ms)
	var free uint64
	if ms.HeapSys > ms.HeapAlloc {
		free = ms.HeapSys - ms.HeapAlloc
	}
	for {
		cur := m.minFree.Load()
		if free >= cur || m.minFree.CompareAndSwap(cur, free) {
			break
		}
	}
	return m.minFree.Load()
}

// Record returns the record of stage i. Index Len() is reserved for the
// idle record: time not spent in any stage and the minimum free heap as
// high-water mark. Larger indices are invalid.
func (m *Metrics) Record(i int) (StageRecord, bool) {
	uptime := m.Uptime()
	m.lock.RLock()
	stages := m.stages
	m.lock.RUnlock()
	switch {
	case i >= 0 && i < len(stages):
		s := stages[i]
		return StageRecord{
			Name:       s.name,
			RunTime:    micros(s.Busy()),
			Percent:    percent(s.Busy(), uptime),
			HighWater:  clamp32(uint64(s.HighWater())),
			Iterations: s.Iterations(),
		}, true
	case i == len(stages):
		idle := uptime
		for _, s := range stages {
			idle -= s.Busy()
		}
		if idle < 0 {
			idle = 0
		}
		return StageRecord{
			Name:      "idle",
			Idle:      true,
			RunTime:   micros(idle),
			Percent:   percent(idle, uptime),
			HighWater: clamp32(m.SampleMemory()),
		}, true
	}
	return StageRecord{}, false
}

func micros(d time.Duration) uint32 {
	return uint32(d / time.Microsecond)
}

func percent(d, total time.Duration) uint32 {
	if total <= 0 {
		return 0
	}
	if d >= total {
		return 100
	}
	return uint32(uint64(d) * 100 / uint64(total))
}

func clamp32(v uint64) uint32 {
	if v > math.MaxUint32 {
		return math.MaxUint32
	}
	return uint32(v)
}
