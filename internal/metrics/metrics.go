package metrics

import (
	"sync"
	"time"

	"github.com/angeloszaimis/ormlog/internal/eventlog"
)

// Metrics counts event logger decisions per event kind.
type Metrics struct {
	mutex          sync.RWMutex
	emitted        map[eventlog.EventKind]int64
	suppressed     map[eventlog.EventKind]int64
	fallbacks      map[eventlog.EventKind]int64
	appendFailures map[eventlog.EventKind]int64
	startTime      time.Time
}

type Snapshot struct {
	TotalEmitted    int64                  `json:"total_emitted"`
	TotalSuppressed int64                  `json:"total_suppressed"`
	TotalFailures   int64                  `json:"total_failures"`
	Uptime          time.Duration          `json:"uptime"`
	Kinds           map[string]KindMetrics `json:"kinds"`
}

type KindMetrics struct {
	Emitted            int64 `json:"emitted"`
	Suppressed         int64 `json:"suppressed"`
	SerializeFallbacks int64 `json:"serialize_fallbacks"`
	AppendFailures     int64 `json:"append_failures"`
}

var _ eventlog.Observer = (*Metrics)(nil)

func NewMetrics() *Metrics {
	return &Metrics{
		emitted:        make(map[eventlog.EventKind]int64),
		suppressed:     make(map[eventlog.EventKind]int64),
		fallbacks:      make(map[eventlog.EventKind]int64),
		appendFailures: make(map[eventlog.EventKind]int64),
		startTime:      time.Now(),
	}
}

func (m *Metrics) Emitted(kind eventlog.EventKind) {
	m.mutex.Lock()
	defer m.mutex.Unlock()
	m.emitted[kind]++
}

func (m *Metrics) Suppressed(kind eventlog.EventKind) {
	m.mutex.Lock()
	defer m.mutex.Unlock()
	m.suppressed[kind]++
}

func (m *Metrics) SerializeFallback(kind eventlog.EventKind) {
	m.mutex.Lock()
	defer m.mutex.Unlock()
	m.fallbacks[kind]++
}

func (m *Metrics) AppendFailed(kind eventlog.EventKind) {
	m.mutex.Lock()
	defer m.mutex.Unlock()
	m.appendFailures[kind]++
}

func (m *Metrics) Snapshot() Snapshot {
	m.mutex.RLock()
	defer m.mutex.RUnlock()

	snap := Snapshot{
		Uptime: time.Since(m.startTime),
		Kinds:  make(map[string]KindMetrics),
	}

	// Collect every kind seen by any counter
	allKinds := make(map[eventlog.EventKind]bool)
	for _, counters := range []map[eventlog.EventKind]int64{m.emitted, m.suppressed, m.fallbacks, m.appendFailures} {
		for kind := range counters {
			allKinds[kind] = true
		}
	}

	for kind := range allKinds {
		km := KindMetrics{
			Emitted:            m.emitted[kind],
			Suppressed:         m.suppressed[kind],
			SerializeFallbacks: m.fallbacks[kind],
			AppendFailures:     m.appendFailures[kind],
		}

		snap.TotalEmitted += km.Emitted
		snap.TotalSuppressed += km.Suppressed
		snap.TotalFailures += km.AppendFailures
		snap.Kinds[kind.String()] = km
	}

	return snap
}
