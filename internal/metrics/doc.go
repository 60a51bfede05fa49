// Package metrics counts what the event logger does with each event.
//
// A *Metrics value is an eventlog.Observer. For every event kind it tracks:
//   - events that passed the category filter
//   - events dropped by the filter
//   - parameter lists written with the non-JSON fallback
//   - appends that failed
//
// Example usage:
//
//	m := metrics.NewMetrics()
//	log := eventlog.New(opts, fileOpts, eventlog.WithObserver(m))
//
//	// ... log events ...
//
//	snapshot := m.Snapshot()
//
// Counters are guarded by a sync.RWMutex and are safe for concurrent use.
package metrics
