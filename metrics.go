package simplertos

import "sync/atomic"

// Metrics holds kernel-wide counters, atomically updated so they can be
// read concurrently with the kernel's own goroutines. Grounded on the
// counter style of the teacher's own metrics recorder: plain atomics
// behind named fields rather than a generic registry, since the set of
// counters here is small and fixed.
type Metrics struct {
	Ticks            atomic.Uint64
	ContextSwitches  atomic.Uint64
	TasksCreated     atomic.Uint64
	TasksDeleted     atomic.Uint64
	TimersFired      atomic.Uint64
	QueueSends       atomic.Uint64
	QueueReceives    atomic.Uint64
	MutexInversions  atomic.Uint64 // count of priority-inheritance boosts applied
	Notifications    atomic.Uint64
}

// Snapshot is a point-in-time, non-atomic copy of Metrics suitable for
// logging or export.
type Snapshot struct {
	Ticks           uint64
	ContextSwitches uint64
	TasksCreated    uint64
	TasksDeleted    uint64
	TimersFired     uint64
	QueueSends      uint64
	QueueReceives   uint64
	MutexInversions uint64
	Notifications   uint64
}

// Metrics returns a consistent-enough snapshot of the kernel's counters.
// Individual fields may be read a tick apart from one another; this is
// intended for periodic observability, not for synchronisation.
func (k *Kernel) Metrics() Snapshot {
	return Snapshot{
		Ticks:           k.metrics.Ticks.Load(),
		ContextSwitches: k.metrics.ContextSwitches.Load(),
		TasksCreated:    k.metrics.TasksCreated.Load(),
		TasksDeleted:    k.metrics.TasksDeleted.Load(),
		TimersFired:     k.metrics.TimersFired.Load(),
		QueueSends:      k.metrics.QueueSends.Load(),
		QueueReceives:   k.metrics.QueueReceives.Load(),
		MutexInversions: k.metrics.MutexInversions.Load(),
		Notifications:   k.metrics.Notifications.Load(),
	}
}
