package simplertos

import "sync/atomic"

// atomic32Status lets a test goroutine poll for a Status written exactly
// once by a task body running on its own goroutine, without racing on an
// untyped zero value (StatusOK is itself zero).
type atomic32Status struct {
	set   atomic.Bool
	value atomic.Int32
}

func (a *atomic32Status) store(s Status) {
	a.value.Store(int32(s))
	a.set.Store(true)
}

func (a *atomic32Status) loaded() bool { return a.set.Load() }

func (a *atomic32Status) get() Status { return Status(a.value.Load()) }
