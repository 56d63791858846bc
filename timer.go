package simplertos

import "sync/atomic"

// timerStatus mirrors the two states a software timer can be in.
type timerStatus uint8

const (
	timerDormant timerStatus = iota
	timerActive
)

// TimerCallback is invoked on the timer's own goroutine each time it
// fires.
type TimerCallback func(k *Kernel, h *TimerHandle, arg any)

// Timer is the kernel's internal software timer control block (component
// F). Each timer owns a dedicated goroutine, standing in for the
// reference design's single timer-service task that walks the shared
// time-wait list: here every timer gets its own worker so one slow
// callback can't delay another timer's firing, at the cost of one
// goroutine per timer.
type Timer struct {
	generation  uint32
	name        string
	periodTicks uint32
	autoReload  bool
	callback    TimerCallback
	arg         any

	status     timerStatus
	timeoutIdx int32

	running atomic.Bool // isTimerRunning: true while callback is executing

	fireCh chan struct{}
	stopCh chan struct{} // closed by TimerDelete to end the worker goroutine
}

// TimerHandle is the externally visible, generation-checked reference to
// a Timer.
type TimerHandle struct {
	k          *Kernel
	idx        int32
	generation uint32
}

func (k *Kernel) resolveTimer(h *TimerHandle) (*Timer, error) {
	if h == nil || h.k == nil {
		return nil, ErrNilHandle
	}
	if !k.timers.isUsed(int(h.idx)) {
		return nil, ErrTaskDeleted
	}
	t := k.timers.at(int(h.idx))
	if t.generation != h.generation {
		return nil, ErrTaskDeleted
	}
	return t, nil
}

// TimerCreate allocates a software timer. The timer starts Dormant; call
// TimerStart (via TimerResume) to arm it. periodMs is converted to ticks
// at the kernel's configured Sensibility, per MsToTicks.
func (k *Kernel) TimerCreate(name string, periodMs uint32, autoReload bool, cb TimerCallback, arg any) (*TimerHandle, Status) {
	if len(name) > MaxTaskNameLen {
		return nil, StatusError
	}
	if periodMs == 0 {
		return nil, StatusInvalidPeriod
	}

	k.crit.Lock()
	defer k.crit.Unlock()

	idx, ok := k.timers.alloc()
	if !ok {
		return nil, StatusTimerListFull
	}

	t := k.timers.at(idx)
	t.generation++
	t.name = name
	t.periodTicks = MsToTicks(periodMs, k.sensibility)
	t.autoReload = autoReload
	t.callback = cb
	t.arg = arg
	t.status = timerDormant
	t.timeoutIdx = -1
	t.running.Store(false)
	t.fireCh = make(chan struct{}, 1)
	t.stopCh = make(chan struct{})

	h := &TimerHandle{k: k, idx: int32(idx), generation: t.generation}
	go k.runTimer(idx, t.generation, t.fireCh, t.stopCh)

	k.log(LevelDebug, "timer", "created", 0, int64(idx), nil)
	return h, StatusOK
}

// runTimer is the timer's dedicated worker goroutine: it waits for fire
// signals and invokes the callback, clearing the running guard on return.
func (k *Kernel) runTimer(idx int, generation uint32, fireCh <-chan struct{}, stopCh chan struct{}) {
	h := &TimerHandle{k: k, idx: int32(idx), generation: generation}
	for {
		select {
		case <-stopCh:
			return
		case <-fireCh:
			t := k.timers.at(idx)
			cb, arg := t.callback, t.arg
			if cb != nil {
				cb(k, h, arg)
			}
			t.running.Store(false)
			k.metrics.TimersFired.Add(1)
		}
	}
}

// TimerStart arms a Dormant timer, scheduling its first firing
// periodTicks from now.
func (k *Kernel) TimerStart(h *TimerHandle) Status {
	k.crit.Lock()
	defer k.crit.Unlock()

	t, err := k.resolveTimer(h)
	if err != nil {
		return StatusError
	}
	if t.status == timerActive {
		return StatusOK
	}
	t.status = timerActive
	deadline := saturatingAdd(k.tickCount, t.periodTicks)
	t.timeoutIdx = k.timeWait.insert(timeoutTimer, h.idx, deadline)
	return StatusOK
}

// TimerStop disarms a timer without deleting it; a currently-executing
// callback is allowed to finish.
func (k *Kernel) TimerStop(h *TimerHandle) Status {
	k.crit.Lock()
	defer k.crit.Unlock()

	t, err := k.resolveTimer(h)
	if err != nil {
		return StatusError
	}
	if t.status != timerActive {
		return StatusOK
	}
	if t.timeoutIdx >= 0 {
		k.timeWait.removeEntry(t.timeoutIdx)
		t.timeoutIdx = -1
	}
	t.status = timerDormant
	return StatusOK
}

// TimerResume is an alias for TimerStart kept for symmetry with
// TaskResume/TaskStop naming in the reference API.
func (k *Kernel) TimerResume(h *TimerHandle) Status { return k.TimerStart(h) }

// TimerUpdatePeriod changes a timer's period. It takes effect the next
// time the timer is (re)armed; a currently-pending deadline is
// rescheduled immediately if the timer is Active.
func (k *Kernel) TimerUpdatePeriod(h *TimerHandle, periodMs uint32) Status {
	if periodMs == 0 {
		return StatusInvalidPeriod
	}
	k.crit.Lock()
	defer k.crit.Unlock()

	t, err := k.resolveTimer(h)
	if err != nil {
		return StatusError
	}
	t.periodTicks = MsToTicks(periodMs, k.sensibility)
	if t.status == timerActive {
		if t.timeoutIdx >= 0 {
			k.timeWait.removeEntry(t.timeoutIdx)
		}
		deadline := saturatingAdd(k.tickCount, t.periodTicks)
		t.timeoutIdx = k.timeWait.insert(timeoutTimer, h.idx, deadline)
	}
	return StatusOK
}

// TimerDelete frees a timer's slot and stops its worker goroutine. It
// fails with ErrTimerRunning if the timer's callback is currently
// executing; retry once the callback has returned.
func (k *Kernel) TimerDelete(h *TimerHandle) error {
	k.crit.Lock()
	t, err := k.resolveTimer(h)
	if err != nil {
		k.crit.Unlock()
		return err
	}
	if t.running.Load() {
		k.crit.Unlock()
		return ErrTimerRunning
	}
	if t.timeoutIdx >= 0 {
		k.timeWait.removeEntry(t.timeoutIdx)
	}
	stopCh := t.stopCh
	k.timers.release(int(h.idx))
	k.crit.Unlock()

	close(stopCh)
	k.log(LevelDebug, "timer", "deleted", 0, int64(h.idx), nil)
	return nil
}

// fireTimerLocked handles a due timer entry popped from the time-wait
// list. Called with k.crit already held (from Tick). Per the non-nesting
// guard, a timer already mid-callback has its reload rescheduled but its
// fire signal is dropped rather than queued, so slow callbacks skip
// beats instead of stacking up concurrent invocations.
func (k *Kernel) fireTimerLocked(owner int32, now uint32) {
	if !k.timers.isUsed(int(owner)) {
		return
	}
	t := k.timers.at(int(owner))
	if t.status != timerActive {
		return
	}
	t.timeoutIdx = -1

	if t.autoReload {
		deadline := saturatingAdd(now, t.periodTicks)
		t.timeoutIdx = k.timeWait.insert(timeoutTimer, owner, deadline)
	} else {
		t.status = timerDormant
	}

	if t.running.CompareAndSwap(false, true) {
		select {
		case t.fireCh <- struct{}{}:
		default:
			t.running.Store(false)
		}
	}
}
