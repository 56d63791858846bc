package simplertos

import "fmt"

// taskStatus is one of the five lifecycle states a TCB can occupy.
type taskStatus uint8

const (
	taskReady taskStatus = iota
	taskRunning
	taskBlocked
	taskWaiting
	taskDeleted
)

func (s taskStatus) String() string {
	switch s {
	case taskReady:
		return "Ready"
	case taskRunning:
		return "Running"
	case taskBlocked:
		return "Blocked"
	case taskWaiting:
		return "Waiting"
	case taskDeleted:
		return "Deleted"
	default:
		return "Unknown"
	}
}

// TaskFunc is the body of a task, invoked on its own goroutine. Unlike the
// hardware reference, returning from fn is not undefined behaviour; it is
// treated the same as the task calling TaskDelete on itself (the kernel's
// equivalent of the noreturn task_return trampoline, minus the "must not
// return" constraint raw hardware stacks impose).
type TaskFunc func(k *Kernel, self *TaskHandle, arg any)

// Task is the kernel's internal task control block. Its address is stable
// for the lifetime of the owning Kernel's arena (see slotArena), but a
// TaskHandle should always be used from outside the package so that a
// handle outliving Delete is reliably detected.
type Task struct {
	generation uint32
	name       string
	arg        any
	fn         TaskFunc

	priority         int
	originalPriority int
	fpu              bool
	stackWords       int
	stack            []uint32 // owning "stack region"; unused for execution

	status     taskStatus
	next, prev int32 // readySet intrusive links; -1 when not linked
	timeoutIdx int32 // time-wait entry index; -1 when not waiting

	hasNotification     bool
	notificationMessage uint32
	notifyBoosted       bool // true while priority is raised by a pending notification

	resume chan struct{} // context-switch handshake: kernel -> task
	done   chan struct{} // closed once the wrapping goroutine has exited

	selfDelete bool
}

// TaskHandle is the externally-visible, generation-checked reference to a
// Task. Handles returned by TaskCreate become invalid after TaskDelete;
// using one past that point returns ErrTaskDeleted.
type TaskHandle struct {
	k          *Kernel
	idx        int32
	generation uint32
}

// Name returns the task's debug label.
func (h *TaskHandle) Name() (string, error) {
	t, err := h.k.resolveTask(h)
	if err != nil {
		return "", err
	}
	return t.name, nil
}

// Priority returns the task's current (possibly inheritance-boosted)
// priority.
func (h *TaskHandle) Priority() (int, error) {
	t, err := h.k.resolveTask(h)
	if err != nil {
		return 0, err
	}
	return t.priority, nil
}

// resolveTask validates h against the live arena slot and returns the
// backing Task, or ErrNilHandle / ErrTaskDeleted.
func (k *Kernel) resolveTask(h *TaskHandle) (*Task, error) {
	if h == nil || h.k == nil {
		return nil, ErrNilHandle
	}
	if !k.tasks.isUsed(int(h.idx)) {
		return nil, ErrTaskDeleted
	}
	t := k.tasks.at(int(h.idx))
	if t.generation != h.generation {
		return nil, ErrTaskDeleted
	}
	return t, nil
}

// TaskCreate allocates a stack, seeds the task's control block, and
// inserts it into the ready set at priority. The task's goroutine is
// spawned immediately but parks until the scheduler actually dispatches
// it; fn only begins executing once the returned handle has been selected
// to run.
func (k *Kernel) TaskCreate(fn TaskFunc, name string, arg any, stackWords int, priority int, fpu bool) (*TaskHandle, Status) {
	if len(name) > MaxTaskNameLen {
		return nil, StatusError
	}
	if priority < PriorityMin || priority > PriorityMax {
		return nil, StatusError
	}
	minWords := MinStackSizeNoFPU
	if fpu {
		minWords = MinStackSizeFPU
	}
	if stackWords < minWords {
		return nil, StatusInvalidStackSize
	}
	baseWords := BaseContextWordsNoFPU
	if fpu {
		baseWords = BaseContextWordsFPU
	}
	totalWords := stackWords + baseWords

	k.crit.Lock()
	defer k.crit.Unlock()

	if !k.stackBudget.alloc(totalWords) {
		return nil, StatusAllocationFailed
	}
	idx, ok := k.tasks.alloc()
	if !ok {
		k.stackBudget.free(totalWords)
		return nil, StatusAllocationFailed
	}

	t := k.tasks.at(idx)
	t.generation++
	t.name = name
	t.arg = arg
	t.fn = fn
	t.priority = priority
	t.originalPriority = priority
	t.fpu = fpu
	t.stackWords = totalWords
	t.stack = make([]uint32, totalWords)
	t.status = taskReady
	t.timeoutIdx = -1
	t.hasNotification = false
	t.selfDelete = false
	t.resume = make(chan struct{}, 1)
	t.done = make(chan struct{})

	k.ready.insert(k.tasks, idx)
	k.metrics.TasksCreated.Add(1)

	h := &TaskHandle{k: k, idx: int32(idx), generation: t.generation}
	go k.runTask(idx, t.generation)

	k.log(LevelDebug, "task", fmt.Sprintf("created %q prio=%d", name, priority), int64(idx), 0, nil)
	return h, StatusOK
}

// runTask is the goroutine wrapper standing in for the hardware's seeded
// initial exception frame: it parks until first dispatched, runs fn to
// completion (or until the task self-deletes from within fn), then tears
// the task down.
func (k *Kernel) runTask(idx int, generation uint32) {
	t := k.tasks.at(idx)
	<-t.resume

	h := &TaskHandle{k: k, idx: int32(idx), generation: generation}
	t.fn(k, h, t.arg)

	k.taskDelete(h, true)
	close(t.done)
}

// TaskUpdatePriority changes a task's base priority, re-bucketing it if
// currently ready/running. The new value also becomes its effective
// priority immediately, replacing any inheritance boost in effect.
func (k *Kernel) TaskUpdatePriority(h *TaskHandle, newPriority int) Status {
	if newPriority < PriorityMin || newPriority > PriorityMax {
		return StatusError
	}
	k.crit.Lock()
	defer k.crit.Unlock()

	t, err := k.resolveTask(h)
	if err != nil {
		return StatusError
	}
	t.originalPriority = newPriority
	k.setTaskPriorityLocked(h.idx, newPriority)
	return StatusOK
}

// setTaskPriorityLocked changes a task's effective priority and, if it's
// currently linked into the ready set (Ready or Running both stay linked
// there; see readySet), re-buckets it so the bitmap and bucket lists stay
// consistent. Callers must hold k.crit. Used both by TaskUpdatePriority
// and by mutex priority inheritance, which boosts/restores a holder's
// effective priority without touching its originalPriority.
func (k *Kernel) setTaskPriorityLocked(idx int32, newPriority int) {
	t := k.tasks.at(int(idx))
	if t.priority == newPriority {
		return
	}
	if t.status == taskReady || t.status == taskRunning {
		k.ready.remove(k.tasks, int(idx))
		t.priority = newPriority
		k.ready.insert(k.tasks, int(idx))
	} else {
		t.priority = newPriority
	}
}

// TaskStop forces a task to Blocked, removing it from the ready set or
// time-wait list as appropriate. If h is the running task, it yields
// immediately afterwards.
func (k *Kernel) TaskStop(h *TaskHandle) Status {
	k.crit.Lock()
	t, err := k.resolveTask(h)
	if err != nil {
		k.crit.Unlock()
		return StatusError
	}
	self := k.current == int32(h.idx)
	switch t.status {
	case taskBlocked, taskDeleted:
		k.crit.Unlock()
		return StatusOK
	case taskWaiting:
		k.timeWait.removeEntry(t.timeoutIdx)
		t.timeoutIdx = -1
	default: // Ready or Running
		k.ready.remove(k.tasks, int(h.idx))
	}
	t.status = taskBlocked
	k.crit.Unlock()

	if self {
		k.TaskYield(h)
	}
	return StatusOK
}

// TaskResume makes a Blocked or Waiting task Ready again. If its priority
// now exceeds the running task's, the caller yields so the higher-priority
// task can be dispatched immediately.
func (k *Kernel) TaskResume(h *TaskHandle) Status {
	k.crit.Lock()
	t, err := k.resolveTask(h)
	if err != nil {
		k.crit.Unlock()
		return StatusError
	}
	if t.status != taskBlocked && t.status != taskWaiting {
		k.crit.Unlock()
		return StatusOK
	}
	if t.status == taskWaiting && t.timeoutIdx >= 0 {
		k.timeWait.removeEntry(t.timeoutIdx)
		t.timeoutIdx = -1
	}
	t.status = taskReady
	k.ready.insert(k.tasks, int(h.idx))

	// insert puts the resumed task at the head of its bucket, so dispatch
	// would also switch to an equal-priority task; only yield when it
	// strictly outranks the running one.
	outranks := k.current >= 0 && k.tasks.isUsed(int(k.current)) &&
		t.priority > k.tasks.at(int(k.current)).priority
	k.crit.Unlock()

	if outranks {
		k.dispatch()
	}
	return StatusOK
}

// TaskDelete unlinks and frees a task. If it targets the caller (pass the
// caller's own handle), it never returns: the goroutine is torn down as
// part of the same yield that hands off the CPU.
func (k *Kernel) TaskDelete(h *TaskHandle) Status {
	return k.taskDelete(h, false)
}

func (k *Kernel) taskDelete(h *TaskHandle, viaReturn bool) Status {
	k.crit.Lock()
	t, err := k.resolveTask(h)
	if err != nil {
		k.crit.Unlock()
		return StatusOK
	}
	self := k.current == int32(h.idx)

	switch t.status {
	case taskWaiting:
		if t.timeoutIdx >= 0 {
			k.timeWait.removeEntry(t.timeoutIdx)
			t.timeoutIdx = -1
		}
	case taskReady, taskRunning:
		k.ready.remove(k.tasks, int(h.idx))
	}
	t.status = taskDeleted
	words := t.stackWords
	k.stackBudget.free(words)
	k.tasks.release(int(h.idx))
	if self {
		k.current = -1
	}
	k.metrics.TasksDeleted.Add(1)
	k.crit.Unlock()

	k.log(LevelDebug, "task", "deleted", int64(h.idx), 0, nil)

	if self {
		// current was already cleared above, so dispatch() only signals the
		// next task; it never blocks a caller it doesn't recognise as current.
		k.dispatch()
		if !viaReturn {
			<-make(chan struct{}) // park forever: the deleted task's fn must not resume executing
		}
	}
	return StatusOK
}

// TaskDelay blocks the calling task until at least ms milliseconds (at the
// kernel's configured Sensibility) have elapsed.
func (k *Kernel) TaskDelay(h *TaskHandle, ms uint32) Status {
	k.crit.Lock()
	t, err := k.resolveTask(h)
	if err != nil {
		k.crit.Unlock()
		return StatusError
	}
	ticks := MsToTicks(ms, k.sensibility)
	deadline := saturatingAdd(k.tickCount, ticks)

	k.ready.remove(k.tasks, int(h.idx))
	t.status = taskWaiting
	t.timeoutIdx = k.timeWait.insert(timeoutTask, int32(h.idx), deadline)
	k.crit.Unlock()

	// dispatch() parks this goroutine on t.resume internally (it recognises
	// h.idx as the outgoing current task) until something makes it Ready
	// again: the tick loop waking the deadline, or an explicit TaskResume.
	k.dispatch()
	return StatusOK
}

// TaskYield runs a scheduler pass unconditionally, the Go-level equivalent
// of an `svc #0` trap. The caller keeps running if it is still the head of
// the highest non-empty bucket; TaskYield neither rotates the bucket nor
// resets the caller's quantum itself. Round-robin rotation among
// equal-priority peers is arranged by Tick; TaskYield is simply the
// cooperative point at which that rotation (or any pending preemption) is
// allowed to take effect.
func (k *Kernel) TaskYield(h *TaskHandle) {
	if _, err := k.resolveTask(h); err != nil {
		return
	}
	k.dispatch()
}
