package simplertos

import "sync"

// Kernel is the single top-level scheduler value: it owns the task arena,
// ready set, shared time-wait list, timer table, and all cross-cutting
// bookkeeping under one critical-region lock, per the re-architecture
// notes (a single Kernel value replaces scattered global scheduler state).
//
// Genuine preemption of a running goroutine isn't something Go exposes
// safely, so "the currently running task" is cooperative: a task only
// actually stops running at a call into the kernel that can yield
// (TaskYield, TaskDelay, or a blocking semaphore/mutex/queue/notification
// wait). Tick and the FromISR family only perform bookkeeping — waking
// waiters, raising priorities, arranging the next round-robin rotation —
// and never themselves force a running task off the CPU; the effect is
// observed at that task's next cooperative yield point. This is the
// kernel's one deliberate and documented departure from the hardware
// reference's asynchronous SysTick-driven preemption.
type Kernel struct {
	crit sync.Mutex

	tasks      *slotArena[Task]
	timers     *slotArena[Timer]
	semaphores *slotArena[Semaphore]
	mutexes    *slotArena[Mutex]
	queues     *slotArena[Queue]
	ready      *readySet

	timeWait *timeWaitList

	current          int32 // slot index of the running task, -1 before Start
	tickCount        uint32
	quantum          uint32
	quantumRemaining uint32

	sensibility Sensibility
	logger      Logger

	stackBudget *stackBudget

	metrics Metrics
}

// New constructs a Kernel and its always-present idle task (priority
// PriorityIdle), ready for Start.
func New(opts ...Option) (*Kernel, error) {
	cfg, err := resolveOptions(opts)
	if err != nil {
		return nil, err
	}

	k := &Kernel{
		tasks:       newSlotArena[Task](cfg.maxTasks),
		timers:      newSlotArena[Timer](cfg.maxTimers),
		semaphores:  newSlotArena[Semaphore](cfg.maxTasks),
		mutexes:     newSlotArena[Mutex](cfg.maxTasks),
		queues:      newSlotArena[Queue](cfg.maxTasks),
		ready:       newReadySet(),
		timeWait:    newTimeWaitList(cfg.maxTasks + cfg.maxTimers),
		current:     -1,
		quantum:     cfg.quantum,
		sensibility: cfg.sensibility,
		logger:      cfg.logger,
		stackBudget: newStackBudget(totalWordBudget(cfg.maxTasks)),
	}

	if _, status := k.TaskCreate(idleTaskFn, "idle", nil, MinStackSizeNoFPU, PriorityIdle, false); status != StatusOK {
		return nil, status
	}

	k.log(LevelInfo, "kernel", "initialised", 0, 0, nil)
	return k, nil
}

// totalWordBudget sizes the simulated stack allocator generously enough
// that MaxTasks tasks at the smallest legal stack can always be created,
// while still making StatusAllocationFailed reachable under pressure.
func totalWordBudget(maxTasks int) int {
	return maxTasks * (MinStackSizeFPU + BaseContextWordsFPU + 64)
}

// idleTaskFn is the always-runnable lowest-priority task, ensuring the
// ready set is never empty once Start has been called.
func idleTaskFn(k *Kernel, self *TaskHandle, _ any) {
	for {
		k.TaskYield(self)
	}
}

// Start performs the first dispatch, handing control to whichever task is
// currently highest priority (ordinarily the idle task, unless
// higher-priority tasks were already created). Start returns immediately;
// the dispatched tasks run concurrently on their own goroutines,
// coordinated through the kernel's critical region and Tick.
func (k *Kernel) Start() {
	k.dispatch()
}

// TickCount returns the number of Tick calls observed so far.
func (k *Kernel) TickCount() uint32 {
	k.crit.Lock()
	defer k.crit.Unlock()
	return k.tickCount
}

// Tick advances the kernel's notion of time by one tick: due task delays
// and software timers are woken/fired, and the running task's quantum is
// decremented, rotating its priority bucket when it expires. Tick is the
// Go-level stand-in for the SysTick handler; call it from a dedicated
// driver goroutine (e.g. on a time.Ticker) at the configured Sensibility.
//
// Tick never itself switches the CPU away from whatever task is running:
// it only arranges for that to happen at the running task's next yield
// point, per the cooperative-scheduling limitation documented on Kernel.
func (k *Kernel) Tick() {
	k.crit.Lock()

	k.tickCount++
	now := k.tickCount

	for k.timeWait.peekDue(now) {
		kind, owner, ok := k.timeWait.popFirst()
		if !ok {
			break
		}
		switch kind {
		case timeoutTask:
			if k.tasks.isUsed(int(owner)) {
				t := k.tasks.at(int(owner))
				if t.status == taskWaiting {
					t.status = taskReady
					t.timeoutIdx = -1
					k.ready.insert(k.tasks, int(owner))
				}
			}
		case timeoutTimer:
			k.fireTimerLocked(owner, now)
		}
	}

	if k.current >= 0 && k.tasks.isUsed(int(k.current)) {
		if k.quantumRemaining > 0 {
			k.quantumRemaining--
		}
		if k.quantumRemaining == 0 {
			cur := k.tasks.at(int(k.current))
			k.ready.rotate(k.tasks, priorityIndex(cur.priority))
			k.quantumRemaining = k.quantum
		}
	}

	k.metrics.Ticks.Add(1)
	k.crit.Unlock()
}

// dispatch re-evaluates the highest-priority ready task against the
// currently running one and, if they differ, switches the CPU marker and
// signals the new task's goroutine. The caller is always either the
// outgoing current task's own goroutine (in which case dispatch parks it
// on its resume channel until it's scheduled again) or the pre-Start boot
// goroutine (k.current == -1, nothing to park). It returns whether a
// switch occurred.
func (k *Kernel) dispatch() bool {
	k.crit.Lock()

	callerIdx := k.current
	nextIdx := int32(-1)
	if p, ok := k.ready.pickHighest(); ok {
		nextIdx = k.ready.headOf(p)
	}

	if nextIdx == callerIdx {
		k.crit.Unlock()
		return false
	}

	var callerTask *Task
	if callerIdx >= 0 && k.tasks.isUsed(int(callerIdx)) {
		callerTask = k.tasks.at(int(callerIdx))
		if callerTask.status == taskRunning {
			callerTask.status = taskReady
		}
	}

	k.current = nextIdx
	var nextTask *Task
	if nextIdx >= 0 {
		nextTask = k.tasks.at(int(nextIdx))
		nextTask.status = taskRunning
		k.quantumRemaining = k.quantum
	}
	k.metrics.ContextSwitches.Add(1)
	k.crit.Unlock()

	if nextTask != nil {
		nextTask.resume <- struct{}{}
	}
	if callerTask != nil {
		<-callerTask.resume
	}
	return true
}
