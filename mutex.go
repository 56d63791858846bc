package simplertos

// Mutex is a binary, priority-inheriting mutual-exclusion lock (component
// G): a semaphore of capacity 1 plus holder and requester. Its inheritance
// rule matches the reference design: while a higher priority task waits on
// a mutex held by a lower priority one, the holder is temporarily boosted
// to the waiter's priority, and restored to its own base priority on
// release.
type Mutex struct {
	generation uint32
	locked     bool
	holder     int32 // task slot index, -1 when unlocked
	requester  int32 // last task that began waiting, -1 when none
}

// MutexHandle is the externally visible, generation-checked reference to
// a Mutex.
type MutexHandle struct {
	k          *Kernel
	idx        int32
	generation uint32
}

func (k *Kernel) resolveMutex(h *MutexHandle) (*Mutex, error) {
	if h == nil || h.k == nil {
		return nil, ErrNilHandle
	}
	if !k.mutexes.isUsed(int(h.idx)) {
		return nil, ErrTaskDeleted
	}
	m := k.mutexes.at(int(h.idx))
	if m.generation != h.generation {
		return nil, ErrTaskDeleted
	}
	return m, nil
}

// MutexCreate allocates an unlocked mutex.
func (k *Kernel) MutexCreate() (*MutexHandle, Status) {
	k.crit.Lock()
	defer k.crit.Unlock()

	idx, ok := k.mutexes.alloc()
	if !ok {
		return nil, StatusAllocationFailed
	}
	m := k.mutexes.at(idx)
	m.generation++
	m.locked = false
	m.holder = -1
	m.requester = -1

	return &MutexHandle{k: k, idx: int32(idx), generation: m.generation}, StatusOK
}

// MutexTake acquires the mutex, blocking (and yielding) while it's held by
// another task, until a deadline (when timeoutMs is non-zero) passes. A
// zero timeoutMs polls exactly once, per the same convention as
// SemaphoreTake/QueueSend/QueueReceive/TaskNotifyTake. self is recorded as
// the mutex's requester immediately, before the wait loop, per the
// reference design; while blocked, priority inheritance is realised
// through the same notification mechanism TaskNotify uses: if self
// outranks the current holder's effective priority, a priority-raise
// notification is posted to the holder, boosting it to self's priority for
// the duration of the wait. MutexGive consumes that boost on release.
func (k *Kernel) MutexTake(self *TaskHandle, h *MutexHandle, timeoutMs uint32) Status {
	k.crit.Lock()
	m, err := k.resolveMutex(h)
	if err != nil {
		k.crit.Unlock()
		return StatusError
	}
	m.requester = self.idx
	deadline := saturatingAdd(k.tickCount, MsToTicks(timeoutMs, k.sensibility))
	k.crit.Unlock()

	for {
		k.crit.Lock()
		m, err := k.resolveMutex(h)
		if err != nil {
			k.crit.Unlock()
			return StatusError
		}
		if !m.locked {
			m.locked = true
			m.holder = self.idx
			if m.requester == self.idx {
				m.requester = -1
			}
			// A prior give may have posted self a priority-raise
			// notification while self was still waiting; now that the
			// mutex is actually granted, consume it rather than leave
			// self boosted for the rest of its critical section.
			if k.tasks.isUsed(int(self.idx)) {
				t := k.tasks.at(int(self.idx))
				if t.notifyBoosted {
					t.hasNotification = false
					t.notifyBoosted = false
					k.setTaskPriorityLocked(self.idx, t.originalPriority)
				}
			}
			k.crit.Unlock()
			return StatusOK
		}

		if k.tasks.isUsed(int(m.holder)) && k.tasks.isUsed(int(self.idx)) {
			requester := k.tasks.at(int(self.idx))
			holder := k.tasks.at(int(m.holder))
			if requester.priority > holder.priority {
				k.pushNotificationLocked(m.holder, 0, requester.priority)
				k.metrics.MutexInversions.Add(1)
			}
		}
		now := k.tickCount
		k.crit.Unlock()

		if now >= deadline {
			return StatusError
		}
		k.TaskYield(self)
	}
}

// MutexGive releases the mutex: only the current holder may release it
// (failing with ErrNotOwner otherwise). On release it posts a
// priority-raise notification to the recorded requester at the releaser's
// own (possibly boosted) priority, so the waiter becomes eligible to run
// immediately, restores the releaser's own base priority, and yields so
// the waiter can be dispatched.
func (k *Kernel) MutexGive(self *TaskHandle, h *MutexHandle) error {
	k.crit.Lock()

	m, err := k.resolveMutex(h)
	if err != nil {
		k.crit.Unlock()
		return err
	}
	if !m.locked || m.holder != self.idx {
		k.crit.Unlock()
		return ErrNotOwner
	}

	if k.tasks.isUsed(int(self.idx)) {
		t := k.tasks.at(int(self.idx))
		if m.requester >= 0 && k.tasks.isUsed(int(m.requester)) {
			k.pushNotificationLocked(m.requester, 0, t.priority)
		}
		t.hasNotification = false
		t.notifyBoosted = false
		k.setTaskPriorityLocked(self.idx, t.originalPriority)
	}
	m.locked = false
	m.holder = -1

	k.crit.Unlock()
	k.TaskYield(self)
	return nil
}

// MutexGiveFromISR force-releases a mutex without an ownership check, for
// recovery paths invoked outside task context. It does not validate
// ownership, restores the outgoing holder's own recorded originalPriority,
// and posts the priority-raise notification to the requester at
// PriorityMax, matching the reference's ISR variant which always boosts
// the waiter to the maximum priority since there's no "current task" whose
// priority could be handed off. It cannot yield, since ISR context has no
// task of its own to park.
func (k *Kernel) MutexGiveFromISR(h *MutexHandle) Status {
	k.crit.Lock()
	defer k.crit.Unlock()

	m, err := k.resolveMutex(h)
	if err != nil {
		return StatusError
	}
	if m.holder >= 0 && k.tasks.isUsed(int(m.holder)) {
		holder := k.tasks.at(int(m.holder))
		holder.hasNotification = false
		holder.notifyBoosted = false
		k.setTaskPriorityLocked(m.holder, holder.originalPriority)
	}
	if m.requester >= 0 && k.tasks.isUsed(int(m.requester)) {
		k.pushNotificationLocked(m.requester, 0, PriorityMax)
	}
	m.locked = false
	m.holder = -1
	return StatusOK
}
