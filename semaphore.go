package simplertos

// Semaphore is a counting semaphore (component G). Take and
// CooperativeTake both translate the reference's busy-poll wait loop: in
// a cooperative goroutine scheduler, a wait that never yields would never
// let the giver run, so both variants re-check the count on a
// TaskYield-driven poll loop. They take the same timeoutMs bound and behave
// identically; CooperativeTake simply calls Take.
type Semaphore struct {
	generation uint32
	count      int
	max        int
}

// SemaphoreHandle is the externally visible, generation-checked reference
// to a Semaphore.
type SemaphoreHandle struct {
	k          *Kernel
	idx        int32
	generation uint32
}

func (k *Kernel) resolveSemaphore(h *SemaphoreHandle) (*Semaphore, error) {
	if h == nil || h.k == nil {
		return nil, ErrNilHandle
	}
	if !k.semaphores.isUsed(int(h.idx)) {
		return nil, ErrTaskDeleted
	}
	s := k.semaphores.at(int(h.idx))
	if s.generation != h.generation {
		return nil, ErrTaskDeleted
	}
	return s, nil
}

// SemaphoreCreate allocates a counting semaphore with the given initial
// count and maximum count.
func (k *Kernel) SemaphoreCreate(initial, max int) (*SemaphoreHandle, Status) {
	if max <= 0 || initial < 0 || initial > max {
		return nil, StatusError
	}
	k.crit.Lock()
	defer k.crit.Unlock()

	idx, ok := k.semaphores.alloc()
	if !ok {
		return nil, StatusAllocationFailed
	}
	s := k.semaphores.at(idx)
	s.generation++
	s.count = initial
	s.max = max

	return &SemaphoreHandle{k: k, idx: int32(idx), generation: s.generation}, StatusOK
}

// SemaphoreGive increments the count, up to max.
func (k *Kernel) SemaphoreGive(h *SemaphoreHandle) Status {
	k.crit.Lock()
	defer k.crit.Unlock()

	s, err := k.resolveSemaphore(h)
	if err != nil {
		return StatusError
	}
	if s.count < s.max {
		s.count++
	}
	return StatusOK
}

// SemaphoreTake attempts to decrement the count, polling (and yielding the
// caller's own quantum) until it succeeds or the deadline derived from
// timeoutMs passes. A zero timeoutMs is a single poll: the deadline is
// already reached on the first check, so an unavailable count fails
// immediately without ever yielding, matching the reference's
// SAT_ADD(now, 0) == now boundary.
func (k *Kernel) SemaphoreTake(self *TaskHandle, h *SemaphoreHandle, timeoutMs uint32) Status {
	k.crit.Lock()
	deadline := saturatingAdd(k.tickCount, MsToTicks(timeoutMs, k.sensibility))
	k.crit.Unlock()

	for {
		k.crit.Lock()
		s, err := k.resolveSemaphore(h)
		if err != nil {
			k.crit.Unlock()
			return StatusError
		}
		if s.count > 0 {
			s.count--
			k.crit.Unlock()
			return StatusOK
		}
		now := k.tickCount
		k.crit.Unlock()

		if now >= deadline {
			return StatusError
		}
		k.TaskYield(self)
	}
}

// SemaphoreCooperativeTake is identical to SemaphoreTake except that it is
// always the yielding variant, matching the reference's
// sRTOSSemaphoreCooperativeTake(sem, timeoutTicks): it takes the same
// timeoutMs parameter (a zero timeout polls exactly once) rather than
// being a distinct always-blocking call. SemaphoreTake already yields on
// every retry in this cooperative scheduler (see the type doc on
// Semaphore), so the two converge; CooperativeTake is kept as a named
// entry point for API parity with the reference.
func (k *Kernel) SemaphoreCooperativeTake(self *TaskHandle, h *SemaphoreHandle, timeoutMs uint32) Status {
	return k.SemaphoreTake(self, h, timeoutMs)
}
