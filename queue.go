package simplertos

// Queue is a bounded FIFO message queue (component I), backed by a fixed
// ring buffer sized at creation. Send and Receive block (via the same
// yield-polling pattern as Semaphore) while full or empty respectively.
type Queue struct {
	generation uint32
	buf        []any
	head       int
	count      int
}

// QueueHandle is the externally visible, generation-checked reference to
// a Queue.
type QueueHandle struct {
	k          *Kernel
	idx        int32
	generation uint32
}

func (k *Kernel) resolveQueue(h *QueueHandle) (*Queue, error) {
	if h == nil || h.k == nil {
		return nil, ErrNilHandle
	}
	if !k.queues.isUsed(int(h.idx)) {
		return nil, ErrTaskDeleted
	}
	q := k.queues.at(int(h.idx))
	if q.generation != h.generation {
		return nil, ErrTaskDeleted
	}
	return q, nil
}

// QueueCreate allocates a queue with room for capacity items.
func (k *Kernel) QueueCreate(capacity int) (*QueueHandle, Status) {
	if capacity <= 0 {
		return nil, StatusError
	}
	k.crit.Lock()
	defer k.crit.Unlock()

	idx, ok := k.queues.alloc()
	if !ok {
		return nil, StatusAllocationFailed
	}
	q := k.queues.at(idx)
	q.generation++
	q.buf = make([]any, capacity)
	q.head = 0
	q.count = 0

	return &QueueHandle{k: k, idx: int32(idx), generation: q.generation}, StatusOK
}

// QueueSend blocks (yielding) while the queue is full, until room appears
// or the deadline derived from timeoutMs passes. A zero timeoutMs polls
// exactly once: a full queue fails immediately rather than blocking,
// matching the other blocking primitives' timeout convention.
func (k *Kernel) QueueSend(self *TaskHandle, h *QueueHandle, item any, timeoutMs uint32) Status {
	k.crit.Lock()
	deadline := saturatingAdd(k.tickCount, MsToTicks(timeoutMs, k.sensibility))
	k.crit.Unlock()

	for {
		k.crit.Lock()
		q, err := k.resolveQueue(h)
		if err != nil {
			k.crit.Unlock()
			return StatusError
		}
		if q.count < len(q.buf) {
			tail := (q.head + q.count) % len(q.buf)
			q.buf[tail] = item
			q.count++
			k.crit.Unlock()
			k.metrics.QueueSends.Add(1)
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

// QueueSendFromISR performs a non-blocking send, failing immediately
// (rather than blocking, which ISR context can't do) if the queue is
// full.
func (k *Kernel) QueueSendFromISR(h *QueueHandle, item any) Status {
	k.crit.Lock()
	defer k.crit.Unlock()

	q, err := k.resolveQueue(h)
	if err != nil {
		return StatusError
	}
	if q.count >= len(q.buf) {
		return StatusError
	}
	tail := (q.head + q.count) % len(q.buf)
	q.buf[tail] = item
	q.count++
	k.metrics.QueueSends.Add(1)
	return StatusOK
}

// QueueReceive blocks (yielding) while the queue is empty, until an item
// arrives or the deadline derived from timeoutMs passes. A zero timeoutMs
// polls exactly once: an empty queue fails immediately rather than
// blocking.
func (k *Kernel) QueueReceive(self *TaskHandle, h *QueueHandle, timeoutMs uint32) (any, Status) {
	k.crit.Lock()
	deadline := saturatingAdd(k.tickCount, MsToTicks(timeoutMs, k.sensibility))
	k.crit.Unlock()

	for {
		k.crit.Lock()
		q, err := k.resolveQueue(h)
		if err != nil {
			k.crit.Unlock()
			return nil, StatusError
		}
		if q.count > 0 {
			item := q.buf[q.head]
			q.buf[q.head] = nil
			q.head = (q.head + 1) % len(q.buf)
			q.count--
			k.crit.Unlock()
			k.metrics.QueueReceives.Add(1)
			return item, StatusOK
		}
		now := k.tickCount
		k.crit.Unlock()

		if now >= deadline {
			return nil, StatusError
		}
		k.TaskYield(self)
	}
}
