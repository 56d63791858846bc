package simplertos

import "math/bits"

// readySet is the per-priority ready-to-run structure: one circular
// doubly-linked bucket per priority level, plus a bitmap for O(1)
// highest-priority lookup. Link fields live on the Task itself (task.next,
// task.prev, slot indices into the Kernel's task arena) rather than in a
// separate node type, matching the intrusive-list design of the reference
// implementation, adapted to stable slot indices instead of raw pointers.
type readySet struct {
	bitmap uint32
	heads  [MaxTaskPriorityCount]int32 // -1 == bucket empty
}

func newReadySet() *readySet {
	rs := &readySet{}
	for i := range rs.heads {
		rs.heads[i] = -1
	}
	return rs
}

// insert adds the task at idx to the head position of its priority bucket.
func (rs *readySet) insert(tasks *slotArena[Task], idx int) {
	t := tasks.at(idx)
	p := priorityIndex(t.priority)
	head := rs.heads[p]
	if head < 0 {
		t.next, t.prev = int32(idx), int32(idx)
		rs.heads[p] = int32(idx)
		rs.bitmap |= 1 << uint(p)
		return
	}
	headTask := tasks.at(int(head))
	tailIdx := headTask.prev
	tailTask := tasks.at(int(tailIdx))

	t.next = head
	t.prev = tailIdx
	headTask.prev = int32(idx)
	tailTask.next = int32(idx)
	rs.heads[p] = int32(idx)
}

// remove unlinks the task at idx from whatever bucket it's in.
func (rs *readySet) remove(tasks *slotArena[Task], idx int) {
	t := tasks.at(idx)
	p := priorityIndex(t.priority)
	if t.next == int32(idx) {
		rs.heads[p] = -1
		rs.bitmap &^= 1 << uint(p)
	} else {
		prevTask := tasks.at(int(t.prev))
		nextTask := tasks.at(int(t.next))
		prevTask.next = t.next
		nextTask.prev = t.prev
		if rs.heads[p] == int32(idx) {
			rs.heads[p] = t.next
		}
	}
	t.next, t.prev = -1, -1
}

// rotate advances bucket p's head to its successor, realising round-robin
// among equal-priority tasks.
func (rs *readySet) rotate(tasks *slotArena[Task], p int) {
	head := rs.heads[p]
	if head < 0 {
		return
	}
	rs.heads[p] = tasks.at(int(head)).next
}

// pickHighest returns the index of the highest non-empty bucket (count
// leading zeros of the 32-bit bitmap, from the high end).
func (rs *readySet) pickHighest() (p int, ok bool) {
	if rs.bitmap == 0 {
		return 0, false
	}
	return bits.Len32(rs.bitmap) - 1, true
}

// headOf returns the current head slot index of bucket p, or -1.
func (rs *readySet) headOf(p int) int32 { return rs.heads[p] }

// isEmpty reports whether the bitmap has no bits set.
func (rs *readySet) isEmpty() bool { return rs.bitmap == 0 }
