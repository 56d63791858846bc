package simplertos

// Each task carries a single notification slot directly on its TCB
// (component H): a pending boolean and a uint32 message, rather than a
// separately allocated object. Pushing a notification to a task whose
// priority is lower than the notifier's raises the target's priority,
// the same inversion-avoidance trick mutexes use; NotifyTake restores the
// target's own base priority once it consumes the notification. The
// reference source conditions the message assignment on an apparently
// inverted `message == NULL` check; this corrects that so the message is
// always stored.

// pushNotificationLocked stores message on the target task and raises its
// priority to notifierPriority if that's higher than its current
// effective priority. Callers must hold k.crit.
func (k *Kernel) pushNotificationLocked(targetIdx int32, message uint32, notifierPriority int) {
	t := k.tasks.at(int(targetIdx))
	t.hasNotification = true
	t.notificationMessage = message
	if notifierPriority > t.priority {
		t.notifyBoosted = true
		k.setTaskPriorityLocked(targetIdx, notifierPriority)
	}
}

// TaskNotify posts message to target's notification slot, boosting its
// priority to self's if self outranks it.
func (k *Kernel) TaskNotify(self *TaskHandle, target *TaskHandle, message uint32) Status {
	k.crit.Lock()
	defer k.crit.Unlock()

	if _, err := k.resolveTask(target); err != nil {
		return StatusError
	}
	notifierPriority := PriorityMin
	if self != nil {
		if t, err := k.resolveTask(self); err == nil {
			notifierPriority = t.priority
		}
	}
	k.pushNotificationLocked(target.idx, message, notifierPriority)
	return StatusOK
}

// TaskNotifyFromISR posts message to target's notification slot at
// PriorityMax, matching the reference's ISR variant which always boosts
// to the maximum priority since there's no "current task" to compare
// against.
func (k *Kernel) TaskNotifyFromISR(target *TaskHandle, message uint32) Status {
	k.crit.Lock()
	defer k.crit.Unlock()

	if _, err := k.resolveTask(target); err != nil {
		return StatusError
	}
	k.pushNotificationLocked(target.idx, message, PriorityMax)
	return StatusOK
}

// TaskNotifyTake blocks until a notification arrives or the deadline
// derived from timeoutMs passes, returning the message and clearing the
// slot. A zero timeoutMs polls exactly once: a task with no pending
// notification fails immediately rather than blocking. If the priority
// was boosted by the pending notification, it's restored to the task's
// own base priority.
func (k *Kernel) TaskNotifyTake(self *TaskHandle, timeoutMs uint32) (uint32, Status) {
	k.crit.Lock()
	deadline := saturatingAdd(k.tickCount, MsToTicks(timeoutMs, k.sensibility))
	k.crit.Unlock()

	for {
		k.crit.Lock()
		t, err := k.resolveTask(self)
		if err != nil {
			k.crit.Unlock()
			return 0, StatusError
		}
		if t.hasNotification {
			message := t.notificationMessage
			t.hasNotification = false
			if t.notifyBoosted {
				t.notifyBoosted = false
				k.setTaskPriorityLocked(self.idx, t.originalPriority)
			}
			k.crit.Unlock()
			k.metrics.Notifications.Add(1)
			return message, StatusOK
		}
		now := k.tickCount
		k.crit.Unlock()

		if now >= deadline {
			return 0, StatusError
		}
		k.TaskYield(self)
	}
}
