// Package simplertos implements the core of a small preemptive, fixed-priority
// real-time kernel: a ready set with round-robin scheduling among equal
// priorities, a shared time-wait list driving task delays and software
// timers, and the synchronization primitives (semaphores, priority-inherit
// mutexes, task notifications, bounded queues) built on top of them.
//
// # Architecture
//
// A [Kernel] owns all scheduling state: the per-priority ready buckets and
// bitmap ([readySet]), the sorted time-wait list ([timeWaitList]) shared by
// task delays and timers, and the currently-running task. Every mutation of
// that state happens inside a critical region (Kernel.crit), mirroring the
// global interrupt-disable region of the original hardware design.
//
// Tasks are goroutines, not OS threads with hand-rolled register contexts:
// the reference hardware's SysTick/PendSV trap pair (save callee-saved
// registers, swap stack pointers, return from exception) has no safe
// equivalent for an arbitrary, already-running Go goroutine, so a task's
// context switch is modelled instead as a channel handshake (see
// Kernel.dispatch and Task.resume). A task voluntarily gives up the CPU by
// calling [Kernel.TaskYield], [Kernel.TaskDelay], or any of the blocking
// synchronization calls; the scheduler itself only ever runs one task's
// user code at a time between those checkpoints. This is the single
// largest semantic adaptation from the hardware design, and is recorded in
// DESIGN.md.
//
// # Execution model
//
// [Kernel.Tick] plays the role of the SysTick handler: it advances the tick
// counter, drains due entries from the time-wait list (waking delayed tasks,
// firing timers), and rotates the running priority's bucket once its
// round-robin quantum has elapsed. Tick never itself performs a context
// switch — see Kernel.dispatch's doc comment for why — it only arranges for
// the rotation to take effect at the running task's next yield point.
// [Kernel.TaskYield] plays the role of the `svc #0` trap, and is where
// Kernel.dispatch actually consults the ready set and performs the
// (simulated) context switch.
package simplertos
