package simplertos

import (
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestTimerOneShotFiresOnce(t *testing.T) {
	k := newTestKernel(t, WithSensibility(Sensibility1kHz))

	var fired atomic.Int64
	th, status := k.TimerCreate("once", 5, false, func(k *Kernel, h *TimerHandle, _ any) {
		fired.Add(1)
	}, nil)
	require.Equal(t, StatusOK, status)
	require.Equal(t, StatusOK, k.TimerStart(th))

	for i := 0; i < 40; i++ {
		k.Tick()
	}

	require.Eventually(t, func() bool { return fired.Load() >= 1 }, time.Second, time.Millisecond)
	time.Sleep(10 * time.Millisecond)
	require.Equal(t, int64(1), fired.Load(), "a one-shot timer must not reload itself")
}

func TestTimerStopPreventsFurtherFires(t *testing.T) {
	k := newTestKernel(t, WithSensibility(Sensibility1kHz))

	var fired atomic.Int64
	th, status := k.TimerCreate("stoppable", 5, true, func(k *Kernel, h *TimerHandle, _ any) {
		fired.Add(1)
	}, nil)
	require.Equal(t, StatusOK, status)
	require.Equal(t, StatusOK, k.TimerStart(th))

	for i := 0; i < 12; i++ {
		k.Tick()
	}
	require.Eventually(t, func() bool { return fired.Load() >= 1 }, time.Second, time.Millisecond)

	require.Equal(t, StatusOK, k.TimerStop(th))
	countAtStop := fired.Load()
	for i := 0; i < 50; i++ {
		k.Tick()
	}
	time.Sleep(5 * time.Millisecond)
	require.Equal(t, countAtStop, fired.Load(), "a stopped timer must not fire again")
}

func TestTimerDeleteRejectsWhileCallbackRunning(t *testing.T) {
	k := newTestKernel(t, WithSensibility(Sensibility1kHz))

	enter := make(chan struct{})
	release := make(chan struct{})
	th, status := k.TimerCreate("slow", 5, false, func(k *Kernel, h *TimerHandle, _ any) {
		close(enter)
		<-release
	}, nil)
	require.Equal(t, StatusOK, status)
	require.Equal(t, StatusOK, k.TimerStart(th))

	for i := 0; i < 10; i++ {
		k.Tick()
	}
	<-enter

	err := k.TimerDelete(th)
	require.ErrorIs(t, err, ErrTimerRunning)

	close(release)
	require.Eventually(t, func() bool {
		return k.TimerDelete(th) == nil
	}, time.Second, time.Millisecond, "delete must succeed once the callback has returned")
}

func TestTimerUpdatePeriodReschedulesActiveTimer(t *testing.T) {
	k := newTestKernel(t, WithSensibility(Sensibility1kHz))

	var fired atomic.Int64
	th, status := k.TimerCreate("beat", 100, true, func(k *Kernel, h *TimerHandle, _ any) {
		fired.Add(1)
	}, nil)
	require.Equal(t, StatusOK, status)
	require.Equal(t, StatusOK, k.TimerStart(th))

	require.Equal(t, StatusOK, k.TimerUpdatePeriod(th, 3))

	for i := 0; i < 15; i++ {
		k.Tick()
	}
	require.Eventually(t, func() bool { return fired.Load() >= 3 }, time.Second, time.Millisecond,
		"updating the period on an active timer must reschedule its pending deadline immediately")
}
