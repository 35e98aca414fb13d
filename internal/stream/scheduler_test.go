package stream

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"go.uber.org/zap/zaptest"
)

func TestSchedulerFiresOnInterval(t *testing.T) {
	clock := newMockClock()
	sched := NewScheduler(clock, zaptest.NewLogger(t))
	defer sched.CancelAll()

	fired := make(chan struct{}, 4)
	sched.Schedule("acct-1", time.Minute, func() { fired <- struct{}{} })
	clock.waitForTimers(t, 1)

	clock.Advance(time.Minute)
	select {
	case <-fired:
	case <-time.After(time.Second):
		t.Fatal("task did not fire after one interval")
	}

	// The timer re-arms after each tick.
	clock.waitForTimers(t, 1)
	clock.Advance(time.Minute)
	select {
	case <-fired:
	case <-time.After(time.Second):
		t.Fatal("task did not fire on the second interval")
	}
}

func TestSchedulerReschedule(t *testing.T) {
	clock := newMockClock()
	sched := NewScheduler(clock, zaptest.NewLogger(t))
	defer sched.CancelAll()

	fired := make(chan struct{}, 4)
	sched.Schedule("acct-1", time.Minute, func() { fired <- struct{}{} })
	clock.waitForTimers(t, 1)

	assert.True(t, sched.Reschedule("acct-1", 5*time.Second))
	clock.waitForDeadline(t, clock.Now().Add(5*time.Second))

	clock.Advance(5 * time.Second)
	select {
	case <-fired:
	case <-time.After(time.Second):
		t.Fatal("task did not fire on the new interval")
	}

	assert.False(t, sched.Reschedule("missing", time.Second))
}

func TestSchedulerCancel(t *testing.T) {
	clock := newMockClock()
	sched := NewScheduler(clock, zaptest.NewLogger(t))

	fired := make(chan struct{}, 1)
	sched.Schedule("acct-1", time.Minute, func() { fired <- struct{}{} })
	clock.waitForTimers(t, 1)

	sched.Cancel("acct-1")
	clock.Advance(time.Hour)

	select {
	case <-fired:
		t.Fatal("cancelled task fired")
	case <-time.After(50 * time.Millisecond):
	}
}

func TestSchedulerReplacesTaskWithSameID(t *testing.T) {
	clock := newMockClock()
	sched := NewScheduler(clock, zaptest.NewLogger(t))
	defer sched.CancelAll()

	oldFired := make(chan struct{}, 1)
	newFired := make(chan struct{}, 1)
	sched.Schedule("acct-1", 7*time.Minute, func() { oldFired <- struct{}{} })
	clock.waitForTimers(t, 1)
	sched.Schedule("acct-1", time.Minute, func() { newFired <- struct{}{} })
	// The replaced task stops its timer asynchronously; wait until only the
	// replacement's timer remains.
	clock.waitForDeadline(t, clock.Now().Add(time.Minute))

	clock.Advance(time.Minute)
	select {
	case <-newFired:
	case <-time.After(time.Second):
		t.Fatal("replacement task did not fire")
	}
	select {
	case <-oldFired:
		t.Fatal("replaced task fired")
	case <-time.After(50 * time.Millisecond):
	}
}
