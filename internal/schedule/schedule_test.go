package schedule

import (
	"sync/atomic"
	"testing"
	"time"
)

func TestTimerReArmsUntilNegativeDelay(t *testing.T) {
	var fires int32
	tm := NewTimer()
	done := make(chan struct{})
	tm.Start(time.Millisecond, func() time.Duration {
		n := atomic.AddInt32(&fires, 1)
		if n >= 3 {
			close(done)
			return -1
		}
		return time.Millisecond
	})

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("timer did not fire 3 times within 1s")
	}
	if got := atomic.LoadInt32(&fires); got != 3 {
		t.Fatalf("fires = %d, want 3", got)
	}

	// the callback returned a stop signal (-1); the timer disarms itself so
	// a later Start can re-arm it.
	deadline := time.After(time.Second)
	for tm.Running() {
		select {
		case <-deadline:
			t.Fatal("Running() still true after the callback returned -1")
		case <-time.After(time.Millisecond):
		}
	}

	// a stopped-by-callback timer must accept a fresh Start.
	restarted := make(chan struct{})
	tm.Start(time.Millisecond, func() time.Duration {
		close(restarted)
		return -1
	})
	select {
	case <-restarted:
	case <-time.After(time.Second):
		t.Fatal("re-armed timer never fired")
	}
}

func TestTimerStopIsIdempotentAndSafeUnstarted(t *testing.T) {
	tm := NewTimer()
	tm.Stop() // never started
	if tm.Running() {
		t.Fatal("Running() = true for a Timer that was never started")
	}

	fired := make(chan struct{}, 1)
	tm.Start(time.Hour, func() time.Duration {
		fired <- struct{}{}
		return time.Hour
	})
	if !tm.Running() {
		t.Fatal("Running() = false after Start")
	}
	tm.Stop()
	tm.Stop() // idempotent
	if tm.Running() {
		t.Fatal("Running() = true after Stop")
	}
	select {
	case <-fired:
		t.Fatal("fire callback ran after Stop before the first delay elapsed")
	default:
	}
}

func TestEventBusDeliversToAllSubscribersInOrder(t *testing.T) {
	b := NewEventBus()
	var order []int
	b.Subscribe("topic", func() { order = append(order, 1) })
	b.Subscribe("topic", func() { order = append(order, 2) })
	b.Subscribe("other", func() { order = append(order, 99) })

	b.Publish("topic")
	if len(order) != 2 || order[0] != 1 || order[1] != 2 {
		t.Fatalf("order = %v, want [1 2]", order)
	}
}

func TestEventBusClosedRefusesPublish(t *testing.T) {
	b := NewEventBus()
	fired := false
	b.Subscribe("topic", func() { fired = true })
	b.Close()
	b.Publish("topic")
	if fired {
		t.Fatal("subscriber ran after Close")
	}
}
