package control

import (
	"testing"
	"time"
)

func TestRegularStateNoWrap(t *testing.T) {
	// start=10s, duration=20s (case B: no wrap within a 60s period).
	const s, d, p = 10000, 20000, 60000

	cases := []struct {
		t        int64
		wantOn   bool
		wantNext int64
	}{
		{5000, false, 5000},   // before start: off, 5s to go until on
		{15000, true, 15000},  // mid on-window: on, 15s to off
		{35000, false, 25000}, // after window: off, 25s until next period's start
	}
	for _, c := range cases {
		on, next := regularState(c.t, s, d, p)
		if on != c.wantOn || next != c.wantNext {
			t.Errorf("regularState(%d) = (%v,%d), want (%v,%d)", c.t, on, next, c.wantOn, c.wantNext)
		}
	}
}

func TestRegularStateStartsAtZero(t *testing.T) {
	// case A: s==0, on for the first d ms of the period.
	const s, d, p = 0, 20000, 60000
	on, next := regularState(5000, s, d, p)
	if !on || next != 15000 {
		t.Fatalf("regularState(5000) = (%v,%d), want (true,15000)", on, next)
	}
	on, next = regularState(25000, s, d, p)
	if on || next != 35000 {
		t.Fatalf("regularState(25000) = (%v,%d), want (false,35000)", on, next)
	}
}

func TestRegularStateWraps(t *testing.T) {
	// case D: s+d > p.
	const s, d, p = 50000, 60000, 100000 // wraps 10s into the next period
	on, next := regularState(5000, s, d, p)
	if !on || next != 5000 {
		t.Fatalf("wrapped-on phase: got (%v,%d), want (true,5000)", on, next)
	}
	on, next = regularState(30000, s, d, p)
	if on || next != 20000 {
		t.Fatalf("off phase: got (%v,%d), want (false,20000)", on, next)
	}
	on, next = regularState(90000, s, d, p)
	if !on || next != 10000 {
		t.Fatalf("on-until-period-end phase: got (%v,%d), want (true,10000)", on, next)
	}
}

func TestMsecsSincePeriodStartDaily(t *testing.T) {
	now := time.Date(2026, 7, 31, 1, 2, 3, 0, time.UTC)
	got := msecsSincePeriodStart(Daily, 0, now)
	want := int64(1*3600000 + 2*60000 + 3*1000)
	if got != want {
		t.Fatalf("msecsSincePeriodStart(Daily) = %d, want %d", got, want)
	}
}

func TestTimerMinutelyScenario(t *testing.T) {
	// start=0.10 (10000ms), duration=0.20 (20000ms), minute period.
	tc := NewTimerControl("t1", Minutely, 10000, 20000, 0)
	base := time.Date(2026, 7, 31, 10, 0, 0, 0, time.UTC)

	at := func(secIntoMinute int) float64 {
		tc.SetClock(func() time.Time { return base.Add(time.Duration(secIntoMinute) * time.Second) })
		tc.tick()
		return tc.Value()
	}

	if v := at(5); v != 0 {
		t.Fatalf("at 5s: value = %v, want 0", v)
	}
	if v := at(15); v != 1 {
		t.Fatalf("at 15s: value = %v, want 1", v)
	}
	if v := at(35); v != 0 {
		t.Fatalf("at 35s: value = %v, want 0", v)
	}
}

func TestTimerValidateTimingRejectsSingleShot(t *testing.T) {
	tc := NewTimerControl("t2", SingleShot, 0, 0, 0)
	if err := tc.ValidateTiming(); err == nil {
		t.Fatal("expected SingleShot to be rejected at config-validation time")
	}
}

func TestTimerValidateTimingCustomFloor(t *testing.T) {
	tc := NewTimerControl("t3", Custom, 500, 2000, 0)
	if err := tc.ValidateTiming(); err == nil {
		t.Fatal("expected custom timer below the 1s floor to be rejected")
	}
}

func TestCustomTimerStartsOnThenTogglesOff(t *testing.T) {
	tc := NewTimerControl("t4", Custom, 2000, 3000, 0)
	now := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	tc.SetClock(func() time.Time { return now })

	tc.mu.Lock()
	tc.customOn = true
	tc.mu.Unlock()
	tc.setState(true, now)
	if tc.Value() != 1 {
		t.Fatalf("custom timer should start on, got %v", tc.Value())
	}

	delay := tc.customFire()
	if tc.Value() != 0 {
		t.Fatalf("first custom fire should transition off, got %v", tc.Value())
	}
	if delay != 2000*time.Millisecond {
		t.Fatalf("off-phase delay = %v, want 2s (the start offset)", delay)
	}
}
