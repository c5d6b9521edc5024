package control

import (
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/meridian-automation/engine/internal/schedule"
)

// TimerType names the calendar/period basis of a timer control.
type TimerType int

// The timer type catalogue. SingleShot is recognized by ParseTimerType only
// so configuration can reject it with a clear error rather than reporting
// an unknown type; it has no working implementation.
const (
	Custom TimerType = iota
	Minutely
	Hourly
	Daily
	Weekly
	SingleShot
)

var timerTypeNames = map[TimerType]string{
	Custom:     "Custom",
	Minutely:   "Minutely",
	Hourly:     "Hourly",
	Daily:      "Daily",
	Weekly:     "Weekly",
	SingleShot: "SingleShot",
}

func (t TimerType) String() string {
	if n, ok := timerTypeNames[t]; ok {
		return n
	}
	return "Unknown"
}

// ParseTimerType resolves a config timer type name. SingleShot parses
// successfully (it is a recognized name); ValidateTiming is what rejects
// it - see NewTimerControl.
func ParseTimerType(name string) (TimerType, error) {
	up := strings.ToLower(strings.TrimSpace(name))
	for t, n := range timerTypeNames {
		if strings.ToLower(n) == up {
			return t, nil
		}
	}
	return Custom, fmt.Errorf("unknown timer type %q", name)
}

func (t TimerType) periodMs() int64 {
	switch t {
	case Minutely:
		return 60000
	case Hourly:
		return 3600000
	case Daily:
		return 86400000
	case Weekly:
		return 604800000
	default:
		return 0
	}
}

// msecsSincePeriodStart computes how far now is into the current period.
// Weekly periods anchor on startDay at local midnight; startDay follows
// Go's time.Weekday numbering (Sunday=0).
func msecsSincePeriodStart(t TimerType, startDay int, now time.Time) int64 {
	msOfDay := int64(now.Hour())*3600000 + int64(now.Minute())*60000 +
		int64(now.Second())*1000 + int64(now.Nanosecond())/1e6

	switch t {
	case Minutely:
		return int64(now.Second())*1000 + int64(now.Nanosecond())/1e6
	case Hourly:
		return int64(now.Minute())*60000 + int64(now.Second())*1000 + int64(now.Nanosecond())/1e6
	case Daily:
		return msOfDay
	case Weekly:
		daysSinceAnchor := (int(now.Weekday()) - startDay + 7) % 7
		return int64(daysSinceAnchor)*86400000 + msOfDay
	default:
		return 0
	}
}

// regularState evaluates a regular timer's on/off state and the delay (in
// whole milliseconds) until its next transition, given t milliseconds into
// the current period, start offset s, duration d and period p. The four
// cases in the engine's timer table (starts-at-zero, no-wrap, ends-at-
// period, wraps) all fall out of this single formula rather than being
// special-cased: s==0 and s+d==p are just boundary instances of it.
func regularState(t, s, d, p int64) (on bool, nextMs int64) {
	end := s + d
	if end <= p {
		switch {
		case t < s:
			return false, s - t
		case t < end:
			return true, end - t
		default:
			return false, p - t
		}
	}
	// s+d wraps past the period boundary: the tail of the previous
	// on-interval reappears at the start of this one.
	wrapEnd := end - p
	switch {
	case t < wrapEnd:
		return true, wrapEnd - t
	case t < s:
		return false, s - t
	default:
		return true, p - t
	}
}

// TimerControl drives a boolean output from a calendar period or a custom
// on/off cadence, self-clocking via a re-arming single-shot timer so it
// resynchronizes against wall-clock drift on every firing.
type TimerControl struct {
	*Base

	Type          TimerType
	StartOffsetMs int64
	DurationMs    int64
	StartDay      int // Weekly only, time.Weekday numbering (Sunday=0)

	clock func() time.Time
	sched *schedule.Timer

	mu             sync.Mutex
	haveLast       bool
	lastValue      float64
	lastTransition time.Time
	customOn       bool
}

// NewTimerControl constructs a TimerControl. It accepts any TimerType,
// SingleShot included; ValidateTiming rejects SingleShot, and the config
// builder calls it right after construction, so a SingleShot timer never
// reaches the registry.
func NewTimerControl(uniqueID string, typ TimerType, startOffsetMs, durationMs int64, startDay int) *TimerControl {
	tc := &TimerControl{
		Base:          NewBase(uniqueID, "timer."+typ.String()),
		Type:          typ,
		StartOffsetMs: startOffsetMs,
		DurationMs:    durationMs,
		StartDay:      startDay,
		clock:         time.Now,
		sched:         schedule.NewTimer(),
	}
	tc.SetOuter(tc)
	return tc
}

// SetClock overrides the time source. Tests use this to drive the timer
// against a fixed instant instead of wall-clock time.
func (tc *TimerControl) SetClock(clock func() time.Time) { tc.clock = clock }

func (tc *TimerControl) now() time.Time { return tc.clock() }

// ValidateTiming enforces the range constraints on start/duration per
// timer type: 0 <= start < period and 0 < duration < period for regular
// timers, and a one-second floor on both fields for Custom timers.
func (tc *TimerControl) ValidateTiming() error {
	if tc.Type == SingleShot {
		return fmt.Errorf("SingleShot timers are not supported")
	}
	if tc.Type == Custom {
		if tc.StartOffsetMs < 1000 || tc.DurationMs < 1000 {
			return fmt.Errorf("custom timer start/duration must each be >= 1s")
		}
		return nil
	}
	p := tc.Type.periodMs()
	if tc.StartOffsetMs < 0 || tc.StartOffsetMs >= p {
		return fmt.Errorf("timer start %dms out of range [0,%d)", tc.StartOffsetMs, p)
	}
	if tc.DurationMs <= 0 || tc.DurationMs >= p {
		return fmt.Errorf("timer duration %dms out of range (0,%d)", tc.DurationMs, p)
	}
	if tc.Type == Weekly && (tc.StartDay < 0 || tc.StartDay > 6) {
		return fmt.Errorf("weekly timer start_day %d out of range [0,6]", tc.StartDay)
	}
	return nil
}

// Describe returns a short human-readable summary of this control.
func (tc *TimerControl) Describe() []string {
	return []string{fmt.Sprintf("timer %s start=%dms duration=%dms", tc.Type, tc.StartOffsetMs, tc.DurationMs)}
}

// Start arms the timer: it establishes the current state immediately, then
// self-clocks every subsequent transition.
func (tc *TimerControl) Start() {
	if tc.Type == Custom {
		tc.mu.Lock()
		tc.customOn = true
		tc.mu.Unlock()
		tc.setState(true, tc.now())
		tc.sched.Start(time.Duration(tc.DurationMs)*time.Millisecond, tc.customFire)
		return
	}
	delay := tc.tick()
	tc.sched.Start(delay, tc.tick)
}

// Stop cancels the timer.
func (tc *TimerControl) Stop() { tc.sched.Stop() }

func (tc *TimerControl) tick() time.Duration {
	now := tc.now()
	t := msecsSincePeriodStart(tc.Type, tc.StartDay, now)
	on, nextMs := regularState(t, tc.StartOffsetMs, tc.DurationMs, tc.Type.periodMs())
	tc.setState(on, now)

	delay := nextMs - nextMs/10 // shorten by 10% to sharpen sub-second alignment
	const maxMs = int64(time.Hour / time.Millisecond)
	if delay > maxMs {
		delay = maxMs
	}
	if delay < 0 {
		delay = 0
	}
	return time.Duration(delay) * time.Millisecond
}

func (tc *TimerControl) customFire() time.Duration {
	tc.mu.Lock()
	tc.customOn = !tc.customOn
	on := tc.customOn
	tc.mu.Unlock()
	tc.setState(on, tc.now())
	if on {
		return time.Duration(tc.DurationMs) * time.Millisecond
	}
	return time.Duration(tc.StartOffsetMs) * time.Millisecond
}

func (tc *TimerControl) setState(on bool, now time.Time) {
	newVal := 0.0
	if on {
		newVal = 1
	}
	tc.mu.Lock()
	if !tc.haveLast || newVal != tc.lastValue {
		tc.lastTransition = now
		tc.haveLast = true
		tc.lastValue = newVal
	}
	tc.mu.Unlock()
	tc.SetValue(newVal)
}

// StateNow evaluates the timer's current boolean state from the wall clock
// alone, without waiting for the scheduling loop to fire. Custom timers
// have no period arithmetic to consult, so for them this is the last
// scheduled state.
func (tc *TimerControl) StateNow() bool {
	if tc.Type == Custom {
		tc.mu.Lock()
		defer tc.mu.Unlock()
		return tc.lastValue >= 1
	}
	t := msecsSincePeriodStart(tc.Type, tc.StartDay, tc.now())
	on, _ := regularState(t, tc.StartOffsetMs, tc.DurationMs, tc.Type.periodMs())
	return on
}

// TimeSinceLastTransition returns the time elapsed since the most recent
// 0<->1 edge. For regular timers the edge instant falls out of the period
// arithmetic, so this is meaningful immediately - before Start has ever
// fired - which is exactly when transition controls consume it to align
// their animation progress. A boundary wrap that is not a transition (the
// on-interval of a wrapping timer spanning the period edge) does not count
// as an edge. Custom timers have no period to derive from; for them the
// most recently scheduled edge is reported, or 0 before the first one.
func (tc *TimerControl) TimeSinceLastTransition() time.Duration {
	if tc.Type == Custom {
		tc.mu.Lock()
		defer tc.mu.Unlock()
		if !tc.haveLast {
			return 0
		}
		return tc.now().Sub(tc.lastTransition)
	}

	t := msecsSincePeriodStart(tc.Type, tc.StartDay, tc.now())
	s, d, p := tc.StartOffsetMs, tc.DurationMs, tc.Type.periodMs()
	end := s + d

	var since int64
	if end <= p {
		switch {
		case t < s:
			// Off since the previous period's fall at end-p.
			since = t + p - end
		case t < end:
			since = t - s
		default:
			since = t - end
		}
	} else {
		wrapEnd := end - p
		switch {
		case t < wrapEnd:
			// Still inside the on-interval that began at s last period;
			// the wrap at the boundary was not an edge.
			since = t + p - s
		case t < s:
			since = t - wrapEnd
		default:
			since = t - s
		}
	}
	return time.Duration(since) * time.Millisecond
}
