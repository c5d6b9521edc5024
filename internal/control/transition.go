package control

import (
	"fmt"
	"sync"
	"time"

	"github.com/meridian-automation/engine/internal/device"
	"github.com/meridian-automation/engine/internal/easing"
	"github.com/meridian-automation/engine/internal/schedule"
)

// animationTick is the fixed sampling interval used while a transition is
// mid-flight. It is not configurable; it only controls visual smoothness.
const animationTick = 20 * time.Millisecond

// TransitionControl eases its single input, interpreted as a target in
// {0, 1}, onto a smooth output over DurationSeconds. It does not use the
// Calculator/recompute path other controls do - its value advances on a
// wall-clock tick, not only when the input changes - so it overrides
// observer dispatch via SetObserverSelf instead.
type TransitionControl struct {
	*Base

	Curve           easing.Curve
	DurationSeconds float64
	DefaultTarget   float64 // 0 or 1, the assumed target before any input arrives

	clock func() time.Time
	sched *schedule.Timer
	bus   *schedule.EventBus

	// timerInput, if non-nil, is the resolved input device when it happens
	// to be a timer control - consulted once at startup to catch up
	// animation progress to the timer's own phase.
	timerInput *TimerControl

	mu        sync.Mutex
	started   bool
	target    float64 // 0 or 1
	start     float64 // output value when the current leg began
	startTime time.Time
}

// NewTransitionControl constructs a TransitionControl. bus may be nil if
// system-time-change resynchronization is not needed (e.g. in tests).
func NewTransitionControl(uniqueID string, curve easing.Curve, durationSeconds float64, defaultTarget float64, bus *schedule.EventBus) *TransitionControl {
	tc := &TransitionControl{
		Base:            NewBase(uniqueID, "transition"),
		Curve:           curve,
		DurationSeconds: durationSeconds,
		DefaultTarget:   defaultTarget,
		clock:           time.Now,
		sched:           schedule.NewTimer(),
		bus:             bus,
		target:          defaultTarget,
	}
	tc.SetOuter(tc)
	tc.SetObserverSelf(tc)
	if bus != nil {
		bus.Subscribe(schedule.TopicSystemTimeChanged, tc.onSystemTimeChanged)
	}
	return tc
}

// SetClock overrides the time source, for deterministic tests.
func (tc *TransitionControl) SetClock(clock func() time.Time) { tc.clock = clock }

// SetTimerInput records the resolved input device as a *TimerControl when
// it is one, enabling the startup catch-up behavior. Called by the builder
// during Finish, before the generic AddInput wiring so a synchronously
// delivered validity sync already sees the timer handle.
func (tc *TransitionControl) SetTimerInput(t *TimerControl) { tc.timerInput = t }

func (tc *TransitionControl) now() time.Time { return tc.clock() }

// Describe returns a short human-readable summary of this control.
func (tc *TransitionControl) Describe() []string {
	return []string{fmt.Sprintf("transition %s duration=%.2fs", tc.Curve, tc.DurationSeconds)}
}

// currentOutput returns the eased output at the current instant without
// side effects.
func (tc *TransitionControl) currentOutput(now time.Time) float64 {
	tc.mu.Lock()
	start, target, startTime := tc.start, tc.target, tc.startTime
	tc.mu.Unlock()

	u := now.Sub(startTime).Seconds() / tc.DurationSeconds
	if u < 0 {
		u = 0
	}
	if u > 1 {
		u = 1
	}
	return start + (target-start)*easing.Func(tc.Curve)(u)
}

// OnValueChanged implements device.Observer, overriding Base's generic
// dispatch: Base still tracks input value/validity bookkeeping, but the
// derived value here is driven by the animation clock, not a pure function
// of the snapshot.
func (tc *TransitionControl) OnValueChanged(source device.Device, value float64) {
	tc.Base.OnValueChanged(source, value)

	newTarget := 0.0
	if value > 0 {
		newTarget = 1
	}

	tc.mu.Lock()
	started := tc.started
	sameTarget := started && tc.target == newTarget
	tc.mu.Unlock()

	if !started {
		tc.startup(newTarget)
		return
	}
	if sameTarget {
		return
	}

	// Compute the current output before taking the lock - currentOutput
	// locks internally, and this mutex is not reentrant.
	now := tc.now()
	cur := tc.currentOutput(now)

	tc.mu.Lock()
	tc.start = cur
	tc.target = newTarget
	tc.startTime = now
	tc.mu.Unlock()

	tc.SetValue(cur)
	tc.animate()
}

// OnValidChanged implements device.Observer, forwarding to Base for
// validity bookkeeping. A timer input becoming valid also performs the
// startup evaluation: a timer sitting in its default state produces no
// value edge to react to, yet the transition must still align itself with
// the timer's current phase.
func (tc *TransitionControl) OnValidChanged(source device.Device, valid bool) {
	tc.Base.OnValidChanged(source, valid)
	if valid {
		tc.maybeTimerStartup()
	}
}

// MarkValidated extends the base behavior with the timer startup
// evaluation: a timer input that was already valid at wiring time produced
// its validity notification before this control could fan anything out, so
// the startup position is computed now, after downstream outputs are
// subscribed and the transition itself is allowed to propagate.
func (tc *TransitionControl) MarkValidated() {
	tc.Base.MarkValidated()
	tc.maybeTimerStartup()
}

// Start performs the initial evaluation for a timer-driven transition whose
// input was already valid before this control subscribed. Transitions with
// a non-timer input evaluate lazily, on the input's first value change.
func (tc *TransitionControl) Start() {
	tc.maybeTimerStartup()
}

// Stop cancels any in-flight animation sampling.
func (tc *TransitionControl) Stop() { tc.sched.Stop() }

// maybeTimerStartup runs the startup evaluation against a timer input's
// current phase, once, as soon as both the timer and this control are
// valid. Non-timer inputs start up on their first value change instead.
func (tc *TransitionControl) maybeTimerStartup() {
	if tc.timerInput == nil || !tc.timerInput.Valid() || !tc.Valid() {
		return
	}
	tc.mu.Lock()
	started := tc.started
	tc.mu.Unlock()
	if started {
		return
	}
	target := 0.0
	if tc.timerInput.StateNow() {
		target = 1
	}
	tc.startup(target)
}

// startup performs the first-evaluation catch-up logic: if the input is a
// timer whose time since its last transition already exceeds the animation
// duration, the transition is considered finished and jumps straight to the
// target; otherwise it starts from the opposite of the target and seeks
// animation progress forward by that elapsed time, so a late start catches
// up smoothly instead of restarting from scratch.
func (tc *TransitionControl) startup(target float64) {
	now := tc.now()

	tc.mu.Lock()
	tc.started = true
	tc.target = target

	if tc.timerInput != nil {
		elapsed := tc.timerInput.TimeSinceLastTransition()
		if elapsed.Seconds() > tc.DurationSeconds {
			tc.start = target
			tc.startTime = now.Add(-time.Duration(tc.DurationSeconds * float64(time.Second)))
			tc.mu.Unlock()
			tc.SetValue(target)
			return
		}
		tc.start = 1 - target
		tc.startTime = now.Add(-elapsed)
		tc.mu.Unlock()
		tc.SetValue(tc.currentOutput(now))
		tc.animate()
		return
	}

	tc.start = 1 - target
	tc.startTime = now
	tc.mu.Unlock()
	tc.SetValue(tc.start)
	tc.animate()
}

// animate (re)arms the periodic sampling timer until the current leg
// finishes.
func (tc *TransitionControl) animate() {
	tc.sched.Stop()
	tc.sched.Start(animationTick, tc.tick)
}

func (tc *TransitionControl) tick() time.Duration {
	now := tc.now()
	out := tc.currentOutput(now)
	tc.SetValue(out)

	tc.mu.Lock()
	u := now.Sub(tc.startTime).Seconds() / tc.DurationSeconds
	tc.mu.Unlock()
	if u >= 1 {
		return -1
	}
	return animationTick
}

// onSystemTimeChanged defers briefly to let upstream timers resynchronize,
// then redoes the startup computation.
func (tc *TransitionControl) onSystemTimeChanged() {
	deferred := schedule.NewTimer()
	deferred.Start(10*time.Millisecond, func() time.Duration {
		tc.mu.Lock()
		target := tc.target
		tc.started = false
		tc.mu.Unlock()
		tc.startup(target)
		return -1
	})
}
