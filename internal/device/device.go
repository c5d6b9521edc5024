// Package device implements the common device contract shared by every node
// in the automation graph: a unique id, a value/valid pair, a default value
// assumed while invalid, and a synchronous observer fan-out.
//
// Each device guards its value/valid/observer state with a single mutex.
// Go has no recursive mutex, so Base exposes only locked, externally-safe
// methods and never calls back into itself while holding its own lock;
// observer fan-out always happens after the lock has been released - the
// producer lock is held only to snapshot state.
package device

import (
	"math"
	"sync"
)

// Epsilon is the relative tolerance used by FuzzyEqual to suppress no-op
// value updates.
const Epsilon = 1e-12

// FuzzyEqual reports whether a and b are equal to within a relative
// tolerance of Epsilon, the same comparison the engine uses throughout to
// decide whether a value update is actually a change.
func FuzzyEqual(a, b float64) bool {
	if a == b {
		return true
	}
	diff := math.Abs(a - b)
	largest := math.Max(math.Abs(a), math.Abs(b))
	if largest == 0 {
		return diff < Epsilon
	}
	return diff/largest < Epsilon
}

// Observer receives value/valid transitions from a device it has subscribed
// to. Source identifies the producer so a consumer with more than one
// subscription (a control with several inputs) knows which one fired.
type Observer interface {
	OnValueChanged(source Device, value float64)
	OnValidChanged(source Device, valid bool)
}

// Device is the common surface implemented by every input, output, control
// and notification in the graph.
type Device interface {
	UniqueID() string
	UserName() string
	SetUserName(name string)
	UserDescription() string
	SetUserDescription(desc string)
	ModelID() string

	Value() float64
	DefaultValue() float64
	Valid() bool

	SetValue(value float64)
	SetValid(valid bool)

	Subscribe(obs Observer)
	Unsubscribe(obs Observer)
}

// Base is the embeddable implementation of Device. Concrete device kinds
// (inputs, outputs, controls) embed a *Base and inherit its behavior.
type Base struct {
	mu sync.Mutex

	uniqueID        string
	userName        string
	userDescription string
	modelID         string

	value        float64
	defaultValue float64
	valid        bool

	observers map[Observer]struct{}

	// outer is the concrete device embedding this Base, so that observers
	// are told the real producer rather than the embedded Base pointer.
	outer Device
}

// NewBase constructs a Base with the given identity and default value.
// Devices start invalid; value equals defaultValue until SetValid(true) is
// called after the first real reading.
func NewBase(uniqueID, modelID string, defaultValue float64) *Base {
	return &Base{
		uniqueID:     uniqueID,
		modelID:      modelID,
		defaultValue: defaultValue,
		value:        defaultValue,
		observers:    make(map[Observer]struct{}),
	}
}

// SetOuter records the concrete Device that embeds this Base. Every
// embedder must call this once, immediately after construction, e.g.:
//
//	l := &LogicControl{Base: device.NewBase(...)}
//	l.SetOuter(l)
func (b *Base) SetOuter(outer Device) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.outer = outer
}

func (b *Base) UniqueID() string { return b.uniqueID }

func (b *Base) UserName() string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.userName
}

func (b *Base) SetUserName(name string) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.userName = name
}

func (b *Base) UserDescription() string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.userDescription
}

func (b *Base) SetUserDescription(desc string) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.userDescription = desc
}

func (b *Base) ModelID() string { return b.modelID }

func (b *Base) DefaultValue() float64 {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.defaultValue
}

func (b *Base) Value() float64 {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.value
}

func (b *Base) Valid() bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.valid
}

func (b *Base) snapshotObservers() []Observer {
	out := make([]Observer, 0, len(b.observers))
	for o := range b.observers {
		out = append(out, o)
	}
	return out
}

// Subscribe registers obs to receive future value/valid notifications.
func (b *Base) Subscribe(obs Observer) {
	if obs == nil {
		return
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	b.observers[obs] = struct{}{}
}

// Unsubscribe removes a previously registered observer. It is a no-op if
// obs was never subscribed.
func (b *Base) Unsubscribe(obs Observer) {
	b.mu.Lock()
	defer b.mu.Unlock()
	delete(b.observers, obs)
}

func (b *Base) self() Device {
	if b.outer != nil {
		return b.outer
	}
	return b
}

// SetValue updates the device's value, suppressing no-op updates via
// FuzzyEqual. A value notification is only ever delivered while the device
// is valid - an invalid producer never pushes a value update downstream.
func (b *Base) SetValue(value float64) {
	b.mu.Lock()
	if FuzzyEqual(b.value, value) {
		b.mu.Unlock()
		return
	}
	b.value = value
	valid := b.valid
	obs := b.snapshotObservers()
	src := b.self()
	b.mu.Unlock()

	if !valid {
		return
	}
	for _, o := range obs {
		o.OnValueChanged(src, value)
	}
}

// SetValid updates the device's validity. Transitioning to invalid first
// forces value to defaultValue (and notifies that value change, since the
// device was still valid at that instant) and only then notifies the
// valid=false transition itself - mirroring "setting valid=false first
// causes value to be reset to default_value before the valid=false
// notification is delivered".
func (b *Base) SetValid(valid bool) {
	b.mu.Lock()
	if b.valid == valid {
		b.mu.Unlock()
		return
	}

	var notifyDefault bool
	var defaultVal float64
	if !valid {
		defaultVal = b.defaultValue
		if !FuzzyEqual(b.value, defaultVal) {
			notifyDefault = true
		}
		b.value = defaultVal
	}
	b.valid = valid
	obs := b.snapshotObservers()
	src := b.self()
	b.mu.Unlock()

	if notifyDefault {
		for _, o := range obs {
			o.OnValueChanged(src, defaultVal)
		}
	}
	for _, o := range obs {
		o.OnValidChanged(src, valid)
	}
}
