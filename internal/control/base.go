// Package control implements the three control variants - logic, timer,
// transition - that derive a device's value from its resolved inputs. Base
// carries the propagation state machine shared by all three, following the
// same explicit-outer-pointer embedding pattern device.Base uses (Go has no
// virtual dispatch through embedding), generalized with a Calculator so
// each variant only supplies its own CalculateOutput.
package control

import (
	"sync"

	"github.com/meridian-automation/engine/internal/device"
)

// Calculator computes a control's derived value from a snapshot of its
// current resolved input values, keyed by the role name assigned during
// wiring (the logic/reference/trigger names from config, or a free-form
// name for multi-input operations).
type Calculator interface {
	CalculateOutput(inputs map[string]float64) float64
}

// Base is the embeddable implementation shared by LogicControl, TimerControl
// and TransitionControl. It tracks resolved input producers and output
// consumers, maintains the "all inputs valid and each has produced at least
// one value" validity predicate, and recomputes via a Calculator whenever an
// input changes.
type Base struct {
	*device.Base

	mu sync.Mutex

	inputs    map[string]device.Device
	outputs   map[string]device.Device
	roleByID  map[string]string // producer unique id -> role name

	inputValues map[string]float64
	inputValids map[string]bool

	validated      bool
	allInputsValid bool

	calc     Calculator
	observer device.Observer // who producers notify; defaults to b itself
}

// NewBase constructs a control Base. modelID is used only for the embedded
// device's ModelID(); it has no effect on behavior.
func NewBase(uniqueID, modelID string) *Base {
	b := &Base{
		Base:        device.NewBase(uniqueID, modelID, 0),
		inputs:      make(map[string]device.Device),
		outputs:     make(map[string]device.Device),
		roleByID:    make(map[string]string),
		inputValues: make(map[string]float64),
		inputValids: make(map[string]bool),
	}
	b.observer = b
	return b
}

// SetObserverSelf overrides which Observer producers are subscribed to.
// LogicControl and TimerControl leave this as Base itself; TransitionControl
// installs its own outer type here so it can intercept input transitions
// directly instead of going through Base's generic recompute path - the
// same outer-pointer idea device.Base uses, applied to observer dispatch.
func (b *Base) SetObserverSelf(obs device.Observer) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.observer = obs
}

// SetCalculator installs the Calculator used to recompute this control's
// value. Must be called once, during construction of the concrete variant.
func (b *Base) SetCalculator(calc Calculator) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.calc = calc
}

// AddInput registers a resolved input producer under role, and subscribes
// to its value/valid transitions. Called during the builder's Finish phase.
// A producer that is already valid at subscription time is synced
// immediately - its validity notification fired before this control was
// listening, and without the sync the control would wait forever for a
// transition that already happened.
func (b *Base) AddInput(role string, producer device.Device) {
	b.mu.Lock()
	b.inputs[role] = producer
	b.roleByID[producer.UniqueID()] = role
	obs := b.observer
	b.mu.Unlock()
	producer.Subscribe(obs)
	if producer.Valid() {
		obs.OnValidChanged(producer, true)
	}
}

// AddOutput registers a resolved output consumer under role. Called during
// the builder's Finish phase; ownership of the consumer itself is claimed
// separately by the builder when the consumer is a physical output.
func (b *Base) AddOutput(role string, consumer device.Device) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.outputs[role] = consumer
}

// Inputs returns a snapshot of this control's resolved input producers,
// keyed by role. Used by cycle detection and DOT export.
func (b *Base) Inputs() map[string]device.Device {
	b.mu.Lock()
	defer b.mu.Unlock()
	out := make(map[string]device.Device, len(b.inputs))
	for k, v := range b.inputs {
		out[k] = v
	}
	return out
}

// Outputs returns a snapshot of this control's resolved output consumers,
// keyed by role.
func (b *Base) Outputs() map[string]device.Device {
	b.mu.Lock()
	defer b.mu.Unlock()
	out := make(map[string]device.Device, len(b.outputs))
	for k, v := range b.outputs {
		out[k] = v
	}
	return out
}

func (b *Base) allInputsValidLocked() bool {
	for role := range b.inputs {
		if !b.inputValids[role] {
			return false
		}
	}
	return true
}

func (b *Base) selfValidLocked() bool {
	return b.validated && b.allInputsValid && len(b.inputValues) == len(b.inputs)
}

// MarkValidated flips this control into the validated state at the end of
// the builder's Finish phase. A control with no inputs (a timer) becomes
// valid immediately, vacuously satisfying "all inputs valid".
func (b *Base) MarkValidated() {
	b.mu.Lock()
	b.validated = true
	b.allInputsValid = b.allInputsValidLocked()
	valid := b.selfValidLocked()
	b.mu.Unlock()
	b.SetValid(valid)
	if valid {
		// Inputs that were wired already-valid never trigger the observer
		// recompute path, so derive the first output here.
		b.recompute()
	}
}

// OnValueChanged implements device.Observer. It records the new value under
// the producer's role and, if this control is currently valid, recomputes.
func (b *Base) OnValueChanged(source device.Device, value float64) {
	b.mu.Lock()
	role, ok := b.roleByID[source.UniqueID()]
	if !ok {
		b.mu.Unlock()
		return
	}
	b.inputValues[role] = value
	valid := b.selfValidLocked()
	b.mu.Unlock()

	if valid {
		// This value may be the last missing piece of the "every input has
		// produced at least one value" predicate, so validity can flip here,
		// not only in OnValidChanged.
		b.SetValid(true)
		b.recompute()
	}
}

// OnValidChanged implements device.Observer. It updates the tracked validity
// for the producer's role, re-derives this control's own validity, and
// recomputes if the control is now valid.
func (b *Base) OnValidChanged(source device.Device, valid bool) {
	b.mu.Lock()
	role, ok := b.roleByID[source.UniqueID()]
	if !ok {
		b.mu.Unlock()
		return
	}
	b.inputValids[role] = valid
	if valid {
		// A valid producer's current value is meaningful by definition;
		// snapshot it so "has produced at least one value" holds even when
		// the producer's first reading equaled its default and the fuzzy
		// no-op suppression swallowed the value notification.
		b.inputValues[role] = source.Value()
	}
	b.allInputsValid = b.allInputsValidLocked()
	selfValid := b.selfValidLocked()
	b.mu.Unlock()

	b.SetValid(selfValid)
	if selfValid {
		b.recompute()
	}
}

func (b *Base) recompute() {
	b.mu.Lock()
	calc := b.calc
	snapshot := make(map[string]float64, len(b.inputValues))
	for k, v := range b.inputValues {
		snapshot[k] = v
	}
	b.mu.Unlock()

	if calc == nil {
		return
	}
	b.SetValue(calc.CalculateOutput(snapshot))
}
