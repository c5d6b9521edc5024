package notify

import "github.com/meridian-automation/engine/internal/device"

// TriggerNotification subscribes to a single input's value changes and
// dispatches on each edge across the 1.0 boolean threshold - the same
// boundary Toggle uses - rather than the sign of the value. TriggerLow
// fires on the falling edge instead of the default rising edge. Only the
// edge itself is notified; hold time plays no part, and debouncing a noisy
// analog source is a configuration concern (wire a Logic control producing
// clean 0/1 ahead of it), not something this type does itself.
type TriggerNotification struct {
	*Base

	inputName  string
	triggerLow bool

	haveValue bool
	prev      float64
}

// NewTriggerNotification constructs a trigger notification. Callers are
// responsible for subscribing it to its input device (input.Subscribe(tn)),
// matching how every other observer relationship in the graph is wired
// during the builder's Finish phase.
func NewTriggerNotification(base *Base, inputName string, triggerLow bool) *TriggerNotification {
	tn := &TriggerNotification{Base: base, inputName: inputName, triggerLow: triggerLow}
	tn.SetOuter(tn)
	return tn
}

func (tn *TriggerNotification) OnValueChanged(source device.Device, value float64) {
	rising := tn.haveValue && tn.prev < 1 && value >= 1
	falling := tn.haveValue && tn.prev >= 1 && value < 1

	tn.haveValue = true
	tn.prev = value

	fire := rising
	if tn.triggerLow {
		fire = falling
	}
	if fire {
		tn.dispatch(map[string]string{"input": tn.inputName})
	}
}

// OnValidChanged implements device.Observer. An input going invalid resets
// edge tracking so the eventual recovery value isn't misread as an edge
// against a stale reading.
func (tn *TriggerNotification) OnValidChanged(source device.Device, valid bool) {
	if !valid {
		tn.haveValue = false
	}
}
