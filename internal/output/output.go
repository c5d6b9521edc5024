// Package output implements Output devices: single-owner sinks that drive a
// physical or virtual actuator whenever their owning producer changes
// value. PWM values are clamped to [0,1] and quantized to the channel's
// resolution before being written through.
package output

import (
	"fmt"

	"github.com/meridian-automation/engine/internal/device"
	"github.com/meridian-automation/engine/mathx"
	"github.com/meridian-automation/engine/util"
)

const (
	defaultPWMResolution = 1024
	minPWMResolution     = 128
	maxPWMResolution     = 16777215
)

// WriteFunc drives a physical or virtual sink with a new value. Platform
// bindings (GPIO, PWM controllers) implement this; tests and the virtual
// graph-only mode may leave it nil.
type WriteFunc func(value float64) error

// Kind distinguishes the two output variants.
type Kind int

const (
	Switch Kind = iota
	PWM
)

// Output is a single-owner device: exactly one control or notification may
// claim it, and its value mirrors whatever that owner last wrote.
type Output struct {
	*device.Base

	kind       Kind
	resolution int
	write      WriteFunc

	owner string
}

// NewSwitch constructs a boolean (0/1) output.
func NewSwitch(uniqueID string, write WriteFunc) *Output {
	o := &Output{
		Base:  device.NewBase(uniqueID, "switch-output", 0),
		kind:  Switch,
		write: write,
	}
	o.SetOuter(o)
	return o
}

// NewPWM constructs a quantized [0,1] output. A resolution of 0 selects the
// engine default of 1024; any other value must fall within
// [128, 16777215].
func NewPWM(uniqueID string, resolution int, write WriteFunc) (*Output, error) {
	if resolution == 0 {
		resolution = defaultPWMResolution
	}
	if resolution < minPWMResolution || resolution > maxPWMResolution {
		return nil, fmt.Errorf("output %s: PWM resolution %d out of range [%d, %d]",
			uniqueID, resolution, minPWMResolution, maxPWMResolution)
	}
	o := &Output{
		Base:       device.NewBase(uniqueID, "pwm-output", 0),
		kind:       PWM,
		resolution: resolution,
		write:      write,
	}
	o.SetOuter(o)
	return o, nil
}

// Claim registers ownerID as this output's sole owner. A second, different
// owner attempting to claim the same output is rejected, enforcing the
// single-owner invariant at build time rather than at runtime fan-in.
func (o *Output) Claim(ownerID string) error {
	if o.owner != "" && o.owner != ownerID {
		return fmt.Errorf("output %s already owned by %s", o.UniqueID(), o.owner)
	}
	o.owner = ownerID
	return nil
}

// Owner returns the unique id of the claiming producer, or "" if unclaimed.
func (o *Output) Owner() string {
	return o.owner
}

func (o *Output) Kind() Kind {
	return o.kind
}

// OnValueChanged implements device.Observer. It is called synchronously by
// the owning producer whenever its value changes; the new value is
// quantized (PWM only) and written through to the sink.
func (o *Output) OnValueChanged(source device.Device, value float64) {
	v := value
	if o.kind == PWM {
		v = quantize(v, o.resolution)
	}
	o.SetValue(v)
	if o.write != nil {
		o.write(v)
	}
}

// OnValidChanged implements device.Observer, mirroring the owner's validity.
func (o *Output) OnValidChanged(source device.Device, valid bool) {
	o.SetValid(valid)
}

func quantize(v float64, resolution int) float64 {
	v = util.Clamp(v, 0, 1)
	return mathx.Round(v, 1.0/float64(resolution))
}
