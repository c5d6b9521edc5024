package config

import (
	"log"
	"time"

	"github.com/pkg/errors"
	"golang.org/x/time/rate"

	"github.com/meridian-automation/engine/internal/control"
	"github.com/meridian-automation/engine/internal/device"
	"github.com/meridian-automation/engine/internal/input"
	"github.com/meridian-automation/engine/internal/notify"
	"github.com/meridian-automation/engine/internal/output"
	"github.com/meridian-automation/engine/internal/platform/gpio"
	"github.com/meridian-automation/engine/internal/platform/onewire"
	"github.com/meridian-automation/engine/internal/registry"
	"github.com/meridian-automation/engine/internal/schedule"
	"github.com/meridian-automation/engine/util"
)

const appName = "meridiand"

// startable is implemented by control variants that must be explicitly
// started after the graph is validated (timers arm their first scheduling
// tick; transitions compute their startup position).
type startable interface {
	Start()
}

// stoppable is implemented by every device that owns a goroutine or armed
// timer: polling inputs, timer controls, transition controls.
type stoppable interface {
	Stop()
}

// Graph is the fully built, wired device graph plus everything the process
// must drive after Build returns: the devices still needing Start(), and
// the shared event bus transitions and system notifications listen on.
type Graph struct {
	Registry *registry.Registry
	Bus      *schedule.EventBus
	Errors   []error

	startables []startable
	stoppables []stoppable
}

// Start arms every timer and transition control's scheduling loop. Called
// once, after Build. Timers are armed before transitions, so a transition
// whose input timer sits in config order after it still reads an armed
// timer's state.
func (g *Graph) Start() {
	for _, s := range g.startables {
		if _, ok := s.(*control.TimerControl); ok {
			s.Start()
		}
	}
	for _, s := range g.startables {
		if _, ok := s.(*control.TimerControl); !ok {
			s.Start()
		}
	}
}

// Stop cancels every armed timer, transition and polling input, then closes
// the event bus so no further system events are delivered - timers first,
// devices' goroutines quiesce, then the bus refuses new publishes.
func (g *Graph) Stop() {
	for _, s := range g.stoppables {
		s.Stop()
	}
	g.Bus.Close()
}

// logNotifier is the engine's only built-in Notifier: it writes formatted
// messages to a log.Logger. Real transports (email, IM, webhook) are
// out of scope; this exists so a graph with notify entries has somewhere
// to send messages without requiring an external binding.
type logNotifier struct {
	id  string
	log *log.Logger
}

func (n *logNotifier) Notify(fields map[string]string) error {
	n.log.Printf("[%s] %s: %s", n.id, fields["title"], fields["body"])
	return nil
}

// Build constructs a registry.Builder from cfg, runs the four build phases,
// and returns the resulting Graph. logger receives notifier output; pass
// log.Default() if the caller has no subsystem-specific logger.
func Build(cfg *Config, logger *log.Logger) *Graph {
	bus := schedule.NewEventBus()
	b := registry.NewBuilder()
	g := &Graph{Bus: bus}

	physicalOutputs := make(map[string]bool, len(cfg.Outputs))
	for _, e := range cfg.Outputs {
		physicalOutputs[e.Name] = true
	}

	for _, e := range cfg.Sensors {
		b.Add(sensorSpec(e, g))
	}
	for _, e := range cfg.Outputs {
		b.Add(outputSpec(e))
	}
	for _, e := range cfg.Controls {
		b.Add(controlSpec(e, g, physicalOutputs))
	}
	for _, e := range cfg.Notify {
		b.Add(notifySpec(e, bus, logger))
	}

	reg, errs := b.Build()
	g.Registry = reg
	g.Errors = errs
	return g
}

func msToDuration(ms int) time.Duration {
	return time.Duration(ms) * time.Millisecond
}

func sensorSpec(e SensorEntry, g *Graph) *registry.Spec {
	return &registry.Spec{
		ID: e.Name,
		Construct: func() (device.Device, error) {
			read, err := sensorReadFunc(e)
			if err != nil {
				return nil, err
			}
			pollMs := e.PollMs
			if pollMs <= 0 {
				pollMs = 1000
			}
			in := input.New(e.Name, "sensor:"+e.Kind, e.Default, read, msToDuration(pollMs))
			in.SetUserName(e.UserName)
			in.SetUserDescription(e.UserDescription)
			if e.Min < e.Max {
				in.SetLimits(&util.Limiter{Min: e.Min, Max: e.Max})
			}
			return in, nil
		},
		Finish: func(dev device.Device, _, _ map[string]device.Device) error {
			in := dev.(*input.Input)
			in.Start()
			g.stoppables = append(g.stoppables, in)
			return nil
		},
	}
}

func sensorReadFunc(e SensorEntry) (input.ReadFunc, error) {
	switch e.Kind {
	case "onewire":
		if e.Address == "" {
			return nil, errors.Errorf("sensor %s: onewire kind requires an address", e.Name)
		}
		return func() (float64, error) { return onewire.ReadTemperatureC(e.Address) }, nil
	case "gpio":
		line, err := gpio.Open(e.Pin, "in")
		if err != nil {
			return nil, errors.Wrapf(err, "sensor %s", e.Name)
		}
		return func() (float64, error) {
			v, err := line.Read()
			return float64(v), err
		}, nil
	case "virtual", "":
		value := e.Default
		return func() (float64, error) { return value, nil }, nil
	default:
		return nil, errors.Errorf("sensor %s: unknown kind %q", e.Name, e.Kind)
	}
}

func outputSpec(e OutputEntry) *registry.Spec {
	return &registry.Spec{
		ID: e.Name,
		Construct: func() (device.Device, error) {
			write, err := outputWriteFunc(e)
			if err != nil {
				return nil, err
			}
			var out *output.Output
			switch e.Kind {
			case "switch", "":
				out = output.NewSwitch(e.Name, write)
			case "pwm":
				out, err = output.NewPWM(e.Name, e.Resolution, write)
				if err != nil {
					return nil, err
				}
			default:
				return nil, errors.Errorf("output %s: unknown kind %q", e.Name, e.Kind)
			}
			out.SetUserName(e.UserName)
			out.SetUserDescription(e.UserDescription)
			return out, nil
		},
	}
}

func outputWriteFunc(e OutputEntry) (output.WriteFunc, error) {
	if e.Pin == 0 {
		return nil, nil
	}
	line, err := gpio.Open(e.Pin, "out")
	if err != nil {
		return nil, errors.Wrapf(err, "output %s", e.Name)
	}
	return func(v float64) error {
		level := 0
		if v >= 0.5 {
			level = 1
		}
		return line.Write(level)
	}, nil
}

// controlSpec builds the registry Spec for one control entry. physicalOutputs
// is the set of declared Output device names, so ClaimsOutputs only lists
// ids that are genuinely single-owner sinks - a control wired to feed
// another control's input is never mistaken for an ownership claim.
func controlSpec(e ControlEntry, g *Graph, physicalOutputs map[string]bool) *registry.Spec {
	inputs := map[string]string{}
	for role, id := range e.Inputs {
		inputs[role] = id
	}
	if id, ok := firstValue(e.References); ok {
		inputs["reference"] = id
	}
	if id, ok := firstValue(e.Triggers); ok {
		inputs["trigger"] = id
	}

	spec := &registry.Spec{
		ID:            e.Name,
		Inputs:        inputs,
		Outputs:       e.Outputs,
		ClaimsOutputs: claimableOutputIDs(e.Outputs, physicalOutputs),
	}

	switch e.Kind {
	case "logic":
		// The builder counts every entry in Inputs, reference and trigger
		// roles included, so those are added on top of the general minimum.
		spec.MinArity = e.Operation.MinArity()
		if e.Operation.RequiresReference() {
			spec.MinArity++
		}
		if e.Operation.RequiresTrigger() {
			spec.MinArity++
		}
		spec.Construct = func() (device.Device, error) {
			lc := control.NewLogicControl(e.Name, e.Operation, e.Window)
			lc.SetUserName(e.UserName)
			lc.SetUserDescription(e.UserDescription)
			return lc, nil
		}
		spec.Finish = func(dev device.Device, ins, outs map[string]device.Device) error {
			lc := dev.(*control.LogicControl)
			for role, producer := range ins {
				lc.AddInput(role, producer)
			}
			for role, consumer := range outs {
				lc.AddOutput(role, consumer)
				wireOutput(dev, consumer, e.Name)
			}
			lc.MarkValidated()
			return nil
		}
	case "timer":
		spec.Construct = func() (device.Device, error) {
			tc := control.NewTimerControl(e.Name, e.TimerType, int64(e.Start), int64(e.Duration), e.StartDay)
			if err := tc.ValidateTiming(); err != nil {
				return nil, errors.Wrapf(err, "timer %s", e.Name)
			}
			tc.SetUserName(e.UserName)
			tc.SetUserDescription(e.UserDescription)
			return tc, nil
		}
		spec.Finish = func(dev device.Device, _, outs map[string]device.Device) error {
			tc := dev.(*control.TimerControl)
			for role, consumer := range outs {
				tc.AddOutput(role, consumer)
				wireOutput(dev, consumer, e.Name)
			}
			tc.MarkValidated()
			g.startables = append(g.startables, tc)
			g.stoppables = append(g.stoppables, tc)
			return nil
		}
	case "transition":
		spec.Construct = func() (device.Device, error) {
			tc := control.NewTransitionControl(e.Name, e.Curve, e.DurationSeconds, e.Default, g.Bus)
			tc.SetUserName(e.UserName)
			tc.SetUserDescription(e.UserDescription)
			return tc, nil
		}
		spec.Finish = func(dev device.Device, ins, outs map[string]device.Device) error {
			tc := dev.(*control.TransitionControl)
			// Record a timer input before subscribing: AddInput can deliver
			// an already-valid producer's state synchronously, and the
			// startup evaluation needs the timer handle in place by then.
			for _, producer := range ins {
				if timer, ok := producer.(*control.TimerControl); ok {
					tc.SetTimerInput(timer)
				}
			}
			for role, producer := range ins {
				tc.AddInput(role, producer)
			}
			for role, consumer := range outs {
				tc.AddOutput(role, consumer)
				wireOutput(dev, consumer, e.Name)
			}
			tc.MarkValidated()
			g.startables = append(g.startables, tc)
			g.stoppables = append(g.stoppables, tc)
			return nil
		}
	default:
		spec.Construct = func() (device.Device, error) {
			return nil, errors.Errorf("control %s: unknown kind %q", e.Name, e.Kind)
		}
	}
	return spec
}

func notifySpec(e NotifyEntry, bus *schedule.EventBus, logger *log.Logger) *registry.Spec {
	inputs := map[string]string{}
	if e.Input != "" {
		inputs["input"] = e.Input
	}
	if id, ok := firstValue(e.References); ok {
		inputs["reference"] = id
	}
	var specInputs map[string]string
	if len(inputs) > 0 {
		specInputs = inputs
	}

	spec := &registry.Spec{
		ID:     e.Name,
		Inputs: specInputs,
	}

	switch e.Kind {
	case "system":
		spec.Construct = func() (device.Device, error) {
			base := notify.NewBase(e.Name, appName, e.Message.Title, e.Message.Body,
				notifiersFor(e.Outputs, logger), nil, rate.Limit(e.RateLimit), burstFor(e))
			return notify.NewSystemNotification(base, bus, e.Event), nil
		}
		spec.Finish = func(dev device.Device, ins, _ map[string]device.Device) error {
			sn := dev.(*notify.SystemNotification)
			sn.References = referencesByID(ins)
			for role, producer := range ins {
				sn.AddInput(role, producer)
			}
			return nil
		}
	case "trigger":
		if e.Input == "" {
			spec.Construct = func() (device.Device, error) {
				return nil, errors.Errorf("notify %s: trigger kind requires input", e.Name)
			}
			return spec
		}
		spec.Construct = func() (device.Device, error) {
			base := notify.NewBase(e.Name, appName, e.Message.Title, e.Message.Body,
				notifiersFor(e.Outputs, logger), nil, rate.Limit(e.RateLimit), burstFor(e))
			return notify.NewTriggerNotification(base, e.Input, e.TriggerLow), nil
		}
		spec.Finish = func(dev device.Device, ins, _ map[string]device.Device) error {
			tn := dev.(*notify.TriggerNotification)
			tn.References = referencesByID(ins)
			for role, producer := range ins {
				tn.AddInput(role, producer)
			}
			producer, ok := ins["input"]
			if !ok {
				return errors.Errorf("notify %s: unresolved trigger input", e.Name)
			}
			producer.Subscribe(tn)
			return nil
		}
	default:
		spec.Construct = func() (device.Device, error) {
			return nil, errors.Errorf("notify %s: unknown kind %q", e.Name, e.Kind)
		}
	}
	return spec
}

// burstFor defaults an unset burst to 1 so a configured rate limit is
// usable without also spelling out a burst size.
func burstFor(e NotifyEntry) int {
	if e.Burst > 0 {
		return e.Burst
	}
	return 1
}

func notifiersFor(ids map[string]string, logger *log.Logger) []notify.Notifier {
	notifiers := make([]notify.Notifier, 0, len(ids))
	for _, id := range ids {
		notifiers = append(notifiers, &logNotifier{id: id, log: logger})
	}
	return notifiers
}

func referencesByID(resolved map[string]device.Device) map[string]device.Device {
	out := make(map[string]device.Device, len(resolved))
	for _, d := range resolved {
		out[d.UniqueID()] = d
	}
	return out
}

// firstValue returns the sole entry of a single-entry role map (config's
// references/triggers always carry one "device: id" pair) or false if
// empty.
func firstValue(m map[string]string) (string, bool) {
	for _, v := range m {
		return v, true
	}
	return "", false
}

// claimableOutputIDs narrows a control's declared output ids to the ones
// that are actually physical Output devices - the only kind subject to the
// single-owner invariant. A control feeding another control's input is
// never treated as an ownership claim.
func claimableOutputIDs(outs map[string]string, physicalOutputs map[string]bool) []string {
	var ids []string
	for _, id := range outs {
		if physicalOutputs[id] {
			ids = append(ids, id)
		}
	}
	return ids
}

// wireOutput finishes a producer->physical-output edge: the producer claims
// ownership and the output subscribes to its value/valid stream. A consumer
// that is itself a control subscribes through its own AddInput wiring
// instead, so anything that is not an *output.Output is left alone here. A
// producer that is already propagating has its current state pushed through
// so the output does not sit stale until the next transition.
func wireOutput(producer, consumer device.Device, ownerID string) {
	o, ok := consumer.(*output.Output)
	if !ok {
		return
	}
	o.Claim(ownerID)
	producer.Subscribe(o)
	if producer.Valid() {
		o.OnValidChanged(producer, true)
		o.OnValueChanged(producer, producer.Value())
	}
}
