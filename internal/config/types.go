// Package config implements the engine's declarative configuration: a
// nested sensors/outputs/controls/notify mapping decoded via
// github.com/knadh/koanf layered over struct defaults, with a
// mitchellh/mapstructure decode hook translating the engine's time-string
// grammar and named enums into typed Go values at decode time.
package config

import (
	"github.com/meridian-automation/engine/internal/control"
	"github.com/meridian-automation/engine/internal/easing"
	"github.com/meridian-automation/engine/internal/timeparse"
)

// Config is the top-level document: sensors, outputs, controls, notify.
type Config struct {
	Sensors  []SensorEntry  `koanf:"sensors"`
	Outputs  []OutputEntry  `koanf:"outputs"`
	Controls []ControlEntry `koanf:"controls"`
	Notify   []NotifyEntry  `koanf:"notify"`
}

// entryHeader holds the fields common to every device entry.
type entryHeader struct {
	Name            string `koanf:"name"`
	UserName        string `koanf:"username"`
	UserDescription string `koanf:"userdescription"`
}

// SensorEntry declares an Input device. Kind selects the platform binding
// ("gpio", "onewire", or "virtual" for a config-only stand-in with no
// physical source).
type SensorEntry struct {
	entryHeader `koanf:",squash"`

	Kind    string  `koanf:"kind"`
	Default float64 `koanf:"default"`
	PollMs  int     `koanf:"pollms"`

	// Min/Max bound plausible readings; a sample outside the range marks the
	// sensor invalid. Both zero means unchecked.
	Min float64 `koanf:"min"`
	Max float64 `koanf:"max"`

	Pin     int    `koanf:"pin"`     // gpio
	Address string `koanf:"address"` // onewire device id
}

// OutputEntry declares an Output device. Kind is "switch" or "pwm".
type OutputEntry struct {
	entryHeader `koanf:",squash"`

	Kind       string `koanf:"kind"`
	Resolution int    `koanf:"resolution"` // pwm only; 0 selects the engine default
	Pin        int    `koanf:"pin"`
}

// ControlEntry declares a Logic, Timer or Transition control. Kind selects
// the variant; the remaining fields are only meaningful for their variant
// and are simply left zero-valued for the others.
type ControlEntry struct {
	entryHeader `koanf:",squash"`

	Kind string `koanf:"kind"`

	// logic
	Operation control.Operation `koanf:"operation"`
	Window    int               `koanf:"window"`

	// timer
	TimerType control.TimerType `koanf:"timertype"`
	Start     timeparse.Millis  `koanf:"start"`
	Duration  timeparse.Millis  `koanf:"duration"`
	StartDay  int               `koanf:"startday"`

	// transition
	Curve           easing.Curve `koanf:"curve"`
	DurationSeconds float64      `koanf:"durationseconds"`
	Default         float64      `koanf:"default"`

	Inputs     map[string]string `koanf:"inputs"`
	Outputs    map[string]string `koanf:"outputs"`
	References map[string]string `koanf:"references"`
	Triggers   map[string]string `koanf:"triggers"`
}

// NotifyEntry declares a System or Trigger notification. Kind is "system"
// or "trigger".
type NotifyEntry struct {
	entryHeader `koanf:",squash"`

	Kind       string `koanf:"kind"`
	Event      string `koanf:"event"` // system
	Input      string `koanf:"input"` // trigger
	TriggerLow bool   `koanf:"triggerlow"`

	// RateLimit caps dispatches per second (with Burst extra allowed in a
	// spike); 0 disables limiting.
	RateLimit float64 `koanf:"ratelimit"`
	Burst     int     `koanf:"burst"`

	Outputs    map[string]string `koanf:"outputs"` // notifier ids
	References map[string]string `koanf:"references"`
	Message    struct {
		Title string `koanf:"title"`
		Body  string `koanf:"body"`
	} `koanf:"message"`
}
