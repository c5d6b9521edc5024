package config

import (
	"io"
	"log"
	"testing"
	"time"

	"github.com/meridian-automation/engine/internal/control"
	"github.com/meridian-automation/engine/internal/notify"
	"github.com/meridian-automation/engine/internal/output"
)

func testLogger() *log.Logger {
	return log.New(io.Discard, "", 0)
}

func TestBuildWiresSensorThroughLogicToOutput(t *testing.T) {
	cfg := &Config{
		Sensors: []SensorEntry{
			{entryHeader: entryHeader{Name: "sensor1"}, Kind: "virtual", Default: 1, PollMs: 5},
		},
		Outputs: []OutputEntry{
			{entryHeader: entryHeader{Name: "out1"}, Kind: "switch"},
		},
		Controls: []ControlEntry{
			{
				entryHeader: entryHeader{Name: "ctrl1"},
				Kind:        "logic",
				Operation:   control.Passthrough,
				Inputs:      map[string]string{"in": "sensor1"},
				Outputs:     map[string]string{"out": "out1"},
			},
		},
	}

	g := Build(cfg, testLogger())
	if len(g.Errors) != 0 {
		t.Fatalf("unexpected build errors: %v", g.Errors)
	}
	if g.Registry.Len() != 3 {
		t.Fatalf("registry has %d devices, want 3", g.Registry.Len())
	}

	g.Start()
	defer g.Stop()

	dev, ok := g.Registry.Get("out1")
	if !ok {
		t.Fatal("out1 not found in registry")
	}
	out := dev.(*output.Output)

	deadline := time.After(time.Second)
	for {
		if out.Value() == 1 && out.Valid() {
			break
		}
		select {
		case <-deadline:
			t.Fatalf("out1 never converged to 1, got %v valid=%v", out.Value(), out.Valid())
		case <-time.After(5 * time.Millisecond):
		}
	}
	if out.Owner() != "ctrl1" {
		t.Fatalf("out1 owner = %q, want ctrl1", out.Owner())
	}
}

func TestBuildWiresTimerIntoTransition(t *testing.T) {
	cfg := &Config{
		Outputs: []OutputEntry{
			{entryHeader: entryHeader{Name: "lamp"}, Kind: "pwm"},
		},
		Controls: []ControlEntry{
			{
				entryHeader: entryHeader{Name: "timer1"},
				Kind:        "timer",
				TimerType:   control.Daily,
				Start:       0,
				Duration:    60000,
			},
			{
				entryHeader:     entryHeader{Name: "fade1"},
				Kind:            "transition",
				DurationSeconds: 1,
				Inputs:          map[string]string{"timer": "timer1"},
				Outputs:         map[string]string{"out": "lamp"},
			},
		},
	}

	g := Build(cfg, testLogger())
	if len(g.Errors) != 0 {
		t.Fatalf("unexpected build errors: %v", g.Errors)
	}

	dev, ok := g.Registry.Get("lamp")
	if !ok {
		t.Fatal("lamp not found in registry")
	}
	lamp := dev.(*output.Output)
	if lamp.Owner() != "fade1" {
		t.Fatalf("lamp owner = %q, want fade1", lamp.Owner())
	}
}

func TestBuildRejectsUnknownControlKind(t *testing.T) {
	cfg := &Config{
		Controls: []ControlEntry{
			{entryHeader: entryHeader{Name: "bogus"}, Kind: "nonsense"},
		},
	}
	g := Build(cfg, testLogger())
	if len(g.Errors) == 0 {
		t.Fatal("expected a build error for an unknown control kind")
	}
	if _, ok := g.Registry.Get("bogus"); ok {
		t.Fatal("bogus control should not survive into the registry")
	}
}

func TestBuildAllowsTwoControlsFeedingSameDownstreamControl(t *testing.T) {
	// sideA and sideB both list merge1 as an output, and merge1 lists both
	// as inputs. Without claimableOutputIDs filtering non-physical consumers
	// out of ClaimsOutputs, the builder would see two different devices
	// both "claiming" merge1 and reject one as a duplicate-owner conflict -
	// that invariant only applies to physical outputs.
	cfg := &Config{
		Sensors: []SensorEntry{
			{entryHeader: entryHeader{Name: "sA"}, Kind: "virtual", Default: 1, PollMs: 1000},
			{entryHeader: entryHeader{Name: "sB"}, Kind: "virtual", Default: 1, PollMs: 1000},
		},
		Outputs: []OutputEntry{
			{entryHeader: entryHeader{Name: "out1"}, Kind: "switch"},
		},
		Controls: []ControlEntry{
			{
				entryHeader: entryHeader{Name: "sideA"},
				Kind:        "logic",
				Operation:   control.Passthrough,
				Inputs:      map[string]string{"in": "sA"},
				Outputs:     map[string]string{"out": "merge1"},
			},
			{
				entryHeader: entryHeader{Name: "sideB"},
				Kind:        "logic",
				Operation:   control.Passthrough,
				Inputs:      map[string]string{"in": "sB"},
				Outputs:     map[string]string{"out": "merge1"},
			},
			{
				entryHeader: entryHeader{Name: "merge1"},
				Kind:        "logic",
				Operation:   control.All,
				Inputs:      map[string]string{"a": "sideA", "b": "sideB"},
				Outputs:     map[string]string{"out": "out1"},
			},
		},
	}

	g := Build(cfg, testLogger())
	if len(g.Errors) != 0 {
		t.Fatalf("unexpected build errors: %v", g.Errors)
	}
	for _, id := range []string{"sideA", "sideB", "merge1", "out1"} {
		if _, ok := g.Registry.Get(id); !ok {
			t.Fatalf("%s missing from registry: %v", id, g.Errors)
		}
	}
}

func TestBuildWiresTriggerNotificationAsRealDevice(t *testing.T) {
	cfg := &Config{
		Sensors: []SensorEntry{
			{entryHeader: entryHeader{Name: "door"}, Kind: "virtual", Default: 0, PollMs: 1000},
		},
		Notify: []NotifyEntry{
			{
				entryHeader: entryHeader{Name: "doorAlert"},
				Kind:        "trigger",
				Input:       "door",
			},
		},
	}

	g := Build(cfg, testLogger())
	if len(g.Errors) != 0 {
		t.Fatalf("unexpected build errors: %v", g.Errors)
	}

	dev, ok := g.Registry.Get("doorAlert")
	if !ok {
		t.Fatal("doorAlert not found in registry")
	}
	tn, ok := dev.(*notify.TriggerNotification)
	if !ok {
		t.Fatalf("doorAlert is a %T, want *notify.TriggerNotification - it must be the real notification device, not a placeholder", dev)
	}
	if _, ok := tn.Inputs()["input"]; !ok {
		t.Fatal("doorAlert has no resolved input producer wired for DOT export")
	}
}

func TestMsToDuration(t *testing.T) {
	if got, want := msToDuration(1500), 1500*time.Millisecond; got != want {
		t.Fatalf("msToDuration(1500) = %v, want %v", got, want)
	}
}
