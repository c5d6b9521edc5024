package output

import (
	"testing"

	"github.com/meridian-automation/engine/internal/device"
)

type stubProducer struct {
	*device.Base
}

func newStubProducer(id string) *stubProducer {
	p := &stubProducer{Base: device.NewBase(id, "stub", 0)}
	p.SetOuter(p)
	return p
}

func TestSwitchOutputMirrorsProducer(t *testing.T) {
	var written []float64
	producer := newStubProducer("p1")
	o := NewSwitch("sw1", func(v float64) error {
		written = append(written, v)
		return nil
	})
	if err := o.Claim("p1"); err != nil {
		t.Fatal(err)
	}
	producer.Subscribe(o)

	producer.SetValid(true)
	producer.SetValue(1)
	if o.Value() != 1 {
		t.Fatalf("output value = %v, want 1", o.Value())
	}
	if len(written) != 1 || written[0] != 1 {
		t.Fatalf("write calls = %v, want [1]", written)
	}
}

func TestPWMOutputQuantizesToResolution(t *testing.T) {
	o, err := NewPWM("pwm1", 128, nil) // resolution 128 -> steps of 1/128
	if err != nil {
		t.Fatal(err)
	}
	producer := newStubProducer("p2")
	o.Claim("p2")
	producer.Subscribe(o)

	producer.SetValid(true)
	producer.SetValue(0.37) // nearest step is 47/128
	if got := o.Value(); got != 47.0/128 {
		t.Fatalf("quantized value = %v, want %v", got, 47.0/128)
	}

	producer.SetValue(1.5) // clamps to 1 before quantizing
	if got := o.Value(); got != 1 {
		t.Fatalf("clamped value = %v, want 1", got)
	}
}

func TestPWMRejectsResolutionOutOfRange(t *testing.T) {
	if _, err := NewPWM("pwm2", 10, nil); err == nil {
		t.Fatal("expected error for resolution below 128")
	}
	if _, err := NewPWM("pwm3", 20000000, nil); err == nil {
		t.Fatal("expected error for resolution above 16777215")
	}
}

func TestPWMDefaultResolution(t *testing.T) {
	o, err := NewPWM("pwm4", 0, nil)
	if err != nil {
		t.Fatal(err)
	}
	if o.resolution != defaultPWMResolution {
		t.Fatalf("resolution = %d, want default %d", o.resolution, defaultPWMResolution)
	}
}

func TestOutputClaimRejectsSecondOwner(t *testing.T) {
	o := NewSwitch("sw2", nil)
	if err := o.Claim("ownerA"); err != nil {
		t.Fatal(err)
	}
	if err := o.Claim("ownerB"); err == nil {
		t.Fatal("expected second distinct owner to be rejected")
	}
	if err := o.Claim("ownerA"); err != nil {
		t.Fatalf("re-claiming by the same owner should be idempotent: %v", err)
	}
}
