package easing

import (
	"math"
	"testing"
)

func TestEndpoints(t *testing.T) {
	for c := Linear; c <= LinearLED; c++ {
		f := Func(c)
		if got := f(0); math.Abs(got-0) > 1e-6 && c != LinearLED {
			t.Errorf("%s: f(0) = %v, want 0", c, got)
		}
		if c == LinearLED {
			continue // LinearLED only approximates 0/1 at its formula's own endpoints
		}
		if got := f(1); math.Abs(got-1) > 1e-6 {
			t.Errorf("%s: f(1) = %v, want 1", c, got)
		}
	}
}

func TestLinearIsIdentity(t *testing.T) {
	f := Func(Linear)
	for _, p := range []float64{0, 0.25, 0.5, 0.75, 1} {
		if f(p) != p {
			t.Errorf("Linear(%v) = %v, want %v", p, f(p), p)
		}
	}
}

func TestLinearLEDFunc(t *testing.T) {
	if got := LinearLEDFunc(0); got != 0 {
		t.Errorf("LinearLEDFunc(0) = %v, want 0", got)
	}
	if got := LinearLEDFunc(1); math.Abs(got-1) > 1e-9 {
		t.Errorf("LinearLEDFunc(1) = %v, want 1", got)
	}
	// below the 0.08 knee it's a straight line through the origin.
	if got := LinearLEDFunc(0.04); math.Abs(got-0.04/9.033) > 1e-12 {
		t.Errorf("LinearLEDFunc(0.04) = %v, want %v", got, 0.04/9.033)
	}
}

func TestParseCurveRoundTrip(t *testing.T) {
	cases := []Curve{Linear, InOutQuad, OutBounce, InElastic, LinearLED}
	for _, c := range cases {
		got, err := ParseCurve(c.String())
		if err != nil {
			t.Fatalf("ParseCurve(%s) returned error: %v", c, err)
		}
		if got != c {
			t.Errorf("ParseCurve(%s) = %v, want %v", c, got, c)
		}
	}
}

func TestParseCurveUnknown(t *testing.T) {
	if _, err := ParseCurve("NotACurve"); err == nil {
		t.Fatal("expected error for unknown curve name")
	}
}

func TestMidpointOrdering(t *testing.T) {
	// in-curves should lag linear near the start, out-curves should lead it.
	in := Func(InQuad)
	out := Func(OutQuad)
	if in(0.5) >= 0.5 {
		t.Errorf("InQuad(0.5) = %v, want < 0.5", in(0.5))
	}
	if out(0.5) <= 0.5 {
		t.Errorf("OutQuad(0.5) = %v, want > 0.5", out(0.5))
	}
}
