package util

import "testing"

func TestClamp(t *testing.T) {
	cases := []struct {
		in, lo, hi, want float64
	}{
		{0.5, 0, 1, 0.5},
		{-1, 0, 1, 0},
		{2, 0, 1, 1},
	}
	for _, c := range cases {
		if got := Clamp(c.in, c.lo, c.hi); got != c.want {
			t.Errorf("Clamp(%v, %v, %v) = %v, want %v", c.in, c.lo, c.hi, got, c.want)
		}
	}
}

func TestLimiterClampAndCheck(t *testing.T) {
	l := &Limiter{Min: 10, Max: 20}
	if got := l.Clamp(5); got != 10 {
		t.Errorf("Clamp(5) = %v, want 10", got)
	}
	if got := l.Clamp(25); got != 20 {
		t.Errorf("Clamp(25) = %v, want 20", got)
	}
	if !l.Check(15) {
		t.Error("Check(15) = false, want true")
	}
	if l.Check(25) {
		t.Error("Check(25) = true, want false")
	}
}
