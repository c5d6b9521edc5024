package stats

import "testing"

func approxEqual(a, b float64) bool {
	const eps = 1e-9
	d := a - b
	if d < 0 {
		d = -d
	}
	return d < eps
}

func TestRollingAverageWindowed(t *testing.T) {
	// samples 2, 4, 6, 8 through a window-3 average should produce
	// means 2, 3, 4, 6 as each new sample evicts the oldest once full.
	a := NewRollingAverage(3)
	want := []float64{2, 3, 4, 6}
	samples := []float64{2, 4, 6, 8}
	for i, s := range samples {
		got := a.AddValue(s)
		if !approxEqual(got, want[i]) {
			t.Fatalf("sample %d: AddValue(%v) = %v, want %v", i, s, got, want[i])
		}
	}
}

func TestRollingAverageUnbounded(t *testing.T) {
	a := NewRollingAverage(0)
	want := []float64{10, 15, 20}
	samples := []float64{10, 20, 30}
	for i, s := range samples {
		got := a.AddValue(s)
		if !approxEqual(got, want[i]) {
			t.Fatalf("sample %d: AddValue(%v) = %v, want %v", i, s, got, want[i])
		}
	}
}

func TestRollingAverageReset(t *testing.T) {
	a := NewRollingAverage(2)
	a.AddValue(4)
	a.AddValue(8)
	a.Reset()
	got := a.AddValue(10)
	if !approxEqual(got, 10) {
		t.Fatalf("after Reset, AddValue(10) = %v, want 10", got)
	}
}

func TestExtremumMax(t *testing.T) {
	e := NewMaxExtremum()
	if v := e.Update(5, false); v != 5 {
		t.Fatalf("first sample = %v, want 5", v)
	}
	if v := e.Update(3, false); v != 5 {
		t.Fatalf("lower sample should not move max, got %v", v)
	}
	if v := e.Update(9, false); v != 9 {
		t.Fatalf("higher sample should move max, got %v", v)
	}
	if v := e.Update(1, true); v != 1 {
		t.Fatalf("reset should adopt sample unconditionally, got %v", v)
	}
}

func TestExtremumMin(t *testing.T) {
	e := NewMinExtremum()
	e.Update(5, false)
	if v := e.Update(9, false); v != 5 {
		t.Fatalf("higher sample should not move min, got %v", v)
	}
	if v := e.Update(2, false); v != 2 {
		t.Fatalf("lower sample should move min, got %v", v)
	}
}
