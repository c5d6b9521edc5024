// Package stats implements the bounded rolling statistics the engine's
// RunningAverage/RunningMax/RunningMin logic operations build on.
package stats

// RollingAverage computes a running arithmetic mean, optionally bounded to
// the most recent Window samples. Window == 0 means unbounded: the mean is
// updated incrementally as mean' = (mean*k + x)/(k+1), matching the
// incremental update the engine uses to avoid resumming the whole buffer on
// every sample.
type RollingAverage struct {
	window int
	mean   float64
	count  int
	values []float64 // ring buffer, only populated when window > 0
	head   int
}

// NewRollingAverage constructs a RollingAverage. A window of 0 is unbounded.
func NewRollingAverage(window int) *RollingAverage {
	a := &RollingAverage{window: window}
	if window > 0 {
		a.values = make([]float64, 0, window)
	}
	return a
}

// AddValue folds x into the running mean and returns the new mean.
func (a *RollingAverage) AddValue(x float64) float64 {
	if a.window > 0 {
		if len(a.values) >= a.window {
			evicted := a.values[0]
			a.values = a.values[1:]
			if a.count > 1 {
				a.mean = (a.mean*float64(a.count) - evicted) / float64(a.count-1)
			} else {
				a.mean = 0
			}
			a.count--
		}
		a.values = append(a.values, x)
	}
	a.mean = (a.mean*float64(a.count) + x) / float64(a.count+1)
	a.count++
	return a.mean
}

// Mean returns the current mean without adding a sample.
func (a *RollingAverage) Mean() float64 { return a.mean }

// Reset clears all accumulated samples.
func (a *RollingAverage) Reset() {
	a.mean = 0
	a.count = 0
	if a.window > 0 {
		a.values = a.values[:0]
	}
}

// Extremum tracks a running maximum or minimum of a stream of samples. It is
// a single double, not a statistical accumulator; RunningMax/RunningMin
// logic operations reset it to the current sample on first use or on an
// external reset trigger.
type Extremum struct {
	max   bool
	value float64
	init  bool
}

// NewMaxExtremum constructs an Extremum tracking the running maximum.
func NewMaxExtremum() *Extremum { return &Extremum{max: true} }

// NewMinExtremum constructs an Extremum tracking the running minimum.
func NewMinExtremum() *Extremum { return &Extremum{max: false} }

// Update folds a new sample in, resetting to it unconditionally when reset
// is true or this is the first sample, otherwise only adopting it when it
// extends the extremum in the tracked direction.
func (e *Extremum) Update(sample float64, reset bool) float64 {
	if reset || !e.init {
		e.value = sample
		e.init = true
		return e.value
	}
	if e.max && sample > e.value {
		e.value = sample
	} else if !e.max && sample < e.value {
		e.value = sample
	}
	return e.value
}

// Value returns the current extremum.
func (e *Extremum) Value() float64 { return e.value }
