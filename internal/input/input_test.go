package input

import (
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/meridian-automation/engine/util"
)

func TestInputPollsAndPublishesValue(t *testing.T) {
	var reading int64 = 1
	in := New("s1", "stub-sensor", 0, func() (float64, error) {
		return float64(atomic.LoadInt64(&reading)), nil
	}, 5*time.Millisecond)
	in.Start()
	defer in.Stop()

	deadline := time.After(time.Second)
	for {
		if in.Valid() && in.Value() == 1 {
			break
		}
		select {
		case <-deadline:
			t.Fatal("input never converged to first reading")
		case <-time.After(time.Millisecond):
		}
	}

	atomic.StoreInt64(&reading, 7)
	for {
		if in.Value() == 7 {
			break
		}
		select {
		case <-deadline:
			t.Fatal("input never observed updated reading")
		case <-time.After(time.Millisecond):
		}
	}
}

func TestInputRejectsOutOfRangeReading(t *testing.T) {
	in := New("s3", "stub-sensor", 0, func() (float64, error) {
		return 150, nil // e.g. a DS18B20 glitch reading far outside plausibility
	}, 5*time.Millisecond)
	in.SetLimits(&util.Limiter{Min: -55, Max: 125})
	in.SetValid(true)
	in.Start()
	defer in.Stop()

	deadline := time.After(2 * time.Second)
	for in.Valid() {
		select {
		case <-deadline:
			t.Fatal("input never rejected an out-of-range reading")
		case <-time.After(time.Millisecond):
		}
	}
}

func TestInputMarksInvalidOnPersistentReadFailure(t *testing.T) {
	in := New("s2", "stub-sensor", -1, func() (float64, error) {
		return 0, errors.New("bus timeout")
	}, 5*time.Millisecond)
	in.SetValid(true) // start valid so the transition to invalid is observable
	in.Start()
	defer in.Stop()

	deadline := time.After(2 * time.Second)
	for in.Valid() {
		select {
		case <-deadline:
			t.Fatal("input never surfaced a persistent read failure as invalid")
		case <-time.After(time.Millisecond):
		}
	}
	if v := in.Value(); v != -1 {
		t.Fatalf("value = %v, want default -1 once invalid", v)
	}
}
