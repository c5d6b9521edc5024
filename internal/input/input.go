// Package input implements Input devices: sources of truth that sample a
// physical or virtual reading on an interval and never observe another
// device. A single named read function carries the whole platform binding;
// transient read failures are retried with backoff before surfacing as
// invalidity.
package input

import (
	"time"

	"github.com/cenkalti/backoff"

	"github.com/meridian-automation/engine/internal/device"
	"github.com/meridian-automation/engine/util"
)

// ReadFunc samples a physical or virtual source and returns its current
// value. An error marks the input invalid rather than panicking, matching
// "transient runtime error ... surfaced as valid=false" - recovery is
// automatic on the next successful read.
type ReadFunc func() (float64, error)

// Input polls a ReadFunc on a fixed interval and pushes the result through
// the device contract.
type Input struct {
	*device.Base

	read     ReadFunc
	interval time.Duration
	limits   *util.Limiter
	stop     chan struct{}
}

// New constructs an Input. It does not start polling; call Start.
func New(uniqueID, modelID string, defaultValue float64, read ReadFunc, interval time.Duration) *Input {
	in := &Input{
		Base:     device.NewBase(uniqueID, modelID, defaultValue),
		read:     read,
		interval: interval,
		stop:     make(chan struct{}),
	}
	in.SetOuter(in)
	return in
}

// SetLimits installs a plausibility range for readings. A successful read
// outside the range is treated like a read failure: the input goes invalid
// until a subsequent in-range reading. Must be called before Start.
func (in *Input) SetLimits(l *util.Limiter) {
	in.limits = l
}

// Start begins polling in a background goroutine.
func (in *Input) Start() {
	go in.loop()
}

// Stop halts polling. Safe to call once; a second call panics on a closed
// channel, matching the one-shot shutdown config.Graph.Stop performs per
// device.
func (in *Input) Stop() {
	close(in.stop)
}

func (in *Input) loop() {
	ticker := time.NewTicker(in.interval)
	defer ticker.Stop()
	for {
		select {
		case <-in.stop:
			return
		case <-ticker.C:
			in.sample()
		}
	}
}

// sample reads the source, retrying transient failures with exponential
// backoff bounded to one polling interval so a stuck retry loop cannot
// starve the next scheduled sample.
func (in *Input) sample() {
	var value float64
	op := func() error {
		v, err := in.read()
		if err != nil {
			return err
		}
		value = v
		return nil
	}

	b := backoff.NewExponentialBackOff()
	b.MaxElapsedTime = in.interval
	if err := backoff.Retry(op, b); err != nil {
		in.SetValid(false)
		return
	}
	if in.limits != nil && !in.limits.Check(value) {
		in.SetValid(false)
		return
	}
	in.SetValid(true)
	in.SetValue(value)
}
