// Package notify implements the notification subsystem: system and trigger
// notifications that format a templated message and dispatch it to one or
// more notifier sinks, retrying transient delivery failures and rate
// limiting a noisy trigger so a flaky or chatty transport cannot be
// overwhelmed.
package notify

import (
	"fmt"
	"sync"
	"time"

	"github.com/cenkalti/backoff"
	"golang.org/x/time/rate"

	"github.com/meridian-automation/engine/internal/device"
)

// Notifier is a dispatch endpoint. Implementations are platform bindings
// (email, IM, webhook) out of scope here; this package only formats and
// calls them.
type Notifier interface {
	Notify(fields map[string]string) error
}

// StandardKeys returns the engine-supplied template keys available to every
// notification, derived from appName and now.
func StandardKeys(appName string, now time.Time) map[string]string {
	return map[string]string{
		"applicationname": appName,
		"datetime":        now.Format("2006-01-02 15:04:05"),
		"shortdatetime":   now.Format("01/02 15:04"),
		"longdatetime":    now.Format("Monday, January 2, 2006 15:04:05"),
		"time":            now.Format("15:04:05"),
		"shorttime":       now.Format("15:04"),
		"longtime":        now.Format("15:04:05 MST"),
		"date":            now.Format("2006-01-02"),
		"shortdate":       now.Format("01/02"),
		"longdate":        now.Format("Monday, January 2, 2006"),
	}
}

// Base holds the fields shared by system and trigger notifications: the
// message templates, the bound notifiers, the reference devices interpolated
// into the template, and the retry/rate-limit policy around dispatch.
//
// Base embeds *device.Base so a notification is a full graph device like
// every input, output and control - it gets a unique id, participates in
// DOT export via Inputs(), and could in principle be observed itself. Only
// Inputs() is populated (via AddInput, during the builder's Finish phase);
// notifications have no value/valid propagation of their own.
type Base struct {
	*device.Base

	AppName    string
	TitleTmpl  string
	BodyTmpl   string
	Notifiers  []Notifier
	References map[string]device.Device // unique id -> device, values keyed by id

	mu     sync.Mutex
	inputs map[string]device.Device

	clock   func() time.Time
	limiter *rate.Limiter
}

// NewBase constructs dispatch state common to both notification variants.
// rateLimit of 0 disables limiting (every trigger dispatches).
func NewBase(uniqueID, appName, titleTmpl, bodyTmpl string, notifiers []Notifier, refs map[string]device.Device, rateLimit rate.Limit, burst int) *Base {
	b := &Base{
		Base:       device.NewBase(uniqueID, "notify", 0),
		AppName:    appName,
		TitleTmpl:  titleTmpl,
		BodyTmpl:   bodyTmpl,
		Notifiers:  notifiers,
		References: refs,
		inputs:     make(map[string]device.Device),
		clock:      time.Now,
	}
	b.SetOuter(b)
	if rateLimit > 0 {
		b.limiter = rate.NewLimiter(rateLimit, burst)
	}
	return b
}

// AddInput registers a resolved producer (the triggering input, or a
// reference device) under role, so DOT export can draw the edge into this
// notification the same way it does for every control - called during the
// builder's Finish phase, after References has already been populated.
func (b *Base) AddInput(role string, producer device.Device) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.inputs[role] = producer
}

// Inputs returns a snapshot of this notification's resolved producers, keyed
// by role. Used by DOT export.
func (b *Base) Inputs() map[string]device.Device {
	b.mu.Lock()
	defer b.mu.Unlock()
	out := make(map[string]device.Device, len(b.inputs))
	for k, v := range b.inputs {
		out[k] = v
	}
	return out
}

// SetClock overrides the wall clock, for tests.
func (b *Base) SetClock(clock func() time.Time) {
	b.clock = clock
}

// dispatch formats title/body against the standard keys, per-reference
// values, and any caller-supplied custom keys, then pushes the message to
// every bound notifier. Delivery failures are retried with backoff and
// never propagate - per-notifier errors are swallowed after retries are
// exhausted, so one faulty transport cannot halt the graph.
func (b *Base) dispatch(custom map[string]string) {
	if b.limiter != nil && !b.limiter.Allow() {
		return
	}

	fields := StandardKeys(b.AppName, b.clock())
	for id, dev := range b.References {
		fields[id] = fmt.Sprintf("%v", dev.Value())
	}
	for k, v := range custom {
		fields[k] = v
	}

	msg := map[string]string{
		"title": Expand(b.TitleTmpl, fields),
		"body":  Expand(b.BodyTmpl, fields),
	}
	for _, n := range b.Notifiers {
		notifier := n
		op := func() error { return notifier.Notify(msg) }
		eb := backoff.NewExponentialBackOff()
		eb.MaxElapsedTime = 5 * time.Second
		_ = backoff.Retry(op, eb)
	}
}
